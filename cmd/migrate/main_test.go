package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		args []string
		want command
	}{
		{nil, command{name: "up"}},
		{[]string{"up"}, command{name: "up"}},
		{[]string{"down"}, command{name: "down", n: 1}},
		{[]string{"down", "3"}, command{name: "down", n: 3}},
		{[]string{"force", "2"}, command{name: "force", n: 2}},
		{[]string{"version"}, command{name: "version"}},
	}
	for _, tt := range tests {
		got, err := parseCommand(tt.args)
		require.NoError(t, err, tt.args)
		assert.Equal(t, tt.want, got, tt.args)
	}
}

func TestParseCommandRejectsBadInput(t *testing.T) {
	for _, args := range [][]string{
		{"sideways"},
		{"force"},
		{"force", "x"},
		{"down", "0"},
	} {
		_, err := parseCommand(args)
		assert.Error(t, err, args)
	}
}
