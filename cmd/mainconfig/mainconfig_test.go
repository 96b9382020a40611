package mainconfig

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/staffline/internal/config"
	"github.com/wolfman30/staffline/internal/queue"
	"github.com/wolfman30/staffline/pkg/logging"
)

func TestLoadDotEnvMissingFileIsFine(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestLoadDotEnvSetsVariables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("STAFFLINE_DOTENV_PROBE=loaded\n"), 0o600))
	t.Setenv("STAFFLINE_DOTENV_PROBE", "")
	require.NoError(t, os.Unsetenv("STAFFLINE_DOTENV_PROBE"))

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("STAFFLINE_DOTENV_PROBE"))
}

func TestBuildQueueFallsBackToMemory(t *testing.T) {
	q, err := BuildQueue(context.Background(), &appconfig.Config{}, logging.Discard())
	require.NoError(t, err)
	_, ok := q.(*queue.MemoryQueue)
	assert.True(t, ok)
}

func TestBuildQueueUsesSQS(t *testing.T) {
	cfg := &appconfig.Config{
		AWSRegion:           "ap-southeast-1",
		AWSAccessKeyID:      "test",
		AWSSecretAccessKey:  "test",
		AWSEndpointOverride: "http://localhost:4566",
		ChatQueueURL:        "http://localhost:4566/000000000000/chat",
	}
	q, err := BuildQueue(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	_, ok := q.(*queue.SQSQueue)
	assert.True(t, ok)
}
