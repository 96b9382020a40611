package transcript

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/staffline/internal/intent"
)

func TestRedisStoreAppendAndList(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	store := NewRedisStore(client)

	require.NoError(t, store.Append(ctx, "c-1",
		Entry{Role: RoleInbound, Text: "hi", Intent: string(intent.Greeting)},
		Entry{Role: RoleOutbound, Text: "Hi Ana!", ResponseType: "greeting"},
	))

	got, err := store.List(ctx, "c-1", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "hi", got[0].Text)
	assert.NotEmpty(t, got[0].ID)
	assert.False(t, got[0].Timestamp.IsZero())
	assert.Equal(t, TTL, mr.TTL(transcriptKey("c-1")))

	last, err := store.List(ctx, "c-1", 1)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, RoleOutbound, last[0].Role)
}

func TestRedisStoreCapsEntries(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	store := NewRedisStore(client)
	store.maxEntries = 3

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, "c-1", Entry{Role: RoleInbound, Text: fmt.Sprint(i)}))
	}
	got, err := store.List(ctx, "c-1", 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "2", got[0].Text)
}

func TestRedisStoreSkipsGarbage(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	store := NewRedisStore(client)

	_, err := mr.Push(transcriptKey("c-1"), "not json")
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, "c-1", Entry{Role: RoleInbound, Text: "ok"}))

	got, err := store.List(ctx, "c-1", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].Text)

	assert.Error(t, store.Append(ctx, "", Entry{}))
}

func TestMemoryStoreCapsEntries(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	for i := 0; i < MaxEntries+5; i++ {
		require.NoError(t, store.Append(ctx, "c-1", Entry{Role: RoleInbound, Text: fmt.Sprint(i)}))
	}
	got, _ := store.List(ctx, "c-1", 0)
	require.Len(t, got, MaxEntries)
	assert.Equal(t, "5", got[0].Text)

	tail, _ := store.List(ctx, "c-1", 2)
	assert.Equal(t, []string{fmt.Sprint(MaxEntries + 3), fmt.Sprint(MaxEntries + 4)}, []string{tail[0].Text, tail[1].Text})
}

func TestSummarize(t *testing.T) {
	now := time.Date(2026, 3, 4, 2, 0, 0, 0, time.UTC)
	st := Summarize(nil, now)
	assert.True(t, st.IsFirstMessage())

	st = Summarize([]Entry{
		{Role: RoleInbound, Intent: string(intent.TechnicalIssue), Timestamp: now.Add(-2 * time.Hour)},
		{Role: RoleOutbound, Intent: string(intent.TechnicalIssue), Timestamp: now.Add(-2 * time.Hour)},
		{Role: RoleInbound, Intent: string(intent.Greeting), Timestamp: now.Add(-time.Hour)},
		{Role: RoleInbound, Intent: string(intent.TechnicalIssue), Timestamp: now.Add(-time.Minute)},
	}, now)
	assert.Equal(t, 3, st.InboundCount)
	assert.Equal(t, 2, st.RecentIssueCount)
	assert.False(t, st.IsFirstMessage())
}

func TestSummarizeIgnoresOldIssues(t *testing.T) {
	now := time.Date(2026, 3, 4, 2, 0, 0, 0, time.UTC)
	st := Summarize([]Entry{
		{Role: RoleInbound, Intent: string(intent.TechnicalIssue), Timestamp: now.Add(-6 * 24 * time.Hour)},
		{Role: RoleInbound, Intent: string(intent.TechnicalIssue), Timestamp: now.Add(-IssueWindow)},
		{Role: RoleInbound, Intent: string(intent.TechnicalIssue), Timestamp: now.Add(-IssueWindow + time.Second)},
	}, now)
	assert.Equal(t, 3, st.InboundCount)
	assert.Equal(t, 1, st.RecentIssueCount)
}
