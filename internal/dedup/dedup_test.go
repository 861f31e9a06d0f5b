package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-upwork-assistant/internal/logger"
	"go-upwork-assistant/internal/store"
)

func TestJobCache_AddCountsNew(t *testing.T) {
	ctx := context.Background()
	jc, err := NewJobCache(ctx, store.NewMemoryStore(), logger.Discard())
	require.NoError(t, err)

	added, err := jc.Add(ctx, []string{"a", "b", ""})
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	added, err = jc.Add(ctx, []string{"b", "c"})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	assert.True(t, jc.IsSeen("a"))
	assert.False(t, jc.IsSeen("z"))
	assert.Equal(t, 3, jc.Len())
}

func TestJobCache_PersistsThroughStore(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	jc, err := NewJobCache(ctx, st, logger.Discard())
	require.NoError(t, err)
	_, err = jc.Add(ctx, []string{"a"})
	require.NoError(t, err)

	reloaded, err := NewJobCache(ctx, st, logger.Discard())
	require.NoError(t, err)
	assert.True(t, reloaded.IsSeen("a"))
}

func TestJobCache_DropsExpired(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	now := time.Now()
	require.NoError(t, store.Save(ctx, st, store.KeySeenJobs, []seenEntry{
		{JobID: "old", Timestamp: now.Add(-31 * 24 * time.Hour).UnixMilli()},
		{JobID: "fresh", Timestamp: now.Add(-time.Hour).UnixMilli()},
	}))

	jc, err := NewJobCache(ctx, st, logger.Discard())
	require.NoError(t, err)

	assert.False(t, jc.IsSeen("old"))
	assert.True(t, jc.IsSeen("fresh"))
}

func TestJobCache_CorruptDocument(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.Set(ctx, store.KeySeenJobs, []byte(`{"not":"a list"}`)))

	_, err := NewJobCache(ctx, st, logger.Discard())
	assert.Error(t, err)
}
