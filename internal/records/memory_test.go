package records

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	created, err := store.Create(ctx, Record{
		SourceText: "calming reply",
		Kind:       KindSpeech,
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, StatusPending, created.Status)
	assert.False(t, created.CreatedAt.IsZero())

	updated, err := store.Update(ctx, created.ID, Patch{
		Status:          StatusPtr(StatusCompleted),
		ArtifactURL:     StringPtr("https://cdn.example.com/audio/a.mp3"),
		DurationSeconds: IntPtr(12),
		ByteSize:        Int64Ptr(2048),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, updated.Status)
	assert.Equal(t, "https://cdn.example.com/audio/a.mp3", updated.ArtifactURL)
	assert.Equal(t, 12, updated.DurationSeconds)
}

func TestStatusTransitionsExactlyOnce(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	rec, err := store.Create(ctx, Record{SourceText: "hello", Kind: KindReply})
	require.NoError(t, err)

	_, err = store.Update(ctx, rec.ID, Patch{Status: StatusPtr(StatusFailed)})
	require.NoError(t, err)

	// A terminal record must reject every lifecycle mutation.
	_, err = store.Update(ctx, rec.ID, Patch{Status: StatusPtr(StatusPending)})
	require.ErrorIs(t, err, ErrTerminal)
	_, err = store.Update(ctx, rec.ID, Patch{Status: StatusPtr(StatusCompleted)})
	require.ErrorIs(t, err, ErrTerminal)
	_, err = store.Update(ctx, rec.ID, Patch{ArtifactURL: StringPtr("https://late.example.com")})
	require.ErrorIs(t, err, ErrTerminal)

	// Metadata annotation stays allowed after the terminal transition.
	annotated, err := store.Update(ctx, rec.ID, Patch{Metadata: map[string]any{"fallback_used": true}})
	require.NoError(t, err)
	assert.Equal(t, true, annotated.Metadata["fallback_used"])
	assert.Equal(t, StatusFailed, annotated.Status)
}

func TestGetByJobID(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	rec, err := store.Create(ctx, Record{SourceText: "video script", Kind: KindVideo, JobID: "vid-42"})
	require.NoError(t, err)

	found, ok, err := store.GetByJobID(ctx, "vid-42")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec.ID, found.ID)

	_, ok, err = store.GetByJobID(ctx, "vid-missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = store.GetByJobID(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPurgeOlderThan(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	old, err := store.Create(ctx, Record{SourceText: "old", Kind: KindSpeech})
	require.NoError(t, err)
	// Age the record past the cutoff.
	store.mu.Lock()
	store.recs[old.ID].CreatedAt = time.Now().Add(-48 * time.Hour)
	store.mu.Unlock()

	_, err = store.Create(ctx, Record{SourceText: "fresh", Kind: KindSpeech})
	require.NoError(t, err)

	purged, err := store.PurgeOlderThan(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, purged)
	assert.Len(t, store.List(), 1)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	recs := []Record{
		{Kind: KindSpeech, Status: StatusCompleted, DurationSeconds: 10, ByteSize: 100},
		{Kind: KindSpeech, Status: StatusFailed},
		{Kind: KindVideo, Status: StatusCompleted, DurationSeconds: 30, ByteSize: 4000},
	}
	s := Summarize(recs)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.ByKind[KindSpeech])
	assert.Equal(t, 1, s.ByKind[KindVideo])
	assert.Equal(t, 2, s.ByStatus[StatusCompleted])
	assert.Equal(t, 40, s.TotalDurationSeconds)
	assert.Equal(t, int64(4100), s.TotalBytes)
}
