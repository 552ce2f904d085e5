package records

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serenitylab/meditation-pipeline/internal/telemetry"
)

// brokenStore fails every call, simulating an unreachable record service.
type brokenStore struct{}

func (brokenStore) Create(context.Context, Record) (Record, error) {
	return Record{}, errors.New("store unavailable")
}

func (brokenStore) Update(context.Context, string, Patch) (Record, error) {
	return Record{}, errors.New("store unavailable")
}

func (brokenStore) GetByJobID(context.Context, string) (Record, bool, error) {
	return Record{}, false, errors.New("store unavailable")
}

func TestBestEffortFabricatesLocalRecordOnFailure(t *testing.T) {
	t.Parallel()

	sink := telemetry.NewMemorySink()
	pipe := telemetry.NewPipeline(sink, telemetry.Config{})
	be := NewBestEffort(brokenStore{}, pipe)

	rec := be.Create(context.Background(), Record{SourceText: "hi", Kind: KindReply})
	require.NotEmpty(t, rec.ID)
	assert.True(t, strings.HasPrefix(rec.ID, "local-"), "expected locally fabricated id, got %s", rec.ID)

	// Updates on fabricated records stay local and never error.
	be.Update(context.Background(), rec.ID, Patch{Status: StatusPtr(StatusCompleted)})

	require.NoError(t, pipe.Close())
	events := sink.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, "warn", events[0].Log.Severity)
}

func TestBestEffortPrefersRemoteStore(t *testing.T) {
	t.Parallel()

	remote := NewMemoryStore()
	be := NewBestEffort(remote, nil)

	rec := be.Create(context.Background(), Record{SourceText: "hi", Kind: KindSpeech, JobID: "vid-1"})
	assert.False(t, strings.HasPrefix(rec.ID, "local-"))

	be.Update(context.Background(), rec.ID, Patch{Status: StatusPtr(StatusCompleted)})
	found, ok := be.GetByJobID(context.Background(), "vid-1")
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, found.Status)
}

func TestBestEffortNilStoreOperatesLocally(t *testing.T) {
	t.Parallel()

	be := NewBestEffort(nil, nil)
	rec := be.Create(context.Background(), Record{SourceText: "hi", Kind: KindVideo, JobID: "vid-2"})
	require.NotEmpty(t, rec.ID)

	found, ok := be.GetByJobID(context.Background(), "vid-2")
	require.True(t, ok)
	assert.Equal(t, rec.ID, found.ID)
}
