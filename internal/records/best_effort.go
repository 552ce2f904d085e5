package records

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/serenitylab/meditation-pipeline/internal/telemetry"
)

// BestEffort wraps a Store so persistence failures never reach the
// pipeline. When the underlying store is unavailable (or nil) it fabricates
// in-memory records with locally generated identifiers so each stage still
// has a record to annotate. This is a documented degraded mode, not an
// error.
type BestEffort struct {
	store   Store
	local   *MemoryStore
	emitter telemetry.Emitter

	mu      sync.Mutex
	localID map[string]bool
}

// NewBestEffort wraps a store. A nil store means fully local operation.
func NewBestEffort(store Store, emitter telemetry.Emitter) *BestEffort {
	if emitter == nil {
		emitter = telemetry.Noop{}
	}
	return &BestEffort{
		store:   store,
		local:   NewMemoryStore(),
		emitter: emitter,
		localID: make(map[string]bool),
	}
}

// Create persists a record, falling back to a fabricated local one.
func (b *BestEffort) Create(ctx context.Context, rec Record) Record {
	if b.store != nil {
		created, err := b.store.Create(ctx, rec)
		if err == nil {
			return created
		}
		b.emitter.EmitLog("warn", "record create failed, continuing without persistence",
			map[string]string{"error": err.Error()},
			telemetry.Correlation{Stage: string(rec.Kind)})
	}
	rec.ID = localID()
	created, _ := b.local.Create(ctx, rec)
	b.mu.Lock()
	b.localID[created.ID] = true
	b.mu.Unlock()
	return created
}

// Update applies a patch, swallowing store failures.
func (b *BestEffort) Update(ctx context.Context, id string, patch Patch) {
	if id == "" {
		return
	}
	b.mu.Lock()
	isLocal := b.localID[id]
	b.mu.Unlock()

	var err error
	if isLocal || b.store == nil {
		_, err = b.local.Update(ctx, id, patch)
	} else {
		_, err = b.store.Update(ctx, id, patch)
	}
	if err != nil {
		b.emitter.EmitLog("warn", "record update failed, continuing",
			map[string]string{"error": err.Error()},
			telemetry.Correlation{RecordID: id})
	}
}

// GetByJobID looks a record up in both the remote and local stores.
func (b *BestEffort) GetByJobID(ctx context.Context, jobID string) (Record, bool) {
	if b.store != nil {
		rec, ok, err := b.store.GetByJobID(ctx, jobID)
		if err == nil && ok {
			return rec, true
		}
		if err != nil {
			b.emitter.EmitLog("warn", "record lookup failed, continuing",
				map[string]string{"error": err.Error()},
				telemetry.Correlation{JobID: jobID})
		}
	}
	rec, ok, _ := b.local.GetByJobID(ctx, jobID)
	return rec, ok
}

// localID fabricates a timestamp-based identifier for degraded operation.
func localID() string {
	return fmt.Sprintf("local-%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}
