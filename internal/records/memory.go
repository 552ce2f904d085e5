package records

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps records in process memory. It backs tests and the
// degraded mode where no remote store is configured.
type MemoryStore struct {
	mu   sync.Mutex
	recs map[string]*Record
	now  func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: make(map[string]*Record), now: time.Now}
}

// Create assigns an identifier and stores the record.
func (s *MemoryStore) Create(_ context.Context, rec Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = StatusPending
	}
	now := s.now()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	stored := rec
	s.recs[rec.ID] = &stored
	return rec, nil
}

// Update applies a patch under the lifecycle invariants.
func (s *MemoryStore) Update(_ context.Context, id string, patch Patch) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := apply(rec, patch, s.now()); err != nil {
		return Record{}, err
	}
	return *rec, nil
}

// GetByJobID returns the record carrying a vendor job identifier.
func (s *MemoryStore) GetByJobID(_ context.Context, jobID string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.recs {
		if rec.JobID == jobID && jobID != "" {
			return *rec, true, nil
		}
	}
	return Record{}, false, nil
}

// List returns a snapshot of all records.
func (s *MemoryStore) List() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, len(s.recs))
	for _, rec := range s.recs {
		out = append(out, *rec)
	}
	return out
}

// PurgeOlderThan removes records created before the cutoff.
func (s *MemoryStore) PurgeOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	purged := 0
	for id, rec := range s.recs {
		if rec.CreatedAt.Before(cutoff) {
			delete(s.recs, id)
			purged++
		}
	}
	return purged, nil
}
