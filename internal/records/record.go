// Package records persists one log entry per generated artifact (text
// reply, audio clip, talking-head video) and its lifecycle. Every call is
// best-effort from the pipeline's point of view; the BestEffort wrapper
// guarantees the pipeline proceeds when the store is unavailable.
package records

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind labels the generated artifact.
type Kind string

const (
	KindSpeech Kind = "speech"
	KindVideo  Kind = "talking_head_video"
	KindReply  Kind = "text_reply"
)

// Status tracks the record lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether a status accepts further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Record describes one generated artifact tied to a user session.
type Record struct {
	ID          string         `json:"id"`
	SubjectName string         `json:"user_name,omitempty"`
	SourceText  string         `json:"message_text"`
	Kind        Kind           `json:"artifact_kind"`
	Status      Status         `json:"status"`
	ArtifactURL string         `json:"artifact_url,omitempty"`
	JobID       string         `json:"job_id,omitempty"`
	// DurationSeconds is a character-count display estimate, not measured
	// media duration.
	DurationSeconds int            `json:"duration_seconds,omitempty"`
	ByteSize        int64          `json:"byte_size,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Patch carries a partial record update. Nil fields are left untouched.
type Patch struct {
	Status          *Status
	ArtifactURL     *string
	JobID           *string
	DurationSeconds *int
	ByteSize        *int64
	Metadata        map[string]any
}

// ErrTerminal rejects lifecycle mutations on completed or failed records.
// Metadata annotation remains allowed.
var ErrTerminal = errors.New("record is terminal")

// ErrNotFound reports an unknown record identifier.
var ErrNotFound = errors.New("record not found")

// apply mutates a record in place, enforcing the lifecycle invariants:
// status moves only pending→completed or pending→failed, and a terminal
// record accepts metadata only.
func apply(rec *Record, patch Patch, now time.Time) error {
	if rec.Status.Terminal() {
		if patch.Status != nil || patch.ArtifactURL != nil || patch.JobID != nil ||
			patch.DurationSeconds != nil || patch.ByteSize != nil {
			return fmt.Errorf("%w: %s", ErrTerminal, rec.ID)
		}
	}
	if patch.Status != nil {
		next := *patch.Status
		if next == StatusPending && rec.Status != StatusPending {
			return fmt.Errorf("%w: cannot return %s to pending", ErrTerminal, rec.ID)
		}
		rec.Status = next
	}
	if patch.ArtifactURL != nil {
		rec.ArtifactURL = *patch.ArtifactURL
	}
	if patch.JobID != nil {
		rec.JobID = *patch.JobID
	}
	if patch.DurationSeconds != nil {
		rec.DurationSeconds = *patch.DurationSeconds
	}
	if patch.ByteSize != nil {
		rec.ByteSize = *patch.ByteSize
	}
	if len(patch.Metadata) > 0 {
		if rec.Metadata == nil {
			rec.Metadata = make(map[string]any, len(patch.Metadata))
		}
		for k, v := range patch.Metadata {
			rec.Metadata[k] = v
		}
	}
	rec.UpdatedAt = now
	return nil
}

// Store persists session records.
type Store interface {
	Create(ctx context.Context, rec Record) (Record, error)
	Update(ctx context.Context, id string, patch Patch) (Record, error)
	GetByJobID(ctx context.Context, jobID string) (Record, bool, error)
}

// Housekeeper removes aged records. Invoked only by external housekeeping,
// never by the pipeline core.
type Housekeeper interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// Summary aggregates store contents for analytics.
type Summary struct {
	Total                int
	ByKind               map[Kind]int
	ByStatus             map[Status]int
	TotalDurationSeconds int
	TotalBytes           int64
}

// Summarize aggregates a record slice.
func Summarize(recs []Record) Summary {
	s := Summary{
		ByKind:   make(map[Kind]int),
		ByStatus: make(map[Status]int),
	}
	for _, rec := range recs {
		s.Total++
		s.ByKind[rec.Kind]++
		s.ByStatus[rec.Status]++
		s.TotalDurationSeconds += rec.DurationSeconds
		s.TotalBytes += rec.ByteSize
	}
	return s
}

// StatusPtr, StringPtr, IntPtr and Int64Ptr build Patch fields inline.
func StatusPtr(s Status) *Status { return &s }
func StringPtr(s string) *string { return &s }
func IntPtr(v int) *int          { return &v }
func Int64Ptr(v int64) *int64    { return &v }
