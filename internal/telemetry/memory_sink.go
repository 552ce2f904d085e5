package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"sync"
)

// MemorySink is a deterministic in-memory sink used by tests.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

// NewMemorySink returns an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{events: make([]Event, 0, 64)}
}

// Export appends an event in memory.
func (s *MemorySink) Export(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of all exported events.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// WriterSink renders events as JSON lines to an io.Writer.
type WriterSink struct {
	mu  sync.Mutex
	out io.Writer
}

// NewWriterSink wraps a writer, typically os.Stderr.
func NewWriterSink(out io.Writer) *WriterSink {
	return &WriterSink{out: out}
}

// Export writes one JSON line per event.
func (s *WriterSink) Export(_ context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.out.Write(append(payload, '\n'))
	return err
}
