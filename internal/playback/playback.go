// Package playback manages on-device speech playback. At most one piece
// of audio plays at a time: starting new playback stops whatever was
// playing before it.
package playback

import (
	"context"
	"sync"
)

// Handle controls one in-progress playback.
type Handle interface {
	Stop()
}

// Speaker starts on-device speech synthesis for the given text. It is the
// last-resort voice path when every remote synthesizer is unavailable.
type Speaker interface {
	Speak(ctx context.Context, text string) (Handle, error)
}

// Slot serializes playback so only one handle is live at a time.
type Slot struct {
	mu      sync.Mutex
	current Handle
}

// NewSlot returns an empty slot.
func NewSlot() *Slot {
	return &Slot{}
}

// Swap stops the current playback, if any, and installs the replacement.
// A nil replacement just clears the slot.
func (s *Slot) Swap(next Handle) {
	s.mu.Lock()
	prev := s.current
	s.current = next
	s.mu.Unlock()
	if prev != nil {
		prev.Stop()
	}
}

// Clear stops and drops the current playback.
func (s *Slot) Clear() {
	s.Swap(nil)
}

// Busy reports whether the slot holds a live handle.
func (s *Slot) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}
