// Package blobstore persists generated audio artifacts and resolves the
// public URLs the video backend consumes. The store is optional: when no
// backend is configured, the in-memory implementation hands out ephemeral
// memory:// references valid only within the current process.
package blobstore

import (
	"context"
	"fmt"
	"sync"
)

// Object describes one stored blob.
type Object struct {
	Key         string
	URL         string
	ContentType string
	Size        int64
}

// Store saves blobs and resolves retrievable references.
type Store interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (Object, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, key string) error
}

// MemoryStore keeps blobs in process memory. Its URLs use the memory://
// scheme and are not retrievable outside this process.
type MemoryStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

// NewMemoryStore returns an empty ephemeral store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Upload stores the blob and returns an ephemeral reference.
func (s *MemoryStore) Upload(_ context.Context, key string, data []byte, contentType string) (Object, error) {
	if key == "" {
		return Object{}, fmt.Errorf("blob key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	s.blobs[key] = stored
	return Object{
		Key:         key,
		URL:         "memory://" + key,
		ContentType: contentType,
		Size:        int64(len(data)),
	}, nil
}

// Get returns a stored blob.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[key]
	if !ok {
		return nil, fmt.Errorf("blob %q not found", key)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Remove deletes a stored blob. Removing an absent key is not an error.
func (s *MemoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}
