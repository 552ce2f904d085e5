package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/serenitylab/meditation-pipeline/internal/fault"
)

// NATSStore persists blobs in a NATS JetStream object store bucket.
// Public URLs are formed from a configured base that fronts the bucket,
// typically a gateway serving GET {base}/{bucket}/{key}.
type NATSStore struct {
	bucket        string
	publicBaseURL string
	store         nats.ObjectStore
}

// NewNATSStore binds to the named bucket, creating it when absent.
func NewNATSStore(js nats.JetStreamContext, bucket, publicBaseURL string) (*NATSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	store, err := js.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucket,
		Description: fmt.Sprintf("Audio artifacts for the %s bucket.", bucket),
		Storage:     nats.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) {
			return nil, fault.Wrap(fault.KindPersistence, "nats", fmt.Errorf("create bucket %q: %w", bucket, err))
		}
		store, err = js.ObjectStore(bucket)
		if err != nil {
			return nil, fault.Wrap(fault.KindPersistence, "nats", fmt.Errorf("bind bucket %q: %w", bucket, err))
		}
	}
	return &NATSStore{bucket: bucket, publicBaseURL: publicBaseURL, store: store}, nil
}

// Upload writes the blob and returns its public reference.
func (s *NATSStore) Upload(_ context.Context, key string, data []byte, contentType string) (Object, error) {
	if key == "" {
		return Object{}, fmt.Errorf("blob key is required")
	}
	meta := &nats.ObjectMeta{Name: key}
	if contentType != "" {
		meta.Headers = nats.Header{"Content-Type": []string{contentType}}
	}
	if _, err := s.store.Put(meta, bytes.NewReader(data)); err != nil {
		return Object{}, fault.Wrap(fault.KindPersistence, "nats", fmt.Errorf("put object %q: %w", key, err))
	}
	return Object{
		Key:         key,
		URL:         JoinPublicURL(s.publicBaseURL, s.bucket, key),
		ContentType: contentType,
		Size:        int64(len(data)),
	}, nil
}

// Get reads a blob back from the bucket.
func (s *NATSStore) Get(_ context.Context, key string) ([]byte, error) {
	obj, err := s.store.Get(key)
	if err != nil {
		return nil, fault.Wrap(fault.KindPersistence, "nats", fmt.Errorf("get object %q: %w", key, err))
	}
	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()
	if readErr != nil {
		return nil, fault.Wrap(fault.KindPersistence, "nats", fmt.Errorf("read object %q: %w", key, readErr))
	}
	if closeErr != nil {
		return data, fault.Wrap(fault.KindPersistence, "nats", fmt.Errorf("close object %q: %w", key, closeErr))
	}
	return data, nil
}

// Remove deletes a blob from the bucket.
func (s *NATSStore) Remove(_ context.Context, key string) error {
	if err := s.store.Delete(key); err != nil {
		if errors.Is(err, nats.ErrObjectNotFound) {
			return nil
		}
		return fault.Wrap(fault.KindPersistence, "nats", fmt.Errorf("delete object %q: %w", key, err))
	}
	return nil
}

// JoinPublicURL composes the retrievable URL for a stored object.
func JoinPublicURL(base, bucket, key string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{base, bucket, key} {
		if trimmed := strings.Trim(p, "/"); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, "/")
}
