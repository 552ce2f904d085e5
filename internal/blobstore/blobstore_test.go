package blobstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreUploadAndGet(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	obj, err := store.Upload(context.Background(), "session-1/reply.mp3", []byte("audio-bytes"), "audio/mpeg")
	require.NoError(t, err)
	assert.Equal(t, "memory://session-1/reply.mp3", obj.URL)
	assert.Equal(t, int64(11), obj.Size)
	assert.Equal(t, "audio/mpeg", obj.ContentType)

	data, err := store.Get(context.Background(), "session-1/reply.mp3")
	require.NoError(t, err)
	assert.Equal(t, []byte("audio-bytes"), data)
}

func TestMemoryStoreUploadCopiesData(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	src := []byte("original")
	_, err := store.Upload(context.Background(), "k", src, "audio/mpeg")
	require.NoError(t, err)

	src[0] = 'X'
	data, err := store.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), data)
}

func TestMemoryStoreRejectsEmptyKey(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	_, err := store.Upload(context.Background(), "", []byte("x"), "audio/mpeg")
	assert.Error(t, err)
}

func TestMemoryStoreRemove(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	_, err := store.Upload(context.Background(), "k", []byte("x"), "audio/mpeg")
	require.NoError(t, err)

	require.NoError(t, store.Remove(context.Background(), "k"))
	_, err = store.Get(context.Background(), "k")
	assert.Error(t, err)

	assert.NoError(t, store.Remove(context.Background(), "k"))
}

func TestJoinPublicURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		base   string
		bucket string
		key    string
		want   string
	}{
		{"plain", "https://cdn.example.com", "audio", "s1/reply.mp3", "https://cdn.example.com/audio/s1/reply.mp3"},
		{"trailing slash on base", "https://cdn.example.com/", "audio", "reply.mp3", "https://cdn.example.com/audio/reply.mp3"},
		{"empty base", "", "audio", "reply.mp3", "audio/reply.mp3"},
		{"leading slash on key", "https://cdn.example.com", "audio", "/reply.mp3", "https://cdn.example.com/audio/reply.mp3"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, JoinPublicURL(tt.base, tt.bucket, tt.key))
		})
	}
}
