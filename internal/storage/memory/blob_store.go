// Package memory keeps snapshot objects in process memory. It backs the "memory"
// storage backend and the tests.
package memory

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
)

type object struct {
	data        []byte
	contentType string
}

// BlobStore is a map of object key to contents guarded by a RWMutex.
type BlobStore struct {
	mu      sync.RWMutex
	objects map[string]object
}

// NewBlobStore returns an empty store.
func NewBlobStore() *BlobStore {
	return &BlobStore{objects: make(map[string]object)}
}

// PutObject stores the contents of r under key, replacing any previous object,
// and returns a memory:// URI.
func (s *BlobStore) PutObject(_ context.Context, key, contentType string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read object %s: %w", key, err)
	}
	s.mu.Lock()
	s.objects[key] = object{data: data, contentType: contentType}
	s.mu.Unlock()
	return "memory://" + key, nil
}

// Object returns a copy of the contents stored under key.
func (s *BlobStore) Object(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, false
	}
	return slices.Clone(obj.data), true
}

// ContentType returns the content type recorded for key.
func (s *BlobStore) ContentType(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.objects[key].contentType
}

// Paths lists the stored keys in sorted order.
func (s *BlobStore) Paths() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	slices.Sort(keys)
	return keys
}
