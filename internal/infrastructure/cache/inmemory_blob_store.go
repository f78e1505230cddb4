package cache

import (
	"bytes"
	"context"
	"sync"

	"github.com/listsync/backend/internal/domain/integration"
)

// InMemoryBlobStore implements BlobStore using an in-memory map.
// This is suitable for single-instance deployments and testing; state is
// lost on restart.
type InMemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewInMemoryBlobStore creates a new in-memory blob store
func NewInMemoryBlobStore() *InMemoryBlobStore {
	return &InMemoryBlobStore{blobs: make(map[string][]byte)}
}

// Get returns a copy of the blob stored under key
func (s *InMemoryBlobStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.blobs[key]
	if !ok {
		return nil, integration.ErrBlobNotFound
	}
	return bytes.Clone(data), nil
}

// Put stores a copy of data under key
func (s *InMemoryBlobStore) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blobs[key] = bytes.Clone(data)
	return nil
}

// Delete removes a blob
func (s *InMemoryBlobStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.blobs, key)
	return nil
}

// Size returns the number of stored blobs (for testing/monitoring)
func (s *InMemoryBlobStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

// Ensure InMemoryBlobStore implements BlobStore
var _ integration.BlobStore = (*InMemoryBlobStore)(nil)
