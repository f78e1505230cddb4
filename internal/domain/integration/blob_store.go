package integration

import (
	"context"
	"errors"

	"github.com/listsync/backend/internal/domain/shopping"
)

// ErrBlobNotFound is returned by a BlobStore for an absent key
var ErrBlobNotFound = errors.New("integration: blob not found")

// BlobStore persists named JSON blobs
type BlobStore interface {
	// Get returns the blob stored under key, or ErrBlobNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores a blob, replacing any previous value
	Put(ctx context.Context, key string, data []byte) error

	// Delete removes a blob. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// ListMappingRepository loads and saves the mapping record of a binding.
// Absent, malformed, foreign or outdated records load as a fresh mapping;
// only storage failures are returned as errors.
type ListMappingRepository interface {
	Load(ctx context.Context, binding ListBinding) (*ListMapping, error)
	Save(ctx context.Context, mapping *ListMapping) error
}

// CategoryRepository loads and saves the learned category memory of a list
type CategoryRepository interface {
	Load(ctx context.Context, messageRef string) (*shopping.CategoryMemory, error)
	Save(ctx context.Context, messageRef string, memory *shopping.CategoryMemory) error
}
