package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/listsync/backend/internal/domain/integration"
	"github.com/listsync/backend/internal/domain/shopping"
)

// DefaultKeyPrefix namespaces blob keys when no prefix is configured
const DefaultKeyPrefix = "listsync"

// MappingKey returns the blob key of a list's mapping record
func MappingKey(prefix, messageRef string) string {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return prefix + ":mapping:" + messageRef
}

// CategoryKey returns the blob key of a list's category memory
func CategoryKey(prefix, messageRef string) string {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return prefix + ":categories:" + messageRef
}

// ---------------------------------------------------------------------------
// ListMappingRepository
// ---------------------------------------------------------------------------

// ListMappingRepository stores mapping records as versioned JSON blobs.
// Records that cannot be trusted load as a fresh mapping.
type ListMappingRepository struct {
	store  integration.BlobStore
	prefix string
	logger *zap.Logger
}

// NewListMappingRepository creates a new ListMappingRepository
func NewListMappingRepository(store integration.BlobStore, prefix string, logger *zap.Logger) *ListMappingRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ListMappingRepository{store: store, prefix: prefix, logger: logger}
}

// Load returns the stored mapping of a binding or a fresh one
func (r *ListMappingRepository) Load(ctx context.Context, binding integration.ListBinding) (*integration.ListMapping, error) {
	key := MappingKey(r.prefix, binding.MessageRef)
	log := r.logger.With(zap.String("list_ref", binding.MessageRef), zap.String("key", key))

	data, err := r.store.Get(ctx, key)
	if errors.Is(err, integration.ErrBlobNotFound) {
		log.Debug("No stored mapping, starting fresh")
		return integration.NewListMapping(binding), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load mapping: %w", err)
	}

	var mapping integration.ListMapping
	if err := json.Unmarshal(data, &mapping); err != nil {
		log.Warn("Stored mapping is malformed, starting fresh", zap.Error(err))
		return integration.NewListMapping(binding), nil
	}
	if mapping.Version != integration.MappingSchemaVersion {
		log.Info("Stored mapping has an outdated schema, starting fresh",
			zap.Int("version", mapping.Version),
			zap.Int("expected_version", integration.MappingSchemaVersion),
		)
		return integration.NewListMapping(binding), nil
	}
	if !mapping.BelongsTo(binding) {
		log.Warn("Stored mapping belongs to another snapshot, starting fresh",
			zap.String("stored_snapshot_id", mapping.JSONStateID),
			zap.String("snapshot_id", binding.SnapshotID),
		)
		return integration.NewListMapping(binding), nil
	}

	if removed := mapping.Repair(); removed > 0 {
		log.Warn("Repaired asymmetric mapping entries", zap.Int("removed", removed))
	}
	return &mapping, nil
}

// Save writes the mapping record
func (r *ListMappingRepository) Save(ctx context.Context, mapping *integration.ListMapping) error {
	mapping.Version = integration.MappingSchemaVersion
	data, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to encode mapping: %w", err)
	}
	if err := r.store.Put(ctx, MappingKey(r.prefix, mapping.MessageRef), data); err != nil {
		return fmt.Errorf("failed to save mapping: %w", err)
	}
	return nil
}

// Delete removes the stored mapping of a list
func (r *ListMappingRepository) Delete(ctx context.Context, messageRef string) error {
	return r.store.Delete(ctx, MappingKey(r.prefix, messageRef))
}

// ---------------------------------------------------------------------------
// CategoryMemoryRepository
// ---------------------------------------------------------------------------

// CategoryMemoryRepository stores learned categories as JSON blobs
type CategoryMemoryRepository struct {
	store  integration.BlobStore
	prefix string
	logger *zap.Logger
}

// NewCategoryMemoryRepository creates a new CategoryMemoryRepository
func NewCategoryMemoryRepository(store integration.BlobStore, prefix string, logger *zap.Logger) *CategoryMemoryRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CategoryMemoryRepository{store: store, prefix: prefix, logger: logger}
}

// Load returns the stored memory or an empty one
func (r *CategoryMemoryRepository) Load(ctx context.Context, messageRef string) (*shopping.CategoryMemory, error) {
	data, err := r.store.Get(ctx, CategoryKey(r.prefix, messageRef))
	if errors.Is(err, integration.ErrBlobNotFound) {
		return shopping.NewCategoryMemory(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load category memory: %w", err)
	}

	var memory shopping.CategoryMemory
	if err := json.Unmarshal(data, &memory); err != nil || memory.Version != shopping.CategoryMemoryVersion {
		r.logger.Warn("Discarding unreadable category memory",
			zap.String("list_ref", messageRef),
			zap.Int("version", memory.Version),
			zap.Error(err),
		)
		return shopping.NewCategoryMemory(), nil
	}
	if memory.Learned == nil {
		memory.Learned = make(map[string]string)
	}
	return &memory, nil
}

// Save writes the memory
func (r *CategoryMemoryRepository) Save(ctx context.Context, messageRef string, memory *shopping.CategoryMemory) error {
	memory.Version = shopping.CategoryMemoryVersion
	data, err := json.Marshal(memory)
	if err != nil {
		return fmt.Errorf("failed to encode category memory: %w", err)
	}
	if err := r.store.Put(ctx, CategoryKey(r.prefix, messageRef), data); err != nil {
		return fmt.Errorf("failed to save category memory: %w", err)
	}
	return nil
}

// Ensure the repositories implement the domain interfaces
var (
	_ integration.ListMappingRepository = (*ListMappingRepository)(nil)
	_ integration.CategoryRepository    = (*CategoryMemoryRepository)(nil)
)
