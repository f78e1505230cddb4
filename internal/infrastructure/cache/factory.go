package cache

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/listsync/backend/internal/domain/integration"
	"github.com/listsync/backend/internal/infrastructure/config"
)

// BlobStoreFactory creates Redis-backed blob stores with an optional in-memory fallback
type BlobStoreFactory struct {
	redisConfig           config.RedisConfig
	keyPrefix             string
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// BlobStoreFactoryOption is a functional option for configuring the factory
type BlobStoreFactoryOption func(*BlobStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) BlobStoreFactoryOption {
	return func(f *BlobStoreFactory) {
		f.logger = logger
	}
}

// WithKeyPrefix sets the Redis key prefix
func WithKeyPrefix(prefix string) BlobStoreFactoryOption {
	return func(f *BlobStoreFactory) {
		f.keyPrefix = prefix
	}
}

// WithInMemoryFallback controls whether to fall back to in-memory store when Redis is unavailable.
// Default is false.
func WithInMemoryFallback(allow bool) BlobStoreFactoryOption {
	return func(f *BlobStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewBlobStoreFactory creates a new factory
func NewBlobStoreFactory(cfg config.RedisConfig, opts ...BlobStoreFactoryOption) *BlobStoreFactory {
	f := &BlobStoreFactory{
		redisConfig: cfg,
		logger:      zap.NewNop(),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateStore tries Redis first and falls back to memory when allowed
func (f *BlobStoreFactory) CreateStore() (integration.BlobStore, error) {
	store, err := NewRedisBlobStore(f.redisConfig)
	if err == nil {
		if f.keyPrefix != "" {
			store.keyPrefix = f.keyPrefix
		}
		f.logger.Info("Using Redis blob store", zap.String("addr", f.redisConfig.Addr()))
		return store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for blob persistence but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory blob store. "+
		"Mappings will not survive a restart.",
		zap.Error(err),
	)
	return NewInMemoryBlobStore(), nil
}
