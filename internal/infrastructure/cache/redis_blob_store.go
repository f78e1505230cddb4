package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/listsync/backend/internal/domain/integration"
	"github.com/listsync/backend/internal/infrastructure/config"
)

const defaultRedisKeyPrefix = "listsync:blob:"

// RedisBlobStore implements BlobStore using Redis.
// This is suitable for deployments where several processes share sync state.
type RedisBlobStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisBlobStore connects to Redis and creates a blob store
func NewRedisBlobStore(cfg config.RedisConfig) (*RedisBlobStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisBlobStore{
		client:    client,
		keyPrefix: defaultRedisKeyPrefix,
	}, nil
}

// NewRedisBlobStoreWithClient creates a store with an existing Redis client
func NewRedisBlobStoreWithClient(client *redis.Client, keyPrefix string) *RedisBlobStore {
	if keyPrefix == "" {
		keyPrefix = defaultRedisKeyPrefix
	}
	return &RedisBlobStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Get returns the blob stored under key
func (s *RedisBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, integration.ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", key, err)
	}
	return data, nil
}

// Put stores a blob without expiry
func (s *RedisBlobStore) Put(ctx context.Context, key string, data []byte) error {
	if err := s.client.Set(ctx, s.keyPrefix+key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write blob %s: %w", key, err)
	}
	return nil
}

// Delete removes a blob
func (s *RedisBlobStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete blob %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis client
func (s *RedisBlobStore) Close() error {
	return s.client.Close()
}

// GetClient returns the underlying Redis client (for testing/monitoring)
func (s *RedisBlobStore) GetClient() *redis.Client {
	return s.client
}

// Ensure RedisBlobStore implements BlobStore
var _ integration.BlobStore = (*RedisBlobStore)(nil)
