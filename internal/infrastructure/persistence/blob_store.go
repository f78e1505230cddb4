package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/listsync/backend/internal/domain/integration"
	"github.com/listsync/backend/internal/infrastructure/persistence/models"
)

// AllModels returns every model managed by this package
func AllModels() []any {
	return []any{
		&models.BlobModel{},
		&models.ShoppingListModel{},
		&models.ShoppingListItemModel{},
	}
}

// GormBlobStore implements integration.BlobStore on a SQL table
type GormBlobStore struct {
	db *gorm.DB
}

// NewGormBlobStore creates a new GormBlobStore
func NewGormBlobStore(db *gorm.DB) *GormBlobStore {
	return &GormBlobStore{db: db}
}

// Get returns the blob stored under key
func (s *GormBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	var model models.BlobModel
	err := s.db.WithContext(ctx).Where("blob_key = ?", key).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to read blob %s: %w", key, err)
	}
	return model.Data, nil
}

// Put stores a blob, replacing any previous value
func (s *GormBlobStore) Put(ctx context.Context, key string, data []byte) error {
	model := models.BlobModel{
		Key:       key,
		Data:      data,
		UpdatedAt: time.Now(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "blob_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&model).Error
	if err != nil {
		return fmt.Errorf("failed to write blob %s: %w", key, err)
	}
	return nil
}

// Delete removes a blob
func (s *GormBlobStore) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("blob_key = ?", key).Delete(&models.BlobModel{}).Error; err != nil {
		return fmt.Errorf("failed to delete blob %s: %w", key, err)
	}
	return nil
}

// Ensure GormBlobStore implements the interface
var _ integration.BlobStore = (*GormBlobStore)(nil)
