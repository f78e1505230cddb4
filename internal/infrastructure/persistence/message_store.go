package persistence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/listsync/backend/internal/domain/shopping"
	"github.com/listsync/backend/internal/infrastructure/persistence/models"
)

// GormMessageStore implements shopping.MessageStore on SQL tables.
// Items keep their insertion order; new items from a patch are appended
// in id order.
type GormMessageStore struct {
	db *gorm.DB
}

// NewGormMessageStore creates a new GormMessageStore
func NewGormMessageStore(db *gorm.DB) *GormMessageStore {
	return &GormMessageStore{db: db}
}

// GetItems returns the items of a list in position order
func (s *GormMessageStore) GetItems(ctx context.Context, ref string) ([]shopping.Item, error) {
	db := s.db.WithContext(ctx)
	if err := findList(db, ref); err != nil {
		return nil, err
	}

	var rows []models.ShoppingListItemModel
	if err := db.Where("list_ref = ?", ref).Order("position ASC, item_id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load items of %s: %w", ref, err)
	}

	items := make([]shopping.Item, len(rows))
	for i := range rows {
		items[i] = rows[i].ToDomain()
	}
	return items, nil
}

// ApplyPatch deletes and upserts items in one transaction
func (s *GormMessageStore) ApplyPatch(ctx context.Context, ref string, patch *shopping.Patch) error {
	if patch.IsEmpty() {
		return nil
	}
	for _, item := range patch.SetItems {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("%w: %s: %w", shopping.ErrInvalidItem, item.ID, err)
		}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := findList(tx, ref); err != nil {
			return err
		}

		if len(patch.DeleteItems) > 0 {
			err := tx.Where("list_ref = ? AND item_id IN ?", ref, patch.DeleteItems).
				Delete(&models.ShoppingListItemModel{}).Error
			if err != nil {
				return fmt.Errorf("failed to delete items: %w", err)
			}
		}

		if len(patch.SetItems) > 0 {
			if err := upsertItems(tx, ref, patch.SetItems); err != nil {
				return err
			}
		}

		return tx.Model(&models.ShoppingListModel{}).
			Where("ref = ?", ref).
			Update("updated_at", time.Now()).Error
	})
}

func upsertItems(tx *gorm.DB, ref string, set map[string]shopping.Item) error {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var existing []string
	if err := tx.Model(&models.ShoppingListItemModel{}).
		Where("list_ref = ? AND item_id IN ?", ref, ids).
		Pluck("item_id", &existing).Error; err != nil {
		return fmt.Errorf("failed to look up items: %w", err)
	}
	present := make(map[string]bool, len(existing))
	for _, id := range existing {
		present[id] = true
	}

	var maxPos int
	if err := tx.Model(&models.ShoppingListItemModel{}).
		Where("list_ref = ?", ref).
		Select("COALESCE(MAX(position), -1)").
		Scan(&maxPos).Error; err != nil {
		return fmt.Errorf("failed to read item positions: %w", err)
	}

	now := time.Now()
	rows := make([]*models.ShoppingListItemModel, 0, len(ids))
	for _, id := range ids {
		row := models.ShoppingListItemModelFromDomain(ref, set[id])
		row.CreatedAt = now
		row.UpdatedAt = now
		if !present[id] {
			maxPos++
			row.Position = maxPos
		}
		rows = append(rows, row)
	}

	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "list_ref"}, {Name: "item_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "checked", "category",
			"quantity_val", "quantity_unit", "per_unit_val", "per_unit_unit",
			"updated_at",
		}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to write items: %w", err)
	}
	return nil
}

// CreateList creates an empty list
func (s *GormMessageStore) CreateList(ctx context.Context, ref string, meta shopping.ListMetadata) error {
	if ref == "" {
		return shopping.ErrInvalidListRef
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := findList(tx, ref)
		if err == nil {
			return shopping.ErrListExists
		}
		if !errors.Is(err, shopping.ErrListNotFound) {
			return err
		}

		now := time.Now()
		model := models.ShoppingListModel{
			Ref:       ref,
			Name:      meta.Name,
			Owner:     meta.Owner,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Create(&model).Error; err != nil {
			return fmt.Errorf("failed to create list %s: %w", ref, err)
		}
		return nil
	})
}

// RemoveList deletes a list and its items. Removing an absent list is not an error.
func (s *GormMessageStore) RemoveList(ctx context.Context, ref string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("list_ref = ?", ref).Delete(&models.ShoppingListItemModel{}).Error; err != nil {
			return fmt.Errorf("failed to delete items of %s: %w", ref, err)
		}
		if err := tx.Where("ref = ?", ref).Delete(&models.ShoppingListModel{}).Error; err != nil {
			return fmt.Errorf("failed to delete list %s: %w", ref, err)
		}
		return nil
	})
}

func findList(db *gorm.DB, ref string) error {
	var count int64
	if err := db.Model(&models.ShoppingListModel{}).Where("ref = ?", ref).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to look up list %s: %w", ref, err)
	}
	if count == 0 {
		return shopping.ErrListNotFound
	}
	return nil
}

// Ensure GormMessageStore implements the interface
var _ shopping.MessageStore = (*GormMessageStore)(nil)
