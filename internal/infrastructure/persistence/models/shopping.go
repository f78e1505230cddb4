package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/listsync/backend/internal/domain/shopping"
)

// ShoppingListModel is the persistence model for an internal list
type ShoppingListModel struct {
	Ref       string    `gorm:"type:varchar(255);primaryKey"`
	Name      string    `gorm:"type:varchar(255);not null"`
	Owner     string    `gorm:"type:varchar(255)"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ShoppingListModel) TableName() string {
	return "shopping_lists"
}

// ShoppingListItemModel is the persistence model for one line item.
// Position keeps insertion order within a list.
type ShoppingListItemModel struct {
	ListRef      string              `gorm:"type:varchar(255);primaryKey"`
	ItemID       string              `gorm:"type:varchar(255);primaryKey"`
	Position     int                 `gorm:"not null;default:0;index:idx_shopping_items_position"`
	Name         string              `gorm:"type:text;not null"`
	Checked      bool                `gorm:"not null;default:false"`
	Category     string              `gorm:"type:varchar(100)"`
	QuantityVal  decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	QuantityUnit string              `gorm:"type:varchar(20)"`
	PerUnitVal   decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	PerUnitUnit  string              `gorm:"type:varchar(20)"`
	CreatedAt    time.Time           `gorm:"not null"`
	UpdatedAt    time.Time           `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ShoppingListItemModel) TableName() string {
	return "shopping_list_items"
}

// ToDomain converts the persistence model to a domain Item
func (m *ShoppingListItemModel) ToDomain() shopping.Item {
	return shopping.Item{
		ID:       m.ItemID,
		Name:     m.Name,
		Checked:  m.Checked,
		Category: m.Category,
		Quantity: amountToDomain(m.QuantityVal, m.QuantityUnit),
		PerUnit:  amountToDomain(m.PerUnitVal, m.PerUnitUnit),
	}
}

// FromDomain populates the persistence model from a domain Item
func (m *ShoppingListItemModel) FromDomain(listRef string, item shopping.Item) {
	m.ListRef = listRef
	m.ItemID = item.ID
	m.Name = item.Name
	m.Checked = item.Checked
	m.Category = item.Category
	m.QuantityVal, m.QuantityUnit = amountFromDomain(item.Quantity)
	m.PerUnitVal, m.PerUnitUnit = amountFromDomain(item.PerUnit)
}

// ShoppingListItemModelFromDomain creates a new persistence model from a domain Item
func ShoppingListItemModelFromDomain(listRef string, item shopping.Item) *ShoppingListItemModel {
	m := &ShoppingListItemModel{}
	m.FromDomain(listRef, item)
	return m
}

func amountToDomain(val decimal.NullDecimal, unit string) *shopping.Amount {
	if !val.Valid {
		return nil
	}
	f, _ := val.Decimal.Float64()
	return shopping.NewAmount(f, unit)
}

func amountFromDomain(a *shopping.Amount) (decimal.NullDecimal, string) {
	if a == nil {
		return decimal.NullDecimal{}, ""
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(a.Val)), a.Unit
}
