package shopping

import (
	"context"
	"errors"
	"strings"
)

// ---------------------------------------------------------------------------
// Shopping Errors
// ---------------------------------------------------------------------------

var (
	ErrListNotFound     = errors.New("shopping: list not found")
	ErrListExists       = errors.New("shopping: list already exists")
	ErrInvalidItem      = errors.New("shopping: invalid item")
	ErrInvalidItemID    = errors.New("shopping: item id is required")
	ErrInvalidItemName  = errors.New("shopping: item name is required")
	ErrInvalidAmount    = errors.New("shopping: amount must be positive with a unit")
	ErrInvalidListRef   = errors.New("shopping: list reference is required")
	ErrClassifierFailed = errors.New("shopping: classification failed")
)

// UnitPieces is the neutral count unit used when no packaging word is known.
const UnitPieces = "pcs"

// ---------------------------------------------------------------------------
// Amount Value Object
// ---------------------------------------------------------------------------

// Amount is a numeric value with a unit, e.g. 500 g or 6 pcs.
type Amount struct {
	Val  float64 `json:"val"`
	Unit string  `json:"unit"`
}

// NewAmount creates an amount, returning nil for non-positive values
func NewAmount(val float64, unit string) *Amount {
	if val <= 0 || unit == "" {
		return nil
	}
	return &Amount{Val: val, Unit: unit}
}

// Validate checks that the amount is usable
func (a *Amount) Validate() error {
	if a == nil {
		return nil
	}
	if a.Val <= 0 || strings.TrimSpace(a.Unit) == "" {
		return ErrInvalidAmount
	}
	return nil
}

// Equal compares two optional amounts
func (a *Amount) Equal(b *Amount) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Val == b.Val && a.Unit == b.Unit
}

// ---------------------------------------------------------------------------
// Item Entity
// ---------------------------------------------------------------------------

// Item is a line item of the internally owned list.
type Item struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Checked  bool    `json:"checked"`
	Category string  `json:"category,omitempty"`
	Quantity *Amount `json:"quantity,omitempty"`
	PerUnit  *Amount `json:"perUnit,omitempty"`
}

// Validate validates the item
func (i *Item) Validate() error {
	if strings.TrimSpace(i.ID) == "" {
		return ErrInvalidItemID
	}
	if strings.TrimSpace(i.Name) == "" {
		return ErrInvalidItemName
	}
	if err := i.Quantity.Validate(); err != nil {
		return err
	}
	return i.PerUnit.Validate()
}

// Equal reports whether two items carry the same content
func (i Item) Equal(o Item) bool {
	return i.ID == o.ID &&
		i.Name == o.Name &&
		i.Checked == o.Checked &&
		i.Category == o.Category &&
		i.Quantity.Equal(o.Quantity) &&
		i.PerUnit.Equal(o.PerUnit)
}

// Clone returns a deep copy of the item
func (i Item) Clone() Item {
	c := i
	if i.Quantity != nil {
		q := *i.Quantity
		c.Quantity = &q
	}
	if i.PerUnit != nil {
		p := *i.PerUnit
		c.PerUnit = &p
	}
	return c
}

// IndexByID builds an id lookup for a slice of items
func IndexByID(items []Item) map[string]Item {
	index := make(map[string]Item, len(items))
	for _, item := range items {
		index[item.ID] = item
	}
	return index
}

// ---------------------------------------------------------------------------
// Patch
// ---------------------------------------------------------------------------

// Patch is a set/delete diff applied to a list in one step.
type Patch struct {
	SetItems    map[string]Item `json:"setItems,omitempty"`
	DeleteItems []string        `json:"deleteItems,omitempty"`
}

// NewPatch creates an empty patch
func NewPatch() *Patch {
	return &Patch{SetItems: make(map[string]Item)}
}

// Set schedules an item to be written; a pending delete for the same id is dropped
func (p *Patch) Set(item Item) {
	if p.SetItems == nil {
		p.SetItems = make(map[string]Item)
	}
	p.SetItems[item.ID] = item
	for i, existing := range p.DeleteItems {
		if existing == item.ID {
			p.DeleteItems = append(p.DeleteItems[:i], p.DeleteItems[i+1:]...)
			break
		}
	}
}

// Delete schedules an item for removal; a pending set for the same id is dropped
func (p *Patch) Delete(id string) {
	delete(p.SetItems, id)
	for _, existing := range p.DeleteItems {
		if existing == id {
			return
		}
	}
	p.DeleteItems = append(p.DeleteItems, id)
}

// IsEmpty reports whether the patch would change nothing
func (p *Patch) IsEmpty() bool {
	return p == nil || (len(p.SetItems) == 0 && len(p.DeleteItems) == 0)
}

// ---------------------------------------------------------------------------
// List and MessageStore
// ---------------------------------------------------------------------------

// ListMetadata describes a list when it is created
type ListMetadata struct {
	Name  string `json:"name"`
	Owner string `json:"owner,omitempty"`
}

// MessageStore owns internal lists. A missing list is reported as ErrListNotFound.
type MessageStore interface {
	GetItems(ctx context.Context, ref string) ([]Item, error)
	ApplyPatch(ctx context.Context, ref string, patch *Patch) error
	CreateList(ctx context.Context, ref string, meta ListMetadata) error
	RemoveList(ctx context.Context, ref string) error
}
