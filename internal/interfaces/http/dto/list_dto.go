package dto

import (
	"strings"

	"github.com/google/uuid"

	appintegration "github.com/listsync/backend/internal/application/integration"
	"github.com/listsync/backend/internal/domain/itemtext"
	"github.com/listsync/backend/internal/domain/shopping"
	"github.com/listsync/backend/internal/infrastructure/scheduler"
)

// AmountRequest is a quantity or per-unit size in an item request
type AmountRequest struct {
	Val  float64 `json:"val" binding:"gt=0"`
	Unit string  `json:"unit" binding:"required,max=16"`
}

func (a *AmountRequest) toDomain() *shopping.Amount {
	if a == nil {
		return nil
	}
	return shopping.NewAmount(a.Val, strings.TrimSpace(a.Unit))
}

// ItemRequest is one human edit of an internal list item. Items without an id
// are created.
type ItemRequest struct {
	ID       string         `json:"id" binding:"omitempty,max=64"`
	Name     string         `json:"name" binding:"required,max=200"`
	Checked  bool           `json:"checked"`
	Category string         `json:"category" binding:"omitempty,max=64"`
	Quantity *AmountRequest `json:"quantity"`
	PerUnit  *AmountRequest `json:"perUnit"`
}

// ToDomain converts the request, assigning a fresh id to new items
func (r ItemRequest) ToDomain() shopping.Item {
	id := strings.TrimSpace(r.ID)
	if id == "" {
		id = uuid.New().String()
	}
	return shopping.Item{
		ID:       id,
		Name:     strings.TrimSpace(r.Name),
		Checked:  r.Checked,
		Category: strings.TrimSpace(r.Category),
		Quantity: r.Quantity.toDomain(),
		PerUnit:  r.PerUnit.toDomain(),
	}
}

// PutItemsRequest upserts items of an internal list
type PutItemsRequest struct {
	Items []ItemRequest `json:"items" binding:"required,min=1,max=200,dive"`
}

// Patch builds the store patch for the request
func (r PutItemsRequest) Patch() *shopping.Patch {
	patch := shopping.NewPatch()
	for _, item := range r.Items {
		patch.Set(item.ToDomain())
	}
	return patch
}

// ItemsResponse lists the items of an internal list
type ItemsResponse struct {
	ListRef string          `json:"listRef"`
	Items   []shopping.Item `json:"items"`
	Count   int             `json:"count"`
}

// NewItemsResponse creates an ItemsResponse; a nil slice is reported as empty
func NewItemsResponse(ref string, items []shopping.Item) ItemsResponse {
	if items == nil {
		items = []shopping.Item{}
	}
	return ItemsResponse{ListRef: ref, Items: items, Count: len(items)}
}

// ParseRequest asks the item parser to read one raw entry
type ParseRequest struct {
	Text   string `json:"text" binding:"required,max=500"`
	Locale string `json:"locale" binding:"omitempty,max=16"`
}

// ParseResponse is the parser's reading plus the canonical rendering of it
type ParseResponse struct {
	itemtext.Result
	Locale   string `json:"locale"`
	Rendered string `json:"rendered"`
}

// JobResponse reports a queued sync job
type JobResponse struct {
	Job *scheduler.SyncJob `json:"job"`
}

// StatusResponse combines the engine view with the scheduler queue
type StatusResponse struct {
	Sync      appintegration.SyncStatus `json:"sync"`
	Scheduler SchedulerStatus           `json:"scheduler"`
}

// SchedulerStatus is the queue state and recent job history
type SchedulerStatus struct {
	Running bool                 `json:"running"`
	Current *scheduler.SyncJob   `json:"current,omitempty"`
	Queued  []scheduler.JobKind  `json:"queued"`
	History []*scheduler.SyncJob `json:"history"`
}
