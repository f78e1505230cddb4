package integration

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// External list Errors
// ---------------------------------------------------------------------------

var (
	ErrConnectionDown    = errors.New("integration: external connection is not healthy")
	ErrMalformedSnapshot = errors.New("integration: malformed external snapshot")
	ErrEngineStopped     = errors.New("integration: sync engine stopped")
	ErrInvalidBinding    = errors.New("integration: invalid list binding")
)

// ---------------------------------------------------------------------------
// ListBinding
// ---------------------------------------------------------------------------

// ListBinding pairs one internal list with one external list
type ListBinding struct {
	// MessageRef is the internal list reference in the message store
	MessageRef string `json:"messageRef" validate:"required"`
	// SnapshotID is the endpoint holding the external JSON snapshot
	SnapshotID string `json:"snapshotId" validate:"required"`
	// CommandPrefix is the root of the external command endpoints
	CommandPrefix string `json:"commandPrefix" validate:"required"`
	// ConnectionID is the endpoint reporting connection health. Empty means always healthy.
	ConnectionID string `json:"connectionId,omitempty"`
	// DisplayName is used when the internal list has to be created
	DisplayName string `json:"displayName,omitempty"`
}

// Validate checks that the binding can address both sides
func (b ListBinding) Validate() error {
	if strings.TrimSpace(b.MessageRef) == "" ||
		strings.TrimSpace(b.SnapshotID) == "" ||
		strings.TrimSpace(b.CommandPrefix) == "" {
		return ErrInvalidBinding
	}
	return nil
}

// CreateCommand is the endpoint that adds an external item from a text value
func (b ListBinding) CreateCommand() string {
	return b.CommandPrefix + ".#New"
}

// ValueCommand is the endpoint that rewrites an external item's text
func (b ListBinding) ValueCommand(externalID string) string {
	return b.itemCommand(externalID, "value")
}

// CompletedCommand is the endpoint that sets an external item's completed flag
func (b ListBinding) CompletedCommand(externalID string) string {
	return b.itemCommand(externalID, "completed")
}

// DeleteCommand is the endpoint that removes an external item
func (b ListBinding) DeleteCommand(externalID string) string {
	return b.itemCommand(externalID, "#delete")
}

func (b ListBinding) itemCommand(externalID, field string) string {
	return b.CommandPrefix + ".items." + externalID + "." + field
}

// ---------------------------------------------------------------------------
// ExternalItem
// ---------------------------------------------------------------------------

// ExternalItem is an item as reported by the external snapshot
type ExternalItem struct {
	ID        string `json:"id"`
	Value     string `json:"value"`
	Completed bool   `json:"completed"`
	// CreatedAt and UpdatedAt are epoch-ms; zero when not reported
	CreatedAt int64 `json:"createdDateTime,omitempty"`
	UpdatedAt int64 `json:"updatedDateTime,omitempty"`
}

// wireItem keeps every field optional so that type errors and missing ids
// can be told apart from legitimate zero values.
type wireItem struct {
	ID        *string  `json:"id"`
	Value     *string  `json:"value"`
	Completed *bool    `json:"completed"`
	Created   *float64 `json:"createdDateTime"`
	Updated   *float64 `json:"updatedDateTime"`
}

// ParseSnapshot decodes a raw external snapshot. The top level must be a JSON
// array of objects that each carry a non-empty string id; anything else is
// rejected as a whole with ErrMalformedSnapshot. Repeated ids keep their first
// occurrence.
func ParseSnapshot(raw string) ([]ExternalItem, error) {
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: top level is not an array", ErrMalformedSnapshot)
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(trimmed, &elements); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}

	items := make([]ExternalItem, 0, len(elements))
	seen := make(map[string]struct{}, len(elements))
	for i, el := range elements {
		el = bytes.TrimSpace(el)
		if len(el) == 0 || el[0] != '{' {
			return nil, fmt.Errorf("%w: element %d is not an object", ErrMalformedSnapshot, i)
		}
		var w wireItem
		if err := json.Unmarshal(el, &w); err != nil {
			return nil, fmt.Errorf("%w: element %d: %v", ErrMalformedSnapshot, i, err)
		}
		if w.ID == nil || strings.TrimSpace(*w.ID) == "" {
			return nil, fmt.Errorf("%w: element %d has no id", ErrMalformedSnapshot, i)
		}
		if _, dup := seen[*w.ID]; dup {
			continue
		}
		seen[*w.ID] = struct{}{}

		item := ExternalItem{ID: *w.ID}
		if w.Value != nil {
			item.Value = *w.Value
		}
		if w.Completed != nil {
			item.Completed = *w.Completed
		}
		if w.Created != nil {
			item.CreatedAt = int64(*w.Created)
		}
		if w.Updated != nil {
			item.UpdatedAt = int64(*w.Updated)
		}
		items = append(items, item)
	}
	return items, nil
}

// Fingerprint identifies a raw snapshot payload
func Fingerprint(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// ---------------------------------------------------------------------------
// CommandTransport Port
// ---------------------------------------------------------------------------

// ConnectionHealth is the tri-state health of the external connection
type ConnectionHealth int

const (
	// HealthUnknown means health could not be determined
	HealthUnknown ConnectionHealth = iota
	// HealthHealthy means the external system is connected
	HealthHealthy
	// HealthDown means the external system reported itself disconnected
	HealthDown
)

// String returns the string representation of ConnectionHealth
func (h ConnectionHealth) String() string {
	switch h {
	case HealthHealthy:
		return "healthy"
	case HealthDown:
		return "down"
	default:
		return "unknown"
	}
}

// CommandTransport reads external snapshots and writes side-effecting commands.
type CommandTransport interface {
	// ReadSnapshot returns the raw JSON value of a snapshot endpoint
	ReadSnapshot(ctx context.Context, snapshotID string) (string, error)

	// WriteCommand writes a value to a command endpoint. Callers treat
	// failures as best-effort and keep going.
	WriteCommand(ctx context.Context, commandID string, value any) error

	// ConnectionHealth reports the health of a connection endpoint
	ConnectionHealth(ctx context.Context, connectionID string) (ConnectionHealth, error)
}
