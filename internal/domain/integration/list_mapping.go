package integration

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ---------------------------------------------------------------------------
// ListMapping Errors
// ---------------------------------------------------------------------------

var (
	ErrMappingAsymmetric     = errors.New("integration: mapping pairs are not symmetric")
	ErrMappingPendingOverlap = errors.New("integration: item is both mapped and pending")
	ErrMappingAlreadyMapped  = errors.New("integration: item is already mapped")
	ErrMappingInvalidID      = errors.New("integration: mapping id is required")
)

// MappingSchemaVersion is the version tag of the persisted mapping record.
// Records carrying any other version are discarded on load.
const MappingSchemaVersion = 4

// ---------------------------------------------------------------------------
// PendingCreate Value Object
// ---------------------------------------------------------------------------

// PendingCreate is an internal item whose external counterpart has been
// requested but not yet observed.
type PendingCreate struct {
	// ExpectedValue is the rendered text the external item should carry
	ExpectedValue string `json:"expectedValue"`
	// Misses counts consecutive snapshots without a match
	Misses int `json:"misses"`
	// Tries counts issued create commands
	Tries int `json:"tries"`
	// Seq orders pending creates by insertion
	Seq uint64 `json:"seq"`
}

// PendingEntry pairs a pending create with its internal id
type PendingEntry struct {
	InternalID string
	PendingCreate
}

// ---------------------------------------------------------------------------
// ListMapping Entity
// ---------------------------------------------------------------------------

// ListMapping is the persisted identity map for one list binding.
// LocalToExternal and ExternalToLocal are kept as exact inverses, and no
// internal id is ever both mapped and pending.
type ListMapping struct {
	Version         int                       `json:"version"`
	MessageRef      string                    `json:"messageRef"`
	JSONStateID     string                    `json:"jsonStateId"`
	LocalToExternal map[string]string         `json:"localToExternal"`
	ExternalToLocal map[string]string         `json:"externalToLocal"`
	Pending         map[string]*PendingCreate `json:"pendingCreates"`
	// CheckedAt holds the epoch-ms an internal item was first seen checked
	CheckedAt map[string]int64 `json:"checkedAt"`
}

// NewListMapping creates an empty mapping for a binding
func NewListMapping(binding ListBinding) *ListMapping {
	return &ListMapping{
		Version:         MappingSchemaVersion,
		MessageRef:      binding.MessageRef,
		JSONStateID:     binding.SnapshotID,
		LocalToExternal: make(map[string]string),
		ExternalToLocal: make(map[string]string),
		Pending:         make(map[string]*PendingCreate),
		CheckedAt:       make(map[string]int64),
	}
}

// BelongsTo reports whether the mapping was recorded for the binding
func (m *ListMapping) BelongsTo(binding ListBinding) bool {
	return m.MessageRef == binding.MessageRef && m.JSONStateID == binding.SnapshotID
}

// ensureMaps initializes maps that were absent in a decoded record
func (m *ListMapping) ensureMaps() {
	if m.LocalToExternal == nil {
		m.LocalToExternal = make(map[string]string)
	}
	if m.ExternalToLocal == nil {
		m.ExternalToLocal = make(map[string]string)
	}
	if m.Pending == nil {
		m.Pending = make(map[string]*PendingCreate)
	}
	if m.CheckedAt == nil {
		m.CheckedAt = make(map[string]int64)
	}
}

// InternalFor returns the internal id mapped to an external id
func (m *ListMapping) InternalFor(externalID string) (string, bool) {
	id, ok := m.ExternalToLocal[externalID]
	return id, ok
}

// ExternalFor returns the external id mapped to an internal id
func (m *ListMapping) ExternalFor(internalID string) (string, bool) {
	id, ok := m.LocalToExternal[internalID]
	return id, ok
}

// Upsert records a confirmed pair. Any previous pair of either id is
// dropped and a pending create for the internal id is resolved.
func (m *ListMapping) Upsert(internalID, externalID string) error {
	if internalID == "" || externalID == "" {
		return ErrMappingInvalidID
	}
	m.ensureMaps()
	if prev, ok := m.LocalToExternal[internalID]; ok {
		delete(m.ExternalToLocal, prev)
	}
	if prev, ok := m.ExternalToLocal[externalID]; ok {
		delete(m.LocalToExternal, prev)
	}
	delete(m.Pending, internalID)
	m.LocalToExternal[internalID] = externalID
	m.ExternalToLocal[externalID] = internalID
	return nil
}

// RemoveByExternalID drops the pair of an external id and the checked
// timestamp of its internal item. It returns the internal id that was mapped.
func (m *ListMapping) RemoveByExternalID(externalID string) (string, bool) {
	internalID, ok := m.ExternalToLocal[externalID]
	if !ok {
		return "", false
	}
	delete(m.ExternalToLocal, externalID)
	delete(m.LocalToExternal, internalID)
	delete(m.CheckedAt, internalID)
	return internalID, true
}

// RemoveByInternalID forgets everything recorded for an internal id. It
// returns the external id that was mapped, if any.
func (m *ListMapping) RemoveByInternalID(internalID string) (string, bool) {
	delete(m.Pending, internalID)
	delete(m.CheckedAt, internalID)
	externalID, ok := m.LocalToExternal[internalID]
	if !ok {
		return "", false
	}
	delete(m.LocalToExternal, internalID)
	delete(m.ExternalToLocal, externalID)
	return externalID, true
}

// ---------------------------------------------------------------------------
// Pending creates
// ---------------------------------------------------------------------------

// AddPendingCreate records that a create command was issued for an internal
// item. Re-adding an existing entry updates its expected value and counts
// another try.
func (m *ListMapping) AddPendingCreate(internalID, expectedValue string) error {
	if internalID == "" {
		return ErrMappingInvalidID
	}
	if _, mapped := m.LocalToExternal[internalID]; mapped {
		return fmt.Errorf("%w: %s", ErrMappingAlreadyMapped, internalID)
	}
	m.ensureMaps()
	if p, ok := m.Pending[internalID]; ok {
		p.ExpectedValue = expectedValue
		p.Misses = 0
		p.Tries++
		return nil
	}
	m.Pending[internalID] = &PendingCreate{
		ExpectedValue: expectedValue,
		Tries:         1,
		Seq:           m.nextSeq(),
	}
	return nil
}

func (m *ListMapping) nextSeq() uint64 {
	var highest uint64
	for _, p := range m.Pending {
		if p.Seq > highest {
			highest = p.Seq
		}
	}
	return highest + 1
}

// PendingFor returns the pending create of an internal id
func (m *ListMapping) PendingFor(internalID string) (*PendingCreate, bool) {
	p, ok := m.Pending[internalID]
	return p, ok
}

// RemovePending drops a pending create
func (m *ListMapping) RemovePending(internalID string) {
	delete(m.Pending, internalID)
}

// PendingCreates lists pending creates in insertion order
func (m *ListMapping) PendingCreates() []PendingEntry {
	entries := make([]PendingEntry, 0, len(m.Pending))
	for id, p := range m.Pending {
		entries = append(entries, PendingEntry{InternalID: id, PendingCreate: *p})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Seq != entries[j].Seq {
			return entries[i].Seq < entries[j].Seq
		}
		return entries[i].InternalID < entries[j].InternalID
	})
	return entries
}

// AdoptPendingCreate matches a newly seen external item against the pending
// creates by exact value. The earliest matching entry is promoted to a
// confirmed pair and its internal id returned.
func (m *ListMapping) AdoptPendingCreate(rawValue, externalID string) (string, bool) {
	if externalID == "" {
		return "", false
	}
	if _, mapped := m.ExternalToLocal[externalID]; mapped {
		return "", false
	}
	for _, entry := range m.PendingCreates() {
		if entry.ExpectedValue != rawValue {
			continue
		}
		if err := m.Upsert(entry.InternalID, externalID); err != nil {
			return "", false
		}
		return entry.InternalID, true
	}
	return "", false
}

// ---------------------------------------------------------------------------
// Checked timestamps
// ---------------------------------------------------------------------------

// MarkChecked records the first time an item was seen checked. It reports
// whether a new timestamp was stored.
func (m *ListMapping) MarkChecked(internalID string, at time.Time) bool {
	m.ensureMaps()
	if _, ok := m.CheckedAt[internalID]; ok {
		return false
	}
	m.CheckedAt[internalID] = at.UnixMilli()
	return true
}

// CheckedSince returns when an item was first seen checked
func (m *ListMapping) CheckedSince(internalID string) (time.Time, bool) {
	ms, ok := m.CheckedAt[internalID]
	if !ok {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// ClearChecked forgets the checked timestamp. It reports whether one existed.
func (m *ListMapping) ClearChecked(internalID string) bool {
	if _, ok := m.CheckedAt[internalID]; !ok {
		return false
	}
	delete(m.CheckedAt, internalID)
	return true
}

// ---------------------------------------------------------------------------
// Queries and invariants
// ---------------------------------------------------------------------------

// ConfirmedCount returns the number of confirmed pairs
func (m *ListMapping) ConfirmedCount() int {
	return len(m.ExternalToLocal)
}

// MappedExternalIDs returns the confirmed external ids
func (m *ListMapping) MappedExternalIDs() []string {
	ids := make([]string, 0, len(m.ExternalToLocal))
	for id := range m.ExternalToLocal {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// KnownInternalIDs returns every internal id the mapping tracks, mapped or pending
func (m *ListMapping) KnownInternalIDs() []string {
	seen := make(map[string]struct{}, len(m.LocalToExternal)+len(m.Pending))
	for id := range m.LocalToExternal {
		seen[id] = struct{}{}
	}
	for id := range m.Pending {
		seen[id] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CheckSymmetry verifies that both directions are exact inverses and that
// pending and mapped ids are disjoint.
func (m *ListMapping) CheckSymmetry() error {
	if len(m.LocalToExternal) != len(m.ExternalToLocal) {
		return ErrMappingAsymmetric
	}
	for ext, local := range m.ExternalToLocal {
		if m.LocalToExternal[local] != ext {
			return fmt.Errorf("%w: external %s", ErrMappingAsymmetric, ext)
		}
	}
	for id := range m.Pending {
		if _, ok := m.LocalToExternal[id]; ok {
			return fmt.Errorf("%w: %s", ErrMappingPendingOverlap, id)
		}
	}
	return nil
}

// Repair drops every pair that is not mirrored in the other direction, every
// empty pending entry and every pending create whose internal id is already
// mapped. It returns the
// number of entries removed.
func (m *ListMapping) Repair() int {
	m.ensureMaps()
	removed := 0
	for ext, local := range m.ExternalToLocal {
		if m.LocalToExternal[local] != ext {
			delete(m.ExternalToLocal, ext)
			removed++
		}
	}
	for local, ext := range m.LocalToExternal {
		if m.ExternalToLocal[ext] != local {
			delete(m.LocalToExternal, local)
			removed++
		}
	}
	for id, p := range m.Pending {
		if p == nil {
			delete(m.Pending, id)
			removed++
			continue
		}
		if _, ok := m.LocalToExternal[id]; ok {
			delete(m.Pending, id)
			removed++
		}
	}
	return removed
}

// Clone returns a deep copy
func (m *ListMapping) Clone() *ListMapping {
	c := &ListMapping{
		Version:         m.Version,
		MessageRef:      m.MessageRef,
		JSONStateID:     m.JSONStateID,
		LocalToExternal: make(map[string]string, len(m.LocalToExternal)),
		ExternalToLocal: make(map[string]string, len(m.ExternalToLocal)),
		Pending:         make(map[string]*PendingCreate, len(m.Pending)),
		CheckedAt:       make(map[string]int64, len(m.CheckedAt)),
	}
	for k, v := range m.LocalToExternal {
		c.LocalToExternal[k] = v
	}
	for k, v := range m.ExternalToLocal {
		c.ExternalToLocal[k] = v
	}
	for k, v := range m.Pending {
		if v == nil {
			continue
		}
		p := *v
		c.Pending[k] = &p
	}
	for k, v := range m.CheckedAt {
		c.CheckedAt[k] = v
	}
	return c
}
