package integration

import (
	"time"
)

// PassResult summarizes one reconciliation pass
type PassResult struct {
	Direction string    `json:"direction"`
	StartedAt time.Time `json:"startedAt"`
	Duration  string    `json:"duration"`
	// Skipped is set when the pass ended early without touching any state
	Skipped    bool   `json:"skipped"`
	SkipReason string `json:"skipReason,omitempty"`
	// Internal item changes
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
	// External commands
	Commands       int `json:"commands"`
	CommandsFailed int `json:"commandsFailed"`
	// Pending create bookkeeping
	Adopted int    `json:"adopted"`
	Retried int    `json:"retried"`
	Expired int    `json:"expired"`
	Error   string `json:"error,omitempty"`
}

func (r *PassResult) skip(reason string) {
	r.Skipped = true
	r.SkipReason = reason
}

// Skip reasons
const (
	SkipConnectionDown = "connection_down"
	SkipEmptyGuard     = "empty_snapshot_guard"
	SkipNoCategories   = "no_categories"
	SkipRetentionOff   = "retention_disabled"
)

// SyncStatus is a point-in-time view of an engine
type SyncStatus struct {
	MessageRef     string                 `json:"messageRef"`
	SnapshotID     string                 `json:"snapshotId"`
	Running        bool                   `json:"running"`
	MappedItems    int                    `json:"mappedItems"`
	PendingCreates int                    `json:"pendingCreates"`
	CheckedItems   int                    `json:"checkedItems"`
	EmptyStreak    int                    `json:"emptyStreak"`
	LastPasses     map[string]*PassResult `json:"lastPasses"`
	TotalPasses    int64                  `json:"totalPasses"`
	FailedPasses   int64                  `json:"failedPasses"`
}
