package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Direction and outcome labels used by SyncMetrics.
const (
	DirectionFromExternal = "from_external"
	DirectionToExternal   = "to_external"
	DirectionSweep        = "sweep"
	DirectionCategorize   = "categorize"

	OutcomeApplied = "applied"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// SyncMetrics tracks reconciliation passes and the commands they issue.
// A nil *SyncMetrics records nothing.
type SyncMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	passTotal       *Counter
	passDuration    *Histogram
	commandTotal    *Counter
	itemTotal       *Counter
	emptyGuardTotal *Counter
	mappedItems     *Gauge
	pendingCreates  *Gauge
}

// SyncMetricsConfig holds configuration for sync metrics.
type SyncMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewSyncMetrics creates a new SyncMetrics instance.
func NewSyncMetrics(cfg SyncMetricsConfig) (*SyncMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sm := &SyncMetrics{
		meter:  cfg.Meter,
		logger: logger,
	}

	var err error
	sm.passTotal, err = NewCounter(
		cfg.Meter,
		"listsync_pass_total",
		"Total number of reconciliation passes",
		"{passes}",
	)
	if err != nil {
		return nil, err
	}

	sm.passDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "listsync_pass_duration_seconds",
		Description: "Duration of reconciliation passes",
		Unit:        "s",
		Boundaries:  SyncPassDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	sm.commandTotal, err = NewCounter(
		cfg.Meter,
		"listsync_command_total",
		"Total number of commands written to the external list",
		"{commands}",
	)
	if err != nil {
		return nil, err
	}

	sm.itemTotal, err = NewCounter(
		cfg.Meter,
		"listsync_item_changes_total",
		"Total number of item changes applied by reconciliation",
		"{items}",
	)
	if err != nil {
		return nil, err
	}

	sm.emptyGuardTotal, err = NewCounter(
		cfg.Meter,
		"listsync_empty_snapshot_guard_total",
		"Number of empty snapshots held back by the mass-delete guard",
		"{snapshots}",
	)
	if err != nil {
		return nil, err
	}

	sm.mappedItems, err = NewGauge(
		cfg.Meter,
		"listsync_mapped_items",
		"Current number of confirmed item pairs",
		"{items}",
	)
	if err != nil {
		return nil, err
	}

	sm.pendingCreates, err = NewGauge(
		cfg.Meter,
		"listsync_pending_creates",
		"Current number of unconfirmed external creates",
		"{items}",
	)
	if err != nil {
		return nil, err
	}

	return sm, nil
}

// =============================================================================
// Pass Metrics
// =============================================================================

// RecordPass records one finished pass and its duration.
func (sm *SyncMetrics) RecordPass(ctx context.Context, listRef, direction, outcome string, d time.Duration) {
	if sm == nil {
		return
	}
	sm.passTotal.Inc(ctx,
		AttrListRef.String(listRef),
		AttrDirection.String(direction),
		AttrOutcome.String(outcome),
	)
	sm.passDuration.RecordDuration(ctx, d,
		AttrListRef.String(listRef),
		AttrDirection.String(direction),
	)
}

// RecordCommand records a command write to the external list.
func (sm *SyncMetrics) RecordCommand(ctx context.Context, listRef, command string, err error) {
	if sm == nil {
		return
	}
	outcome := OutcomeApplied
	if err != nil {
		outcome = OutcomeFailed
	}
	sm.commandTotal.Inc(ctx,
		AttrListRef.String(listRef),
		AttrCommand.String(command),
		AttrOutcome.String(outcome),
	)
}

// RecordItems records item changes of one kind, e.g. created or deleted.
func (sm *SyncMetrics) RecordItems(ctx context.Context, listRef, direction, action string, n int) {
	if sm == nil || n <= 0 {
		return
	}
	sm.itemTotal.Add(ctx, int64(n),
		AttrListRef.String(listRef),
		AttrDirection.String(direction),
		AttrAction.String(action),
	)
}

// RecordEmptyGuard records an empty snapshot that was not allowed to delete items.
func (sm *SyncMetrics) RecordEmptyGuard(ctx context.Context, listRef string) {
	if sm == nil {
		return
	}
	sm.emptyGuardTotal.Inc(ctx, AttrListRef.String(listRef))
}

// RecordMappingSize records the current mapping sizes.
func (sm *SyncMetrics) RecordMappingSize(ctx context.Context, listRef string, mapped, pending int) {
	if sm == nil {
		return
	}
	sm.mappedItems.Record(ctx, int64(mapped), AttrListRef.String(listRef))
	sm.pendingCreates.Record(ctx, int64(pending), AttrListRef.String(listRef))
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewSyncMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
