package integration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/listsync/backend/internal/domain/integration"
	"github.com/listsync/backend/internal/domain/itemtext"
	"github.com/listsync/backend/internal/domain/shopping"
	"github.com/listsync/backend/internal/infrastructure/logger"
	"github.com/listsync/backend/internal/infrastructure/telemetry"
)

// Command kinds used for logging and metrics
const (
	commandCreate    = "create"
	commandValue     = "value"
	commandCompleted = "completed"
	commandDelete    = "delete"
)

// ListSyncConfig holds the collaborators of a ListSyncService
type ListSyncConfig struct {
	Binding    integration.ListBinding
	Options    integration.SyncOptions
	Store      shopping.MessageStore
	Transport  integration.CommandTransport
	Mappings   integration.ListMappingRepository
	Categories integration.CategoryRepository
	// Classifier is optional; without it only learned categories are applied
	Classifier shopping.Classifier
	Logger     *zap.Logger
}

// ListSyncService reconciles one internal list with one external list.
//
// Passes are serialized: a pass never starts while another one of the same
// service is still running. Readers of Status may run concurrently.
type ListSyncService struct {
	binding    integration.ListBinding
	opts       integration.SyncOptions
	store      shopping.MessageStore
	transport  integration.CommandTransport
	mappings   integration.ListMappingRepository
	categories integration.CategoryRepository
	classifier shopping.Classifier
	parser     *itemtext.Parser
	logger     *zap.Logger
	metrics    *telemetry.SyncMetrics

	now   func() time.Time
	newID func() string

	running atomic.Bool
	passMu  sync.Mutex

	stateMu sync.RWMutex
	mapping *integration.ListMapping
	status  SyncStatus

	// transient state, owned by the pass holding passMu
	lastSeen         map[string]integration.ExternalItem
	lastFingerprint  string
	emptyStreak      int
	knownInternal    map[string]struct{}
	completedWrites  map[string]time.Time
	abandoned        map[string]string
	cancelledCreates map[string]int
	deletedExternal  map[string]struct{}

	categorizeMu      sync.Mutex
	categorizeTrigger func()
}

// Option configures a ListSyncService
type Option func(*ListSyncService)

// WithClock replaces the wall clock
func WithClock(now func() time.Time) Option {
	return func(s *ListSyncService) {
		s.now = now
	}
}

// WithIDGenerator replaces the internal item id generator
func WithIDGenerator(newID func() string) Option {
	return func(s *ListSyncService) {
		s.newID = newID
	}
}

// NewListSyncService creates a new ListSyncService
func NewListSyncService(cfg ListSyncConfig, opts ...Option) (*ListSyncService, error) {
	if err := cfg.Binding.Validate(); err != nil {
		return nil, err
	}
	if cfg.Store == nil || cfg.Transport == nil || cfg.Mappings == nil {
		return nil, errors.New("list sync: store, transport and mapping repository are required")
	}
	options := cfg.Options.WithDefaults()
	if err := options.Validate(); err != nil {
		return nil, fmt.Errorf("list sync: invalid options: %w", err)
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	s := &ListSyncService{
		binding:    cfg.Binding,
		opts:       options,
		store:      cfg.Store,
		transport:  cfg.Transport,
		mappings:   cfg.Mappings,
		categories: cfg.Categories,
		classifier: cfg.Classifier,
		parser:     itemtext.NewParser(options.Locale),
		logger:     log,
		now:        time.Now,
		newID:      func() string { return uuid.New().String() },
		mapping:    integration.NewListMapping(cfg.Binding),
		status: SyncStatus{
			MessageRef: cfg.Binding.MessageRef,
			SnapshotID: cfg.Binding.SnapshotID,
			LastPasses: make(map[string]*PassResult),
		},
	}
	s.resetTransient()
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SetSyncMetrics sets the metrics recorder
func (s *ListSyncService) SetSyncMetrics(m *telemetry.SyncMetrics) {
	s.metrics = m
}

// SetCategorizeTrigger sets the hook used to request a (debounced) categorizer run.
// Without a hook the categorizer only runs when called directly.
func (s *ListSyncService) SetCategorizeTrigger(trigger func()) {
	s.categorizeMu.Lock()
	defer s.categorizeMu.Unlock()
	s.categorizeTrigger = trigger
}

// Binding returns the list binding served by this engine
func (s *ListSyncService) Binding() integration.ListBinding {
	return s.binding
}

// Options returns the resolved options
func (s *ListSyncService) Options() integration.SyncOptions {
	return s.opts
}

// Parser returns the parser used for ingestion and rendering
func (s *ListSyncService) Parser() *itemtext.Parser {
	return s.parser
}

func (s *ListSyncService) resetTransient() {
	s.lastSeen = make(map[string]integration.ExternalItem)
	s.lastFingerprint = ""
	s.emptyStreak = 0
	s.knownInternal = make(map[string]struct{})
	s.completedWrites = make(map[string]time.Time)
	s.abandoned = make(map[string]string)
	s.cancelledCreates = make(map[string]int)
	s.deletedExternal = make(map[string]struct{})
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Start loads the persisted mapping, makes sure the internal list exists and
// marks the engine running.
func (s *ListSyncService) Start(ctx context.Context) error {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	if s.running.Load() {
		return nil
	}

	mapping, err := s.mappings.Load(ctx, s.binding)
	if err != nil {
		return fmt.Errorf("list sync: load mapping: %w", err)
	}
	if err := s.ensureList(ctx); err != nil {
		return err
	}

	s.resetTransient()
	s.setMapping(mapping)
	s.running.Store(true)

	s.stateMu.Lock()
	s.status.Running = true
	s.stateMu.Unlock()

	s.logger.Info("List sync started",
		zap.String("list_ref", s.binding.MessageRef),
		zap.Int("mapped_items", mapping.ConfirmedCount()),
		zap.Int("pending_creates", len(mapping.Pending)),
	)
	return nil
}

// Stop marks the engine stopped and clears transient state. The persisted
// mapping is kept. A pass that is in flight finishes its current call and
// then discards its results.
func (s *ListSyncService) Stop() {
	if !s.running.Swap(false) {
		return
	}

	s.passMu.Lock()
	s.resetTransient()
	s.passMu.Unlock()

	s.stateMu.Lock()
	s.status.Running = false
	s.status.EmptyStreak = 0
	s.stateMu.Unlock()

	s.logger.Info("List sync stopped", zap.String("list_ref", s.binding.MessageRef))
}

// IsRunning reports whether the engine accepts passes
func (s *ListSyncService) IsRunning() bool {
	return s.running.Load()
}

// EnsureList creates the internal list when the message store does not know it
func (s *ListSyncService) EnsureList(ctx context.Context) error {
	s.passMu.Lock()
	defer s.passMu.Unlock()
	return s.ensureList(ctx)
}

func (s *ListSyncService) ensureList(ctx context.Context) error {
	_, err := s.store.GetItems(ctx, s.binding.MessageRef)
	if err == nil {
		return nil
	}
	if !errors.Is(err, shopping.ErrListNotFound) {
		return fmt.Errorf("list sync: read list: %w", err)
	}

	name := s.binding.DisplayName
	if name == "" {
		name = s.binding.MessageRef
	}
	if err := s.store.CreateList(ctx, s.binding.MessageRef, shopping.ListMetadata{Name: name}); err != nil && !errors.Is(err, shopping.ErrListExists) {
		return fmt.Errorf("list sync: create list: %w", err)
	}
	s.logger.Info("Created internal list",
		zap.String("list_ref", s.binding.MessageRef),
		zap.String("name", name),
	)
	return nil
}

// Status returns a point-in-time view of the engine
func (s *ListSyncService) Status() SyncStatus {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()

	st := s.status
	st.MappedItems = s.mapping.ConfirmedCount()
	st.PendingCreates = len(s.mapping.Pending)
	st.CheckedItems = len(s.mapping.CheckedAt)
	st.LastPasses = make(map[string]*PassResult, len(s.status.LastPasses))
	for k, v := range s.status.LastPasses {
		r := *v
		st.LastPasses[k] = &r
	}
	return st
}

// Mapping returns a copy of the current mapping
func (s *ListSyncService) Mapping() *integration.ListMapping {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.mapping.Clone()
}

func (s *ListSyncService) currentMapping() *integration.ListMapping {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.mapping
}

func (s *ListSyncService) setMapping(m *integration.ListMapping) {
	s.stateMu.Lock()
	s.mapping = m
	s.stateMu.Unlock()
}

// ---------------------------------------------------------------------------
// Pass plumbing
// ---------------------------------------------------------------------------

// runPass serializes a pass and handles tracing, metrics, logging and status.
func (s *ListSyncService) runPass(ctx context.Context, direction string, body func(ctx context.Context, res *PassResult) error) (*PassResult, error) {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	start := s.now()
	res := &PassResult{Direction: direction, StartedAt: start}

	if !s.running.Load() {
		return res, integration.ErrEngineStopped
	}

	passID := uuid.New().String()
	ctx, span := telemetry.StartServiceSpan(ctx, "list_sync", direction,
		telemetry.WithAttribute(telemetry.SpanAttrListRef, s.binding.MessageRef),
		telemetry.WithAttribute(telemetry.SpanAttrPassID, passID),
	)
	defer span.End()
	ctx = logger.WithSyncPass(ctx, s.logger, s.binding.MessageRef, passID)

	err := body(ctx, res)
	elapsed := s.now().Sub(start)
	res.Duration = elapsed.String()

	outcome := telemetry.OutcomeApplied
	switch {
	case err != nil:
		outcome = telemetry.OutcomeFailed
		res.Error = err.Error()
		telemetry.RecordError(span, err)
		if errors.Is(err, integration.ErrEngineStopped) {
			logger.L(ctx).Debug("Pass discarded after stop", zap.String("direction", direction))
		} else {
			logger.L(ctx).Warn("Sync pass failed", zap.String("direction", direction), zap.Error(err))
		}
	case res.Skipped:
		outcome = telemetry.OutcomeSkipped
		telemetry.SetAttribute(span, telemetry.SpanAttrSkipReason, res.SkipReason)
		logger.L(ctx).Debug("Sync pass skipped", zap.String("direction", direction), zap.String("reason", res.SkipReason))
	default:
		telemetry.SetOK(span)
		logger.L(ctx).Debug("Sync pass finished",
			zap.String("direction", direction),
			zap.Int("created", res.Created),
			zap.Int("updated", res.Updated),
			zap.Int("deleted", res.Deleted),
			zap.Int("commands", res.Commands),
			zap.Int("commands_failed", res.CommandsFailed),
			zap.Duration("duration", elapsed),
		)
	}

	s.metrics.RecordPass(ctx, s.binding.MessageRef, direction, outcome, elapsed)
	s.metrics.RecordItems(ctx, s.binding.MessageRef, direction, "created", res.Created)
	s.metrics.RecordItems(ctx, s.binding.MessageRef, direction, "updated", res.Updated)
	s.metrics.RecordItems(ctx, s.binding.MessageRef, direction, "deleted", res.Deleted)

	s.stateMu.Lock()
	s.status.TotalPasses++
	if err != nil {
		s.status.FailedPasses++
	}
	s.status.EmptyStreak = s.emptyStreak
	s.status.LastPasses[direction] = res
	mapped, pending := s.mapping.ConfirmedCount(), len(s.mapping.Pending)
	s.stateMu.Unlock()
	s.metrics.RecordMappingSize(ctx, s.binding.MessageRef, mapped, pending)

	return res, err
}

// checkHealth reports whether passes may touch state. Unknown health is
// treated like a down connection.
func (s *ListSyncService) checkHealth(ctx context.Context) bool {
	if s.binding.ConnectionID == "" {
		return true
	}
	health, err := s.transport.ConnectionHealth(ctx, s.binding.ConnectionID)
	if err != nil {
		logger.L(ctx).Debug("Connection health unavailable", zap.Error(err))
		return false
	}
	return health == integration.HealthHealthy
}

// stillRunning is checked after every awaited call
func (s *ListSyncService) stillRunning() error {
	if !s.running.Load() {
		return integration.ErrEngineStopped
	}
	return nil
}

// writeCommand issues one best-effort command. Failures are logged and
// counted but never abort the pass.
func (s *ListSyncService) writeCommand(ctx context.Context, res *PassResult, kind, commandID string, value any) error {
	res.Commands++
	err := s.transport.WriteCommand(ctx, commandID, value)
	s.metrics.RecordCommand(ctx, s.binding.MessageRef, kind, err)
	telemetry.AddEvent(telemetry.SpanFromContext(ctx), "command_written",
		telemetry.SpanAttrCommand, kind,
		telemetry.SpanAttrExternalID, commandID,
		"failed", err != nil,
	)
	if err != nil {
		res.CommandsFailed++
		logger.L(ctx).Warn("External command failed",
			zap.String("command", kind),
			zap.String("command_id", commandID),
			zap.Error(err),
		)
	}
	return err
}

// commit publishes the pass's mapping and persists it. A failed save keeps
// the in-memory mapping; it is written again by the next pass.
func (s *ListSyncService) commit(ctx context.Context, mapping *integration.ListMapping) {
	s.setMapping(mapping)
	if err := s.mappings.Save(ctx, mapping); err != nil {
		logger.L(ctx).Error("Failed to persist mapping", zap.Error(err))
	}
}

// itemChange edits one field of an item. It reports false when the stored
// copy no longer needs the change.
type itemChange func(item *shopping.Item) bool

// mergeFresh re-reads the internal list and applies each change to the
// stored copy of its item, so edits made while the pass waited on the
// network are kept. Items deleted in the meantime are skipped. It returns
// the number of items added to the patch.
func (s *ListSyncService) mergeFresh(ctx context.Context, patch *shopping.Patch, changes map[string]itemChange) (int, error) {
	if len(changes) == 0 {
		return 0, nil
	}
	items, err := s.store.GetItems(ctx, s.binding.MessageRef)
	if err != nil {
		return 0, fmt.Errorf("re-read internal list: %w", err)
	}
	n := 0
	for _, item := range items {
		change, ok := changes[item.ID]
		if !ok {
			continue
		}
		updated := item.Clone()
		if change(&updated) {
			patch.Set(updated)
			n++
		}
	}
	return n, nil
}

func (s *ListSyncService) scheduleCategorize() {
	s.categorizeMu.Lock()
	trigger := s.categorizeTrigger
	s.categorizeMu.Unlock()
	if trigger != nil && len(s.opts.Categories) > 0 {
		trigger()
	}
}

// ---------------------------------------------------------------------------
// Full sync
// ---------------------------------------------------------------------------

// FullSync runs both directions followed by the retention sweep. It stops at
// the first pass that fails.
func (s *ListSyncService) FullSync(ctx context.Context) ([]*PassResult, error) {
	passes := []func(context.Context) (*PassResult, error){
		s.SyncFromExternal,
		s.SyncToExternal,
		s.SweepRetention,
	}
	results := make([]*PassResult, 0, len(passes))
	for _, pass := range passes {
		res, err := pass(ctx)
		results = append(results, res)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}
