package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appintegration "github.com/listsync/backend/internal/application/integration"
	"github.com/listsync/backend/internal/infrastructure/telemetry"
)

// ---------------------------------------------------------------------------
// Sync Job Types
// ---------------------------------------------------------------------------

// JobKind is the trigger a sync job was submitted for
type JobKind string

const (
	// JobSnapshotChanged runs the external to internal pass
	JobSnapshotChanged JobKind = "SNAPSHOT_CHANGED"
	// JobMessageUpdated runs the internal to external pass
	JobMessageUpdated JobKind = "MESSAGE_UPDATED"
	// JobFullSync runs both passes followed by the retention sweep
	JobFullSync JobKind = "FULL_SYNC"
	// JobCategorize runs the categorizer
	JobCategorize JobKind = "CATEGORIZE"
)

// IsValid reports whether the scheduler knows how to run the kind
func (k JobKind) IsValid() bool {
	switch k {
	case JobSnapshotChanged, JobMessageUpdated, JobFullSync, JobCategorize:
		return true
	}
	return false
}

// SyncJobStatus represents the status of a sync job
type SyncJobStatus string

const (
	SyncJobStatusPending SyncJobStatus = "PENDING"
	SyncJobStatusRunning SyncJobStatus = "RUNNING"
	SyncJobStatusSuccess SyncJobStatus = "SUCCESS"
	SyncJobStatusSkipped SyncJobStatus = "SKIPPED"
	SyncJobStatusFailed  SyncJobStatus = "FAILED"
)

// SyncJob is one queued unit of work. Triggers of the same kind that arrive
// while a job is still pending are folded into it.
type SyncJob struct {
	ID          uuid.UUID                    `json:"id"`
	Kind        JobKind                      `json:"kind"`
	Status      SyncJobStatus                `json:"status"`
	Coalesced   int                          `json:"coalesced"`
	Error       string                       `json:"error,omitempty"`
	SubmittedAt time.Time                    `json:"submittedAt"`
	StartedAt   *time.Time                   `json:"startedAt,omitempty"`
	CompletedAt *time.Time                   `json:"completedAt,omitempty"`
	Passes      []*appintegration.PassResult `json:"passes,omitempty"`
}

// NewSyncJob creates a pending job
func NewSyncJob(kind JobKind) *SyncJob {
	return &SyncJob{
		ID:          uuid.New(),
		Kind:        kind,
		Status:      SyncJobStatusPending,
		SubmittedAt: time.Now(),
	}
}

// Start marks the job as running
func (j *SyncJob) Start() {
	now := time.Now()
	j.Status = SyncJobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

// Complete records the pass results. A job whose passes were all skipped is
// reported as skipped.
func (j *SyncJob) Complete(passes []*appintegration.PassResult) {
	now := time.Now()
	j.Passes = passes
	j.CompletedAt = &now
	j.Status = SyncJobStatusSkipped
	for _, p := range passes {
		if p != nil && !p.Skipped {
			j.Status = SyncJobStatusSuccess
			break
		}
	}
}

// Fail marks the job as failed
func (j *SyncJob) Fail(passes []*appintegration.PassResult, err string) {
	now := time.Now()
	j.Passes = passes
	j.Status = SyncJobStatusFailed
	j.CompletedAt = &now
	j.Error = err
}

// snapshot returns a copy safe to hand out while the worker owns the job
func (j *SyncJob) snapshot() *SyncJob {
	c := *j
	c.Passes = append([]*appintegration.PassResult(nil), j.Passes...)
	return &c
}

// ---------------------------------------------------------------------------
// SyncEngine Interface
// ---------------------------------------------------------------------------

// SyncEngine is the reconciliation engine driven by the scheduler
type SyncEngine interface {
	SyncFromExternal(ctx context.Context) (*appintegration.PassResult, error)
	SyncToExternal(ctx context.Context) (*appintegration.PassResult, error)
	FullSync(ctx context.Context) ([]*appintegration.PassResult, error)
	Categorize(ctx context.Context) (*appintegration.PassResult, error)
}

// ---------------------------------------------------------------------------
// ListSyncSchedulerConfig
// ---------------------------------------------------------------------------

// ListSyncSchedulerConfig holds configuration for the list sync scheduler
type ListSyncSchedulerConfig struct {
	// ListRef labels logs and profiles
	ListRef string
	// QueueSize bounds the number of distinct pending jobs
	QueueSize int
	// JobTimeout is the maximum time a job can run
	JobTimeout time.Duration
	// FullSyncInterval is the period of the full reconciliation timer. Zero disables the timer.
	FullSyncInterval time.Duration
	// CategorizeDebounce delays categorizer runs so bursts of edits coalesce
	CategorizeDebounce time.Duration
	// HistorySize bounds the in-memory job history
	HistorySize int
	// RunOnStart submits a full sync right after Start
	RunOnStart bool
}

// DefaultListSyncSchedulerConfig returns default configuration
func DefaultListSyncSchedulerConfig() ListSyncSchedulerConfig {
	return ListSyncSchedulerConfig{
		QueueSize:          64,
		JobTimeout:         2 * time.Minute,
		FullSyncInterval:   5 * time.Minute,
		CategorizeDebounce: 3 * time.Second,
		HistorySize:        50,
		RunOnStart:         true,
	}
}

// Validate validates the configuration
func (c *ListSyncSchedulerConfig) Validate() error {
	if c.QueueSize <= 0 {
		return ErrInvalidConfig
	}
	if c.JobTimeout <= 0 {
		return ErrInvalidConfig
	}
	if c.FullSyncInterval < 0 || c.CategorizeDebounce < 0 {
		return ErrInvalidConfig
	}
	if c.HistorySize < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ---------------------------------------------------------------------------
// ListSyncScheduler
// ---------------------------------------------------------------------------

// ListSyncScheduler runs the jobs of one engine on a single worker, so no two
// passes ever overlap. Jobs run in arrival order.
type ListSyncScheduler struct {
	config ListSyncSchedulerConfig
	engine SyncEngine
	logger *zap.Logger

	jobs      chan *SyncJob
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	pending   map[JobKind]*SyncJob
	current   *SyncJob

	categorizeMu    sync.Mutex
	categorizeTimer *time.Timer

	historyMu sync.RWMutex
	history   []*SyncJob
}

// NewListSyncScheduler creates a new list sync scheduler
func NewListSyncScheduler(config ListSyncSchedulerConfig, engine SyncEngine, logger *zap.Logger) (*ListSyncScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if engine == nil {
		return nil, fmt.Errorf("%w: engine is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ListSyncScheduler{
		config:  config,
		engine:  engine,
		logger:  logger.With(zap.String("list_ref", config.ListRef)),
		pending: make(map[JobKind]*SyncJob),
		history: make([]*SyncJob, 0, config.HistorySize),
	}, nil
}

// Start starts the worker and the full-sync timer
func (s *ListSyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	jobs := make(chan *SyncJob, s.config.QueueSize)
	s.jobs = jobs
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.worker(ctx, jobs)

	if s.config.FullSyncInterval > 0 {
		s.wg.Add(1)
		go s.ticker(ctx)
	}

	s.logger.Info("List sync scheduler started",
		zap.Duration("full_sync_interval", s.config.FullSyncInterval),
		zap.Duration("categorize_debounce", s.config.CategorizeDebounce),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)

	if s.config.RunOnStart {
		if _, err := s.Submit(JobFullSync); err != nil {
			s.logger.Warn("Initial full sync not queued", zap.Error(err))
		}
	}
	return nil
}

// Stop stops accepting jobs and waits for the running job to finish. The
// running job is not cancelled. Jobs still queued are dropped.
func (s *ListSyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	close(s.jobs)
	s.pending = make(map[JobKind]*SyncJob)
	s.mu.Unlock()

	s.categorizeMu.Lock()
	if s.categorizeTimer != nil {
		s.categorizeTimer.Stop()
		s.categorizeTimer = nil
	}
	s.categorizeMu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("List sync scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("List sync scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the scheduler accepts jobs
func (s *ListSyncScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// Submit queues a job of the given kind. If a job of that kind is already
// waiting, the trigger is folded into it and the waiting job is returned.
func (s *ListSyncScheduler) Submit(kind JobKind) (*SyncJob, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJobKind, kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return nil, ErrSchedulerNotRunning
	}

	if job, ok := s.pending[kind]; ok {
		job.Coalesced++
		s.logger.Debug("Sync job coalesced",
			zap.String("job_id", job.ID.String()),
			zap.String("kind", string(kind)),
			zap.Int("coalesced", job.Coalesced),
		)
		return job.snapshot(), nil
	}

	job := NewSyncJob(kind)
	select {
	case s.jobs <- job:
		s.pending[kind] = job
		s.logger.Debug("Sync job submitted",
			zap.String("job_id", job.ID.String()),
			zap.String("kind", string(kind)),
		)
		return job.snapshot(), nil
	default:
		return nil, ErrJobQueueFull
	}
}

// TriggerCategorize requests a categorizer run after the debounce delay.
// Each call restarts the delay.
func (s *ListSyncScheduler) TriggerCategorize() {
	if !s.IsRunning() {
		return
	}
	if s.config.CategorizeDebounce == 0 {
		s.submitCategorize()
		return
	}

	s.categorizeMu.Lock()
	defer s.categorizeMu.Unlock()
	if s.categorizeTimer != nil {
		s.categorizeTimer.Stop()
	}
	s.categorizeTimer = time.AfterFunc(s.config.CategorizeDebounce, s.submitCategorize)
}

func (s *ListSyncScheduler) submitCategorize() {
	if _, err := s.Submit(JobCategorize); err != nil && !errors.Is(err, ErrSchedulerNotRunning) {
		s.logger.Warn("Categorize job not queued", zap.Error(err))
	}
}

// ticker submits a full sync every interval
func (s *ListSyncScheduler) ticker(ctx context.Context) {
	defer s.wg.Done()

	t := time.NewTicker(s.config.FullSyncInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.Submit(JobFullSync); err != nil && !errors.Is(err, ErrSchedulerNotRunning) {
				s.logger.Warn("Periodic full sync not queued", zap.Error(err))
			}
		}
	}
}

// worker processes jobs one at a time
func (s *ListSyncScheduler) worker(ctx context.Context, jobs <-chan *SyncJob) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-jobs:
			if !ok || !s.IsRunning() {
				return
			}
			s.processJob(ctx, job)
		}
	}
}

// processJob executes a single job
func (s *ListSyncScheduler) processJob(ctx context.Context, job *SyncJob) {
	s.mu.Lock()
	// Triggers arriving from now on need a fresh job
	if s.pending[job.Kind] == job {
		delete(s.pending, job.Kind)
	}
	job.Start()
	s.current = job
	s.mu.Unlock()

	// Stop lets the running job finish; only the job timeout bounds it
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.JobTimeout)
	defer cancel()
	jobCtx, span := telemetry.StartServiceSpan(jobCtx, "list_sync_scheduler", string(job.Kind),
		telemetry.WithAttribute(telemetry.SpanAttrListRef, s.config.ListRef),
		telemetry.WithAttribute(telemetry.SpanAttrJobKind, string(job.Kind)),
		telemetry.WithAttribute("coalesced", job.Coalesced),
	)
	defer span.End()

	var (
		passes []*appintegration.PassResult
		err    error
	)
	labels := telemetry.OperationLabels("list_sync", map[string]string{
		telemetry.ProfilingLabelJobKind: string(job.Kind),
	})
	telemetry.WithProfilingLabels(jobCtx, labels, func(c context.Context) {
		passes, err = s.execute(c, job.Kind)
	})

	if err != nil {
		telemetry.RecordError(span, err)
	} else {
		telemetry.SetOK(span)
	}

	s.mu.Lock()
	if err != nil {
		job.Fail(passes, err.Error())
	} else {
		job.Complete(passes)
	}
	s.current = nil
	done := job.snapshot()
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("Sync job failed",
			zap.String("job_id", job.ID.String()),
			zap.String("kind", string(job.Kind)),
			zap.Int("coalesced", job.Coalesced),
			zap.Error(err),
		)
	} else {
		s.logger.Debug("Sync job completed",
			zap.String("job_id", job.ID.String()),
			zap.String("kind", string(job.Kind)),
			zap.String("status", string(job.Status)),
			zap.Int("coalesced", job.Coalesced),
		)
	}

	s.addToHistory(done)
}

func (s *ListSyncScheduler) execute(ctx context.Context, kind JobKind) ([]*appintegration.PassResult, error) {
	single := func(res *appintegration.PassResult, err error) ([]*appintegration.PassResult, error) {
		return []*appintegration.PassResult{res}, err
	}

	switch kind {
	case JobSnapshotChanged:
		return single(s.engine.SyncFromExternal(ctx))
	case JobMessageUpdated:
		return single(s.engine.SyncToExternal(ctx))
	case JobFullSync:
		return s.engine.FullSync(ctx)
	case JobCategorize:
		return single(s.engine.Categorize(ctx))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownJobKind, kind)
	}
}

// addToHistory adds a finished job to history
func (s *ListSyncScheduler) addToHistory(job *SyncJob) {
	if s.config.HistorySize == 0 {
		return
	}

	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	// Add to front
	s.history = append([]*SyncJob{job}, s.history...)
	if len(s.history) > s.config.HistorySize {
		s.history = s.history[:s.config.HistorySize]
	}
}

// GetJobHistory returns recent finished jobs, newest first
func (s *ListSyncScheduler) GetJobHistory(limit int) []*SyncJob {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}

	result := make([]*SyncJob, limit)
	copy(result, s.history[:limit])
	return result
}

// QueueState returns the running job and the kinds waiting to run
func (s *ListSyncScheduler) QueueState() (*SyncJob, []JobKind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current *SyncJob
	if s.current != nil {
		current = s.current.snapshot()
	}
	kinds := make([]JobKind, 0, len(s.pending))
	for _, k := range []JobKind{JobSnapshotChanged, JobMessageUpdated, JobFullSync, JobCategorize} {
		if _, ok := s.pending[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return current, kinds
}
