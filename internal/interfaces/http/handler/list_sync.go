package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appintegration "github.com/listsync/backend/internal/application/integration"
	"github.com/listsync/backend/internal/domain/integration"
	"github.com/listsync/backend/internal/domain/shopping"
	"github.com/listsync/backend/internal/infrastructure/logger"
	"github.com/listsync/backend/internal/infrastructure/scheduler"
	"github.com/listsync/backend/internal/interfaces/http/dto"
)

// defaultHistoryLimit is the number of finished jobs shown by the status endpoint
const defaultHistoryLimit = 20

// SyncEngine is the engine view the handler reports on
type SyncEngine interface {
	Binding() integration.ListBinding
	Status() appintegration.SyncStatus
}

// JobQueue accepts sync triggers and reports on queued work
type JobQueue interface {
	Submit(kind scheduler.JobKind) (*scheduler.SyncJob, error)
	IsRunning() bool
	GetJobHistory(limit int) []*scheduler.SyncJob
	QueueState() (*scheduler.SyncJob, []scheduler.JobKind)
}

// ListSyncDeps bundles the collaborators of a ListSyncHandler
type ListSyncDeps struct {
	Engine SyncEngine
	Queue  JobQueue
	Store  shopping.MessageStore
}

// ListSyncHandler serves the list routes of one bound list
type ListSyncHandler struct {
	BaseHandler
	engine SyncEngine
	queue  JobQueue
	store  shopping.MessageStore
	// triggerMiddleware runs in front of the notify and sync routes
	triggerMiddleware []gin.HandlerFunc
}

// ListSyncOption configures a ListSyncHandler
type ListSyncOption func(*ListSyncHandler)

// WithTriggerMiddleware guards the notify and sync routes, e.g. with a rate limit
func WithTriggerMiddleware(mw ...gin.HandlerFunc) ListSyncOption {
	return func(h *ListSyncHandler) {
		h.triggerMiddleware = append(h.triggerMiddleware, mw...)
	}
}

// NewListSyncHandler creates a new ListSyncHandler
func NewListSyncHandler(deps ListSyncDeps, opts ...ListSyncOption) *ListSyncHandler {
	h := &ListSyncHandler{
		engine: deps.Engine,
		queue:  deps.Queue,
		store:  deps.Store,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RequireBoundList rejects list routes whose :ref is not the bound list
func (h *ListSyncHandler) RequireBoundList() gin.HandlerFunc {
	return func(c *gin.Context) {
		ref := c.Param("ref")
		if ref != h.engine.Binding().MessageRef {
			h.Error(c, dto.ErrCodeListNotBound, "List "+strconv.Quote(ref)+" is not bound to an external list")
			c.Abort()
			return
		}
		c.Next()
	}
}

// NotifySnapshot queues the external to internal pass after the external
// snapshot changed.
func (h *ListSyncHandler) NotifySnapshot(c *gin.Context) {
	h.submit(c, scheduler.JobSnapshotChanged)
}

// NotifyMessage queues the internal to external pass after the internal list
// was edited outside this API.
func (h *ListSyncHandler) NotifyMessage(c *gin.Context) {
	h.submit(c, scheduler.JobMessageUpdated)
}

// Sync queues a full sync
func (h *ListSyncHandler) Sync(c *gin.Context) {
	h.submit(c, scheduler.JobFullSync)
}

func (h *ListSyncHandler) submit(c *gin.Context, kind scheduler.JobKind) {
	job, err := h.queue.Submit(kind)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, dto.JobResponse{Job: job})
}

// GetItems returns the items of the internal list
func (h *ListSyncHandler) GetItems(c *gin.Context) {
	ref := c.Param("ref")
	items, err := h.store.GetItems(c.Request.Context(), ref)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewItemsResponse(ref, items))
}

// PutItems applies human edits to the internal list and queues the internal
// to external pass.
func (h *ListSyncHandler) PutItems(c *gin.Context) {
	var req dto.PutItemsRequest
	if !h.BindJSON(c, &req) {
		return
	}

	patch := req.Patch()
	for _, item := range patch.SetItems {
		if err := item.Validate(); err != nil {
			h.HandleError(c, err)
			return
		}
	}

	h.applyAndNotify(c, patch)
}

// DeleteItem removes one item from the internal list and queues the internal
// to external pass.
func (h *ListSyncHandler) DeleteItem(c *gin.Context) {
	ref, id := c.Param("ref"), c.Param("id")

	items, err := h.store.GetItems(c.Request.Context(), ref)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if _, ok := shopping.IndexByID(items)[id]; !ok {
		h.NotFound(c, "Item not found")
		return
	}

	patch := shopping.NewPatch()
	patch.Delete(id)
	h.applyAndNotify(c, patch)
}

// applyAndNotify writes the patch and queues the outbound pass. The edit is
// saved even when the queue rejects the trigger; the next full sync picks it up.
func (h *ListSyncHandler) applyAndNotify(c *gin.Context, patch *shopping.Patch) {
	ctx := c.Request.Context()
	ref := c.Param("ref")

	if err := h.store.ApplyPatch(ctx, ref, patch); err != nil {
		h.HandleError(c, err)
		return
	}

	items, err := h.store.GetItems(ctx, ref)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := struct {
		dto.ItemsResponse
		Job *scheduler.SyncJob `json:"job,omitempty"`
	}{ItemsResponse: dto.NewItemsResponse(ref, items)}

	job, err := h.queue.Submit(scheduler.JobMessageUpdated)
	switch {
	case err == nil:
		resp.Job = job
	case errors.Is(err, scheduler.ErrSchedulerNotRunning), errors.Is(err, scheduler.ErrJobQueueFull):
		logger.GetGinLogger(c).Warn("Outbound sync not queued after edit", zap.Error(err))
	default:
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Status reports the engine state, the queue and recent jobs
func (h *ListSyncHandler) Status(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("history"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.Error(c, dto.ErrCodeBadRequest, "history must be a non-negative integer")
			return
		}
		limit = n
	}

	current, queued := h.queue.QueueState()
	history := []*scheduler.SyncJob{}
	if limit > 0 {
		history = h.queue.GetJobHistory(limit)
	}
	h.Success(c, dto.StatusResponse{
		Sync:      h.engine.Status(),
		Scheduler: dto.SchedulerStatus{
			Running: h.queue.IsRunning(),
			Current: current,
			Queued:  queued,
			History: history,
		},
	})
}

// RegisterRoutes registers the list routes under rg
func (h *ListSyncHandler) RegisterRoutes(rg *gin.RouterGroup) {
	lists := rg.Group("/lists/:ref", h.RequireBoundList())

	triggers := lists.Group("", h.triggerMiddleware...)
	triggers.POST("/notify/snapshot", h.NotifySnapshot)
	triggers.POST("/notify/message", h.NotifyMessage)
	triggers.POST("/sync", h.Sync)

	lists.GET("/items", h.GetItems)
	lists.PUT("/items", h.PutItems)
	lists.DELETE("/items/:id", h.DeleteItem)
	lists.GET("/status", h.Status)
}
