package handler

import (
	"context"

	"github.com/stretchr/testify/mock"

	appintegration "github.com/listsync/backend/internal/application/integration"
	"github.com/listsync/backend/internal/domain/integration"
	"github.com/listsync/backend/internal/domain/shopping"
	"github.com/listsync/backend/internal/infrastructure/scheduler"
)

// MockMessageStore implements shopping.MessageStore for testing
type MockMessageStore struct {
	mock.Mock
}

func (m *MockMessageStore) GetItems(ctx context.Context, ref string) ([]shopping.Item, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]shopping.Item), args.Error(1)
}

func (m *MockMessageStore) ApplyPatch(ctx context.Context, ref string, patch *shopping.Patch) error {
	return m.Called(ctx, ref, patch).Error(0)
}

func (m *MockMessageStore) CreateList(ctx context.Context, ref string, meta shopping.ListMetadata) error {
	return m.Called(ctx, ref, meta).Error(0)
}

func (m *MockMessageStore) RemoveList(ctx context.Context, ref string) error {
	return m.Called(ctx, ref).Error(0)
}

// MockJobQueue implements JobQueue for testing
type MockJobQueue struct {
	mock.Mock
}

func (m *MockJobQueue) Submit(kind scheduler.JobKind) (*scheduler.SyncJob, error) {
	args := m.Called(kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*scheduler.SyncJob), args.Error(1)
}

func (m *MockJobQueue) IsRunning() bool {
	return m.Called().Bool(0)
}

func (m *MockJobQueue) GetJobHistory(limit int) []*scheduler.SyncJob {
	return m.Called(limit).Get(0).([]*scheduler.SyncJob)
}

func (m *MockJobQueue) QueueState() (*scheduler.SyncJob, []scheduler.JobKind) {
	args := m.Called()
	var current *scheduler.SyncJob
	if args.Get(0) != nil {
		current = args.Get(0).(*scheduler.SyncJob)
	}
	return current, args.Get(1).([]scheduler.JobKind)
}

// stubEngine is a fixed SyncEngine
type stubEngine struct {
	binding integration.ListBinding
	status  appintegration.SyncStatus
}

func (s stubEngine) Binding() integration.ListBinding { return s.binding }
func (s stubEngine) Status() appintegration.SyncStatus { return s.status }
