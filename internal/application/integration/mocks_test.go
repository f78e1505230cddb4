package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/listsync/backend/internal/domain/integration"
	"github.com/listsync/backend/internal/domain/shopping"
)

// ---------------------------------------------------------------------------
// In-memory message store
// ---------------------------------------------------------------------------

type fakeMessageStore struct {
	mu       sync.Mutex
	lists    map[string][]shopping.Item
	patches  int
	created  int
	applyErr error
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{lists: make(map[string][]shopping.Item)}
}

func (f *fakeMessageStore) GetItems(_ context.Context, ref string) ([]shopping.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items, ok := f.lists[ref]
	if !ok {
		return nil, shopping.ErrListNotFound
	}
	out := make([]shopping.Item, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out, nil
}

func (f *fakeMessageStore) ApplyPatch(_ context.Context, ref string, patch *shopping.Patch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.applyErr != nil {
		return f.applyErr
	}
	items, ok := f.lists[ref]
	if !ok {
		return shopping.ErrListNotFound
	}
	f.patches++

	deleted := make(map[string]bool, len(patch.DeleteItems))
	for _, id := range patch.DeleteItems {
		deleted[id] = true
	}
	kept := make([]shopping.Item, 0, len(items))
	for _, item := range items {
		if deleted[item.ID] {
			continue
		}
		if set, ok := patch.SetItems[item.ID]; ok {
			item = set.Clone()
		}
		kept = append(kept, item)
	}
	existing := shopping.IndexByID(kept)
	ids := make([]string, 0, len(patch.SetItems))
	for id := range patch.SetItems {
		if _, ok := existing[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		kept = append(kept, patch.SetItems[id].Clone())
	}
	f.lists[ref] = kept
	return nil
}

func (f *fakeMessageStore) CreateList(_ context.Context, ref string, _ shopping.ListMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.lists[ref]; ok {
		return shopping.ErrListExists
	}
	f.lists[ref] = []shopping.Item{}
	f.created++
	return nil
}

func (f *fakeMessageStore) RemoveList(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.lists, ref)
	return nil
}

// put replaces or appends an item, like a human edit
func (f *fakeMessageStore) put(ref string, item shopping.Item) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := f.lists[ref]
	for i := range items {
		if items[i].ID == item.ID {
			items[i] = item
			return
		}
	}
	f.lists[ref] = append(items, item)
}

func (f *fakeMessageStore) remove(ref, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := f.lists[ref]
	for i := range items {
		if items[i].ID == id {
			f.lists[ref] = append(items[:i], items[i+1:]...)
			return
		}
	}
}

func (f *fakeMessageStore) item(ref, id string) (shopping.Item, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range f.lists[ref] {
		if item.ID == id {
			return item, true
		}
	}
	return shopping.Item{}, false
}

func (f *fakeMessageStore) count(ref string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.lists[ref])
}

func (f *fakeMessageStore) patchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.patches
}

// ---------------------------------------------------------------------------
// Scriptable command transport
// ---------------------------------------------------------------------------

type sentCommand struct {
	ID    string
	Value any
}

type fakeTransport struct {
	mu        sync.Mutex
	snapshot  string
	reads     int
	readErr   error
	health    integration.ConnectionHealth
	healthErr error
	failing   map[string]error
	commands  []sentCommand
	onRead    func()
	onWrite   func(id string)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		snapshot: "[]",
		health:   integration.HealthHealthy,
		failing:  make(map[string]error),
	}
}

func (f *fakeTransport) ReadSnapshot(_ context.Context, _ string) (string, error) {
	f.mu.Lock()
	f.reads++
	raw, err, hook := f.snapshot, f.readErr, f.onRead
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return raw, err
}

func (f *fakeTransport) WriteCommand(_ context.Context, id string, value any) error {
	f.mu.Lock()
	hook := f.onWrite
	f.mu.Unlock()
	if hook != nil {
		hook(id)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failing[id]; ok {
		return err
	}
	f.commands = append(f.commands, sentCommand{ID: id, Value: value})
	return nil
}

func (f *fakeTransport) ConnectionHealth(_ context.Context, _ string) (integration.ConnectionHealth, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.health, f.healthErr
}

func (f *fakeTransport) setSnapshot(raw string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshot = raw
}

func (f *fakeTransport) setHealth(h integration.ConnectionHealth, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.health, f.healthErr = h, err
}

func (f *fakeTransport) fail(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failing, id)
		return
	}
	f.failing[id] = err
}

func (f *fakeTransport) sent() []sentCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentCommand(nil), f.commands...)
}

func (f *fakeTransport) sentTo(id string) []sentCommand {
	out := make([]sentCommand, 0)
	for _, c := range f.sent() {
		if c.ID == id {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeTransport) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

// ---------------------------------------------------------------------------
// In-memory mapping repository
// ---------------------------------------------------------------------------

type memoryMappingRepository struct {
	mu      sync.Mutex
	stored  *integration.ListMapping
	saves   int
	loadErr error
	saveErr error
}

func (r *memoryMappingRepository) Load(_ context.Context, binding integration.ListBinding) (*integration.ListMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	if r.stored == nil || !r.stored.BelongsTo(binding) {
		return integration.NewListMapping(binding), nil
	}
	return r.stored.Clone(), nil
}

func (r *memoryMappingRepository) Save(_ context.Context, mapping *integration.ListMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saves++
	r.stored = mapping.Clone()
	return nil
}

func (r *memoryMappingRepository) saveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

// MockCategoryRepository is a mock implementation of CategoryRepository
type MockCategoryRepository struct {
	mock.Mock
}

func (m *MockCategoryRepository) Load(ctx context.Context, messageRef string) (*shopping.CategoryMemory, error) {
	args := m.Called(ctx, messageRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shopping.CategoryMemory), args.Error(1)
}

func (m *MockCategoryRepository) Save(ctx context.Context, messageRef string, memory *shopping.CategoryMemory) error {
	args := m.Called(ctx, messageRef, memory)
	return args.Error(0)
}

// MockClassifier is a mock implementation of shopping.Classifier
type MockClassifier struct {
	mock.Mock
}

func (m *MockClassifier) Classify(ctx context.Context, names []string, categories []string) ([]shopping.Classification, error) {
	args := m.Called(ctx, names, categories)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]shopping.Classification), args.Error(1)
}

// ---------------------------------------------------------------------------
// Harness
// ---------------------------------------------------------------------------

const testListRef = "shopping"

func testBinding() integration.ListBinding {
	return integration.ListBinding{
		MessageRef:    testListRef,
		SnapshotID:    "alexa.0.Lists.SHOP.json",
		CommandPrefix: "alexa.0.Lists.SHOP",
		ConnectionID:  "alexa.0.info.connection",
		DisplayName:   "Shopping",
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	svc       *ListSyncService
	store     *fakeMessageStore
	transport *fakeTransport
	mappings  *memoryMappingRepository
	clock     *fakeClock
	binding   integration.ListBinding
}

// newHarness builds a started engine. Items are put into the internal list
// before the engine starts.
func newHarness(t *testing.T, configure func(*ListSyncConfig), items ...shopping.Item) *harness {
	t.Helper()

	h := &harness{
		store:     newFakeMessageStore(),
		transport: newFakeTransport(),
		mappings:  &memoryMappingRepository{},
		clock:     &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)},
		binding:   testBinding(),
	}
	if len(items) > 0 {
		h.store.lists[testListRef] = append([]shopping.Item(nil), items...)
	}

	opts := integration.DefaultSyncOptions()
	opts.Locale = "en"
	cfg := ListSyncConfig{
		Binding:   h.binding,
		Options:   opts,
		Store:     h.store,
		Transport: h.transport,
		Mappings:  h.mappings,
	}
	if configure != nil {
		configure(&cfg)
	}

	seq := 0
	svc, err := NewListSyncService(cfg,
		WithClock(h.clock.Now),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("int-%d", seq)
		}),
	)
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background()))
	h.svc = svc
	return h
}

func (h *harness) fromExternal(t *testing.T) *PassResult {
	t.Helper()
	res, err := h.svc.SyncFromExternal(context.Background())
	require.NoError(t, err)
	return res
}

func (h *harness) toExternal(t *testing.T) *PassResult {
	t.Helper()
	res, err := h.svc.SyncToExternal(context.Background())
	require.NoError(t, err)
	return res
}

func (h *harness) requireMappingInvariant(t *testing.T) {
	t.Helper()
	m := h.svc.Mapping()
	require.NoError(t, m.CheckSymmetry())
	for ext, local := range m.ExternalToLocal {
		require.Equal(t, ext, m.LocalToExternal[local])
	}
	for id := range m.Pending {
		_, mapped := m.LocalToExternal[id]
		require.False(t, mapped, "pending id %s is also mapped", id)
	}
}
