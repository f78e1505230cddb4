package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listsync/backend/internal/domain/integration"
	"github.com/listsync/backend/internal/domain/shopping"
)

func testBinding() integration.ListBinding {
	return integration.ListBinding{
		MessageRef:    "shopping",
		SnapshotID:    "alexa.0.Lists.SHOP.json",
		CommandPrefix: "alexa.0.Lists.SHOP",
	}
}

type failingBlobStore struct {
	err error
}

func (f failingBlobStore) Get(context.Context, string) ([]byte, error) { return nil, f.err }
func (f failingBlobStore) Put(context.Context, string, []byte) error   { return f.err }
func (f failingBlobStore) Delete(context.Context, string) error        { return f.err }

func TestListMappingRepository_RoundTrip(t *testing.T) {
	repo := NewListMappingRepository(NewGormBlobStore(newTestDatabase(t).DB), "test", nil)
	ctx := context.Background()
	binding := testBinding()

	fresh, err := repo.Load(ctx, binding)
	require.NoError(t, err)
	assert.Zero(t, fresh.ConfirmedCount())

	mapping := integration.NewListMapping(binding)
	require.NoError(t, mapping.Upsert("int-1", "ext-1"))
	require.NoError(t, mapping.AddPendingCreate("int-2", "2 Bread"))
	require.NoError(t, repo.Save(ctx, mapping))

	loaded, err := repo.Load(ctx, binding)
	require.NoError(t, err)
	ext, ok := loaded.ExternalFor("int-1")
	require.True(t, ok)
	assert.Equal(t, "ext-1", ext)
	pending, ok := loaded.PendingFor("int-2")
	require.True(t, ok)
	assert.Equal(t, "2 Bread", pending.ExpectedValue)
}

func TestListMappingRepository_UntrustedRecordsLoadFresh(t *testing.T) {
	binding := testBinding()
	key := MappingKey("test", binding.MessageRef)

	tests := []struct {
		name string
		data string
	}{
		{"malformed json", `{"version":`},
		{"outdated schema", `{"version":3,"messageRef":"shopping","jsonStateId":"alexa.0.Lists.SHOP.json","localToExternal":{"a":"b"},"externalToLocal":{"b":"a"}}`},
		{"foreign snapshot", `{"version":4,"messageRef":"shopping","jsonStateId":"other.json","localToExternal":{"a":"b"},"externalToLocal":{"b":"a"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewGormBlobStore(newTestDatabase(t).DB)
			require.NoError(t, store.Put(context.Background(), key, []byte(tt.data)))

			mapping, err := NewListMappingRepository(store, "test", nil).Load(context.Background(), binding)
			require.NoError(t, err)
			assert.Zero(t, mapping.ConfirmedCount())
			assert.True(t, mapping.BelongsTo(binding))
			assert.Equal(t, integration.MappingSchemaVersion, mapping.Version)
		})
	}
}

func TestListMappingRepository_RepairsAsymmetricPairs(t *testing.T) {
	binding := testBinding()
	store := NewGormBlobStore(newTestDatabase(t).DB)
	data := `{"version":4,"messageRef":"shopping","jsonStateId":"alexa.0.Lists.SHOP.json",
		"localToExternal":{"a":"x","b":"y"},
		"externalToLocal":{"x":"a","y":"c"},
		"pendingCreates":{"a":{"expectedValue":"Milk","misses":0,"tries":1,"seq":1}}}`
	require.NoError(t, store.Put(context.Background(), MappingKey("", binding.MessageRef), []byte(data)))

	mapping, err := NewListMappingRepository(store, "", nil).Load(context.Background(), binding)
	require.NoError(t, err)

	require.NoError(t, mapping.CheckSymmetry())
	assert.Equal(t, 1, mapping.ConfirmedCount())
	_, pending := mapping.PendingFor("a")
	assert.False(t, pending)
	assert.NotNil(t, mapping.CheckedAt)
}

func TestListMappingRepository_DropsEmptyPendingEntries(t *testing.T) {
	binding := testBinding()
	store := NewGormBlobStore(newTestDatabase(t).DB)
	data := `{"version":4,"messageRef":"shopping","jsonStateId":"alexa.0.Lists.SHOP.json",
		"localToExternal":{"a":"x"},"externalToLocal":{"x":"a"},
		"pendingCreates":{"b":null,"c":{"expectedValue":"Milk","misses":0,"tries":1,"seq":1}}}`
	require.NoError(t, store.Put(context.Background(), MappingKey("", binding.MessageRef), []byte(data)))

	mapping, err := NewListMappingRepository(store, "", nil).Load(context.Background(), binding)
	require.NoError(t, err)

	_, pending := mapping.PendingFor("b")
	assert.False(t, pending)
	p, pending := mapping.PendingFor("c")
	require.True(t, pending)
	assert.Equal(t, "Milk", p.ExpectedValue)
	clone := mapping.Clone()
	assert.Len(t, clone.Pending, 1)
}

func TestListMappingRepository_StorageErrors(t *testing.T) {
	repo := NewListMappingRepository(failingBlobStore{err: errors.New("disk full")}, "", nil)

	_, err := repo.Load(context.Background(), testBinding())
	assert.ErrorContains(t, err, "disk full")

	err = repo.Save(context.Background(), integration.NewListMapping(testBinding()))
	assert.ErrorContains(t, err, "disk full")
}

func TestCategoryMemoryRepository(t *testing.T) {
	store := NewGormBlobStore(newTestDatabase(t).DB)
	repo := NewCategoryMemoryRepository(store, "test", nil)
	ctx := context.Background()

	empty, err := repo.Load(ctx, "shopping")
	require.NoError(t, err)
	assert.Empty(t, empty.Learned)

	memory := shopping.NewCategoryMemory()
	memory.Learn("Crème fraîche", "Dairy")
	require.NoError(t, repo.Save(ctx, "shopping", memory))

	loaded, err := repo.Load(ctx, "shopping")
	require.NoError(t, err)
	category, ok := loaded.Lookup("creme fraiche")
	require.True(t, ok)
	assert.Equal(t, "Dairy", category)

	t.Run("unknown version is discarded", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, CategoryKey("test", "old"), []byte(`{"version":9,"learned":{"milk":"Dairy"}}`)))
		loaded, err := repo.Load(ctx, "old")
		require.NoError(t, err)
		assert.Empty(t, loaded.Learned)
	})
}

func TestBlobKeys(t *testing.T) {
	assert.Equal(t, "listsync:mapping:shopping", MappingKey("", "shopping"))
	assert.Equal(t, "home:categories:shopping", CategoryKey("home", "shopping"))
}
