package integration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBinding() ListBinding {
	return ListBinding{
		MessageRef:    "shopping",
		SnapshotID:    "alexa.0.Lists.SHOP.json",
		CommandPrefix: "alexa.0.Lists.SHOP",
	}
}

// ---------------------------------------------------------------------------
// ListMapping Tests
// ---------------------------------------------------------------------------

func TestNewListMapping(t *testing.T) {
	m := NewListMapping(testBinding())

	assert.Equal(t, MappingSchemaVersion, m.Version)
	assert.Equal(t, "shopping", m.MessageRef)
	assert.Equal(t, "alexa.0.Lists.SHOP.json", m.JSONStateID)
	assert.True(t, m.BelongsTo(testBinding()))
	assert.Zero(t, m.ConfirmedCount())
	assert.NoError(t, m.CheckSymmetry())

	other := testBinding()
	other.MessageRef = "other"
	assert.False(t, m.BelongsTo(other))
}

func TestListMapping_Upsert(t *testing.T) {
	t.Run("creates both directions", func(t *testing.T) {
		m := NewListMapping(testBinding())
		require.NoError(t, m.Upsert("i1", "e1"))

		ext, ok := m.ExternalFor("i1")
		assert.True(t, ok)
		assert.Equal(t, "e1", ext)
		local, ok := m.InternalFor("e1")
		assert.True(t, ok)
		assert.Equal(t, "i1", local)
	})

	t.Run("replaces previous pairs of either id", func(t *testing.T) {
		m := NewListMapping(testBinding())
		require.NoError(t, m.Upsert("i1", "e1"))
		require.NoError(t, m.Upsert("i2", "e2"))
		require.NoError(t, m.Upsert("i1", "e2"))

		assert.Equal(t, 1, m.ConfirmedCount())
		_, ok := m.InternalFor("e1")
		assert.False(t, ok)
		_, ok = m.ExternalFor("i2")
		assert.False(t, ok)
		assert.NoError(t, m.CheckSymmetry())
	})

	t.Run("resolves pending create", func(t *testing.T) {
		m := NewListMapping(testBinding())
		require.NoError(t, m.AddPendingCreate("i1", "Milk"))
		require.NoError(t, m.Upsert("i1", "e1"))

		_, pending := m.PendingFor("i1")
		assert.False(t, pending)
		assert.NoError(t, m.CheckSymmetry())
	})

	t.Run("rejects empty ids", func(t *testing.T) {
		m := NewListMapping(testBinding())
		assert.ErrorIs(t, m.Upsert("", "e1"), ErrMappingInvalidID)
		assert.ErrorIs(t, m.Upsert("i1", ""), ErrMappingInvalidID)
	})
}

func TestListMapping_Remove(t *testing.T) {
	m := NewListMapping(testBinding())
	require.NoError(t, m.Upsert("i1", "e1"))
	require.NoError(t, m.Upsert("i2", "e2"))
	m.MarkChecked("i1", time.Now())

	local, ok := m.RemoveByExternalID("e1")
	assert.True(t, ok)
	assert.Equal(t, "i1", local)
	_, checked := m.CheckedSince("i1")
	assert.False(t, checked)

	_, ok = m.RemoveByExternalID("e1")
	assert.False(t, ok)

	ext, ok := m.RemoveByInternalID("i2")
	assert.True(t, ok)
	assert.Equal(t, "e2", ext)
	assert.Zero(t, m.ConfirmedCount())

	require.NoError(t, m.AddPendingCreate("i3", "Bread"))
	_, ok = m.RemoveByInternalID("i3")
	assert.False(t, ok)
	assert.Empty(t, m.Pending)
}

func TestListMapping_AddPendingCreate(t *testing.T) {
	m := NewListMapping(testBinding())

	require.NoError(t, m.AddPendingCreate("i1", "Milk"))
	p, ok := m.PendingFor("i1")
	require.True(t, ok)
	assert.Equal(t, "Milk", p.ExpectedValue)
	assert.Equal(t, 1, p.Tries)
	assert.Zero(t, p.Misses)

	p.Misses = 2
	require.NoError(t, m.AddPendingCreate("i1", "2 Milk"))
	p, _ = m.PendingFor("i1")
	assert.Equal(t, "2 Milk", p.ExpectedValue)
	assert.Equal(t, 2, p.Tries)
	assert.Zero(t, p.Misses)

	require.NoError(t, m.Upsert("i2", "e2"))
	assert.ErrorIs(t, m.AddPendingCreate("i2", "Bread"), ErrMappingAlreadyMapped)
}

func TestListMapping_AdoptPendingCreate(t *testing.T) {
	t.Run("exact value match confirms the pair", func(t *testing.T) {
		m := NewListMapping(testBinding())
		require.NoError(t, m.AddPendingCreate("i1", "6x Lilith Ghee 500g"))

		local, ok := m.AdoptPendingCreate("6x Lilith Ghee 500g", "e1")
		assert.True(t, ok)
		assert.Equal(t, "i1", local)
		assert.Empty(t, m.Pending)
		ext, _ := m.ExternalFor("i1")
		assert.Equal(t, "e1", ext)
		assert.NoError(t, m.CheckSymmetry())
	})

	t.Run("value mismatch does not adopt", func(t *testing.T) {
		m := NewListMapping(testBinding())
		require.NoError(t, m.AddPendingCreate("i1", "Milk"))

		_, ok := m.AdoptPendingCreate("milk", "e1")
		assert.False(t, ok)
		assert.Len(t, m.Pending, 1)
	})

	t.Run("first inserted wins among duplicates", func(t *testing.T) {
		m := NewListMapping(testBinding())
		require.NoError(t, m.AddPendingCreate("zz-first", "Milk"))
		require.NoError(t, m.AddPendingCreate("aa-second", "Milk"))

		local, ok := m.AdoptPendingCreate("Milk", "e1")
		assert.True(t, ok)
		assert.Equal(t, "zz-first", local)

		local, ok = m.AdoptPendingCreate("Milk", "e2")
		assert.True(t, ok)
		assert.Equal(t, "aa-second", local)
	})

	t.Run("already mapped external id is never adopted", func(t *testing.T) {
		m := NewListMapping(testBinding())
		require.NoError(t, m.Upsert("i0", "e1"))
		require.NoError(t, m.AddPendingCreate("i1", "Milk"))

		_, ok := m.AdoptPendingCreate("Milk", "e1")
		assert.False(t, ok)
	})
}

func TestListMapping_PendingCreatesOrder(t *testing.T) {
	m := NewListMapping(testBinding())
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, m.AddPendingCreate(id, id))
	}

	var order []string
	for _, e := range m.PendingCreates() {
		order = append(order, e.InternalID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, order)
}

func TestListMapping_Checked(t *testing.T) {
	m := NewListMapping(testBinding())
	first := time.UnixMilli(1_700_000_000_000)

	assert.True(t, m.MarkChecked("i1", first))
	assert.False(t, m.MarkChecked("i1", first.Add(time.Hour)))

	at, ok := m.CheckedSince("i1")
	assert.True(t, ok)
	assert.True(t, at.Equal(first))

	assert.True(t, m.ClearChecked("i1"))
	assert.False(t, m.ClearChecked("i1"))
}

func TestListMapping_RepairAndSymmetry(t *testing.T) {
	m := NewListMapping(testBinding())
	m.LocalToExternal["i1"] = "e1"
	m.ExternalToLocal["e1"] = "i1"
	m.LocalToExternal["i2"] = "e2"
	m.ExternalToLocal["e3"] = "i3"
	m.Pending["i1"] = &PendingCreate{ExpectedValue: "Milk", Tries: 1, Seq: 1}

	assert.Error(t, m.CheckSymmetry())

	removed := m.Repair()
	assert.Equal(t, 3, removed)
	assert.NoError(t, m.CheckSymmetry())
	assert.Equal(t, []string{"e1"}, m.MappedExternalIDs())
	assert.Equal(t, []string{"i1"}, m.KnownInternalIDs())
}

func TestListMapping_RepairDropsEmptyPendingEntries(t *testing.T) {
	m := NewListMapping(testBinding())
	require.NoError(t, m.AddPendingCreate("b", "Milk"))
	m.Pending["a"] = nil

	assert.Equal(t, 1, m.Repair())
	_, pending := m.PendingFor("a")
	assert.False(t, pending)
	require.Len(t, m.PendingCreates(), 1)
	assert.NotPanics(t, func() { m.Clone() })
}

func TestListMapping_Clone(t *testing.T) {
	m := NewListMapping(testBinding())
	require.NoError(t, m.Upsert("i1", "e1"))
	require.NoError(t, m.AddPendingCreate("i2", "Milk"))
	m.MarkChecked("i1", time.Now())

	c := m.Clone()
	require.NoError(t, c.Upsert("i3", "e3"))
	c.Pending["i2"].Misses = 5
	c.ClearChecked("i1")

	assert.Equal(t, 1, m.ConfirmedCount())
	p, _ := m.PendingFor("i2")
	assert.Zero(t, p.Misses)
	_, ok := m.CheckedSince("i1")
	assert.True(t, ok)
}
