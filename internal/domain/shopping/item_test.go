package shopping

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAmount(t *testing.T) {
	t.Run("NewAmount rejects non-positive values", func(t *testing.T) {
		assert.Nil(t, NewAmount(0, "g"))
		assert.Nil(t, NewAmount(-1, "g"))
		assert.Nil(t, NewAmount(1, ""))
		assert.Equal(t, &Amount{Val: 500, Unit: "g"}, NewAmount(500, "g"))
	})

	t.Run("Validate", func(t *testing.T) {
		var nilAmount *Amount
		assert.NoError(t, nilAmount.Validate())
		assert.NoError(t, (&Amount{Val: 1, Unit: "l"}).Validate())
		assert.ErrorIs(t, (&Amount{Val: 0, Unit: "l"}).Validate(), ErrInvalidAmount)
		assert.ErrorIs(t, (&Amount{Val: 1, Unit: " "}).Validate(), ErrInvalidAmount)
	})

	t.Run("Equal handles nil", func(t *testing.T) {
		var a, b *Amount
		assert.True(t, a.Equal(b))
		assert.False(t, a.Equal(&Amount{Val: 1, Unit: "g"}))
		assert.False(t, (&Amount{Val: 1, Unit: "g"}).Equal(nil))
		assert.True(t, (&Amount{Val: 1, Unit: "g"}).Equal(&Amount{Val: 1, Unit: "g"}))
	})
}

func TestItem_Validate(t *testing.T) {
	tests := []struct {
		name    string
		item    Item
		wantErr error
	}{
		{"valid", Item{ID: "1", Name: "Milk"}, nil},
		{"missing id", Item{Name: "Milk"}, ErrInvalidItemID},
		{"blank name", Item{ID: "1", Name: "  "}, ErrInvalidItemName},
		{"bad quantity", Item{ID: "1", Name: "Milk", Quantity: &Amount{Val: 0, Unit: "pcs"}}, ErrInvalidAmount},
		{"bad per unit", Item{ID: "1", Name: "Milk", PerUnit: &Amount{Val: 1}}, ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestItem_CloneIsDeep(t *testing.T) {
	orig := Item{ID: "1", Name: "Ghee", Quantity: &Amount{Val: 6, Unit: "pcs"}, PerUnit: &Amount{Val: 500, Unit: "g"}}
	clone := orig.Clone()
	assert.True(t, orig.Equal(clone))

	clone.Quantity.Val = 2
	clone.PerUnit.Unit = "kg"
	assert.Equal(t, 6.0, orig.Quantity.Val)
	assert.Equal(t, "g", orig.PerUnit.Unit)
	assert.False(t, orig.Equal(clone))
}

func TestIndexByID(t *testing.T) {
	index := IndexByID([]Item{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}})
	assert.Len(t, index, 2)
	assert.Equal(t, "B", index["b"].Name)
}

func TestPatch(t *testing.T) {
	t.Run("nil and new patches are empty", func(t *testing.T) {
		var p *Patch
		assert.True(t, p.IsEmpty())
		assert.True(t, NewPatch().IsEmpty())
	})

	t.Run("delete drops pending set and dedupes", func(t *testing.T) {
		p := NewPatch()
		p.Set(Item{ID: "a", Name: "A"})
		p.Delete("a")
		p.Delete("a")
		assert.Empty(t, p.SetItems)
		assert.Equal(t, []string{"a"}, p.DeleteItems)
		assert.False(t, p.IsEmpty())
	})

	t.Run("set after delete wins", func(t *testing.T) {
		p := &Patch{}
		p.Delete("a")
		p.Set(Item{ID: "a", Name: "A"})
		assert.Empty(t, p.DeleteItems)
		assert.Contains(t, p.SetItems, "a")
	})
}
