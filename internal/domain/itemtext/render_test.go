package itemtext

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/listsync/backend/internal/domain/shopping"
)

func TestParser_Render(t *testing.T) {
	tests := []struct {
		name     string
		locale   string
		item     string
		quantity *shopping.Amount
		perUnit  *shopping.Amount
		want     string
	}{
		{"name only", "de", "Butter", nil, nil, "Butter"},
		{"single piece", "de", "Butter", amount(1, "pcs"), nil, "Butter"},
		{"several pieces", "de", "Butter", amount(6, "pcs"), nil, "6 Butter"},
		{"packaging plural", "de", "Tomaten", amount(3, "can"), nil, "3 Dosen Tomaten"},
		{"packaging singular", "en", "tomatoes", amount(1, "can"), nil, "1 can tomatoes"},
		{"single piece with measure", "de", "Milch", amount(1, "pcs"), amount(1.5, "l"), "Milch 1.5l"},
		{"multipack", "en", "Lilith Ghee", amount(6, "pcs"), amount(500, "g"), "6x Lilith Ghee 500g"},
		{"single pack with measure", "de", "Nudeln", amount(1, "pack"), amount(500, "g"), "500g Packung Nudeln"},
		{"several packs with measure", "de", "Nudeln", amount(2, "pack"), amount(500, "g"), "2 Packungen 500g Nudeln"},
		{"bare measure quantity", "de", "Äpfel", amount(2, "kg"), nil, "Äpfel 2kg"},
		{"unknown unit kept", "en", "Rope", amount(3, "m"), nil, "3 m Rope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParser(tt.locale)
			assert.Equal(t, tt.want, p.Render(tt.item, tt.quantity, tt.perUnit))
		})
	}
}

func TestParser_RenderItem(t *testing.T) {
	p := NewParser("en")
	item := shopping.Item{ID: "a", Name: "Lilith Ghee", Quantity: amount(6, "pcs"), PerUnit: amount(500, "g")}

	assert.Equal(t, "6x Lilith Ghee 500g", p.RenderItem(item))
}

func TestParser_RoundTrip(t *testing.T) {
	inputs := map[string][]string{
		"de": {
			"sechs butter",
			"500g Packung Nudeln",
			"2 Packungen à 500g Nudeln",
			"3 Dosen Tomaten",
			"Milch 1,5l",
			"2 kg Äpfel",
			"3 Stück Kiwi",
			"Packung Eier",
			"4x Dose Tomaten 400g",
			"frische Minze",
		},
		"en": {
			"6x Lilith Ghee 500g",
			"3 cans of tomatoes",
			"two hundred and fifty nails",
			"Bread",
			"1 bottle olive oil",
		},
	}

	for locale, raws := range inputs {
		p := NewParser(locale)
		for _, raw := range raws {
			t.Run(locale+"/"+raw, func(t *testing.T) {
				first := p.Parse(raw)
				rendered := p.Render(first.Name, first.Quantity, first.PerUnit)
				second := p.Parse(rendered)

				assert.True(t, p.Equivalent(first, second),
					"render %q of %q parsed back as %+v, want %+v", rendered, raw, second, first)
			})
		}
	}
}

func TestParser_Equivalent(t *testing.T) {
	p := NewParser("de")

	t.Run("missing quantity is one piece", func(t *testing.T) {
		a := Result{Name: "Butter"}
		b := Result{Name: "butter", Quantity: amount(1, "pcs")}
		assert.True(t, p.Equivalent(a, b))
	})

	t.Run("bare measure equals one piece of that measure", func(t *testing.T) {
		a := Result{Name: "Äpfel", Quantity: amount(2, "kg")}
		b := Result{Name: "Äpfel", Quantity: amount(1, "pcs"), PerUnit: amount(2, "kg")}
		assert.True(t, p.Equivalent(a, b))
	})

	t.Run("different counts", func(t *testing.T) {
		a := Result{Name: "Butter", Quantity: amount(2, "pcs")}
		b := Result{Name: "Butter", Quantity: amount(3, "pcs")}
		assert.False(t, p.Equivalent(a, b))
	})

	t.Run("different names", func(t *testing.T) {
		assert.False(t, p.Equivalent(Result{Name: "Butter"}, Result{Name: "Milch"}))
	})
}
