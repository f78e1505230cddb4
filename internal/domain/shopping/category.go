package shopping

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// CategoryMemoryVersion is the schema version of the persisted category memory.
const CategoryMemoryVersion = 1

// Classification is the classifier's answer for one item name
type Classification struct {
	Name       string  `json:"name"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// Classifier assigns categories to item names. Implementations may be slow or unavailable.
type Classifier interface {
	Classify(ctx context.Context, names []string, categories []string) ([]Classification, error)
}

// CategoryMemory remembers which category an item name was filed under.
type CategoryMemory struct {
	Version int               `json:"version"`
	Learned map[string]string `json:"learned"`
}

// NewCategoryMemory creates an empty memory
func NewCategoryMemory() *CategoryMemory {
	return &CategoryMemory{
		Version: CategoryMemoryVersion,
		Learned: make(map[string]string),
	}
}

// Lookup returns the learned category for an item name
func (m *CategoryMemory) Lookup(name string) (string, bool) {
	key := CategoryKey(name)
	if key == "" {
		return "", false
	}
	category, ok := m.Learned[key]
	return category, ok
}

// Learn records a category for an item name. It reports whether the memory changed.
func (m *CategoryMemory) Learn(name, category string) bool {
	key := CategoryKey(name)
	if key == "" || category == "" {
		return false
	}
	if m.Learned == nil {
		m.Learned = make(map[string]string)
	}
	if m.Learned[key] == category {
		return false
	}
	m.Learned[key] = category
	return true
}

// Forget drops categories that are no longer configured
func (m *CategoryMemory) Forget(allowed []string) int {
	keep := make(map[string]struct{}, len(allowed))
	for _, c := range allowed {
		keep[c] = struct{}{}
	}
	removed := 0
	for key, category := range m.Learned {
		if _, ok := keep[category]; !ok {
			delete(m.Learned, key)
			removed++
		}
	}
	return removed
}

// CategoryKey normalizes an item name for category lookup: diacritics stripped,
// lowercased, whitespace collapsed.
func CategoryKey(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, name)
	if err != nil {
		stripped = name
	}
	return strings.Join(strings.Fields(strings.ToLower(stripped)), " ")
}
