package shopping

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryKey(t *testing.T) {
	assert.Equal(t, "apfel", CategoryKey("Apfel"))
	assert.Equal(t, "apfel", CategoryKey("  ÄPFEL "))
	assert.Equal(t, "creme fraiche", CategoryKey("Crème   Fraîche"))
	assert.Equal(t, "", CategoryKey("   "))
}

func TestCategoryMemory(t *testing.T) {
	m := NewCategoryMemory()
	assert.Equal(t, CategoryMemoryVersion, m.Version)

	assert.True(t, m.Learn("Crème Fraîche", "Dairy"))
	assert.False(t, m.Learn("creme fraiche", "Dairy"), "same key and category is not a change")
	assert.False(t, m.Learn("", "Dairy"))
	assert.False(t, m.Learn("Bread", ""))

	got, ok := m.Lookup("CREME  FRAICHE")
	assert.True(t, ok)
	assert.Equal(t, "Dairy", got)

	_, ok = m.Lookup("Bread")
	assert.False(t, ok)

	assert.True(t, m.Learn("Bread", "Bakery"))
	assert.Equal(t, 1, m.Forget([]string{"Bakery", "Produce"}))
	_, ok = m.Lookup("creme fraiche")
	assert.False(t, ok)
}

func TestCategoryMemory_LearnOnZeroValue(t *testing.T) {
	var m CategoryMemory
	assert.True(t, m.Learn("Milk", "Dairy"))
	got, ok := m.Lookup("milk")
	assert.True(t, ok)
	assert.Equal(t, "Dairy", got)
}
