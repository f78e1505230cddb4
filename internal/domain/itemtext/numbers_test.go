package itemtext

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseNumberWords(t *testing.T) {
	tests := []struct {
		locale   string
		input    string
		want     float64
		consumed int
	}{
		{"de", "sechs", 6, 1},
		{"de", "zwei hundert", 200, 2},
		{"de", "hundert", 100, 1},
		{"de", "zwei tausend drei hundert", 2300, 4},
		{"de", "ein dutzend", 12, 2},
		{"en", "two dozen", 24, 2},
		{"en", "two hundred and fifty", 250, 4},
		{"en", "twenty five", 25, 2},
		{"en", "three and", 3, 1},
		{"en", "three 4", 3, 1},
		{"en", "butter", 0, 0},
		{"en", "a dozen", 12, 2},
		{"en", "a thousand", 1000, 2},
		{"en", "a milk", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.locale+"/"+tt.input, func(t *testing.T) {
			lex := LexiconFor(tt.locale)
			got, n := parseNumberWords(strings.Fields(tt.input), 0, lex)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.consumed, n)
		})
	}
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "500", formatNumber(500))
	assert.Equal(t, "1.5", formatNumber(1.5))
	assert.Equal(t, "0.25", formatNumber(0.25))
}

func TestParseDecimal(t *testing.T) {
	v, ok := parseDecimal("1.5")
	assert.True(t, ok)
	assert.Equal(t, 1.5, v)

	_, ok = parseDecimal("1,5")
	assert.False(t, ok)
	_, ok = parseDecimal("abc")
	assert.False(t, ok)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "Milch 1.5l", Normalize("  Milch\t1,5l "))
	assert.Equal(t, "6x Ghee", Normalize("６x   Ghee"))
}

func TestLexiconFor(t *testing.T) {
	assert.Equal(t, "de", LexiconFor("de").Locale)
	assert.Equal(t, "de", LexiconFor("de-AT").Locale)
	assert.Equal(t, "de", LexiconFor("de_DE").Locale)
	assert.Equal(t, "en", LexiconFor("EN").Locale)
	assert.Equal(t, DefaultLocale, LexiconFor("fr").Locale)
	assert.Equal(t, DefaultLocale, LexiconFor("").Locale)
}
