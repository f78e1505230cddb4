// Package itemtext turns free-text shopping entries such as "6x Lilith Ghee 500g"
// into a name with structured quantity and per-unit amounts, and renders
// structured items back into the same grammar.
package itemtext

import (
	"unicode/utf8"

	"golang.org/x/text/cases"

	"github.com/listsync/backend/internal/domain/shopping"
)

// FallbackConfidence is reported when no pattern matched.
const FallbackConfidence = 0.15

// Result is the structured reading of a raw entry
type Result struct {
	Name       string           `json:"name"`
	Confidence float64          `json:"confidence"`
	Quantity   *shopping.Amount `json:"quantity,omitempty"`
	PerUnit    *shopping.Amount `json:"perUnit,omitempty"`
	Pattern    string           `json:"pattern"`
}

// Scoring holds the heuristic points used to rank matcher candidates. Only the
// relative order matters; the sum of the largest base and all bonuses maps to
// confidence 1.
type Scoring struct {
	Base             map[string]float64
	CountBonus       float64
	PerUnitBonus     float64
	PackagingBonus   float64
	FullConfidenceAt float64
}

// DefaultScoring returns the standard point table
func DefaultScoring() Scoring {
	return Scoring{
		Base: map[string]float64{
			PatternMultipack:        40,
			PatternCountMeasurePack: 36,
			PatternCountPackaging:   32,
			PatternMeasurePackaging: 30,
			PatternMeasureOnly:      22,
			PatternCountOnly:        20,
			PatternLeadingPackaging: 12,
		},
		CountBonus:       35,
		PerUnitBonus:     20,
		PackagingBonus:   5,
		FullConfidenceAt: 100,
	}
}

func (sc Scoring) score(c *candidate) float64 {
	points := sc.Base[c.pattern]
	if c.hasCount {
		points += sc.CountBonus
	}
	if c.perUnit != nil {
		points += sc.PerUnitBonus
	}
	if c.packaging {
		points += sc.PackagingBonus
	}
	return points
}

func (sc Scoring) confidence(points float64) float64 {
	if sc.FullConfidenceAt <= 0 {
		return 0
	}
	conf := points / sc.FullConfidenceAt
	switch {
	case conf < 0:
		return 0
	case conf > 1:
		return 1
	}
	return conf
}

// Parser parses and renders entries for one locale. It is safe for concurrent use.
type Parser struct {
	lex     *Lexicon
	scoring Scoring
}

// Option configures a Parser
type Option func(*Parser)

// WithScoring replaces the default point table
func WithScoring(sc Scoring) Option {
	return func(p *Parser) {
		p.scoring = sc
	}
}

// NewParser creates a parser for the locale, falling back to the default lexicon
func NewParser(locale string, opts ...Option) *Parser {
	p := &Parser{
		lex:     LexiconFor(locale),
		scoring: DefaultScoring(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Locale returns the locale of the lexicon in use
func (p *Parser) Locale() string {
	return p.lex.Locale
}

// Parse reads a raw entry. It never fails: input no pattern understands comes
// back as the capitalized text with FallbackConfidence.
func (p *Parser) Parse(raw string) Result {
	normalized := Normalize(raw)
	s := newStream(normalized, p.lex)

	var (
		best      *candidate
		bestName  string
		bestScore float64
	)
	for _, m := range matchers {
		c := m.match(s)
		if c == nil {
			continue
		}
		name := c.name(s)
		if name == "" {
			continue
		}
		points := p.scoring.score(c)
		if best == nil || points > bestScore {
			best, bestName, bestScore = c, name, points
		}
	}

	if best == nil {
		return Result{
			Name:       p.capitalize(normalized),
			Confidence: FallbackConfidence,
			Pattern:    PatternFallback,
		}
	}
	return Result{
		Name:       p.capitalize(bestName),
		Confidence: p.scoring.confidence(bestScore),
		Quantity:   best.quantity,
		PerUnit:    best.perUnit,
		Pattern:    best.pattern,
	}
}

// capitalize upper-cases the first letter using the locale's casing rules
func (p *Parser) capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return cases.Upper(p.lex.Tag).String(string(r)) + s[size:]
}
