package itemtext

import (
	"strings"

	"github.com/listsync/backend/internal/domain/shopping"
)

// stream is the tokenized input shared by all matchers
type stream struct {
	orig []string
	low  []string
	lex  *Lexicon
}

func newStream(normalized string, lex *Lexicon) *stream {
	orig := strings.Fields(normalized)
	low := make([]string, len(orig))
	for i, tok := range orig {
		low[i] = strings.ToLower(tok)
	}
	return &stream{orig: orig, low: low, lex: lex}
}

func (s *stream) len() int { return len(s.low) }

// measureAt reads "<number><unit>" or "<number> <unit>" at i, where the
// number may be spelled out
func (s *stream) measureAt(i int) (*shopping.Amount, int) {
	if i >= s.len() {
		return nil, 0
	}
	if m := gluedMeasure.FindStringSubmatch(s.low[i]); m != nil {
		if unit, ok := s.lex.measureUnit(m[2]); ok {
			if val, ok := parseDecimal(m[1]); ok && val > 0 {
				return &shopping.Amount{Val: val, Unit: unit}, 1
			}
		}
	}
	if val, ok := parseDecimal(s.low[i]); ok && val > 0 && i+1 < s.len() {
		if unit, ok := s.lex.measureUnit(s.low[i+1]); ok {
			return &shopping.Amount{Val: val, Unit: unit}, 2
		}
	}
	// zwei hundert gramm
	if val, n := parseNumberWords(s.low, i, s.lex); n > 0 && val > 0 && i+n < s.len() {
		if unit, ok := s.lex.measureUnit(s.low[i+n]); ok {
			return &shopping.Amount{Val: val, Unit: unit}, n + 1
		}
	}
	return nil, 0
}

// countAt reads a count at i: digits, a glued multiplier ("6x"), or number
// words, optionally followed by a multiplier token. A count immediately
// followed by a mass/volume unit is rejected since it is a measure.
func (s *stream) countAt(i int) (val float64, n int, multiplier bool) {
	if i >= s.len() {
		return 0, 0, false
	}
	tok := s.low[i]
	switch {
	case gluedMultiplier.MatchString(tok):
		m := gluedMultiplier.FindStringSubmatch(tok)
		v, ok := parseDecimal(m[1])
		if !ok || v <= 0 {
			return 0, 0, false
		}
		return v, 1, true
	case plainNumber.MatchString(tok):
		v, ok := parseDecimal(tok)
		if !ok || v <= 0 {
			return 0, 0, false
		}
		val, n = v, 1
	default:
		v, consumed := parseNumberWords(s.low, i, s.lex)
		if consumed == 0 || v <= 0 {
			return 0, 0, false
		}
		val, n = v, consumed
	}
	next := i + n
	if next < s.len() {
		if s.lex.isMultiplier(s.low[next]) {
			return val, n + 1, true
		}
		if _, isUnit := s.lex.measureUnit(s.low[next]); isUnit {
			return 0, 0, false
		}
	}
	return val, n, false
}

func (s *stream) packagingAt(i int) (string, bool) {
	if i >= s.len() {
		return "", false
	}
	return s.lex.packagingUnit(s.low[i])
}

func (s *stream) connectorAt(i int) bool {
	return i < s.len() && s.lex.isConnector(s.low[i])
}

// ---------------------------------------------------------------------------
// Candidate
// ---------------------------------------------------------------------------

// candidate is one matcher's reading of the stream
type candidate struct {
	pattern   string
	quantity  *shopping.Amount
	perUnit   *shopping.Amount
	hasCount  bool
	packaging bool
	used      map[int]bool
}

func newCandidate(pattern string) *candidate {
	return &candidate{pattern: pattern, used: make(map[int]bool)}
}

func (c *candidate) use(from, n int) {
	for i := from; i < from+n; i++ {
		c.used[i] = true
	}
}

// name joins the unused tokens, dropping leading connectors
func (c *candidate) name(s *stream) string {
	rest := make([]string, 0, s.len())
	for i, tok := range s.orig {
		if c.used[i] {
			continue
		}
		if len(rest) == 0 && s.lex.isConnector(s.low[i]) {
			continue
		}
		rest = append(rest, tok)
	}
	return strings.Join(rest, " ")
}

// matcher proposes a candidate for a fixed pattern. Nil means no match.
type matcher struct {
	pattern string
	match   func(s *stream) *candidate
}

// Pattern names, in priority order.
const (
	PatternMultipack        = "multipack"
	PatternCountMeasurePack = "count_measure_packaging"
	PatternCountPackaging   = "count_packaging"
	PatternMeasurePackaging = "measure_packaging"
	PatternMeasureOnly      = "measure_only"
	PatternCountOnly        = "count_only"
	PatternLeadingPackaging = "leading_packaging"
	PatternFallback         = "fallback"
)

// matchers is ordered by priority; earlier entries win score ties.
var matchers = []matcher{
	{PatternMultipack, matchMultipack},
	{PatternCountMeasurePack, matchCountMeasurePackaging},
	{PatternCountPackaging, matchCountPackaging},
	{PatternMeasurePackaging, matchMeasurePackaging},
	{PatternMeasureOnly, matchMeasureOnly},
	{PatternCountOnly, matchCountOnly},
	{PatternLeadingPackaging, matchLeadingPackaging},
}

// 6x Lilith Ghee 500g
func matchMultipack(s *stream) *candidate {
	count, n, multiplier := s.countAt(0)
	if n == 0 || !multiplier {
		return nil
	}
	c := newCandidate(PatternMultipack)
	c.use(0, n)
	c.hasCount = true
	unit := shopping.UnitPieces
	for i := n; i < s.len(); i++ {
		if c.used[i] {
			continue
		}
		if c.perUnit == nil {
			if m, k := s.measureAt(i); k > 0 {
				c.perUnit = m
				c.use(i, k)
				i += k - 1
				continue
			}
		}
		if !c.packaging {
			if pack, ok := s.packagingAt(i); ok {
				unit = pack
				c.packaging = true
				c.use(i, 1)
			}
		}
	}
	if c.perUnit == nil {
		return nil
	}
	c.quantity = &shopping.Amount{Val: count, Unit: unit}
	return c
}

// 2 500g Packungen Nudeln
func matchCountMeasurePackaging(s *stream) *candidate {
	count, n, _ := s.countAt(0)
	if n == 0 {
		return nil
	}
	m, k := s.measureAt(n)
	if k == 0 {
		return nil
	}
	pack, ok := s.packagingAt(n + k)
	if !ok {
		return nil
	}
	c := newCandidate(PatternCountMeasurePack)
	c.use(0, n+k+1)
	c.hasCount = true
	c.packaging = true
	c.quantity = &shopping.Amount{Val: count, Unit: pack}
	c.perUnit = m
	return c
}

// 2 Packungen à 500g Nudeln, 3 Dosen Tomaten
func matchCountPackaging(s *stream) *candidate {
	count, n, _ := s.countAt(0)
	if n == 0 {
		return nil
	}
	pack, ok := s.packagingAt(n)
	if !ok {
		return nil
	}
	c := newCandidate(PatternCountPackaging)
	c.use(0, n+1)
	c.hasCount = true
	c.packaging = true
	c.quantity = &shopping.Amount{Val: count, Unit: pack}
	next := n + 1
	if s.connectorAt(next) {
		if m, k := s.measureAt(next + 1); k > 0 {
			c.perUnit = m
			c.use(next, k+1)
		}
	} else if m, k := s.measureAt(next); k > 0 {
		c.perUnit = m
		c.use(next, k)
	}
	return c
}

// 500g Packung Nudeln
func matchMeasurePackaging(s *stream) *candidate {
	m, k := s.measureAt(0)
	if k == 0 {
		return nil
	}
	pack, ok := s.packagingAt(k)
	if !ok {
		return nil
	}
	c := newCandidate(PatternMeasurePackaging)
	c.use(0, k+1)
	c.packaging = true
	c.quantity = &shopping.Amount{Val: 1, Unit: pack}
	c.perUnit = m
	return c
}

// Milch 1l, 2 kg Äpfel
func matchMeasureOnly(s *stream) *candidate {
	for i := 0; i < s.len(); i++ {
		m, k := s.measureAt(i)
		if k == 0 {
			continue
		}
		c := newCandidate(PatternMeasureOnly)
		c.use(i, k)
		if i > 0 && s.connectorAt(i-1) {
			c.use(i-1, 1)
		}
		c.quantity = &shopping.Amount{Val: 1, Unit: shopping.UnitPieces}
		c.perUnit = m
		return c
	}
	return nil
}

// sechs Butter, 3 Stück Kiwi
func matchCountOnly(s *stream) *candidate {
	count, n, _ := s.countAt(0)
	if n == 0 {
		return nil
	}
	c := newCandidate(PatternCountOnly)
	c.use(0, n)
	c.hasCount = true
	if n < s.len() && s.lex.isCountUnit(s.low[n]) {
		c.use(n, 1)
	}
	c.quantity = &shopping.Amount{Val: count, Unit: shopping.UnitPieces}
	return c
}

// Packung Nudeln
func matchLeadingPackaging(s *stream) *candidate {
	pack, ok := s.packagingAt(0)
	if !ok {
		return nil
	}
	c := newCandidate(PatternLeadingPackaging)
	c.use(0, 1)
	c.packaging = true
	c.quantity = &shopping.Amount{Val: 1, Unit: pack}
	return c
}
