package itemtext

import (
	"strings"

	"github.com/listsync/backend/internal/domain/shopping"
)

// Render formats a name with its amounts in the grammar Parse understands:
//
//	name                      Butter
//	n name                    6 Butter
//	n <pack> name             3 Dosen Tomaten
//	name <measure>            Milch 1l
//	nx name <measure>         6x Lilith Ghee 500g
//	<measure> <pack> name     500g Packung Nudeln
//	n <packs> <measure> name  2 Packungen 500g Nudeln
func (p *Parser) Render(name string, quantity, perUnit *shopping.Amount) string {
	name = strings.TrimSpace(name)
	q, per := canonical(quantity, perUnit)
	parts := make([]string, 0, 4)

	isPieces := q.Unit == shopping.UnitPieces
	_, isPackaging := p.lex.Display[q.Unit]

	switch {
	case per == nil && isPieces:
		if q.Val != 1 {
			parts = append(parts, formatNumber(q.Val))
		}
		parts = append(parts, name)
	case per == nil && isPackaging:
		parts = append(parts, formatNumber(q.Val), p.lex.unitWord(q.Unit, q.Val != 1), name)
	case per == nil:
		// quantity in a unit the lexicon cannot name; keep it readable
		parts = append(parts, formatNumber(q.Val), q.Unit, name)
	case isPieces && q.Val == 1:
		parts = append(parts, name, measure(per))
	case isPieces:
		parts = append(parts, formatNumber(q.Val)+"x", name, measure(per))
	case isPackaging && q.Val == 1:
		parts = append(parts, measure(per), p.lex.unitWord(q.Unit, false), name)
	default:
		parts = append(parts, formatNumber(q.Val), p.lex.unitWord(q.Unit, true), measure(per), name)
	}
	return strings.Join(parts, " ")
}

// RenderItem renders an internal item's display value
func (p *Parser) RenderItem(item shopping.Item) string {
	return p.Render(item.Name, item.Quantity, item.PerUnit)
}

// Equivalent reports whether two structured readings describe the same entry.
// A missing quantity counts as one piece, and a bare mass/volume quantity is
// the same as one piece of that measure.
func (p *Parser) Equivalent(a, b Result) bool {
	if !strings.EqualFold(strings.TrimSpace(a.Name), strings.TrimSpace(b.Name)) {
		return false
	}
	qa, pa := canonical(a.Quantity, a.PerUnit)
	qb, pb := canonical(b.Quantity, b.PerUnit)
	return qa.Equal(qb) && pa.Equal(pb)
}

func canonical(quantity, perUnit *shopping.Amount) (*shopping.Amount, *shopping.Amount) {
	q := &shopping.Amount{Val: 1, Unit: shopping.UnitPieces}
	if quantity != nil && quantity.Val > 0 && quantity.Unit != "" {
		q = &shopping.Amount{Val: quantity.Val, Unit: quantity.Unit}
	}
	var per *shopping.Amount
	if perUnit != nil && perUnit.Val > 0 && perUnit.Unit != "" {
		per = &shopping.Amount{Val: perUnit.Val, Unit: perUnit.Unit}
	}
	if per == nil && isMeasureUnit(q.Unit) {
		per = q
		q = &shopping.Amount{Val: 1, Unit: shopping.UnitPieces}
	}
	return q, per
}

func isMeasureUnit(unit string) bool {
	for _, lex := range lexicons {
		if canonicalUnit, ok := lex.MeasureUnits[unit]; ok && canonicalUnit == unit {
			return true
		}
	}
	return false
}

func measure(a *shopping.Amount) string {
	return formatNumber(a.Val) + a.Unit
}
