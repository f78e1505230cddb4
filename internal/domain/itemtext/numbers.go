package itemtext

import (
	"regexp"

	"github.com/shopspring/decimal"
)

var (
	plainNumber     = regexp.MustCompile(`^\d+(?:\.\d+)?$`)
	gluedMeasure    = regexp.MustCompile(`^(\d+(?:\.\d+)?)([^\d\s]+?)\.?$`)
	gluedMultiplier = regexp.MustCompile(`^(\d+(?:\.\d+)?)(x|×|\*)$`)
)

// parseDecimal parses a digit token such as "6" or "1.5"
func parseDecimal(tok string) (float64, bool) {
	if !plainNumber.MatchString(tok) {
		return 0, false
	}
	d, err := decimal.NewFromString(tok)
	if err != nil {
		return 0, false
	}
	return d.InexactFloat64(), true
}

// parseNumberWords reads spelled-out numbers starting at i, combining scale
// words ("zwei hundert" = 200). It stops at the first token that is not a
// number word, so digits never join a spelled sequence. It returns the value
// and the number of tokens consumed.
func parseNumberWords(low []string, i int, lex *Lexicon) (float64, int) {
	var total, current float64
	consumed := 0
	sawNumber := false
	for j := i; j < len(low); j++ {
		word := low[j]
		// "a dozen" reads as one dozen
		if j == i && lex.isArticle(word) && j+1 < len(low) {
			if _, ok := lex.ScaleWords[low[j+1]]; ok {
				continue
			}
		}
		if n, ok := lex.NumberWords[word]; ok {
			current += n
			sawNumber = true
			consumed = j - i + 1
			continue
		}
		if scale, ok := lex.ScaleWords[word]; ok {
			if current == 0 {
				current = 1
			}
			current *= scale
			if scale >= 1000 {
				total += current
				current = 0
			}
			sawNumber = true
			consumed = j - i + 1
			continue
		}
		// a joiner only counts when another number word follows it
		if sawNumber && lex.isJoiner(word) && j+1 < len(low) {
			next := low[j+1]
			_, isNum := lex.NumberWords[next]
			_, isScale := lex.ScaleWords[next]
			if isNum || isScale {
				continue
			}
		}
		break
	}
	if !sawNumber {
		return 0, 0
	}
	return total + current, consumed
}

// formatNumber renders a value without trailing zeros ("1.5", "500")
func formatNumber(v float64) string {
	return decimal.NewFromFloat(v).String()
}
