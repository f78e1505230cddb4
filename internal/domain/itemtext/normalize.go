package itemtext

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var decimalComma = regexp.MustCompile(`(\d),(\d)`)

// Normalize folds compatibility characters (NFKC), turns decimal commas into
// dots and collapses whitespace.
func Normalize(raw string) string {
	s := norm.NFKC.String(raw)
	s = decimalComma.ReplaceAllString(s, "$1.$2")
	return strings.Join(strings.Fields(s), " ")
}

// ProvisionalMarker prefixes external items that echo an in-flight creation.
const ProvisionalMarker = "~"

// IsProvisional reports whether an external value carries the provisional marker
func IsProvisional(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), ProvisionalMarker)
}
