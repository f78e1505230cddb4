package itemtext

import (
	"strings"

	"golang.org/x/text/language"
)

// DefaultLocale is used when a requested locale has no lexicon.
const DefaultLocale = "en"

// UnitWords holds the singular and plural display word for a packaging unit
type UnitWords struct {
	Singular string
	Plural   string
}

// Lexicon holds the vocabulary a locale contributes to parsing and rendering.
// All lookup keys are lowercase.
type Lexicon struct {
	Locale string
	Tag    language.Tag

	// MeasureUnits maps mass/volume aliases to canonical units (g, kg, ml, l, ...)
	MeasureUnits map[string]string
	// PackagingUnits maps packaging aliases to canonical units (pack, can, bottle, ...)
	PackagingUnits map[string]string
	// CountUnits are words meaning "pieces"
	CountUnits map[string]struct{}
	// Connectors are filler words between a quantity and the measure or name
	Connectors map[string]struct{}
	// Multipliers mark a multipack count (6 x ...)
	Multipliers map[string]struct{}
	// NumberWords are spelled-out numbers
	NumberWords map[string]float64
	// ScaleWords multiply the preceding number words
	ScaleWords map[string]float64
	// Joiners may appear between number words (two hundred and fifty)
	Joiners map[string]struct{}
	// Articles count as one in front of a scale word (a dozen)
	Articles map[string]struct{}
	// Display names canonical packaging units when rendering
	Display map[string]UnitWords
}

var lexicons = map[string]*Lexicon{
	"en": englishLexicon(),
	"de": germanLexicon(),
}

// LexiconFor returns the lexicon for a locale such as "de", "de-AT" or "de_DE".
// Unknown locales fall back to the default lexicon.
func LexiconFor(locale string) *Lexicon {
	key := strings.ToLower(strings.TrimSpace(locale))
	if lex, ok := lexicons[key]; ok {
		return lex
	}
	if tag, err := language.Parse(strings.ReplaceAll(key, "_", "-")); err == nil {
		base, _ := tag.Base()
		if lex, ok := lexicons[base.String()]; ok {
			return lex
		}
	}
	return lexicons[DefaultLocale]
}

// Locales lists the locales with a dedicated lexicon
func Locales() []string {
	return []string{"de", "en"}
}

func (l *Lexicon) measureUnit(word string) (string, bool) {
	unit, ok := l.MeasureUnits[trimPunct(word)]
	return unit, ok
}

func (l *Lexicon) packagingUnit(word string) (string, bool) {
	unit, ok := l.PackagingUnits[trimPunct(word)]
	return unit, ok
}

func (l *Lexicon) isCountUnit(word string) bool {
	_, ok := l.CountUnits[trimPunct(word)]
	return ok
}

func (l *Lexicon) isConnector(word string) bool {
	_, ok := l.Connectors[word]
	return ok
}

func (l *Lexicon) isMultiplier(word string) bool {
	_, ok := l.Multipliers[word]
	return ok
}

func (l *Lexicon) isJoiner(word string) bool {
	_, ok := l.Joiners[word]
	return ok
}

func (l *Lexicon) isArticle(word string) bool {
	_, ok := l.Articles[word]
	return ok
}

// unitWord renders a canonical packaging unit in this locale
func (l *Lexicon) unitWord(unit string, plural bool) string {
	words, ok := l.Display[unit]
	if !ok {
		return unit
	}
	if plural && words.Plural != "" {
		return words.Plural
	}
	return words.Singular
}

func trimPunct(word string) string {
	return strings.TrimRight(word, ".,;:")
}

func set(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

func aliases(groups map[string][]string) map[string]string {
	m := make(map[string]string)
	for canonical, words := range groups {
		m[canonical] = canonical
		for _, w := range words {
			m[w] = canonical
		}
	}
	return m
}

func englishLexicon() *Lexicon {
	return &Lexicon{
		Locale: "en",
		Tag:    language.English,
		MeasureUnits: aliases(map[string][]string{
			"g":  {"gr", "gram", "grams", "gramm"},
			"kg": {"kilo", "kilos", "kilogram", "kilograms"},
			"mg": {"milligram", "milligrams"},
			"ml": {"milliliter", "milliliters", "millilitre", "millilitres"},
			"l":  {"ltr", "liter", "liters", "litre", "litres"},
			"cl": {"centiliter", "centilitre"},
			"dl": {"deciliter", "decilitre"},
			"oz": {"ounce", "ounces"},
			"lb": {"lbs", "pound", "pounds"},
		}),
		PackagingUnits: aliases(map[string][]string{
			"pack":   {"packs", "package", "packages", "pkg", "packet", "packets"},
			"can":    {"cans", "tin", "tins"},
			"bottle": {"bottles"},
			"jar":    {"jars"},
			"bag":    {"bags"},
			"box":    {"boxes"},
			"bunch":  {"bunches"},
			"carton": {"cartons"},
			"tube":   {"tubes"},
			"cup":    {"cups", "tub", "tubs"},
		}),
		CountUnits:  set("pcs", "pc", "piece", "pieces"),
		Connectors:  set("of", "with", "a", "à", "at", "each"),
		Multipliers: set("x", "×", "*", "times"),
		NumberWords: map[string]float64{
			"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
			"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
			"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14, "fifteen": 15,
			"sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19, "twenty": 20,
			"thirty": 30, "forty": 40, "fifty": 50, "sixty": 60, "seventy": 70,
			"eighty": 80, "ninety": 90,
		},
		ScaleWords: map[string]float64{"dozen": 12, "hundred": 100, "thousand": 1000},
		Joiners:    set("and"),
		Articles:   set("a", "an"),
		Display: map[string]UnitWords{
			"pack":   {"pack", "packs"},
			"can":    {"can", "cans"},
			"bottle": {"bottle", "bottles"},
			"jar":    {"jar", "jars"},
			"bag":    {"bag", "bags"},
			"box":    {"box", "boxes"},
			"bunch":  {"bunch", "bunches"},
			"carton": {"carton", "cartons"},
			"tube":   {"tube", "tubes"},
			"cup":    {"cup", "cups"},
		},
	}
}

func germanLexicon() *Lexicon {
	return &Lexicon{
		Locale: "de",
		Tag:    language.German,
		MeasureUnits: aliases(map[string][]string{
			"g":  {"gr", "gramm"},
			"kg": {"kilo", "kilogramm"},
			"mg": {"milligramm"},
			"ml": {"milliliter"},
			"l":  {"ltr", "liter"},
			"cl": {"zentiliter"},
			"dl": {"deziliter"},
		}),
		PackagingUnits: aliases(map[string][]string{
			"pack":   {"packung", "packungen", "packs", "packerl", "pck", "pkg", "päckchen"},
			"can":    {"dose", "dosen", "büchse", "büchsen"},
			"bottle": {"flasche", "flaschen"},
			"jar":    {"glas", "gläser"},
			"bag":    {"beutel", "tüte", "tüten"},
			"box":    {"karton", "kartons", "schachtel", "schachteln"},
			"bunch":  {"bund", "bunde"},
			"carton": {"tetrapak"},
			"tube":   {"tuben"},
			"cup":    {"becher"},
		}),
		CountUnits:  set("pcs", "stück", "stk", "st"),
		Connectors:  set("à", "a", "á", "zu", "je", "mit", "von"),
		Multipliers: set("x", "×", "*", "mal"),
		NumberWords: map[string]float64{
			"null": 0, "ein": 1, "eins": 1, "eine": 1, "einen": 1, "zwei": 2, "drei": 3,
			"vier": 4, "fünf": 5, "sechs": 6, "sieben": 7, "acht": 8, "neun": 9, "zehn": 10,
			"elf": 11, "zwölf": 12, "dreizehn": 13, "vierzehn": 14, "fünfzehn": 15,
			"sechzehn": 16, "siebzehn": 17, "achtzehn": 18, "neunzehn": 19, "zwanzig": 20,
			"dreißig": 30, "vierzig": 40, "fünfzig": 50, "sechzig": 60, "siebzig": 70,
			"achtzig": 80, "neunzig": 90,
		},
		ScaleWords: map[string]float64{"dutzend": 12, "hundert": 100, "tausend": 1000},
		Joiners:    set("und"),
		Display: map[string]UnitWords{
			"pack":   {"Packung", "Packungen"},
			"can":    {"Dose", "Dosen"},
			"bottle": {"Flasche", "Flaschen"},
			"jar":    {"Glas", "Gläser"},
			"bag":    {"Beutel", "Beutel"},
			"box":    {"Karton", "Kartons"},
			"bunch":  {"Bund", "Bund"},
			"carton": {"Tetrapak", "Tetrapak"},
			"tube":   {"Tube", "Tuben"},
			"cup":    {"Becher", "Becher"},
		},
	}
}
