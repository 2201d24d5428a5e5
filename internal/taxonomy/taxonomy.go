package taxonomy

import (
	"strings"
)

// Category is the semantic bucket exposed to clients. Clients filter on these
// values, so the set and its spelling are part of the external contract.
type Category string

const (
	CategoryText   Category = "text"
	CategoryFigure Category = "figure"
	CategoryMisc   Category = "misc"
)

func (c Category) String() string {
	return string(c)
}

// labels maps every canonical model label to its category. The table is fixed
// at process start and never mutated.
var labels = map[string]Category{
	"title":            CategoryText,
	"plain text":       CategoryText,
	"isolated formula": CategoryText,

	"figure": CategoryFigure,
	"table":  CategoryFigure,

	"abandoned region": CategoryMisc,
	"figure caption":   CategoryMisc,
	"table caption":    CategoryMisc,
	"table footnote":   CategoryMisc,
	"formula caption":  CategoryMisc,
}

// synonyms folds model-vocabulary spellings into canonical labels.
var synonyms = map[string]string{
	"abandon":         "abandoned region",
	"isolate formula": "isolated formula",
}

// Canonicalize normalizes a raw model label: lower case, trimmed, underscores
// treated as spaces, known synonyms folded.
func Canonicalize(raw string) string {
	label := strings.ToLower(strings.TrimSpace(raw))
	label = strings.Join(strings.Fields(strings.ReplaceAll(label, "_", " ")), " ")
	if canonical, ok := synonyms[label]; ok {
		return canonical
	}
	return label
}

// Categorize maps a raw label to its category. The second return is false for
// labels outside the taxonomy; such detections must be dropped by the caller,
// never emitted under a guessed category.
func Categorize(raw string) (Category, bool) {
	c, ok := labels[Canonicalize(raw)]
	return c, ok
}

// Known reports whether the raw label has a taxonomy entry.
func Known(raw string) bool {
	_, ok := Categorize(raw)
	return ok
}
