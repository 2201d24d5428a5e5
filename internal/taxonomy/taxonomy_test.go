package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		raw  string
		want Category
	}{
		{"title", CategoryText},
		{"plain text", CategoryText},
		{"plain_text", CategoryText},
		{"isolated formula", CategoryText},
		{"isolate_formula", CategoryText},
		{"figure", CategoryFigure},
		{"table", CategoryFigure},
		{"abandoned region", CategoryMisc},
		{"abandon", CategoryMisc},
		{"figure caption", CategoryMisc},
		{"figure_caption", CategoryMisc},
		{"table caption", CategoryMisc},
		{"table_footnote", CategoryMisc},
		{"formula_caption", CategoryMisc},
		{"Formula Caption", CategoryMisc},
		{"  TABLE  ", CategoryFigure},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := Categorize(tt.raw)
			assert.True(t, ok, "label %q should be known", tt.raw)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormulaCaptionIsNeverTextOrFigure(t *testing.T) {
	got, ok := Categorize("formula_caption")
	assert.True(t, ok)
	assert.Equal(t, CategoryMisc, got)
	assert.NotEqual(t, CategoryText, got)
	assert.NotEqual(t, CategoryFigure, got)
}

func TestUnknownLabelsAreDropped(t *testing.T) {
	for _, raw := range []string{"", "header", "watermark", "plain", "figure " + "x"} {
		_, ok := Categorize(raw)
		assert.False(t, ok, "label %q must not be categorized", raw)
	}
}

func TestCanonicalize(t *testing.T) {
	assert.Equal(t, "plain text", Canonicalize("Plain_Text"))
	assert.Equal(t, "abandoned region", Canonicalize("abandon"))
	assert.Equal(t, "isolated formula", Canonicalize("isolate_formula"))
	assert.Equal(t, "table footnote", Canonicalize("  table   footnote "))
}
