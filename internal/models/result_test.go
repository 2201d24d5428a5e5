package models

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ToasterTechHelp/Yoink-Core/internal/taxonomy"
)

func sampleResult() *ResultDocument {
	return &ResultDocument{
		SourceFile:      "paper.pdf",
		TotalPages:      2,
		TotalComponents: 5,
		Pages: []PageResult{
			{PageNumber: 1, Width: 100, Height: 200, Components: []Component{
				{ID: 0, PageNumber: 1, Category: taxonomy.CategoryText, OriginalLabel: "title"},
				{ID: 1, PageNumber: 1, Category: taxonomy.CategoryFigure, OriginalLabel: "figure"},
				{ID: 2, PageNumber: 1, Category: taxonomy.CategoryText, OriginalLabel: "plain text"},
			}},
			{PageNumber: 2, Width: 100, Height: 200, Components: []Component{
				{ID: 3, PageNumber: 2, Category: taxonomy.CategoryFigure, OriginalLabel: "table"},
				{ID: 4, PageNumber: 2, Category: taxonomy.CategoryMisc, OriginalLabel: "figure caption"},
			}},
		},
	}
}

func TestFlattenKeepsOrder(t *testing.T) {
	flat := sampleResult().Flatten()
	assert.Len(t, flat, 5)
	for i, c := range flat {
		assert.Equal(t, i, c.ID)
	}
}

func TestSlice(t *testing.T) {
	r := sampleResult()

	batch := r.Slice(0, 2)
	assert.Equal(t, 5, batch.Total)
	assert.True(t, batch.HasMore)
	assert.Len(t, batch.Components, 2)
	assert.Equal(t, 0, batch.Components[0].ID)

	batch = r.Slice(3, 10)
	assert.False(t, batch.HasMore)
	assert.Len(t, batch.Components, 2)
	assert.Equal(t, 3, batch.Components[0].ID)

	batch = r.Slice(5, 10)
	assert.Empty(t, batch.Components)
	assert.False(t, batch.HasMore)

	batch = r.Slice(99, 10)
	assert.Empty(t, batch.Components)
}

func TestFind(t *testing.T) {
	r := sampleResult()

	c, ok := r.Find(3)
	assert.True(t, ok)
	assert.Equal(t, 2, c.PageNumber)

	_, ok = r.Find(42)
	assert.False(t, ok)
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusQueued.Terminal())
	assert.False(t, StatusProcessing.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, JobStatus("delivered").Valid())
}
