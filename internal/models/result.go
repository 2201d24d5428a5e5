package models

import (
	"github.com/ToasterTechHelp/Yoink-Core/internal/taxonomy"
)

// Component is one categorized, cropped region exposed to consumers. Ids are
// unique within a job and ordered by page, then detection order.
type Component struct {
	ID            int               `json:"id"`
	PageNumber    int               `json:"page_number"`
	Category      taxonomy.Category `json:"category"`
	OriginalLabel string            `json:"original_label"`
	Confidence    float64           `json:"confidence"`
	BBox          [4]int            `json:"bbox"` // x0, y0, x1, y1 in page-raster pixels
	Path          string            `json:"path"` // artifact key relative to the job root
}

// PageResult groups the components of one rasterized page.
type PageResult struct {
	PageNumber int         `json:"page_number"`
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Components []Component `json:"components"`
}

// ResultDocument is the persisted outcome of a completed job.
type ResultDocument struct {
	SourceFile        string       `json:"source_file"`
	TotalPages        int          `json:"total_pages"`
	TotalComponents   int          `json:"total_components"`
	DroppedDetections int          `json:"dropped_detections"`
	Pages             []PageResult `json:"pages"`
}

// Flatten returns all components in page order then detection order.
func (r *ResultDocument) Flatten() []Component {
	out := make([]Component, 0, r.TotalComponents)
	for _, page := range r.Pages {
		out = append(out, page.Components...)
	}
	return out
}

// ComponentBatch is one page of the paginated component accessor.
type ComponentBatch struct {
	Offset     int         `json:"offset"`
	Limit      int         `json:"limit"`
	Total      int         `json:"total"`
	HasMore    bool        `json:"has_more"`
	Components []Component `json:"components"`
}

// Slice pages through the flattened component list. Offsets past the end
// yield an empty batch, not an error.
func (r *ResultDocument) Slice(offset, limit int) ComponentBatch {
	all := r.Flatten()
	total := len(all)

	start := offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return ComponentBatch{
		Offset:     offset,
		Limit:      limit,
		Total:      total,
		HasMore:    offset+limit < total,
		Components: all[start:end],
	}
}

// Find returns the component with the given id, if present.
func (r *ResultDocument) Find(componentID int) (Component, bool) {
	for _, page := range r.Pages {
		for _, c := range page.Components {
			if c.ID == componentID {
				return c, true
			}
		}
	}
	return Component{}, false
}
