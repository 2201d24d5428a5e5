// Package extract turns rasterized pages into categorized component crops.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/disintegration/imaging"

	"github.com/ToasterTechHelp/Yoink-Core/internal/detect"
	"github.com/ToasterTechHelp/Yoink-Core/internal/models"
	"github.com/ToasterTechHelp/Yoink-Core/internal/taxonomy"
	"github.com/ToasterTechHelp/Yoink-Core/pkg/logger"
)

// Sink receives component crops as they are produced. Keys are relative to
// the job root.
type Sink interface {
	Put(ctx context.Context, rel string, r io.Reader, size int64) error
}

// Assembler crops detections out of page rasters and hands them to the
// sink. The crop is persisted before the component record is returned, so
// a record never points at a missing artifact.
type Assembler struct {
	sink   Sink
	logger logger.Logger
}

func NewAssembler(sink Sink, log logger.Logger) *Assembler {
	return &Assembler{sink: sink, logger: log}
}

// AssemblePage categorizes and crops one page worth of detections.
// Component ids start at startID and follow detection order. The second
// return value counts detections that never became components, either for
// an unknown label or for a box with no area left after clamping.
func (a *Assembler) AssemblePage(ctx context.Context, raster image.Image, pageNumber, startID int, detections []detect.Detection) (models.PageResult, int, error) {
	bounds := raster.Bounds()
	result := models.PageResult{
		PageNumber: pageNumber,
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		Components: []models.Component{},
	}

	dropped := 0
	id := startID
	for _, d := range detections {
		canonical := taxonomy.Canonicalize(d.Label)
		category, ok := taxonomy.Categorize(canonical)
		if !ok {
			dropped++
			a.logger.Warn("dropping detection with unknown label",
				logger.String("label", d.Label),
				logger.Int("page", pageNumber),
			)
			continue
		}

		box := d.Box.Intersect(bounds)
		if box.Empty() {
			dropped++
			a.logger.Warn("dropping detection with empty clamped box",
				logger.String("label", canonical),
				logger.Int("page", pageNumber),
			)
			continue
		}

		rel := fmt.Sprintf("components/%d.png", id)
		if err := a.writeCrop(ctx, raster, box, rel); err != nil {
			return models.PageResult{}, 0, err
		}

		result.Components = append(result.Components, models.Component{
			ID:            id,
			PageNumber:    pageNumber,
			Category:      category,
			OriginalLabel: canonical,
			Confidence:    d.Confidence,
			BBox:          [4]int{box.Min.X, box.Min.Y, box.Max.X, box.Max.Y},
			Path:          rel,
		})
		id++
	}

	return result, dropped, nil
}

func (a *Assembler) writeCrop(ctx context.Context, raster image.Image, box image.Rectangle, rel string) error {
	crop := imaging.Crop(raster, box)

	var buf bytes.Buffer
	if err := png.Encode(&buf, crop); err != nil {
		return fmt.Errorf("encode crop %s: %w", rel, err)
	}
	if err := a.sink.Put(ctx, rel, &buf, int64(buf.Len())); err != nil {
		return fmt.Errorf("persist crop %s: %w", rel, err)
	}
	return nil
}
