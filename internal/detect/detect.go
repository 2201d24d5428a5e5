// Package detect finds layout regions on rasterized pages.
package detect

import (
	"context"
	"image"
)

// Detection is one region proposed by the layout model. Confidence is
// normalized to 0..1 and Box is in raster pixels.
type Detection struct {
	Label      string
	Confidence float64
	Box        image.Rectangle
}

// Detector is the model boundary. Implementations must be safe for
// concurrent use, one call per page.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]Detection, error)
	Close() error
}

// Filter drops detections below the confidence threshold. A detection
// exactly at the threshold is kept.
func Filter(detections []Detection, threshold float64) []Detection {
	kept := make([]Detection, 0, len(detections))
	for _, d := range detections {
		if d.Confidence >= threshold {
			kept = append(kept, d)
		}
	}
	return kept
}
