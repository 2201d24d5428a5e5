package extract

import (
	"context"
	"errors"
	"fmt"

	apperr "github.com/ToasterTechHelp/Yoink-Core/pkg/errors"
	"github.com/ToasterTechHelp/Yoink-Core/pkg/logger"

	"github.com/ToasterTechHelp/Yoink-Core/internal/detect"
	"github.com/ToasterTechHelp/Yoink-Core/internal/document"
	"github.com/ToasterTechHelp/Yoink-Core/internal/models"
)

// ErrCancelled aborts a run at a page boundary when the cancel probe fires.
var ErrCancelled = errors.New("extraction cancelled")

const (
	DefaultDPI       = 200.0
	DefaultThreshold = 0.2
)

// ProgressFunc is called after each fully processed page.
type ProgressFunc func(currentPage, totalPages int)

// CancelFunc reports whether the run should stop before the next page.
type CancelFunc func() bool

// Pipeline drives render, detect, filter and assemble for every page of a
// document. One run processes one job; a page error aborts the run.
type Pipeline struct {
	detector  detect.Detector
	dpi       float64
	threshold float64
	logger    logger.Logger
}

// Option adjusts pipeline tunables.
type Option func(*Pipeline)

// WithDPI sets the rasterization density.
func WithDPI(dpi float64) Option {
	return func(p *Pipeline) {
		if dpi > 0 {
			p.dpi = dpi
		}
	}
}

// WithThreshold sets the minimum confidence kept. The comparison is
// inclusive.
func WithThreshold(threshold float64) Option {
	return func(p *Pipeline) {
		if threshold >= 0 {
			p.threshold = threshold
		}
	}
}

func NewPipeline(detector detect.Detector, log logger.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		detector:  detector,
		dpi:       DefaultDPI,
		threshold: DefaultThreshold,
		logger:    log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes every page of doc and streams crops into sink. onProgress
// and cancelled may be nil. The returned document is not persisted here;
// the caller owns that.
func (p *Pipeline) Run(ctx context.Context, doc document.Document, sourceFile string, sink Sink, onProgress ProgressFunc, cancelled CancelFunc) (*models.ResultDocument, error) {
	total := doc.PageCount()
	result := &models.ResultDocument{
		SourceFile: sourceFile,
		TotalPages: total,
		Pages:      make([]models.PageResult, 0, total),
	}

	assembler := NewAssembler(sink, p.logger)
	nextID := 0

	for page := 1; page <= total; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if cancelled != nil && cancelled() {
			return nil, ErrCancelled
		}

		raster, err := doc.RenderPage(page, p.dpi)
		if err != nil {
			return nil, err
		}

		detections, err := p.detector.Detect(ctx, raster)
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrInternal, fmt.Errorf("detect page %d: %w", page, err))
		}
		kept := detect.Filter(detections, p.threshold)

		pageResult, dropped, err := assembler.AssemblePage(ctx, raster, page, nextID, kept)
		if err != nil {
			return nil, err
		}

		p.logger.Debug("page processed",
			logger.Int("page", page),
			logger.Int("detections", len(detections)),
			logger.Int("kept", len(kept)),
			logger.Int("components", len(pageResult.Components)),
		)

		result.Pages = append(result.Pages, pageResult)
		result.TotalComponents += len(pageResult.Components)
		result.DroppedDetections += dropped
		nextID += len(pageResult.Components)

		if onProgress != nil {
			onProgress(page, total)
		}
	}

	return result, nil
}
