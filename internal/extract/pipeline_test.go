package extract

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "github.com/ToasterTechHelp/Yoink-Core/pkg/errors"
	"github.com/ToasterTechHelp/Yoink-Core/pkg/logger"

	"github.com/ToasterTechHelp/Yoink-Core/internal/detect"
	"github.com/ToasterTechHelp/Yoink-Core/internal/taxonomy"
)

type memSink struct {
	mu    sync.Mutex
	files map[string][]byte
	order []string
	fail  bool
}

func newMemSink() *memSink {
	return &memSink{files: map[string][]byte{}}
}

func (s *memSink) Put(_ context.Context, rel string, r io.Reader, _ int64) error {
	if s.fail {
		return errors.New("sink unavailable")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[rel] = data
	s.order = append(s.order, rel)
	return nil
}

// stubDetector replays one canned response per page in call order.
type stubDetector struct {
	mu        sync.Mutex
	responses [][]detect.Detection
	calls     int
	err       error
}

func (d *stubDetector) Detect(context.Context, image.Image) ([]detect.Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	if d.calls >= len(d.responses) {
		return nil, nil
	}
	resp := d.responses[d.calls]
	d.calls++
	return resp, nil
}

func (d *stubDetector) Close() error { return nil }

type fakeDoc struct {
	pages  int
	width  int
	height int
	failAt int
}

func (d *fakeDoc) PageCount() int { return d.pages }

func (d *fakeDoc) RenderPage(page int, _ float64) (image.Image, error) {
	if d.failAt != 0 && page == d.failAt {
		return nil, apperr.WithMessage(apperr.ErrRender, "render page %d", page)
	}
	return image.NewRGBA(image.Rect(0, 0, d.width, d.height)), nil
}

func (d *fakeDoc) Close() error { return nil }

func TestPipelineSinglePage(t *testing.T) {
	detector := &stubDetector{responses: [][]detect.Detection{{
		{Label: "title", Confidence: 0.9, Box: image.Rect(10, 10, 60, 40)},
		{Label: "watermark", Confidence: 0.8, Box: image.Rect(0, 0, 10, 10)},
		{Label: "figure", Confidence: 0.15, Box: image.Rect(0, 0, 20, 20)},
	}}}
	sink := newMemSink()
	pipeline := NewPipeline(detector, logger.NewTestLogger())

	result, err := pipeline.Run(context.Background(), &fakeDoc{pages: 1, width: 100, height: 80}, "paper.pdf", sink, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "paper.pdf", result.SourceFile)
	assert.Equal(t, 1, result.TotalPages)
	assert.Equal(t, 1, result.TotalComponents)
	assert.Equal(t, 1, result.DroppedDetections)

	require.Len(t, result.Pages, 1)
	page := result.Pages[0]
	assert.Equal(t, 1, page.PageNumber)
	assert.Equal(t, 100, page.Width)
	assert.Equal(t, 80, page.Height)

	require.Len(t, page.Components, 1)
	comp := page.Components[0]
	assert.Equal(t, 0, comp.ID)
	assert.Equal(t, taxonomy.CategoryText, comp.Category)
	assert.Equal(t, "title", comp.OriginalLabel)
	assert.Equal(t, [4]int{10, 10, 60, 40}, comp.BBox)
	assert.Equal(t, "components/0.png", comp.Path)

	crop, err := png.Decode(bytes.NewReader(sink.files["components/0.png"]))
	require.NoError(t, err)
	assert.Equal(t, 50, crop.Bounds().Dx())
	assert.Equal(t, 30, crop.Bounds().Dy())
}

func TestPipelineIDsSpanPages(t *testing.T) {
	perPage := []detect.Detection{
		{Label: "plain text", Confidence: 0.7, Box: image.Rect(0, 0, 30, 30)},
		{Label: "table", Confidence: 0.6, Box: image.Rect(30, 30, 60, 60)},
	}
	detector := &stubDetector{responses: [][]detect.Detection{perPage, perPage}}
	sink := newMemSink()
	pipeline := NewPipeline(detector, logger.NewTestLogger())

	var progress [][2]int
	onProgress := func(current, total int) {
		progress = append(progress, [2]int{current, total})
	}

	result, err := pipeline.Run(context.Background(), &fakeDoc{pages: 2, width: 100, height: 100}, "doc.pdf", sink, onProgress, nil)
	require.NoError(t, err)

	assert.Equal(t, 4, result.TotalComponents)
	ids := []int{}
	for _, c := range result.Flatten() {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []int{0, 1, 2, 3}, ids)
	assert.Equal(t, 3, result.Pages[1].Components[1].ID)
	assert.Equal(t, 2, result.Pages[1].Components[0].PageNumber)

	assert.Equal(t, [][2]int{{1, 2}, {2, 2}}, progress)
	assert.Equal(t, []string{"components/0.png", "components/1.png", "components/2.png", "components/3.png"}, sink.order)
}

func TestPipelineCancelAtPageBoundary(t *testing.T) {
	perPage := []detect.Detection{{Label: "figure", Confidence: 0.9, Box: image.Rect(0, 0, 50, 50)}}
	detector := &stubDetector{responses: [][]detect.Detection{perPage, perPage, perPage}}
	sink := newMemSink()
	pipeline := NewPipeline(detector, logger.NewTestLogger())

	pagesDone := 0
	onProgress := func(current, total int) { pagesDone = current }
	cancelled := func() bool { return pagesDone >= 1 }

	_, err := pipeline.Run(context.Background(), &fakeDoc{pages: 3, width: 100, height: 100}, "doc.pdf", sink, onProgress, cancelled)
	require.ErrorIs(t, err, ErrCancelled)

	// The first page finished; nothing from later pages was written.
	assert.Equal(t, 1, pagesDone)
	assert.Len(t, sink.files, 1)
}

func TestPipelineClampsAndSkipsDegenerate(t *testing.T) {
	detector := &stubDetector{responses: [][]detect.Detection{{
		{Label: "table", Confidence: 0.9, Box: image.Rect(80, 60, 300, 400)},   // spills over
		{Label: "figure", Confidence: 0.9, Box: image.Rect(500, 500, 600, 600)}, // fully outside
	}}}
	sink := newMemSink()
	pipeline := NewPipeline(detector, logger.NewTestLogger())

	result, err := pipeline.Run(context.Background(), &fakeDoc{pages: 1, width: 100, height: 80}, "doc.pdf", sink, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalComponents)
	assert.Equal(t, 1, result.DroppedDetections)

	comp := result.Pages[0].Components[0]
	assert.Equal(t, [4]int{80, 60, 100, 80}, comp.BBox)

	crop, err := png.Decode(bytes.NewReader(sink.files["components/0.png"]))
	require.NoError(t, err)
	assert.Equal(t, 20, crop.Bounds().Dx())
	assert.Equal(t, 20, crop.Bounds().Dy())
}

func TestPipelineThresholdInclusive(t *testing.T) {
	detector := &stubDetector{responses: [][]detect.Detection{{
		{Label: "title", Confidence: 0.2, Box: image.Rect(0, 0, 10, 10)},
	}}}
	sink := newMemSink()
	pipeline := NewPipeline(detector, logger.NewTestLogger(), WithThreshold(0.2))

	result, err := pipeline.Run(context.Background(), &fakeDoc{pages: 1, width: 50, height: 50}, "doc.png", sink, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalComponents)
}

func TestPipelineDetectorFailureAborts(t *testing.T) {
	detector := &stubDetector{err: errors.New("model offline")}
	pipeline := NewPipeline(detector, logger.NewTestLogger())

	_, err := pipeline.Run(context.Background(), &fakeDoc{pages: 2, width: 50, height: 50}, "doc.pdf", newMemSink(), nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrInternal))
	assert.Contains(t, err.Error(), "model offline")
}

func TestPipelineRenderFailureAborts(t *testing.T) {
	perPage := []detect.Detection{{Label: "title", Confidence: 0.9, Box: image.Rect(0, 0, 10, 10)}}
	detector := &stubDetector{responses: [][]detect.Detection{perPage, perPage}}
	sink := newMemSink()
	pipeline := NewPipeline(detector, logger.NewTestLogger())

	var progress [][2]int
	onProgress := func(current, total int) { progress = append(progress, [2]int{current, total}) }

	_, err := pipeline.Run(context.Background(), &fakeDoc{pages: 3, width: 50, height: 50, failAt: 2}, "doc.pdf", sink, onProgress, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrRender))
	assert.Equal(t, [][2]int{{1, 3}}, progress)
}

func TestPipelineSinkFailureAborts(t *testing.T) {
	detector := &stubDetector{responses: [][]detect.Detection{{
		{Label: "title", Confidence: 0.9, Box: image.Rect(0, 0, 10, 10)},
	}}}
	sink := newMemSink()
	sink.fail = true
	pipeline := NewPipeline(detector, logger.NewTestLogger())

	_, err := pipeline.Run(context.Background(), &fakeDoc{pages: 1, width: 50, height: 50}, "doc.pdf", sink, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist crop")
}

func TestPipelineContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pipeline := NewPipeline(&stubDetector{}, logger.NewTestLogger())
	_, err := pipeline.Run(ctx, &fakeDoc{pages: 1, width: 10, height: 10}, "doc.pdf", newMemSink(), nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipelineEmptyPageStaysEmptySlice(t *testing.T) {
	detector := &stubDetector{responses: [][]detect.Detection{nil}}
	pipeline := NewPipeline(detector, logger.NewTestLogger())

	result, err := pipeline.Run(context.Background(), &fakeDoc{pages: 1, width: 10, height: 10}, "doc.png", newMemSink(), nil, nil)
	require.NoError(t, err)
	require.NotNil(t, result.Pages[0].Components)
	assert.Len(t, result.Pages[0].Components, 0)
	assert.Zero(t, result.TotalComponents)
}
