package detect

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"math"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"

	"github.com/ToasterTechHelp/Yoink-Core/pkg/logger"
)

// TextractConfig parameterizes the AWS layout backend.
type TextractConfig struct {
	Region    string
	AccessKey string
	SecretKey string
}

// layoutVocab normalizes Textract layout block types to the label
// vocabulary the taxonomy understands. Headers, footers and page numbers
// all land in the abandoned region bucket.
var layoutVocab = map[types.BlockType]string{
	types.BlockTypeLayoutTitle:         "title",
	types.BlockTypeLayoutSectionHeader: "title",
	types.BlockTypeLayoutText:          "plain text",
	types.BlockTypeLayoutList:          "plain text",
	types.BlockTypeLayoutKeyValue:      "plain text",
	types.BlockTypeLayoutFigure:        "figure",
	types.BlockTypeLayoutTable:         "table",
	types.BlockTypeLayoutHeader:        "abandoned region",
	types.BlockTypeLayoutFooter:        "abandoned region",
	types.BlockTypeLayoutPageNumber:    "abandoned region",
}

// TextractDetector runs pages through AnalyzeDocument with the LAYOUT
// feature. It is an alternative to the remote model sidecar for
// deployments without one.
type TextractDetector struct {
	client *textract.Client
	logger logger.Logger
}

func NewTextractDetector(ctx context.Context, cfg TextractConfig, log logger.Logger) (*TextractDetector, error) {
	creds := credentials.NewStaticCredentialsProvider(
		cfg.AccessKey,
		cfg.SecretKey,
		"",
	)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}

	return &TextractDetector{
		client: textract.NewFromConfig(awsCfg),
		logger: log,
	}, nil
}

func (d *TextractDetector) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, img); err != nil {
		return nil, fmt.Errorf("encode raster: %w", err)
	}

	result, err := d.client.AnalyzeDocument(ctx, &textract.AnalyzeDocumentInput{
		Document: &types.Document{
			Bytes: buf.Bytes(),
		},
		FeatureTypes: []types.FeatureType{types.FeatureTypeLayout},
	})
	if err != nil {
		return nil, fmt.Errorf("analyze document: %w", err)
	}

	bounds := img.Bounds()
	return mapLayoutBlocks(result.Blocks, bounds.Dx(), bounds.Dy()), nil
}

// mapLayoutBlocks converts layout blocks to pixel-space detections.
// Textract reports confidence as a percentage and geometry as ratios of
// the page dimensions.
func mapLayoutBlocks(blocks []types.Block, width, height int) []Detection {
	var detections []Detection
	for _, block := range blocks {
		label, ok := layoutVocab[block.BlockType]
		if !ok {
			continue
		}
		if block.Geometry == nil || block.Geometry.BoundingBox == nil {
			continue
		}

		var confidence float64
		if block.Confidence != nil {
			confidence = float64(*block.Confidence) / 100
		}

		// Round instead of truncating; ratios arrive as float32 and sit
		// just below the pixel boundary they mean.
		bb := block.Geometry.BoundingBox
		x0 := int(math.Round(float64(bb.Left) * float64(width)))
		y0 := int(math.Round(float64(bb.Top) * float64(height)))
		x1 := int(math.Round(float64(bb.Left+bb.Width) * float64(width)))
		y1 := int(math.Round(float64(bb.Top+bb.Height) * float64(height)))

		detections = append(detections, Detection{
			Label:      label,
			Confidence: confidence,
			Box:        image.Rect(x0, y0, x1, y1),
		})
	}
	return detections
}

func (d *TextractDetector) Close() error {
	return nil
}
