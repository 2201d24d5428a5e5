// Package render post-processes component crops for delivery.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/disintegration/imaging"
)

const (
	startFade = 215
	pureWhite = 250
)

// MaxSourceBytes caps the crop size accepted for on-the-fly renders.
const MaxSourceBytes = 8 << 20

// Transparent fades the near-white background of a crop so it can sit on
// any surface. Pixels brighter than pureWhite become fully transparent
// white; between startFade and pureWhite the alpha ramps down on a quintic
// curve, which keeps faint strokes while dropping paper texture.
func Transparent(img image.Image) *image.NRGBA {
	out := imaging.Clone(img)
	bounds := out.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			i := out.PixOffset(x, y)
			px := out.Pix[i : i+4 : i+4]
			brightness := (float64(px[0]) + float64(px[1]) + float64(px[2])) / 3
			switch {
			case brightness > pureWhite:
				px[0], px[1], px[2], px[3] = 255, 255, 255, 0
			case brightness > startFade:
				norm := (brightness - startFade) / (pureWhite - startFade)
				factor := math.Pow(norm, 5)
				px[3] = uint8(math.Round(float64(px[3]) * (1 - factor)))
			}
		}
	}
	return out
}

// TransparentPNG decodes a stored crop, fades its background and
// re-encodes it.
func TransparentPNG(data []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode crop: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, Transparent(img)); err != nil {
		return nil, fmt.Errorf("encode transparent crop: %w", err)
	}
	return buf.Bytes(), nil
}
