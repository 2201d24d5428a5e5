package document

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	apperr "github.com/ToasterTechHelp/Yoink-Core/pkg/errors"
)

// imageDocument treats a single raster image as a one-page document.
type imageDocument struct {
	img image.Image
}

func openImage(data []byte) (*imageDocument, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCorruptDocument, fmt.Errorf("decode image: %w", err))
	}
	return &imageDocument{img: img}, nil
}

func (d *imageDocument) PageCount() int {
	return 1
}

func (d *imageDocument) RenderPage(page int, _ float64) (image.Image, error) {
	if page != 1 {
		return nil, fmt.Errorf("page %d out of range for single image", page)
	}
	return d.img, nil
}

func (d *imageDocument) Close() error {
	return nil
}
