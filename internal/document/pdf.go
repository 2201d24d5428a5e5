package document

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"

	apperr "github.com/ToasterTechHelp/Yoink-Core/pkg/errors"
)

// pdfDocument rasterizes PDF pages through MuPDF.
type pdfDocument struct {
	doc   *fitz.Document
	pages int
}

func openPDF(data []byte) (*pdfDocument, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCorruptDocument, fmt.Errorf("open pdf: %w", err))
	}
	pages := doc.NumPage()
	if pages < 1 {
		doc.Close()
		return nil, apperr.WithMessage(apperr.ErrCorruptDocument, "pdf has no pages")
	}
	return &pdfDocument{doc: doc, pages: pages}, nil
}

func (d *pdfDocument) PageCount() int {
	return d.pages
}

func (d *pdfDocument) RenderPage(page int, dpi float64) (image.Image, error) {
	if page < 1 || page > d.pages {
		return nil, fmt.Errorf("page %d out of range 1..%d", page, d.pages)
	}
	// MuPDF counts pages from 0.
	img, err := d.doc.ImageDPI(page-1, dpi)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrRender, fmt.Errorf("render page %d: %w", page, err))
	}
	return img, nil
}

func (d *pdfDocument) Close() error {
	return d.doc.Close()
}
