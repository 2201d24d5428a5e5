// Package document opens uploaded files and rasterizes their pages.
package document

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	apperr "github.com/ToasterTechHelp/Yoink-Core/pkg/errors"

	"github.com/ToasterTechHelp/Yoink-Core/internal/models"
)

// Document is a page source. Pages are numbered from 1.
type Document interface {
	PageCount() int
	// RenderPage rasterizes one page at the given DPI. Single-image
	// documents return the decoded image and ignore the DPI.
	RenderPage(page int, dpi float64) (image.Image, error)
	Close() error
}

// normalizeExt accepts "pdf", ".pdf" and "PDF" alike.
func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// Open picks the reader for the given extension.
func Open(data []byte, ext string) (Document, error) {
	switch normalizeExt(ext) {
	case "pdf":
		return openPDF(data)
	case "png", "jpg", "jpeg":
		return openImage(data)
	default:
		return nil, apperr.WithMessage(apperr.ErrUnsupportedFormat, "unsupported extension %q", ext)
	}
}

// Probe validates an upload without rendering anything and reports what is
// known about it up front. PDF info-dict parsing is best effort; a PDF that
// opens but has an unreadable info dictionary still probes fine.
func Probe(data []byte, ext string) (*models.DocumentMeta, error) {
	switch normalizeExt(ext) {
	case "pdf":
		doc, err := openPDF(data)
		if err != nil {
			return nil, err
		}
		defer doc.Close()
		meta := &models.DocumentMeta{PageCount: doc.PageCount()}
		if info, err := readPDFInfo(data); err == nil {
			meta.Title = info.Title
			meta.Author = info.Author
		}
		return meta, nil
	case "png", "jpg", "jpeg":
		if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
			return nil, apperr.Wrap(apperr.ErrCorruptDocument, fmt.Errorf("decode image header: %w", err))
		}
		return &models.DocumentMeta{PageCount: 1}, nil
	default:
		return nil, apperr.WithMessage(apperr.ErrUnsupportedFormat, "unsupported extension %q", ext)
	}
}
