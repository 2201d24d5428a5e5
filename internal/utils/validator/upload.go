package validator

import (
	"net/http"
	"path/filepath"
	"strings"

	apperr "github.com/ToasterTechHelp/Yoink-Core/pkg/errors"
)

// AllowedExtensions maps accepted upload extensions to the sniffed MIME types
// they may carry.
var AllowedExtensions = map[string][]string{
	"pdf":  {"application/pdf"},
	"png":  {"image/png"},
	"jpg":  {"image/jpeg"},
	"jpeg": {"image/jpeg"},
}

// NormalizeExt extracts the lower-cased extension without the dot.
func NormalizeExt(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// UploadPolicy bounds what the submit operation accepts.
type UploadPolicy struct {
	MaxSize      int64
	AllowedTypes map[string][]string
}

// DefaultUploadPolicy matches the public service limits.
func DefaultUploadPolicy() UploadPolicy {
	return UploadPolicy{
		MaxSize:      100 * 1024 * 1024,
		AllowedTypes: AllowedExtensions,
	}
}

// ValidateUpload checks declared name, size and content head before a job is
// created. It returns the normalized extension. Content is sniffed, not just
// extension-trusted; a .png that is really an executable is rejected here.
func (p UploadPolicy) ValidateUpload(filename string, size int64, head []byte) (string, error) {
	ext := NormalizeExt(filename)
	mimes, ok := p.AllowedTypes[ext]
	if !ok {
		return "", apperr.WithMessage(apperr.ErrUnsupportedFormat, "unsupported file format %q", ext)
	}

	if size <= 0 {
		return "", apperr.WithMessage(apperr.ErrValidation, "empty upload")
	}
	if p.MaxSize > 0 && size > p.MaxSize {
		return "", apperr.WithMessage(apperr.ErrFileTooLarge, "file exceeds the %d byte limit", p.MaxSize)
	}

	sniffed := http.DetectContentType(head)
	for _, m := range mimes {
		if strings.HasPrefix(sniffed, m) {
			return ext, nil
		}
	}
	return "", apperr.WithMessage(apperr.ErrUnsupportedFormat, "content type %s does not match extension %q", sniffed, ext)
}
