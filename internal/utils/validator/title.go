package validator

import (
	"regexp"
	"strings"
	"unicode/utf8"

	apperr "github.com/ToasterTechHelp/Yoink-Core/pkg/errors"
)

// MaxTitleLength bounds the renameable display name, excluding the extension.
const MaxTitleLength = 120

// Path separators and control characters are rejected because titles end up
// in storage keys and download headers.
var invalidTitleChars = regexp.MustCompile(`[\\/]|[\x00-\x1f\x7f]`)

// ValidateBaseName validates a display-name candidate and returns it trimmed.
func ValidateBaseName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", apperr.WithMessage(apperr.ErrValidation, "name must not be empty")
	}
	if utf8.RuneCountInString(trimmed) > MaxTitleLength {
		return "", apperr.WithMessage(apperr.ErrValidation, "name longer than %d characters", MaxTitleLength)
	}
	if invalidTitleChars.MatchString(trimmed) {
		return "", apperr.WithMessage(apperr.ErrValidation, "name contains path separators or control characters")
	}
	return trimmed, nil
}
