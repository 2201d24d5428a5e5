package validator

import (
	"regexp"

	apperr "github.com/ToasterTechHelp/Yoink-Core/pkg/errors"
)

// Owner ids become storage key prefixes, so the accepted alphabet is
// deliberately narrow.
var ownerPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidateOwner checks an owner identifier. Empty is valid and means guest.
func ValidateOwner(owner string) error {
	if owner == "" {
		return nil
	}
	if !ownerPattern.MatchString(owner) {
		return apperr.WithMessage(apperr.ErrValidation, "invalid owner identifier")
	}
	return nil
}
