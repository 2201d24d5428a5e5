package engine

import (
	"strings"

	"github.com/google/uuid"

	apperr "github.com/ToasterTechHelp/Yoink-Core/pkg/errors"
)

// newJobID returns a fresh id in canonical form: 32 lowercase hex chars.
func newJobID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// normalizeID folds client-supplied ids (any case, hyphens optional) into
// canonical form. Anything that cannot be a job id is NotFound without
// touching the table or storage.
func normalizeID(raw string) (string, error) {
	id := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(raw), "-", ""))
	if len(id) != 32 {
		return "", apperr.ErrNotFound
	}
	for _, r := range id {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return "", apperr.ErrNotFound
		}
	}
	return id, nil
}
