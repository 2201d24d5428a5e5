package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	apperr "github.com/ToasterTechHelp/Yoink-Core/pkg/errors"

	"github.com/ToasterTechHelp/Yoink-Core/internal/utils/validator"
)

// OwnerHeader carries the opaque owner identifier. The gateway in front of
// the service authenticates the caller and injects it; an absent header
// means a guest request.
const OwnerHeader = "X-Owner-ID"

const ownerContextKey = "owner"

// OwnerIdentity resolves the owner identifier for the request, rejecting
// values that cannot be used as storage key prefixes.
func OwnerIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := strings.TrimSpace(c.GetHeader(OwnerHeader))
		if err := validator.ValidateOwner(owner); err != nil {
			c.AbortWithStatusJSON(apperr.StatusOf(err), apperr.ResponseOf(err))
			return
		}
		c.Set(ownerContextKey, owner)
		c.Next()
	}
}

// OwnerFrom returns the resolved owner, "" for guests.
func OwnerFrom(c *gin.Context) string {
	return c.GetString(ownerContextKey)
}
