package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperr "github.com/ToasterTechHelp/Yoink-Core/pkg/errors"
	"github.com/ToasterTechHelp/Yoink-Core/pkg/logger"

	"github.com/ToasterTechHelp/Yoink-Core/internal/engine"
	"github.com/ToasterTechHelp/Yoink-Core/internal/render"

	"github.com/ToasterTechHelp/Yoink-Core/api/middleware"
)

// ArtifactsHandler serves stored component crops.
type ArtifactsHandler struct {
	engine *engine.Engine
	logger logger.Logger
}

func NewArtifactsHandler(eng *engine.Engine, log logger.Logger) *ArtifactsHandler {
	return &ArtifactsHandler{engine: eng, logger: log}
}

// ComponentImage returns one crop as PNG. With ?transparent=1 the crop is
// converted on the fly: near-white fades to full transparency.
func (h *ArtifactsHandler) ComponentImage(c *gin.Context) {
	componentID, err := strconv.Atoi(c.Param("componentID"))
	if err != nil {
		respondError(c, h.logger, apperr.WithMessage(apperr.ErrValidation, "component id must be an integer"))
		return
	}

	data, err := h.engine.ComponentImage(c.Request.Context(), c.Param("id"), middleware.OwnerFrom(c), componentID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if c.Query("transparent") == "1" {
		if int64(len(data)) > render.MaxSourceBytes {
			respondError(c, h.logger, apperr.WithMessage(apperr.ErrValidation, "crop too large for transparent rendering"))
			return
		}
		converted, err := render.TransparentPNG(data)
		if err != nil {
			respondError(c, h.logger, apperr.Wrap(apperr.ErrInternal, err))
			return
		}
		data = converted
	}

	c.Data(http.StatusOK, "image/png", data)
}
