// Package handlers is the thin HTTP layer over the extraction engine. Every
// handler translates engine errors through the service error taxonomy.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperr "github.com/ToasterTechHelp/Yoink-Core/pkg/errors"
	"github.com/ToasterTechHelp/Yoink-Core/pkg/logger"

	"github.com/ToasterTechHelp/Yoink-Core/internal/engine"
)

type Handlers struct {
	Extract   *ExtractHandler
	Jobs      *JobsHandler
	Artifacts *ArtifactsHandler
}

func NewHandlers(eng *engine.Engine, maxUploadBytes int64, log logger.Logger) *Handlers {
	return &Handlers{
		Extract:   NewExtractHandler(eng, maxUploadBytes, log),
		Jobs:      NewJobsHandler(eng, log),
		Artifacts: NewArtifactsHandler(eng, log),
	}
}

func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// respondError maps any error onto its taxonomy status and body. Causes stay
// in the logs; clients only see code and message.
func respondError(c *gin.Context, log logger.Logger, err error) {
	status := apperr.StatusOf(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			logger.String("path", c.FullPath()),
			logger.Error(err),
		)
	}
	c.JSON(status, apperr.ResponseOf(err))
}
