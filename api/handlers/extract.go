package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperr "github.com/ToasterTechHelp/Yoink-Core/pkg/errors"
	"github.com/ToasterTechHelp/Yoink-Core/pkg/logger"

	"github.com/ToasterTechHelp/Yoink-Core/internal/engine"
	"github.com/ToasterTechHelp/Yoink-Core/internal/models"

	"github.com/ToasterTechHelp/Yoink-Core/api/middleware"
)

// ExtractHandler accepts document uploads.
type ExtractHandler struct {
	engine    *engine.Engine
	maxUpload int64
	logger    logger.Logger
}

func NewExtractHandler(eng *engine.Engine, maxUploadBytes int64, log logger.Logger) *ExtractHandler {
	return &ExtractHandler{engine: eng, maxUpload: maxUploadBytes, logger: log}
}

type submitResponse struct {
	JobID  string           `json:"job_id"`
	Status models.JobStatus `json:"status"`
}

// Submit takes a multipart upload with a single "file" part and queues an
// extraction job. The response is 202; the job runs asynchronously.
func (h *ExtractHandler) Submit(c *gin.Context) {
	// The engine enforces the exact file-size limit; this reader bound only
	// stops a runaway body before it is buffered. The slack covers the
	// multipart envelope.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+(1<<20))

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		if isBodyTooLarge(err) {
			respondError(c, h.logger, apperr.ErrFileTooLarge)
			return
		}
		respondError(c, h.logger, apperr.WithMessage(apperr.ErrValidation, "multipart form with a \"file\" part required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		if isBodyTooLarge(err) {
			respondError(c, h.logger, apperr.ErrFileTooLarge)
			return
		}
		respondError(c, h.logger, apperr.Wrap(apperr.ErrInternal, err))
		return
	}

	job, err := h.engine.Submit(c.Request.Context(), engine.Upload{
		Filename: header.Filename,
		Owner:    middleware.OwnerFrom(c),
		Data:     data,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusAccepted, submitResponse{JobID: job.ID, Status: job.Status})
}

// isBodyTooLarge recognizes the MaxBytesReader trip, which the multipart
// parser reports as a wrapped read error.
func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}
