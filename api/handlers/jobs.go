package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperr "github.com/ToasterTechHelp/Yoink-Core/pkg/errors"
	"github.com/ToasterTechHelp/Yoink-Core/pkg/logger"

	"github.com/ToasterTechHelp/Yoink-Core/internal/engine"
	"github.com/ToasterTechHelp/Yoink-Core/internal/models"

	"github.com/ToasterTechHelp/Yoink-Core/api/middleware"
)

// JobsHandler serves job lifecycle reads and mutations.
type JobsHandler struct {
	engine *engine.Engine
	logger logger.Logger
}

func NewJobsHandler(eng *engine.Engine, log logger.Logger) *JobsHandler {
	return &JobsHandler{engine: eng, logger: log}
}

type statusResponse struct {
	JobID           string               `json:"job_id"`
	Status          models.JobStatus     `json:"status"`
	Filename        string               `json:"filename"`
	Title           string               `json:"title"`
	Extension       string               `json:"extension"`
	Progress        models.Progress      `json:"progress"`
	TotalComponents int                  `json:"total_components"`
	Error           string               `json:"error,omitempty"`
	Meta            *models.DocumentMeta `json:"meta,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

func statusFromJob(job models.Job) statusResponse {
	return statusResponse{
		JobID:           job.ID,
		Status:          job.Status,
		Filename:        job.Filename,
		Title:           job.Title,
		Extension:       job.Extension,
		Progress:        job.Progress,
		TotalComponents: job.TotalComponents,
		Error:           job.Error,
		Meta:            job.Meta,
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
	}
}

func (h *JobsHandler) Status(c *gin.Context) {
	job, err := h.engine.Status(c.Param("id"), middleware.OwnerFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, statusFromJob(job))
}

func (h *JobsHandler) Result(c *gin.Context) {
	result, err := h.engine.Result(c.Request.Context(), c.Param("id"), middleware.OwnerFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *JobsHandler) Components(c *gin.Context) {
	offset, err := queryInt(c, "offset")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	batch, err := h.engine.Components(c.Request.Context(), c.Param("id"), middleware.OwnerFrom(c), offset, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

type renameRequest struct {
	BaseName string `json:"base_name"`
}

type renameResponse struct {
	JobID string `json:"job_id"`
	Title string `json:"title"`
}

func (h *JobsHandler) Rename(c *gin.Context) {
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperr.WithMessage(apperr.ErrValidation, "malformed request body"))
		return
	}

	job, err := h.engine.Rename(c.Request.Context(), c.Param("id"), middleware.OwnerFrom(c), req.BaseName)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, renameResponse{JobID: job.ID, Title: job.Title})
}

// Delete cancels the job and removes its artifacts. Jobs held by a worker
// are flagged and disappear at the next page boundary; the 204 covers both.
func (h *JobsHandler) Delete(c *gin.Context) {
	if err := h.engine.Cancel(c.Request.Context(), c.Param("id"), middleware.OwnerFrom(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// queryInt parses an optional integer query parameter, 0 when absent.
func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.WithMessage(apperr.ErrValidation, "%s must be an integer", name)
	}
	return v, nil
}
