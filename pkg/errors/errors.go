package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies one entry of the service error taxonomy. Codes are part of
// the external contract; clients branch on them.
type Code string

const (
	CodeUnsupportedFormat Code = "UNSUPPORTED_FORMAT"
	CodeCorruptDocument   Code = "CORRUPT_DOCUMENT"
	CodeRenderError       Code = "RENDER_ERROR"
	CodeQuotaExceeded     Code = "QUOTA_EXCEEDED"
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeNotFound          Code = "NOT_FOUND"
	CodeNotReady          Code = "NOT_READY"
	CodeForbidden         Code = "FORBIDDEN"
	CodeInternal          Code = "INTERNAL_FAILURE"
)

// AppError carries a taxonomy code, a user-facing message, the HTTP status the
// API layer should answer with, and an optional cause.
type AppError struct {
	Code    Code
	Message string
	Status  int
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches by code, so errors derived via Wrap or WithMessage compare equal
// to the predefined values under errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

var (
	ErrUnsupportedFormat = &AppError{Code: CodeUnsupportedFormat, Message: "unsupported file format", Status: http.StatusUnsupportedMediaType}
	ErrCorruptDocument   = &AppError{Code: CodeCorruptDocument, Message: "document could not be parsed", Status: http.StatusUnprocessableEntity}
	ErrRender            = &AppError{Code: CodeRenderError, Message: "page could not be rendered", Status: http.StatusInternalServerError}
	ErrQuotaExceeded     = &AppError{Code: CodeQuotaExceeded, Message: "job quota reached, delete a job before uploading", Status: http.StatusConflict}
	ErrValidation        = &AppError{Code: CodeValidation, Message: "invalid input", Status: http.StatusUnprocessableEntity}
	ErrFileTooLarge      = &AppError{Code: CodeValidation, Message: "file exceeds the upload size limit", Status: http.StatusRequestEntityTooLarge}
	ErrNotFound          = &AppError{Code: CodeNotFound, Message: "job not found", Status: http.StatusNotFound}
	ErrNotReady          = &AppError{Code: CodeNotReady, Message: "job has not completed yet", Status: http.StatusConflict}
	ErrForbidden         = &AppError{Code: CodeForbidden, Message: "not allowed", Status: http.StatusForbidden}
	ErrInternal          = &AppError{Code: CodeInternal, Message: "internal failure", Status: http.StatusInternalServerError}
)

// Wrap derives an error with the same code and status that records err as the
// cause.
func Wrap(base *AppError, err error) *AppError {
	return &AppError{Code: base.Code, Message: base.Message, Status: base.Status, Err: err}
}

// WithMessage derives an error with the same code and status but a more
// specific message.
func WithMessage(base *AppError, format string, args ...interface{}) *AppError {
	return &AppError{Code: base.Code, Message: fmt.Sprintf(format, args...), Status: base.Status}
}

// StatusOf resolves the HTTP status for any error, defaulting to 500 for
// errors outside the taxonomy.
func StatusOf(err error) int {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Status
	}
	return http.StatusInternalServerError
}

// ErrorResponse is the JSON body the HTTP layer answers errors with.
type ErrorResponse struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// ResponseOf builds the wire representation for any error. Causes are kept out
// of the body; they belong in logs.
func ResponseOf(err error) ErrorResponse {
	var ae *AppError
	if errors.As(err, &ae) {
		return ErrorResponse{Code: ae.Code, Message: ae.Message}
	}
	return ErrorResponse{Code: CodeInternal, Message: ErrInternal.Message}
}
