package models

import (
	"time"
)

// JobStatus is the lifecycle state of an extraction job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status is an end state. Cancelled jobs have no
// status; cancellation removes the job instead of recording a state.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is one of the known lifecycle states.
func (s JobStatus) Valid() bool {
	switch s {
	case StatusQueued, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Progress is the page counter exposed to pollers. CurrentPage never
// decreases and never exceeds TotalPages.
type Progress struct {
	CurrentPage int `json:"current_page"`
	TotalPages  int `json:"total_pages"`
}

// DocumentMeta is best-effort information read from the source document.
type DocumentMeta struct {
	PageCount int    `json:"page_count,omitempty"`
	Title     string `json:"title,omitempty"`
	Author    string `json:"author,omitempty"`
}

// Job is the unit of work for one uploaded document. Instances are mutated
// only by the engine; readers get value copies.
type Job struct {
	ID              string        `json:"id"`
	Owner           string        `json:"owner,omitempty"`
	Status          JobStatus     `json:"status"`
	Filename        string        `json:"filename"`  // original upload name, immutable
	Title           string        `json:"title"`     // display name, renameable, defaults to Filename
	Extension       string        `json:"extension"` // normalized, without dot
	Progress        Progress      `json:"progress"`
	TotalComponents int           `json:"total_components"`
	Error           string        `json:"error,omitempty"`
	Meta            *DocumentMeta `json:"meta,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Owned reports whether the job belongs to an authenticated owner, which
// selects the durable storage tier.
func (j *Job) Owned() bool {
	return j.Owner != ""
}
