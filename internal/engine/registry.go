package engine

import (
	"sync"
	"time"

	"github.com/ToasterTechHelp/Yoink-Core/internal/models"
)

// cancelOutcome is what a cancel request found.
type cancelOutcome int

const (
	cancelNotFound cancelOutcome = iota
	// cancelRemoved: the job was queued or terminal; its entry is gone and
	// the caller owns artifact cleanup.
	cancelRemoved
	// cancelFlagged: a worker holds the job; it will observe the flag at
	// the next page boundary and clean up itself.
	cancelFlagged
)

// completeOutcome is what finalization found.
type completeOutcome int

const (
	completeOK completeOutcome = iota
	completeGone
	// completeCancelled: cancellation won the race against the last page.
	completeCancelled
	// completeSuperseded: something else moved the job out of processing,
	// e.g. the staleness reaper failed it.
	completeSuperseded
)

type entry struct {
	job    models.Job
	cancel bool
}

// registry is the authoritative in-memory job table. Everything returned
// from it is a value copy; only the engine mutates entries, through the
// methods below.
type registry struct {
	mu   sync.RWMutex
	jobs map[string]*entry
}

func newRegistry() *registry {
	return &registry{jobs: make(map[string]*entry)}
}

func (r *registry) add(job models.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = &entry{job: job}
}

func (r *registry) get(id string) (models.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.jobs[id]
	if !ok {
		return models.Job{}, false
	}
	return e.job, true
}

func (r *registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
}

// beginProcessing moves a queued job to processing. It refuses jobs that
// are gone, already claimed, or flagged for cancellation, which keeps the
// one-worker-per-job guarantee even if an id were ever enqueued twice.
func (r *registry) beginProcessing(id string) (models.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.jobs[id]
	if !ok || e.cancel || e.job.Status != models.StatusQueued {
		return models.Job{}, false
	}
	e.job.Status = models.StatusProcessing
	e.job.UpdatedAt = time.Now().UTC()
	return e.job, true
}

// setTotalPages records the page count discovered when the document is
// opened for processing.
func (r *registry) setTotalPages(id string, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.jobs[id]
	if !ok {
		return
	}
	e.job.Progress.TotalPages = total
	e.job.UpdatedAt = time.Now().UTC()
}

// setProgress advances the page counter. It never moves backwards and
// never exceeds the page total, regardless of caller timing.
func (r *registry) setProgress(id string, current int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.jobs[id]
	if !ok {
		return
	}
	if total := e.job.Progress.TotalPages; total > 0 && current > total {
		current = total
	}
	if current <= e.job.Progress.CurrentPage {
		return
	}
	e.job.Progress.CurrentPage = current
	e.job.UpdatedAt = time.Now().UTC()
}

// requestCancel implements the single-lock cancel decision.
func (r *registry) requestCancel(id string) (models.Job, cancelOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.jobs[id]
	if !ok {
		return models.Job{}, cancelNotFound
	}
	if e.job.Status == models.StatusProcessing {
		e.cancel = true
		return e.job, cancelFlagged
	}
	job := e.job
	delete(r.jobs, id)
	return job, cancelRemoved
}

func (r *registry) cancelRequested(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.jobs[id]
	return ok && e.cancel
}

// complete finalizes a processing job unless cancellation or the reaper
// intervened.
func (r *registry) complete(id string, totalComponents int) (models.Job, completeOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.jobs[id]
	if !ok {
		return models.Job{}, completeGone
	}
	if e.cancel {
		return e.job, completeCancelled
	}
	if e.job.Status != models.StatusProcessing {
		return e.job, completeSuperseded
	}
	e.job.Status = models.StatusCompleted
	e.job.TotalComponents = totalComponents
	e.job.Progress.CurrentPage = e.job.Progress.TotalPages
	e.job.UpdatedAt = time.Now().UTC()
	return e.job, completeOK
}

// fail moves any non-terminal job to failed with the given message.
func (r *registry) fail(id string, message string) (models.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.jobs[id]
	if !ok || e.job.Status.Terminal() {
		return models.Job{}, false
	}
	e.job.Status = models.StatusFailed
	e.job.Error = message
	e.job.UpdatedAt = time.Now().UTC()
	return e.job, true
}

// rename updates the display title, bumping UpdatedAt only on change.
func (r *registry) rename(id string, title string) (models.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.jobs[id]
	if !ok {
		return models.Job{}, false
	}
	if e.job.Title != title {
		e.job.Title = title
		e.job.UpdatedAt = time.Now().UTC()
	}
	return e.job, true
}

// snapshot copies the whole table, for the reaper's staleness scan.
func (r *registry) snapshot() []models.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	jobs := make([]models.Job, 0, len(r.jobs))
	for _, e := range r.jobs {
		jobs = append(jobs, e.job)
	}
	return jobs
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
