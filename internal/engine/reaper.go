package engine

import (
	"time"

	apperr "github.com/ToasterTechHelp/Yoink-Core/pkg/errors"
	"github.com/ToasterTechHelp/Yoink-Core/pkg/logger"

	"github.com/ToasterTechHelp/Yoink-Core/internal/models"
)

// reaper runs the two periodic duties: failing processing jobs that stopped
// making progress, and expiring old guest job trees.
func (e *Engine) reaper() {
	defer e.wg.Done()

	stale := time.NewTicker(e.cfg.ReaperInterval)
	defer stale.Stop()
	sweep := time.NewTicker(e.cfg.GuestSweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-stale.C:
			e.reapStale()
		case <-sweep.C:
			e.sweepGuests()
		}
	}
}

// reapStale fails processing jobs whose last observable progress predates
// the staleness window. UpdatedAt moves on every page, so a healthy slow
// job is never reaped.
func (e *Engine) reapStale() {
	cutoff := time.Now().UTC().Add(-e.cfg.Staleness)
	for _, job := range e.registry.snapshot() {
		if job.Status != models.StatusProcessing || job.UpdatedAt.After(cutoff) {
			continue
		}
		e.logger.Warn("reaping stale job",
			logger.String("job_id", job.ID),
			logger.Time("last_update", job.UpdatedAt),
		)
		e.failJob(e.baseCtx, job.ID, apperr.WithMessage(apperr.ErrInternal, "no progress within %s", e.cfg.Staleness))
	}
}

// sweepGuests expires ephemeral job trees past the retention window and
// drops their table entries.
func (e *Engine) sweepGuests() {
	if e.tiers.Ephemeral == nil {
		return
	}
	threshold := time.Now().UTC().Add(-e.cfg.GuestRetention)
	removed, err := e.tiers.Ephemeral.CleanupBefore(e.baseCtx, threshold)
	if err != nil {
		e.logger.Error("guest sweep failed", logger.Error(err))
		return
	}
	for _, id := range removed {
		e.registry.remove(id)
	}
	if len(removed) > 0 {
		e.logger.Info("expired guest jobs removed", logger.Int("count", len(removed)))
	}
}
