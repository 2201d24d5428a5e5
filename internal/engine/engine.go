// Package engine owns the job lifecycle: intake, the worker pool, the
// staleness reaper, and every client-facing operation.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"sync"
	"time"

	apperr "github.com/ToasterTechHelp/Yoink-Core/pkg/errors"
	"github.com/ToasterTechHelp/Yoink-Core/pkg/logger"
	"github.com/ToasterTechHelp/Yoink-Core/pkg/storage"

	"github.com/ToasterTechHelp/Yoink-Core/internal/detect"
	"github.com/ToasterTechHelp/Yoink-Core/internal/document"
	"github.com/ToasterTechHelp/Yoink-Core/internal/extract"
	"github.com/ToasterTechHelp/Yoink-Core/internal/models"
	"github.com/ToasterTechHelp/Yoink-Core/internal/utils/validator"
)

// Pagination bounds for the component accessor.
const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// Config tunes the engine. Zero values fall back to the defaults below.
type Config struct {
	Workers            int
	QueueSize          int
	DPI                float64
	Threshold          float64
	MaxUploadBytes     int64
	Staleness          time.Duration
	ReaperInterval     time.Duration
	GuestRetention     time.Duration
	GuestSweepInterval time.Duration
	OwnerQuota         int
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 3
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 128
	}
	if c.DPI <= 0 {
		c.DPI = extract.DefaultDPI
	}
	if c.Threshold < 0 {
		c.Threshold = extract.DefaultThreshold
	}
	if c.Staleness <= 0 {
		c.Staleness = 10 * time.Minute
	}
	if c.ReaperInterval <= 0 {
		c.ReaperInterval = time.Minute
	}
	if c.GuestRetention <= 0 {
		c.GuestRetention = 24 * time.Hour
	}
	if c.GuestSweepInterval <= 0 {
		c.GuestSweepInterval = time.Hour
	}
	if c.OwnerQuota <= 0 {
		c.OwnerQuota = 5
	}
	return c
}

// Upload is one submitted document. An empty Owner selects the ephemeral
// tier.
type Upload struct {
	Filename string
	Owner    string
	Data     []byte
}

// Engine accepts uploads, runs them through the extraction pipeline on a
// bounded worker pool, and answers every read and mutation for jobs.
type Engine struct {
	cfg      Config
	tiers    storage.Tiers
	pipeline *extract.Pipeline
	registry *registry
	policy   validator.UploadPolicy
	logger   logger.Logger

	queue     chan string
	stopCh    chan struct{}
	baseCtx   context.Context
	cancelAll context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

func New(cfg Config, tiers storage.Tiers, detector detect.Detector, log logger.Logger) *Engine {
	cfg = cfg.withDefaults()
	policy := validator.DefaultUploadPolicy()
	if cfg.MaxUploadBytes > 0 {
		policy.MaxSize = cfg.MaxUploadBytes
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		cfg:   cfg,
		tiers: tiers,
		pipeline: extract.NewPipeline(detector, log,
			extract.WithDPI(cfg.DPI),
			extract.WithThreshold(cfg.Threshold),
		),
		registry:  newRegistry(),
		policy:    policy,
		logger:    log,
		queue:     make(chan string, cfg.QueueSize),
		stopCh:    make(chan struct{}),
		baseCtx:   ctx,
		cancelAll: cancel,
	}
}

// Start launches the worker pool and the reaper.
func (e *Engine) Start() {
	e.startOnce.Do(func() {
		for i := 0; i < e.cfg.Workers; i++ {
			e.wg.Add(1)
			go e.worker(i)
		}
		e.wg.Add(1)
		go e.reaper()
		e.logger.Info("engine started",
			logger.Int("workers", e.cfg.Workers),
			logger.Int("queue_capacity", e.cfg.QueueSize),
		)
	})
}

// Stop interrupts running jobs and waits for the pool to drain, up to the
// context deadline. Interrupted records are repaired by Restore on the
// next boot.
func (e *Engine) Stop(ctx context.Context) error {
	e.stopOnce.Do(func() {
		close(e.stopCh)
		e.cancelAll()
	})
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit validates and stores an upload, then queues it. The returned job
// is already visible to Status.
func (e *Engine) Submit(ctx context.Context, upload Upload) (models.Job, error) {
	if err := validator.ValidateOwner(upload.Owner); err != nil {
		return models.Job{}, err
	}

	base := baseFilename(upload.Filename)
	head := upload.Data
	if len(head) > 512 {
		head = head[:512]
	}
	ext, err := e.policy.ValidateUpload(base, int64(len(upload.Data)), head)
	if err != nil {
		return models.Job{}, err
	}

	if upload.Owner != "" {
		if err := e.checkQuota(ctx, upload.Owner); err != nil {
			return models.Job{}, err
		}
	}

	meta, err := document.Probe(upload.Data, ext)
	if err != nil {
		return models.Job{}, err
	}

	now := time.Now().UTC()
	job := models.Job{
		ID:        newJobID(),
		Owner:     upload.Owner,
		Status:    models.StatusQueued,
		Filename:  base,
		Title:     base,
		Extension: ext,
		Progress:  models.Progress{TotalPages: meta.PageCount},
		Meta:      meta,
		CreatedAt: now,
		UpdatedAt: now,
	}

	store := e.store(job)
	if err := store.Put(ctx, sourceKey(job), bytes.NewReader(upload.Data), int64(len(upload.Data))); err != nil {
		return models.Job{}, apperr.Wrap(apperr.ErrInternal, fmt.Errorf("store source: %w", err))
	}
	if err := e.persistRecord(ctx, job); err != nil {
		store.DeleteTree(ctx, jobKey(job))
		return models.Job{}, apperr.Wrap(apperr.ErrInternal, err)
	}

	e.registry.add(job)
	select {
	case e.queue <- job.ID:
	default:
		e.registry.remove(job.ID)
		store.DeleteTree(ctx, jobKey(job))
		return models.Job{}, apperr.WithMessage(apperr.ErrInternal, "processing queue is full")
	}

	accepted := []logger.Field{
		logger.String("job_id", job.ID),
		logger.String("filename", job.Filename),
		logger.Bool("owned", job.Owned()),
		logger.Int("pages", meta.PageCount),
	}
	if meta.Title != "" {
		accepted = append(accepted, logger.String("doc_title", meta.Title))
	}
	e.logger.Info("job accepted", accepted...)
	return job, nil
}

// Status returns a point-in-time copy of the job record.
func (e *Engine) Status(rawID, owner string) (models.Job, error) {
	return e.lookup(rawID, owner)
}

// Result returns the persisted result document of a completed job.
func (e *Engine) Result(ctx context.Context, rawID, owner string) (*models.ResultDocument, error) {
	_, result, err := e.completedResult(ctx, rawID, owner)
	return result, err
}

// Components pages through the flattened component list of a completed
// job.
func (e *Engine) Components(ctx context.Context, rawID, owner string, offset, limit int) (models.ComponentBatch, error) {
	_, result, err := e.completedResult(ctx, rawID, owner)
	if err != nil {
		return models.ComponentBatch{}, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return result.Slice(offset, limit), nil
}

// ComponentImage returns the stored crop of one component as PNG bytes.
func (e *Engine) ComponentImage(ctx context.Context, rawID, owner string, componentID int) ([]byte, error) {
	job, result, err := e.completedResult(ctx, rawID, owner)
	if err != nil {
		return nil, err
	}
	comp, ok := result.Find(componentID)
	if !ok {
		return nil, apperr.WithMessage(apperr.ErrNotFound, "component %d not found", componentID)
	}

	rc, err := e.store(job).Get(ctx, jobKey(job)+"/"+comp.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.WithMessage(apperr.ErrNotFound, "component %d not found", componentID)
		}
		return nil, apperr.Wrap(apperr.ErrInternal, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrInternal, err)
	}
	return data, nil
}

// Rename changes the display title of an owned job, preserving the source
// extension.
func (e *Engine) Rename(ctx context.Context, rawID, owner, newTitle string) (models.Job, error) {
	job, err := e.lookup(rawID, owner)
	if err != nil {
		return models.Job{}, err
	}
	if !job.Owned() {
		return models.Job{}, apperr.WithMessage(apperr.ErrForbidden, "renaming requires an owned job")
	}

	base, err := validator.ValidateBaseName(newTitle)
	if err != nil {
		return models.Job{}, err
	}
	title := base
	if job.Extension != "" {
		title = base + "." + job.Extension
	}
	if title == job.Title {
		return job, nil
	}

	updated, ok := e.registry.rename(job.ID, title)
	if !ok {
		return models.Job{}, apperr.ErrNotFound
	}
	if err := e.persistRecord(ctx, updated); err != nil {
		e.registry.rename(job.ID, job.Title)
		return models.Job{}, apperr.Wrap(apperr.ErrInternal, err)
	}
	return updated, nil
}

// Cancel removes a job. Queued and terminal jobs disappear immediately,
// artifacts included; processing jobs are flagged and clean up at the next
// page boundary. A repeated cancel while one is pending succeeds.
func (e *Engine) Cancel(ctx context.Context, rawID, owner string) error {
	id, err := normalizeID(rawID)
	if err != nil {
		return err
	}
	job, ok := e.registry.get(id)
	if !ok {
		return apperr.ErrNotFound
	}
	if job.Owned() && job.Owner != owner {
		return apperr.ErrForbidden
	}

	job, outcome := e.registry.requestCancel(id)
	switch outcome {
	case cancelNotFound:
		return apperr.ErrNotFound
	case cancelFlagged:
		e.logger.Info("cancellation requested", logger.String("job_id", id))
		return nil
	default: // cancelRemoved
		if err := e.store(job).DeleteTree(ctx, jobKey(job)); err != nil {
			// Put the record back as failed so the artifacts stay
			// reachable for another delete.
			job.Status = models.StatusFailed
			job.Error = "cancellation did not finish, retry delete"
			e.registry.add(job)
			return apperr.Wrap(apperr.ErrInternal, err)
		}
		e.logger.Info("job removed", logger.String("job_id", id))
		return nil
	}
}

func (e *Engine) lookup(rawID, owner string) (models.Job, error) {
	id, err := normalizeID(rawID)
	if err != nil {
		return models.Job{}, err
	}
	job, ok := e.registry.get(id)
	if !ok {
		return models.Job{}, apperr.ErrNotFound
	}
	if job.Owned() && job.Owner != owner {
		return models.Job{}, apperr.ErrForbidden
	}
	return job, nil
}

func (e *Engine) completedResult(ctx context.Context, rawID, owner string) (models.Job, *models.ResultDocument, error) {
	job, err := e.lookup(rawID, owner)
	if err != nil {
		return models.Job{}, nil, err
	}
	if job.Status == models.StatusFailed {
		return models.Job{}, nil, apperr.WithMessage(apperr.ErrNotReady, "job failed: %s", job.Error)
	}
	if job.Status != models.StatusCompleted {
		return models.Job{}, nil, apperr.ErrNotReady
	}
	result, err := e.loadResult(ctx, job)
	if err != nil {
		return models.Job{}, nil, apperr.Wrap(apperr.ErrInternal, err)
	}
	return job, result, nil
}

func (e *Engine) checkQuota(ctx context.Context, owner string) error {
	keys, err := e.tiers.Durable.List(ctx, owner+"/")
	if err != nil {
		return apperr.Wrap(apperr.ErrInternal, fmt.Errorf("count retained jobs: %w", err))
	}
	count := 0
	for _, key := range keys {
		if strings.HasSuffix(key, "/"+recordName) {
			count++
		}
	}
	if count >= e.cfg.OwnerQuota {
		return apperr.ErrQuotaExceeded
	}
	return nil
}

func (e *Engine) worker(n int) {
	defer e.wg.Done()
	log := e.logger.With(logger.Int("worker", n))
	for {
		select {
		case <-e.stopCh:
			return
		case id := <-e.queue:
			e.runJob(id, log)
		}
	}
}

func (e *Engine) runJob(id string, log logger.Logger) {
	job, ok := e.registry.beginProcessing(id)
	if !ok {
		return
	}
	log = log.With(logger.String("job_id", id))
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while processing job",
				logger.Any("panic", r),
				logger.Stack(),
			)
			e.failJob(context.Background(), id, apperr.ErrInternal)
		}
	}()

	ctx := e.baseCtx
	if err := e.persistRecord(ctx, job); err != nil {
		log.Warn("could not persist processing record", logger.Error(err))
	}

	store := e.store(job)
	rc, err := store.Get(ctx, sourceKey(job))
	if err != nil {
		e.failJob(ctx, id, apperr.Wrap(apperr.ErrInternal, fmt.Errorf("load source: %w", err)))
		return
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		e.failJob(ctx, id, apperr.Wrap(apperr.ErrInternal, fmt.Errorf("read source: %w", err)))
		return
	}

	doc, err := document.Open(data, job.Extension)
	if err != nil {
		e.failJob(ctx, id, err)
		return
	}
	defer doc.Close()

	e.registry.setTotalPages(id, doc.PageCount())

	result, err := e.pipeline.Run(ctx, doc, job.Filename,
		storeSink{store: store, base: jobKey(job)},
		func(current, _ int) { e.registry.setProgress(id, current) },
		func() bool { return e.registry.cancelRequested(id) },
	)
	switch {
	case err == nil:
	case errors.Is(err, extract.ErrCancelled):
		e.finishCancelled(id, job, log)
		return
	case errors.Is(err, context.Canceled):
		// Shutdown. Restore repairs the record on the next boot.
		log.Info("job interrupted by shutdown")
		return
	default:
		e.failJob(ctx, id, err)
		return
	}

	// The result document lands before the status flips, so a completed
	// job always has a readable result.
	if err := e.persistResult(ctx, job, result); err != nil {
		e.failJob(ctx, id, apperr.Wrap(apperr.ErrInternal, err))
		return
	}

	updated, outcome := e.registry.complete(id, result.TotalComponents)
	switch outcome {
	case completeOK:
		if err := e.persistRecord(ctx, updated); err != nil {
			log.Warn("could not persist completed record", logger.Error(err))
		}
		log.Info("job completed",
			logger.Int("pages", result.TotalPages),
			logger.Int("components", result.TotalComponents),
			logger.Int("dropped", result.DroppedDetections),
			logger.Duration("took", time.Since(started)),
		)
	case completeCancelled:
		e.finishCancelled(id, job, log)
	default: // completeGone, completeSuperseded
		store.DeleteTree(ctx, componentsPrefix(job))
		store.Delete(ctx, resultKey(job))
		log.Warn("discarding result for a job that is no longer processing")
	}
}

// finishCancelled removes everything a cancelled job left behind. Cleanup
// runs on a fresh context; it must finish even while the engine is
// stopping.
func (e *Engine) finishCancelled(id string, job models.Job, log logger.Logger) {
	ctx := context.Background()
	if err := e.store(job).DeleteTree(ctx, jobKey(job)); err != nil {
		log.Error("failed to remove cancelled job artifacts", logger.Error(err))
	}
	e.registry.remove(id)
	log.Info("job cancelled and removed")
}

// failJob marks a job failed and strips any partial output, keeping the
// source and the failed record for inspection.
func (e *Engine) failJob(ctx context.Context, id string, cause error) {
	job, ok := e.registry.fail(id, userMessage(cause))
	if !ok {
		return
	}
	store := e.store(job)
	if err := store.DeleteTree(ctx, componentsPrefix(job)); err != nil {
		e.logger.Warn("failed to remove partial crops",
			logger.String("job_id", id),
			logger.Error(err),
		)
	}
	if err := store.Delete(ctx, resultKey(job)); err != nil {
		e.logger.Warn("failed to remove partial result",
			logger.String("job_id", id),
			logger.Error(err),
		)
	}
	if err := e.persistRecord(ctx, job); err != nil {
		e.logger.Warn("could not persist failed record",
			logger.String("job_id", id),
			logger.Error(err),
		)
	}
	e.logger.Error("job failed",
		logger.String("job_id", id),
		logger.String("reason", job.Error),
		logger.Error(cause),
	)
}

func userMessage(err error) string {
	var ae *apperr.AppError
	if errors.As(err, &ae) {
		return ae.Message
	}
	return apperr.ErrInternal.Message
}

func baseFilename(name string) string {
	return path.Base(strings.ReplaceAll(name, "\\", "/"))
}

// storeSink scopes pipeline writes to the job's tree.
type storeSink struct {
	store storage.Store
	base  string
}

func (s storeSink) Put(ctx context.Context, rel string, r io.Reader, size int64) error {
	return s.store.Put(ctx, s.base+"/"+rel, r, size)
}

var _ extract.Sink = storeSink{}
