package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ToasterTechHelp/Yoink-Core/pkg/logger"
	"github.com/ToasterTechHelp/Yoink-Core/pkg/storage"

	"github.com/ToasterTechHelp/Yoink-Core/internal/models"
)

const (
	recordName = "job.json"
	resultName = "result.json"
)

// jobKey is the storage tree root for a job. Owned jobs are namespaced by
// owner, which is also what the quota count walks.
func jobKey(job models.Job) string {
	if job.Owned() {
		return job.Owner + "/" + job.ID
	}
	return job.ID
}

func recordKey(job models.Job) string { return jobKey(job) + "/" + recordName }
func resultKey(job models.Job) string { return jobKey(job) + "/" + resultName }
func sourceKey(job models.Job) string { return jobKey(job) + "/source/" + job.Filename }

func componentsPrefix(job models.Job) string { return jobKey(job) + "/components" }

func (e *Engine) store(job models.Job) storage.Store {
	return e.tiers.ForOwner(job.Owner)
}

// persistRecord writes the job record through the job's tier, which is what
// restart recovery reads back.
func (e *Engine) persistRecord(ctx context.Context, job models.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job record: %w", err)
	}
	if err := e.store(job).Put(ctx, recordKey(job), bytes.NewReader(data), int64(len(data))); err != nil {
		return fmt.Errorf("persist job record: %w", err)
	}
	return nil
}

func (e *Engine) persistResult(ctx context.Context, job models.Job, result *models.ResultDocument) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result document: %w", err)
	}
	if err := e.store(job).Put(ctx, resultKey(job), bytes.NewReader(data), int64(len(data))); err != nil {
		return fmt.Errorf("persist result document: %w", err)
	}
	return nil
}

func (e *Engine) loadResult(ctx context.Context, job models.Job) (*models.ResultDocument, error) {
	rc, err := e.store(job).Get(ctx, resultKey(job))
	if err != nil {
		return nil, fmt.Errorf("load result document: %w", err)
	}
	defer rc.Close()

	var result models.ResultDocument
	if err := json.NewDecoder(rc).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode result document: %w", err)
	}
	return &result, nil
}

// Restore reloads job records from both tiers into the table. Records
// caught mid-flight by the previous shutdown become failed; rerunning them
// would amount to an automatic retry.
func (e *Engine) Restore(ctx context.Context) error {
	for _, store := range []storage.Store{e.tiers.Ephemeral, e.tiers.Durable} {
		if store == nil {
			continue
		}
		if err := e.restoreFrom(ctx, store); err != nil {
			return err
		}
	}
	e.logger.Info("job table restored", logger.Int("jobs", e.registry.len()))
	return nil
}

func (e *Engine) restoreFrom(ctx context.Context, store storage.Store) error {
	keys, err := store.List(ctx, "")
	if err != nil {
		return fmt.Errorf("list job records: %w", err)
	}

	for _, key := range keys {
		if !strings.HasSuffix(key, "/"+recordName) {
			continue
		}
		job, err := readRecord(ctx, store, key)
		if err != nil {
			e.logger.Warn("skipping unreadable job record",
				logger.String("key", key),
				logger.Error(err),
			)
			continue
		}
		if _, exists := e.registry.get(job.ID); exists {
			e.logger.Warn("duplicate job record ignored", logger.String("key", key))
			continue
		}

		if !job.Status.Terminal() {
			job.Status = models.StatusFailed
			job.Error = "interrupted by shutdown"
			if err := e.persistRecord(ctx, job); err != nil {
				e.logger.Warn("failed to persist interrupted job record",
					logger.String("job_id", job.ID),
					logger.Error(err),
				)
			}
		}
		e.registry.add(job)
	}
	return nil
}

func readRecord(ctx context.Context, store storage.Store, key string) (models.Job, error) {
	rc, err := store.Get(ctx, key)
	if err != nil {
		return models.Job{}, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return models.Job{}, err
	}

	var job models.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return models.Job{}, err
	}
	if job.ID == "" || !job.Status.Valid() {
		return models.Job{}, fmt.Errorf("malformed record at %s", key)
	}
	return job, nil
}
