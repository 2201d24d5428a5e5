package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ToasterTechHelp/Yoink-Core/pkg/logger"
	"github.com/ToasterTechHelp/Yoink-Core/pkg/storage/local"
	"github.com/ToasterTechHelp/Yoink-Core/pkg/storage/minio"
	"github.com/ToasterTechHelp/Yoink-Core/pkg/storage/s3"
)

// Kind selects a storage backend.
type Kind string

const (
	KindLocal Kind = "local"
	KindMinio Kind = "minio"
	KindS3    Kind = "s3"
)

// Store persists job artifacts and records under slash-separated keys such as
// "<job>/source/<name>", "<job>/components/3.png" and "<job>/job.json".
//
// Get reports missing keys with an error satisfying errors.Is(err,
// fs.ErrNotExist). Delete of a missing key is a no-op.
type Store interface {
	Put(ctx context.Context, key string, reader io.Reader, size int64) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// DeleteTree removes every object under prefix. A job removal must never
	// leave orphaned crops behind.
	DeleteTree(ctx context.Context, prefix string) error
	// List returns all keys under prefix, "" meaning everything.
	List(ctx context.Context, prefix string) ([]string, error)
	// CleanupBefore removes job trees whose newest object predates threshold
	// and returns the removed top-level prefixes.
	CleanupBefore(ctx context.Context, threshold time.Time) ([]string, error)
}

// Config selects and parameterizes a backend.
type Config struct {
	Kind  Kind
	Local local.Config
	Minio minio.Config
	S3    s3.Config
}

// NewStore is the backend factory.
func NewStore(cfg Config, log logger.Logger) (Store, error) {
	switch cfg.Kind {
	case KindLocal:
		return local.New(cfg.Local, log)
	case KindMinio:
		return minio.New(cfg.Minio, log)
	case KindS3:
		return s3.New(cfg.S3, log)
	default:
		return nil, fmt.Errorf("unsupported storage kind: %s", cfg.Kind)
	}
}

// Tiers bundles the two capability-equivalent stores. The presence of an
// owner picks the tier at job creation time, fixed for the job's lifetime.
type Tiers struct {
	Ephemeral Store
	Durable   Store
}

// ForOwner returns the tier the given owner's jobs live in.
func (t Tiers) ForOwner(owner string) Store {
	if owner == "" {
		return t.Ephemeral
	}
	return t.Durable
}
