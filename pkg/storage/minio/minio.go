package minio

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ToasterTechHelp/Yoink-Core/pkg/logger"
)

// Config for the MinIO-backed store.
type Config struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	BucketName string
	Region     string
	UseSSL     bool
}

// Store keeps job trees as objects in one bucket. It backs the durable tier.
type Store struct {
	client *minio.Client
	bucket string
	logger logger.Logger
}

// New connects and ensures the bucket exists.
func New(cfg Config, log logger.Logger) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(context.Background(), cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(context.Background(), cfg.BucketName, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &Store{client: client, bucket: cfg.BucketName, logger: log}, nil
}

func (s *Store) Put(ctx context.Context, key string, reader io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentTypeFor(key),
	})
	if err != nil {
		s.logger.Error("failed to store object",
			logger.String("bucket", s.bucket),
			logger.String("key", key),
			logger.Error(err),
		)
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	// GetObject is lazy; Stat forces the lookup so missing keys surface here.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("get %s: %w", key, fs.ErrNotExist)
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return obj, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		s.logger.Error("failed to delete object",
			logger.String("bucket", s.bucket),
			logger.String("key", key),
			logger.Error(err),
		)
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *Store) DeleteTree(ctx context.Context, prefix string) error {
	objectsCh := make(chan minio.ObjectInfo)
	go func() {
		defer close(objectsCh)
		for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
			Prefix:    treePrefix(prefix),
			Recursive: true,
		}) {
			if obj.Err != nil {
				s.logger.Error("error listing objects for removal",
					logger.String("prefix", prefix),
					logger.Error(obj.Err),
				)
				return
			}
			objectsCh <- obj
		}
	}()

	for rerr := range s.client.RemoveObjects(ctx, s.bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		if rerr.Err != nil {
			return fmt.Errorf("delete tree %s: %w", prefix, rerr.Err)
		}
	}
	return nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    treePrefix(prefix),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	sort.Strings(keys)
	return keys, nil
}

// CleanupBefore expires whole job trees. A tree survives as long as any of
// its objects is newer than the threshold.
func (s *Store) CleanupBefore(ctx context.Context, threshold time.Time) ([]string, error) {
	newestByPrefix := map[string]time.Time{}
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list bucket: %w", obj.Err)
		}
		top := strings.SplitN(obj.Key, "/", 2)[0]
		if obj.LastModified.After(newestByPrefix[top]) {
			newestByPrefix[top] = obj.LastModified
		}
	}

	var expired []string
	for prefix, newest := range newestByPrefix {
		if newest.Before(threshold) {
			expired = append(expired, prefix)
		}
	}
	sort.Strings(expired)

	for _, prefix := range expired {
		if err := s.DeleteTree(ctx, prefix); err != nil {
			return nil, err
		}
		s.logger.Info("removed expired job tree",
			logger.String("bucket", s.bucket),
			logger.String("prefix", prefix),
		)
	}
	return expired, nil
}

func treePrefix(prefix string) string {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		return prefix + "/"
	}
	return prefix
}

func contentTypeFor(key string) string {
	switch {
	case strings.HasSuffix(key, ".png"):
		return "image/png"
	case strings.HasSuffix(key, ".jpg"), strings.HasSuffix(key, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(key, ".json"):
		return "application/json"
	case strings.HasSuffix(key, ".pdf"):
		return "application/pdf"
	}
	return "application/octet-stream"
}
