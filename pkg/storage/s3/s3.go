package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/sync/errgroup"

	"github.com/ToasterTechHelp/Yoink-Core/pkg/logger"
)

// deleteBatchSize is the DeleteObjects API limit.
const deleteBatchSize = 1000

// Config for the S3-backed store.
type Config struct {
	Region     string
	AccessKey  string
	SecretKey  string
	BucketName string
	// Endpoint overrides the AWS endpoint, e.g. for LocalStack.
	Endpoint string
}

// Store keeps job trees as objects in one bucket. It backs the durable tier.
type Store struct {
	client *s3.Client
	bucket string
	logger logger.Logger
}

// New builds the client from static credentials and verifies the bucket.
func New(cfg Config, log logger.Logger) (*Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	if _, err := client.HeadBucket(context.Background(), &s3.HeadBucketInput{
		Bucket: aws.String(cfg.BucketName),
	}); err != nil {
		return nil, fmt.Errorf("verify bucket existence: %w", err)
	}

	return &Store{client: client, bucket: cfg.BucketName, logger: log}, nil
}

func (s *Store) Put(ctx context.Context, key string, reader io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          reader,
		ContentLength: aws.Int64(size),
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
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("get %s: %w", key, fs.ErrNotExist)
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return result.Body, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
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
	keys, err := s.List(ctx, prefix)
	if err != nil {
		return fmt.Errorf("delete tree %s: %w", prefix, err)
	}
	if len(keys) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < len(keys); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(keys) {
			end = len(keys)
		}
		batch := keys[start:end]
		g.Go(func() error {
			ids := make([]types.ObjectIdentifier, 0, len(batch))
			for _, key := range batch {
				ids = append(ids, types.ObjectIdentifier{Key: aws.String(key)})
			}
			out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(s.bucket),
				Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
			})
			if err != nil {
				return err
			}
			if len(out.Errors) > 0 {
				first := out.Errors[0]
				return fmt.Errorf("delete %s: %s", aws.ToString(first.Key), aws.ToString(first.Message))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("delete tree %s: %w", prefix, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
	if p := treePrefix(prefix); p != "" {
		input.Prefix = aws.String(p)
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// CleanupBefore expires whole job trees. A tree survives as long as any of
// its objects is newer than the threshold.
func (s *Store) CleanupBefore(ctx context.Context, threshold time.Time) ([]string, error) {
	newestByPrefix := map[string]time.Time{}
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list bucket: %w", err)
		}
		for _, obj := range page.Contents {
			top := strings.SplitN(aws.ToString(obj.Key), "/", 2)[0]
			if obj.LastModified != nil && obj.LastModified.After(newestByPrefix[top]) {
				newestByPrefix[top] = *obj.LastModified
			}
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
