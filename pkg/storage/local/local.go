package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ToasterTechHelp/Yoink-Core/pkg/logger"
)

// Config for the filesystem store.
type Config struct {
	Root string
}

// Store keeps job trees as directories under a root. It backs the ephemeral
// tier and doubles as a durable tier for single-node deployments.
type Store struct {
	root   string
	logger logger.Logger
}

// New creates the root directory if needed.
func New(cfg Config, log logger.Logger) (*Store, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("local storage root not configured")
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Store{root: root, logger: log}, nil
}

// path maps a key to a filesystem path, refusing escapes from the root.
func (s *Store) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid storage key: %q", key)
	}
	return filepath.Join(s.root, clean), nil
}

func (s *Store) Put(ctx context.Context, key string, reader io.Reader, size int64) error {
	target, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", key, err)
	}

	// Write to a sibling temp file and rename so readers never observe a
	// half-written object.
	tmp, err := os.CreateTemp(filepath.Dir(target), ".put-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", key, err)
	}
	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("finalize %s: %w", key, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	target, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(target)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	target, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *Store) DeleteTree(ctx context.Context, prefix string) error {
	target, err := s.path(prefix)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("delete tree %s: %w", prefix, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	start := s.root
	if prefix != "" {
		p, err := s.path(prefix)
		if err != nil {
			return nil, err
		}
		start = p
	}

	var keys []string
	err := filepath.WalkDir(start, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// CleanupBefore removes whole job directories whose content has not changed
// since threshold. The newest file in a tree decides, so a job whose result
// landed recently is kept even when its upload is older.
func (s *Store) CleanupBefore(ctx context.Context, threshold time.Time) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read storage root: %w", err)
	}

	var expired []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		newest, err := newestModTime(filepath.Join(s.root, entry.Name()))
		if err != nil {
			s.logger.Warn("skipping unreadable job tree",
				logger.String("prefix", entry.Name()),
				logger.Error(err),
			)
			continue
		}
		if newest.Before(threshold) {
			expired = append(expired, entry.Name())
		}
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, prefix := range expired {
		g.Go(func() error {
			if err := os.RemoveAll(filepath.Join(s.root, prefix)); err != nil {
				return fmt.Errorf("remove expired tree %s: %w", prefix, err)
			}
			s.logger.Info("removed expired job tree", logger.String("prefix", prefix))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return expired, nil
}

// newestModTime looks at files only; directory mtimes churn on writes inside
// them and would keep stale trees alive.
func newestModTime(dir string) (time.Time, error) {
	var newest time.Time
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
		return nil
	})
	return newest, err
}
