// Package storage archives calibration reports in blob storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when no report exists for a run ID.
var ErrNotFound = errors.New("report not found")

// ReportStore abstracts blob storage for calibration reports.
type ReportStore interface {
	PutReport(ctx context.Context, runID string, data []byte) error
	GetReport(ctx context.Context, runID string) ([]byte, error)
}

// Open returns the store for uri: s3://bucket/prefix, gs://bucket/prefix, or
// a local directory. s3cfg supplies region, endpoint and credentials for S3;
// its Bucket and Prefix are taken from the URI.
func Open(ctx context.Context, uri string, s3cfg S3Config) (ReportStore, error) {
	if uri == "" {
		return nil, fmt.Errorf("empty storage uri")
	}
	if !strings.Contains(uri, "://") {
		return NewLocalStorage(uri), nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("parsing storage uri: %w", err)
	}
	if u.Scheme == "file" {
		return NewLocalStorage(filepath.Join(u.Host, u.Path)), nil
	}
	if u.Host == "" {
		return nil, fmt.Errorf("storage uri %q has no bucket", uri)
	}
	prefix := strings.Trim(u.Path, "/")

	switch u.Scheme {
	case "s3":
		s3cfg.Bucket = u.Host
		s3cfg.Prefix = prefix
		return NewS3Storage(ctx, s3cfg)
	case "gs":
		return NewGCSStorage(ctx, u.Host, prefix)
	default:
		return nil, fmt.Errorf("unsupported storage scheme %q", u.Scheme)
	}
}

// objectKey is the blob key of a run's report under prefix.
func objectKey(prefix, runID string) string {
	key := "reports/" + runID + ".json"
	if prefix != "" {
		key = prefix + "/" + key
	}
	return key
}

// validRunID keeps run IDs from escaping the store's namespace.
func validRunID(runID string) error {
	if runID == "" || strings.ContainsAny(runID, `/\`) || runID == "." || runID == ".." {
		return fmt.Errorf("invalid run id %q", runID)
	}
	return nil
}

// LocalStorage implements ReportStore using the local filesystem.
// Useful for development, testing and the CLI's default archive.
type LocalStorage struct {
	BaseDir string
}

// NewLocalStorage creates a LocalStorage rooted at the given directory.
func NewLocalStorage(baseDir string) *LocalStorage {
	return &LocalStorage{BaseDir: baseDir}
}

func (s *LocalStorage) path(runID string) string {
	return filepath.Join(s.BaseDir, filepath.FromSlash(objectKey("", runID)))
}

// PutReport stores a report blob.
func (s *LocalStorage) PutReport(ctx context.Context, runID string, data []byte) error {
	if err := validRunID(runID); err != nil {
		return err
	}
	path := s.path(runID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// GetReport retrieves a report blob.
func (s *LocalStorage) GetReport(ctx context.Context, runID string) ([]byte, error) {
	if err := validRunID(runID); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(runID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", runID, ErrNotFound)
	}
	return data, err
}
