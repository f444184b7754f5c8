package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jayllellis/do-spaces-media-offload/application/ports"
	"github.com/jayllellis/do-spaces-media-offload/domain/media"
)

const metadataSuffix = ".meta.json"

// objectMetadata is written next to each object
type objectMetadata struct {
	ContentType string    `json:"content_type"`
	ACL         string    `json:"acl"`
	StoredAt    time.Time `json:"stored_at"`
	Size        int64     `json:"size"`
}

// Storage implements ports.ObjectStore on a local directory. It mirrors the
// bucket layout for local development.
type Storage struct {
	basePath string
	logger   ports.Logger
	metrics  ports.Metrics
}

// NewStorage creates a filesystem store rooted at basePath
func NewStorage(basePath string, obs ports.Observability) (*Storage, error) {
	logger, metrics, err := obs.ComponentsScoped("storage.filesystem")
	if err != nil {
		return nil, fmt.Errorf("failed to get observability components: %w", err)
	}

	if err := os.MkdirAll(basePath, 0755); err != nil {
		logger.Error("Failed to create base path", "path", basePath, "error", err)
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	logger.Info("Filesystem storage initialized", "base_path", basePath)

	return &Storage{
		basePath: basePath,
		logger:   logger,
		metrics:  metrics,
	}, nil
}

// Put writes the object atomically and records its content type
func (s *Storage) Put(ctx context.Context, key string, reader io.Reader, contentType string) error {
	startTime := time.Now()

	if err := ctx.Err(); err != nil {
		return &ports.StoreError{Kind: media.ErrorKindRemoteTransport, Op: "put", Key: key, Err: err}
	}

	objectPath, err := s.objectPath(key)
	if err != nil {
		return s.fail("put", key, err)
	}

	if err := os.MkdirAll(filepath.Dir(objectPath), 0755); err != nil {
		return s.fail("put", key, fmt.Errorf("failed to create directory: %w", err))
	}

	tmp, err := os.CreateTemp(filepath.Dir(objectPath), ".upload-*")
	if err != nil {
		return s.fail("put", key, fmt.Errorf("failed to create file: %w", err))
	}
	defer os.Remove(tmp.Name())

	bytesWritten, err := io.Copy(tmp, reader)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return s.fail("put", key, fmt.Errorf("failed to write data: %w", err))
	}

	if err := os.Rename(tmp.Name(), objectPath); err != nil {
		return s.fail("put", key, fmt.Errorf("failed to move object into place: %w", err))
	}

	meta := objectMetadata{
		ContentType: contentType,
		ACL:         "public-read",
		StoredAt:    time.Now().UTC(),
		Size:        bytesWritten,
	}
	if err := s.saveMetadata(objectPath, meta); err != nil {
		return s.fail("put", key, fmt.Errorf("failed to save metadata: %w", err))
	}

	duration := time.Since(startTime)
	s.logger.Info("Object stored successfully",
		"key", key,
		"size_bytes", bytesWritten,
		"duration_ms", duration.Milliseconds())
	s.metrics.IncrementCounter("storage.put.success", nil)
	s.metrics.RecordHistogram("storage.put.duration", float64(duration.Milliseconds()), nil)

	return nil
}

// Delete removes the object and its metadata. Missing objects are ignored.
func (s *Storage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return &ports.StoreError{Kind: media.ErrorKindRemoteTransport, Op: "delete", Key: key, Err: err}
	}

	objectPath, err := s.objectPath(key)
	if err != nil {
		return s.fail("delete", key, err)
	}

	if err := os.Remove(objectPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return s.fail("delete", key, fmt.Errorf("failed to delete object: %w", err))
	}
	if err := os.Remove(objectPath + metadataSuffix); err != nil && !errors.Is(err, os.ErrNotExist) {
		return s.fail("delete", key, fmt.Errorf("failed to delete metadata: %w", err))
	}

	s.logger.Info("Object deleted successfully", "key", key)
	s.metrics.IncrementCounter("storage.delete.success", nil)
	return nil
}

// ContentType returns the content type recorded for key
func (s *Storage) ContentType(key string) (string, error) {
	objectPath, err := s.objectPath(key)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(objectPath + metadataSuffix)
	if errors.Is(err, os.ErrNotExist) {
		return "", ports.ErrObjectNotFound
	}
	if err != nil {
		return "", err
	}

	var meta objectMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return "", fmt.Errorf("failed to parse metadata: %w", err)
	}
	return meta.ContentType, nil
}

// objectPath maps a key below basePath, rejecting keys that escape it
func (s *Storage) objectPath(key string) (string, error) {
	cleaned := filepath.Clean("/" + filepath.FromSlash(key))
	if cleaned == string(filepath.Separator) || strings.HasSuffix(cleaned, metadataSuffix) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.basePath, cleaned), nil
}

func (s *Storage) saveMetadata(objectPath string, meta objectMetadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return os.WriteFile(objectPath+metadataSuffix, data, 0644)
}

func (s *Storage) fail(op, key string, err error) error {
	s.logger.Error("Filesystem storage operation failed", "op", op, "key", key, "error", err)
	s.metrics.IncrementCounter(fmt.Sprintf("storage.%s.errors", op), nil)
	return &ports.StoreError{Kind: media.ErrorKindRemoteService, Op: op, Key: key, Err: err}
}
