package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrBlobNotFound is returned by Get when the backing store has no blob
// under the given name, as opposed to a read failure.
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore holds the raw bytes of uploaded files, keyed by owner and
// storage name. Metadata lives elsewhere.
type BlobStore interface {
	Put(ctx context.Context, username, storageName string, data []byte) error
	Get(ctx context.Context, username, storageName string) ([]byte, error)
	Delete(ctx context.Context, username, storageName string) error
}

// FilesystemStore keeps blobs on local disk under one directory per
// username, with the storage name as the on-disk filename.
type FilesystemStore struct {
	baseDir string
}

// NewFilesystemStore creates a filesystem blob store rooted at baseDir
func NewFilesystemStore(baseDir string) (*FilesystemStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}
	return &FilesystemStore{baseDir: baseDir}, nil
}

// blobPath resolves the on-disk path for a blob and rejects any name that
// would escape the store's base directory.
func (fs *FilesystemStore) blobPath(username, storageName string) (string, error) {
	if username == "" || storageName == "" {
		return "", fmt.Errorf("invalid blob name")
	}

	resolved := filepath.Join(fs.baseDir, username, storageName)
	absBase, err := filepath.Abs(fs.baseDir)
	if err != nil {
		return "", err
	}
	absUserDir, err := filepath.Abs(filepath.Join(fs.baseDir, username))
	if err != nil {
		return "", err
	}
	absResolved, err := filepath.Abs(resolved)
	if err != nil {
		return "", err
	}
	// Neither the username nor the storage name may escape its directory.
	if !strings.HasPrefix(absUserDir, absBase+string(filepath.Separator)) ||
		!strings.HasPrefix(absResolved, absUserDir+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid blob name")
	}

	return resolved, nil
}

// Put writes a blob with tracing. The write goes through a temp file and
// an atomic rename.
func (fs *FilesystemStore) Put(ctx context.Context, username, storageName string, data []byte) error {
	ctx, span := tracer.Start(ctx, "fs.put_blob",
		trace.WithAttributes(
			attribute.String("storage_name", storageName),
			attribute.Int("size_bytes", len(data)),
		),
	)
	defer span.End()

	path, err := fs.blobPath(username, storageName)
	if err != nil {
		span.RecordError(err)
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create user directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create temp blob: %w", err)
	}
	tempPath := tempFile.Name()

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		span.RecordError(err)
		return fmt.Errorf("failed to write blob: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		os.Remove(tempPath)
		span.RecordError(err)
		return fmt.Errorf("failed to close blob: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		span.RecordError(err)
		return fmt.Errorf("failed to store blob: %w", err)
	}

	return nil
}

// Get reads a whole blob with tracing
func (fs *FilesystemStore) Get(ctx context.Context, username, storageName string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "fs.get_blob",
		trace.WithAttributes(
			attribute.String("storage_name", storageName),
		),
	)
	defer span.End()

	path, err := fs.blobPath(username, storageName)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			span.SetAttributes(attribute.Bool("blob_found", false))
			return nil, ErrBlobNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}

	span.SetAttributes(attribute.Int("size_bytes", len(data)))
	return data, nil
}

// Delete removes a blob with tracing. A missing blob is not an error.
func (fs *FilesystemStore) Delete(ctx context.Context, username, storageName string) error {
	ctx, span := tracer.Start(ctx, "fs.delete_blob",
		trace.WithAttributes(
			attribute.String("storage_name", storageName),
		),
	)
	defer span.End()

	path, err := fs.blobPath(username, storageName)
	if err != nil {
		span.RecordError(err)
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		span.RecordError(err)
		return fmt.Errorf("failed to delete blob: %w", err)
	}

	return nil
}
