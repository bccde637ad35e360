package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/maneesh/filevault/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("filevault-storage")

// MetadataStore is the durable username -> User mapping. Every mutation is
// a full Load, in-memory edit, full Save cycle; the store itself provides
// no cross-request isolation, so callers must serialize load-mutate-save
// sequences behind a single writer.
type MetadataStore interface {
	Load(ctx context.Context) (map[string]*models.User, error)
	Save(ctx context.Context, users map[string]*models.User) error
}

// JSONStore persists the mapping as one JSON document on local disk.
// Saves go through a temp file and an atomic rename so a crash can never
// leave a half-written document behind.
type JSONStore struct {
	path string
}

// NewJSONStore creates a JSON-document metadata store at path
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Load reads the whole document. A missing file yields an empty mapping.
func (js *JSONStore) Load(ctx context.Context) (map[string]*models.User, error) {
	ctx, span := tracer.Start(ctx, "json.load_users")
	defer span.End()

	data, err := os.ReadFile(js.path)
	if err != nil {
		if os.IsNotExist(err) {
			span.SetAttributes(attribute.Bool("document_exists", false))
			return make(map[string]*models.User), nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read users document: %w", err)
	}

	users := make(map[string]*models.User)
	if err := json.Unmarshal(data, &users); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to parse users document: %w", err)
	}

	span.SetAttributes(attribute.Int("user_count", len(users)))
	return users, nil
}

// Save overwrites the whole document
func (js *JSONStore) Save(ctx context.Context, users map[string]*models.User) error {
	ctx, span := tracer.Start(ctx, "json.save_users",
		trace.WithAttributes(
			attribute.Int("user_count", len(users)),
		),
	)
	defer span.End()

	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal users: %w", err)
	}

	dir := filepath.Dir(js.path)
	tempFile, err := os.CreateTemp(dir, ".users-*.json")
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create temp document: %w", err)
	}
	tempPath := tempFile.Name()

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		span.RecordError(err)
		return fmt.Errorf("failed to write users document: %w", err)
	}

	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		span.RecordError(err)
		return fmt.Errorf("failed to sync users document: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		os.Remove(tempPath)
		span.RecordError(err)
		return fmt.Errorf("failed to close users document: %w", err)
	}

	if err := os.Rename(tempPath, js.path); err != nil {
		os.Remove(tempPath)
		span.RecordError(err)
		return fmt.Errorf("failed to replace users document: %w", err)
	}

	return nil
}
