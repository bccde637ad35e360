// Package service implements the file storage operations: account
// registration and login, and per-user upload, list, download and delete.
// All metadata mutations run a full load-mutate-save cycle against the
// MetadataStore; a single mutex serializes those cycles so concurrent
// requests cannot lose each other's updates.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maneesh/filevault/internal/models"
	"github.com/maneesh/filevault/internal/multipart"
	"github.com/maneesh/filevault/internal/session"
	"github.com/maneesh/filevault/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("filevault-service")

// MaxFileSize is the fixed per-file size cap (10 MiB)
const MaxFileSize = 10 * 1024 * 1024

// Service orchestrates sessions, metadata and blob storage
type Service struct {
	// mu serializes every load-mutate-save cycle against the metadata
	// store. The store itself gives no cross-request isolation, so two
	// overlapping cycles would silently lose the first one's update.
	mu       sync.Mutex
	metadata storage.MetadataStore
	blobs    storage.BlobStore
	sessions session.Store
}

// New creates a Service on top of the given stores
func New(metadata storage.MetadataStore, blobs storage.BlobStore, sessions session.Store) *Service {
	return &Service{
		metadata: metadata,
		blobs:    blobs,
		sessions: sessions,
	}
}

// Register creates a new account with an empty file list
func (s *Service) Register(ctx context.Context, username, password string) error {
	ctx, span := tracer.Start(ctx, "register_user",
		trace.WithAttributes(
			attribute.String("username", username),
		),
	)
	defer span.End()

	if username == "" || password == "" {
		return ErrMissingFields
	}
	if len(username) < 3 || len(password) < 6 {
		return ErrInvalidInput
	}

	hash, err := hashPassword(password)
	if err != nil {
		span.RecordError(err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.metadata.Load(ctx)
	if err != nil {
		span.RecordError(err)
		return err
	}

	if _, exists := users[username]; exists {
		return ErrConflict
	}

	users[username] = &models.User{
		PasswordHash: hash,
		Files:        []models.FileRecord{},
	}

	if err := s.metadata.Save(ctx, users); err != nil {
		span.RecordError(err)
		return err
	}

	return nil
}

// Login verifies the credentials and creates a session
func (s *Service) Login(ctx context.Context, username, password string) (*session.Session, error) {
	ctx, span := tracer.Start(ctx, "login_user",
		trace.WithAttributes(
			attribute.String("username", username),
		),
	)
	defer span.End()

	if username == "" || password == "" {
		return nil, ErrMissingFields
	}

	s.mu.Lock()
	users, err := s.metadata.Load(ctx)
	s.mu.Unlock()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	user, ok := users[username]
	if !ok || !checkPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	sess, err := s.sessions.Create(ctx, username)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return sess, nil
}

// Logout destroys the session for token. Unknown or empty tokens are a
// no-op; logout is idempotent.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.Destroy(ctx, token)
}

// Authorize resolves a bearer token to its session. A missing or unknown
// token yields ErrUnauthenticated.
func (s *Service) Authorize(ctx context.Context, token string) (*session.Session, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	sess, err := s.sessions.Lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrUnauthenticated
	}

	return sess, nil
}

// Upload stores the first file part of a multipart body as a new blob and
// appends its FileRecord to the session user's file list
func (s *Service) Upload(ctx context.Context, sess *session.Session, parts []multipart.Part) (*models.FileRecord, error) {
	ctx, span := tracer.Start(ctx, "upload_file",
		trace.WithAttributes(
			attribute.String("username", sess.Username),
			attribute.Int("part_count", len(parts)),
		),
	)
	defer span.End()

	var filePart *multipart.Part
	for i := range parts {
		if parts[i].IsFile() {
			filePart = &parts[i]
			break
		}
	}
	if filePart == nil {
		return nil, ErrNoFile
	}

	if len(filePart.Content) > MaxFileSize {
		return nil, ErrPayloadTooLarge
	}

	checksum := sha256.Sum256(filePart.Content)
	record := models.FileRecord{
		ID:           uuid.New().String(),
		OriginalName: filePart.Filename,
		StorageName:  newStorageName(filePart.Filename),
		Size:         int64(len(filePart.Content)),
		UploadedAt:   time.Now().UTC(),
		MimeType:     filePart.MimeType,
		Checksum:     hex.EncodeToString(checksum[:]),
	}

	span.SetAttributes(
		attribute.String("file_id", record.ID),
		attribute.String("file_name", record.OriginalName),
		attribute.Int64("file_size", record.Size),
	)

	if err := s.blobs.Put(ctx, sess.Username, record.StorageName, filePart.Content); err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.metadata.Load(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	user, ok := users[sess.Username]
	if !ok {
		return nil, ErrUnauthenticated
	}

	user.Files = append(user.Files, record)

	// If this save fails the blob stays behind without a record — a known
	// inconsistency window; nothing rolls back.
	if err := s.metadata.Save(ctx, users); err != nil {
		span.RecordError(err)
		return nil, err
	}

	return &record, nil
}

// List returns the session user's file records in insertion order
func (s *Service) List(ctx context.Context, sess *session.Session) ([]models.FileRecord, error) {
	s.mu.Lock()
	users, err := s.metadata.Load(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	user, ok := users[sess.Username]
	if !ok {
		return nil, ErrUnauthenticated
	}

	if user.Files == nil {
		return []models.FileRecord{}, nil
	}
	return user.Files, nil
}

// Download returns the record and blob bytes for one of the session
// user's files. The blob checksum is verified before the bytes are
// handed back.
func (s *Service) Download(ctx context.Context, sess *session.Session, fileID string) (*models.FileRecord, []byte, error) {
	ctx, span := tracer.Start(ctx, "download_file",
		trace.WithAttributes(
			attribute.String("username", sess.Username),
			attribute.String("file_id", fileID),
		),
	)
	defer span.End()

	record, err := s.findRecord(ctx, sess.Username, fileID)
	if err != nil {
		return nil, nil, err
	}

	data, err := s.blobs.Get(ctx, sess.Username, record.StorageName)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			return nil, nil, ErrNotFound
		}
		span.RecordError(err)
		return nil, nil, err
	}

	if record.Checksum != "" {
		checksum := sha256.Sum256(data)
		if hex.EncodeToString(checksum[:]) != record.Checksum {
			err := fmt.Errorf("checksum mismatch for file %s", fileID)
			span.RecordError(err)
			return nil, nil, err
		}
	}

	span.SetAttributes(attribute.Int("size_bytes", len(data)))
	return record, data, nil
}

// Delete removes a file's blob (best-effort) and its metadata record
func (s *Service) Delete(ctx context.Context, sess *session.Session, fileID string) error {
	ctx, span := tracer.Start(ctx, "delete_file",
		trace.WithAttributes(
			attribute.String("username", sess.Username),
			attribute.String("file_id", fileID),
		),
	)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.metadata.Load(ctx)
	if err != nil {
		span.RecordError(err)
		return err
	}

	user, ok := users[sess.Username]
	if !ok {
		return ErrUnauthenticated
	}

	index := -1
	for i := range user.Files {
		if user.Files[i].ID == fileID {
			index = i
			break
		}
	}
	if index < 0 {
		return ErrNotFound
	}

	// Best-effort: an already-missing blob must not block the delete.
	record := user.Files[index]
	if err := s.blobs.Delete(ctx, sess.Username, record.StorageName); err != nil {
		log.Printf("Warning: failed to delete blob %s: %v", record.StorageName, err)
	}

	user.Files = append(user.Files[:index], user.Files[index+1:]...)

	if err := s.metadata.Save(ctx, users); err != nil {
		span.RecordError(err)
		return err
	}

	return nil
}

// UserInfo returns the file count and aggregate size for the session user
func (s *Service) UserInfo(ctx context.Context, sess *session.Session) (*models.UserInfo, error) {
	files, err := s.List(ctx, sess)
	if err != nil {
		return nil, err
	}

	var totalSize int64
	for i := range files {
		totalSize += files[i].Size
	}

	return &models.UserInfo{
		Username:  sess.Username,
		FileCount: len(files),
		TotalSize: totalSize,
	}, nil
}

// findRecord locates one of username's file records by id
func (s *Service) findRecord(ctx context.Context, username, fileID string) (*models.FileRecord, error) {
	s.mu.Lock()
	users, err := s.metadata.Load(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	user, ok := users[username]
	if !ok {
		return nil, ErrUnauthenticated
	}

	for i := range user.Files {
		if user.Files[i].ID == fileID {
			record := user.Files[i]
			return &record, nil
		}
	}

	return nil, ErrNotFound
}

// newStorageName builds a collision-resistant on-disk name from a
// millisecond timestamp, a random suffix and the sanitized original name
func newStorageName(originalName string) string {
	return fmt.Sprintf("%d-%d-%s",
		time.Now().UnixMilli(),
		rand.Int63n(1_000_000_000),
		sanitizeFilename(originalName),
	)
}

// sanitizeFilename strips directory components from a user-supplied
// filename so it can never escape the owner's blob directory
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = path.Base(name)
	if name == "" || name == "." || name == ".." || name == "/" {
		return "file"
	}
	return name
}
