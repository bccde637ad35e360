package service

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/maneesh/filevault/internal/multipart"
	"github.com/maneesh/filevault/internal/session"
	"github.com/maneesh/filevault/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	dir := t.TempDir()
	blobs, err := storage.NewFilesystemStore(filepath.Join(dir, "uploads"))
	require.NoError(t, err)
	return New(
		storage.NewJSONStore(filepath.Join(dir, "users.json")),
		blobs,
		session.NewMemoryStore(0),
	)
}

func registerAndLogin(t *testing.T, svc *Service, username, password string) *session.Session {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, svc.Register(ctx, username, password))
	sess, err := svc.Login(ctx, username, password)
	require.NoError(t, err)
	return sess
}

func filePart(name string, content []byte) multipart.Part {
	return multipart.Part{
		Name:     "file",
		Filename: name,
		MimeType: "text/plain",
		Content:  content,
	}
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	assert.ErrorIs(t, svc.Register(ctx, "", "secret1"), ErrMissingFields)
	assert.ErrorIs(t, svc.Register(ctx, "alice", ""), ErrMissingFields)
	assert.ErrorIs(t, svc.Register(ctx, "ab", "secret1"), ErrInvalidInput)
	assert.ErrorIs(t, svc.Register(ctx, "alice", "short"), ErrInvalidInput)

	require.NoError(t, svc.Register(ctx, "alice", "secret1"))
}

func TestRegisterDuplicateUsername(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	require.NoError(t, svc.Register(ctx, "alice", "secret1"))
	assert.ErrorIs(t, svc.Register(ctx, "alice", "different7"), ErrConflict)
}

func TestLoginInvalidCredentials(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	require.NoError(t, svc.Register(ctx, "alice", "secret1"))

	_, err := svc.Login(ctx, "alice", "wrongpass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogoutIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	sess := registerAndLogin(t, svc, "alice", "secret1")

	require.NoError(t, svc.Logout(ctx, sess.Token))
	require.NoError(t, svc.Logout(ctx, sess.Token))

	_, err := svc.Authorize(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestAuthorize(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	sess := registerAndLogin(t, svc, "alice", "secret1")

	got, err := svc.Authorize(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	_, err = svc.Authorize(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = svc.Authorize(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	sess := registerAndLogin(t, svc, "alice", "secret1")

	content := []byte("hello")
	record, err := svc.Upload(ctx, sess, []multipart.Part{
		{Name: "title", Content: []byte("greeting")},
		filePart("a.txt", content),
	})
	require.NoError(t, err)
	assert.Equal(t, "a.txt", record.OriginalName)
	assert.Equal(t, int64(5), record.Size)
	assert.Equal(t, "text/plain", record.MimeType)
	assert.NotEmpty(t, record.ID)
	assert.NotEmpty(t, record.Checksum)

	files, err := svc.List(ctx, sess)
	require.NoError(t, err)
	require.Len(t, files, 1)

	gotRecord, data, err := svc.Download(ctx, sess, record.ID)
	require.NoError(t, err)
	assert.Equal(t, content, data)
	assert.Equal(t, "text/plain", gotRecord.MimeType)

	require.NoError(t, svc.Delete(ctx, sess, record.ID))

	files, err = svc.List(ctx, sess)
	require.NoError(t, err)
	assert.Empty(t, files)

	_, _, err = svc.Download(ctx, sess, record.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUploadNoFilePart(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	sess := registerAndLogin(t, svc, "alice", "secret1")

	_, err := svc.Upload(ctx, sess, []multipart.Part{
		{Name: "title", Content: []byte("just a field")},
	})
	assert.ErrorIs(t, err, ErrNoFile)

	_, err = svc.Upload(ctx, sess, nil)
	assert.ErrorIs(t, err, ErrNoFile)
}

func TestUploadSizeBoundary(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	sess := registerAndLogin(t, svc, "alice", "secret1")

	atLimit := bytes.Repeat([]byte{'x'}, MaxFileSize)
	record, err := svc.Upload(ctx, sess, []multipart.Part{filePart("big.bin", atLimit)})
	require.NoError(t, err)
	assert.Equal(t, int64(MaxFileSize), record.Size)

	overLimit := bytes.Repeat([]byte{'x'}, MaxFileSize+1)
	_, err = svc.Upload(ctx, sess, []multipart.Part{filePart("too-big.bin", overLimit)})
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestUserIsolation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	alice := registerAndLogin(t, svc, "alice", "secret1")
	bob := registerAndLogin(t, svc, "bobby", "secret2")

	record, err := svc.Upload(ctx, alice, []multipart.Part{filePart("private.txt", []byte("mine"))})
	require.NoError(t, err)

	files, err := svc.List(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, files)

	_, _, err = svc.Download(ctx, bob, record.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, bob, record.ID), ErrNotFound)

	// Alice still has her file.
	files, err = svc.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, files, 1)
}

func TestConcurrentUploadsAllPersist(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	sess := registerAndLogin(t, svc, "alice", "secret1")

	const uploads = 8
	var wg sync.WaitGroup
	errs := make([]error, uploads)

	for i := 0; i < uploads; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			name := fmt.Sprintf("file-%d.txt", n)
			_, errs[n] = svc.Upload(ctx, sess, []multipart.Part{
				filePart(name, []byte(name)),
			})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	files, err := svc.List(ctx, sess)
	require.NoError(t, err)
	assert.Len(t, files, uploads)
}

func TestStorageNameSanitized(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	sess := registerAndLogin(t, svc, "alice", "secret1")

	record, err := svc.Upload(ctx, sess, []multipart.Part{
		filePart("../../evil.txt", []byte("payload")),
	})
	require.NoError(t, err)

	// The display name stays verbatim, the on-disk name must not carry
	// directory components.
	assert.Equal(t, "../../evil.txt", record.OriginalName)
	assert.NotContains(t, record.StorageName, "/")
	assert.True(t, strings.HasSuffix(record.StorageName, "evil.txt"))

	_, data, err := svc.Download(ctx, sess, record.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}

func TestUserInfoAggregates(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	sess := registerAndLogin(t, svc, "alice", "secret1")

	info, err := svc.UserInfo(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, "alice", info.Username)
	assert.Equal(t, 0, info.FileCount)
	assert.Equal(t, int64(0), info.TotalSize)

	_, err = svc.Upload(ctx, sess, []multipart.Part{filePart("a.txt", []byte("12345"))})
	require.NoError(t, err)
	_, err = svc.Upload(ctx, sess, []multipart.Part{filePart("b.txt", []byte("123"))})
	require.NoError(t, err)

	info, err = svc.UserInfo(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, 2, info.FileCount)
	assert.Equal(t, int64(8), info.TotalSize)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain.txt", "plain.txt"},
		{"../../etc/passwd", "passwd"},
		{`..\..\windows\system32`, "system32"},
		{"dir/nested/name.bin", "name.bin"},
		{"..", "file"},
		{"", "file"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeFilename(tt.in), "input %q", tt.in)
	}
}
