package service

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/hostelhub/residence-api/pkg/errors"
	"github.com/hostelhub/residence-api/pkg/storage"
)

func newExportService(t *testing.T, ttl time.Duration) *ExportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-signing-secret", ttl)
	return NewExportService(store, signer, ttl, zap.NewNop())
}

func TestExportStoreAndOpen(t *testing.T) {
	svc := newExportService(t, time.Hour)

	token, expiresAt, err := svc.Store("announcements", "csv", []byte("Title,Status\nFire drill,PUBLISHED\n"))
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	file, err := svc.Open(token)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck

	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Fire drill")
}

func TestExportOpenRejectsTamperedToken(t *testing.T) {
	svc := newExportService(t, time.Hour)
	token, _, err := svc.Store("announcements", "csv", []byte("data"))
	require.NoError(t, err)

	_, err = svc.Open(token + "x")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Open("not.a.real.token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestExportOpenRejectsExpiredToken(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-signing-secret", time.Nanosecond)
	svc := NewExportService(store, signer, time.Hour, zap.NewNop())

	token, _, err := svc.Store("reports", "pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)

	_, err = svc.Open(token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestExportCleanupRemovesStaleArtifacts(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-signing-secret", time.Hour)
	// A zero-ish TTL makes freshly written files immediately stale.
	svc := NewExportService(store, signer, time.Nanosecond, zap.NewNop())

	token, _, err := svc.Store("reports", "csv", []byte("data"))
	require.NoError(t, err)

	svc.Cleanup()

	_, err = svc.Open(token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
