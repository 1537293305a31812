package service

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/hostelhub/residence-api/pkg/errors"
	"github.com/hostelhub/residence-api/pkg/storage"
)

// ExportService persists rendered export artifacts on disk and issues
// signed download tokens so files can be fetched without a session.
type ExportService struct {
	storage *storage.LocalStorage
	signer  *storage.SignedURLSigner
	ttl     time.Duration
	logger  *zap.Logger
}

// NewExportService constructs the service.
func NewExportService(store *storage.LocalStorage, signer *storage.SignedURLSigner, ttl time.Duration, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ExportService{storage: store, signer: signer, ttl: ttl, logger: logger}
}

// Store writes an artifact under the given category and returns a signed
// download token for it.
func (s *ExportService) Store(category, ext string, data []byte) (string, time.Time, error) {
	exportID := uuid.NewString()
	relPath := fmt.Sprintf("%s/%s.%s", category, exportID, ext)
	if _, err := s.storage.Save(relPath, data); err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist export artifact")
	}
	token, expiresAt, err := s.signer.Generate(exportID, relPath)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export token")
	}
	return token, expiresAt, nil
}

// Open validates a download token and opens the referenced artifact.
func (s *ExportService) Open(token string) (*os.File, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export link is invalid or expired")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export artifact no longer exists")
	}
	return file, nil
}

// Cleanup removes artifacts older than the signing TTL. Called by the
// scheduler tick.
func (s *ExportService) Cleanup() {
	removed, err := s.storage.CleanupOlderThan(s.ttl)
	if err != nil {
		s.logger.Warn("export cleanup failed", zap.Error(err))
		return
	}
	if len(removed) > 0 {
		s.logger.Info("removed stale export artifacts", zap.Int("count", len(removed)))
	}
}
