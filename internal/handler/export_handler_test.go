package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hostelhub/residence-api/internal/service"
	"github.com/hostelhub/residence-api/pkg/storage"
)

func newExportHandler(t *testing.T) (*ExportHandler, *service.ExportService) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("handler-test-secret", time.Hour)
	exports := service.NewExportService(store, signer, time.Hour, zap.NewNop())
	return NewExportHandler(exports), exports
}

func TestExportHandlerDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, exports := newExportHandler(t)
	token, _, err := exports.Store("announcements", "pdf", []byte("%PDF-1.4 Fire drill"))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/exports/"+token, nil)
	c.Params = gin.Params{{Key: "token", Value: token}}

	handler.Download(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "Fire drill")
}

func TestExportHandlerDownloadBadToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newExportHandler(t)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/exports/bogus", nil)
	c.Params = gin.Params{{Key: "token", Value: "bogus"}}

	handler.Download(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
