package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hostelhub/residence-api/internal/dto"
	"github.com/hostelhub/residence-api/internal/models"
	appErrors "github.com/hostelhub/residence-api/pkg/errors"
)

type mockAnnouncementRepo struct {
	announcements map[string]*models.Announcement
	nextID        int
	listErr       error
	stats         *models.AnnouncementStats
}

func newMockAnnouncementRepo() *mockAnnouncementRepo {
	return &mockAnnouncementRepo{announcements: make(map[string]*models.Announcement)}
}

func (m *mockAnnouncementRepo) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	var out []models.Announcement
	for _, a := range m.announcements {
		if filter.HostelID != "" && a.HostelID != filter.HostelID {
			continue
		}
		if len(filter.Status) > 0 {
			match := false
			for _, status := range filter.Status {
				if a.Status == status {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, *a)
	}
	return out, len(out), nil
}

func (m *mockAnnouncementRepo) GetByID(ctx context.Context, id string) (*models.Announcement, error) {
	a, ok := m.announcements[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *a
	return &clone, nil
}

func (m *mockAnnouncementRepo) Create(ctx context.Context, announcement *models.Announcement) error {
	m.nextID++
	announcement.ID = fmt.Sprintf("ann-%d", m.nextID)
	announcement.CreatedAt = time.Now().UTC()
	stored := *announcement
	m.announcements[announcement.ID] = &stored
	return nil
}

func (m *mockAnnouncementRepo) Update(ctx context.Context, announcement *models.Announcement) error {
	if _, ok := m.announcements[announcement.ID]; !ok {
		return sql.ErrNoRows
	}
	stored := *announcement
	m.announcements[announcement.ID] = &stored
	return nil
}

func (m *mockAnnouncementRepo) UpdateStatus(ctx context.Context, id string, from []models.AnnouncementStatus, to models.AnnouncementStatus, publishedAt *time.Time, unpublishReason *string) error {
	a, ok := m.announcements[id]
	if !ok {
		return sql.ErrNoRows
	}
	allowed := false
	for _, status := range from {
		if a.Status == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return sql.ErrNoRows
	}
	a.Status = to
	if publishedAt != nil {
		a.PublishedAt = publishedAt
	}
	if unpublishReason != nil {
		a.UnpublishReason = unpublishReason
	}
	return nil
}

func (m *mockAnnouncementRepo) BulkDelete(ctx context.Context, ids []string) (int, error) {
	deleted := 0
	for _, id := range ids {
		if _, ok := m.announcements[id]; ok {
			delete(m.announcements, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *mockAnnouncementRepo) Stats(ctx context.Context, hostelID string) (*models.AnnouncementStats, error) {
	if m.stats != nil {
		return m.stats, nil
	}
	return &models.AnnouncementStats{ByStatus: map[string]int{}}, nil
}

type mockDeliveryStarter struct {
	started []string
	err     error
}

func (m *mockDeliveryStarter) StartDefault(ctx context.Context, announcement *models.Announcement) error {
	if m.err != nil {
		return m.err
	}
	m.started = append(m.started, announcement.ID)
	return nil
}

type mockInvalidator struct {
	calls int
}

func (m *mockInvalidator) InvalidateAnnouncements(ctx context.Context, hostelID string) {
	m.calls++
}

func staffActor() *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-1", Role: models.RoleAdmin, HostelID: testHostelID}
}

func studentActor() *models.JWTClaims {
	return &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent, HostelID: testHostelID}
}

func newTestAnnouncementService() (*AnnouncementService, *mockAnnouncementRepo, *mockDeliveryStarter, *mockInvalidator) {
	repo := newMockAnnouncementRepo()
	delivery := &mockDeliveryStarter{}
	cache := &mockInvalidator{}
	svc := NewAnnouncementService(repo, delivery, &mockAuditSink{}, cache, nil, zap.NewNop())
	return svc, repo, delivery, cache
}

func validCreateRequest() dto.CreateAnnouncementRequest {
	return dto.CreateAnnouncementRequest{
		Title:    "Water outage on Saturday",
		Content:  "The supply to blocks A and B will be cut between 09:00 and 12:00.",
		Category: models.AnnouncementCategoryMaintenance,
	}
}

func TestAnnouncementServiceCreateDraft(t *testing.T) {
	svc, repo, _, cache := newTestAnnouncementService()

	req := validCreateRequest()
	req.Title = "  Water outage on Saturday  "
	created, err := svc.Create(context.Background(), req, staffActor())
	require.NoError(t, err)

	assert.Equal(t, models.AnnouncementStatusDraft, created.Status)
	assert.Equal(t, "Water outage on Saturday", created.Title)
	assert.Equal(t, models.AnnouncementPriorityNormal, created.Priority, "priority defaults to NORMAL")
	assert.Equal(t, testHostelID, created.HostelID)
	assert.Equal(t, "user-1", created.CreatedBy)
	assert.Contains(t, repo.announcements, created.ID)
	assert.Equal(t, 1, cache.calls)
}

func TestAnnouncementServiceCreateRequiresActor(t *testing.T) {
	svc, _, _, _ := newTestAnnouncementService()

	_, err := svc.Create(context.Background(), validCreateRequest(), nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAnnouncementServiceCreateRejectsShortTitle(t *testing.T) {
	svc, _, _, _ := newTestAnnouncementService()

	req := validCreateRequest()
	req.Title = "Hi"
	_, err := svc.Create(context.Background(), req, staffActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAnnouncementServiceCreateDeadlineRules(t *testing.T) {
	svc, _, _, _ := newTestAnnouncementService()
	future := time.Now().Add(24 * time.Hour)
	past := time.Now().Add(-time.Hour)

	req := validCreateRequest()
	req.ExpiresAt = &past
	_, err := svc.Create(context.Background(), req, staffActor())
	require.Error(t, err, "expiry in the past")

	req = validCreateRequest()
	req.AcknowledgmentDeadline = &future
	_, err = svc.Create(context.Background(), req, staffActor())
	require.Error(t, err, "ack deadline without the acknowledgment flag")

	req = validCreateRequest()
	req.RequiresAcknowledgment = true
	_, err = svc.Create(context.Background(), req, staffActor())
	require.Error(t, err, "acknowledgment flag without a deadline")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	afterExpiry := future.Add(time.Hour)
	req = validCreateRequest()
	req.RequiresAcknowledgment = true
	req.ExpiresAt = &future
	req.AcknowledgmentDeadline = &afterExpiry
	_, err = svc.Create(context.Background(), req, staffActor())
	require.Error(t, err, "ack deadline past the expiry")

	req = validCreateRequest()
	req.RequiresAcknowledgment = true
	req.AcknowledgmentDeadline = &future
	_, err = svc.Create(context.Background(), req, staffActor())
	assert.NoError(t, err)
}

func TestAnnouncementServicePublishStartsDelivery(t *testing.T) {
	svc, _, delivery, _ := newTestAnnouncementService()

	created, err := svc.Create(context.Background(), validCreateRequest(), staffActor())
	require.NoError(t, err)

	published, err := svc.Publish(context.Background(), created.ID, staffActor())
	require.NoError(t, err)

	assert.Equal(t, models.AnnouncementStatusPublished, published.Status)
	require.NotNil(t, published.PublishedAt)
	assert.Equal(t, []string{created.ID}, delivery.started)
}

func TestAnnouncementServicePublishSurvivesDeliveryFailure(t *testing.T) {
	svc, repo, delivery, _ := newTestAnnouncementService()
	delivery.err = fmt.Errorf("smtp down")

	created, err := svc.Create(context.Background(), validCreateRequest(), staffActor())
	require.NoError(t, err)

	published, err := svc.Publish(context.Background(), created.ID, staffActor())
	require.NoError(t, err, "publication stands even when delivery cannot start")
	assert.Equal(t, models.AnnouncementStatusPublished, published.Status)
	assert.Equal(t, models.AnnouncementStatusPublished, repo.announcements[created.ID].Status)
}

func TestAnnouncementServicePublishBlockedByApprovalFlag(t *testing.T) {
	svc, _, _, _ := newTestAnnouncementService()

	req := validCreateRequest()
	req.RequiresApproval = true
	created, err := svc.Create(context.Background(), req, staffActor())
	require.NoError(t, err)

	_, err = svc.Publish(context.Background(), created.ID, staffActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)

	// The approval workflow takes the other door.
	published, err := svc.PublishApproved(context.Background(), created.ID, staffActor())
	require.NoError(t, err)
	assert.Equal(t, models.AnnouncementStatusPublished, published.Status)
}

func TestAnnouncementServicePublishRejectsExpired(t *testing.T) {
	svc, repo, _, _ := newTestAnnouncementService()
	past := time.Now().Add(-time.Hour)
	repo.announcements["ann-old"] = &models.Announcement{
		ID: "ann-old", HostelID: testHostelID,
		Status: models.AnnouncementStatusDraft, ExpiresAt: &past,
	}

	_, err := svc.Publish(context.Background(), "ann-old", staffActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestAnnouncementServicePublishRejectsForeignHostel(t *testing.T) {
	svc, repo, _, _ := newTestAnnouncementService()
	repo.announcements["ann-x"] = &models.Announcement{
		ID: "ann-x", HostelID: "hostel-2", Status: models.AnnouncementStatusDraft,
	}

	_, err := svc.Publish(context.Background(), "ann-x", staffActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAnnouncementServiceUnpublishRequiresReason(t *testing.T) {
	svc, _, _, _ := newTestAnnouncementService()

	created, err := svc.Create(context.Background(), validCreateRequest(), staffActor())
	require.NoError(t, err)
	_, err = svc.Publish(context.Background(), created.ID, staffActor())
	require.NoError(t, err)

	_, err = svc.Unpublish(context.Background(), created.ID, dto.UnpublishRequest{}, staffActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	pulled, err := svc.Unpublish(context.Background(), created.ID, dto.UnpublishRequest{Reason: "posted by mistake"}, staffActor())
	require.NoError(t, err)
	assert.Equal(t, models.AnnouncementStatusUnpublished, pulled.Status)
	require.NotNil(t, pulled.UnpublishReason)
	assert.Equal(t, "posted by mistake", *pulled.UnpublishReason)
}

func TestAnnouncementServiceUnpublishRejectsDraft(t *testing.T) {
	svc, _, _, _ := newTestAnnouncementService()

	created, err := svc.Create(context.Background(), validCreateRequest(), staffActor())
	require.NoError(t, err)

	_, err = svc.Unpublish(context.Background(), created.ID, dto.UnpublishRequest{Reason: "not live yet"}, staffActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAnnouncementServiceUpdateOnlyDraftOrUnpublished(t *testing.T) {
	svc, repo, _, _ := newTestAnnouncementService()

	created, err := svc.Create(context.Background(), validCreateRequest(), staffActor())
	require.NoError(t, err)

	newTitle := "Water outage moved to Sunday"
	updated, err := svc.Update(context.Background(), created.ID, dto.UpdateAnnouncementRequest{Title: &newTitle}, staffActor())
	require.NoError(t, err)
	assert.Equal(t, newTitle, updated.Title)
	assert.Equal(t, created.Content, updated.Content, "unset fields stay put")

	_, err = svc.Publish(context.Background(), created.ID, staffActor())
	require.NoError(t, err)
	_, err = svc.Update(context.Background(), created.ID, dto.UpdateAnnouncementRequest{Title: &newTitle}, staffActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.AnnouncementStatusPublished, repo.announcements[created.ID].Status)
}

func TestAnnouncementServiceStudentVisibility(t *testing.T) {
	svc, _, _, _ := newTestAnnouncementService()

	draft, err := svc.Create(context.Background(), validCreateRequest(), staffActor())
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), draft.ID, studentActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.Publish(context.Background(), draft.ID, staffActor())
	require.NoError(t, err)
	got, err := svc.Get(context.Background(), draft.ID, studentActor())
	require.NoError(t, err)
	assert.Equal(t, draft.ID, got.ID)
}

func TestAnnouncementServiceListStudentSeesPublishedOnly(t *testing.T) {
	svc, _, _, _ := newTestAnnouncementService()

	draft, err := svc.Create(context.Background(), validCreateRequest(), staffActor())
	require.NoError(t, err)
	live, err := svc.Create(context.Background(), validCreateRequest(), staffActor())
	require.NoError(t, err)
	_, err = svc.Publish(context.Background(), live.ID, staffActor())
	require.NoError(t, err)

	announcements, pagination, err := svc.List(context.Background(), dto.AnnouncementQuery{}, studentActor())
	require.NoError(t, err)
	require.Len(t, announcements, 1)
	assert.Equal(t, live.ID, announcements[0].ID)
	assert.NotEqual(t, draft.ID, announcements[0].ID)
	assert.Equal(t, 1, pagination.TotalCount)
}

func TestAnnouncementServiceArchiveLifecycle(t *testing.T) {
	svc, repo, _, _ := newTestAnnouncementService()

	created, err := svc.Create(context.Background(), validCreateRequest(), staffActor())
	require.NoError(t, err)

	// Drafts cannot be archived directly.
	err = svc.Archive(context.Background(), created.ID, staffActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	_, err = svc.Publish(context.Background(), created.ID, staffActor())
	require.NoError(t, err)
	require.NoError(t, svc.Archive(context.Background(), created.ID, staffActor()))
	assert.Equal(t, models.AnnouncementStatusArchived, repo.announcements[created.ID].Status)

	require.NoError(t, svc.Unarchive(context.Background(), created.ID, staffActor()))
	assert.Equal(t, models.AnnouncementStatusUnpublished, repo.announcements[created.ID].Status)
}

func TestAnnouncementServiceBulkDelete(t *testing.T) {
	svc, repo, _, _ := newTestAnnouncementService()

	draft, err := svc.Create(context.Background(), validCreateRequest(), staffActor())
	require.NoError(t, err)
	live, err := svc.Create(context.Background(), validCreateRequest(), staffActor())
	require.NoError(t, err)
	_, err = svc.Publish(context.Background(), live.ID, staffActor())
	require.NoError(t, err)

	// Mock IDs are not UUIDs, so swap them in under valid ones.
	draftID := "4ebf6f4d-85f7-4db0-8d93-444444444401"
	liveID := "4ebf6f4d-85f7-4db0-8d93-444444444402"
	repo.announcements[draftID] = repo.announcements[draft.ID]
	repo.announcements[liveID] = repo.announcements[live.ID]
	delete(repo.announcements, draft.ID)
	delete(repo.announcements, live.ID)

	summary, err := svc.BulkDelete(context.Background(), dto.BulkDeleteRequest{IDs: []string{draftID, liveID}}, staffActor())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.SuccessCount)
	assert.Equal(t, 1, summary.FailureCount)
	assert.NotContains(t, repo.announcements, draftID)
	assert.Contains(t, repo.announcements, liveID, "published announcements survive bulk delete")
}

func TestAnnouncementServiceBulkDeleteForbiddenForSupervisors(t *testing.T) {
	svc, _, _, _ := newTestAnnouncementService()

	actor := &models.JWTClaims{UserID: "sup-1", Role: models.RoleSupervisor, HostelID: testHostelID}
	_, err := svc.BulkDelete(context.Background(), dto.BulkDeleteRequest{
		IDs: []string{"4ebf6f4d-85f7-4db0-8d93-444444444401"},
	}, actor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAnnouncementServiceExportCSV(t *testing.T) {
	svc, _, _, _ := newTestAnnouncementService()

	created, err := svc.Create(context.Background(), validCreateRequest(), staffActor())
	require.NoError(t, err)

	payload, contentType, err := svc.Export(context.Background(), dto.ExportQuery{Format: "csv"}, staffActor())
	require.NoError(t, err)

	assert.Equal(t, "text/csv", contentType)
	body := string(payload)
	assert.True(t, strings.HasPrefix(body, "Title,Category,Priority,Status,Created,Published"))
	assert.Contains(t, body, created.Title)
	assert.Contains(t, body, string(models.AnnouncementStatusDraft))
}

func TestAnnouncementServiceExportPDF(t *testing.T) {
	svc, _, _, _ := newTestAnnouncementService()

	_, err := svc.Create(context.Background(), validCreateRequest(), staffActor())
	require.NoError(t, err)

	payload, contentType, err := svc.Export(context.Background(), dto.ExportQuery{Format: "pdf"}, staffActor())
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", contentType)
	assert.True(t, strings.HasPrefix(string(payload), "%PDF"))
}

func TestAnnouncementServiceExportForbiddenForStudents(t *testing.T) {
	svc, _, _, _ := newTestAnnouncementService()

	_, _, err := svc.Export(context.Background(), dto.ExportQuery{Format: "csv"}, studentActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAnnouncementServiceExpireDue(t *testing.T) {
	svc, repo, _, _ := newTestAnnouncementService()
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	now := time.Now()
	repo.announcements["ann-a"] = &models.Announcement{
		ID: "ann-a", HostelID: testHostelID,
		Status: models.AnnouncementStatusPublished, ExpiresAt: &past, PublishedAt: &now,
	}
	repo.announcements["ann-b"] = &models.Announcement{
		ID: "ann-b", HostelID: testHostelID,
		Status: models.AnnouncementStatusPublished, ExpiresAt: &future, PublishedAt: &now,
	}
	repo.announcements["ann-c"] = &models.Announcement{
		ID: "ann-c", HostelID: testHostelID,
		Status: models.AnnouncementStatusPublished, PublishedAt: &now,
	}

	expired, err := svc.ExpireDue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, expired)
	assert.Equal(t, models.AnnouncementStatusArchived, repo.announcements["ann-a"].Status)
	assert.Equal(t, models.AnnouncementStatusPublished, repo.announcements["ann-b"].Status)
	assert.Equal(t, models.AnnouncementStatusPublished, repo.announcements["ann-c"].Status)
}
