package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hostelhub/residence-api/internal/dto"
	"github.com/hostelhub/residence-api/internal/models"
	appErrors "github.com/hostelhub/residence-api/pkg/errors"
	"github.com/hostelhub/residence-api/pkg/export"
)

type announcementStore interface {
	List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error)
	GetByID(ctx context.Context, id string) (*models.Announcement, error)
	Create(ctx context.Context, announcement *models.Announcement) error
	Update(ctx context.Context, announcement *models.Announcement) error
	UpdateStatus(ctx context.Context, id string, from []models.AnnouncementStatus, to models.AnnouncementStatus, publishedAt *time.Time, unpublishReason *string) error
	BulkDelete(ctx context.Context, ids []string) (int, error)
	Stats(ctx context.Context, hostelID string) (*models.AnnouncementStats, error)
}

// DeliveryStarter kicks off delivery once an announcement goes live.
type DeliveryStarter interface {
	StartDefault(ctx context.Context, announcement *models.Announcement) error
}

// AnnouncementService handles the announcement lifecycle from draft to archive.
type AnnouncementService struct {
	repo      announcementStore
	delivery  DeliveryStarter
	audit     auditLogger
	cache     cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
}

type cacheInvalidator interface {
	InvalidateAnnouncements(ctx context.Context, hostelID string)
}

// NewAnnouncementService constructs the service.
func NewAnnouncementService(repo announcementStore, delivery DeliveryStarter, audit auditLogger, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger) *AnnouncementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnnouncementService{
		repo:      repo,
		delivery:  delivery,
		audit:     audit,
		cache:     cache,
		validator: validate,
		logger:    logger,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
	}
}

// SetDeliveryStarter wires the delivery pipeline after construction. The
// delivery service itself reads announcements through this service, so the
// two are bound late to break the cycle.
func (s *AnnouncementService) SetDeliveryStarter(delivery DeliveryStarter) {
	s.delivery = delivery
}

// Create stores a new draft announcement.
func (s *AnnouncementService) Create(ctx context.Context, req dto.CreateAnnouncementRequest, actor *models.JWTClaims) (*models.Announcement, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Content = strings.TrimSpace(req.Content)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if err := validateDeadlines(req.AcknowledgmentDeadline, req.ExpiresAt, req.RequiresAcknowledgment); err != nil {
		return nil, err
	}

	priority := req.Priority
	if priority == "" {
		priority = models.AnnouncementPriorityNormal
	}
	announcement := &models.Announcement{
		HostelID:               actor.HostelID,
		Title:                  req.Title,
		Content:                req.Content,
		Category:               req.Category,
		Priority:               priority,
		Status:                 models.AnnouncementStatusDraft,
		IsUrgent:               req.IsUrgent,
		IsPinned:               req.IsPinned,
		RequiresApproval:       req.RequiresApproval,
		RequiresAcknowledgment: req.RequiresAcknowledgment,
		AcknowledgmentDeadline: req.AcknowledgmentDeadline,
		Attachments:            req.Attachments,
		ExpiresAt:              req.ExpiresAt,
		CreatedBy:              actor.UserID,
	}
	if err := s.repo.Create(ctx, announcement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create announcement")
	}
	s.emitAudit(ctx, actor, models.AuditActionAnnouncementCreate, announcement.ID)
	s.invalidate(ctx, announcement.HostelID)
	return announcement, nil
}

// Get returns one announcement, enforcing hostel scope.
func (s *AnnouncementService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Announcement, error) {
	announcement, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkHostelScope(actor, announcement.HostelID); err != nil {
		return nil, err
	}
	// Students never see drafts or withdrawn announcements.
	if actor != nil && actor.Role == models.RoleStudent && announcement.Status != models.AnnouncementStatusPublished {
		return nil, appErrors.ErrNotFound
	}
	return announcement, nil
}

// List returns announcements visible to the actor.
func (s *AnnouncementService) List(ctx context.Context, query dto.AnnouncementQuery, actor *models.JWTClaims) ([]models.Announcement, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	filter := models.AnnouncementFilter{
		HostelID: actor.HostelID,
		Status:   query.Status,
		Category: query.Category,
		Priority: query.Priority,
		Pinned:   query.Pinned,
		Urgent:   query.Urgent,
		Search:   query.Search,
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	if query.AuthorID != "" {
		filter.CreatedBy = query.AuthorID
	}
	if actor.Role == models.RoleStudent {
		filter.Status = []models.AnnouncementStatus{models.AnnouncementStatusPublished}
	}
	announcements, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list announcements")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	if pagination.Page < 1 {
		pagination.Page = 1
	}
	if pagination.PageSize < 1 {
		pagination.PageSize = 20
	}
	return announcements, pagination, nil
}

// Update edits a draft or unpublished announcement.
func (s *AnnouncementService) Update(ctx context.Context, id string, req dto.UpdateAnnouncementRequest, actor *models.JWTClaims) (*models.Announcement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	announcement, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkHostelScope(actor, announcement.HostelID); err != nil {
		return nil, err
	}
	switch announcement.Status {
	case models.AnnouncementStatusDraft, models.AnnouncementStatusUnpublished:
	default:
		return nil, appErrors.Clone(appErrors.ErrConflict, "only drafts and unpublished announcements can be edited")
	}

	if req.Title != nil {
		announcement.Title = strings.TrimSpace(*req.Title)
	}
	if req.Content != nil {
		announcement.Content = strings.TrimSpace(*req.Content)
	}
	if req.Category != nil {
		announcement.Category = *req.Category
	}
	if req.Priority != nil {
		announcement.Priority = *req.Priority
	}
	if req.IsUrgent != nil {
		announcement.IsUrgent = *req.IsUrgent
	}
	if req.IsPinned != nil {
		announcement.IsPinned = *req.IsPinned
	}
	if req.Attachments != nil {
		announcement.Attachments = req.Attachments
	}
	if req.ExpiresAt != nil {
		announcement.ExpiresAt = req.ExpiresAt
	}
	if req.RequiresAcknowledgment != nil {
		announcement.RequiresAcknowledgment = *req.RequiresAcknowledgment
	}
	if req.AcknowledgmentDeadline != nil {
		announcement.AcknowledgmentDeadline = req.AcknowledgmentDeadline
	}
	if err := validateDeadlines(announcement.AcknowledgmentDeadline, announcement.ExpiresAt, announcement.RequiresAcknowledgment); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, announcement); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update announcement")
	}
	s.invalidate(ctx, announcement.HostelID)
	return announcement, nil
}

// Publish makes an announcement live, kicking off delivery. Announcements
// that require approval must go through the approval workflow instead.
func (s *AnnouncementService) Publish(ctx context.Context, id string, actor *models.JWTClaims) (*models.Announcement, error) {
	announcement, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkHostelScope(actor, announcement.HostelID); err != nil {
		return nil, err
	}
	if announcement.RequiresApproval && announcement.Status != models.AnnouncementStatusScheduled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "announcement requires approval before publishing")
	}
	return s.publish(ctx, announcement, actor)
}

// PublishApproved is the approval workflow's entry point: it bypasses the
// requires-approval guard because the decision already happened.
func (s *AnnouncementService) PublishApproved(ctx context.Context, id string, actor *models.JWTClaims) (*models.Announcement, error) {
	announcement, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.publish(ctx, announcement, actor)
}

func (s *AnnouncementService) publish(ctx context.Context, announcement *models.Announcement, actor *models.JWTClaims) (*models.Announcement, error) {
	now := time.Now().UTC()
	if announcement.IsExpired(now) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "announcement already expired")
	}
	from := []models.AnnouncementStatus{
		models.AnnouncementStatusDraft,
		models.AnnouncementStatusScheduled,
		models.AnnouncementStatusPendingApproval,
		models.AnnouncementStatusUnpublished,
	}
	if err := s.repo.UpdateStatus(ctx, announcement.ID, from, models.AnnouncementStatusPublished, &now, nil); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "announcement cannot be published from its current state")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish announcement")
	}
	announcement.Status = models.AnnouncementStatusPublished
	announcement.PublishedAt = &now

	if s.delivery != nil {
		if err := s.delivery.StartDefault(ctx, announcement); err != nil {
			// Publication stands; delivery can be retried manually.
			s.logger.Error("delivery start failed after publish",
				zap.String("announcement_id", announcement.ID), zap.Error(err))
		}
	}
	if actor != nil {
		s.emitAudit(ctx, actor, models.AuditActionAnnouncementPublish, announcement.ID)
	}
	s.invalidate(ctx, announcement.HostelID)
	s.logger.Info("announcement published", zap.String("announcement_id", announcement.ID))
	return announcement, nil
}

// Unpublish pulls a live announcement back with a recorded reason.
func (s *AnnouncementService) Unpublish(ctx context.Context, id string, req dto.UnpublishRequest, actor *models.JWTClaims) (*models.Announcement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	announcement, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkHostelScope(actor, announcement.HostelID); err != nil {
		return nil, err
	}
	from := []models.AnnouncementStatus{models.AnnouncementStatusPublished}
	if err := s.repo.UpdateStatus(ctx, id, from, models.AnnouncementStatusUnpublished, nil, &req.Reason); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "only published announcements can be unpublished")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unpublish announcement")
	}
	announcement.Status = models.AnnouncementStatusUnpublished
	announcement.UnpublishReason = &req.Reason
	s.invalidate(ctx, announcement.HostelID)
	return announcement, nil
}

// Archive retires a published, unpublished, or expired announcement.
func (s *AnnouncementService) Archive(ctx context.Context, id string, actor *models.JWTClaims) error {
	announcement, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := checkHostelScope(actor, announcement.HostelID); err != nil {
		return err
	}
	from := []models.AnnouncementStatus{
		models.AnnouncementStatusPublished,
		models.AnnouncementStatusUnpublished,
	}
	if err := s.repo.UpdateStatus(ctx, id, from, models.AnnouncementStatusArchived, nil, nil); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrConflict, "announcement cannot be archived from its current state")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive announcement")
	}
	s.invalidate(ctx, announcement.HostelID)
	return nil
}

// Unarchive restores an archived announcement back to unpublished.
func (s *AnnouncementService) Unarchive(ctx context.Context, id string, actor *models.JWTClaims) error {
	announcement, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := checkHostelScope(actor, announcement.HostelID); err != nil {
		return err
	}
	from := []models.AnnouncementStatus{models.AnnouncementStatusArchived}
	if err := s.repo.UpdateStatus(ctx, id, from, models.AnnouncementStatusUnpublished, nil, nil); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrConflict, "only archived announcements can be restored")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unarchive announcement")
	}
	s.invalidate(ctx, announcement.HostelID)
	return nil
}

// MarkScheduled flips a draft to SCHEDULED when a schedule is attached.
func (s *AnnouncementService) MarkScheduled(ctx context.Context, id string) error {
	from := []models.AnnouncementStatus{models.AnnouncementStatusDraft, models.AnnouncementStatusUnpublished}
	if err := s.repo.UpdateStatus(ctx, id, from, models.AnnouncementStatusScheduled, nil, nil); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrConflict, "announcement cannot be scheduled from its current state")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark announcement scheduled")
	}
	return nil
}

// BulkDelete removes draft and archived announcements permanently.
func (s *AnnouncementService) BulkDelete(ctx context.Context, req dto.BulkDeleteRequest, actor *models.JWTClaims) (*models.BulkDecisionSummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if actor == nil || (actor.Role != models.RoleAdmin && actor.Role != models.RoleSuperAdmin) {
		return nil, appErrors.ErrForbidden
	}

	summary := &models.BulkDecisionSummary{}
	var deletable []string
	for _, id := range req.IDs {
		announcement, err := s.load(ctx, id)
		if err != nil {
			summary.FailureCount++
			summary.Outcomes = append(summary.Outcomes, models.BulkDecisionOutcome{
				AnnouncementID: id, Error: appErrors.FromError(err).Message,
			})
			continue
		}
		if err := checkHostelScope(actor, announcement.HostelID); err != nil {
			summary.FailureCount++
			summary.Outcomes = append(summary.Outcomes, models.BulkDecisionOutcome{
				AnnouncementID: id, Error: "announcement belongs to another hostel",
			})
			continue
		}
		if announcement.Status != models.AnnouncementStatusDraft && announcement.Status != models.AnnouncementStatusArchived {
			summary.FailureCount++
			summary.Outcomes = append(summary.Outcomes, models.BulkDecisionOutcome{
				AnnouncementID: id, Error: "only drafts and archived announcements can be deleted",
			})
			continue
		}
		deletable = append(deletable, id)
	}

	if len(deletable) > 0 {
		deleted, err := s.repo.BulkDelete(ctx, deletable)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete announcements")
		}
		summary.SuccessCount = deleted
		for _, id := range deletable {
			summary.Outcomes = append(summary.Outcomes, models.BulkDecisionOutcome{AnnouncementID: id, Success: true})
			s.emitAudit(ctx, actor, models.AuditActionAnnouncementDelete, id)
		}
		s.invalidate(ctx, actor.HostelID)
	}
	return summary, nil
}

// Stats summarises a hostel's announcements.
func (s *AnnouncementService) Stats(ctx context.Context, actor *models.JWTClaims) (*models.AnnouncementStats, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	stats, err := s.repo.Stats(ctx, actor.HostelID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load announcement stats")
	}
	return stats, nil
}

// Export renders the hostel's announcements as CSV or PDF.
func (s *AnnouncementService) Export(ctx context.Context, req dto.ExportQuery, actor *models.JWTClaims) ([]byte, string, error) {
	if actor == nil {
		return nil, "", appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleStudent {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "students cannot export announcements")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	filter := models.AnnouncementFilter{HostelID: actor.HostelID, Page: 1, PageSize: 1000}
	announcements, _, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load announcements for export")
	}

	dataset := export.Dataset{Headers: []string{"Title", "Category", "Priority", "Status", "Created", "Published"}}
	for _, a := range announcements {
		if req.From != nil && a.CreatedAt.Before(*req.From) {
			continue
		}
		if req.To != nil && a.CreatedAt.After(*req.To) {
			continue
		}
		published := ""
		if a.PublishedAt != nil {
			published = a.PublishedAt.Format(time.RFC3339)
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Title":     a.Title,
			"Category":  string(a.Category),
			"Priority":  string(a.Priority),
			"Status":    string(a.Status),
			"Created":   a.CreatedAt.Format(time.RFC3339),
			"Published": published,
		})
	}

	if req.Format == "pdf" {
		payload, err := s.pdf.Render(dataset, "Announcements")
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render PDF export")
		}
		return payload, "application/pdf", nil
	}
	payload, err := s.csv.Render(dataset)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render CSV export")
	}
	return payload, "text/csv", nil
}

// ExpireOverdue archives published announcements past their expiry. Called
// by the scheduler tick.
func (s *AnnouncementService) ExpireOverdue(ctx context.Context, announcement *models.Announcement) error {
	from := []models.AnnouncementStatus{models.AnnouncementStatusPublished}
	err := s.repo.UpdateStatus(ctx, announcement.ID, from, models.AnnouncementStatusArchived, nil, nil)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to expire announcement")
	}
	return nil
}

// ExpireDue archives every published announcement whose expiry has passed.
// Called by the scheduler tick.
func (s *AnnouncementService) ExpireDue(ctx context.Context) (int, error) {
	filter := models.AnnouncementFilter{
		Status:   []models.AnnouncementStatus{models.AnnouncementStatusPublished},
		Page:     1,
		PageSize: 500,
	}
	announcements, _, err := s.repo.List(ctx, filter)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list announcements for expiry")
	}

	now := time.Now()
	expired := 0
	for i := range announcements {
		a := &announcements[i]
		if a.ExpiresAt == nil || a.ExpiresAt.After(now) {
			continue
		}
		if err := s.ExpireOverdue(ctx, a); err != nil {
			s.logger.Warn("failed to expire announcement", zap.String("announcement_id", a.ID), zap.Error(err))
			continue
		}
		expired++
	}
	return expired, nil
}

// GetByID loads an announcement without visibility checks. Intended for
// internal callers such as the scheduler and delivery pipeline.
func (s *AnnouncementService) GetByID(ctx context.Context, id string) (*models.Announcement, error) {
	return s.load(ctx, id)
}

func (s *AnnouncementService) load(ctx context.Context, id string) (*models.Announcement, error) {
	announcement, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load announcement")
	}
	return announcement, nil
}

func (s *AnnouncementService) emitAudit(ctx context.Context, actor *models.JWTClaims, action, resourceID string) {
	if s.audit == nil || actor == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     action,
		Resource:   "announcement",
		ResourceID: &resourceID,
	}); err != nil {
		s.logger.Warn("audit log write failed", zap.Error(err))
	}
}

func (s *AnnouncementService) invalidate(ctx context.Context, hostelID string) {
	if s.cache != nil {
		s.cache.InvalidateAnnouncements(ctx, hostelID)
	}
}

func validateDeadlines(ackDeadline, expiresAt *time.Time, requiresAck bool) error {
	now := time.Now().UTC()
	if expiresAt != nil && !expiresAt.After(now) {
		return appErrors.Clone(appErrors.ErrValidation, "expiry must be in the future")
	}
	if requiresAck && ackDeadline == nil {
		return appErrors.Clone(appErrors.ErrValidation, "acknowledgment requires a deadline")
	}
	if ackDeadline != nil {
		if !requiresAck {
			return appErrors.Clone(appErrors.ErrValidation, "acknowledgment deadline requires the acknowledgment flag")
		}
		if !ackDeadline.After(now) {
			return appErrors.Clone(appErrors.ErrValidation, "acknowledgment deadline must be in the future")
		}
		if expiresAt != nil && ackDeadline.After(*expiresAt) {
			return appErrors.Clone(appErrors.ErrValidation, "acknowledgment deadline cannot pass the expiry")
		}
	}
	return nil
}

func checkHostelScope(actor *models.JWTClaims, hostelID string) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleSuperAdmin {
		return nil
	}
	if actor.HostelID != hostelID {
		return appErrors.ErrForbidden
	}
	return nil
}
