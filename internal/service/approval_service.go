package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hostelhub/residence-api/internal/dto"
	"github.com/hostelhub/residence-api/internal/models"
	"github.com/hostelhub/residence-api/internal/repository"
	appErrors "github.com/hostelhub/residence-api/pkg/errors"
)

type approvalStore interface {
	Create(ctx context.Context, request *models.ApprovalRequest) error
	GetByID(ctx context.Context, id string) (*models.ApprovalRequest, error)
	GetPendingByAnnouncement(ctx context.Context, announcementID string) (*models.ApprovalRequest, error)
	List(ctx context.Context, filter models.ApprovalFilter) ([]models.ApprovalRequest, int, error)
	ListByAnnouncement(ctx context.Context, announcementID string) ([]models.ApprovalRequest, error)
	RecordDecision(ctx context.Context, params repository.DecisionParams) error
}

type approvalAnnouncementGateway interface {
	GetByID(ctx context.Context, id string) (*models.Announcement, error)
	UpdateStatus(ctx context.Context, id string, from []models.AnnouncementStatus, to models.AnnouncementStatus, publishedAt *time.Time, unpublishReason *string) error
}

// ApprovedPublisher publishes an announcement after an approval decision.
type ApprovedPublisher interface {
	PublishApproved(ctx context.Context, id string, actor *models.JWTClaims) (*models.Announcement, error)
}

// ApprovalService runs the announcement approval workflow.
type ApprovalService struct {
	repo          approvalStore
	announcements approvalAnnouncementGateway
	publisher     ApprovedPublisher
	audit         auditLogger
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewApprovalService constructs the service.
func NewApprovalService(repo approvalStore, announcements approvalAnnouncementGateway, publisher ApprovedPublisher, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *ApprovalService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalService{
		repo:          repo,
		announcements: announcements,
		publisher:     publisher,
		audit:         audit,
		validator:     validate,
		logger:        logger,
	}
}

// Submit queues an announcement for review. One pending request per
// announcement; resubmission is allowed after a rejection that permits it.
func (s *ApprovalService) Submit(ctx context.Context, announcementID string, req dto.SubmitApprovalRequest, actor *models.JWTClaims) (*models.ApprovalRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	announcement, err := s.loadAnnouncement(ctx, announcementID)
	if err != nil {
		return nil, err
	}
	if err := checkHostelScope(actor, announcement.HostelID); err != nil {
		return nil, err
	}
	if announcement.Status != models.AnnouncementStatusDraft && announcement.Status != models.AnnouncementStatusUnpublished {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only drafts can be submitted for approval")
	}

	if pending, err := s.repo.GetPendingByAnnouncement(ctx, announcementID); err == nil && pending != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "announcement already has a pending approval request")
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending approvals")
	}

	history, err := s.repo.ListByAnnouncement(ctx, announcementID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approval history")
	}
	for _, prior := range history {
		if prior.Status == models.ApprovalStatusRejected && !prior.AllowResubmission {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "a previous rejection blocked resubmission")
		}
	}

	request := &models.ApprovalRequest{
		AnnouncementID:    announcementID,
		HostelID:          announcement.HostelID,
		Status:            models.ApprovalStatusPending,
		RequestedBy:       actor.UserID,
		PreferredApprover: req.PreferredApprover,
		IsUrgent:          req.IsUrgent || announcement.IsUrgent,
		Notes:             optionalString(req.Note),
		AutoPublish:       req.AutoPublish,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create approval request")
	}

	from := []models.AnnouncementStatus{models.AnnouncementStatusDraft, models.AnnouncementStatusUnpublished}
	if err := s.announcements.UpdateStatus(ctx, announcementID, from, models.AnnouncementStatusPendingApproval, nil, nil); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to move announcement to pending approval")
	}
	s.logger.Info("approval requested",
		zap.String("announcement_id", announcementID),
		zap.Bool("urgent", request.IsUrgent))
	return request, nil
}

// Decide records an approver decision on one pending request.
func (s *ApprovalService) Decide(ctx context.Context, requestID string, req dto.DecideApprovalRequest, actor *models.JWTClaims) (*models.ApprovalRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if req.Status == models.ApprovalStatusRejected && req.RejectionReason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a rejection needs a reason")
	}
	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := s.checkApprovalAuthority(actor, request); err != nil {
		return nil, err
	}
	if !request.Status.CanTransition(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "approval request already decided")
	}

	now := time.Now().UTC()
	params := repository.DecisionParams{
		ID:                requestID,
		Status:            req.Status,
		DecidedBy:         actor.UserID,
		DecidedAt:         now,
		AllowResubmission: req.AllowResubmission,
	}
	if req.Status == models.ApprovalStatusRejected {
		params.RejectionReason = &req.RejectionReason
	}
	if err := s.repo.RecordDecision(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "approval request already decided")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record decision")
	}
	request.Status = req.Status
	request.DecidedBy = &actor.UserID
	request.DecidedAt = &now
	request.RejectionReason = params.RejectionReason
	request.AllowResubmission = req.AllowResubmission

	switch req.Status {
	case models.ApprovalStatusApproved:
		if request.AutoPublish && s.publisher != nil {
			if _, err := s.publisher.PublishApproved(ctx, request.AnnouncementID, actor); err != nil {
				s.logger.Error("auto-publish after approval failed",
					zap.String("announcement_id", request.AnnouncementID), zap.Error(err))
			}
		} else {
			// Approved without auto-publish goes back to draft, ready to
			// publish manually or on schedule.
			from := []models.AnnouncementStatus{models.AnnouncementStatusPendingApproval}
			if err := s.announcements.UpdateStatus(ctx, request.AnnouncementID, from, models.AnnouncementStatusDraft, nil, nil); err != nil && !errors.Is(err, sql.ErrNoRows) {
				s.logger.Error("status reset after approval failed", zap.Error(err))
			}
		}
	case models.ApprovalStatusRejected:
		from := []models.AnnouncementStatus{models.AnnouncementStatusPendingApproval}
		if err := s.announcements.UpdateStatus(ctx, request.AnnouncementID, from, models.AnnouncementStatusDraft, nil, nil); err != nil && !errors.Is(err, sql.ErrNoRows) {
			s.logger.Error("status reset after rejection failed", zap.Error(err))
		}
	}

	s.emitAudit(ctx, actor, request)
	return request, nil
}

// Withdraw lets the requester pull back their own pending request.
func (s *ApprovalService) Withdraw(ctx context.Context, requestID string, actor *models.JWTClaims) (*models.ApprovalRequest, error) {
	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if request.RequestedBy != actor.UserID && actor.Role != models.RoleAdmin && actor.Role != models.RoleSuperAdmin {
		return nil, appErrors.ErrForbidden
	}
	if !request.Status.CanTransition(models.ApprovalStatusWithdrawn) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "approval request already decided")
	}

	now := time.Now().UTC()
	params := repository.DecisionParams{
		ID:        requestID,
		Status:    models.ApprovalStatusWithdrawn,
		DecidedBy: actor.UserID,
		DecidedAt: now,
	}
	if err := s.repo.RecordDecision(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "approval request already decided")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw request")
	}
	request.Status = models.ApprovalStatusWithdrawn
	request.DecidedBy = &actor.UserID
	request.DecidedAt = &now

	from := []models.AnnouncementStatus{models.AnnouncementStatusPendingApproval}
	if err := s.announcements.UpdateStatus(ctx, request.AnnouncementID, from, models.AnnouncementStatusDraft, nil, nil); err != nil && !errors.Is(err, sql.ErrNoRows) {
		s.logger.Error("status reset after withdrawal failed", zap.Error(err))
	}
	return request, nil
}

// BulkDecide applies one decision to up to fifty pending requests,
// continuing past per-item failures.
func (s *ApprovalService) BulkDecide(ctx context.Context, req dto.BulkDecideRequest, actor *models.JWTClaims) (*models.BulkDecisionSummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	decision := dto.DecideApprovalRequest{
		Status:            req.Status,
		Note:              req.Note,
		RejectionReason:   req.RejectionReason,
		AllowResubmission: req.AllowResubmission,
	}
	summary := &models.BulkDecisionSummary{}
	for _, id := range req.RequestIDs {
		outcome := models.BulkDecisionOutcome{AnnouncementID: id, Success: true}
		if decided, err := s.Decide(ctx, id, decision, actor); err != nil {
			outcome.Success = false
			outcome.Error = appErrors.FromError(err).Message
			summary.FailureCount++
		} else {
			outcome.AnnouncementID = decided.AnnouncementID
			summary.SuccessCount++
		}
		summary.Outcomes = append(summary.Outcomes, outcome)
	}
	return summary, nil
}

// Queue lists the pending requests an approver should look at, urgent first.
func (s *ApprovalService) Queue(ctx context.Context, query dto.ApprovalQuery, actor *models.JWTClaims) ([]models.ApprovalRequest, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	filter := models.ApprovalFilter{
		HostelID:    actor.HostelID,
		Status:      query.Status,
		RequestedBy: query.RequestedBy,
		UrgentOnly:  query.UrgentOnly,
		Page:        query.Page,
		PageSize:    query.PageSize,
	}
	if len(filter.Status) == 0 {
		filter.Status = []models.ApprovalStatus{models.ApprovalStatusPending}
	}
	// Supervisors only see their own submissions unless they hold the
	// approval permission, which the handler layer checks.
	requests, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list approval requests")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	if pagination.Page < 1 {
		pagination.Page = 1
	}
	if pagination.PageSize < 1 {
		pagination.PageSize = 20
	}
	return requests, pagination, nil
}

// History returns every approval round of an announcement, newest first.
func (s *ApprovalService) History(ctx context.Context, announcementID string, actor *models.JWTClaims) ([]models.ApprovalRequest, error) {
	announcement, err := s.loadAnnouncement(ctx, announcementID)
	if err != nil {
		return nil, err
	}
	if err := checkHostelScope(actor, announcement.HostelID); err != nil {
		return nil, err
	}
	history, err := s.repo.ListByAnnouncement(ctx, announcementID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approval history")
	}
	return history, nil
}

// checkApprovalAuthority enforces who may decide: admins of the hostel, or
// superadmins. Requesters can never approve their own submission.
func (s *ApprovalService) checkApprovalAuthority(actor *models.JWTClaims, request *models.ApprovalRequest) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if actor.UserID == request.RequestedBy {
		return appErrors.Clone(appErrors.ErrForbidden, "requesters cannot decide their own submission")
	}
	switch actor.Role {
	case models.RoleSuperAdmin:
		return nil
	case models.RoleAdmin, models.RoleSupervisor:
		if actor.HostelID != request.HostelID {
			return appErrors.ErrForbidden
		}
		return nil
	default:
		return appErrors.ErrForbidden
	}
}

func (s *ApprovalService) loadRequest(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	request, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approval request")
	}
	return request, nil
}

func (s *ApprovalService) loadAnnouncement(ctx context.Context, id string) (*models.Announcement, error) {
	announcement, err := s.announcements.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load announcement")
	}
	return announcement, nil
}

func (s *ApprovalService) emitAudit(ctx context.Context, actor *models.JWTClaims, request *models.ApprovalRequest) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionApprovalDecision,
		Resource:   "approval_request",
		ResourceID: &request.ID,
	}); err != nil {
		s.logger.Warn("audit log write failed", zap.Error(err))
	}
}
