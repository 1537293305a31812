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
	"github.com/hostelhub/residence-api/internal/repository"
	appErrors "github.com/hostelhub/residence-api/pkg/errors"
)

type maintenanceStore interface {
	Create(ctx context.Context, request *models.MaintenanceRequest) error
	GetByID(ctx context.Context, id string) (*models.MaintenanceRequest, error)
	List(ctx context.Context, filter models.MaintenanceFilter) ([]models.MaintenanceRequest, int, error)
	Update(ctx context.Context, request *models.MaintenanceRequest) error
	Transition(ctx context.Context, params repository.MaintenanceTransitionParams) error
	CostSummary(ctx context.Context, hostelID string, from, to time.Time) ([]models.MaintenanceCostSummary, error)
	CreatePreventive(ctx context.Context, schedule *models.PreventiveSchedule) error
	ListPreventive(ctx context.Context, hostelID string, activeOnly bool) ([]models.PreventiveSchedule, error)
	ListPreventiveDue(ctx context.Context, now time.Time, limit int) ([]models.PreventiveSchedule, error)
	AdvancePreventive(ctx context.Context, id string, nextDueAt time.Time) error
	SetPreventiveActive(ctx context.Context, id string, active bool) error
}

// MaintenanceService manages maintenance requests, their approval lifecycle,
// cost reporting, and preventive schedules.
type MaintenanceService struct {
	repo      maintenanceStore
	students  studentGateway
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMaintenanceService constructs the service.
func NewMaintenanceService(repo maintenanceStore, students studentGateway, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *MaintenanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaintenanceService{repo: repo, students: students, audit: audit, validator: validate, logger: logger}
}

// Create reports a new issue. Students report into their own hostel; staff
// report into theirs.
func (s *MaintenanceService) Create(ctx context.Context, req dto.CreateMaintenanceRequest, actor *models.JWTClaims) (*models.MaintenanceRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	hostelID := actor.HostelID
	if actor.Role == models.RoleStudent {
		student, err := s.students.GetByUserID(ctx, actor.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrForbidden, "no student record for this account")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
		hostelID = student.HostelID
	}

	request := &models.MaintenanceRequest{
		HostelID:      hostelID,
		RoomID:        req.RoomID,
		Category:      req.Category,
		Status:        models.MaintenanceStatusPending,
		Title:         strings.TrimSpace(req.Title),
		Description:   strings.TrimSpace(req.Description),
		ReportedBy:    actor.UserID,
		EstimatedCost: req.EstimatedCost,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create maintenance request")
	}
	s.emitAudit(ctx, actor, models.AuditActionMaintenanceCreate, request.ID)
	return request, nil
}

// Get loads a single request. Students only see the ones they reported.
func (s *MaintenanceService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.MaintenanceRequest, error) {
	request, err := s.loadScoped(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleStudent && request.ReportedBy != actor.UserID {
		return nil, appErrors.ErrNotFound
	}
	return request, nil
}

// List returns requests in the actor's hostel. Students are restricted to
// their own reports.
func (s *MaintenanceService) List(ctx context.Context, filter models.MaintenanceFilter, actor *models.JWTClaims) ([]models.MaintenanceRequest, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleSuperAdmin {
		filter.HostelID = actor.HostelID
	}
	if actor.Role == models.RoleStudent {
		filter.ReportedBy = actor.UserID
	}
	requests, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list maintenance requests")
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

// Update edits a pending request. Only the reporter or hostel staff may edit.
func (s *MaintenanceService) Update(ctx context.Context, id string, req dto.UpdateMaintenanceRequest, actor *models.JWTClaims) (*models.MaintenanceRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	request, err := s.loadScoped(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleStudent && request.ReportedBy != actor.UserID {
		return nil, appErrors.ErrNotFound
	}
	if request.Status != models.MaintenanceStatusPending {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only pending requests can be edited")
	}

	if req.RoomID != nil {
		request.RoomID = req.RoomID
	}
	if req.Category != nil {
		request.Category = *req.Category
	}
	if req.Title != nil {
		request.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		request.Description = strings.TrimSpace(*req.Description)
	}
	if req.EstimatedCost != nil {
		request.EstimatedCost = req.EstimatedCost
	}
	if err := s.repo.Update(ctx, request); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update maintenance request")
	}
	return request, nil
}

// Decide approves or rejects a pending request.
func (s *MaintenanceService) Decide(ctx context.Context, id string, req dto.DecideMaintenanceRequest, actor *models.JWTClaims) (*models.MaintenanceRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if !req.Approve && (req.RejectReason == nil || strings.TrimSpace(*req.RejectReason) == "") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejections need a reason")
	}
	request, err := s.loadStaff(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	to := models.MaintenanceStatusApproved
	if !req.Approve {
		to = models.MaintenanceStatusRejected
	}
	if err := s.transition(ctx, request, to, actor, repository.MaintenanceTransitionParams{RejectReason: req.RejectReason}); err != nil {
		return nil, err
	}
	s.emitAudit(ctx, actor, models.AuditActionMaintenanceDecision, request.ID)
	return s.loadScoped(ctx, id, actor)
}

// Assign hands an approved request to a staff member and starts work.
func (s *MaintenanceService) Assign(ctx context.Context, id string, req dto.AssignMaintenanceRequest, actor *models.JWTClaims) (*models.MaintenanceRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	request, err := s.loadStaff(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, request, models.MaintenanceStatusInProgress, actor, repository.MaintenanceTransitionParams{}); err != nil {
		return nil, err
	}
	request.Status = models.MaintenanceStatusInProgress
	request.AssignedTo = &req.AssignedTo
	if err := s.repo.Update(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record assignment")
	}
	return request, nil
}

// Complete closes an in-progress request with its final cost.
func (s *MaintenanceService) Complete(ctx context.Context, id string, req dto.CompleteMaintenanceRequest, actor *models.JWTClaims) (*models.MaintenanceRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	request, err := s.loadStaff(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	params := repository.MaintenanceTransitionParams{
		ActualCost:      req.ActualCost,
		CompletionNotes: req.CompletionNotes,
	}
	if err := s.transition(ctx, request, models.MaintenanceStatusCompleted, actor, params); err != nil {
		return nil, err
	}
	s.emitAudit(ctx, actor, models.AuditActionMaintenanceComplete, request.ID)
	return s.loadScoped(ctx, id, actor)
}

// Cancel withdraws a request before completion. The reporter or hostel staff
// may cancel.
func (s *MaintenanceService) Cancel(ctx context.Context, id string, actor *models.JWTClaims) error {
	request, err := s.loadScoped(ctx, id, actor)
	if err != nil {
		return err
	}
	if actor.Role == models.RoleStudent && request.ReportedBy != actor.UserID {
		return appErrors.ErrNotFound
	}
	return s.transition(ctx, request, models.MaintenanceStatusCancelled, actor, repository.MaintenanceTransitionParams{})
}

// CostSummary aggregates maintenance spend per category for a window.
func (s *MaintenanceService) CostSummary(ctx context.Context, from, to time.Time, actor *models.JWTClaims) ([]models.MaintenanceCostSummary, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleStudent {
		return nil, appErrors.ErrForbidden
	}
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.AddDate(0, -3, 0)
	}
	if !from.Before(to) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "from must be before to")
	}
	summary, err := s.repo.CostSummary(ctx, actor.HostelID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise costs")
	}
	return summary, nil
}

// CreatePreventive defines a recurring maintenance task.
func (s *MaintenanceService) CreatePreventive(ctx context.Context, req dto.CreatePreventiveRequest, actor *models.JWTClaims) (*models.PreventiveSchedule, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleStudent {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if !req.FirstDueAt.After(time.Now().UTC()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "first due time must be in the future")
	}
	schedule := &models.PreventiveSchedule{
		HostelID:          actor.HostelID,
		Category:          req.Category,
		Title:             strings.TrimSpace(req.Title),
		Description:       strings.TrimSpace(req.Description),
		RecurrencePattern: req.RecurrencePattern,
		NextDueAt:         req.FirstDueAt,
		Active:            true,
		CreatedBy:         actor.UserID,
	}
	if err := s.repo.CreatePreventive(ctx, schedule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create preventive schedule")
	}
	return schedule, nil
}

// ListPreventive returns the hostel's preventive schedules.
func (s *MaintenanceService) ListPreventive(ctx context.Context, activeOnly bool, actor *models.JWTClaims) ([]models.PreventiveSchedule, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleStudent {
		return nil, appErrors.ErrForbidden
	}
	schedules, err := s.repo.ListPreventive(ctx, actor.HostelID, activeOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list preventive schedules")
	}
	return schedules, nil
}

// SetPreventiveActive pauses or resumes a preventive schedule.
func (s *MaintenanceService) SetPreventiveActive(ctx context.Context, id string, active bool, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleStudent {
		return appErrors.ErrForbidden
	}
	if err := s.repo.SetPreventiveActive(ctx, id, active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update preventive schedule")
	}
	return nil
}

// RunPreventiveDue materialises due preventive schedules into pending
// requests and advances their next due time. Called by the scheduler tick.
func (s *MaintenanceService) RunPreventiveDue(ctx context.Context, limit int) (int, error) {
	now := time.Now().UTC()
	due, err := s.repo.ListPreventiveDue(ctx, now, limit)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list due preventive schedules")
	}
	created := 0
	for i := range due {
		schedule := &due[i]
		request := &models.MaintenanceRequest{
			HostelID:    schedule.HostelID,
			Category:    schedule.Category,
			Status:      models.MaintenanceStatusPending,
			Title:       schedule.Title,
			Description: schedule.Description,
			ReportedBy:  schedule.CreatedBy,
		}
		if err := s.repo.Create(ctx, request); err != nil {
			s.logger.Error("preventive request creation failed",
				zap.String("schedule_id", schedule.ID), zap.Error(err))
			continue
		}
		next := advancePattern(schedule.RecurrencePattern, schedule.NextDueAt)
		// Skip occurrences missed while the scheduler was down.
		for !next.After(now) {
			next = advancePattern(schedule.RecurrencePattern, next)
		}
		if err := s.repo.AdvancePreventive(ctx, schedule.ID, next); err != nil {
			s.logger.Error("advancing preventive schedule failed",
				zap.String("schedule_id", schedule.ID), zap.Error(err))
			continue
		}
		created++
	}
	return created, nil
}

func (s *MaintenanceService) transition(ctx context.Context, request *models.MaintenanceRequest, to models.MaintenanceStatus, actor *models.JWTClaims, params repository.MaintenanceTransitionParams) error {
	if !request.Status.CanTransition(to) {
		return appErrors.Clone(appErrors.ErrConflict, "illegal status change from "+string(request.Status))
	}
	params.ID = request.ID
	params.From = request.Status
	params.To = to
	params.ActorID = actor.UserID
	if err := s.repo.Transition(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrConflict, "request changed concurrently")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to change request status")
	}
	return nil
}

func (s *MaintenanceService) loadScoped(ctx context.Context, id string, actor *models.JWTClaims) (*models.MaintenanceRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	request, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load maintenance request")
	}
	if actor.Role != models.RoleSuperAdmin && request.HostelID != actor.HostelID {
		return nil, appErrors.ErrNotFound
	}
	return request, nil
}

func (s *MaintenanceService) loadStaff(ctx context.Context, id string, actor *models.JWTClaims) (*models.MaintenanceRequest, error) {
	request, err := s.loadScoped(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleStudent {
		return nil, appErrors.ErrForbidden
	}
	return request, nil
}

func (s *MaintenanceService) emitAudit(ctx context.Context, actor *models.JWTClaims, action, resourceID string) {
	if s.audit == nil || actor == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     action,
		Resource:   "maintenance_request",
		ResourceID: &resourceID,
	}); err != nil {
		s.logger.Warn("audit log write failed", zap.String("action", action), zap.Error(err))
	}
}

// advancePattern steps a recurrence pattern forward from the given time.
func advancePattern(pattern models.RecurrencePattern, after time.Time) time.Time {
	switch pattern {
	case models.RecurrenceWeekly:
		return after.AddDate(0, 0, 7)
	case models.RecurrenceBiweekly:
		return after.AddDate(0, 0, 14)
	case models.RecurrenceMonthly:
		return after.AddDate(0, 1, 0)
	default:
		return after.AddDate(0, 0, 1)
	}
}
