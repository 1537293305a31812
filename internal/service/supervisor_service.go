package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/hostelhub/residence-api/internal/dto"
	"github.com/hostelhub/residence-api/internal/models"
	appErrors "github.com/hostelhub/residence-api/pkg/errors"
)

type supervisorStore interface {
	Create(ctx context.Context, supervisor *models.Supervisor) error
	GetByID(ctx context.Context, id string) (*models.Supervisor, error)
	GetByUserID(ctx context.Context, userID string) (*models.Supervisor, error)
	ListByHostel(ctx context.Context, hostelID string) ([]models.Supervisor, error)
	UpdatePermissions(ctx context.Context, id string, permissions []string, template *string) error
	UpdateFloors(ctx context.Context, id string, floors []int64) error
	SetActive(ctx context.Context, id string, active bool) error
	Performance(ctx context.Context, supervisor *models.Supervisor, since time.Time) (*models.SupervisorPerformance, error)
	DashboardCounts(ctx context.Context, supervisor *models.Supervisor, today time.Time) (pendingApprovals, openMaintenance, publishedToday, unreadUrgent int, err error)
}

// SupervisorService manages supervisor records, their permission sets, and
// the cached dashboard.
type SupervisorService struct {
	repo      supervisorStore
	audit     auditLogger
	cache     engagementCache
	cacheTTL  time.Duration
	templates map[string]models.PermissionTemplate
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSupervisorService constructs the service. templates may be nil when no
// template file is configured; explicit permission lists still work.
func NewSupervisorService(repo supervisorStore, audit auditLogger, cache engagementCache, cacheTTL time.Duration, templates map[string]models.PermissionTemplate, validate *validator.Validate, logger *zap.Logger) *SupervisorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 2 * time.Minute
	}
	return &SupervisorService{
		repo:      repo,
		audit:     audit,
		cache:     cache,
		cacheTTL:  cacheTTL,
		templates: templates,
		validator: validate,
		logger:    logger,
	}
}

// LoadPermissionTemplates reads named permission sets from a YAML file.
func LoadPermissionTemplates(path string) (map[string]models.PermissionTemplate, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read permission templates: %w", err)
	}
	var raw []models.PermissionTemplate
	if err := v.UnmarshalKey("templates", &raw); err != nil {
		return nil, fmt.Errorf("parse permission templates: %w", err)
	}
	templates := make(map[string]models.PermissionTemplate, len(raw))
	for _, t := range raw {
		templates[strings.ToUpper(t.Name)] = t
	}
	return templates, nil
}

// Create registers a supervisor with a template-derived permission set.
func (s *SupervisorService) Create(ctx context.Context, req dto.CreateSupervisorRequest, actor *models.JWTClaims) (*models.Supervisor, error) {
	if err := s.requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	template, ok := s.templates[strings.ToUpper(req.Template)]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown permission template %q", req.Template))
	}
	if existing, err := s.repo.GetByUserID(ctx, req.UserID); err == nil && existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "user already has a supervisor record")
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check supervisor record")
	}

	name := template.Name
	supervisor := &models.Supervisor{
		UserID:      req.UserID,
		HostelID:    actor.HostelID,
		FullName:    strings.TrimSpace(req.FullName),
		Floors:      req.Floors,
		Permissions: template.Permissions,
		Template:    &name,
		Active:      true,
	}
	if err := s.repo.Create(ctx, supervisor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create supervisor")
	}
	s.emitAudit(ctx, actor, supervisor.ID)
	return supervisor, nil
}

// Get loads one supervisor within the actor's hostel.
func (s *SupervisorService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Supervisor, error) {
	return s.loadScoped(ctx, id, actor)
}

// List returns the hostel's supervisors.
func (s *SupervisorService) List(ctx context.Context, actor *models.JWTClaims) ([]models.Supervisor, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleStudent {
		return nil, appErrors.ErrForbidden
	}
	supervisors, err := s.repo.ListByHostel(ctx, actor.HostelID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list supervisors")
	}
	return supervisors, nil
}

// UpdatePermissions replaces a supervisor's permission set from a template
// or an explicit list. Exactly one of the two must be given.
func (s *SupervisorService) UpdatePermissions(ctx context.Context, id string, req dto.UpdatePermissionsRequest, actor *models.JWTClaims) (*models.Supervisor, error) {
	if err := s.requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	hasTemplate := req.Template != nil && *req.Template != ""
	if hasTemplate == (len(req.Permissions) > 0) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "provide either a template or an explicit permission list")
	}
	if _, err := s.loadScoped(ctx, id, actor); err != nil {
		return nil, err
	}

	permissions := req.Permissions
	var templateName *string
	if hasTemplate {
		template, ok := s.templates[strings.ToUpper(*req.Template)]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown permission template %q", *req.Template))
		}
		permissions = template.Permissions
		templateName = &template.Name
	}
	if err := s.repo.UpdatePermissions(ctx, id, permissions, templateName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update permissions")
	}
	s.emitAudit(ctx, actor, id)
	s.invalidateDashboard(ctx, id)
	return s.loadScoped(ctx, id, actor)
}

// UpdateFloors replaces a supervisor's floor assignment.
func (s *SupervisorService) UpdateFloors(ctx context.Context, id string, req dto.UpdateFloorsRequest, actor *models.JWTClaims) (*models.Supervisor, error) {
	if err := s.requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if _, err := s.loadScoped(ctx, id, actor); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateFloors(ctx, id, req.Floors); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update floors")
	}
	s.emitAudit(ctx, actor, id)
	return s.loadScoped(ctx, id, actor)
}

// SetActive enables or disables a supervisor record.
func (s *SupervisorService) SetActive(ctx context.Context, id string, active bool, actor *models.JWTClaims) error {
	if err := s.requireAdmin(actor); err != nil {
		return err
	}
	if _, err := s.loadScoped(ctx, id, actor); err != nil {
		return err
	}
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update supervisor")
	}
	s.emitAudit(ctx, actor, id)
	s.invalidateDashboard(ctx, id)
	return nil
}

// Performance summarises a supervisor's activity over the given window.
func (s *SupervisorService) Performance(ctx context.Context, id string, days int, actor *models.JWTClaims) (*models.SupervisorPerformance, error) {
	supervisor, err := s.loadScoped(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if days <= 0 || days > 365 {
		days = 30
	}
	since := time.Now().UTC().AddDate(0, 0, -days)
	performance, err := s.repo.Performance(ctx, supervisor, since)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute performance")
	}
	return performance, nil
}

// Dashboard returns the acting supervisor's aggregate view, cached briefly.
func (s *SupervisorService) Dashboard(ctx context.Context, actor *models.JWTClaims) (*models.SupervisorDashboard, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	supervisor, err := s.repo.GetByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "no supervisor record for this account")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load supervisor")
	}
	if !supervisor.Active {
		return nil, appErrors.ErrInactiveAccount
	}

	key := s.dashboardKey(supervisor.ID)
	if s.cache != nil {
		var cached models.SupervisorDashboard
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("dashboard cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	now := time.Now().UTC()
	today := now.Truncate(24 * time.Hour)
	pending, open, published, unread, err := s.repo.DashboardCounts(ctx, supervisor, today)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute dashboard")
	}
	performance, err := s.repo.Performance(ctx, supervisor, now.AddDate(0, 0, -30))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute performance")
	}

	dashboard := &models.SupervisorDashboard{
		SupervisorID:     supervisor.ID,
		PendingApprovals: pending,
		OpenMaintenance:  open,
		PublishedToday:   published,
		UnreadUrgent:     unread,
		Performance:      *performance,
		GeneratedAt:      now,
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, dashboard, s.cacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return dashboard, nil
}

func (s *SupervisorService) dashboardKey(supervisorID string) string {
	return fmt.Sprintf("dashboard:supervisor:%s", supervisorID)
}

func (s *SupervisorService) invalidateDashboard(ctx context.Context, supervisorID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, s.dashboardKey(supervisorID)); err != nil {
		s.logger.Warn("dashboard cache invalidation failed",
			zap.String("supervisor_id", supervisorID), zap.Error(err))
	}
}

func (s *SupervisorService) requireAdmin(actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin && actor.Role != models.RoleSuperAdmin {
		return appErrors.ErrForbidden
	}
	return nil
}

func (s *SupervisorService) loadScoped(ctx context.Context, id string, actor *models.JWTClaims) (*models.Supervisor, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleStudent {
		return nil, appErrors.ErrForbidden
	}
	supervisor, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load supervisor")
	}
	if actor.Role != models.RoleSuperAdmin && supervisor.HostelID != actor.HostelID {
		return nil, appErrors.ErrNotFound
	}
	return supervisor, nil
}

func (s *SupervisorService) emitAudit(ctx context.Context, actor *models.JWTClaims, resourceID string) {
	if s.audit == nil || actor == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionSupervisorUpdate,
		Resource:   "supervisor",
		ResourceID: &resourceID,
	}); err != nil {
		s.logger.Warn("audit log write failed", zap.Error(err))
	}
}
