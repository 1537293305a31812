package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hostelhub/residence-api/internal/dto"
	"github.com/hostelhub/residence-api/internal/models"
	appErrors "github.com/hostelhub/residence-api/pkg/errors"
)

type engagementStore interface {
	UpsertReadReceipt(ctx context.Context, receipt *models.ReadReceipt) (bool, error)
	GetReadReceipt(ctx context.Context, announcementID, studentID string) (*models.ReadReceipt, error)
	UpsertAcknowledgment(ctx context.Context, ack *models.Acknowledgment) error
	ListUnacknowledged(ctx context.Context, announcementID string, recipients []string) ([]string, error)
	Metrics(ctx context.Context, announcementID string, totalRecipients int) (*models.EngagementMetrics, error)
	Trend(ctx context.Context, announcementID string, since time.Time) ([]models.EngagementTrendPoint, error)
	StudentEngagement(ctx context.Context, hostelID, studentID string, since time.Time) (*models.StudentEngagement, error)
	HostelAnalytics(ctx context.Context, hostelID string, from, to time.Time) (*models.HostelEngagementAnalytics, error)
}

type engagementCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type studentGateway interface {
	GetByUserID(ctx context.Context, userID string) (*models.Student, error)
}

// EngagementService records read receipts and acknowledgments and serves
// engagement analytics. Analytics reads go through the cache; writes
// invalidate the announcement's cached entries.
type EngagementService struct {
	repo          engagementStore
	announcements scheduleAnnouncementGateway
	targeting     audienceResolver
	students      studentGateway
	cache         engagementCache
	cacheTTL      time.Duration
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewEngagementService constructs the service. cache may be nil, which
// disables caching.
func NewEngagementService(repo engagementStore, announcements scheduleAnnouncementGateway, targeting audienceResolver, students studentGateway, cache engagementCache, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *EngagementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &EngagementService{
		repo:          repo,
		announcements: announcements,
		targeting:     targeting,
		students:      students,
		cache:         cache,
		cacheTTL:      cacheTTL,
		validator:     validate,
		logger:        logger,
	}
}

// MarkRead records that the acting student read an announcement. Repeat
// calls keep the first read time and the best reading metadata.
func (s *EngagementService) MarkRead(ctx context.Context, announcementID string, req dto.MarkReadRequest, actor *models.JWTClaims) (*models.ReadReceipt, bool, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	_, student, err := s.loadReadable(ctx, announcementID, actor)
	if err != nil {
		return nil, false, err
	}

	receipt := &models.ReadReceipt{
		AnnouncementID:     announcementID,
		StudentID:          student.ID,
		ReadAt:             time.Now().UTC(),
		ReadingTimeSeconds: req.ReadingTimeSeconds,
		ScrollPercentage:   req.ScrollPercentage,
		DeviceType:         req.DeviceType,
		SourceChannel:      req.SourceChannel,
	}
	created, err := s.repo.UpsertReadReceipt(ctx, receipt)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record read receipt")
	}
	s.invalidate(ctx, announcementID)
	return receipt, created, nil
}

// Acknowledge records an explicit acknowledgment. The announcement must ask
// for one; lateness is measured against its deadline at first submission.
func (s *EngagementService) Acknowledge(ctx context.Context, announcementID string, req dto.AcknowledgeRequest, actor *models.JWTClaims) (*models.Acknowledgment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	announcement, student, err := s.loadReadable(ctx, announcementID, actor)
	if err != nil {
		return nil, err
	}
	if !announcement.RequiresAcknowledgment {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "announcement does not request acknowledgment")
	}

	now := time.Now().UTC()
	ack := &models.Acknowledgment{
		AnnouncementID: announcementID,
		StudentID:      student.ID,
		AcknowledgedAt: now,
		OnTime:         announcement.AcknowledgmentDeadline == nil || !now.After(*announcement.AcknowledgmentDeadline),
		Note:           req.Note,
		ActionTaken:    req.ActionTaken,
	}
	if err := s.repo.UpsertAcknowledgment(ctx, ack); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record acknowledgment")
	}

	// Acknowledging implies reading.
	if _, err := s.repo.UpsertReadReceipt(ctx, &models.ReadReceipt{
		AnnouncementID: announcementID,
		StudentID:      student.ID,
		ReadAt:         now,
	}); err != nil {
		s.logger.Warn("implicit read receipt failed",
			zap.String("announcement_id", announcementID),
			zap.String("student_id", student.ID),
			zap.Error(err))
	}
	s.invalidate(ctx, announcementID)
	return ack, nil
}

// Metrics returns aggregate engagement for an announcement.
func (s *EngagementService) Metrics(ctx context.Context, announcementID string, actor *models.JWTClaims) (*models.EngagementMetrics, error) {
	announcement, err := s.loadForStaff(ctx, announcementID, actor)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("engagement:metrics:%s", announcementID)
	var cached models.EngagementMetrics
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	recipients, err := s.targeting.Resolve(ctx, announcement)
	if err != nil {
		return nil, err
	}
	metrics, err := s.repo.Metrics(ctx, announcementID, len(recipients))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute engagement metrics")
	}
	s.cacheSet(ctx, key, metrics)
	return metrics, nil
}

// Trend returns daily engagement counts for the given window in days.
func (s *EngagementService) Trend(ctx context.Context, announcementID string, days int, actor *models.JWTClaims) ([]models.EngagementTrendPoint, error) {
	if _, err := s.loadForStaff(ctx, announcementID, actor); err != nil {
		return nil, err
	}
	if days <= 0 || days > 90 {
		days = 30
	}

	key := fmt.Sprintf("engagement:trend:%s:%d", announcementID, days)
	var cached []models.EngagementTrendPoint
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	trend, err := s.repo.Trend(ctx, announcementID, since)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute engagement trend")
	}
	s.cacheSet(ctx, key, trend)
	return trend, nil
}

// Unacknowledged lists recipients who have not acknowledged yet.
func (s *EngagementService) Unacknowledged(ctx context.Context, announcementID string, actor *models.JWTClaims) ([]string, error) {
	announcement, err := s.loadForStaff(ctx, announcementID, actor)
	if err != nil {
		return nil, err
	}
	if !announcement.RequiresAcknowledgment {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "announcement does not request acknowledgment")
	}
	recipients, err := s.targeting.Resolve(ctx, announcement)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(recipients))
	for _, r := range recipients {
		ids = append(ids, r.StudentID)
	}
	missing, err := s.repo.ListUnacknowledged(ctx, announcementID, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list unacknowledged recipients")
	}
	return missing, nil
}

// StudentSummary returns the acting student's own engagement history.
func (s *EngagementService) StudentSummary(ctx context.Context, days int, actor *models.JWTClaims) (*models.StudentEngagement, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	student, err := s.resolveStudent(ctx, actor)
	if err != nil {
		return nil, err
	}
	if days <= 0 || days > 365 {
		days = 90
	}
	since := time.Now().UTC().AddDate(0, 0, -days)
	summary, err := s.repo.StudentEngagement(ctx, student.HostelID, student.ID, since)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute student engagement")
	}
	return summary, nil
}

// HostelAnalytics aggregates engagement across a hostel for a date range.
func (s *EngagementService) HostelAnalytics(ctx context.Context, from, to time.Time, actor *models.JWTClaims) (*models.HostelEngagementAnalytics, error) {
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
		from = to.AddDate(0, -1, 0)
	}
	if !from.Before(to) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "from must be before to")
	}

	key := fmt.Sprintf("engagement:hostel:%s:%s:%s", actor.HostelID, from.Format("2006-01-02"), to.Format("2006-01-02"))
	var cached models.HostelEngagementAnalytics
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	analytics, err := s.repo.HostelAnalytics(ctx, actor.HostelID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute hostel analytics")
	}
	s.cacheSet(ctx, key, analytics)
	return analytics, nil
}

func (s *EngagementService) loadReadable(ctx context.Context, announcementID string, actor *models.JWTClaims) (*models.Announcement, *models.Student, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleStudent {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "only students record engagement")
	}
	student, err := s.resolveStudent(ctx, actor)
	if err != nil {
		return nil, nil, err
	}
	announcement, err := s.announcements.GetByID(ctx, announcementID)
	if err != nil {
		return nil, nil, err
	}
	if announcement.HostelID != student.HostelID {
		return nil, nil, appErrors.ErrNotFound
	}
	if announcement.Status != models.AnnouncementStatusPublished {
		return nil, nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "announcement is not published")
	}
	return announcement, student, nil
}

func (s *EngagementService) loadForStaff(ctx context.Context, announcementID string, actor *models.JWTClaims) (*models.Announcement, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleStudent {
		return nil, appErrors.ErrForbidden
	}
	announcement, err := s.announcements.GetByID(ctx, announcementID)
	if err != nil {
		return nil, err
	}
	if err := checkHostelScope(actor, announcement.HostelID); err != nil {
		return nil, err
	}
	return announcement, nil
}

func (s *EngagementService) resolveStudent(ctx context.Context, actor *models.JWTClaims) (*models.Student, error) {
	student, err := s.students.GetByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "no student record for this account")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.Active {
		return nil, appErrors.ErrInactiveAccount
	}
	return student, nil
}

func (s *EngagementService) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	err := s.cache.Get(ctx, key, dest)
	if err == nil {
		return true
	}
	if !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("engagement cache read failed", zap.String("key", key), zap.Error(err))
	}
	return false
}

func (s *EngagementService) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		s.logger.Warn("engagement cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *EngagementService) invalidate(ctx context.Context, announcementID string) {
	if s.cache == nil {
		return
	}
	pattern := fmt.Sprintf("engagement:*%s*", announcementID)
	if err := s.cache.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("engagement cache invalidation failed",
			zap.String("announcement_id", announcementID), zap.Error(err))
	}
}
