package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/hostelhub/residence-api/internal/dto"
	"github.com/hostelhub/residence-api/internal/models"
	appErrors "github.com/hostelhub/residence-api/pkg/errors"
)

type scheduleStore interface {
	Create(ctx context.Context, schedule *models.Schedule) error
	GetByID(ctx context.Context, id string) (*models.Schedule, error)
	GetActiveByAnnouncement(ctx context.Context, announcementID string) (*models.Schedule, error)
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, int, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.Schedule, error)
	Reschedule(ctx context.Context, id string, publishAt time.Time) error
	Cancel(ctx context.Context, id, reason string) error
	AdvanceOccurrence(ctx context.Context, id string, next *time.Time) error
}

type scheduleAnnouncementGateway interface {
	GetByID(ctx context.Context, id string) (*models.Announcement, error)
	MarkScheduled(ctx context.Context, id string) error
	PublishApproved(ctx context.Context, id string, actor *models.JWTClaims) (*models.Announcement, error)
}

// ScheduleService manages future and recurring announcement publication.
type ScheduleService struct {
	repo          scheduleStore
	announcements scheduleAnnouncementGateway
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewScheduleService constructs the service.
func NewScheduleService(repo scheduleStore, announcements scheduleAnnouncementGateway, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{repo: repo, announcements: announcements, validator: validate, logger: logger}
}

// Create attaches a publication schedule to an announcement and moves the
// announcement to SCHEDULED.
func (s *ScheduleService) Create(ctx context.Context, announcementID string, req dto.CreateScheduleRequest, actor *models.JWTClaims) (*models.Schedule, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	now := time.Now().UTC()
	if !req.ScheduledPublishAt.After(now) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "publish time must be in the future")
	}
	if req.AutoExpire && req.ExpireAfterHours == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "auto-expire needs an expiry window in hours")
	}
	if req.IsRecurring {
		if req.RecurrencePattern == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "recurring schedules need a recurrence pattern")
		}
		if *req.RecurrencePattern == models.RecurrenceWeekly && len(req.Weekdays) == 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "weekly recurrence needs at least one weekday")
		}
		if req.EndDate == nil && req.MaxOccurrences == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "recurring schedules need an end date or occurrence cap")
		}
		if req.EndDate != nil && !req.EndDate.After(req.ScheduledPublishAt) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "end date must be after the first publication")
		}
	}

	announcement, err := s.announcements.GetByID(ctx, announcementID)
	if err != nil {
		return nil, err
	}
	if err := checkHostelScope(actor, announcement.HostelID); err != nil {
		return nil, err
	}
	if announcement.Status != models.AnnouncementStatusDraft && announcement.Status != models.AnnouncementStatusUnpublished {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only drafts can be scheduled")
	}
	if announcement.ExpiresAt != nil && req.ScheduledPublishAt.After(*announcement.ExpiresAt) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "publish time is past the announcement expiry")
	}
	if existing, err := s.repo.GetActiveByAnnouncement(ctx, announcementID); err == nil && existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "announcement already has an active schedule")
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing schedule")
	}

	schedule := &models.Schedule{
		AnnouncementID:     announcementID,
		Status:             models.ScheduleStatusActive,
		ScheduledPublishAt: req.ScheduledPublishAt,
		AutoExpire:         req.AutoExpire,
		ExpireAfterHours:   req.ExpireAfterHours,
		IsRecurring:        req.IsRecurring,
		RecurrencePattern:  req.RecurrencePattern,
		Weekdays:           normalizeWeekdays(req.Weekdays),
		EndDate:            req.EndDate,
		MaxOccurrences:     req.MaxOccurrences,
		CreatedBy:          actor.UserID,
	}
	if err := s.repo.Create(ctx, schedule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule")
	}
	if err := s.announcements.MarkScheduled(ctx, announcementID); err != nil {
		s.logger.Error("marking announcement scheduled failed",
			zap.String("announcement_id", announcementID), zap.Error(err))
	}
	return schedule, nil
}

// Get returns the active schedule of an announcement.
func (s *ScheduleService) Get(ctx context.Context, announcementID string) (*models.Schedule, error) {
	schedule, err := s.repo.GetActiveByAnnouncement(ctx, announcementID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	return schedule, nil
}

// List returns schedules in the actor's hostel.
func (s *ScheduleService) List(ctx context.Context, query dto.ScheduleQuery, actor *models.JWTClaims) ([]models.Schedule, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	filter := models.ScheduleFilter{
		HostelID:  actor.HostelID,
		Status:    query.Status,
		DueBefore: query.DueBefore,
		Page:      query.Page,
		PageSize:  query.PageSize,
	}
	schedules, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedules")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	if pagination.Page < 1 {
		pagination.Page = 1
	}
	if pagination.PageSize < 1 {
		pagination.PageSize = 20
	}
	return schedules, pagination, nil
}

// Reschedule moves an active schedule to a new publish time.
func (s *ScheduleService) Reschedule(ctx context.Context, scheduleID string, req dto.RescheduleRequest) (*models.Schedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if !req.ScheduledPublishAt.After(time.Now().UTC()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "publish time must be in the future")
	}
	if err := s.repo.Reschedule(ctx, scheduleID, req.ScheduledPublishAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "schedule is not active")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reschedule")
	}
	return s.loadSchedule(ctx, scheduleID)
}

// Cancel stops an active schedule.
func (s *ScheduleService) Cancel(ctx context.Context, scheduleID string, req dto.CancelScheduleRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if err := s.repo.Cancel(ctx, scheduleID, req.Reason); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrConflict, "schedule is not active")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel schedule")
	}
	return nil
}

// PublishNow runs a scheduled publication immediately and advances or
// completes the schedule.
func (s *ScheduleService) PublishNow(ctx context.Context, scheduleID string, actor *models.JWTClaims) error {
	schedule, err := s.loadSchedule(ctx, scheduleID)
	if err != nil {
		return err
	}
	if schedule.Status != models.ScheduleStatusActive {
		return appErrors.Clone(appErrors.ErrConflict, "schedule is not active")
	}
	return s.fire(ctx, schedule, actor)
}

// RunDue publishes every schedule whose time has come. Called by the
// scheduler tick; errors on individual schedules are logged, not fatal.
func (s *ScheduleService) RunDue(ctx context.Context, limit int) (int, error) {
	now := time.Now().UTC()
	due, err := s.repo.ListDue(ctx, now, limit)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list due schedules")
	}
	fired := 0
	for i := range due {
		if err := s.fire(ctx, &due[i], nil); err != nil {
			s.logger.Error("scheduled publication failed",
				zap.String("schedule_id", due[i].ID),
				zap.String("announcement_id", due[i].AnnouncementID),
				zap.Error(err))
			continue
		}
		fired++
	}
	return fired, nil
}

func (s *ScheduleService) fire(ctx context.Context, schedule *models.Schedule, actor *models.JWTClaims) error {
	if _, err := s.announcements.PublishApproved(ctx, schedule.AnnouncementID, actor); err != nil {
		return err
	}

	var next *time.Time
	if schedule.IsRecurring {
		occurrences := schedule.OccurrencesCompleted + 1
		candidate := NextOccurrence(schedule, effectivePublishAt(schedule))
		if candidate != nil &&
			(schedule.MaxOccurrences == nil || occurrences < *schedule.MaxOccurrences) &&
			(schedule.EndDate == nil || !candidate.After(*schedule.EndDate)) {
			next = candidate
		}
	}
	if err := s.repo.AdvanceOccurrence(ctx, schedule.ID, next); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrConflict, "schedule is no longer active")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to advance schedule")
	}
	return nil
}

func (s *ScheduleService) loadSchedule(ctx context.Context, id string) (*models.Schedule, error) {
	schedule, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	return schedule, nil
}

func effectivePublishAt(schedule *models.Schedule) time.Time {
	if schedule.NextPublishAt != nil {
		return *schedule.NextPublishAt
	}
	return schedule.ScheduledPublishAt
}

// NextOccurrence computes the next publication time after the given one, or
// nil when the pattern cannot produce another. Weekly patterns walk forward
// day by day until a configured weekday matches; weekday sets are
// Monday-based (0=Monday .. 6=Sunday).
func NextOccurrence(schedule *models.Schedule, after time.Time) *time.Time {
	if schedule.RecurrencePattern == nil {
		return nil
	}
	switch *schedule.RecurrencePattern {
	case models.RecurrenceDaily:
		next := after.AddDate(0, 0, 1)
		return &next
	case models.RecurrenceWeekly:
		if len(schedule.Weekdays) == 0 {
			next := after.AddDate(0, 0, 7)
			return &next
		}
		allowed := make(map[time.Weekday]bool, len(schedule.Weekdays))
		for _, d := range schedule.Weekdays {
			// Stored weekdays count from Monday (0=Monday .. 6=Sunday),
			// time.Weekday counts from Sunday.
			allowed[time.Weekday((d+1)%7)] = true
		}
		for i := 1; i <= 7; i++ {
			candidate := after.AddDate(0, 0, i)
			if allowed[candidate.Weekday()] {
				return &candidate
			}
		}
		return nil
	case models.RecurrenceBiweekly:
		next := after.AddDate(0, 0, 14)
		return &next
	case models.RecurrenceMonthly:
		next := after.AddDate(0, 1, 0)
		return &next
	default:
		return nil
	}
}

// normalizeWeekdays deduplicates and sorts a Monday-based weekday set.
func normalizeWeekdays(days []int64) pq.Int64Array {
	if len(days) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(days))
	out := make(pq.Int64Array, 0, len(days))
	for _, d := range days {
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
