package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/hostelhub/residence-api/internal/models"
)

const scheduleColumns = `id, announcement_id, status, scheduled_publish_at, auto_expire, expire_after_hours,
       is_recurring, recurrence_pattern, weekdays, end_date, max_occurrences, occurrences_completed,
       next_publish_at, cancel_reason, created_by, created_at, updated_at`

// ScheduleRepository persists publication schedules.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository constructs the repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// Create inserts a schedule for an announcement. One active schedule per
// announcement is enforced by a partial unique index.
func (r *ScheduleRepository) Create(ctx context.Context, schedule *models.Schedule) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	if schedule.Status == "" {
		schedule.Status = models.ScheduleStatusActive
	}
	now := time.Now().UTC()
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}
	schedule.UpdatedAt = now
	const query = `INSERT INTO schedules
	(id, announcement_id, status, scheduled_publish_at, auto_expire, expire_after_hours, is_recurring,
	 recurrence_pattern, weekdays, end_date, max_occurrences, occurrences_completed, next_publish_at,
	 cancel_reason, created_by, created_at, updated_at)
	VALUES (:id, :announcement_id, :status, :scheduled_publish_at, :auto_expire, :expire_after_hours, :is_recurring,
	 :recurrence_pattern, :weekdays, :end_date, :max_occurrences, :occurrences_completed, :next_publish_at,
	 :cancel_reason, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}
	return nil
}

// GetByID fetches a schedule by identifier.
func (r *ScheduleRepository) GetByID(ctx context.Context, id string) (*models.Schedule, error) {
	query := fmt.Sprintf("SELECT %s FROM schedules WHERE id = $1", scheduleColumns)
	var schedule models.Schedule
	if err := r.db.GetContext(ctx, &schedule, query, id); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// GetActiveByAnnouncement returns the active schedule for an announcement.
func (r *ScheduleRepository) GetActiveByAnnouncement(ctx context.Context, announcementID string) (*models.Schedule, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedules
	WHERE announcement_id = $1 AND status = $2 ORDER BY created_at DESC LIMIT 1`, scheduleColumns)
	var schedule models.Schedule
	if err := r.db.GetContext(ctx, &schedule, query, announcementID, models.ScheduleStatusActive); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// List returns schedules matching the filter joined with announcement scope.
func (r *ScheduleRepository) List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, int, error) {
	base := "FROM schedules sc JOIN announcements a ON a.id = sc.announcement_id"
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.HostelID != "" {
		where = append(where, fmt.Sprintf("a.hostel_id = $%d", len(args)+1))
		args = append(args, filter.HostelID)
	}
	if len(filter.Status) > 0 {
		values := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			values[i] = string(s)
		}
		where = append(where, fmt.Sprintf("sc.status = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(values))
	}
	if filter.RecurringOnly {
		where = append(where, "sc.is_recurring")
	}
	if filter.DueBefore != nil {
		where = append(where, fmt.Sprintf("COALESCE(sc.next_publish_at, sc.scheduled_publish_at) <= $%d", len(args)+1))
		args = append(args, *filter.DueBefore)
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT sc.* %s WHERE %s
ORDER BY COALESCE(sc.next_publish_at, sc.scheduled_publish_at) ASC
LIMIT %d OFFSET %d`, base, whereClause, size, offset)
	var schedules []models.Schedule
	if err := r.db.SelectContext(ctx, &schedules, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list schedules: %w", err)
	}
	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count schedules: %w", err)
	}
	return schedules, total, nil
}

// ListDue returns active schedules whose publish time has arrived.
func (r *ScheduleRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]models.Schedule, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM schedules
	WHERE status = $1 AND COALESCE(next_publish_at, scheduled_publish_at) <= $2
	ORDER BY COALESCE(next_publish_at, scheduled_publish_at) ASC LIMIT %d`, scheduleColumns, limit)
	var schedules []models.Schedule
	if err := r.db.SelectContext(ctx, &schedules, query, models.ScheduleStatusActive, now); err != nil {
		return nil, fmt.Errorf("list due schedules: %w", err)
	}
	return schedules, nil
}

// Reschedule moves an active schedule to a new publish time.
func (r *ScheduleRepository) Reschedule(ctx context.Context, id string, publishAt time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE schedules
	SET scheduled_publish_at = $1, next_publish_at = $1, updated_at = $2
	WHERE id = $3 AND status = $4`,
		publishAt, time.Now().UTC(), id, models.ScheduleStatusActive)
	if err != nil {
		return fmt.Errorf("reschedule: %w", err)
	}
	return requireRows(result)
}

// Cancel marks a schedule cancelled with the operator reason.
func (r *ScheduleRepository) Cancel(ctx context.Context, id, reason string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE schedules
	SET status = $1, cancel_reason = $2, next_publish_at = NULL, updated_at = $3
	WHERE id = $4 AND status = $5`,
		models.ScheduleStatusCancelled, reason, time.Now().UTC(), id, models.ScheduleStatusActive)
	if err != nil {
		return fmt.Errorf("cancel schedule: %w", err)
	}
	return requireRows(result)
}

// AdvanceOccurrence records a fired occurrence and either sets the next
// publish time or completes the schedule.
func (r *ScheduleRepository) AdvanceOccurrence(ctx context.Context, id string, next *time.Time) error {
	status := models.ScheduleStatusActive
	if next == nil {
		status = models.ScheduleStatusCompleted
	}
	result, err := r.db.ExecContext(ctx, `UPDATE schedules
	SET occurrences_completed = occurrences_completed + 1, next_publish_at = $1, status = $2, updated_at = $3
	WHERE id = $4 AND status = $5`,
		next, status, time.Now().UTC(), id, models.ScheduleStatusActive)
	if err != nil {
		return fmt.Errorf("advance schedule occurrence: %w", err)
	}
	return requireRows(result)
}

func requireRows(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check affected rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
