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

const announcementColumns = `id, hostel_id, title, content, category, priority, status, is_urgent, is_pinned,
       requires_approval, requires_acknowledgment, acknowledgment_deadline, attachments,
       published_at, expires_at, unpublish_reason, created_by, created_at, updated_at`

// AnnouncementRepository provides persistence for announcements.
type AnnouncementRepository struct {
	db *sqlx.DB
}

// NewAnnouncementRepository creates the repository.
func NewAnnouncementRepository(db *sqlx.DB) *AnnouncementRepository {
	return &AnnouncementRepository{db: db}
}

// List returns announcements matching the filter with a total count.
func (r *AnnouncementRepository) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.HostelID != "" {
		where = append(where, fmt.Sprintf("hostel_id = $%d", len(args)+1))
		args = append(args, filter.HostelID)
	}
	if len(filter.Status) > 0 {
		values := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			values[i] = string(s)
		}
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(values))
	}
	if filter.Category != "" {
		where = append(where, fmt.Sprintf("category = $%d", len(args)+1))
		args = append(args, filter.Category)
	}
	if filter.Priority != "" {
		where = append(where, fmt.Sprintf("priority = $%d", len(args)+1))
		args = append(args, filter.Priority)
	}
	if filter.Pinned != nil {
		where = append(where, fmt.Sprintf("is_pinned = $%d", len(args)+1))
		args = append(args, *filter.Pinned)
	}
	if filter.Urgent != nil {
		where = append(where, fmt.Sprintf("is_urgent = $%d", len(args)+1))
		args = append(args, *filter.Urgent)
	}
	if filter.CreatedBy != "" {
		where = append(where, fmt.Sprintf("created_by = $%d", len(args)+1))
		args = append(args, filter.CreatedBy)
	}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("(title ILIKE $%d OR content ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
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

	query := fmt.Sprintf(`SELECT %s FROM announcements WHERE %s
ORDER BY is_pinned DESC, is_urgent DESC, created_at DESC
LIMIT %d OFFSET %d`, announcementColumns, whereClause, size, offset)
	var announcements []models.Announcement
	if err := r.db.SelectContext(ctx, &announcements, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list announcements: %w", err)
	}
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM announcements WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count announcements: %w", err)
	}
	return announcements, total, nil
}

// GetByID returns an announcement by identifier.
func (r *AnnouncementRepository) GetByID(ctx context.Context, id string) (*models.Announcement, error) {
	query := fmt.Sprintf("SELECT %s FROM announcements WHERE id = $1", announcementColumns)
	var announcement models.Announcement
	if err := r.db.GetContext(ctx, &announcement, query, id); err != nil {
		return nil, err
	}
	return &announcement, nil
}

// Create inserts a new announcement.
func (r *AnnouncementRepository) Create(ctx context.Context, announcement *models.Announcement) error {
	if announcement.ID == "" {
		announcement.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if announcement.CreatedAt.IsZero() {
		announcement.CreatedAt = now
	}
	announcement.UpdatedAt = now
	const query = `INSERT INTO announcements
	(id, hostel_id, title, content, category, priority, status, is_urgent, is_pinned,
	 requires_approval, requires_acknowledgment, acknowledgment_deadline, attachments,
	 published_at, expires_at, unpublish_reason, created_by, created_at, updated_at)
	VALUES (:id, :hostel_id, :title, :content, :category, :priority, :status, :is_urgent, :is_pinned,
	 :requires_approval, :requires_acknowledgment, :acknowledgment_deadline, :attachments,
	 :published_at, :expires_at, :unpublish_reason, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, announcement); err != nil {
		return fmt.Errorf("create announcement: %w", err)
	}
	return nil
}

// Update modifies an existing announcement.
func (r *AnnouncementRepository) Update(ctx context.Context, announcement *models.Announcement) error {
	announcement.UpdatedAt = time.Now().UTC()
	const query = `UPDATE announcements SET title = :title, content = :content, category = :category,
	priority = :priority, is_urgent = :is_urgent, is_pinned = :is_pinned,
	requires_acknowledgment = :requires_acknowledgment, acknowledgment_deadline = :acknowledgment_deadline,
	attachments = :attachments, expires_at = :expires_at, updated_at = :updated_at
	WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, announcement); err != nil {
		return fmt.Errorf("update announcement: %w", err)
	}
	return nil
}

// UpdateStatus moves the announcement to a new publication state.
// The expected status guard keeps racing transitions honest.
func (r *AnnouncementRepository) UpdateStatus(ctx context.Context, id string, from []models.AnnouncementStatus, to models.AnnouncementStatus, publishedAt *time.Time, unpublishReason *string) error {
	values := make([]string, len(from))
	for i, s := range from {
		values[i] = string(s)
	}
	result, err := r.db.ExecContext(ctx, `UPDATE announcements
	SET status = $1, published_at = COALESCE($2, published_at), unpublish_reason = $3, updated_at = $4
	WHERE id = $5 AND status = ANY($6)`,
		to, publishedAt, unpublishReason, time.Now().UTC(), id, pq.Array(values))
	if err != nil {
		return fmt.Errorf("update announcement status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check announcement status rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// BulkDelete hard-deletes the provided announcements in one transaction and
// returns the number of rows removed. Dependent targeting, schedule, and
// delivery rows are removed by ON DELETE CASCADE.
func (r *AnnouncementRepository) BulkDelete(ctx context.Context, ids []string) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin bulk delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	result, err := tx.ExecContext(ctx, "DELETE FROM announcements WHERE id = ANY($1)", pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("bulk delete announcements: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check bulk delete rows: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit bulk delete: %w", err)
	}
	return int(rows), nil
}

// Stats aggregates announcement counts per hostel.
func (r *AnnouncementRepository) Stats(ctx context.Context, hostelID string) (*models.AnnouncementStats, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT status, category, priority, is_urgent, is_pinned, COUNT(*) AS cnt
	FROM announcements WHERE hostel_id = $1
	GROUP BY status, category, priority, is_urgent, is_pinned`, hostelID)
	if err != nil {
		return nil, fmt.Errorf("announcement stats: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	stats := &models.AnnouncementStats{
		ByStatus:   map[string]int{},
		ByCategory: map[string]int{},
		ByPriority: map[string]int{},
	}
	for rows.Next() {
		var (
			status, category, priority string
			urgent, pinned             bool
			cnt                        int
		)
		if err := rows.Scan(&status, &category, &priority, &urgent, &pinned, &cnt); err != nil {
			return nil, fmt.Errorf("scan announcement stats: %w", err)
		}
		stats.Total += cnt
		stats.ByStatus[status] += cnt
		stats.ByCategory[category] += cnt
		stats.ByPriority[priority] += cnt
		if urgent {
			stats.UrgentCount += cnt
		}
		if pinned {
			stats.PinnedCount += cnt
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate announcement stats: %w", err)
	}
	return stats, nil
}
