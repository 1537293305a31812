package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/hostelhub/residence-api/internal/models"
)

// AttendanceRepository persists nightly roll-call records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// BulkUpsert writes a batch of records for one date. Re-marking the same
// student on the same date overwrites the earlier status.
func (r *AttendanceRepository) BulkUpsert(ctx context.Context, records []models.AttendanceRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin attendance upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO attendance_records
	(id, hostel_id, student_id, date, status, note, marked_by, created_at, updated_at)
	VALUES (:id, :hostel_id, :student_id, :date, :status, :note, :marked_by, :created_at, :updated_at)
	ON CONFLICT (student_id, date) DO UPDATE SET
	    status = EXCLUDED.status,
	    note = EXCLUDED.note,
	    marked_by = EXCLUDED.marked_by,
	    updated_at = EXCLUDED.updated_at`
	now := time.Now().UTC()
	for i := range records {
		if records[i].ID == "" {
			records[i].ID = uuid.NewString()
		}
		if records[i].CreatedAt.IsZero() {
			records[i].CreatedAt = now
		}
		records[i].UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, &records[i]); err != nil {
			return fmt.Errorf("upsert attendance record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit attendance upsert: %w", err)
	}
	return nil
}

// List returns matching records plus the total count.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	where := []string{"hostel_id = $1"}
	args := []interface{}{filter.HostelID}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if len(filter.Status) > 0 {
		values := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			values[i] = string(s)
		}
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(values))
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := fmt.Sprintf(`SELECT id, hostel_id, student_id, date, status, note, marked_by, created_at, updated_at
	FROM attendance_records WHERE %s
	ORDER BY date DESC, student_id LIMIT %d OFFSET %d`, whereClause, pageSize, (page-1)*pageSize)
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM attendance_records WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}
	return records, total, nil
}

// DailyReport joins attendance onto the active roster so unmarked students
// still show up, defaulting to ABSENT.
func (r *AttendanceRepository) DailyReport(ctx context.Context, hostelID string, date time.Time) ([]models.AttendanceReportRow, error) {
	const query = `SELECT s.user_id AS student_id, s.full_name, s.room_id, s.floor,
	    COALESCE(ar.status, 'ABSENT') AS status, ar.note
	FROM students s
	LEFT JOIN attendance_records ar ON ar.student_id = s.user_id AND ar.date = $2
	WHERE s.hostel_id = $1 AND s.active
	ORDER BY s.room_id NULLS LAST, s.full_name`
	var rows []models.AttendanceReportRow
	if err := r.db.SelectContext(ctx, &rows, query, hostelID, date); err != nil {
		return nil, fmt.Errorf("attendance daily report: %w", err)
	}
	return rows, nil
}

// Summary aggregates one student's attendance across a date range.
func (r *AttendanceRepository) Summary(ctx context.Context, studentID string, from, to time.Time) (*models.AttendanceSummary, error) {
	const query = `SELECT
	    $1 AS student_id,
	    COUNT(*) AS total_days,
	    COUNT(*) FILTER (WHERE status = 'PRESENT') AS present_days,
	    COUNT(*) FILTER (WHERE status = 'ABSENT') AS absent_days,
	    COUNT(*) FILTER (WHERE status = 'LATE') AS late_days,
	    COUNT(*) FILTER (WHERE status = 'LEAVE') AS leave_days,
	    COALESCE(COUNT(*) FILTER (WHERE status IN ('PRESENT', 'LATE'))::float / NULLIF(COUNT(*), 0) * 100, 0) AS attendance_rate
	FROM attendance_records
	WHERE student_id = $1 AND date >= $2 AND date <= $3`
	var summary models.AttendanceSummary
	if err := r.db.GetContext(ctx, &summary, query, studentID, from, to); err != nil {
		return nil, fmt.Errorf("attendance summary: %w", err)
	}
	return &summary, nil
}

// ListConsecutiveAbsentees returns students absent every night over the last
// n dates, used to flag students for supervisor follow-up.
func (r *AttendanceRepository) ListConsecutiveAbsentees(ctx context.Context, hostelID string, since time.Time, minNights int) ([]string, error) {
	const query = `SELECT student_id
	FROM attendance_records
	WHERE hostel_id = $1 AND date >= $2 AND status = 'ABSENT'
	GROUP BY student_id
	HAVING COUNT(*) >= $3`
	var studentIDs []string
	if err := r.db.SelectContext(ctx, &studentIDs, query, hostelID, since, minNights); err != nil {
		return nil, fmt.Errorf("list consecutive absentees: %w", err)
	}
	return studentIDs, nil
}
