package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/hostelhub/residence-api/internal/models"
)

const supervisorColumns = `id, user_id, hostel_id, full_name, floors, permissions, template, active,
       created_at, updated_at`

// SupervisorRepository persists supervisor records and serves the aggregate
// queries behind their dashboard.
type SupervisorRepository struct {
	db *sqlx.DB
}

// NewSupervisorRepository constructs the repository.
func NewSupervisorRepository(db *sqlx.DB) *SupervisorRepository {
	return &SupervisorRepository{db: db}
}

// Create inserts a supervisor record.
func (r *SupervisorRepository) Create(ctx context.Context, supervisor *models.Supervisor) error {
	if supervisor.ID == "" {
		supervisor.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	supervisor.CreatedAt = now
	supervisor.UpdatedAt = now
	const query = `INSERT INTO supervisors
	(id, user_id, hostel_id, full_name, floors, permissions, template, active, created_at, updated_at)
	VALUES (:id, :user_id, :hostel_id, :full_name, :floors, :permissions, :template, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, supervisor); err != nil {
		return fmt.Errorf("create supervisor: %w", err)
	}
	return nil
}

// GetByID returns one supervisor or sql.ErrNoRows.
func (r *SupervisorRepository) GetByID(ctx context.Context, id string) (*models.Supervisor, error) {
	query := fmt.Sprintf("SELECT %s FROM supervisors WHERE id = $1", supervisorColumns)
	var supervisor models.Supervisor
	if err := r.db.GetContext(ctx, &supervisor, query, id); err != nil {
		return nil, err
	}
	return &supervisor, nil
}

// GetByUserID resolves the supervisor record behind an authenticated user.
func (r *SupervisorRepository) GetByUserID(ctx context.Context, userID string) (*models.Supervisor, error) {
	query := fmt.Sprintf("SELECT %s FROM supervisors WHERE user_id = $1", supervisorColumns)
	var supervisor models.Supervisor
	if err := r.db.GetContext(ctx, &supervisor, query, userID); err != nil {
		return nil, err
	}
	return &supervisor, nil
}

// ListByHostel returns a hostel's supervisors, active first.
func (r *SupervisorRepository) ListByHostel(ctx context.Context, hostelID string) ([]models.Supervisor, error) {
	query := fmt.Sprintf(`SELECT %s FROM supervisors WHERE hostel_id = $1
	ORDER BY active DESC, full_name`, supervisorColumns)
	var supervisors []models.Supervisor
	if err := r.db.SelectContext(ctx, &supervisors, query, hostelID); err != nil {
		return nil, fmt.Errorf("list supervisors: %w", err)
	}
	return supervisors, nil
}

// UpdatePermissions replaces the permission set and the template name it
// came from.
func (r *SupervisorRepository) UpdatePermissions(ctx context.Context, id string, permissions []string, template *string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE supervisors
	SET permissions = $1, template = $2, updated_at = $3 WHERE id = $4`,
		pq.Array(permissions), template, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update supervisor permissions: %w", err)
	}
	return requireRows(result)
}

// UpdateFloors replaces the floor assignment.
func (r *SupervisorRepository) UpdateFloors(ctx context.Context, id string, floors []int64) error {
	result, err := r.db.ExecContext(ctx, `UPDATE supervisors
	SET floors = $1, updated_at = $2 WHERE id = $3`,
		pq.Array(floors), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update supervisor floors: %w", err)
	}
	return requireRows(result)
}

// SetActive toggles the supervisor on or off.
func (r *SupervisorRepository) SetActive(ctx context.Context, id string, active bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE supervisors
	SET active = $1, updated_at = $2 WHERE id = $3`, active, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("toggle supervisor: %w", err)
	}
	return requireRows(result)
}

// Performance aggregates the supervisor's activity over the trailing window.
func (r *SupervisorRepository) Performance(ctx context.Context, supervisor *models.Supervisor, since time.Time) (*models.SupervisorPerformance, error) {
	const query = `SELECT
	    (SELECT COUNT(*) FROM announcements
	     WHERE created_by = $1 AND created_at >= $2) AS announcements_created,
	    (SELECT COUNT(*) FROM approval_requests
	     WHERE decided_by = $1 AND decided_at >= $2) AS approvals_decided,
	    (SELECT COUNT(*) FROM maintenance_requests
	     WHERE assigned_to = $1 AND status = 'COMPLETED' AND completed_at >= $2) AS maintenance_resolved,
	    (SELECT COALESCE(AVG(EXTRACT(EPOCH FROM completed_at - created_at) / 3600), 0)
	     FROM maintenance_requests
	     WHERE assigned_to = $1 AND status = 'COMPLETED' AND completed_at >= $2) AS avg_resolution_hours`
	var row struct {
		AnnouncementsCreated int     `db:"announcements_created"`
		ApprovalsDecided     int     `db:"approvals_decided"`
		MaintenanceResolved  int     `db:"maintenance_resolved"`
		AvgResolutionHours   float64 `db:"avg_resolution_hours"`
	}
	if err := r.db.GetContext(ctx, &row, query, supervisor.UserID, since); err != nil {
		return nil, fmt.Errorf("supervisor performance: %w", err)
	}
	return &models.SupervisorPerformance{
		SupervisorID:         supervisor.ID,
		AnnouncementsCreated: row.AnnouncementsCreated,
		ApprovalsDecided:     row.ApprovalsDecided,
		MaintenanceResolved:  row.MaintenanceResolved,
		AvgResolutionHours:   row.AvgResolutionHours,
		PeriodDays:           int(time.Since(since).Hours() / 24),
	}, nil
}

// DashboardCounts loads the live counters shown on the supervisor dashboard.
func (r *SupervisorRepository) DashboardCounts(ctx context.Context, supervisor *models.Supervisor, today time.Time) (pendingApprovals, openMaintenance, publishedToday, unreadUrgent int, err error) {
	const query = `SELECT
	    (SELECT COUNT(*) FROM approval_requests ar
	     JOIN announcements a ON a.id = ar.announcement_id
	     WHERE ar.status = 'PENDING' AND a.hostel_id = $1) AS pending_approvals,
	    (SELECT COUNT(*) FROM maintenance_requests
	     WHERE hostel_id = $1 AND status IN ('PENDING', 'APPROVED', 'IN_PROGRESS')) AS open_maintenance,
	    (SELECT COUNT(*) FROM announcements
	     WHERE hostel_id = $1 AND status = 'PUBLISHED' AND published_at >= $2) AS published_today,
	    (SELECT COUNT(*) FROM announcements a
	     WHERE a.hostel_id = $1 AND a.status = 'PUBLISHED' AND a.is_urgent
	       AND NOT EXISTS (SELECT 1 FROM read_receipts rr
	                       WHERE rr.announcement_id = a.id AND rr.student_id = $3)) AS unread_urgent`
	var row struct {
		PendingApprovals int `db:"pending_approvals"`
		OpenMaintenance  int `db:"open_maintenance"`
		PublishedToday   int `db:"published_today"`
		UnreadUrgent     int `db:"unread_urgent"`
	}
	if err = r.db.GetContext(ctx, &row, query, supervisor.HostelID, today, supervisor.UserID); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("supervisor dashboard counts: %w", err)
	}
	return row.PendingApprovals, row.OpenMaintenance, row.PublishedToday, row.UnreadUrgent, nil
}
