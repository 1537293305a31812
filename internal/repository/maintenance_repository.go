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

const maintenanceColumns = `id, hostel_id, room_id, category, status, title, description, reported_by,
       assigned_to, estimated_cost, actual_cost, approved_by, approved_at, completed_at,
       completion_notes, reject_reason, created_at, updated_at`

// MaintenanceRepository persists maintenance requests and preventive schedules.
type MaintenanceRepository struct {
	db *sqlx.DB
}

// NewMaintenanceRepository constructs the repository.
func NewMaintenanceRepository(db *sqlx.DB) *MaintenanceRepository {
	return &MaintenanceRepository{db: db}
}

// Create inserts a new maintenance request.
func (r *MaintenanceRepository) Create(ctx context.Context, request *models.MaintenanceRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	request.CreatedAt = now
	request.UpdatedAt = now
	const query = `INSERT INTO maintenance_requests
	(id, hostel_id, room_id, category, status, title, description, reported_by, assigned_to,
	 estimated_cost, actual_cost, approved_by, approved_at, completed_at, completion_notes,
	 reject_reason, created_at, updated_at)
	VALUES (:id, :hostel_id, :room_id, :category, :status, :title, :description, :reported_by, :assigned_to,
	 :estimated_cost, :actual_cost, :approved_by, :approved_at, :completed_at, :completion_notes,
	 :reject_reason, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create maintenance request: %w", err)
	}
	return nil
}

// GetByID returns one request or sql.ErrNoRows.
func (r *MaintenanceRepository) GetByID(ctx context.Context, id string) (*models.MaintenanceRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM maintenance_requests WHERE id = $1", maintenanceColumns)
	var request models.MaintenanceRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// List returns matching requests plus the total count.
func (r *MaintenanceRepository) List(ctx context.Context, filter models.MaintenanceFilter) ([]models.MaintenanceRequest, int, error) {
	where := []string{"hostel_id = $1"}
	args := []interface{}{filter.HostelID}
	if filter.RoomID != "" {
		where = append(where, fmt.Sprintf("room_id = $%d", len(args)+1))
		args = append(args, filter.RoomID)
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
	if filter.ReportedBy != "" {
		where = append(where, fmt.Sprintf("reported_by = $%d", len(args)+1))
		args = append(args, filter.ReportedBy)
	}
	if filter.AssignedTo != "" {
		where = append(where, fmt.Sprintf("assigned_to = $%d", len(args)+1))
		args = append(args, filter.AssignedTo)
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

	query := fmt.Sprintf(`SELECT %s FROM maintenance_requests WHERE %s
	ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		maintenanceColumns, whereClause, pageSize, (page-1)*pageSize)
	var requests []models.MaintenanceRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list maintenance requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM maintenance_requests WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count maintenance requests: %w", err)
	}
	return requests, total, nil
}

// Update rewrites the mutable descriptive fields.
func (r *MaintenanceRepository) Update(ctx context.Context, request *models.MaintenanceRequest) error {
	request.UpdatedAt = time.Now().UTC()
	const query = `UPDATE maintenance_requests SET
	    room_id = :room_id, category = :category, title = :title, description = :description,
	    assigned_to = :assigned_to, estimated_cost = :estimated_cost, actual_cost = :actual_cost,
	    completion_notes = :completion_notes, updated_at = :updated_at
	WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, request)
	if err != nil {
		return fmt.Errorf("update maintenance request: %w", err)
	}
	return requireRows(result)
}

// MaintenanceTransitionParams carry one status change with its side fields.
type MaintenanceTransitionParams struct {
	ID              string
	From            models.MaintenanceStatus
	To              models.MaintenanceStatus
	ActorID         string
	RejectReason    *string
	ActualCost      *float64
	CompletionNotes *string
}

// Transition applies a status change guarded by the current status, filling
// approval and completion columns for the relevant targets.
func (r *MaintenanceRepository) Transition(ctx context.Context, params MaintenanceTransitionParams) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, `UPDATE maintenance_requests SET
	    status = $1,
	    approved_by = CASE WHEN $1 = 'APPROVED' THEN $2 ELSE approved_by END,
	    approved_at = CASE WHEN $1 = 'APPROVED' THEN $3 ELSE approved_at END,
	    completed_at = CASE WHEN $1 = 'COMPLETED' THEN $3 ELSE completed_at END,
	    reject_reason = COALESCE($4, reject_reason),
	    actual_cost = COALESCE($5, actual_cost),
	    completion_notes = COALESCE($6, completion_notes),
	    updated_at = $3
	WHERE id = $7 AND status = $8`,
		params.To, params.ActorID, now, params.RejectReason, params.ActualCost,
		params.CompletionNotes, params.ID, params.From)
	if err != nil {
		return fmt.Errorf("transition maintenance request: %w", err)
	}
	return requireRows(result)
}

// CostSummary aggregates costs per category over a window.
func (r *MaintenanceRepository) CostSummary(ctx context.Context, hostelID string, from, to time.Time) ([]models.MaintenanceCostSummary, error) {
	const query = `SELECT category,
	    COUNT(*) AS request_count,
	    COALESCE(SUM(estimated_cost), 0) AS estimated_total,
	    COALESCE(SUM(actual_cost), 0) AS actual_total
	FROM maintenance_requests
	WHERE hostel_id = $1 AND created_at >= $2 AND created_at < $3
	GROUP BY category ORDER BY category`
	var summary []models.MaintenanceCostSummary
	if err := r.db.SelectContext(ctx, &summary, query, hostelID, from, to); err != nil {
		return nil, fmt.Errorf("maintenance cost summary: %w", err)
	}
	return summary, nil
}

// CreatePreventive inserts a recurring maintenance task.
func (r *MaintenanceRepository) CreatePreventive(ctx context.Context, schedule *models.PreventiveSchedule) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	schedule.CreatedAt = now
	schedule.UpdatedAt = now
	const query = `INSERT INTO preventive_schedules
	(id, hostel_id, category, title, description, recurrence_pattern, next_due_at, active, created_by, created_at, updated_at)
	VALUES (:id, :hostel_id, :category, :title, :description, :recurrence_pattern, :next_due_at, :active, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("create preventive schedule: %w", err)
	}
	return nil
}

// ListPreventive returns the hostel's preventive schedules.
func (r *MaintenanceRepository) ListPreventive(ctx context.Context, hostelID string, activeOnly bool) ([]models.PreventiveSchedule, error) {
	query := `SELECT id, hostel_id, category, title, description, recurrence_pattern, next_due_at, active,
       created_by, created_at, updated_at
	FROM preventive_schedules WHERE hostel_id = $1`
	if activeOnly {
		query += " AND active"
	}
	query += " ORDER BY next_due_at"
	var schedules []models.PreventiveSchedule
	if err := r.db.SelectContext(ctx, &schedules, query, hostelID); err != nil {
		return nil, fmt.Errorf("list preventive schedules: %w", err)
	}
	return schedules, nil
}

// ListPreventiveDue returns active schedules due at or before now.
func (r *MaintenanceRepository) ListPreventiveDue(ctx context.Context, now time.Time, limit int) ([]models.PreventiveSchedule, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT id, hostel_id, category, title, description, recurrence_pattern, next_due_at,
       active, created_by, created_at, updated_at
	FROM preventive_schedules WHERE active AND next_due_at <= $1
	ORDER BY next_due_at LIMIT %d`, limit)
	var schedules []models.PreventiveSchedule
	if err := r.db.SelectContext(ctx, &schedules, query, now); err != nil {
		return nil, fmt.Errorf("list due preventive schedules: %w", err)
	}
	return schedules, nil
}

// AdvancePreventive moves the schedule to its next due time.
func (r *MaintenanceRepository) AdvancePreventive(ctx context.Context, id string, nextDueAt time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE preventive_schedules
	SET next_due_at = $1, updated_at = $2 WHERE id = $3 AND active`,
		nextDueAt, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("advance preventive schedule: %w", err)
	}
	return requireRows(result)
}

// SetPreventiveActive toggles a schedule on or off.
func (r *MaintenanceRepository) SetPreventiveActive(ctx context.Context, id string, active bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE preventive_schedules
	SET active = $1, updated_at = $2 WHERE id = $3`, active, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("toggle preventive schedule: %w", err)
	}
	return requireRows(result)
}
