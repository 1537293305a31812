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

const approvalColumns = `id, announcement_id, hostel_id, status, requested_by, preferred_approver, is_urgent,
       notes, decided_by, decided_at, rejection_reason, allow_resubmission, auto_publish, requested_at`

// ApprovalRepository persists announcement approval workflow rows.
type ApprovalRepository struct {
	db *sqlx.DB
}

// NewApprovalRepository constructs the repository.
func NewApprovalRepository(db *sqlx.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

// Create inserts a new approval request.
func (r *ApprovalRepository) Create(ctx context.Context, request *models.ApprovalRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.Status == "" {
		request.Status = models.ApprovalStatusPending
	}
	if request.RequestedAt.IsZero() {
		request.RequestedAt = time.Now().UTC()
	}
	const query = `INSERT INTO approval_requests
	(id, announcement_id, hostel_id, status, requested_by, preferred_approver, is_urgent, notes,
	 decided_by, decided_at, rejection_reason, allow_resubmission, auto_publish, requested_at)
	VALUES (:id, :announcement_id, :hostel_id, :status, :requested_by, :preferred_approver, :is_urgent, :notes,
	 :decided_by, :decided_at, :rejection_reason, :allow_resubmission, :auto_publish, :requested_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create approval request: %w", err)
	}
	return nil
}

// GetByID fetches an approval request by identifier.
func (r *ApprovalRepository) GetByID(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM approval_requests WHERE id = $1", approvalColumns)
	var request models.ApprovalRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// GetPendingByAnnouncement returns the open approval request for an announcement, if any.
func (r *ApprovalRepository) GetPendingByAnnouncement(ctx context.Context, announcementID string) (*models.ApprovalRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM approval_requests
	WHERE announcement_id = $1 AND status = $2 ORDER BY requested_at DESC LIMIT 1`, approvalColumns)
	var request models.ApprovalRequest
	if err := r.db.GetContext(ctx, &request, query, announcementID, models.ApprovalStatusPending); err != nil {
		return nil, err
	}
	return &request, nil
}

// List returns approval requests matching the filter (newest first).
func (r *ApprovalRepository) List(ctx context.Context, filter models.ApprovalFilter) ([]models.ApprovalRequest, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.HostelID != "" {
		where = append(where, fmt.Sprintf("hostel_id = $%d", len(args)+1))
		args = append(args, filter.HostelID)
	}
	if filter.AnnouncementID != "" {
		where = append(where, fmt.Sprintf("announcement_id = $%d", len(args)+1))
		args = append(args, filter.AnnouncementID)
	}
	if len(filter.Status) > 0 {
		values := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			values[i] = string(s)
		}
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(values))
	}
	if filter.RequestedBy != "" {
		where = append(where, fmt.Sprintf("requested_by = $%d", len(args)+1))
		args = append(args, filter.RequestedBy)
	}
	if filter.UrgentOnly {
		where = append(where, "is_urgent")
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

	query := fmt.Sprintf(`SELECT %s FROM approval_requests WHERE %s
ORDER BY is_urgent DESC, requested_at ASC
LIMIT %d OFFSET %d`, approvalColumns, whereClause, size, offset)
	var requests []models.ApprovalRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list approval requests: %w", err)
	}
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM approval_requests WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count approval requests: %w", err)
	}
	return requests, total, nil
}

// ListByAnnouncement returns the full approval history for an announcement.
func (r *ApprovalRepository) ListByAnnouncement(ctx context.Context, announcementID string) ([]models.ApprovalRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM approval_requests WHERE announcement_id = $1 ORDER BY requested_at DESC", approvalColumns)
	var requests []models.ApprovalRequest
	if err := r.db.SelectContext(ctx, &requests, query, announcementID); err != nil {
		return nil, fmt.Errorf("list approval history: %w", err)
	}
	return requests, nil
}

// DecisionParams groups the mutable decision columns.
type DecisionParams struct {
	ID                string
	Status            models.ApprovalStatus
	DecidedBy         string
	DecidedAt         time.Time
	RejectionReason   *string
	AllowResubmission bool
}

// RecordDecision persists the reviewer outcome. The pending-status guard in
// the WHERE clause makes racing decisions lose with sql.ErrNoRows.
func (r *ApprovalRepository) RecordDecision(ctx context.Context, params DecisionParams) error {
	result, err := r.db.ExecContext(ctx, `UPDATE approval_requests
	SET status = $1, decided_by = $2, decided_at = $3, rejection_reason = $4, allow_resubmission = $5
	WHERE id = $6 AND status = $7`,
		params.Status, params.DecidedBy, params.DecidedAt, params.RejectionReason, params.AllowResubmission,
		params.ID, models.ApprovalStatusPending)
	if err != nil {
		return fmt.Errorf("record approval decision: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check approval decision rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
