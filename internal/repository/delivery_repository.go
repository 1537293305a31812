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

const deliveryColumns = `id, announcement_id, state, strategy, batch_size, current_batch, total_batches,
       completed_batches, total_recipients, pause_reason, auto_resume_at, max_retries,
       retry_delay_minutes, started_at, completed_at, created_at, updated_at`

// DeliveryRepository persists delivery progress and failure records.
type DeliveryRepository struct {
	db *sqlx.DB
}

// NewDeliveryRepository constructs the repository.
func NewDeliveryRepository(db *sqlx.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

// Create inserts the delivery status row together with zeroed channel
// counters in one transaction.
func (r *DeliveryRepository) Create(ctx context.Context, status *models.DeliveryStatus, channels []models.DeliveryChannel) error {
	if status.ID == "" {
		status.ID = uuid.NewString()
	}
	if status.State == "" {
		status.State = models.DeliveryStatePending
	}
	now := time.Now().UTC()
	if status.CreatedAt.IsZero() {
		status.CreatedAt = now
	}
	status.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delivery create: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO delivery_statuses
	(id, announcement_id, state, strategy, batch_size, current_batch, total_batches, completed_batches,
	 total_recipients, pause_reason, auto_resume_at, max_retries, retry_delay_minutes, started_at,
	 completed_at, created_at, updated_at)
	VALUES (:id, :announcement_id, :state, :strategy, :batch_size, :current_batch, :total_batches, :completed_batches,
	 :total_recipients, :pause_reason, :auto_resume_at, :max_retries, :retry_delay_minutes, :started_at,
	 :completed_at, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, status); err != nil {
		return fmt.Errorf("create delivery status: %w", err)
	}

	for _, channel := range channels {
		if _, err := tx.ExecContext(ctx, `INSERT INTO delivery_channel_stats
		(id, delivery_id, channel, sent, delivered, failed, bounced, pending)
		VALUES ($1, $2, $3, 0, 0, 0, 0, $4)`,
			uuid.NewString(), status.ID, channel, status.TotalRecipients); err != nil {
			return fmt.Errorf("create channel stats: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delivery create: %w", err)
	}
	return nil
}

// GetByAnnouncement loads the delivery status with its channel counters.
func (r *DeliveryRepository) GetByAnnouncement(ctx context.Context, announcementID string) (*models.DeliveryStatus, error) {
	query := fmt.Sprintf("SELECT %s FROM delivery_statuses WHERE announcement_id = $1", deliveryColumns)
	var status models.DeliveryStatus
	if err := r.db.GetContext(ctx, &status, query, announcementID); err != nil {
		return nil, err
	}
	const channelQuery = `SELECT id, delivery_id, channel, sent, delivered, failed, bounced, pending
	FROM delivery_channel_stats WHERE delivery_id = $1 ORDER BY channel`
	if err := r.db.SelectContext(ctx, &status.Channels, channelQuery, status.ID); err != nil {
		return nil, fmt.Errorf("load channel stats: %w", err)
	}
	return &status, nil
}

// UpdateState moves the delivery to a new state with a prior-state guard.
func (r *DeliveryRepository) UpdateState(ctx context.Context, id string, from []models.DeliveryState, to models.DeliveryState) error {
	values := make([]string, len(from))
	for i, s := range from {
		values[i] = string(s)
	}
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, `UPDATE delivery_statuses
	SET state = $1,
	    started_at = CASE WHEN $1 = 'PROCESSING' AND started_at IS NULL THEN $2 ELSE started_at END,
	    completed_at = CASE WHEN $1 IN ('COMPLETED', 'CANCELLED') THEN $2 ELSE completed_at END,
	    updated_at = $2
	WHERE id = $3 AND state = ANY($4)`,
		to, now, id, pq.Array(values))
	if err != nil {
		return fmt.Errorf("update delivery state: %w", err)
	}
	return requireRows(result)
}

// Pause marks the delivery paused with the operator reason.
func (r *DeliveryRepository) Pause(ctx context.Context, id, reason string, autoResumeAt *time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE delivery_statuses
	SET state = $1, pause_reason = $2, auto_resume_at = $3, updated_at = $4
	WHERE id = $5 AND state IN ($6, $7)`,
		models.DeliveryStatePaused, reason, autoResumeAt, time.Now().UTC(), id,
		models.DeliveryStatePending, models.DeliveryStateProcessing)
	if err != nil {
		return fmt.Errorf("pause delivery: %w", err)
	}
	return requireRows(result)
}

// Resume clears the pause, optionally rewinding the current batch.
func (r *DeliveryRepository) Resume(ctx context.Context, id string, restartBatch bool) error {
	query := `UPDATE delivery_statuses
	SET state = $1, pause_reason = NULL, auto_resume_at = NULL, updated_at = $2
	WHERE id = $3 AND state = $4`
	if restartBatch {
		query = `UPDATE delivery_statuses
	SET state = $1, pause_reason = NULL, auto_resume_at = NULL, updated_at = $2,
	    current_batch = GREATEST(completed_batches, 0)
	WHERE id = $3 AND state = $4`
	}
	result, err := r.db.ExecContext(ctx, query,
		models.DeliveryStateProcessing, time.Now().UTC(), id, models.DeliveryStatePaused)
	if err != nil {
		return fmt.Errorf("resume delivery: %w", err)
	}
	return requireRows(result)
}

// AdvanceBatch records one processed batch and its position.
func (r *DeliveryRepository) AdvanceBatch(ctx context.Context, id string, currentBatch, completedBatches int) error {
	result, err := r.db.ExecContext(ctx, `UPDATE delivery_statuses
	SET current_batch = $1, completed_batches = $2, updated_at = $3
	WHERE id = $4`,
		currentBatch, completedBatches, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("advance delivery batch: %w", err)
	}
	return requireRows(result)
}

// ChannelDelta captures counter increments from one send attempt batch.
type ChannelDelta struct {
	Channel   models.DeliveryChannel
	Sent      int
	Delivered int
	Failed    int
	Bounced   int
}

// ApplyChannelDeltas increments channel counters atomically. Pending is
// decremented by the progress made on the channel.
func (r *DeliveryRepository) ApplyChannelDeltas(ctx context.Context, deliveryID string, deltas []ChannelDelta) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin channel deltas: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, d := range deltas {
		if _, err := tx.ExecContext(ctx, `UPDATE delivery_channel_stats
		SET sent = sent + $1, delivered = delivered + $2, failed = failed + $3, bounced = bounced + $4,
		    pending = GREATEST(pending - $1, 0)
		WHERE delivery_id = $5 AND channel = $6`,
			d.Sent, d.Delivered, d.Failed, d.Bounced, deliveryID, d.Channel); err != nil {
			return fmt.Errorf("apply channel delta: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit channel deltas: %w", err)
	}
	return nil
}

// RecordFailure stores a failed delivery for later retry.
func (r *DeliveryRepository) RecordFailure(ctx context.Context, failure *models.FailedDelivery) error {
	if failure.ID == "" {
		failure.ID = uuid.NewString()
	}
	if failure.FailedAt.IsZero() {
		failure.FailedAt = time.Now().UTC()
	}
	const query = `INSERT INTO failed_deliveries
	(id, delivery_id, announcement_id, student_id, channel, reason, error_code, retry_count, resolved, failed_at)
	VALUES (:id, :delivery_id, :announcement_id, :student_id, :channel, :reason, :error_code, :retry_count, :resolved, :failed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, failure); err != nil {
		return fmt.Errorf("record failed delivery: %w", err)
	}
	return nil
}

// FailureFilter selects which failures to retry or report.
type FailureFilter struct {
	AnnouncementID string
	StudentIDs     []string
	Channels       []models.DeliveryChannel
	UnresolvedOnly bool
	Limit          int
}

// ListFailures returns failure rows for a report or retry pass plus the
// total matching count.
func (r *DeliveryRepository) ListFailures(ctx context.Context, filter FailureFilter) ([]models.FailedDelivery, int, error) {
	where := []string{"announcement_id = $1"}
	args := []interface{}{filter.AnnouncementID}
	if len(filter.StudentIDs) > 0 {
		where = append(where, fmt.Sprintf("student_id = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(filter.StudentIDs))
	}
	if len(filter.Channels) > 0 {
		values := make([]string, len(filter.Channels))
		for i, c := range filter.Channels {
			values[i] = string(c)
		}
		where = append(where, fmt.Sprintf("channel = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(values))
	}
	if filter.UnresolvedOnly {
		where = append(where, "NOT resolved")
	}
	whereClause := joinAnd(where)

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT id, delivery_id, announcement_id, student_id, channel, reason, error_code,
       retry_count, resolved, failed_at
	FROM failed_deliveries WHERE %s ORDER BY failed_at DESC LIMIT %d`, whereClause, limit)
	var failures []models.FailedDelivery
	if err := r.db.SelectContext(ctx, &failures, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list failed deliveries: %w", err)
	}
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM failed_deliveries WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count failed deliveries: %w", err)
	}
	return failures, total, nil
}

// MarkFailureRetried bumps the retry counter and resolves the failure when
// the retry went through.
func (r *DeliveryRepository) MarkFailureRetried(ctx context.Context, id string, resolved bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE failed_deliveries
	SET retry_count = retry_count + 1, resolved = $1 WHERE id = $2`, resolved, id)
	if err != nil {
		return fmt.Errorf("mark failure retried: %w", err)
	}
	return requireRows(result)
}

// ListAutoResumable returns paused deliveries whose auto-resume time passed.
func (r *DeliveryRepository) ListAutoResumable(ctx context.Context, now time.Time) ([]models.DeliveryStatus, error) {
	query := fmt.Sprintf(`SELECT %s FROM delivery_statuses
	WHERE state = $1 AND auto_resume_at IS NOT NULL AND auto_resume_at <= $2`, deliveryColumns)
	var statuses []models.DeliveryStatus
	if err := r.db.SelectContext(ctx, &statuses, query, models.DeliveryStatePaused, now); err != nil {
		return nil, fmt.Errorf("list auto-resumable deliveries: %w", err)
	}
	return statuses, nil
}

func joinAnd(conditions []string) string {
	out := conditions[0]
	for _, c := range conditions[1:] {
		out += " AND " + c
	}
	return out
}
