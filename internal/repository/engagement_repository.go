package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/hostelhub/residence-api/internal/models"
)

// EngagementRepository persists read receipts and acknowledgments and serves
// the aggregate queries behind engagement analytics.
type EngagementRepository struct {
	db *sqlx.DB
}

// NewEngagementRepository constructs the repository.
func NewEngagementRepository(db *sqlx.DB) *EngagementRepository {
	return &EngagementRepository{db: db}
}

// UpsertReadReceipt records a read. Repeat reads keep the first read_at and
// refresh the telemetry columns, so read counts stay per-student unique.
// Returns true when the receipt was newly created; xmax = 0 only on the
// inserted row, so replays report false.
func (r *EngagementRepository) UpsertReadReceipt(ctx context.Context, receipt *models.ReadReceipt) (bool, error) {
	if receipt.ID == "" {
		receipt.ID = uuid.NewString()
	}
	if receipt.ReadAt.IsZero() {
		receipt.ReadAt = time.Now().UTC()
	}
	const query = `INSERT INTO read_receipts
	(id, announcement_id, student_id, read_at, reading_time_seconds, scroll_percentage, device_type, source_channel)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (announcement_id, student_id) DO UPDATE SET
	    reading_time_seconds = GREATEST(read_receipts.reading_time_seconds, EXCLUDED.reading_time_seconds),
	    scroll_percentage = GREATEST(read_receipts.scroll_percentage, EXCLUDED.scroll_percentage),
	    device_type = EXCLUDED.device_type,
	    source_channel = EXCLUDED.source_channel
	RETURNING (xmax = 0) AS created`
	var created bool
	err := r.db.GetContext(ctx, &created, query,
		receipt.ID, receipt.AnnouncementID, receipt.StudentID, receipt.ReadAt,
		receipt.ReadingTimeSeconds, receipt.ScrollPercentage, receipt.DeviceType, receipt.SourceChannel)
	if err != nil {
		return false, fmt.Errorf("upsert read receipt: %w", err)
	}
	return created, nil
}

// GetReadReceipt returns the receipt for one student, or sql.ErrNoRows.
func (r *EngagementRepository) GetReadReceipt(ctx context.Context, announcementID, studentID string) (*models.ReadReceipt, error) {
	const query = `SELECT id, announcement_id, student_id, read_at, reading_time_seconds, scroll_percentage,
       device_type, source_channel
	FROM read_receipts WHERE announcement_id = $1 AND student_id = $2`
	var receipt models.ReadReceipt
	if err := r.db.GetContext(ctx, &receipt, query, announcementID, studentID); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// UpsertAcknowledgment records an acknowledgment once per student. Repeat
// calls keep the original acknowledged_at and on_time flag.
func (r *EngagementRepository) UpsertAcknowledgment(ctx context.Context, ack *models.Acknowledgment) error {
	if ack.ID == "" {
		ack.ID = uuid.NewString()
	}
	if ack.AcknowledgedAt.IsZero() {
		ack.AcknowledgedAt = time.Now().UTC()
	}
	const query = `INSERT INTO acknowledgments
	(id, announcement_id, student_id, acknowledged_at, on_time, note, action_taken)
	VALUES (:id, :announcement_id, :student_id, :acknowledged_at, :on_time, :note, :action_taken)
	ON CONFLICT (announcement_id, student_id) DO UPDATE SET
	    note = COALESCE(EXCLUDED.note, acknowledgments.note),
	    action_taken = EXCLUDED.action_taken`
	if _, err := r.db.NamedExecContext(ctx, query, ack); err != nil {
		return fmt.Errorf("upsert acknowledgment: %w", err)
	}
	return nil
}

// ListUnacknowledged returns recipients who have not acknowledged yet.
func (r *EngagementRepository) ListUnacknowledged(ctx context.Context, announcementID string, recipients []string) ([]string, error) {
	const query = `SELECT a.student_id FROM acknowledgments a WHERE a.announcement_id = $1`
	var acked []string
	if err := r.db.SelectContext(ctx, &acked, query, announcementID); err != nil {
		return nil, fmt.Errorf("list acknowledgments: %w", err)
	}
	seen := make(map[string]struct{}, len(acked))
	for _, id := range acked {
		seen[id] = struct{}{}
	}
	missing := make([]string, 0, len(recipients))
	for _, id := range recipients {
		if _, ok := seen[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// Metrics computes per-announcement engagement counters.
func (r *EngagementRepository) Metrics(ctx context.Context, announcementID string, totalRecipients int) (*models.EngagementMetrics, error) {
	const query = `SELECT
	    (SELECT COUNT(*) FROM read_receipts WHERE announcement_id = $1) AS read_count,
	    (SELECT COALESCE(AVG(reading_time_seconds), 0) FROM read_receipts WHERE announcement_id = $1) AS avg_reading_time,
	    (SELECT COALESCE(AVG(scroll_percentage), 0) FROM read_receipts WHERE announcement_id = $1) AS avg_scroll,
	    (SELECT COUNT(*) FROM acknowledgments WHERE announcement_id = $1) AS ack_count,
	    (SELECT COUNT(*) FROM acknowledgments WHERE announcement_id = $1 AND on_time) AS on_time_ack_count`
	var row struct {
		ReadCount      int     `db:"read_count"`
		AvgReadingTime float64 `db:"avg_reading_time"`
		AvgScroll      float64 `db:"avg_scroll"`
		AckCount       int     `db:"ack_count"`
		OnTimeAckCount int     `db:"on_time_ack_count"`
	}
	if err := r.db.GetContext(ctx, &row, query, announcementID); err != nil {
		return nil, fmt.Errorf("engagement metrics: %w", err)
	}
	metrics := &models.EngagementMetrics{
		AnnouncementID:   announcementID,
		TotalRecipients:  totalRecipients,
		ReadCount:        row.ReadCount,
		AckCount:         row.AckCount,
		OnTimeAckCount:   row.OnTimeAckCount,
		AvgReadingTime:   row.AvgReadingTime,
		AvgScrollPercent: row.AvgScroll,
	}
	if totalRecipients > 0 {
		metrics.ReadRate = float64(row.ReadCount) / float64(totalRecipients) * 100
		metrics.AckRate = float64(row.AckCount) / float64(totalRecipients) * 100
	}
	return metrics, nil
}

// Trend buckets reads and acknowledgments per day since publication.
func (r *EngagementRepository) Trend(ctx context.Context, announcementID string, since time.Time) ([]models.EngagementTrendPoint, error) {
	const query = `SELECT day,
	    SUM(reads) AS read_count,
	    SUM(acks) AS ack_count
	FROM (
	    SELECT date_trunc('day', read_at) AS day, 1 AS reads, 0 AS acks
	    FROM read_receipts WHERE announcement_id = $1 AND read_at >= $2
	    UNION ALL
	    SELECT date_trunc('day', acknowledged_at) AS day, 0 AS reads, 1 AS acks
	    FROM acknowledgments WHERE announcement_id = $1 AND acknowledged_at >= $2
	) events
	GROUP BY day ORDER BY day`
	var points []models.EngagementTrendPoint
	if err := r.db.SelectContext(ctx, &points, query, announcementID, since); err != nil {
		return nil, fmt.Errorf("engagement trend: %w", err)
	}
	return points, nil
}

// StudentEngagement summarises one student's reading history in a hostel.
func (r *EngagementRepository) StudentEngagement(ctx context.Context, hostelID, studentID string, since time.Time) (*models.StudentEngagement, error) {
	const query = `SELECT
	    COUNT(DISTINCT rr.announcement_id) AS reads,
	    COUNT(DISTINCT ak.announcement_id) AS acks,
	    COUNT(DISTINCT ak.announcement_id) FILTER (WHERE ak.on_time) AS on_time_acks,
	    COALESCE(AVG(rr.reading_time_seconds), 0) AS avg_reading_time
	FROM announcements a
	LEFT JOIN read_receipts rr ON rr.announcement_id = a.id AND rr.student_id = $2
	LEFT JOIN acknowledgments ak ON ak.announcement_id = a.id AND ak.student_id = $2
	WHERE a.hostel_id = $1 AND a.status IN ('PUBLISHED', 'ARCHIVED') AND a.published_at >= $3`
	var row struct {
		Reads          int     `db:"reads"`
		Acks           int     `db:"acks"`
		OnTimeAcks     int     `db:"on_time_acks"`
		AvgReadingTime float64 `db:"avg_reading_time"`
	}
	if err := r.db.GetContext(ctx, &row, query, hostelID, studentID, since); err != nil {
		return nil, fmt.Errorf("student engagement: %w", err)
	}
	return &models.StudentEngagement{
		StudentID:          studentID,
		AnnouncementsRead:  row.Reads,
		AnnouncementsAcked: row.Acks,
		OnTimeAcks:         row.OnTimeAcks,
		AvgReadingTime:     row.AvgReadingTime,
	}, nil
}

// HostelAnalytics aggregates engagement across a hostel's published
// announcements in a window. Rates average the per-announcement rates so a
// single large announcement cannot dominate the picture.
func (r *EngagementRepository) HostelAnalytics(ctx context.Context, hostelID string, from, to time.Time) (*models.HostelEngagementAnalytics, error) {
	const query = `SELECT
	    COUNT(*) AS announcement_count,
	    COALESCE(SUM(reads), 0) AS total_reads,
	    COALESCE(SUM(acks), 0) AS total_acks,
	    COALESCE(AVG(CASE WHEN recipients > 0 THEN reads::float / recipients * 100 END), 0) AS avg_read_rate,
	    COALESCE(AVG(CASE WHEN recipients > 0 THEN acks::float / recipients * 100 END), 0) AS avg_ack_rate
	FROM (
	    SELECT a.id,
	        (SELECT COUNT(*) FROM read_receipts rr WHERE rr.announcement_id = a.id) AS reads,
	        (SELECT COUNT(*) FROM acknowledgments ak WHERE ak.announcement_id = a.id) AS acks,
	        COALESCE(ds.total_recipients, 0) AS recipients
	    FROM announcements a
	    LEFT JOIN delivery_statuses ds ON ds.announcement_id = a.id
	    WHERE a.hostel_id = $1 AND a.status IN ('PUBLISHED', 'ARCHIVED')
	      AND a.published_at >= $2 AND a.published_at < $3
	) per_announcement`
	var row struct {
		AnnouncementCount int     `db:"announcement_count"`
		TotalReads        int     `db:"total_reads"`
		TotalAcks         int     `db:"total_acks"`
		AvgReadRate       float64 `db:"avg_read_rate"`
		AvgAckRate        float64 `db:"avg_ack_rate"`
	}
	if err := r.db.GetContext(ctx, &row, query, hostelID, from, to); err != nil {
		return nil, fmt.Errorf("hostel analytics: %w", err)
	}
	return &models.HostelEngagementAnalytics{
		HostelID:          hostelID,
		AnnouncementCount: row.AnnouncementCount,
		TotalReads:        row.TotalReads,
		TotalAcks:         row.TotalAcks,
		AvgReadRate:       row.AvgReadRate,
		AvgAckRate:        row.AvgAckRate,
	}, nil
}
