package models

import "time"

// ReadReceipt records a student reading an announcement. One row per
// (announcement, student); repeated submissions refresh the metadata.
type ReadReceipt struct {
	ID                 string    `db:"id" json:"id"`
	AnnouncementID     string    `db:"announcement_id" json:"announcement_id"`
	StudentID          string    `db:"student_id" json:"student_id"`
	ReadAt             time.Time `db:"read_at" json:"read_at"`
	ReadingTimeSeconds *int      `db:"reading_time_seconds" json:"reading_time_seconds,omitempty"`
	ScrollPercentage   *int      `db:"scroll_percentage" json:"scroll_percentage,omitempty"`
	DeviceType         *string   `db:"device_type" json:"device_type,omitempty"`
	SourceChannel      *string   `db:"source_channel" json:"source_channel,omitempty"`
}

// Acknowledgment records an explicit acknowledgment of an announcement.
type Acknowledgment struct {
	ID             string    `db:"id" json:"id"`
	AnnouncementID string    `db:"announcement_id" json:"announcement_id"`
	StudentID      string    `db:"student_id" json:"student_id"`
	AcknowledgedAt time.Time `db:"acknowledged_at" json:"acknowledged_at"`
	OnTime         bool      `db:"on_time" json:"on_time"`
	Note           *string   `db:"note" json:"note,omitempty"`
	ActionTaken    *string   `db:"action_taken" json:"action_taken,omitempty"`
}

// EngagementMetrics is a derived read-only view over receipts and acknowledgments.
type EngagementMetrics struct {
	AnnouncementID   string  `json:"announcement_id"`
	TotalRecipients  int     `json:"total_recipients"`
	ReadCount        int     `json:"read_count"`
	ReadRate         float64 `json:"read_rate"`
	AckCount         int     `json:"ack_count"`
	AckRate          float64 `json:"ack_rate"`
	OnTimeAckCount   int     `json:"on_time_ack_count"`
	AvgReadingTime   float64 `json:"avg_reading_time_seconds"`
	AvgScrollPercent float64 `json:"avg_scroll_percentage"`
}

// EngagementTrendPoint is one day of engagement activity.
type EngagementTrendPoint struct {
	Date      time.Time `db:"day" json:"date"`
	ReadCount int       `db:"read_count" json:"read_count"`
	AckCount  int       `db:"ack_count" json:"ack_count"`
}

// StudentEngagement summarises one student's engagement across announcements.
type StudentEngagement struct {
	StudentID          string  `json:"student_id"`
	AnnouncementsRead  int     `json:"announcements_read"`
	AnnouncementsAcked int     `json:"announcements_acked"`
	OnTimeAcks         int     `json:"on_time_acks"`
	AvgReadingTime     float64 `json:"avg_reading_time_seconds"`
}

// HostelEngagementAnalytics aggregates engagement over a hostel.
type HostelEngagementAnalytics struct {
	HostelID          string  `json:"hostel_id"`
	AnnouncementCount int     `json:"announcement_count"`
	TotalReads        int     `json:"total_reads"`
	TotalAcks         int     `json:"total_acks"`
	AvgReadRate       float64 `json:"avg_read_rate"`
	AvgAckRate        float64 `json:"avg_ack_rate"`
}
