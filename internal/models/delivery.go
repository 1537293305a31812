package models

import "time"

// DeliveryState is the overall delivery progress of an announcement.
type DeliveryState string

const (
	DeliveryStatePending    DeliveryState = "PENDING"
	DeliveryStateProcessing DeliveryState = "PROCESSING"
	DeliveryStateCompleted  DeliveryState = "COMPLETED"
	DeliveryStateFailed     DeliveryState = "FAILED"
	DeliveryStatePaused     DeliveryState = "PAUSED"
	DeliveryStateCancelled  DeliveryState = "CANCELLED"
)

// DeliveryChannel enumerates transport channels.
type DeliveryChannel string

const (
	ChannelEmail DeliveryChannel = "EMAIL"
	ChannelSMS   DeliveryChannel = "SMS"
	ChannelPush  DeliveryChannel = "PUSH"
	ChannelInApp DeliveryChannel = "IN_APP"
)

// DeliveryStrategy selects how recipients are worked through.
type DeliveryStrategy string

const (
	DeliveryStrategyImmediate DeliveryStrategy = "IMMEDIATE"
	DeliveryStrategyBatched   DeliveryStrategy = "BATCHED"
)

// ChannelStats accumulates per-channel delivery counters.
type ChannelStats struct {
	ID         string          `db:"id" json:"-"`
	DeliveryID string          `db:"delivery_id" json:"-"`
	Channel    DeliveryChannel `db:"channel" json:"channel"`
	Sent       int             `db:"sent" json:"sent"`
	Delivered  int             `db:"delivered" json:"delivered"`
	Failed     int             `db:"failed" json:"failed"`
	Bounced    int             `db:"bounced" json:"bounced"`
	Pending    int             `db:"pending" json:"pending"`
}

// DeliveryStatus is the 1:1 delivery progress row for an announcement.
type DeliveryStatus struct {
	ID                string           `db:"id" json:"id"`
	AnnouncementID    string           `db:"announcement_id" json:"announcement_id"`
	State             DeliveryState    `db:"state" json:"state"`
	Strategy          DeliveryStrategy `db:"strategy" json:"strategy"`
	BatchSize         *int             `db:"batch_size" json:"batch_size,omitempty"`
	CurrentBatch      int              `db:"current_batch" json:"current_batch"`
	TotalBatches      int              `db:"total_batches" json:"total_batches"`
	CompletedBatches  int              `db:"completed_batches" json:"completed_batches"`
	TotalRecipients   int              `db:"total_recipients" json:"total_recipients"`
	PauseReason       *string          `db:"pause_reason" json:"pause_reason,omitempty"`
	AutoResumeAt      *time.Time       `db:"auto_resume_at" json:"auto_resume_at,omitempty"`
	MaxRetries        int              `db:"max_retries" json:"max_retries"`
	RetryDelayMinutes int              `db:"retry_delay_minutes" json:"retry_delay_minutes"`
	StartedAt         *time.Time       `db:"started_at" json:"started_at,omitempty"`
	CompletedAt       *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt         time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time        `db:"updated_at" json:"updated_at"`

	Channels []ChannelStats `db:"-" json:"channels"`
}

// DeliveryRate returns the delivered percentage across channels, within [0,100].
func (d *DeliveryStatus) DeliveryRate() float64 {
	var sent, delivered int
	for _, ch := range d.Channels {
		sent += ch.Sent
		delivered += ch.Delivered
	}
	if sent == 0 {
		return 0
	}
	rate := float64(delivered) / float64(sent) * 100
	if rate > 100 {
		return 100
	}
	return rate
}

// FailedDelivery records a single failed send for later retry.
type FailedDelivery struct {
	ID             string          `db:"id" json:"id"`
	DeliveryID     string          `db:"delivery_id" json:"delivery_id"`
	AnnouncementID string          `db:"announcement_id" json:"announcement_id"`
	StudentID      string          `db:"student_id" json:"student_id"`
	Channel        DeliveryChannel `db:"channel" json:"channel"`
	Reason         string          `db:"reason" json:"reason"`
	ErrorCode      *string         `db:"error_code" json:"error_code,omitempty"`
	RetryCount     int             `db:"retry_count" json:"retry_count"`
	Resolved       bool            `db:"resolved" json:"resolved"`
	FailedAt       time.Time       `db:"failed_at" json:"failed_at"`
}

// RetryOutcome reports one re-sent failure.
type RetryOutcome struct {
	FailureID string          `json:"failure_id"`
	StudentID string          `json:"student_id"`
	Channel   DeliveryChannel `json:"channel"`
	Success   bool            `json:"success"`
	Error     string          `json:"error,omitempty"`
}

// RetrySummary aggregates a retry run over failed deliveries. Deferred runs
// report only the attempt count and the time the run fires.
type RetrySummary struct {
	Attempted    int            `json:"attempted"`
	SuccessCount int            `json:"success_count"`
	FailureCount int            `json:"failure_count"`
	Outcomes     []RetryOutcome `json:"outcomes"`
	Scheduled    bool           `json:"scheduled,omitempty"`
	RunAt        *time.Time     `json:"run_at,omitempty"`
}

// DeliveryReport aggregates delivery progress with an inline failure sample.
type DeliveryReport struct {
	Status        DeliveryStatus   `json:"status"`
	DeliveryRate  float64          `json:"delivery_rate"`
	Failures      []FailedDelivery `json:"failures"`
	TotalFailures int              `json:"total_failures"`
	HasMore       bool             `json:"has_more"`
}
