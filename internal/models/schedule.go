package models

import (
	"time"

	"github.com/lib/pq"
)

// RecurrencePattern enumerates supported publication recurrences.
type RecurrencePattern string

const (
	RecurrenceDaily    RecurrencePattern = "DAILY"
	RecurrenceWeekly   RecurrencePattern = "WEEKLY"
	RecurrenceBiweekly RecurrencePattern = "BIWEEKLY"
	RecurrenceMonthly  RecurrencePattern = "MONTHLY"
)

// ScheduleStatus tracks the lifecycle of a publication schedule.
type ScheduleStatus string

const (
	ScheduleStatusActive    ScheduleStatus = "ACTIVE"
	ScheduleStatusCancelled ScheduleStatus = "CANCELLED"
	ScheduleStatusCompleted ScheduleStatus = "COMPLETED"
)

// Schedule holds publication timing for an announcement (1:1).
type Schedule struct {
	ID                   string             `db:"id" json:"id"`
	AnnouncementID       string             `db:"announcement_id" json:"announcement_id"`
	Status               ScheduleStatus     `db:"status" json:"status"`
	ScheduledPublishAt   time.Time          `db:"scheduled_publish_at" json:"scheduled_publish_at"`
	AutoExpire           bool               `db:"auto_expire" json:"auto_expire"`
	ExpireAfterHours     *int               `db:"expire_after_hours" json:"expire_after_hours,omitempty"`
	IsRecurring          bool               `db:"is_recurring" json:"is_recurring"`
	RecurrencePattern    *RecurrencePattern `db:"recurrence_pattern" json:"recurrence_pattern,omitempty"`
	Weekdays             pq.Int64Array      `db:"weekdays" json:"weekdays,omitempty"`
	EndDate              *time.Time         `db:"end_date" json:"end_date,omitempty"`
	MaxOccurrences       *int               `db:"max_occurrences" json:"max_occurrences,omitempty"`
	OccurrencesCompleted int                `db:"occurrences_completed" json:"occurrences_completed"`
	NextPublishAt        *time.Time         `db:"next_publish_at" json:"next_publish_at,omitempty"`
	CancelReason         *string            `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CreatedBy            string             `db:"created_by" json:"created_by"`
	CreatedAt            time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time          `db:"updated_at" json:"updated_at"`
}

// ScheduleFilter constrains listing of schedules.
type ScheduleFilter struct {
	HostelID      string
	Status        []ScheduleStatus
	RecurringOnly bool
	DueBefore     *time.Time
	Page          int
	PageSize      int
}
