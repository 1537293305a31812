package dto

import (
	"time"

	"github.com/hostelhub/residence-api/internal/models"
)

// CreateScheduleRequest schedules an announcement for future publication.
type CreateScheduleRequest struct {
	ScheduledPublishAt time.Time                 `json:"scheduledPublishAt" validate:"required"`
	AutoExpire         bool                      `json:"autoExpire"`
	ExpireAfterHours   *int                      `json:"expireAfterHours" validate:"omitempty,min=1,max=720"`
	IsRecurring        bool                      `json:"isRecurring"`
	RecurrencePattern  *models.RecurrencePattern `json:"recurrencePattern" validate:"omitempty,oneof=DAILY WEEKLY BIWEEKLY MONTHLY"`
	Weekdays           []int64                   `json:"weekdays" validate:"omitempty,max=7,dive,min=0,max=6"`
	EndDate            *time.Time                `json:"endDate"`
	MaxOccurrences     *int                      `json:"maxOccurrences" validate:"omitempty,min=1,max=365"`
}

// RescheduleRequest moves an active schedule to a new time.
type RescheduleRequest struct {
	ScheduledPublishAt time.Time `json:"scheduledPublishAt" validate:"required"`
}

// CancelScheduleRequest cancels an active schedule with a reason.
type CancelScheduleRequest struct {
	Reason string `json:"reason" validate:"required,min=10,max=500"`
}

// ScheduleQuery mirrors schedule listing filters.
type ScheduleQuery struct {
	Status    []models.ScheduleStatus
	DueBefore *time.Time
	Page      int
	PageSize  int
}
