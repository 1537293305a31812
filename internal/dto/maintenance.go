package dto

import (
	"time"

	"github.com/hostelhub/residence-api/internal/models"
)

// CreateMaintenanceRequest reports a new maintenance issue.
type CreateMaintenanceRequest struct {
	RoomID        *string                    `json:"roomId" validate:"omitempty,uuid"`
	Category      models.MaintenanceCategory `json:"category" validate:"required,oneof=ELECTRICAL PLUMBING CARPENTRY CLEANING OTHER"`
	Title         string                     `json:"title" validate:"required,min=5,max=255"`
	Description   string                     `json:"description" validate:"required,min=10,max=2000"`
	EstimatedCost *float64                   `json:"estimatedCost" validate:"omitempty,min=0"`
}

// UpdateMaintenanceRequest edits a pending request.
type UpdateMaintenanceRequest struct {
	RoomID        *string                     `json:"roomId" validate:"omitempty,uuid"`
	Category      *models.MaintenanceCategory `json:"category" validate:"omitempty,oneof=ELECTRICAL PLUMBING CARPENTRY CLEANING OTHER"`
	Title         *string                     `json:"title" validate:"omitempty,min=5,max=255"`
	Description   *string                     `json:"description" validate:"omitempty,min=10,max=2000"`
	EstimatedCost *float64                    `json:"estimatedCost" validate:"omitempty,min=0"`
}

// DecideMaintenanceRequest approves or rejects a pending request.
type DecideMaintenanceRequest struct {
	Approve      bool    `json:"approve"`
	RejectReason *string `json:"rejectReason" validate:"omitempty,min=5,max=1000"`
}

// AssignMaintenanceRequest assigns an approved request to staff.
type AssignMaintenanceRequest struct {
	AssignedTo string `json:"assignedTo" validate:"required,uuid"`
}

// CompleteMaintenanceRequest closes out an in-progress request.
type CompleteMaintenanceRequest struct {
	ActualCost      *float64 `json:"actualCost" validate:"omitempty,min=0"`
	CompletionNotes *string  `json:"completionNotes" validate:"omitempty,max=2000"`
}

// CreatePreventiveRequest defines a recurring maintenance task.
type CreatePreventiveRequest struct {
	Category          models.MaintenanceCategory `json:"category" validate:"required,oneof=ELECTRICAL PLUMBING CARPENTRY CLEANING OTHER"`
	Title             string                     `json:"title" validate:"required,min=5,max=255"`
	Description       string                     `json:"description" validate:"required,min=10,max=2000"`
	RecurrencePattern models.RecurrencePattern   `json:"recurrencePattern" validate:"required,oneof=DAILY WEEKLY BIWEEKLY MONTHLY"`
	FirstDueAt        time.Time                  `json:"firstDueAt" validate:"required"`
}
