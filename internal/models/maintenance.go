package models

import "time"

// MaintenanceStatus captures the maintenance request lifecycle.
type MaintenanceStatus string

const (
	MaintenanceStatusPending    MaintenanceStatus = "PENDING"
	MaintenanceStatusApproved   MaintenanceStatus = "APPROVED"
	MaintenanceStatusInProgress MaintenanceStatus = "IN_PROGRESS"
	MaintenanceStatusCompleted  MaintenanceStatus = "COMPLETED"
	MaintenanceStatusRejected   MaintenanceStatus = "REJECTED"
	MaintenanceStatusCancelled  MaintenanceStatus = "CANCELLED"
)

// maintenanceTransitions is the legal transition table for requests.
var maintenanceTransitions = map[MaintenanceStatus][]MaintenanceStatus{
	MaintenanceStatusPending:    {MaintenanceStatusApproved, MaintenanceStatusRejected, MaintenanceStatusCancelled},
	MaintenanceStatusApproved:   {MaintenanceStatusInProgress, MaintenanceStatusCancelled},
	MaintenanceStatusInProgress: {MaintenanceStatusCompleted, MaintenanceStatusCancelled},
}

// CanTransition reports whether the status change is legal.
func (s MaintenanceStatus) CanTransition(to MaintenanceStatus) bool {
	for _, next := range maintenanceTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// MaintenanceCategory groups requests for cost reporting.
type MaintenanceCategory string

const (
	MaintenanceCategoryElectrical MaintenanceCategory = "ELECTRICAL"
	MaintenanceCategoryPlumbing   MaintenanceCategory = "PLUMBING"
	MaintenanceCategoryCarpentry  MaintenanceCategory = "CARPENTRY"
	MaintenanceCategoryCleaning   MaintenanceCategory = "CLEANING"
	MaintenanceCategoryOther      MaintenanceCategory = "OTHER"
)

// MaintenanceRequest is a reported issue with cost tracking.
type MaintenanceRequest struct {
	ID              string              `db:"id" json:"id"`
	HostelID        string              `db:"hostel_id" json:"hostel_id"`
	RoomID          *string             `db:"room_id" json:"room_id,omitempty"`
	Category        MaintenanceCategory `db:"category" json:"category"`
	Status          MaintenanceStatus   `db:"status" json:"status"`
	Title           string              `db:"title" json:"title"`
	Description     string              `db:"description" json:"description"`
	ReportedBy      string              `db:"reported_by" json:"reported_by"`
	AssignedTo      *string             `db:"assigned_to" json:"assigned_to,omitempty"`
	EstimatedCost   *float64            `db:"estimated_cost" json:"estimated_cost,omitempty"`
	ActualCost      *float64            `db:"actual_cost" json:"actual_cost,omitempty"`
	ApprovedBy      *string             `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt      *time.Time          `db:"approved_at" json:"approved_at,omitempty"`
	CompletedAt     *time.Time          `db:"completed_at" json:"completed_at,omitempty"`
	CompletionNotes *string             `db:"completion_notes" json:"completion_notes,omitempty"`
	RejectReason    *string             `db:"reject_reason" json:"reject_reason,omitempty"`
	CreatedAt       time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time           `db:"updated_at" json:"updated_at"`
}

// MaintenanceFilter constrains request listing queries.
type MaintenanceFilter struct {
	HostelID   string
	RoomID     string
	Status     []MaintenanceStatus
	Category   MaintenanceCategory
	ReportedBy string
	AssignedTo string
	Page       int
	PageSize   int
}

// MaintenanceCostSummary aggregates costs per category.
type MaintenanceCostSummary struct {
	Category       MaintenanceCategory `db:"category" json:"category"`
	RequestCount   int                 `db:"request_count" json:"request_count"`
	EstimatedTotal float64             `db:"estimated_total" json:"estimated_total"`
	ActualTotal    float64             `db:"actual_total" json:"actual_total"`
}

// PreventiveSchedule defines a recurring maintenance task.
type PreventiveSchedule struct {
	ID                string              `db:"id" json:"id"`
	HostelID          string              `db:"hostel_id" json:"hostel_id"`
	Category          MaintenanceCategory `db:"category" json:"category"`
	Title             string              `db:"title" json:"title"`
	Description       string              `db:"description" json:"description"`
	RecurrencePattern RecurrencePattern   `db:"recurrence_pattern" json:"recurrence_pattern"`
	NextDueAt         time.Time           `db:"next_due_at" json:"next_due_at"`
	Active            bool                `db:"active" json:"active"`
	CreatedBy         string              `db:"created_by" json:"created_by"`
	CreatedAt         time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time           `db:"updated_at" json:"updated_at"`
}
