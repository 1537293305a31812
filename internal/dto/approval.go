package dto

import "github.com/hostelhub/residence-api/internal/models"

// SubmitApprovalRequest queues an announcement for review.
type SubmitApprovalRequest struct {
	Note              string  `json:"note" validate:"omitempty,max=1000"`
	PreferredApprover *string `json:"preferredApprover" validate:"omitempty,uuid"`
	IsUrgent          bool    `json:"isUrgent"`
	AutoPublish       bool    `json:"autoPublish"`
}

// DecideApprovalRequest records an approver decision.
type DecideApprovalRequest struct {
	Status            models.ApprovalStatus `json:"status" validate:"required,oneof=APPROVED REJECTED"`
	Note              string                `json:"note" validate:"omitempty,max=1000"`
	RejectionReason   string                `json:"rejectionReason" validate:"omitempty,min=20,max=500"`
	AllowResubmission bool                  `json:"allowResubmission"`
}

// BulkDecideRequest applies one decision to several pending requests.
type BulkDecideRequest struct {
	RequestIDs        []string              `json:"requestIds" validate:"required,min=1,max=50,dive,uuid"`
	Status            models.ApprovalStatus `json:"status" validate:"required,oneof=APPROVED REJECTED"`
	Note              string                `json:"note" validate:"omitempty,max=1000"`
	RejectionReason   string                `json:"rejectionReason" validate:"omitempty,min=20,max=500"`
	AllowResubmission bool                  `json:"allowResubmission"`
}

// ApprovalQuery mirrors the queue listing filters.
type ApprovalQuery struct {
	Status      []models.ApprovalStatus
	RequestedBy string
	UrgentOnly  bool
	Page        int
	PageSize    int
}
