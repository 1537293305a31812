package models

import "time"

// ApprovalStatus captures workflow states for announcement approvals.
type ApprovalStatus string

const (
	ApprovalStatusPending   ApprovalStatus = "PENDING"
	ApprovalStatusApproved  ApprovalStatus = "APPROVED"
	ApprovalStatusRejected  ApprovalStatus = "REJECTED"
	ApprovalStatusWithdrawn ApprovalStatus = "WITHDRAWN"
)

// approvalTransitions is the only legal transition table. Terminal states
// have no outgoing edges.
var approvalTransitions = map[ApprovalStatus][]ApprovalStatus{
	ApprovalStatusPending: {ApprovalStatusApproved, ApprovalStatusRejected, ApprovalStatusWithdrawn},
}

// CanTransition reports whether moving from one approval status to another is legal.
func (s ApprovalStatus) CanTransition(to ApprovalStatus) bool {
	for _, next := range approvalTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ApprovalRequest stores one approval workflow record per submission.
type ApprovalRequest struct {
	ID                string         `db:"id" json:"id"`
	AnnouncementID    string         `db:"announcement_id" json:"announcement_id"`
	HostelID          string         `db:"hostel_id" json:"hostel_id"`
	Status            ApprovalStatus `db:"status" json:"status"`
	RequestedBy       string         `db:"requested_by" json:"requested_by"`
	PreferredApprover *string        `db:"preferred_approver" json:"preferred_approver,omitempty"`
	IsUrgent          bool           `db:"is_urgent" json:"is_urgent"`
	Notes             *string        `db:"notes" json:"notes,omitempty"`
	DecidedBy         *string        `db:"decided_by" json:"decided_by,omitempty"`
	DecidedAt         *time.Time     `db:"decided_at" json:"decided_at,omitempty"`
	RejectionReason   *string        `db:"rejection_reason" json:"rejection_reason,omitempty"`
	AllowResubmission bool           `db:"allow_resubmission" json:"allow_resubmission"`
	AutoPublish       bool           `db:"auto_publish" json:"auto_publish"`
	RequestedAt       time.Time      `db:"requested_at" json:"requested_at"`
}

// ApprovalFilter constrains approval listing queries.
type ApprovalFilter struct {
	HostelID       string
	AnnouncementID string
	Status         []ApprovalStatus
	RequestedBy    string
	UrgentOnly     bool
	Page           int
	PageSize       int
}

// BulkDecisionOutcome reports one item of a bulk approval run.
type BulkDecisionOutcome struct {
	AnnouncementID string `json:"announcement_id"`
	Success        bool   `json:"success"`
	Error          string `json:"error,omitempty"`
}

// BulkDecisionSummary aggregates a bulk approval run.
type BulkDecisionSummary struct {
	SuccessCount int                   `json:"success_count"`
	FailureCount int                   `json:"failure_count"`
	Outcomes     []BulkDecisionOutcome `json:"outcomes"`
}
