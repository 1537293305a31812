package dto

import (
	"time"

	"github.com/hostelhub/residence-api/internal/models"
)

// CreateAnnouncementRequest payload for drafting a new announcement.
type CreateAnnouncementRequest struct {
	Title                  string                      `json:"title" validate:"required,min=5,max=255"`
	Content                string                      `json:"content" validate:"required,min=10,max=5000"`
	Category               models.AnnouncementCategory `json:"category" validate:"required,oneof=GENERAL MAINTENANCE EVENT SECURITY FEES"`
	Priority               models.AnnouncementPriority `json:"priority" validate:"omitempty,oneof=LOW NORMAL HIGH"`
	IsUrgent               bool                        `json:"isUrgent"`
	IsPinned               bool                        `json:"isPinned"`
	Attachments            []string                    `json:"attachments" validate:"omitempty,max=10,dive,url"`
	ExpiresAt              *time.Time                  `json:"expiresAt"`
	RequiresApproval       bool                        `json:"requiresApproval"`
	RequiresAcknowledgment bool                        `json:"requiresAcknowledgment"`
	AcknowledgmentDeadline *time.Time                  `json:"acknowledgmentDeadline"`
}

// UpdateAnnouncementRequest carries partial edits to a draft.
type UpdateAnnouncementRequest struct {
	Title                  *string                      `json:"title" validate:"omitempty,min=5,max=255"`
	Content                *string                      `json:"content" validate:"omitempty,min=10,max=5000"`
	Category               *models.AnnouncementCategory `json:"category" validate:"omitempty,oneof=GENERAL MAINTENANCE EVENT SECURITY FEES"`
	Priority               *models.AnnouncementPriority `json:"priority" validate:"omitempty,oneof=LOW NORMAL HIGH"`
	IsUrgent               *bool                        `json:"isUrgent"`
	IsPinned               *bool                        `json:"isPinned"`
	Attachments            []string                     `json:"attachments" validate:"omitempty,max=10,dive,url"`
	ExpiresAt              *time.Time                   `json:"expiresAt"`
	RequiresAcknowledgment *bool                        `json:"requiresAcknowledgment"`
	AcknowledgmentDeadline *time.Time                   `json:"acknowledgmentDeadline"`
}

// AnnouncementQuery mirrors the supported listing filters.
type AnnouncementQuery struct {
	Status   []models.AnnouncementStatus
	Category models.AnnouncementCategory
	Priority models.AnnouncementPriority
	AuthorID string
	Search   string
	Pinned   *bool
	Urgent   *bool
	Page     int
	PageSize int
}

// UnpublishRequest captures the operator reason when pulling an announcement.
type UnpublishRequest struct {
	Reason string `json:"reason" validate:"required,min=5,max=500"`
}

// BulkDeleteRequest names the draft or archived announcements to remove.
type BulkDeleteRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=50,dive,uuid"`
}

// ExportQuery selects the export format and window.
type ExportQuery struct {
	Format string     `json:"format" validate:"required,oneof=csv pdf"`
	From   *time.Time `json:"from"`
	To     *time.Time `json:"to"`
}
