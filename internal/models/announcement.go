package models

import (
	"time"

	"github.com/lib/pq"
)

// AnnouncementStatus tracks publication state of an announcement.
type AnnouncementStatus string

const (
	AnnouncementStatusDraft           AnnouncementStatus = "DRAFT"
	AnnouncementStatusPendingApproval AnnouncementStatus = "PENDING_APPROVAL"
	AnnouncementStatusScheduled       AnnouncementStatus = "SCHEDULED"
	AnnouncementStatusPublished       AnnouncementStatus = "PUBLISHED"
	AnnouncementStatusUnpublished     AnnouncementStatus = "UNPUBLISHED"
	AnnouncementStatusArchived        AnnouncementStatus = "ARCHIVED"
)

// AnnouncementPriority defines ordering for announcements.
type AnnouncementPriority string

const (
	AnnouncementPriorityLow    AnnouncementPriority = "LOW"
	AnnouncementPriorityNormal AnnouncementPriority = "NORMAL"
	AnnouncementPriorityHigh   AnnouncementPriority = "HIGH"
)

// AnnouncementCategory groups announcements for filtering.
type AnnouncementCategory string

const (
	AnnouncementCategoryGeneral     AnnouncementCategory = "GENERAL"
	AnnouncementCategoryMaintenance AnnouncementCategory = "MAINTENANCE"
	AnnouncementCategoryEvent       AnnouncementCategory = "EVENT"
	AnnouncementCategorySecurity    AnnouncementCategory = "SECURITY"
	AnnouncementCategoryFees        AnnouncementCategory = "FEES"
)

// Announcement represents a persisted announcement row. Targeting, schedule,
// and delivery status rows reference it 1:1 and are cascade-deleted with it.
type Announcement struct {
	ID                     string               `db:"id" json:"id"`
	HostelID               string               `db:"hostel_id" json:"hostel_id"`
	Title                  string               `db:"title" json:"title"`
	Content                string               `db:"content" json:"content"`
	Category               AnnouncementCategory `db:"category" json:"category"`
	Priority               AnnouncementPriority `db:"priority" json:"priority"`
	Status                 AnnouncementStatus   `db:"status" json:"status"`
	IsUrgent               bool                 `db:"is_urgent" json:"is_urgent"`
	IsPinned               bool                 `db:"is_pinned" json:"is_pinned"`
	RequiresApproval       bool                 `db:"requires_approval" json:"requires_approval"`
	RequiresAcknowledgment bool                 `db:"requires_acknowledgment" json:"requires_acknowledgment"`
	AcknowledgmentDeadline *time.Time           `db:"acknowledgment_deadline" json:"acknowledgment_deadline,omitempty"`
	Attachments            pq.StringArray       `db:"attachments" json:"attachments"`
	PublishedAt            *time.Time           `db:"published_at" json:"published_at,omitempty"`
	ExpiresAt              *time.Time           `db:"expires_at" json:"expires_at,omitempty"`
	UnpublishReason        *string              `db:"unpublish_reason" json:"unpublish_reason,omitempty"`
	CreatedBy              string               `db:"created_by" json:"created_by"`
	CreatedAt              time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time            `db:"updated_at" json:"updated_at"`
}

// IsExpired reports whether the announcement has passed its expiry time.
func (a *Announcement) IsExpired(now time.Time) bool {
	return a.ExpiresAt != nil && !a.ExpiresAt.After(now)
}

// DisplayPriority folds the urgent flag into the effective ordering rank.
func (a *Announcement) DisplayPriority() string {
	if a.IsUrgent {
		return "URGENT"
	}
	return string(a.Priority)
}

// AnnouncementFilter allows listing announcements.
type AnnouncementFilter struct {
	HostelID  string
	Status    []AnnouncementStatus
	Category  AnnouncementCategory
	Priority  AnnouncementPriority
	Pinned    *bool
	Urgent    *bool
	CreatedBy string
	Search    string
	Page      int
	PageSize  int
}

// AnnouncementStats summarises announcements per hostel.
type AnnouncementStats struct {
	Total       int            `json:"total"`
	ByStatus    map[string]int `json:"by_status"`
	ByCategory  map[string]int `json:"by_category"`
	ByPriority  map[string]int `json:"by_priority"`
	UrgentCount int            `json:"urgent_count"`
	PinnedCount int            `json:"pinned_count"`
}
