package models

import (
	"time"

	"github.com/lib/pq"
)

// SupervisorPermission names a capability grantable to supervisors.
type SupervisorPermission string

const (
	PermAnnouncementCreate  SupervisorPermission = "ANNOUNCEMENT_CREATE"
	PermAnnouncementApprove SupervisorPermission = "ANNOUNCEMENT_APPROVE"
	PermAnnouncementPublish SupervisorPermission = "ANNOUNCEMENT_PUBLISH"
	PermMaintenanceApprove  SupervisorPermission = "MAINTENANCE_APPROVE"
	PermMaintenanceAssign   SupervisorPermission = "MAINTENANCE_ASSIGN"
	PermAttendanceMark      SupervisorPermission = "ATTENDANCE_MARK"
	PermStudentView         SupervisorPermission = "STUDENT_VIEW"
)

// Supervisor is hostel staff with floor responsibilities and permissions.
type Supervisor struct {
	ID          string         `db:"id" json:"id"`
	UserID      string         `db:"user_id" json:"user_id"`
	HostelID    string         `db:"hostel_id" json:"hostel_id"`
	FullName    string         `db:"full_name" json:"full_name"`
	Floors      pq.Int64Array  `db:"floors" json:"floors"`
	Permissions pq.StringArray `db:"permissions" json:"permissions"`
	Template    *string        `db:"template" json:"template,omitempty"`
	Active      bool           `db:"active" json:"active"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// HasPermission reports whether the supervisor carries the named capability.
func (s *Supervisor) HasPermission(perm SupervisorPermission) bool {
	for _, p := range s.Permissions {
		if p == string(perm) {
			return true
		}
	}
	return false
}

// PermissionTemplate is a named permission set loaded from configuration.
type PermissionTemplate struct {
	Name        string   `mapstructure:"name" json:"name"`
	Description string   `mapstructure:"description" json:"description"`
	Permissions []string `mapstructure:"permissions" json:"permissions"`
}

// SupervisorPerformance summarises a supervisor's recent activity.
type SupervisorPerformance struct {
	SupervisorID         string  `json:"supervisor_id"`
	AnnouncementsCreated int     `json:"announcements_created"`
	ApprovalsDecided     int     `json:"approvals_decided"`
	MaintenanceResolved  int     `json:"maintenance_resolved"`
	AvgResolutionHours   float64 `json:"avg_resolution_hours"`
	PeriodDays           int     `json:"period_days"`
}

// SupervisorDashboard is the cached aggregate view for one supervisor.
type SupervisorDashboard struct {
	SupervisorID     string                `json:"supervisor_id"`
	PendingApprovals int                   `json:"pending_approvals"`
	OpenMaintenance  int                   `json:"open_maintenance"`
	PublishedToday   int                   `json:"published_today"`
	UnreadUrgent     int                   `json:"unread_urgent"`
	Performance      SupervisorPerformance `json:"performance"`
	GeneratedAt      time.Time             `json:"generated_at"`
}
