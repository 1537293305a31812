package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin               = "LOGIN"
	AuditActionLogout              = "LOGOUT"
	AuditActionPasswordChange      = "PASSWORD_CHANGE"
	AuditActionAnnouncementCreate  = "ANNOUNCEMENT_CREATE"
	AuditActionAnnouncementPublish = "ANNOUNCEMENT_PUBLISH"
	AuditActionAnnouncementDelete  = "ANNOUNCEMENT_DELETE"
	AuditActionApprovalDecision    = "APPROVAL_DECISION"
	AuditActionTargetingApply      = "TARGETING_APPLY"
	AuditActionMaintenanceCreate   = "MAINTENANCE_CREATE"
	AuditActionMaintenanceDecision = "MAINTENANCE_DECISION"
	AuditActionMaintenanceComplete = "MAINTENANCE_COMPLETE"
	AuditActionAttendanceMark      = "ATTENDANCE_MARK"
	AuditActionSupervisorUpdate    = "SUPERVISOR_UPDATE"
)

// AuditLog stores one immutable audit trail entry.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
