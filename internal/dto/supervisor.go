package dto

// CreateSupervisorRequest registers hostel staff with floor duties.
type CreateSupervisorRequest struct {
	UserID   string  `json:"userId" validate:"required,uuid"`
	FullName string  `json:"fullName" validate:"required,min=2,max=255"`
	Floors   []int64 `json:"floors" validate:"required,min=1,max=50"`
	Template string  `json:"template" validate:"required"`
}

// UpdatePermissionsRequest replaces a supervisor's permission set, either
// from a named template or an explicit list.
type UpdatePermissionsRequest struct {
	Template    *string  `json:"template"`
	Permissions []string `json:"permissions" validate:"omitempty,max=20,dive,oneof=ANNOUNCEMENT_CREATE ANNOUNCEMENT_APPROVE ANNOUNCEMENT_PUBLISH MAINTENANCE_APPROVE MAINTENANCE_ASSIGN ATTENDANCE_MARK STUDENT_VIEW"`
}

// UpdateFloorsRequest replaces the floor assignment.
type UpdateFloorsRequest struct {
	Floors []int64 `json:"floors" validate:"required,min=1,max=50"`
}
