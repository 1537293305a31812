package models

import "time"

// AttendanceStatus enumerates nightly roll-call outcomes.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "PRESENT"
	AttendanceAbsent  AttendanceStatus = "ABSENT"
	AttendanceLate    AttendanceStatus = "LATE"
	AttendanceLeave   AttendanceStatus = "LEAVE"
)

// AttendanceRecord is one student's nightly attendance entry.
type AttendanceRecord struct {
	ID        string           `db:"id" json:"id"`
	HostelID  string           `db:"hostel_id" json:"hostel_id"`
	StudentID string           `db:"student_id" json:"student_id"`
	Date      time.Time        `db:"date" json:"date"`
	Status    AttendanceStatus `db:"status" json:"status"`
	Note      *string          `db:"note" json:"note,omitempty"`
	MarkedBy  string           `db:"marked_by" json:"marked_by"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceFilter constrains listing queries.
type AttendanceFilter struct {
	HostelID  string
	StudentID string
	Status    []AttendanceStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
}

// AttendanceReportRow is one student's line in a daily hostel report.
type AttendanceReportRow struct {
	StudentID string           `db:"student_id" json:"student_id"`
	FullName  string           `db:"full_name" json:"full_name"`
	RoomID    *string          `db:"room_id" json:"room_id,omitempty"`
	Floor     *int             `db:"floor" json:"floor,omitempty"`
	Status    AttendanceStatus `db:"status" json:"status"`
	Note      *string          `db:"note" json:"note,omitempty"`
}

// AttendanceSummary aggregates a student's attendance over a period.
type AttendanceSummary struct {
	StudentID      string  `db:"student_id" json:"student_id"`
	TotalDays      int     `db:"total_days" json:"total_days"`
	PresentDays    int     `db:"present_days" json:"present_days"`
	AbsentDays     int     `db:"absent_days" json:"absent_days"`
	LateDays       int     `db:"late_days" json:"late_days"`
	LeaveDays      int     `db:"leave_days" json:"leave_days"`
	AttendanceRate float64 `db:"attendance_rate" json:"attendance_rate"`
}
