package dto

import (
	"time"

	"github.com/hostelhub/residence-api/internal/models"
)

// AttendanceEntry is one student's mark in a bulk submission.
type AttendanceEntry struct {
	StudentID string                  `json:"studentId" validate:"required,uuid"`
	Status    models.AttendanceStatus `json:"status" validate:"required,oneof=PRESENT ABSENT LATE LEAVE"`
	Note      *string                 `json:"note" validate:"omitempty,max=500"`
}

// MarkAttendanceRequest submits a full or partial roll call for one date.
type MarkAttendanceRequest struct {
	Date    time.Time         `json:"date" validate:"required"`
	Entries []AttendanceEntry `json:"entries" validate:"required,min=1,max=1000,dive"`
}

// AttendanceReportQuery selects the report date and format.
type AttendanceReportQuery struct {
	Date   time.Time `json:"date" validate:"required"`
	Format string    `json:"format" validate:"omitempty,oneof=json csv pdf"`
}
