package models

import (
	"time"

	"github.com/lib/pq"
)

// TargetType selects how an announcement audience is resolved.
type TargetType string

const (
	TargetTypeAll              TargetType = "ALL"
	TargetTypeSpecificRooms    TargetType = "SPECIFIC_ROOMS"
	TargetTypeSpecificFloors   TargetType = "SPECIFIC_FLOORS"
	TargetTypeSpecificStudents TargetType = "SPECIFIC_STUDENTS"
	TargetTypeCustom           TargetType = "CUSTOM"
)

// CombineMode describes how multiple targeting rules are merged.
type CombineMode string

const (
	CombineModeUnion        CombineMode = "UNION"
	CombineModeIntersection CombineMode = "INTERSECTION"
	CombineModeDifference   CombineMode = "DIFFERENCE"
)

// TargetingRule is one audience selection rule attached to an announcement.
// Rows are replaced wholesale whenever targeting is re-applied.
type TargetingRule struct {
	ID                string         `db:"id" json:"id"`
	AnnouncementID    string         `db:"announcement_id" json:"announcement_id"`
	TargetType        TargetType     `db:"target_type" json:"target_type"`
	RoomIDs           pq.StringArray `db:"room_ids" json:"room_ids"`
	Floors            pq.Int64Array  `db:"floors" json:"floors"`
	StudentIDs        pq.StringArray `db:"student_ids" json:"student_ids"`
	ExcludeStudentIDs pq.StringArray `db:"exclude_student_ids" json:"exclude_student_ids"`
	ExcludeRoomIDs    pq.StringArray `db:"exclude_room_ids" json:"exclude_room_ids"`
	CombineMode       CombineMode    `db:"combine_mode" json:"combine_mode"`
	Position          int            `db:"position" json:"position"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
}

// TargetingSummary reports the resolved audience for an announcement.
type TargetingSummary struct {
	AnnouncementID        string         `json:"announcement_id"`
	TotalRecipients       int            `json:"total_recipients"`
	StudentsCount         int            `json:"students_count"`
	RoomsCount            int            `json:"rooms_count"`
	FloorsCount           int            `json:"floors_count"`
	ExcludedStudentsCount int            `json:"excluded_students_count"`
	RecipientsByRoom      map[string]int `json:"recipients_by_room"`
	RecipientsByFloor     map[int]int    `json:"recipients_by_floor"`
	HasValidRecipients    bool           `json:"has_valid_recipients"`
	Warnings              []string       `json:"warnings,omitempty"`
}

// TargetingPreview returns a resolved sample without persisting anything.
type TargetingPreview struct {
	Summary      TargetingSummary `json:"summary"`
	Sample       []Recipient      `json:"sample"`
	SampleSize   int              `json:"sample_size"`
	TotalMatched int              `json:"total_matched"`
}
