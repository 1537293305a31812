package dto

import "github.com/hostelhub/residence-api/internal/models"

// TargetingRuleInput is one rule in a targeting configuration.
type TargetingRuleInput struct {
	TargetType        models.TargetType `json:"targetType" validate:"required,oneof=ALL SPECIFIC_ROOMS SPECIFIC_FLOORS SPECIFIC_STUDENTS CUSTOM"`
	RoomIDs           []string          `json:"roomIds" validate:"omitempty,dive,uuid"`
	Floors            []int64           `json:"floors"`
	StudentIDs        []string          `json:"studentIds" validate:"omitempty,dive,uuid"`
	ExcludeStudentIDs []string          `json:"excludeStudentIds" validate:"omitempty,dive,uuid"`
	ExcludeRoomIDs    []string          `json:"excludeRoomIds" validate:"omitempty,dive,uuid"`
}

// ApplyTargetingRequest replaces an announcement's targeting configuration.
// Global exclusions are applied after rule combination.
type ApplyTargetingRequest struct {
	Rules            []TargetingRuleInput `json:"rules" validate:"required,min=1,max=20,dive"`
	CombineMode      models.CombineMode   `json:"combineMode" validate:"omitempty,oneof=UNION INTERSECTION DIFFERENCE"`
	GlobalExclusions []string             `json:"globalExclusions" validate:"omitempty,dive,uuid"`
}

// PreviewTargetingRequest evaluates rules without persisting them.
type PreviewTargetingRequest struct {
	Rules            []TargetingRuleInput `json:"rules" validate:"required,min=1,max=20,dive"`
	CombineMode      models.CombineMode   `json:"combineMode" validate:"omitempty,oneof=UNION INTERSECTION DIFFERENCE"`
	GlobalExclusions []string             `json:"globalExclusions" validate:"omitempty,dive,uuid"`
	SampleSize       int                  `json:"sampleSize" validate:"omitempty,min=1,max=500"`
}

// BulkTargetingRequest applies one configuration to several announcements.
type BulkTargetingRequest struct {
	AnnouncementIDs  []string             `json:"announcementIds" validate:"required,min=1,max=50,dive,uuid"`
	Rules            []TargetingRuleInput `json:"rules" validate:"required,min=1,max=20,dive"`
	CombineMode      models.CombineMode   `json:"combineMode" validate:"omitempty,oneof=UNION INTERSECTION DIFFERENCE"`
	GlobalExclusions []string             `json:"globalExclusions" validate:"omitempty,dive,uuid"`
}
