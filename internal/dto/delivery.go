package dto

import (
	"github.com/hostelhub/residence-api/internal/models"
)

// StartDeliveryRequest kicks off delivery for a published announcement.
type StartDeliveryRequest struct {
	Channels  []models.DeliveryChannel `json:"channels" validate:"required,min=1,dive,oneof=EMAIL SMS PUSH IN_APP"`
	Strategy  models.DeliveryStrategy  `json:"strategy" validate:"omitempty,oneof=IMMEDIATE BATCHED"`
	BatchSize *int                     `json:"batchSize" validate:"omitempty,min=10,max=1000"`
}

// PauseDeliveryRequest pauses an in-flight delivery.
type PauseDeliveryRequest struct {
	Reason             string `json:"reason" validate:"required,min=10,max=500"`
	AutoResume         bool   `json:"autoResume"`
	ResumeAfterMinutes *int   `json:"resumeAfterMinutes" validate:"omitempty,min=5,max=1440"`
}

// ResumeDeliveryRequest resumes a paused delivery.
type ResumeDeliveryRequest struct {
	RestartCurrentBatch bool `json:"restartCurrentBatch"`
}

// RetryFailedRequest re-attempts failed sends, optionally narrowed down.
// A fallback channel substitutes the failed channel for the re-send.
type RetryFailedRequest struct {
	StudentIDs       []string                 `json:"studentIds" validate:"omitempty,max=1000,dive,uuid"`
	Channels         []models.DeliveryChannel `json:"channels" validate:"omitempty,dive,oneof=EMAIL SMS PUSH IN_APP"`
	MaxRetryAttempts *int                     `json:"maxRetryAttempts" validate:"omitempty,min=1,max=5"`
	DelayMinutes     *int                     `json:"delayMinutes" validate:"omitempty,min=0,max=60"`
	FallbackChannel  *models.DeliveryChannel  `json:"fallbackChannel" validate:"omitempty,oneof=EMAIL SMS PUSH IN_APP"`
}
