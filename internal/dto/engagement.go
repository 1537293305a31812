package dto

// MarkReadRequest records a read receipt with optional telemetry.
type MarkReadRequest struct {
	ReadingTimeSeconds *int    `json:"readingTimeSeconds" validate:"omitempty,min=0,max=86400"`
	ScrollPercentage   *int    `json:"scrollPercentage" validate:"omitempty,min=0,max=100"`
	DeviceType         *string `json:"deviceType" validate:"omitempty,oneof=MOBILE DESKTOP TABLET"`
	SourceChannel      *string `json:"sourceChannel" validate:"omitempty,oneof=EMAIL SMS PUSH IN_APP"`
}

// AcknowledgeRequest records an explicit acknowledgment.
type AcknowledgeRequest struct {
	Note        *string `json:"note" validate:"omitempty,max=1000"`
	ActionTaken *string `json:"actionTaken" validate:"omitempty,max=500"`
}
