package service

import (
	"context"

	"github.com/hostelhub/residence-api/internal/models"
)

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
