package notifier

import (
	"context"

	"go.uber.org/zap"

	"github.com/hostelhub/residence-api/internal/models"
)

// InAppSender marks in-app delivery as complete. The announcement itself is
// served from the API, so there is nothing to push; the sender exists so the
// channel participates in delivery accounting.
type InAppSender struct{}

func NewInAppSender() *InAppSender { return &InAppSender{} }

func (s *InAppSender) Channel() models.DeliveryChannel { return models.ChannelInApp }

func (s *InAppSender) Send(ctx context.Context, msg Message, recipient models.Recipient) error {
	return ctx.Err()
}

// GatewaySender stands in for SMS and push providers that are integrated per
// deployment. Until a provider is wired it records the attempt and reports
// success so batches keep moving.
type GatewaySender struct {
	channel models.DeliveryChannel
	logger  *zap.Logger
}

func NewGatewaySender(channel models.DeliveryChannel, logger *zap.Logger) *GatewaySender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GatewaySender{channel: channel, logger: logger}
}

func (s *GatewaySender) Channel() models.DeliveryChannel { return s.channel }

func (s *GatewaySender) Send(ctx context.Context, msg Message, recipient models.Recipient) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Debug("gateway send",
		zap.String("channel", string(s.channel)),
		zap.String("announcement_id", msg.AnnouncementID),
		zap.String("student_id", recipient.StudentID))
	return nil
}
