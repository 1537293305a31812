package notifier

import (
	"context"

	"github.com/hostelhub/residence-api/internal/models"
)

// Message is the channel-independent payload of a notification.
type Message struct {
	AnnouncementID string
	Title          string
	Content        string
	Category       models.AnnouncementCategory
	Priority       models.AnnouncementPriority
	IsUrgent       bool
}

// ChannelSender delivers a message to one recipient over a single channel.
type ChannelSender interface {
	Channel() models.DeliveryChannel
	Send(ctx context.Context, msg Message, recipient models.Recipient) error
}

// Registry maps channels to their senders.
type Registry map[models.DeliveryChannel]ChannelSender

// NewRegistry indexes the given senders by channel. Later senders for the
// same channel win.
func NewRegistry(senders ...ChannelSender) Registry {
	r := make(Registry, len(senders))
	for _, s := range senders {
		r[s.Channel()] = s
	}
	return r
}
