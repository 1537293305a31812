package notifier

import (
	"context"
	"fmt"
	"html"
	"strings"

	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"

	"github.com/hostelhub/residence-api/internal/models"
	"github.com/hostelhub/residence-api/pkg/config"
)

// EmailSender delivers announcements over SMTP.
type EmailSender struct {
	dialer *gomail.Dialer
	from   string
	logger *zap.Logger
}

// NewEmailSender builds an SMTP-backed sender from config.
func NewEmailSender(cfg config.SMTPConfig, logger *zap.Logger) *EmailSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		logger: logger,
	}
}

func (s *EmailSender) Channel() models.DeliveryChannel { return models.ChannelEmail }

func (s *EmailSender) Send(ctx context.Context, msg Message, recipient models.Recipient) error {
	if recipient.Email == "" {
		return fmt.Errorf("recipient %s has no email address", recipient.StudentID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", recipient.Email)
	m.SetHeader("Subject", subjectFor(msg))
	m.SetBody("text/html", bodyFor(msg, recipient))

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send to %s: %w", recipient.Email, err)
	}
	return nil
}

func subjectFor(msg Message) string {
	if msg.IsUrgent {
		return "[URGENT] " + msg.Title
	}
	return msg.Title
}

func bodyFor(msg Message, recipient models.Recipient) string {
	var b strings.Builder
	b.WriteString("<p>Dear ")
	b.WriteString(html.EscapeString(recipient.FullName))
	b.WriteString(",</p>")
	for _, para := range strings.Split(msg.Content, "\n\n") {
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(para))
		b.WriteString("</p>")
	}
	b.WriteString("<p><small>Category: ")
	b.WriteString(html.EscapeString(string(msg.Category)))
	b.WriteString("</small></p>")
	return b.String()
}
