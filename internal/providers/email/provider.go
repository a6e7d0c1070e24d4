package email

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

var (
	ErrInvalidConfig    = errors.New("invalid_email_config")
	ErrInvalidMessage   = errors.New("invalid_email_message")
	ErrTemplateNotFound = errors.New("email_template_not_found")
)

type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is one outgoing email. Either Text or Template must be set; when
// only a template is given the plain-text part is derived from its HTML.
type Message struct {
	To          []string
	Subject     string
	Text        string
	Template    string
	Data        any
	Attachments []Attachment
}

func (m Message) validate() error {
	if len(m.To) == 0 || strings.TrimSpace(m.Subject) == "" {
		return ErrInvalidMessage
	}
	for _, addr := range m.To {
		if strings.TrimSpace(addr) == "" {
			return ErrInvalidMessage
		}
	}
	if strings.TrimSpace(m.Text) == "" && strings.TrimSpace(m.Template) == "" {
		return ErrInvalidMessage
	}
	return nil
}

type Provider interface {
	Send(ctx context.Context, msg Message) error
}

// NoOpProvider drops messages. It is used when email delivery is disabled.
type NoOpProvider struct {
	log *zap.Logger
}

func NewNoOp(log *zap.Logger) *NoOpProvider {
	return &NoOpProvider{log: log.Named("email.noop")}
}

func (p *NoOpProvider) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	p.log.Info("email delivery disabled, message dropped",
		zap.Int("recipients", len(msg.To)),
		zap.String("template", msg.Template),
	)
	return nil
}
