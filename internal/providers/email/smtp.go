package email

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/smtp"
	"net/textproto"
	"strings"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Host) == "" || c.Port <= 0 ||
		strings.TrimSpace(c.Username) == "" || c.Password == "" ||
		strings.TrimSpace(c.From) == "" {
		return ErrInvalidConfig
	}
	return nil
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type SMTPProvider struct {
	cfg       Config
	templates *Templates
	send      sendFunc
}

func NewSMTP(cfg Config, templates *Templates) (*SMTPProvider, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &SMTPProvider{cfg: cfg, templates: templates, send: smtp.SendMail}, nil
}

func (p *SMTPProvider) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}

	var html string
	if msg.Template != "" {
		rendered, err := p.templates.Render(msg.Template, msg.Data)
		if err != nil {
			return err
		}
		html = rendered
	}
	text := msg.Text
	if strings.TrimSpace(text) == "" {
		text = StripHTML(html)
	}

	raw, err := buildMIME(p.cfg.From, msg.To, msg.Subject, text, html, msg.Attachments)
	if err != nil {
		return fmt.Errorf("build email: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	auth := smtp.PlainAuth("", p.cfg.Username, p.cfg.Password, p.cfg.Host)
	addr := fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port)
	return p.send(addr, auth, p.cfg.From, msg.To, raw)
}

func buildMIME(from string, to []string, subject, text, html string, attachments []Attachment) ([]byte, error) {
	var buf bytes.Buffer
	mixed := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", mixed.Boundary())

	var body bytes.Buffer
	alt := multipart.NewWriter(&body)
	if err := writeTextPart(alt, "text/plain; charset=utf-8", text); err != nil {
		return nil, err
	}
	if html != "" {
		if err := writeTextPart(alt, "text/html; charset=utf-8", html); err != nil {
			return nil, err
		}
	}
	if err := alt.Close(); err != nil {
		return nil, err
	}

	altPart, err := mixed.CreatePart(textproto.MIMEHeader{
		"Content-Type": {fmt.Sprintf("multipart/alternative; boundary=%q", alt.Boundary())},
	})
	if err != nil {
		return nil, err
	}
	if _, err := altPart.Write(body.Bytes()); err != nil {
		return nil, err
	}

	for _, att := range attachments {
		contentType := att.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		part, err := mixed.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {contentType},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": att.Filename})},
		})
		if err != nil {
			return nil, err
		}
		if err := writeBase64(part, att.Data); err != nil {
			return nil, err
		}
	}

	if err := mixed.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeTextPart(w *multipart.Writer, contentType, content string) error {
	part, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {contentType},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return err
	}
	qp := quotedprintable.NewWriter(part)
	if _, err := qp.Write([]byte(content)); err != nil {
		return err
	}
	return qp.Close()
}

// writeBase64 wraps encoded data at 76 characters per line.
func writeBase64(w io.Writer, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 76 {
		if _, err := fmt.Fprintf(w, "%s\r\n", encoded[:76]); err != nil {
			return err
		}
		encoded = encoded[76:]
	}
	_, err := fmt.Fprintf(w, "%s\r\n", encoded)
	return err
}
