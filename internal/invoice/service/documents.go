package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/smallbiznis/vetbilling/internal/invoice/calculator"
	invoicedomain "github.com/smallbiznis/vetbilling/internal/invoice/domain"
	"github.com/smallbiznis/vetbilling/internal/invoice/document"
	"github.com/smallbiznis/vetbilling/internal/money"
	"github.com/smallbiznis/vetbilling/internal/providers/email"
	"go.uber.org/zap"
)

const invoiceIssuedTemplate = "invoice_issued"

type invoiceEmailData struct {
	InvoiceNumber string
	ClinicName    string
	ClientName    string
	Message       string
	Date          string
	Total         string
}

func (s *Service) CalculateTotals(ctx context.Context, items []invoicedomain.LineItem) (invoicedomain.Totals, error) {
	return calculator.CalculateTotals(items)
}

func (s *Service) RenderDocument(ctx context.Context, doc invoicedomain.Document) ([]byte, error) {
	result, err := s.render(ctx, doc)
	if err != nil {
		return nil, err
	}
	return result.Bytes, nil
}

func (s *Service) EmailDocument(ctx context.Context, req invoicedomain.EmailDocumentRequest) error {
	recipients, err := parseRecipients(req.To)
	if err != nil {
		return err
	}

	result, err := s.render(ctx, req.Document)
	if err != nil {
		return err
	}

	total, err := money.Format(result.Totals.Total, result.Currency)
	if err != nil {
		return err
	}

	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = "Invoice " + req.Document.InvoiceNumber
	}

	msg := email.Message{
		To:       recipients,
		Subject:  subject,
		Template: invoiceIssuedTemplate,
		Data: invoiceEmailData{
			InvoiceNumber: req.Document.InvoiceNumber,
			ClinicName:    req.Document.Clinic.Name,
			ClientName:    req.Document.Client.Name,
			Message:       req.Message,
			Date:          document.FormatDate(req.Document.Date),
			Total:         total,
		},
		Attachments: []email.Attachment{{
			Filename:    "invoice-" + req.Document.InvoiceNumber + ".pdf",
			ContentType: "application/pdf",
			Data:        result.Bytes,
		}},
	}

	if err := s.email.Send(ctx, msg); err != nil {
		s.metrics.RecordEmailSent(ctx, invoiceIssuedTemplate, false)
		s.log.Error("failed to email invoice document",
			zap.String("invoice_number", req.Document.InvoiceNumber),
			zap.Int("recipients", len(recipients)),
			zap.Error(err),
		)
		return err
	}

	s.metrics.RecordEmailSent(ctx, invoiceIssuedTemplate, true)
	s.log.Info("invoice document emailed",
		zap.String("invoice_number", req.Document.InvoiceNumber),
		zap.Int("recipients", len(recipients)),
	)
	return nil
}

func (s *Service) render(ctx context.Context, doc invoicedomain.Document) (document.Result, error) {
	result, err := s.renderer.Render(ctx, doc)
	if err != nil {
		s.metrics.RecordDocumentFailure(ctx, failureReason(err))
		return document.Result{}, err
	}
	s.metrics.RecordDocumentRendered(ctx, result.Currency, result.Pages)
	return result, nil
}

func parseRecipients(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, invoicedomain.ErrInvalidRecipient
	}
	out := make([]string, 0, len(raw))
	for _, addr := range raw {
		parsed, err := mail.ParseAddress(strings.TrimSpace(addr))
		if err != nil {
			return nil, invoicedomain.ErrInvalidRecipient
		}
		out = append(out, parsed.Address)
	}
	return out, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, invoicedomain.ErrMixedCurrency):
		return "mixed_currency"
	case errors.Is(err, invoicedomain.ErrInvalidDocument):
		return "invalid_document"
	case errors.Is(err, document.ErrDocumentTooLarge):
		return "document_too_large"
	default:
		return "generate_failed"
	}
}
