package document

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/vetbilling/internal/config"
	invoicedomain "github.com/smallbiznis/vetbilling/internal/invoice/domain"
	"github.com/smallbiznis/vetbilling/internal/money"
	"github.com/smallbiznis/vetbilling/internal/providers/pdf"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// chunkSize is how much generated output is handed to the sink per write.
const chunkSize = 32 << 10

// SettingsSource supplies the current document settings.
type SettingsSource interface {
	Get() config.DocumentSettings
}

type Params struct {
	fx.In

	Log      *zap.Logger
	PDF      pdf.Provider
	Settings *config.DocumentSettingsHolder
}

// Result is a rendered document with the figures printed on it.
type Result struct {
	Bytes    []byte
	Pages    int
	Currency string
	Totals   invoicedomain.DocumentTotals
}

type Renderer struct {
	log      *zap.Logger
	pdf      pdf.Provider
	settings SettingsSource
	tracer   trace.Tracer
}

func NewRenderer(p Params) *Renderer {
	return newRenderer(p.Log, p.PDF, p.Settings)
}

func newRenderer(log *zap.Logger, provider pdf.Provider, settings SettingsSource) *Renderer {
	return &Renderer{
		log:      log.Named("invoice.document"),
		pdf:      provider,
		settings: settings,
		tracer:   otel.Tracer("vetbilling/document"),
	}
}

// Render validates doc, lays it out and returns the PDF bytes. Nothing is
// written when validation fails.
func (r *Renderer) Render(ctx context.Context, doc invoicedomain.Document) (Result, error) {
	ctx, span := r.tracer.Start(ctx, "document.Render")
	defer span.End()

	currency, err := Validate(doc)
	if err != nil {
		span.SetStatus(codes.Error, "invalid document")
		return Result{}, err
	}

	settings := r.settings.Get()
	layout := Plan(doc.Items)
	totals := Totals(doc.Items)

	data, err := buildInvoiceData(doc, currency, layout, totals, settings)
	if err != nil {
		span.SetStatus(codes.Error, "format failed")
		return Result{}, err
	}

	span.SetAttributes(
		attribute.Int("document.items", len(doc.Items)),
		attribute.Int("document.pages", len(layout.Pages)),
		attribute.String("document.currency", currency),
	)

	raw, err := r.pdf.GenerateInvoice(ctx, data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate failed")
		return Result{}, fmt.Errorf("generate invoice document: %w", err)
	}

	sink := NewSink(settings.MaxBytes)
	for start := 0; start < len(raw); start += chunkSize {
		end := start + chunkSize
		if end > len(raw) {
			end = len(raw)
		}
		if _, err := sink.Write(raw[start:end]); err != nil {
			break
		}
	}
	out, err := sink.Finish()
	if err != nil {
		span.SetStatus(codes.Error, "sink failed")
		r.log.Warn("document output rejected",
			zap.String("invoice_number", doc.InvoiceNumber),
			zap.Int("size", len(raw)),
			zap.Int("max_bytes", settings.MaxBytes),
			zap.Error(err),
		)
		return Result{}, fmt.Errorf("write invoice document: %w", err)
	}

	r.log.Debug("document rendered",
		zap.String("invoice_number", doc.InvoiceNumber),
		zap.Int("pages", len(layout.Pages)),
		zap.Int("bytes", len(out)),
	)

	return Result{
		Bytes:    out,
		Pages:    len(layout.Pages),
		Currency: currency,
		Totals:   totals,
	}, nil
}

func buildInvoiceData(doc invoicedomain.Document, currency string, layout Layout, totals invoicedomain.DocumentTotals, settings config.DocumentSettings) (pdf.InvoiceData, error) {
	data := pdf.InvoiceData{
		Title:         "Invoice " + doc.InvoiceNumber,
		Author:        doc.Clinic.Name,
		Creator:       settings.Creator,
		PageNumbers:   settings.PageNumbers,
		Margin:        Margin,
		ClinicName:    doc.Clinic.Name,
		ClinicAddress: addressLines(doc.Clinic.Address),
		InvoiceNumber: doc.InvoiceNumber,
		IssueDate:     FormatDate(doc.Date),
		BillToName:    doc.Client.Name,
		BillToAddress: addressLines(doc.Client.Address),
		HeaderRuleY:   HeaderRuleY,
		BillToTopY:    CustomerTopY,
		BillToRuleY:   CustomerRuleY,
		FirstTableTop: FirstTableTopY,
		TableHeaderH:  TableHeaderHeight,
		RowHeight:     RowHeight,
		TotalsTop:     layout.TotalsY,
		TotalsHeight:  TotalsHeight,
	}

	for _, planned := range layout.Pages {
		pg := pdf.InvoicePage{Letterhead: planned.Letterhead, TableTop: planned.TableHeaderY}
		for _, placed := range planned.Rows {
			item := doc.Items[placed.Item]
			quantity, unitPrice := value(item.Quantity), value(item.UnitPrice)

			price, err := money.Format(unitPrice, currency)
			if err != nil {
				return pdf.InvoiceData{}, err
			}
			amount, err := money.Format(quantity*unitPrice, currency)
			if err != nil {
				return pdf.InvoiceData{}, err
			}
			pg.Items = append(pg.Items, pdf.InvoiceItem{
				Description: item.Description,
				Quantity:    strconv.FormatFloat(quantity, 'f', -1, 64),
				UnitPrice:   price,
				Amount:      amount,
			})
		}
		data.Pages = append(data.Pages, pg)
	}

	var err error
	if data.Subtotal, err = money.Format(totals.Subtotal, currency); err != nil {
		return pdf.InvoiceData{}, err
	}
	if data.Tax, err = money.Format(totals.Tax, currency); err != nil {
		return pdf.InvoiceData{}, err
	}
	if data.Total, err = money.Format(totals.Total, currency); err != nil {
		return pdf.InvoiceData{}, err
	}
	return data, nil
}

func addressLines(addr *invoicedomain.Address) []string {
	return []string{
		addr.Line1,
		fmt.Sprintf("%s, %s %s", addr.City, addr.State, addr.PostalCode),
		addr.Country,
	}
}

// FormatDate prints an RFC 3339 or YYYY-MM-DD date as "January 02, 2006".
// Anything else is printed as given.
func FormatDate(raw string) string {
	trimmed := strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.Format("January 02, 2006")
		}
	}
	return raw
}
