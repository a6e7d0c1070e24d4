package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/vetbilling/internal/clock"
	"github.com/smallbiznis/vetbilling/internal/config"
	"github.com/smallbiznis/vetbilling/internal/invoice/calculator"
	invoicedomain "github.com/smallbiznis/vetbilling/internal/invoice/domain"
	"github.com/smallbiznis/vetbilling/internal/invoice/document"
	invoiceformat "github.com/smallbiznis/vetbilling/internal/invoice/format"
	"github.com/smallbiznis/vetbilling/internal/money"
	"github.com/smallbiznis/vetbilling/internal/observability/metrics"
	"github.com/smallbiznis/vetbilling/internal/providers/email"
	"github.com/smallbiznis/vetbilling/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultCurrency   = "USD"
	maxNumberAttempts = 5
)

type Params struct {
	fx.In

	Config   config.Config
	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     invoicedomain.Repository
	Clock    clock.Clock
	Renderer *document.Renderer
	Email    email.Provider
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID    *snowflake.Node
	repo     invoicedomain.Repository
	clock    clock.Clock
	renderer *document.Renderer
	email    email.Provider
	metrics  *metrics.Metrics

	numberTemplate string
}

func NewService(p Params) invoicedomain.Service {
	log := p.Log.Named("invoice.service")

	numberTemplate := p.Config.InvoiceNumberTemplate
	if err := invoiceformat.ValidateTemplate(numberTemplate); err != nil {
		if numberTemplate != "" {
			log.Warn("invalid invoice number template, using default",
				zap.String("template", numberTemplate), zap.Error(err))
		}
		numberTemplate = invoiceformat.DefaultInvoiceNumberTemplate
	}

	return &Service{
		db:             p.DB,
		log:            log,
		numberTemplate: numberTemplate,

		genID:    p.GenID,
		repo:     p.Repo,
		clock:    p.Clock,
		renderer: p.Renderer,
		email:    p.Email,
		metrics:  p.Metrics,
	}
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceResponse, error) {
	filter := invoicedomain.ListFilter{
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Offset:    req.Offset,
	}

	if status := strings.TrimSpace(req.Status); status != "" {
		filter.Status = invoicedomain.InvoiceStatus(strings.ToLower(status))
		if !filter.Status.Valid() {
			return invoicedomain.ListInvoiceResponse{}, invoicedomain.ErrInvalidStatus
		}
	}
	if patientID := strings.TrimSpace(req.PatientID); patientID != "" {
		parsed, err := parsePatientID(patientID)
		if err != nil {
			return invoicedomain.ListInvoiceResponse{}, err
		}
		filter.PatientID = parsed
	}
	if req.StartDate != nil && req.EndDate != nil && req.StartDate.After(*req.EndDate) {
		return invoicedomain.ListInvoiceResponse{}, invoicedomain.ErrInvalidDateRange
	}

	limit := req.Limit
	if limit == 0 {
		limit = invoicedomain.DefaultListLimit
	}
	if limit < 1 || limit > invoicedomain.MaxListLimit {
		return invoicedomain.ListInvoiceResponse{}, invoicedomain.ErrInvalidLimit
	}
	if req.Offset < 0 {
		return invoicedomain.ListInvoiceResponse{}, invoicedomain.ErrInvalidOffset
	}
	filter.Limit = limit

	items, total, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}

	invoices := make([]invoicedomain.InvoiceResponse, 0, len(items))
	for i := range items {
		invoices = append(invoices, toResponse(&items[i]))
	}

	return invoicedomain.ListInvoiceResponse{
		Invoices: invoices,
		Total:    total,
		Limit:    limit,
		Offset:   req.Offset,
	}, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (invoicedomain.InvoiceResponse, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return invoicedomain.InvoiceResponse{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, invoiceID)
	if err != nil {
		return invoicedomain.InvoiceResponse{}, err
	}
	if item == nil {
		return invoicedomain.InvoiceResponse{}, invoicedomain.ErrNotFound
	}

	return toResponse(item), nil
}

func (s *Service) Create(ctx context.Context, req invoicedomain.CreateInvoiceRequest) (invoicedomain.InvoiceResponse, error) {
	patientID, err := parsePatientID(req.PatientID)
	if err != nil {
		return invoicedomain.InvoiceResponse{}, err
	}

	currency := defaultCurrency
	if strings.TrimSpace(req.Currency) != "" {
		currency, err = money.NormalizeCurrency(req.Currency)
		if err != nil {
			return invoicedomain.InvoiceResponse{}, invoicedomain.ErrInvalidCurrency
		}
	}

	now := s.clock.Now()
	invoice := invoicedomain.Invoice{
		ID:        s.genID.Generate(),
		PatientID: patientID,
		Status:    invoicedomain.InvoiceStatusDraft,
		Currency:  currency,
		DueDate:   req.DueDate,
		Notes:     req.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}

	items, err := s.buildItems(invoice.ID, req.Items, &invoice, now)
	if err != nil {
		return invoicedomain.InvoiceResponse{}, err
	}
	invoice.Items = items

	if err := s.insertNumbered(ctx, &invoice, now); err != nil {
		s.log.Error("failed to create invoice", zap.String("patient_id", patientID), zap.Error(err))
		return invoicedomain.InvoiceResponse{}, err
	}

	s.metrics.RecordInvoiceWrite(ctx, "create")
	s.log.Info("invoice created",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("number", invoice.Number),
		zap.Int("items", len(invoice.Items)),
	)
	return toResponse(&invoice), nil
}

// insertNumbered assigns the next number in the invoice's scope and inserts
// it. A number already held by another row (one written before the counter
// existed, or by hand) is skipped.
func (s *Service) insertNumbered(ctx context.Context, invoice *invoicedomain.Invoice, now time.Time) error {
	scope, err := invoiceformat.SequenceScope(s.numberTemplate, now.UTC())
	if err != nil {
		return err
	}

	for attempt := 1; ; attempt++ {
		seq, err := s.repo.NextSequence(ctx, s.db, scope)
		if err != nil {
			return err
		}
		number, err := invoiceformat.FormatInvoiceNumber(s.numberTemplate, now.UTC(), seq)
		if err != nil {
			return err
		}
		invoice.Number = number

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.repo.Insert(ctx, tx, invoice)
		})
		if err == nil {
			return nil
		}
		if !db.IsDuplicateKeyErr(err) {
			return err
		}
		if attempt == maxNumberAttempts {
			return fmt.Errorf("%w: %s", invoicedomain.ErrNumberConflict, number)
		}
		s.log.Warn("invoice number taken, advancing sequence",
			zap.String("number", number), zap.Int("attempt", attempt))
	}
}

func (s *Service) Update(ctx context.Context, req invoicedomain.UpdateInvoiceRequest) (invoicedomain.InvoiceResponse, error) {
	invoiceID, err := parseID(req.ID)
	if err != nil {
		return invoicedomain.InvoiceResponse{}, err
	}

	var status invoicedomain.InvoiceStatus
	if req.Status != nil {
		status = invoicedomain.InvoiceStatus(strings.ToLower(strings.TrimSpace(*req.Status)))
		if !status.Valid() {
			return invoicedomain.InvoiceResponse{}, invoicedomain.ErrInvalidStatus
		}
	}

	var updated *invoicedomain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByID(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if existing == nil {
			return invoicedomain.ErrNotFound
		}

		now := s.clock.Now()
		if req.Items != nil {
			items, err := s.buildItems(existing.ID, req.Items, existing, now)
			if err != nil {
				return err
			}
			if err := s.repo.ReplaceItems(ctx, tx, existing.ID, items); err != nil {
				return err
			}
			existing.Items = items
		}
		if status != "" {
			existing.Status = status
		}
		if req.DueDate != nil {
			existing.DueDate = req.DueDate
		}
		if req.Notes != nil {
			existing.Notes = req.Notes
		}
		existing.UpdatedAt = now

		if err := s.repo.Update(ctx, tx, existing); err != nil {
			return err
		}
		updated = existing
		return nil
	})
	if err != nil {
		return invoicedomain.InvoiceResponse{}, err
	}

	s.metrics.RecordInvoiceWrite(ctx, "update")
	return toResponse(updated), nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	invoiceID, err := parseID(id)
	if err != nil {
		return err
	}

	var deleted bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		deleted, err = s.repo.Delete(ctx, tx, invoiceID)
		return err
	})
	if err != nil {
		return err
	}
	if !deleted {
		return invoicedomain.ErrNotFound
	}

	s.metrics.RecordInvoiceWrite(ctx, "delete")
	return nil
}

// buildItems validates inputs, runs them through the calculator and stores
// the resulting totals on invoice.
func (s *Service) buildItems(invoiceID snowflake.ID, inputs []invoicedomain.ItemInput, invoice *invoicedomain.Invoice, now time.Time) ([]invoicedomain.InvoiceItem, error) {
	if len(inputs) == 0 {
		return nil, invoicedomain.ErrEmptyInvoice
	}

	lines := make([]invoicedomain.LineItem, 0, len(inputs))
	for idx, input := range inputs {
		description := strings.TrimSpace(input.Description)
		if description == "" {
			return nil, &invoicedomain.LineItemError{Index: idx, Field: "description"}
		}
		if input.Quantity < 1 {
			return nil, &invoicedomain.LineItemError{Index: idx, Field: calculator.FieldQuantity}
		}
		quantity := float64(input.Quantity)
		unitPrice := input.UnitPrice
		lines = append(lines, invoicedomain.LineItem{
			Description:  invoicedomain.FlexString(description),
			Quantity:     &quantity,
			UnitPrice:    &unitPrice,
			DiscountRate: input.DiscountRate,
			TaxRate:      input.TaxRate,
		})
	}

	totals, err := calculator.CalculateTotals(lines)
	if err != nil {
		return nil, err
	}

	items := make([]invoicedomain.InvoiceItem, 0, len(totals.Lines))
	for idx, line := range totals.Lines {
		items = append(items, invoicedomain.InvoiceItem{
			ID:           s.genID.Generate(),
			InvoiceID:    invoiceID,
			Position:     idx,
			Description:  line.Description,
			Quantity:     inputs[idx].Quantity,
			UnitPrice:    line.UnitPrice,
			DiscountRate: line.DiscountRate,
			TaxRate:      line.TaxRate,
			LineSubtotal: line.LineSubtotal,
			LineDiscount: line.LineDiscount,
			LineTaxable:  line.LineTaxable,
			LineTax:      line.LineTax,
			LineTotal:    line.LineTotal,
			CreatedAt:    now,
		})
	}

	invoice.Subtotal = totals.Subtotal
	invoice.Discount = totals.Discount
	invoice.Tax = totals.Tax
	invoice.Total = totals.Total
	return items, nil
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, invoicedomain.ErrInvalidID
	}
	return id, nil
}

func parsePatientID(raw string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", invoicedomain.ErrInvalidPatientID
	}
	return parsed.String(), nil
}

func toResponse(inv *invoicedomain.Invoice) invoicedomain.InvoiceResponse {
	items := make([]invoicedomain.InvoiceItemResponse, 0, len(inv.Items))
	for _, item := range inv.Items {
		items = append(items, invoicedomain.InvoiceItemResponse{
			Description:  item.Description,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			DiscountRate: item.DiscountRate,
			TaxRate:      item.TaxRate,
			LineSubtotal: item.LineSubtotal,
			LineDiscount: item.LineDiscount,
			LineTaxable:  item.LineTaxable,
			LineTax:      item.LineTax,
			LineTotal:    item.LineTotal,
		})
	}

	return invoicedomain.InvoiceResponse{
		ID:        inv.ID.String(),
		Number:    inv.Number,
		PatientID: inv.PatientID,
		Status:    inv.Status,
		Currency:  inv.Currency,
		Subtotal:  inv.Subtotal,
		Discount:  inv.Discount,
		Tax:       inv.Tax,
		Total:     inv.Total,
		DueDate:   inv.DueDate,
		Notes:     inv.Notes,
		Items:     items,
		CreatedAt: inv.CreatedAt,
		UpdatedAt: inv.UpdatedAt,
	}
}
