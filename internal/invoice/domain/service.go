package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

type ListInvoiceRequest struct {
	Status    string
	PatientID string
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

type ListInvoiceResponse struct {
	Invoices []InvoiceResponse `json:"invoices"`
	Total    int64             `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

// ItemInput is a line submitted when creating or updating a stored invoice.
type ItemInput struct {
	Description  string   `json:"description"`
	Quantity     int64    `json:"quantity"`
	UnitPrice    float64  `json:"unit_price"`
	DiscountRate *float64 `json:"discount_rate,omitempty"`
	TaxRate      *float64 `json:"tax_rate,omitempty"`
}

type CreateInvoiceRequest struct {
	PatientID string      `json:"patient_id"`
	Currency  string      `json:"currency"`
	Items     []ItemInput `json:"items"`
	DueDate   *time.Time  `json:"due_date,omitempty"`
	Notes     *string     `json:"notes,omitempty"`
}

type UpdateInvoiceRequest struct {
	ID      string      `json:"-"`
	Items   []ItemInput `json:"items,omitempty"`
	Status  *string     `json:"status,omitempty"`
	DueDate *time.Time  `json:"due_date,omitempty"`
	Notes   *string     `json:"notes,omitempty"`
}

type EmailDocumentRequest struct {
	To       []string `json:"to"`
	Subject  string   `json:"subject"`
	Message  string   `json:"message"`
	Document Document `json:"document"`
}

type InvoiceItemResponse struct {
	Description  string  `json:"description"`
	Quantity     int64   `json:"quantity"`
	UnitPrice    float64 `json:"unit_price"`
	DiscountRate float64 `json:"discount_rate"`
	TaxRate      float64 `json:"tax_rate"`
	LineSubtotal float64 `json:"line_subtotal"`
	LineDiscount float64 `json:"line_discount"`
	LineTaxable  float64 `json:"line_taxable"`
	LineTax      float64 `json:"line_tax"`
	LineTotal    float64 `json:"line_total"`
}

type InvoiceResponse struct {
	ID        string                `json:"id"`
	Number    string                `json:"number"`
	PatientID string                `json:"patient_id"`
	Status    InvoiceStatus         `json:"status"`
	Currency  string                `json:"currency"`
	Subtotal  float64               `json:"subtotal"`
	Discount  float64               `json:"discount"`
	Tax       float64               `json:"tax"`
	Total     float64               `json:"total"`
	DueDate   *time.Time            `json:"due_date,omitempty"`
	Notes     *string               `json:"notes,omitempty"`
	Items     []InvoiceItemResponse `json:"items"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

type Service interface {
	List(ctx context.Context, req ListInvoiceRequest) (ListInvoiceResponse, error)
	GetByID(ctx context.Context, id string) (InvoiceResponse, error)
	Create(ctx context.Context, req CreateInvoiceRequest) (InvoiceResponse, error)
	Update(ctx context.Context, req UpdateInvoiceRequest) (InvoiceResponse, error)
	Delete(ctx context.Context, id string) error

	CalculateTotals(ctx context.Context, items []LineItem) (Totals, error)
	RenderDocument(ctx context.Context, doc Document) ([]byte, error)
	EmailDocument(ctx context.Context, req EmailDocumentRequest) error
}

type ListFilter struct {
	Status    InvoiceStatus
	PatientID string
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Invoice, int64, error)
	NextSequence(ctx context.Context, db *gorm.DB, scope string) (int64, error)
	Update(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	ReplaceItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, items []InvoiceItem) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
}
