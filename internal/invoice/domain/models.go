// Package domain contains persistence models and value types for invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
)

// Valid reports whether s is a known lifecycle state.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusPaid, InvoiceStatusCancelled, InvoiceStatusOverdue:
		return true
	default:
		return false
	}
}

// Invoice is a stored patient invoice with totals computed at write time.
type Invoice struct {
	ID        snowflake.ID  `gorm:"primaryKey"`
	Number    string        `gorm:"type:text;not null;uniqueIndex"`
	PatientID string        `gorm:"type:text;not null;index"`
	Status    InvoiceStatus `gorm:"type:text;not null;default:'draft';index"`
	Currency  string        `gorm:"type:text;not null"`
	Subtotal  float64       `gorm:"precision:14;scale:2;not null;default:0"`
	Discount  float64       `gorm:"precision:14;scale:2;not null;default:0"`
	Tax       float64       `gorm:"precision:14;scale:2;not null;default:0"`
	Total     float64       `gorm:"precision:14;scale:2;not null;default:0"`
	DueDate   *time.Time    `gorm:""`
	Notes     *string       `gorm:"type:text"`
	CreatedAt time.Time     `gorm:"not null;index"`
	UpdatedAt time.Time     `gorm:"not null"`

	Items []InvoiceItem `gorm:"foreignKey:InvoiceID"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// InvoiceItem represents a line on an invoice, inputs and computed fields.
type InvoiceItem struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	InvoiceID    snowflake.ID `gorm:"not null;index"`
	Position     int          `gorm:"not null"`
	Description  string       `gorm:"type:text;not null"`
	Quantity     int64        `gorm:"not null"`
	UnitPrice    float64      `gorm:"precision:14;scale:2;not null"`
	DiscountRate float64      `gorm:"precision:6;scale:4;not null;default:0"`
	TaxRate      float64      `gorm:"precision:6;scale:4;not null;default:0"`
	LineSubtotal float64      `gorm:"precision:14;scale:2;not null"`
	LineDiscount float64      `gorm:"precision:14;scale:2;not null"`
	LineTaxable  float64      `gorm:"precision:14;scale:2;not null"`
	LineTax      float64      `gorm:"precision:14;scale:2;not null"`
	LineTotal    float64      `gorm:"precision:14;scale:2;not null"`
	CreatedAt    time.Time    `gorm:"not null"`
}

// TableName sets the database table name.
func (InvoiceItem) TableName() string { return "invoice_items" }

// InvoiceSequence holds the last sequence handed out for a number scope.
// Scope is the invoice number template with its date tokens expanded, so a
// daily template gets one row per day. Rows only move forward.
type InvoiceSequence struct {
	Scope   string `gorm:"type:text;primaryKey"`
	Counter int64  `gorm:"not null;default:0"`
}

// TableName sets the database table name.
func (InvoiceSequence) TableName() string { return "invoice_sequences" }
