package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidLineItem  = errors.New("invalid_line_item")
	ErrInvalidDocument  = errors.New("invalid_document")
	ErrMixedCurrency    = errors.New("mixed_currency")
	ErrEmptyInvoice     = errors.New("empty_invoice")
	ErrNotFound         = errors.New("not_found")
	ErrInvalidID        = errors.New("invalid_id")
	ErrInvalidPatientID = errors.New("invalid_patient_id")
	ErrInvalidStatus    = errors.New("invalid_status")
	ErrInvalidCurrency  = errors.New("invalid_currency")
	ErrInvalidDateRange = errors.New("invalid_date_range")
	ErrInvalidLimit     = errors.New("invalid_limit")
	ErrInvalidOffset    = errors.New("invalid_offset")
	ErrInvalidRecipient = errors.New("invalid_recipient")
	ErrNumberConflict   = errors.New("invoice_number_conflict")
)

// LineItemError names the item and field that failed validation.
type LineItemError struct {
	Index int
	Field string
}

func (e *LineItemError) Error() string {
	return fmt.Sprintf("invalid line item: items[%d].%s", e.Index, e.Field)
}

func (e *LineItemError) Unwrap() error { return ErrInvalidLineItem }

// DocumentError carries the reason a document was rejected before rendering.
type DocumentError struct {
	Reason string
}

func (e *DocumentError) Error() string {
	return "invalid document: " + e.Reason
}

func (e *DocumentError) Unwrap() error { return ErrInvalidDocument }

// NewDocumentError builds a DocumentError with a formatted reason.
func NewDocumentError(format string, args ...any) error {
	return &DocumentError{Reason: fmt.Sprintf(format, args...)}
}
