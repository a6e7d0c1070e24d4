package document

import (
	"math"
	"strings"

	invoicedomain "github.com/smallbiznis/vetbilling/internal/invoice/domain"
	"github.com/smallbiznis/vetbilling/internal/money"
)

// Validate checks doc before anything is drawn and returns the single
// currency shared by all items.
func Validate(doc invoicedomain.Document) (string, error) {
	if err := validateParty("clinic", doc.Clinic); err != nil {
		return "", err
	}
	if err := validateParty("client", doc.Client); err != nil {
		return "", err
	}

	if len(doc.Items) == 0 {
		return "", invoicedomain.NewDocumentError("items must be a non-empty array")
	}

	currencies := make([]string, 0, len(doc.Items))
	for idx, item := range doc.Items {
		if blank(item.Description) {
			return "", invoicedomain.NewDocumentError("items[%d].description is required", idx)
		}
		if !isNumber(item.Quantity) {
			return "", invoicedomain.NewDocumentError("items[%d].quantity must be a number", idx)
		}
		if !isNumber(item.UnitPrice) {
			return "", invoicedomain.NewDocumentError("items[%d].unit_price must be a number", idx)
		}
		if blank(item.Currency) {
			return "", invoicedomain.NewDocumentError("items[%d].currency is required", idx)
		}
		if _, err := money.NormalizeCurrency(item.Currency); err != nil {
			return "", invoicedomain.NewDocumentError("items[%d].currency is not a known currency code", idx)
		}
		if item.TaxRate != nil && !isNumber(item.TaxRate) {
			return "", invoicedomain.NewDocumentError("items[%d].tax_rate must be a number if provided", idx)
		}
		currencies = append(currencies, strings.TrimSpace(item.Currency))
	}

	if blank(doc.InvoiceNumber) {
		return "", invoicedomain.NewDocumentError("invoice_number is required")
	}
	if blank(doc.Date) {
		return "", invoicedomain.NewDocumentError("date is required")
	}

	// Codes are compared as sent, so "usd" and "USD" are two currencies.
	for _, code := range currencies[1:] {
		if code != currencies[0] {
			return "", invoicedomain.ErrMixedCurrency
		}
	}
	return money.NormalizeCurrency(currencies[0])
}

func validateParty(role string, party *invoicedomain.Party) error {
	if party == nil {
		return invoicedomain.NewDocumentError("%s information is required", role)
	}
	if blank(party.Name) || party.Address == nil {
		return invoicedomain.NewDocumentError("%s.name and %s.address are required", role, role)
	}

	addr := party.Address
	fields := []struct {
		name  string
		value string
	}{
		{"line1", addr.Line1},
		{"city", addr.City},
		{"state", addr.State},
		{"postal_code", addr.PostalCode},
		{"country", addr.Country},
	}
	for _, field := range fields {
		if blank(field.value) {
			return invoicedomain.NewDocumentError("%s.address.%s is required", role, field.name)
		}
	}
	return nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func isNumber(v *float64) bool {
	return v != nil && !math.IsNaN(*v)
}
