package domain

import (
	"bytes"
	"encoding/json"
)

// FlexString accepts any JSON scalar for a text field. Strings are kept,
// null becomes empty, and numbers or booleans keep their literal text.
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*s = ""
		return nil
	}

	var text string
	if err := json.Unmarshal(trimmed, &text); err == nil {
		*s = FlexString(text)
		return nil
	}

	compact := &bytes.Buffer{}
	if err := json.Compact(compact, trimmed); err != nil {
		return err
	}
	*s = FlexString(compact.String())
	return nil
}

func (s FlexString) String() string { return string(s) }

// LineItem is one billable entry fed to the calculator. Rates are fractions
// in [0,1]; absent rates default to zero.
type LineItem struct {
	Description  FlexString `json:"description"`
	Quantity     *float64   `json:"quantity"`
	UnitPrice    *float64   `json:"unit_price"`
	DiscountRate *float64   `json:"discount_rate,omitempty"`
	TaxRate      *float64   `json:"tax_rate,omitempty"`
}

// LineResult holds the computed fields of one line, each rounded to cents
// on its own.
type LineResult struct {
	Description  string  `json:"description"`
	Quantity     float64 `json:"quantity"`
	UnitPrice    float64 `json:"unit_price"`
	DiscountRate float64 `json:"discount_rate"`
	TaxRate      float64 `json:"tax_rate"`
	LineSubtotal float64 `json:"line_subtotal"`
	LineDiscount float64 `json:"line_discount"`
	LineTaxable  float64 `json:"line_taxable"`
	LineTax      float64 `json:"line_tax"`
	LineTotal    float64 `json:"line_total"`
}

// Totals aggregates line results in input order.
type Totals struct {
	Subtotal float64      `json:"subtotal"`
	Discount float64      `json:"discount"`
	Tax      float64      `json:"tax"`
	Total    float64      `json:"total"`
	Lines    []LineResult `json:"lines"`
}
