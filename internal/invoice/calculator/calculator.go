// Package calculator computes per-line and invoice-level amounts.
//
// Every derived line field is computed from unrounded intermediate products
// and rounded on its own, so summed line values can drift from a rounded raw
// sum by a cent. Callers rely on that exact behavior; do not fold the
// rounding into a single final step.
package calculator

import (
	"fmt"

	invoicedomain "github.com/smallbiznis/vetbilling/internal/invoice/domain"
	"github.com/smallbiznis/vetbilling/internal/money"
)

const (
	FieldQuantity     = "quantity"
	FieldUnitPrice    = "unit_price"
	FieldDiscountRate = "discount_rate"
	FieldTaxRate      = "tax_rate"
)

// ComputeLine validates item and derives its rounded line amounts.
func ComputeLine(item invoicedomain.LineItem, index int) (invoicedomain.LineResult, error) {
	description := item.Description.String()

	quantity, ok := nonNegative(item.Quantity)
	if !ok {
		return invoicedomain.LineResult{}, &invoicedomain.LineItemError{Index: index, Field: FieldQuantity}
	}
	unitPrice, ok := nonNegative(item.UnitPrice)
	if !ok {
		return invoicedomain.LineResult{}, &invoicedomain.LineItemError{Index: index, Field: FieldUnitPrice}
	}
	discountRate, ok := fraction(item.DiscountRate)
	if !ok {
		return invoicedomain.LineResult{}, &invoicedomain.LineItemError{Index: index, Field: FieldDiscountRate}
	}
	taxRate, ok := fraction(item.TaxRate)
	if !ok {
		return invoicedomain.LineResult{}, &invoicedomain.LineItemError{Index: index, Field: FieldTaxRate}
	}

	unitPriceRounded, err := money.Round2(unitPrice)
	if err != nil {
		return invoicedomain.LineResult{}, fmt.Errorf("items[%d]: %w", index, err)
	}

	subtotalRaw := quantity * unitPriceRounded
	discountRaw := subtotalRaw * discountRate
	taxableRaw := subtotalRaw - discountRaw
	taxRaw := taxableRaw * taxRate
	totalRaw := taxableRaw + taxRaw

	r := rounder{}
	result := invoicedomain.LineResult{
		Description:  description,
		Quantity:     quantity,
		UnitPrice:    unitPriceRounded,
		DiscountRate: discountRate,
		TaxRate:      taxRate,
		LineSubtotal: r.round(subtotalRaw),
		LineDiscount: r.round(discountRaw),
		LineTaxable:  r.round(taxableRaw),
		LineTax:      r.round(taxRaw),
		LineTotal:    r.round(totalRaw),
	}
	if r.err != nil {
		return invoicedomain.LineResult{}, fmt.Errorf("items[%d]: %w", index, r.err)
	}
	return result, nil
}

// CalculateTotals computes every line in order and sums the rounded line
// fields. Each running sum is rounded once, after the last line.
// An empty input yields zero totals.
func CalculateTotals(items []invoicedomain.LineItem) (invoicedomain.Totals, error) {
	lines := make([]invoicedomain.LineResult, 0, len(items))

	var subtotal, discount, tax, total float64
	for i, item := range items {
		line, err := ComputeLine(item, i)
		if err != nil {
			return invoicedomain.Totals{}, err
		}
		subtotal += line.LineSubtotal
		discount += line.LineDiscount
		tax += line.LineTax
		total += line.LineTotal
		lines = append(lines, line)
	}

	r := rounder{}
	totals := invoicedomain.Totals{
		Subtotal: r.round(subtotal),
		Discount: r.round(discount),
		Tax:      r.round(tax),
		Total:    r.round(total),
		Lines:    lines,
	}
	if r.err != nil {
		return invoicedomain.Totals{}, r.err
	}
	return totals, nil
}

// rounder keeps the first rounding failure so a block of fields can be
// rounded without an error check per line.
type rounder struct {
	err error
}

func (r *rounder) round(x float64) float64 {
	if r.err != nil {
		return 0
	}
	v, err := money.Round2(x)
	if err != nil {
		r.err = err
		return 0
	}
	return v
}

func nonNegative(v *float64) (float64, bool) {
	if v == nil || !money.IsFinite(*v) || *v < 0 {
		return 0, false
	}
	return *v, true
}

func fraction(v *float64) (float64, bool) {
	if v == nil {
		return 0, true
	}
	if !money.IsFinite(*v) || *v < 0 || *v > 1 {
		return 0, false
	}
	return *v, true
}
