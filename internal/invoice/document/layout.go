package document

import (
	invoicedomain "github.com/smallbiznis/vetbilling/internal/invoice/domain"
)

// Page geometry in PDF points (A4).
const (
	PageWidth  = 595.28
	PageHeight = 841.89
	Margin     = 50.0

	HeaderRuleY   = 130.0
	CustomerTopY  = 145.0
	CustomerRuleY = 230.0

	FirstTableTopY        = 250.0
	ContinuationTableTopY = Margin
	TableHeaderHeight     = 25.0
	RowHeight             = 20.0

	// A row whose top would land below this line moves to a new page.
	RowBreakY = 700.0

	TotalsGap    = 20.0
	TotalsHeight = 50.0
)

// Column widths of the item table; they add up to the printable width.
const (
	ColumnDescription = 240.0
	ColumnQuantity    = 70.0
	ColumnUnitPrice   = 100.0
	ColumnLineTotal   = 100.0
)

// Row places one item on a page.
type Row struct {
	Item int
	Y    float64
}

// Page is one printed page. Every page repeats the item table header at
// TableHeaderY. Only the first page carries the letterhead, the clinic and
// bill-to blocks above the table.
type Page struct {
	Letterhead   bool
	TableHeaderY float64
	Rows         []Row
}

// Layout is the full placement plan for a document. TotalsY is the top of
// the totals block on the last page.
type Layout struct {
	Pages   []Page
	TotalsY float64
}

// Plan places the item table on as many pages as needed. Rows are never
// split; a new page repeats the table header at the top margin. Rows stop
// at RowBreakY, which leaves room for the totals block on the last page.
func Plan(items []invoicedomain.DocumentItem) Layout {
	pages := []Page{{Letterhead: true, TableHeaderY: FirstTableTopY}}
	cursor := FirstTableTopY + TableHeaderHeight

	for idx := range items {
		if cursor > RowBreakY {
			pages = append(pages, Page{TableHeaderY: ContinuationTableTopY})
			cursor = ContinuationTableTopY + TableHeaderHeight
		}
		current := &pages[len(pages)-1]
		current.Rows = append(current.Rows, Row{Item: idx, Y: cursor})
		cursor += RowHeight
	}

	return Layout{
		Pages:   pages,
		TotalsY: cursor + TotalsGap,
	}
}

// Totals sums quantity*unit_price and its tax. discount_rate is not applied
// here; this is the amount printed on the document.
func Totals(items []invoicedomain.DocumentItem) invoicedomain.DocumentTotals {
	var subtotal, tax float64
	for _, item := range items {
		amount := value(item.Quantity) * value(item.UnitPrice)
		subtotal += amount
		tax += amount * value(item.TaxRate)
	}
	return invoicedomain.DocumentTotals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal + tax,
	}
}

func value(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
