package document

import (
	"testing"

	invoicedomain "github.com/smallbiznis/vetbilling/internal/invoice/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlan_PageCounts(t *testing.T) {
	cases := []struct {
		items int
		pages int
	}{
		{1, 1},
		{22, 1},
		{23, 2},
		{54, 2},
		{55, 3},
		{86, 3},
		{87, 4},
	}
	for _, tc := range cases {
		layout := Plan(testDocument(tc.items).Items)
		assert.Len(t, layout.Pages, tc.pages, "items=%d", tc.items)
	}
}

func TestPlan_EveryItemOnceInOrder(t *testing.T) {
	layout := Plan(testDocument(60).Items)

	next := 0
	for _, page := range layout.Pages {
		for _, row := range page.Rows {
			assert.Equal(t, next, row.Item)
			next++
		}
	}
	assert.Equal(t, 60, next)
}

func TestPlan_TableHeaderOnEveryPage(t *testing.T) {
	layout := Plan(testDocument(60).Items)
	require.Len(t, layout.Pages, 3)

	first := layout.Pages[0]
	assert.True(t, first.Letterhead)
	assert.Equal(t, FirstTableTopY, first.TableHeaderY)
	assert.Equal(t, FirstTableTopY+TableHeaderHeight, first.Rows[0].Y)
	assert.Len(t, first.Rows, 22)

	for i, page := range layout.Pages[1:] {
		assert.False(t, page.Letterhead, "page %d", i+2)
		assert.Equal(t, ContinuationTableTopY, page.TableHeaderY, "page %d", i+2)
		require.NotEmpty(t, page.Rows)
		assert.Equal(t, ContinuationTableTopY+TableHeaderHeight, page.Rows[0].Y, "page %d", i+2)
	}
	assert.Len(t, layout.Pages[1].Rows, 32)
	assert.Len(t, layout.Pages[2].Rows, 6)
}

func TestPlan_RowsStayAboveBreakLine(t *testing.T) {
	layout := Plan(testDocument(120).Items)
	for _, page := range layout.Pages {
		for i, row := range page.Rows {
			assert.LessOrEqual(t, row.Y, RowBreakY)
			if i > 0 {
				assert.Equal(t, page.Rows[i-1].Y+RowHeight, row.Y)
			}
		}
	}
}

func TestPlan_TotalsFollowLastRow(t *testing.T) {
	layout := Plan(testDocument(1).Items)
	assert.Equal(t, 315.0, layout.TotalsY)

	layout = Plan(testDocument(22).Items)
	last := layout.Pages[0].Rows[21]
	assert.Equal(t, last.Y+RowHeight+TotalsGap, layout.TotalsY)
	assert.LessOrEqual(t, layout.TotalsY+TotalsHeight, PageHeight-Margin)
}

func TestTotals_IgnoreDiscount(t *testing.T) {
	items := []invoicedomain.DocumentItem{
		{Description: "Exam", Quantity: f(2), UnitPrice: f(50), Currency: "USD", TaxRate: f(0.1), DiscountRate: f(0.5)},
		{Description: "Nail trim", Quantity: f(1), UnitPrice: f(15), Currency: "USD"},
	}

	totals := Totals(items)
	assert.InDelta(t, 115.0, totals.Subtotal, 1e-9)
	assert.InDelta(t, 10.0, totals.Tax, 1e-9)
	assert.InDelta(t, 125.0, totals.Total, 1e-9)
}
