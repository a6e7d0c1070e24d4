package pdf

import (
	"context"
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/page"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// Positions and heights in InvoiceData are PDF points. They are scaled to
// millimetres slightly below 1pt = 0.3528mm so a planned page always fits
// inside maroto's printable area and is never split again.
const pointsToMM = 0.33

// Grid columns; 51 units split the table 240/70/100/100 like the point widths.
const (
	gridSize        = 51
	colDescription  = 24
	colQuantity     = 7
	colUnitPrice    = 10
	colLineTotal    = 10
	colTotalsOffset = gridSize - colUnitPrice - colLineTotal
)

type InvoiceData struct {
	Title       string
	Author      string
	Creator     string
	PageNumbers bool

	Margin float64

	ClinicName    string
	ClinicAddress []string
	InvoiceNumber string
	IssueDate     string

	BillToName    string
	BillToAddress []string

	// Vertical anchors on the first page.
	HeaderRuleY   float64
	BillToTopY    float64
	BillToRuleY   float64
	TableHeaderH  float64
	RowHeight     float64
	FirstTableTop float64

	// TotalsTop is where the totals block starts on the last page.
	TotalsTop    float64
	TotalsHeight float64

	Pages []InvoicePage

	Subtotal string
	Tax      string
	Total    string
}

// InvoicePage is one page of the item table. TableTop is where the table
// header starts. A Letterhead page opens with the clinic and bill-to blocks.
type InvoicePage struct {
	Letterhead bool
	TableTop   float64
	Items      []InvoiceItem
}

type InvoiceItem struct {
	Description string
	Quantity    string
	UnitPrice   string
	Amount      string
}

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func (p *PDFProvider) GenerateInvoice(ctx context.Context, invoice InvoiceData) ([]byte, error) {
	if len(invoice.Pages) == 0 {
		return nil, fmt.Errorf("invoice has no pages")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	margin := mm(invoice.Margin)
	builder := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(margin).
		WithTopMargin(margin).
		WithRightMargin(margin).
		WithMaxGridSize(gridSize).
		WithTitle(invoice.Title, true).
		WithAuthor(invoice.Author, true).
		WithCreator(invoice.Creator, true)
	if invoice.PageNumbers {
		builder = builder.WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		})
	}

	m := maroto.New(builder.Build())

	pages := make([]core.Page, 0, len(invoice.Pages))
	for idx := range invoice.Pages {
		pages = append(pages, page.New().Add(pageRows(invoice, idx)...))
	}
	m.AddPages(pages...)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return doc.GetBytes(), nil
}

// pageRows lays out page idx top to bottom. Spacer rows move the table and
// the totals block to their planned positions.
func pageRows(invoice InvoiceData, idx int) []core.Row {
	planned := invoice.Pages[idx]

	var rows []core.Row
	top := invoice.Margin
	if planned.Letterhead {
		rows = append(rows, letterhead(invoice)...)
		top = invoice.FirstTableTop
	}
	if gap := planned.TableTop - top; gap > 0 {
		rows = append(rows, row.New(mm(gap)))
	}
	rows = append(rows, tableHeader(invoice.TableHeaderH)...)
	for _, item := range planned.Items {
		rows = append(rows, itemRow(item, invoice.RowHeight))
	}
	if idx == len(invoice.Pages)-1 {
		cursor := planned.TableTop + invoice.TableHeaderH + float64(len(planned.Items))*invoice.RowHeight
		if gap := invoice.TotalsTop - cursor; gap > 0 {
			rows = append(rows, row.New(mm(gap)))
		}
		rows = append(rows, totalsRow(invoice))
	}
	return rows
}

func letterhead(invoice InvoiceData) []core.Row {
	clinic := col.New(colDescription + colQuantity).Add(
		text.New(invoice.ClinicName, props.Text{Size: 20, Style: fontstyle.Bold}),
	)
	for i, addrLine := range invoice.ClinicAddress {
		clinic = clinic.Add(text.New(addrLine, props.Text{Size: 10, Top: mm(25 + 15*float64(i))}))
	}

	meta := col.New(colUnitPrice+colLineTotal).Add(
		text.New("Invoice #"+invoice.InvoiceNumber, props.Text{Size: 12, Align: align.Right}),
		text.New("Date: "+invoice.IssueDate, props.Text{Size: 12, Align: align.Right, Top: mm(15)}),
	)

	billTo := col.New(gridSize).Add(
		text.New("Bill To:", props.Text{Size: 10}),
		text.New(invoice.BillToName, props.Text{Size: 10, Style: fontstyle.Bold, Top: mm(15)}),
	)
	for i, addrLine := range invoice.BillToAddress {
		billTo = billTo.Add(text.New(addrLine, props.Text{Size: 10, Top: mm(30 + 15*float64(i))}))
	}

	return []core.Row{
		row.New(mm(invoice.HeaderRuleY-invoice.Margin)).Add(clinic, meta),
		row.New(mm(invoice.BillToTopY-invoice.HeaderRuleY)).Add(line.NewCol(gridSize)),
		row.New(mm(invoice.BillToRuleY-invoice.BillToTopY)).Add(billTo),
		row.New(mm(invoice.FirstTableTop-invoice.BillToRuleY)).Add(line.NewCol(gridSize)),
	}
}

func tableHeader(height float64) []core.Row {
	heading := props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right}
	return []core.Row{
		row.New(mm(height)-1).Add(
			text.NewCol(colDescription, "Description", props.Text{Size: 10, Style: fontstyle.Bold}),
			text.NewCol(colQuantity, "Qty", heading),
			text.NewCol(colUnitPrice, "Unit Price", heading),
			text.NewCol(colLineTotal, "Line Total", heading),
		),
		row.New(1).Add(line.NewCol(gridSize)),
	}
}

func itemRow(item InvoiceItem, height float64) core.Row {
	cell := props.Text{Size: 10, Align: align.Right}
	return row.New(mm(height)).Add(
		text.NewCol(colDescription, item.Description, props.Text{Size: 10}),
		text.NewCol(colQuantity, item.Quantity, cell),
		text.NewCol(colUnitPrice, item.UnitPrice, cell),
		text.NewCol(colLineTotal, item.Amount, cell),
	)
}

func totalsRow(invoice InvoiceData) core.Row {
	label := props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right}
	return row.New(mm(invoice.TotalsHeight)).Add(
		col.New(colTotalsOffset),
		col.New(colUnitPrice).Add(
			text.New("Subtotal", label),
			text.New("Tax", withTop(label, mm(15))),
			text.New("Total", props.Text{Size: 12, Style: fontstyle.Bold, Align: align.Right, Top: mm(35)}),
		),
		col.New(colLineTotal).Add(
			text.New(invoice.Subtotal, label),
			text.New(invoice.Tax, withTop(label, mm(15))),
			text.New(invoice.Total, props.Text{Size: 12, Style: fontstyle.Bold, Align: align.Right, Top: mm(35)}),
		),
	)
}

func withTop(p props.Text, top float64) props.Text {
	p.Top = top
	return p
}

func mm(points float64) float64 {
	return points * pointsToMM
}
