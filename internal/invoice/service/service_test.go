package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/vetbilling/internal/clock"
	"github.com/smallbiznis/vetbilling/internal/config"
	invoicedomain "github.com/smallbiznis/vetbilling/internal/invoice/domain"
	"github.com/smallbiznis/vetbilling/internal/invoice/document"
	"github.com/smallbiznis/vetbilling/internal/invoice/repository"
	"github.com/smallbiznis/vetbilling/internal/providers/email"
	"github.com/smallbiznis/vetbilling/internal/providers/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testPatientID = "8c4f1b7e-5d2a-4a4c-9a53-0f8e2b6c1d10"

var invoiceNow = time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

type stubPDF struct {
	calls int
}

func (s *stubPDF) GenerateInvoice(context.Context, pdf.InvoiceData) ([]byte, error) {
	s.calls++
	return []byte("%PDF-1.3 stub"), nil
}

type recordingEmail struct {
	sent []email.Message
	err  error
}

func (r *recordingEmail) Send(_ context.Context, msg email.Message) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

type fixture struct {
	svc   *Service
	db    *gorm.DB
	clock *clock.FakeClock
	pdf   *stubPDF
	email *recordingEmail
}

func setup(t *testing.T) fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&invoicedomain.Invoice{}, &invoicedomain.InvoiceItem{}, &invoicedomain.InvoiceSequence{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	gen := &stubPDF{}
	mailer := &recordingEmail{}
	clk := clock.NewFakeClock(invoiceNow)

	renderer := document.NewRenderer(document.Params{
		Log:      zap.NewNop(),
		PDF:      gen,
		Settings: config.NewDocumentSettingsHolder(config.DefaultDocumentSettings()),
	})

	svc := NewService(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Repo:     repository.Provide(),
		Clock:    clk,
		Renderer: renderer,
		Email:    mailer,
	}).(*Service)

	return fixture{svc: svc, db: db, clock: clk, pdf: gen, email: mailer}
}

func rate(v float64) *float64 { return &v }

func createRequest() invoicedomain.CreateInvoiceRequest {
	return invoicedomain.CreateInvoiceRequest{
		PatientID: testPatientID,
		Items: []invoicedomain.ItemInput{
			{Description: "Wellness exam", Quantity: 1, UnitPrice: 65, TaxRate: rate(0.1)},
			{Description: "Rabies vaccine", Quantity: 2, UnitPrice: 25.5, DiscountRate: rate(0.1)},
		},
	}
}

func TestCreate_ComputesTotalsAndNumber(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	first, err := fx.svc.Create(ctx, createRequest())
	require.NoError(t, err)

	assert.Equal(t, "VET-20240305-0001", first.Number)
	assert.Equal(t, invoicedomain.InvoiceStatusDraft, first.Status)
	assert.Equal(t, "USD", first.Currency)
	assert.InDelta(t, 116.0, first.Subtotal, 1e-9)
	assert.InDelta(t, 5.1, first.Discount, 1e-9)
	assert.InDelta(t, 6.5, first.Tax, 1e-9)
	assert.InDelta(t, 117.4, first.Total, 1e-9)
	require.Len(t, first.Items, 2)
	assert.Equal(t, "Wellness exam", first.Items[0].Description)
	assert.InDelta(t, 45.9, first.Items[1].LineTotal, 1e-9)

	second, err := fx.svc.Create(ctx, createRequest())
	require.NoError(t, err)
	assert.Equal(t, "VET-20240305-0002", second.Number)

	fetched, err := fx.svc.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Number, fetched.Number)
	require.Len(t, fetched.Items, 2)
	assert.Equal(t, "Rabies vaccine", fetched.Items[1].Description)
}

func TestCreate_NumberNotReusedAfterDelete(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	first, err := fx.svc.Create(ctx, createRequest())
	require.NoError(t, err)
	second, err := fx.svc.Create(ctx, createRequest())
	require.NoError(t, err)
	assert.Equal(t, "VET-20240305-0002", second.Number)

	require.NoError(t, fx.svc.Delete(ctx, first.ID))

	third, err := fx.svc.Create(ctx, createRequest())
	require.NoError(t, err)
	assert.Equal(t, "VET-20240305-0003", third.Number)

	fourth, err := fx.svc.Create(ctx, createRequest())
	require.NoError(t, err)
	assert.Equal(t, "VET-20240305-0004", fourth.Number)
}

func TestCreate_SequenceRestartsNextDay(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	_, err := fx.svc.Create(ctx, createRequest())
	require.NoError(t, err)

	fx.clock.Advance(24 * time.Hour)
	next, err := fx.svc.Create(ctx, createRequest())
	require.NoError(t, err)
	assert.Equal(t, "VET-20240306-0001", next.Number)
}

func seedNumbers(t *testing.T, db *gorm.DB, numbers ...string) {
	t.Helper()
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	for _, number := range numbers {
		require.NoError(t, db.Create(&invoicedomain.Invoice{
			ID:        node.Generate(),
			Number:    number,
			PatientID: testPatientID,
			Status:    invoicedomain.InvoiceStatusDraft,
			Currency:  "USD",
			CreatedAt: invoiceNow,
			UpdatedAt: invoiceNow,
		}).Error)
	}
}

func TestCreate_SkipsNumbersAlreadyTaken(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	seedNumbers(t, fx.db, "VET-20240305-0001", "VET-20240305-0002")

	created, err := fx.svc.Create(ctx, createRequest())
	require.NoError(t, err)
	assert.Equal(t, "VET-20240305-0003", created.Number)
}

func TestCreate_NumberConflictWhenScopeExhausted(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	var taken []string
	for i := 1; i <= maxNumberAttempts; i++ {
		taken = append(taken, fmt.Sprintf("VET-20240305-%04d", i))
	}
	seedNumbers(t, fx.db, taken...)

	_, err := fx.svc.Create(ctx, createRequest())
	assert.ErrorIs(t, err, invoicedomain.ErrNumberConflict)

	var count int64
	require.NoError(t, fx.db.Model(&invoicedomain.Invoice{}).Count(&count).Error)
	assert.Equal(t, int64(maxNumberAttempts), count)

	created, err := fx.svc.Create(ctx, createRequest())
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("VET-20240305-%04d", maxNumberAttempts+1), created.Number)
}

func TestCreate_NumberUsesUTCDay(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	// 20:00 on March 5th in UTC-8 is already March 6th in UTC.
	pacific := time.FixedZone("UTC-8", -8*60*60)
	fx.svc.clock = clock.NewFakeClock(time.Date(2024, 3, 5, 20, 0, 0, 0, pacific))

	created, err := fx.svc.Create(ctx, createRequest())
	require.NoError(t, err)
	assert.Equal(t, "VET-20240306-0001", created.Number)

	var scopes []string
	require.NoError(t, fx.db.Model(&invoicedomain.InvoiceSequence{}).Pluck("scope", &scopes).Error)
	assert.Equal(t, []string{"VET-20240306-{SEQ4}"}, scopes)
}

func TestCreate_Validation(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*invoicedomain.CreateInvoiceRequest)
		want   error
	}{
		{"bad patient", func(r *invoicedomain.CreateInvoiceRequest) { r.PatientID = "p-1" }, invoicedomain.ErrInvalidPatientID},
		{"bad currency", func(r *invoicedomain.CreateInvoiceRequest) { r.Currency = "ZZZZ" }, invoicedomain.ErrInvalidCurrency},
		{"no items", func(r *invoicedomain.CreateInvoiceRequest) { r.Items = nil }, invoicedomain.ErrEmptyInvoice},
		{"blank description", func(r *invoicedomain.CreateInvoiceRequest) { r.Items[1].Description = "  " }, invoicedomain.ErrInvalidLineItem},
		{"zero quantity", func(r *invoicedomain.CreateInvoiceRequest) { r.Items[0].Quantity = 0 }, invoicedomain.ErrInvalidLineItem},
		{"negative price", func(r *invoicedomain.CreateInvoiceRequest) { r.Items[0].UnitPrice = -1 }, invoicedomain.ErrInvalidLineItem},
		{"tax above one", func(r *invoicedomain.CreateInvoiceRequest) { r.Items[0].TaxRate = rate(1.5) }, invoicedomain.ErrInvalidLineItem},
	}

	for _, tt := range tests {
		req := createRequest()
		tt.mutate(&req)
		_, err := fx.svc.Create(ctx, req)
		assert.ErrorIs(t, err, tt.want, tt.name)
	}

	var count int64
	require.NoError(t, fx.db.Model(&invoicedomain.Invoice{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreate_LineItemErrorNamesField(t *testing.T) {
	fx := setup(t)
	req := createRequest()
	req.Items[1].Quantity = 0

	_, err := fx.svc.Create(context.Background(), req)

	var lineErr *invoicedomain.LineItemError
	require.True(t, errors.As(err, &lineErr))
	assert.Equal(t, 1, lineErr.Index)
	assert.Equal(t, "quantity", lineErr.Field)
}

func TestUpdate_RecomputesWhenItemsChange(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	created, err := fx.svc.Create(ctx, createRequest())
	require.NoError(t, err)

	fx.clock.Advance(time.Hour)
	status := "SENT"
	notes := "pay at front desk"
	updated, err := fx.svc.Update(ctx, invoicedomain.UpdateInvoiceRequest{
		ID:     created.ID,
		Status: &status,
		Notes:  &notes,
		Items: []invoicedomain.ItemInput{
			{Description: "Dental cleaning", Quantity: 1, UnitPrice: 200},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, invoicedomain.InvoiceStatusSent, updated.Status)
	assert.InDelta(t, 200.0, updated.Total, 1e-9)
	require.Len(t, updated.Items, 1)
	assert.Equal(t, invoiceNow.Add(time.Hour), updated.UpdatedAt)

	fetched, err := fx.svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.InDelta(t, 200.0, fetched.Total, 1e-9)
	require.Len(t, fetched.Items, 1)
	require.NotNil(t, fetched.Notes)
	assert.Equal(t, notes, *fetched.Notes)
}

func TestUpdate_Errors(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	created, err := fx.svc.Create(ctx, createRequest())
	require.NoError(t, err)

	bad := "archived"
	_, err = fx.svc.Update(ctx, invoicedomain.UpdateInvoiceRequest{ID: created.ID, Status: &bad})
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidStatus)

	_, err = fx.svc.Update(ctx, invoicedomain.UpdateInvoiceRequest{ID: created.ID, Items: []invoicedomain.ItemInput{}})
	assert.ErrorIs(t, err, invoicedomain.ErrEmptyInvoice)

	_, err = fx.svc.Update(ctx, invoicedomain.UpdateInvoiceRequest{ID: "123"})
	assert.ErrorIs(t, err, invoicedomain.ErrNotFound)

	_, err = fx.svc.Update(ctx, invoicedomain.UpdateInvoiceRequest{ID: "abc"})
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidID)
}

func TestDelete(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	created, err := fx.svc.Create(ctx, createRequest())
	require.NoError(t, err)

	require.NoError(t, fx.svc.Delete(ctx, created.ID))
	assert.ErrorIs(t, fx.svc.Delete(ctx, created.ID), invoicedomain.ErrNotFound)

	_, err = fx.svc.GetByID(ctx, created.ID)
	assert.ErrorIs(t, err, invoicedomain.ErrNotFound)

	var items int64
	require.NoError(t, fx.db.Model(&invoicedomain.InvoiceItem{}).Count(&items).Error)
	assert.Zero(t, items)
}

func TestList_FiltersAndValidation(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := fx.svc.Create(ctx, createRequest())
		require.NoError(t, err)
	}
	other := createRequest()
	other.PatientID = "2b0c7a35-1f7d-4a7e-8c47-2f1e4d1b9c01"
	_, err := fx.svc.Create(ctx, other)
	require.NoError(t, err)

	res, err := fx.svc.List(ctx, invoicedomain.ListInvoiceRequest{PatientID: testPatientID, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Total)
	assert.Len(t, res.Invoices, 2)
	assert.Equal(t, 2, res.Limit)

	res, err = fx.svc.List(ctx, invoicedomain.ListInvoiceRequest{Status: "paid"})
	require.NoError(t, err)
	assert.Zero(t, res.Total)
	assert.Equal(t, invoicedomain.DefaultListLimit, res.Limit)

	start := invoiceNow
	end := invoiceNow.Add(-time.Hour)
	cases := []struct {
		req  invoicedomain.ListInvoiceRequest
		want error
	}{
		{invoicedomain.ListInvoiceRequest{Status: "unknown"}, invoicedomain.ErrInvalidStatus},
		{invoicedomain.ListInvoiceRequest{PatientID: "nope"}, invoicedomain.ErrInvalidPatientID},
		{invoicedomain.ListInvoiceRequest{StartDate: &start, EndDate: &end}, invoicedomain.ErrInvalidDateRange},
		{invoicedomain.ListInvoiceRequest{Limit: 101}, invoicedomain.ErrInvalidLimit},
		{invoicedomain.ListInvoiceRequest{Limit: -1}, invoicedomain.ErrInvalidLimit},
		{invoicedomain.ListInvoiceRequest{Offset: -1}, invoicedomain.ErrInvalidOffset},
	}
	for _, c := range cases {
		_, err := fx.svc.List(ctx, c.req)
		assert.ErrorIs(t, err, c.want)
	}
}

func testDocument() invoicedomain.Document {
	addr := &invoicedomain.Address{Line1: "1 Main St", City: "Salem", State: "OR", PostalCode: "97301", Country: "USA"}
	qty, price, tax := 2.0, 40.0, 0.1
	return invoicedomain.Document{
		Clinic:        &invoicedomain.Party{Name: "Riverside Animal Clinic", Address: addr},
		Client:        &invoicedomain.Party{Name: "Dana Brooks", Address: addr},
		InvoiceNumber: "VET-20240305-0001",
		Date:          "2024-03-05",
		Items: []invoicedomain.DocumentItem{
			{Description: "Boarding", Quantity: &qty, UnitPrice: &price, Currency: "USD", TaxRate: &tax},
		},
	}
}

func TestRenderDocument(t *testing.T) {
	fx := setup(t)

	out, err := fx.svc.RenderDocument(context.Background(), testDocument())
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3 stub", string(out))

	doc := testDocument()
	doc.Items = append(doc.Items, doc.Items[0])
	doc.Items[1].Currency = "EUR"
	_, err = fx.svc.RenderDocument(context.Background(), doc)
	assert.ErrorIs(t, err, invoicedomain.ErrMixedCurrency)
	assert.Equal(t, 1, fx.pdf.calls)
}

func TestEmailDocument_SendsAttachment(t *testing.T) {
	fx := setup(t)

	err := fx.svc.EmailDocument(context.Background(), invoicedomain.EmailDocumentRequest{
		To:       []string{"Dana Brooks <dana@example.com>"},
		Message:  "Thanks for visiting.",
		Document: testDocument(),
	})
	require.NoError(t, err)

	require.Len(t, fx.email.sent, 1)
	msg := fx.email.sent[0]
	assert.Equal(t, []string{"dana@example.com"}, msg.To)
	assert.Equal(t, "Invoice VET-20240305-0001", msg.Subject)
	assert.Equal(t, "invoice_issued", msg.Template)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "invoice-VET-20240305-0001.pdf", msg.Attachments[0].Filename)
	assert.Equal(t, "application/pdf", msg.Attachments[0].ContentType)

	data, ok := msg.Data.(invoiceEmailData)
	require.True(t, ok)
	assert.Equal(t, "$88.00", data.Total)
	assert.Equal(t, "March 05, 2024", data.Date)
}

func TestEmailDocument_Errors(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	err := fx.svc.EmailDocument(ctx, invoicedomain.EmailDocumentRequest{Document: testDocument()})
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidRecipient)

	err = fx.svc.EmailDocument(ctx, invoicedomain.EmailDocumentRequest{To: []string{"not-an-address"}, Document: testDocument()})
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidRecipient)
	assert.Zero(t, fx.pdf.calls)

	fx.email.err = email.ErrInvalidMessage
	err = fx.svc.EmailDocument(ctx, invoicedomain.EmailDocumentRequest{To: []string{"a@example.com"}, Document: testDocument()})
	assert.ErrorIs(t, err, email.ErrInvalidMessage)
}

func TestCalculateTotals_EmptyInput(t *testing.T) {
	fx := setup(t)

	totals, err := fx.svc.CalculateTotals(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, totals.Lines)
	assert.Zero(t, totals.Total)
}
