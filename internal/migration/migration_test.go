package migration

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	auditdomain "github.com/smallbiznis/vetbilling/internal/audit/domain"
	invoicedomain "github.com/smallbiznis/vetbilling/internal/invoice/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestAutoMigrateCreatesTables(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, AutoMigrate(conn))
	require.NoError(t, AutoMigrate(conn))

	for _, model := range []any{&invoicedomain.Invoice{}, &invoicedomain.InvoiceItem{}, &invoicedomain.InvoiceSequence{}, &auditdomain.AuditLog{}} {
		assert.True(t, conn.Migrator().HasTable(model))
	}
	assert.True(t, conn.Migrator().HasIndex(&invoicedomain.Invoice{}, "Number"))
}

func TestRunMigrationsRequiresHandle(t *testing.T) {
	assert.Error(t, RunMigrations(nil))
}

func TestAutoMigrateKeepsMoneyPrecision(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(conn))

	now := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	require.NoError(t, conn.Create(&invoicedomain.Invoice{
		ID:        1,
		Number:    "VET-20240305-0001",
		PatientID: "8c4f1b7e-5d2a-4a4c-9a53-0f8e2b6c1d10",
		Status:    invoicedomain.InvoiceStatusDraft,
		Currency:  "USD",
		Subtotal:  116,
		Discount:  5.1,
		Tax:       6.5,
		Total:     117.4,
		CreatedAt: now,
		UpdatedAt: now,
	}).Error)

	require.NoError(t, AutoMigrate(conn))

	var stored invoicedomain.Invoice
	require.NoError(t, conn.Take(&stored, "id = ?", 1).Error)
	assert.InDelta(t, 117.4, stored.Total, 1e-9)
	assert.InDelta(t, 5.1, stored.Discount, 1e-9)
}
