package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vetbilling/internal/invoice/domain"
	"github.com/smallbiznis/vetbilling/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Create(invoice).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := db.WithContext(ctx).
		Preload("Items", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("position asc")
		}).
		Where("id = ?", id).
		First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Invoice, int64, error) {
	stmt := db.WithContext(ctx).Model(&domain.Invoice{})
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if patientID := strings.TrimSpace(filter.PatientID); patientID != "" {
		stmt = stmt.Where("patient_id = ?", patientID)
	}
	if filter.StartDate != nil {
		stmt = stmt.Where("created_at >= ?", filter.StartDate.UTC())
	}
	if filter.EndDate != nil {
		stmt = stmt.Where("created_at <= ?", filter.EndDate.UTC())
	}

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var invoices []domain.Invoice
	page := pagination.Offset{Limit: filter.Limit, Offset: filter.Offset}
	err := page.Apply(stmt.Order("created_at desc, id desc")).
		Preload("Items", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("position asc")
		}).
		Find(&invoices).Error
	if err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

// NextSequence advances the counter for scope and returns the new value.
// The upsert and read run in their own transaction so concurrent callers
// never see the same value, and a later failed insert leaves a gap rather
// than a reused number.
func (r *repo) NextSequence(ctx context.Context, db *gorm.DB, scope string) (int64, error) {
	var next int64
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := domain.InvoiceSequence{Scope: scope, Counter: 1}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "scope"}},
			DoUpdates: clause.Assignments(map[string]any{"counter": gorm.Expr("invoice_sequences.counter + 1")}),
		}).Create(&row).Error
		if err != nil {
			return err
		}

		var current domain.InvoiceSequence
		if err := tx.Where("scope = ?", scope).Take(&current).Error; err != nil {
			return err
		}
		next = current.Counter
		return nil
	})
	return next, err
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("id = ?", invoice.ID).
		Updates(map[string]any{
			"status":     invoice.Status,
			"subtotal":   invoice.Subtotal,
			"discount":   invoice.Discount,
			"tax":        invoice.Tax,
			"total":      invoice.Total,
			"due_date":   invoice.DueDate,
			"notes":      invoice.Notes,
			"updated_at": invoice.UpdatedAt,
		}).Error
}

func (r *repo) ReplaceItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, items []domain.InvoiceItem) error {
	if err := db.WithContext(ctx).Where("invoice_id = ?", invoiceID).Delete(&domain.InvoiceItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&items).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	if err := db.WithContext(ctx).Where("invoice_id = ?", id).Delete(&domain.InvoiceItem{}).Error; err != nil {
		return false, err
	}
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Invoice{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
