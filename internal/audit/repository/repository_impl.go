package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/vetbilling/internal/audit/domain"
	"github.com/smallbiznis/vetbilling/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.AuditLog, int64, error) {
	stmt := db.WithContext(ctx).Model(&domain.AuditLog{})

	if method := strings.TrimSpace(filter.Method); method != "" {
		stmt = stmt.Where("method = ?", strings.ToUpper(method))
	}
	if actorID := strings.TrimSpace(filter.ActorID); actorID != "" {
		stmt = stmt.Where("actor_id = ?", actorID)
	}
	if filter.StartAt != nil {
		stmt = stmt.Where("created_at >= ?", filter.StartAt.UTC())
	}
	if filter.EndAt != nil {
		stmt = stmt.Where("created_at <= ?", filter.EndAt.UTC())
	}

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []domain.AuditLog
	page := pagination.Offset{Limit: filter.Limit, Offset: filter.Offset}
	if err := page.Apply(stmt.Order("created_at desc, id desc")).Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
