package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 250
)

// Entry is a request about to be recorded. Body is the decoded request
// payload and is sanitized before it is stored.
type Entry struct {
	ActorID  *string
	Route    string
	Method   string
	Body     any
	Metadata map[string]any
}

type ListAuditLogRequest struct {
	Method  string
	ActorID string
	StartAt *time.Time
	EndAt   *time.Time
	Limit   int
	Offset  int
}

type ListAuditLogResponse struct {
	AuditLogs []AuditLog `json:"audit_logs"`
	Total     int64      `json:"total"`
	Limit     int        `json:"limit"`
	Offset    int        `json:"offset"`
}

type Service interface {
	Record(ctx context.Context, entry Entry) error
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

type ListFilter struct {
	Method  string
	ActorID string
	StartAt *time.Time
	EndAt   *time.Time
	Limit   int
	Offset  int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]AuditLog, int64, error)
}

var (
	ErrInvalidMethod    = errors.New("invalid_method")
	ErrInvalidTimeRange = errors.New("invalid_time_range")
	ErrInvalidLimit     = errors.New("invalid_limit")
	ErrInvalidOffset    = errors.New("invalid_offset")
)
