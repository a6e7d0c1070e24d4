package service

import (
	"context"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/vetbilling/internal/audit/domain"
	"github.com/smallbiznis/vetbilling/internal/audit/masking"
	"github.com/smallbiznis/vetbilling/internal/clock"
	"github.com/smallbiznis/vetbilling/internal/config"
	"github.com/smallbiznis/vetbilling/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    auditdomain.Repository
	Clock   clock.Clock
	Config  config.Config
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    auditdomain.Repository
	clock   clock.Clock
	metrics *metrics.Metrics

	maxBodyLength  int
	maxRouteLength int
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("audit.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		clock:   p.Clock,
		metrics: p.Metrics,

		maxBodyLength:  p.Config.Audit.MaxBodyLength,
		maxRouteLength: p.Config.Audit.MaxRouteLength,
	}
}

func (s *Service) Record(ctx context.Context, entry auditdomain.Entry) error {
	method := strings.ToUpper(strings.TrimSpace(entry.Method))
	if method == "" {
		return auditdomain.ErrInvalidMethod
	}

	log := auditdomain.AuditLog{
		ID:        s.genID.Generate(),
		ActorID:   normalizePointer(entry.ActorID),
		Route:     masking.Truncate(entry.Route, s.maxRouteLength),
		Method:    method,
		Body:      masking.EncodeBody(entry.Body, s.maxBodyLength),
		CreatedAt: s.clock.Now(),
	}
	if len(entry.Metadata) > 0 {
		log.Metadata = datatypes.JSONMap(entry.Metadata)
	}

	if err := s.repo.Insert(ctx, s.db, &log); err != nil {
		s.log.Warn("failed to write audit log",
			zap.String("method", method),
			zap.String("route", log.Route),
			zap.Error(err),
		)
		s.metrics.RecordAuditWrite(ctx, method, false)
		return err
	}
	s.metrics.RecordAuditWrite(ctx, method, true)
	return nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidTimeRange
	}
	if method := strings.TrimSpace(req.Method); method != "" && !IsWriteMethod(method) {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidMethod
	}

	limit := req.Limit
	if limit == 0 {
		limit = auditdomain.DefaultListLimit
	}
	if limit < 1 || limit > auditdomain.MaxListLimit {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidLimit
	}
	if req.Offset < 0 {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidOffset
	}

	logs, total, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		Method:  req.Method,
		ActorID: req.ActorID,
		StartAt: req.StartAt,
		EndAt:   req.EndAt,
		Limit:   limit,
		Offset:  req.Offset,
	})
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}
	if logs == nil {
		logs = []auditdomain.AuditLog{}
	}

	return auditdomain.ListAuditLogResponse{
		AuditLogs: logs,
		Total:     total,
		Limit:     limit,
		Offset:    req.Offset,
	}, nil
}

// IsWriteMethod reports whether requests with method are audited.
func IsWriteMethod(method string) bool {
	switch strings.ToUpper(strings.TrimSpace(method)) {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

func normalizePointer(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
