package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/vetbilling/internal/audit"
	auditdomain "github.com/smallbiznis/vetbilling/internal/audit/domain"
	"github.com/smallbiznis/vetbilling/internal/auth"
	"github.com/smallbiznis/vetbilling/internal/authorization"
	"github.com/smallbiznis/vetbilling/internal/config"
	"github.com/smallbiznis/vetbilling/internal/invoice"
	invoicedomain "github.com/smallbiznis/vetbilling/internal/invoice/domain"
	"github.com/smallbiznis/vetbilling/internal/observability"
	obslogger "github.com/smallbiznis/vetbilling/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/vetbilling/internal/observability/metrics"
	obstracing "github.com/smallbiznis/vetbilling/internal/observability/tracing"
	"github.com/smallbiznis/vetbilling/internal/providers/email"
	"github.com/smallbiznis/vetbilling/internal/providers/pdf"
	"github.com/smallbiznis/vetbilling/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	authorization.Module,
	audit.Module,
	auth.Module,
	email.Module,
	pdf.Module,
	invoice.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

type EngineParams struct {
	fx.In

	Config      config.Config
	ObsConfig   observability.Config
	Log         *zap.Logger
	HTTPMetrics *obsmetrics.HTTPMetrics
}

func NewEngine(p EngineParams) *gin.Engine {
	if p.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(p.Log, obslogger.MiddlewareConfig{
		Debug:           p.ObsConfig.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(p.HTTPMetrics.Middleware())
	r.Use(CORSMiddleware(p.Config.CORSOrigins))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(p.HTTPMetrics.Handler()))

	return r
}

func registerGin(p EngineParams) *gin.Engine {
	return NewEngine(p)
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, r *gin.Engine) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	log        *zap.Logger
	verifier   *auth.Verifier
	authzSvc   authorization.Service
	auditSvc   auditdomain.Service
	invoiceSvc invoicedomain.Service
	limiter    ratelimit.Limiter
	obsMetrics *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	Verifier   *auth.Verifier
	AuthzSvc   authorization.Service
	AuditSvc   auditdomain.Service
	InvoiceSvc invoicedomain.Service
	Limiter    ratelimit.Limiter   `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		log:        p.Log.Named("http.server"),
		verifier:   p.Verifier,
		authzSvc:   p.AuthzSvc,
		auditSvc:   p.AuditSvc,
		invoiceSvc: p.InvoiceSvc,
		limiter:    p.Limiter,
		obsMetrics: p.ObsMetrics,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")
	api.Use(s.RateLimit())
	api.Use(s.AuditWrites())
	api.Use(s.AuthRequired())

	// -------- Invoices --------
	api.POST("/invoices/totals", s.authorize(authorization.ObjectInvoice, authorization.ActionView), s.CalculateInvoiceTotals)
	api.POST("/invoices/pdf", s.authorize(authorization.ObjectInvoice, authorization.ActionRender), s.RenderInvoicePDF)
	api.POST("/invoices/email", s.authorize(authorization.ObjectInvoice, authorization.ActionEmail), s.EmailInvoice)

	api.GET("/invoices", s.authorize(authorization.ObjectInvoice, authorization.ActionView), s.ListInvoices)
	api.POST("/invoices", s.authorize(authorization.ObjectInvoice, authorization.ActionCreate), s.CreateInvoice)
	api.GET("/invoices/:id", s.authorize(authorization.ObjectInvoice, authorization.ActionView), s.GetInvoiceByID)
	api.PUT("/invoices/:id", s.authorize(authorization.ObjectInvoice, authorization.ActionUpdate), s.UpdateInvoice)
	api.DELETE("/invoices/:id", s.authorize(authorization.ObjectInvoice, authorization.ActionDelete), s.DeleteInvoice)

	// -------- Audit --------
	api.GET("/audit-logs", s.authorize(authorization.ObjectAuditLog, authorization.ActionView), s.ListAuditLogs)
}
