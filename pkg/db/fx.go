package db

import (
	"context"
	"time"

	obslogger "github.com/smallbiznis/vetbilling/internal/observability/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	gormprometheus "gorm.io/plugin/prometheus"
)

var Module = fx.Module("db",
	fx.Provide(ConfigFrom),
	fx.Provide(Open),
)

// Open connects to the configured database and closes it on shutdown.
func Open(lc fx.Lifecycle, cfg Config, log *zap.Logger) (*gorm.DB, error) {
	dialector, err := Dialect(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger: obslogger.NewGormLogger(log, gormLoggerConfig(cfg)),
	})
	if err != nil {
		return nil, err
	}

	if err := instrument(conn, cfg); err != nil {
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConn)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConn)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Second)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("closing database connection")
			return sqlDB.Close()
		},
	})

	log.Info("database connected", zap.String("type", cfg.Type), zap.String("host", cfg.Host))
	return conn, nil
}


func gormLoggerConfig(cfg Config) obslogger.GormLoggerConfig {
	out := obslogger.DefaultGormLoggerConfig()
	if cfg.SlowQuery > 0 {
		out.SlowThreshold = cfg.SlowQuery
	}
	if cfg.LogQueries {
		out.Level = gormlogger.Info
	}
	return out
}

// instrument adds query spans and connection pool gauges. Spans never carry
// bound values; pool gauges land in the default Prometheus registry that
// /metrics also serves.
func instrument(conn *gorm.DB, cfg Config) error {
	if err := conn.Use(otelgorm.NewPlugin(
		otelgorm.WithDBName(cfg.Name),
		otelgorm.WithoutQueryVariables(),
	)); err != nil {
		return err
	}
	return conn.Use(gormprometheus.New(gormprometheus.Config{
		DBName:          cfg.Name,
		RefreshInterval: 15,
		Labels:          map[string]string{"dialect": cfg.Type},
	}))
}
