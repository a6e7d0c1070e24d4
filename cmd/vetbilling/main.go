package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vetbilling/internal/clock"
	"github.com/smallbiznis/vetbilling/internal/config"
	"github.com/smallbiznis/vetbilling/internal/migration"
	"github.com/smallbiznis/vetbilling/internal/observability"
	"github.com/smallbiznis/vetbilling/internal/server"
	"github.com/smallbiznis/vetbilling/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Schema must exist before the casbin enforcer seeds policies.
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
