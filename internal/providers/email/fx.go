package email

import (
	"github.com/smallbiznis/vetbilling/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.email",
	fx.Provide(LoadTemplates),
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config, templates *Templates, log *zap.Logger) (Provider, error) {
	if !cfg.Email.Enabled {
		return NewNoOp(log), nil
	}
	return NewSMTP(Config{
		Host:     cfg.Email.SMTPHost,
		Port:     cfg.Email.SMTPPort,
		Username: cfg.Email.SMTPUsername,
		Password: cfg.Email.SMTPPassword,
		From:     cfg.Email.SMTPFrom,
	}, templates)
}
