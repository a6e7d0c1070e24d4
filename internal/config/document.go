package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// DocumentSettings tunes invoice document output without a redeploy.
type DocumentSettings struct {
	MaxBytes    int    `mapstructure:"maxBytes"`
	PageNumbers bool   `mapstructure:"pageNumbers"`
	Creator     string `mapstructure:"creator"`
}

func DefaultDocumentSettings() DocumentSettings {
	return DocumentSettings{
		MaxBytes:    10 << 20,
		PageNumbers: true,
		Creator:     "vetbilling",
	}
}

type DocumentSettingsHolder struct {
	current atomic.Value // holds DocumentSettings
}

// NewDocumentSettingsHolder returns a holder pinned to settings.
func NewDocumentSettingsHolder(settings DocumentSettings) *DocumentSettingsHolder {
	holder := &DocumentSettingsHolder{}
	holder.current.Store(settings)
	return holder
}

// LoadDocumentSettings reads document.yml from the configured paths and
// keeps watching it. A missing file falls back to defaults.
func LoadDocumentSettings(cfg Config, log *zap.Logger) (*DocumentSettingsHolder, error) {
	log = log.Named("config.document")

	v := viper.New()
	v.SetConfigName("document")
	v.SetConfigType("yml")
	for _, path := range cfg.DocumentConfigPaths {
		v.AddConfigPath(path)
	}

	v.SetEnvPrefix("VETBILLING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultDocumentSettings()
	v.SetDefault("document.maxBytes", defaults.MaxBytes)
	v.SetDefault("document.pageNumbers", defaults.PageNumbers)
	v.SetDefault("document.creator", defaults.Creator)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileFound = false
	}

	var settings DocumentSettings
	if err := v.UnmarshalKey("document", &settings); err != nil {
		return nil, err
	}
	if err := validateDocumentSettings(settings); err != nil {
		return nil, err
	}

	holder := NewDocumentSettingsHolder(settings)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated DocumentSettings
		if err := v.UnmarshalKey("document", &updated); err != nil {
			log.Warn("document settings reload failed", zap.Error(err))
			return
		}
		if err := validateDocumentSettings(updated); err != nil {
			log.Warn("invalid document settings ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("document settings reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *DocumentSettingsHolder) Get() DocumentSettings {
	return h.current.Load().(DocumentSettings)
}

func validateDocumentSettings(s DocumentSettings) error {
	if s.MaxBytes <= 0 {
		return errors.New("document.maxBytes must be positive")
	}
	return nil
}
