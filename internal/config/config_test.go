package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("CORS_ORIGINS", "https://clinic.example, https://admin.example ,")
	t.Setenv("RATE_LIMIT_REQUESTS", "50")
	t.Setenv("RATE_LIMIT_WINDOW_SECONDS", "60")
	t.Setenv("EMAIL_ENABLED", "yes")
	t.Setenv("EMAIL_PORT", "not-a-number")
	t.Setenv("OTEL_SAMPLING_RATIO", "2.5")
	t.Setenv("LOG_LEVEL", " DEBUG ")

	cfg := Load()

	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, []string{"https://clinic.example", "https://admin.example"}, cfg.CORSOrigins)
	assert.Equal(t, 50, cfg.RateLimit.Requests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.True(t, cfg.Email.Enabled)
	assert.Equal(t, 587, cfg.Email.SMTPPort)
	assert.Equal(t, 0.1, cfg.Telemetry.SamplingRatio)
	assert.Equal(t, "debug", cfg.Telemetry.LogLevel)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("MAX_LOG_BODY_LENGTH", "")
	t.Setenv("MAX_LOG_ROUTE_LENGTH", "")

	cfg := Load()

	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 10000, cfg.Audit.MaxBodyLength)
	assert.Equal(t, 2048, cfg.Audit.MaxRouteLength)
}

func TestLoadDocumentSettingsDefaultsWithoutFile(t *testing.T) {
	holder, err := LoadDocumentSettings(Config{DocumentConfigPaths: []string{t.TempDir()}}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, DefaultDocumentSettings(), holder.Get())
}

func TestLoadDocumentSettingsFromFile(t *testing.T) {
	dir := t.TempDir()
	content := "document:\n  maxBytes: 2048\n  pageNumbers: false\n  creator: Riverside Vet\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "document.yml"), []byte(content), 0o600))

	holder, err := LoadDocumentSettings(Config{DocumentConfigPaths: []string{dir}}, zap.NewNop())
	require.NoError(t, err)

	got := holder.Get()
	assert.Equal(t, 2048, got.MaxBytes)
	assert.False(t, got.PageNumbers)
	assert.Equal(t, "Riverside Vet", got.Creator)
}

func TestLoadDocumentSettingsRejectsInvalidSize(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "document.yml"), []byte("document:\n  maxBytes: 0\n"), 0o600))

	_, err := LoadDocumentSettings(Config{DocumentConfigPaths: []string{dir}}, zap.NewNop())
	assert.Error(t, err)
}
