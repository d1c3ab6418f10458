package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/hotel-broker/internal/domain"
)

// chdirTemp runs the test from an empty directory so no stray .env is read.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "hotel-broker", cfg.AppName)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 10, cfg.Pricing.MinMarginPercent)
	assert.Equal(t, 5, cfg.Pricing.SpecialDiscountPercent)
	assert.Equal(t, 30, cfg.Pricing.PrepayPercent)
	assert.Equal(t, 10*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.FluentBit.Enabled)
	assert.Empty(t, cfg.Payment.Partners)
	assert.Empty(t, cfg.ContractsDir)
}

func TestLoad_FromEnvironment(t *testing.T) {
	chdirTemp(t)
	t.Setenv("PORT", "9000")
	t.Setenv("MIN_MARGIN_PERCENT", "12")
	t.Setenv("UPSTREAM_TIMEOUT", "3s")
	t.Setenv("PAYMENT_PARTNER_SOURCES", "partner.example=PARTNER, other.test=OTHER")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("FLUENTBIT_ENABLED", "true")
	t.Setenv("FLUENTBIT_HOST", "fluent-bit")
	t.Setenv("CONTRACTS_DIR", "/etc/hotel-broker/contracts")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 12, cfg.Pricing.MinMarginPercent)
	assert.Equal(t, 3*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, map[string]string{"partner.example": "PARTNER", "other.test": "OTHER"}, cfg.Payment.Partners)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 24224, cfg.FluentBit.Port)
	assert.Equal(t, "/etc/hotel-broker/contracts", cfg.ContractsDir)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "broker.env")
	require.NoError(t, os.WriteFile(path, []byte("APP_NAME=from-file\nPREPAY_PERCENT=50\n"), 0o644))
	t.Setenv("APP_NAME", "")
	require.NoError(t, os.Unsetenv("APP_NAME"))
	t.Setenv("PREPAY_PERCENT", "")
	require.NoError(t, os.Unsetenv("PREPAY_PERCENT"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.AppName)
	assert.Equal(t, 50, cfg.Pricing.PrepayPercent)

	_, err = Load(filepath.Join(dir, "missing.env"))
	assert.Error(t, err, "an explicit env file must exist")
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad int", map[string]string{"MIN_MARGIN_PERCENT": "ten"}},
		{"bad bool", map[string]string{"TRACING_STDOUT": "maybe"}},
		{"bad duration", map[string]string{"UPSTREAM_TIMEOUT": "soon"}},
		{"negative timeout", map[string]string{"UPSTREAM_TIMEOUT": "-1s"}},
		{"fluent without host", map[string]string{"FLUENTBIT_ENABLED": "true", "FLUENTBIT_HOST": ""}},
		{"bad partners", map[string]string{"PAYMENT_PARTNER_SOURCES": "partner.example"}},
		{"empty default source", map[string]string{"PAYMENT_DEFAULT_SOURCE": ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdirTemp(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}

	t.Run("pricing out of range", func(t *testing.T) {
		chdirTemp(t)
		t.Setenv("SPECIAL_DISCOUNT_PERCENT", "150")
		_, err := Load()
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}
