package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, 5*time.Minute, cfg.StockCacheTTL)
	require.Equal(t, "EUR", cfg.DefaultCurrency)
	require.False(t, cfg.AllowNegativeStock)
	require.Equal(t, 168*time.Hour, cfg.IdempotencyRetention)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("ALLOW_NEGATIVE_STOCK", "true")
	t.Setenv("STOCK_CACHE_TTL", "30s")
	t.Setenv("DEFAULT_CURRENCY", "USD")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
	require.True(t, cfg.AllowNegativeStock)
	require.Equal(t, 30*time.Second, cfg.StockCacheTTL)
	require.Equal(t, "USD", cfg.DefaultCurrency)
}

func TestLoadConfigRejectsBadCurrency(t *testing.T) {
	t.Setenv("DEFAULT_CURRENCY", "EURO")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigRejectsZeroRetention(t *testing.T) {
	t.Setenv("IDEMPOTENCY_RETENTION", "0s")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestRefreshTestMode(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	require.True(t, InTestMode())
	t.Setenv(testModeEnv, "0")
	RefreshTestMode()
	require.False(t, InTestMode())
}
