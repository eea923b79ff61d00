package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/hospitality")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123")
	t.Setenv("REALPAY_MOCK_MODE", "true")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, _, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.AllowedOrigins)
	assert.Equal(t, 30*time.Second, cfg.RealPay.Timeout)
	assert.Equal(t, "2.9", cfg.Fees.GatewayPercent.String())
	assert.Equal(t, 30, cfg.RateLimitRequests)
	assert.False(t, cfg.AllowRegistration)
	assert.True(t, cfg.SnowflakeNode >= 0 && cfg.SnowflakeNode < 1024)
}

func TestLoad_NeonFallback(t *testing.T) {
	setRequired(t)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("NEON_DATABASE_URL", "postgres://neon/db")

	cfg, _, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://neon/db", cfg.DatabaseURL)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad driver", "DATABASE_DRIVER", "oracle"},
		{"short secret", "JWT_SECRET", "short"},
		{"bad timeout", "REALPAY_TIMEOUT", "soon"},
		{"bad fee", "GATEWAY_FEE_PERCENT", "abc"},
		{"zero limit", "RATE_LIMIT_REQUESTS", "0"},
		{"node out of range", "SNOWFLAKE_NODE", "2048"},
		{"missing gateway creds", "REALPAY_MOCK_MODE", "false"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.val)

			_, _, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_AllowedOrigins(t *testing.T) {
	setRequired(t)
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")

	cfg, _, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
}

func TestLoad_TrustedProxies(t *testing.T) {
	setRequired(t)
	t.Setenv("TRUSTED_PROXIES", "")

	cfg, _, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.TrustedProxies)

	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.10")
	cfg, _, err = Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.1.10"}, cfg.TrustedProxies)
}
