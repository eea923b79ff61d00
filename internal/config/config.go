package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go-hospitality/internal/utils"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config is everything the server reads from the environment.
type Config struct {
	Env               string
	LogLevel          string
	Port              string
	BaseURL           string
	AllowedOrigins    []string
	TrustedProxies    []string
	AllowRegistration bool

	DatabaseDriver string
	DatabaseURL    string

	JWTSecret string
	TokenTTL  time.Duration

	RealPay RealPayConfig
	Fees    FeeConfig

	RateLimitRequests int
	RateLimitWindow   time.Duration

	SnowflakeNode int64
}

// RealPayConfig holds the disbursement gateway credentials.
type RealPayConfig struct {
	BaseURL       string
	APIKey        string
	MerchantID    string
	WebhookSecret string
	MockMode      bool
	Timeout       time.Duration
}

// FeeConfig holds the percentages deducted from each settled payment.
type FeeConfig struct {
	GatewayPercent  decimal.Decimal
	PlatformPercent decimal.Decimal
}

// Load reads .env (if present) and the process environment.
// The returned bool reports whether a .env file was found.
func Load() (*Config, bool, error) {
	foundDotenv := godotenv.Load() == nil

	cfg := &Config{
		Env:               getEnv("APP_ENV", "production"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		Port:              getEnv("PORT", "8080"),
		AllowRegistration: os.Getenv("ALLOW_REGISTRATION") == "true",
		DatabaseDriver:    getEnv("DATABASE_DRIVER", "postgres"),
		DatabaseURL:       firstEnv("DATABASE_URL", "NEON_DATABASE_URL", "DB_DSN"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		RealPay: RealPayConfig{
			BaseURL:       getEnv("REALPAY_BASE_URL", "https://api.realpay.co.za"),
			APIKey:        os.Getenv("REALPAY_API_KEY"),
			MerchantID:    os.Getenv("REALPAY_MERCHANT_ID"),
			WebhookSecret: os.Getenv("REALPAY_WEBHOOK_SECRET"),
			MockMode:      os.Getenv("REALPAY_MOCK_MODE") == "true",
		},
	}
	cfg.BaseURL = getEnv("BASE_URL", "http://localhost:"+cfg.Port)
	cfg.AllowedOrigins = splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173"))
	cfg.TrustedProxies = splitList(os.Getenv("TRUSTED_PROXIES"))

	var err error
	if cfg.TokenTTL, err = getDuration("TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, foundDotenv, err
	}
	if cfg.RealPay.Timeout, err = getDuration("REALPAY_TIMEOUT", 30*time.Second); err != nil {
		return nil, foundDotenv, err
	}
	if cfg.RateLimitWindow, err = getDuration("RATE_LIMIT_WINDOW", time.Minute); err != nil {
		return nil, foundDotenv, err
	}
	if cfg.RateLimitRequests, err = getInt("RATE_LIMIT_REQUESTS", 30); err != nil {
		return nil, foundDotenv, err
	}
	node, err := getInt("SNOWFLAKE_NODE", -1)
	if err != nil {
		return nil, foundDotenv, err
	}
	cfg.SnowflakeNode = int64(node)
	if os.Getenv("SNOWFLAKE_NODE") == "" {
		cfg.SnowflakeNode = utils.NodeID()
	}
	if cfg.Fees.GatewayPercent, err = getDecimal("GATEWAY_FEE_PERCENT", "2.9"); err != nil {
		return nil, foundDotenv, err
	}
	if cfg.Fees.PlatformPercent, err = getDecimal("PLATFORM_FEE_PERCENT", "1.0"); err != nil {
		return nil, foundDotenv, err
	}

	return cfg, foundDotenv, cfg.Validate()
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL (or NEON_DATABASE_URL) is required"))
	}
	switch c.DatabaseDriver {
	case "postgres", "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver))
	}
	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters"))
	}
	if !c.RealPay.MockMode && (c.RealPay.APIKey == "" || c.RealPay.MerchantID == "") {
		errs = append(errs, errors.New("REALPAY_API_KEY and REALPAY_MERCHANT_ID are required unless REALPAY_MOCK_MODE=true"))
	}
	if c.RateLimitRequests <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS must be positive"))
	}
	if c.SnowflakeNode < 0 || c.SnowflakeNode > 1023 {
		errs = append(errs, errors.New("SNOWFLAKE_NODE must be between 0 and 1023"))
	}
	return errors.Join(errs...)
}

// IsDevelopment reports whether APP_ENV is development.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getDecimal(key, fallback string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(getEnv(key, fallback))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
