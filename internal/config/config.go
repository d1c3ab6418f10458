// Package config loads the process configuration from the environment,
// optionally seeded from a .env file. The result is validated once and not
// modified afterwards.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/yourorg/hotel-broker/internal/pricing"
	"github.com/yourorg/hotel-broker/internal/settlement"
)

// Config holds the whole application configuration.
type Config struct {
	AppName string
	Port    string

	Log           LogConfig
	FluentBit     FluentBitConfig
	TracingStdout bool

	Pricing           pricing.Options
	SpecialHotelRules string
	CategoryMapPath   string
	// ContractsDir holds request schema overrides; empty uses the built-in ones.
	ContractsDir string

	Inventory InventoryConfig
	GeocodeA  GeocodeConfig
	GeocodeB  GeocodeConfig
	Payment   PaymentConfig

	UpstreamTimeout    time.Duration
	CORSAllowedOrigins []string
	// SettlementHistory bounds the decisions kept for the retrospective report.
	SettlementHistory int
}

type LogConfig struct {
	Level  string
	Format string
}

type FluentBitConfig struct {
	Enabled bool
	Host    string
	Port    int
}

type InventoryConfig struct {
	URL    string
	APIKey string
	Secret string
}

type GeocodeConfig struct {
	URL    string
	APIKey string
}

type PaymentConfig struct {
	URL           string
	MerchantID    string
	APIKey        string
	DefaultSource string
	// Partners maps partner domains to gateway source codes.
	Partners map[string]string
}

// Load reads the configuration. An explicit envPath must exist; without one
// a missing ./.env is ignored and only the process environment is used.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("config: could not load env file %s: %w", envPath[0], err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: could not load .env: %w", err)
	}

	p := &parser{}
	cfg := &Config{
		AppName: getEnv("APP_NAME", "hotel-broker"),
		Port:    getEnv("PORT", "8080"),
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		TracingStdout: p.bool("TRACING_STDOUT", false),
		Pricing: pricing.Options{
			MinMarginPercent:       p.int("MIN_MARGIN_PERCENT", pricing.DefaultOptions().MinMarginPercent),
			SpecialDiscountPercent: p.int("SPECIAL_DISCOUNT_PERCENT", pricing.DefaultOptions().SpecialDiscountPercent),
			PrepayPercent:          p.int("PREPAY_PERCENT", pricing.DefaultOptions().PrepayPercent),
		},
		SpecialHotelRules: getEnv("SPECIAL_HOTEL_RULES", ""),
		CategoryMapPath:   getEnv("CATEGORY_MAP_PATH", ""),
		ContractsDir:      getEnv("CONTRACTS_DIR", ""),
		Inventory: InventoryConfig{
			URL:    getEnv("INVENTORY_URL", "http://localhost:9101"),
			APIKey: getEnv("INVENTORY_API_KEY", ""),
			Secret: getEnv("INVENTORY_SECRET", ""),
		},
		GeocodeA: GeocodeConfig{
			URL:    getEnv("GEOCODE_A_URL", "http://localhost:9102"),
			APIKey: getEnv("GEOCODE_A_API_KEY", ""),
		},
		GeocodeB: GeocodeConfig{
			URL: getEnv("GEOCODE_B_URL", "http://localhost:9103"),
		},
		Payment: PaymentConfig{
			URL:           getEnv("PAYMENT_URL", "http://localhost:9104"),
			MerchantID:    getEnv("PAYMENT_MERCHANT_ID", ""),
			APIKey:        getEnv("PAYMENT_API_KEY", ""),
			DefaultSource: getEnv("PAYMENT_DEFAULT_SOURCE", "Default"),
		},
		UpstreamTimeout:    p.duration("UPSTREAM_TIMEOUT", 10*time.Second),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		SettlementHistory:  p.int("SETTLEMENT_HISTORY", 1000),
	}

	cfg.FluentBit.Enabled = p.bool("FLUENTBIT_ENABLED", false)
	if cfg.FluentBit.Enabled {
		cfg.FluentBit.Host = os.Getenv("FLUENTBIT_HOST")
		if cfg.FluentBit.Host == "" {
			p.errs = append(p.errs, errors.New("FLUENTBIT_HOST is required when FLUENTBIT_ENABLED is true"))
		}
		cfg.FluentBit.Port = p.int("FLUENTBIT_PORT", 24224)
	}

	partners, err := settlement.ParsePartners(getEnv("PAYMENT_PARTNER_SOURCES", ""))
	if err != nil {
		p.errs = append(p.errs, err)
	}
	cfg.Payment.Partners = partners

	if err := errors.Join(p.errs...); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if err := c.Pricing.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("config: UPSTREAM_TIMEOUT must be positive, got %s", c.UpstreamTimeout)
	}
	if c.Payment.DefaultSource == "" {
		return errors.New("config: PAYMENT_DEFAULT_SOURCE is required")
	}
	return nil
}

// getEnv returns the value of key or fallback when it is unset.
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// parser collects every malformed variable instead of stopping at the first.
type parser struct {
	errs []error
}

func (p *parser) int(key string, defaultValue int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(strings.TrimSpace(valueStr))
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s=%q is not an integer", key, valueStr))
		return defaultValue
	}
	return v
}

func (p *parser) bool(key string, defaultValue bool) bool {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(strings.TrimSpace(valueStr))
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s=%q is not a boolean", key, valueStr))
		return defaultValue
	}
	return v
}

func (p *parser) duration(key string, defaultValue time.Duration) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue
	}
	v, err := time.ParseDuration(strings.TrimSpace(valueStr))
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s=%q is not a duration", key, valueStr))
		return defaultValue
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
