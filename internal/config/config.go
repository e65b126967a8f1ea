// Package config loads the service configuration from the environment.
// Every knob has a development default so a bare `go run` works locally.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jcmexdev/storefront-core/internal/pricing"
)

// Config is the full runtime configuration.
type Config struct {
	// HTTPAddr is the listen address for the HTTP boundary.
	HTTPAddr string

	// RedisAddr is the cart store address. Empty selects the in-memory
	// store (development only).
	RedisAddr string

	// CartTTL is how long an idle cart survives in Redis.
	CartTTL time.Duration

	// SQLitePath is the order database path.
	SQLitePath string

	// StockBaseURL is the catalog service the stock oracle queries.
	// Empty selects the seeded fake oracle (development only).
	StockBaseURL string

	// StockTimeout bounds each stock lookup. Lookups that exceed it fail
	// closed.
	StockTimeout time.Duration

	// Pricing holds the deployment's shipping/tax rules.
	Pricing pricing.Rules

	// PayPalClientID is the public client ID handed to the PayPal widget.
	PayPalClientID string

	// Esewa merchant settings for the redirect widget.
	EsewaMerchantCode string
	EsewaSuccessURL   string
	EsewaFailureURL   string
}

// Load reads the environment, applying defaults and validating ranges.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),
		RedisAddr:    getEnv("REDIS_ADDR", ""),
		SQLitePath:   getEnv("SQLITE_PATH", "./data/orders.db"),
		StockBaseURL: getEnv("STOCK_BASE_URL", ""),

		PayPalClientID:    getEnv("PAYPAL_CLIENT_ID", "sb"),
		EsewaMerchantCode: getEnv("ESEWA_MERCHANT_CODE", "EPAYTEST"),
		EsewaSuccessURL:   getEnv("ESEWA_SUCCESS_URL", "http://localhost:8080/payments/esewa/success"),
		EsewaFailureURL:   getEnv("ESEWA_FAILURE_URL", "http://localhost:8080/payments/esewa/failure"),
	}

	var err error
	if cfg.CartTTL, err = getDuration("CART_TTL", 720*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.StockTimeout, err = getDuration("STOCK_TIMEOUT", 3*time.Second); err != nil {
		return Config{}, err
	}

	// Defaults match the original storefront deployment: free shipping
	// above 10000, flat 250 fee, 5% tax.
	if cfg.Pricing.FreeShippingThreshold, err = getFloat("FREE_SHIPPING_THRESHOLD", 10000); err != nil {
		return Config{}, err
	}
	if cfg.Pricing.FlatShippingFee, err = getFloat("FLAT_SHIPPING_FEE", 250); err != nil {
		return Config{}, err
	}
	if cfg.Pricing.TaxRate, err = getFloat("TAX_RATE", 0.05); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Pricing.TaxRate < 0 || c.Pricing.TaxRate >= 1 {
		return fmt.Errorf("config: TAX_RATE %v out of range [0,1)", c.Pricing.TaxRate)
	}
	if c.Pricing.FlatShippingFee < 0 {
		return fmt.Errorf("config: FLAT_SHIPPING_FEE must not be negative")
	}
	if c.Pricing.FreeShippingThreshold < 0 {
		return fmt.Errorf("config: FREE_SHIPPING_THRESHOLD must not be negative")
	}
	if c.StockTimeout <= 0 {
		return fmt.Errorf("config: STOCK_TIMEOUT must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s=%q is not a number: %w", key, v, err)
	}
	return f, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s=%q is not a duration: %w", key, v, err)
	}
	return d, nil
}
