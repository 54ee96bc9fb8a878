package config

import (
	"fmt"
	"time"

	"github.com/ManuelReschke/entitlement-sync/internal/pkg/env"
	"github.com/go-playground/validator/v10"
)

// Config is the process configuration assembled from .env and the
// environment.
type Config struct {
	AppEnv  string `validate:"oneof=dev prod test"`
	AppHost string `validate:"required"`
	AppPort string `validate:"required,numeric"`

	DB         DBConfig
	Cache      CacheConfig
	RevenueCat RevenueCatConfig
	Webhook    WebhookConfig
	Billing    BillingConfig

	// AccountHeader carries the account id set by the authenticating proxy.
	AccountHeader string `validate:"required"`
	RateLimit     int    `validate:"gte=0"`
	MetricsUser   string
	MetricsPass   string

	// ReverifyWorkers is the number of background re-verification workers.
	ReverifyWorkers int `validate:"gte=1,lte=32"`
}

type DBConfig struct {
	User     string `validate:"required"`
	Password string
	Host     string `validate:"required"`
	Port     string `validate:"required,numeric"`
	Name     string `validate:"required"`
}

type CacheConfig struct {
	Host     string `validate:"required"`
	Port     string `validate:"required,numeric"`
	Password string
	DB       int `validate:"gte=0"`
}

type RevenueCatConfig struct {
	APIKey         string        `validate:"required"`
	APIBaseURL     string        `validate:"required,url"`
	RequestTimeout time.Duration `validate:"gt=0"`
	MaxRetries     int           `validate:"gte=0,lte=10"`
	RatePerSecond  float64       `validate:"gte=0"`
	Burst          int           `validate:"gte=0"`
}

type WebhookConfig struct {
	// AuthToken is the Authorization header value configured on the vendor
	// webhook. Empty disables the check (dev only).
	AuthToken   string
	DeliveryTTL time.Duration `validate:"gt=0"`
}

type BillingConfig struct {
	FreshnessWindow time.Duration `validate:"gt=0"`
	FetchTimeout    time.Duration `validate:"gt=0"`
}

// DSN returns the go-sql-driver DSN for the application connection.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC&clientFoundRows=true",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

// MigrateURL returns the golang-migrate database URL.
func (c DBConfig) MigrateURL() string {
	return fmt.Sprintf("mysql://%s:%s@tcp(%s:%s)/%s?multiStatements=true",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

func (c CacheConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func (c Config) ListenAddr() string {
	return fmt.Sprintf("%s:%s", c.AppHost, c.AppPort)
}

func (c Config) IsDev() bool {
	return c.AppEnv == "dev"
}

// FromEnv builds a Config from v without validating it.
func FromEnv(v env.Values) Config {
	return Config{
		AppEnv:  v.GetEnv("APP_ENV", "prod"),
		AppHost: v.GetEnv("APP_HOST", "localhost"),
		AppPort: v.GetEnv("APP_PORT", "4000"),
		DB: DBConfig{
			User:     v.GetEnv("DB_USER", "entitlements"),
			Password: v.GetEnv("DB_PASSWORD", ""),
			Host:     v.GetEnv("DB_HOST", "127.0.0.1"),
			Port:     v.GetEnv("DB_PORT", "3306"),
			Name:     v.GetEnv("DB_NAME", "entitlements_db"),
		},
		Cache: CacheConfig{
			Host:     v.GetEnv("CACHE_HOST", "localhost"),
			Port:     v.GetEnv("CACHE_PORT", "6379"),
			Password: v.GetEnv("CACHE_PASSWORD", ""),
			DB:       v.GetInt("CACHE_DB", 0),
		},
		RevenueCat: RevenueCatConfig{
			APIKey:         v.GetEnv("REVENUECAT_API_KEY", ""),
			APIBaseURL:     v.GetEnv("REVENUECAT_API_BASE_URL", "https://api.revenuecat.com/v1"),
			RequestTimeout: v.GetDuration("REVENUECAT_REQUEST_TIMEOUT", 5*time.Second),
			MaxRetries:     v.GetInt("REVENUECAT_MAX_RETRIES", 2),
			RatePerSecond:  v.GetFloat("REVENUECAT_RATE_PER_SECOND", 10),
			Burst:          v.GetInt("REVENUECAT_BURST", 5),
		},
		Webhook: WebhookConfig{
			AuthToken:   v.GetEnv("REVENUECAT_WEBHOOK_AUTH", ""),
			DeliveryTTL: v.GetDuration("WEBHOOK_DELIVERY_TTL", 72*time.Hour),
		},
		Billing: BillingConfig{
			FreshnessWindow: v.GetDuration("ENTITLEMENT_FRESHNESS_WINDOW", time.Hour),
			FetchTimeout:    v.GetDuration("ENTITLEMENT_FETCH_TIMEOUT", 10*time.Second),
		},
		AccountHeader: v.GetEnv("ACCOUNT_ID_HEADER", "X-Account-ID"),
		RateLimit:     v.GetInt("API_RATE_LIMIT", 60),
		MetricsUser:   v.GetEnv("METRICS_USER", ""),
		MetricsPass:   v.GetEnv("METRICS_PASSWORD", ""),

		ReverifyWorkers: v.GetInt("REVERIFY_WORKERS", 2),
	}
}

// Validate checks field constraints. Outside dev the webhook must be
// protected by an Authorization token.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if !c.IsDev() && c.Webhook.AuthToken == "" {
		return fmt.Errorf("REVENUECAT_WEBHOOK_AUTH is required when APP_ENV=%s", c.AppEnv)
	}
	return nil
}

// Load reads and validates the configuration.
func Load(v env.Values) (Config, error) {
	cfg := FromEnv(v)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
