// Package config provides centralized configuration loaded from environment
// variables. Shared by cmd/api and cmd/barfly.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Checkin provider registry
// --------------------------------------------------------------------------

// Provider keys accepted in CHECKIN_PROVIDER. The set is closed; selection
// happens once at process start.
const (
	ProviderUntappdAPI    = "untappd_api"
	ProviderUntappdScrape = "untappd_scrape"
	ProviderNone          = "none"
)

// --------------------------------------------------------------------------
// Config struct — populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Session monitoring
	SessionTickPeriod time.Duration // default cadence between monitor ticks
	NotifyInterval    time.Duration // minimum gap between status fan-outs
	SoberGrace        time.Duration // BAC 0 inside this window never stops a session

	// Notification delivery
	DeliveryInterval time.Duration

	// Checkin provider
	CheckinProvider     string
	UntappdClientID     string
	UntappdClientSecret string

	// Outbound messaging
	TwilioAccountSID     string
	TwilioAuthToken      string
	TwilioFromNumber     string
	MessengerPageToken   string
	MessengerVerifyToken string

	// Cache
	CacheEnabled bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	dbURL := envOr("DATABASE_URL", "")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL must be set")
	}

	provider := envOr("CHECKIN_PROVIDER", ProviderNone)
	switch provider {
	case ProviderUntappdAPI, ProviderUntappdScrape, ProviderNone:
	default:
		return nil, fmt.Errorf("CHECKIN_PROVIDER must be one of %s, %s, %s",
			ProviderUntappdAPI, ProviderUntappdScrape, ProviderNone)
	}

	return &Config{
		DatabaseURL:    dbURL,
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		SessionTickPeriod: time.Duration(envInt("SESSION_TICK_SECONDS", 60)) * time.Second,
		NotifyInterval:    time.Duration(envInt("NOTIFY_INTERVAL_MINUTES", 30)) * time.Minute,
		SoberGrace:        time.Duration(envInt("SOBER_GRACE_MINUTES", 10)) * time.Minute,

		DeliveryInterval: time.Duration(envInt("DELIVERY_INTERVAL_SECONDS", 5)) * time.Second,

		CheckinProvider:     provider,
		UntappdClientID:     envOr("UNTAPPD_CLIENT_ID", ""),
		UntappdClientSecret: envOr("UNTAPPD_CLIENT_SECRET", ""),

		TwilioAccountSID:     envOr("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:      envOr("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber:     envOr("TWILIO_FROM_NUMBER", ""),
		MessengerPageToken:   envOr("MESSENGER_PAGE_TOKEN", ""),
		MessengerVerifyToken: envOr("MESSENGER_VERIFY_TOKEN", ""),

		CacheEnabled: envBool("CACHE_ENABLED", true),
	}, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
