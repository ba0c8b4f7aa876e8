// Package config loads SDK configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the SDK needs to reach the marketplace backend.
type Config struct {
	// AuthBaseURL is the base URL of the authenticated API channel.
	AuthBaseURL string
	// PublicBaseURL is the base URL of the public API channel.
	PublicBaseURL string
	// RequestTimeout bounds a single HTTP round trip.
	RequestTimeout time.Duration
	// RefreshSkew triggers a proactive token refresh when the access token
	// expires within this window.
	RefreshSkew time.Duration
	// RateLimit caps outgoing requests per second. Zero disables limiting.
	RateLimit float64
	// RateBurst is the limiter burst size when RateLimit is set.
	RateBurst int
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if v := os.Getenv("MARKETPLACE_AUTH_URL"); v != "" {
		cfg.AuthBaseURL = v
	}
	if v := os.Getenv("MARKETPLACE_PUBLIC_URL"); v != "" {
		cfg.PublicBaseURL = v
	}
	if v := os.Getenv("MARKETPLACE_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parse MARKETPLACE_REQUEST_TIMEOUT: %w", err)
		}
		cfg.RequestTimeout = d
	}
	if v := os.Getenv("MARKETPLACE_REFRESH_SKEW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parse MARKETPLACE_REFRESH_SKEW: %w", err)
		}
		cfg.RefreshSkew = d
	}
	if v := os.Getenv("MARKETPLACE_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("parse MARKETPLACE_RATE_LIMIT: %w", err)
		}
		cfg.RateLimit = f
	}
	if v := os.Getenv("MARKETPLACE_RATE_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parse MARKETPLACE_RATE_BURST: %w", err)
		}
		cfg.RateBurst = n
	}

	if cfg.AuthBaseURL == "" {
		return nil, fmt.Errorf("MARKETPLACE_AUTH_URL is required")
	}
	if cfg.PublicBaseURL == "" {
		return nil, fmt.Errorf("MARKETPLACE_PUBLIC_URL is required")
	}
	return cfg, nil
}

// LoadOrDefault loads configuration, falling back to defaults on error.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return DefaultConfig()
	}
	return cfg
}

// DefaultConfig returns the local development configuration.
func DefaultConfig() *Config {
	return &Config{
		AuthBaseURL:    "http://localhost:8080/api/v1",
		PublicBaseURL:  "http://localhost:8080/api/v1/public",
		RequestTimeout: 30 * time.Second,
		RefreshSkew:    30 * time.Second,
		RateBurst:      10,
	}
}
