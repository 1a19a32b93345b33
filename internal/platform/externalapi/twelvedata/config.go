// Package twelvedata provides a client for the Twelve Data stock market API.
package twelvedata

import (
	"os"
	"time"

	"github.com/spf13/cast"
)

const (
	// DefaultBaseURL is the public Twelve Data endpoint.
	DefaultBaseURL = "https://api.twelvedata.com"
	// DefaultRateLimit is the free plan's requests per minute.
	DefaultRateLimit = 8
	// DefaultTimeout bounds one HTTP request.
	DefaultTimeout = 30 * time.Second
)

// Config holds configuration for the Twelve Data API client.
type Config struct {
	TwelveDataAPIKey string        // API key for authentication
	BaseURL          string        // Base URL for the API (e.g., "https://api.twelvedata.com")
	Timeout          time.Duration // HTTP request timeout
	RateLimit        int           // requests per minute; 0 disables limiting
}

// LoadConfig loads Twelve Data configuration from environment variables.
func LoadConfig() Config {
	cfg := Config{
		TwelveDataAPIKey: os.Getenv("TWELVE_DATA_API_KEY"),
		BaseURL:          os.Getenv("TWELVE_DATA_BASE_URL"),
		Timeout:          cast.ToDuration(os.Getenv("FEED_TIMEOUT")),
		RateLimit:        DefaultRateLimit,
	}
	if v, ok := os.LookupEnv("TWELVE_DATA_RATE_LIMIT"); ok {
		cfg.RateLimit = cast.ToInt(v)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return cfg
}
