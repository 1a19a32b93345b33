// Package di provides dependency injection factories for creating application components.
package di

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	pricesusecase "jpstock_backend/internal/feature/prices/usecase"
	"jpstock_backend/internal/platform/externalapi/twelvedata"
	"jpstock_backend/internal/platform/externalapi/yahoo"
	infrahttp "jpstock_backend/internal/platform/http"
	"jpstock_backend/internal/shared/ratelimiter"
)

// Feed names accepted by PRICE_FEED.
const (
	FeedTwelveData = "twelvedata"
	FeedYahoo      = "yahoo"
)

// FeedNameFromEnv returns PRICE_FEED, defaulting to Yahoo.
func FeedNameFromEnv() string {
	name := strings.ToLower(strings.TrimSpace(os.Getenv("PRICE_FEED")))
	if name == "" {
		return FeedYahoo
	}
	return name
}

// NewPriceFeed creates a fully configured price feed with its HTTP client.
func NewPriceFeed(name string, logger *zap.Logger) (pricesusecase.PriceFeed, error) {
	switch name {
	case FeedTwelveData:
		cfg := twelvedata.LoadConfig()
		if cfg.TwelveDataAPIKey == "" {
			return nil, fmt.Errorf("TWELVE_DATA_API_KEY is required for feed %q", name)
		}
		httpClient := infrahttp.NewHTTPClient(cfg.Timeout)
		limiter := ratelimiter.NewRateLimiter(cfg.RateLimit, time.Minute)
		return twelvedata.NewFeed(cfg, httpClient, limiter, logger), nil
	case FeedYahoo:
		cfg := yahoo.LoadConfig()
		httpClient := infrahttp.NewHTTPClient(cfg.Timeout, infrahttp.WithUserAgent(infrahttp.DefaultUserAgent))
		return yahoo.NewFeed(cfg, httpClient, logger), nil
	default:
		return nil, fmt.Errorf("unknown price feed %q (want %s or %s)", name, FeedTwelveData, FeedYahoo)
	}
}
