package di

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

const (
	defaultBatchDelay  = 2 * time.Second
	defaultHTTPAddr    = ":8080"
	defaultMetricsAddr = ":9090"
)

// BatchDelayFromEnv returns BATCH_DELAY (duration or seconds), 2s by default. "0" disables the delay.
func BatchDelayFromEnv() time.Duration {
	v, ok := os.LookupEnv("BATCH_DELAY")
	if !ok || v == "" {
		return defaultBatchDelay
	}
	// 単位なしの数値は秒とみなす
	if secs, err := cast.ToIntE(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return cast.ToDuration(v)
}

// HTTPAddrFromEnv returns HTTP_ADDR, ":8080" by default.
func HTTPAddrFromEnv() string {
	return envOr("HTTP_ADDR", defaultHTTPAddr)
}

// MetricsAddrFromEnv returns METRICS_ADDR, ":9090" by default.
func MetricsAddrFromEnv() string {
	return envOr("METRICS_ADDR", defaultMetricsAddr)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// CronScheduleFromEnv returns CRON_SCHEDULE, or def when unset.
func CronScheduleFromEnv(def string) string {
	return envOr("CRON_SCHEDULE", def)
}

// RunOnStartupFromEnv reports whether RUN_ON_STARTUP is truthy ("true", "1").
func RunOnStartupFromEnv() bool {
	return cast.ToBool(os.Getenv("RUN_ON_STARTUP"))
}

// CORSOriginsFromEnv returns the comma separated CORS_ALLOW_ORIGINS; empty means all origins.
func CORSOriginsFromEnv() []string {
	var origins []string
	for _, o := range strings.Split(os.Getenv("CORS_ALLOW_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// LoadDotEnv loads ENV_FILE (".env" by default) when it exists. Variables already set are kept.
func LoadDotEnv() error {
	path := envOr("ENV_FILE", ".env")
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}
