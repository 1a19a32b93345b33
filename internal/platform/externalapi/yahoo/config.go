// Package yahoo は Yahoo Finance の chart API から日足を取得します。
package yahoo

import (
	"os"
	"time"

	"github.com/spf13/cast"
)

const (
	// DefaultBaseURL は chart API のホストです。
	DefaultBaseURL = "https://query1.finance.yahoo.com"
	// DefaultConcurrency は1バッチ内で同時に取得するティッカー数です。
	DefaultConcurrency = 4
	// DefaultTimeout は1リクエストのタイムアウトです。
	DefaultTimeout = 30 * time.Second
)

// Config は Yahoo Finance クライアントの設定です。
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	Concurrency int
}

// LoadConfig は環境変数から設定を読み込みます。
func LoadConfig() Config {
	cfg := Config{
		BaseURL:     os.Getenv("YAHOO_BASE_URL"),
		Timeout:     cast.ToDuration(os.Getenv("FEED_TIMEOUT")),
		Concurrency: cast.ToInt(os.Getenv("YAHOO_CONCURRENCY")),
	}
	return cfg.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	return c
}
