// Package router は読み取りAPIのルーティングを定義します。
package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	pricehandler "jpstock_backend/internal/feature/prices/transport/handler"
	symbolhandler "jpstock_backend/internal/feature/symbollist/transport/handler"
	healthhandler "jpstock_backend/internal/platform/http/handler"
)

// NewRouter はルートを登録した gin.Engine を返します。metrics が nil なら /metrics は公開しません。
// origins が空なら全オリジンからの読み取りを許可します。
func NewRouter(logger *zap.Logger, health *healthhandler.HealthHandler, symbols *symbolhandler.SymbolHandler,
	prices *pricehandler.PricesHandler, metrics http.Handler, origins ...string) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger), cors.New(corsConfig(origins)))

	// 導通確認用
	r.GET("/healthz", health.Live)
	r.HEAD("/healthz", health.Live)
	// 依存先を含むヘルスチェック
	r.GET("/health", health.Ready)

	// 銘柄
	r.GET("/stocks", symbols.List)
	r.GET("/stocks/:code", symbols.Get)
	r.GET("/markets", symbols.Markets)
	r.GET("/sectors", symbols.Sectors)

	// 株価
	r.GET("/stocks/:code/prices", prices.GetPrices)
	r.GET("/prices/latest", prices.GetLatest)

	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}
	return r
}

// requestLogger は1リクエストごとにアクセスログを出力します。
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.String("query", c.Request.URL.RawQuery),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("request", append(fields, zap.String("errors", c.Errors.String()))...)
		case c.Request.URL.Path == "/healthz" || c.Request.URL.Path == "/metrics":
			logger.Debug("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}

// corsConfig は読み取り専用APIのCORS設定を返します。
func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{http.MethodGet, http.MethodHead, http.MethodOptions}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.MaxAge = 12 * time.Hour
	return cfg
}
