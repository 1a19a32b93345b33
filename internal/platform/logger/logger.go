// Package logger はアプリケーション共通のzapロガーを構築します。
package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLevel は LOG_LEVEL の値をzapのレベルに変換します。未知の値は info です。
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New は標準出力へJSONを書き出すプロダクション設定のロガーを返します。
func New(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(ParseLevel(level))
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// FromEnv は LOG_LEVEL からロガーを構築し、グローバルロガーにも設定します。
// 構築に失敗した場合は標準のプロダクションロガーにフォールバックします。
func FromEnv() *zap.Logger {
	l, err := New(os.Getenv("LOG_LEVEL"))
	if err != nil {
		l = zap.Must(zap.NewProduction())
		l.Warn("invalid logger config, using defaults", zap.Error(err))
	}
	zap.ReplaceGlobals(l)
	return l
}
