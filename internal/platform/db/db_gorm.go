// Package db はデータベース接続の確立とマイグレーションを提供します。
package db

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cast"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	priceadapters "jpstock_backend/internal/feature/prices/adapters"
	symbolentity "jpstock_backend/internal/feature/symbollist/domain/entity"
)

const (
	// DriverPostgres は本番用のPostgreSQLドライバ名です。
	DriverPostgres = "postgres"
	// DriverSQLite はローカル実行用のSQLiteドライバ名です。
	DriverSQLite = "sqlite"

	retryInterval = 3 * time.Second
)

// Config はデータベース接続設定を保持します。
type Config struct {
	Driver        string
	User          string
	Password      string
	Name          string
	Host          string
	Port          string
	SSLMode       string
	InstanceName  string // Cloud SQL の接続名。設定時はUnixソケット経由で接続
	SQLitePath    string
	ConnTimeout   time.Duration
	RunMigrations bool
}

// Opener はDSNからgorm.DBを開く関数です。テストで差し替えられます。
type Opener func(dsn string) (*gorm.DB, error)

// LoadConfigFromEnv は環境変数からデータベース設定を読み込みます。
func LoadConfigFromEnv() Config {
	cfg := Config{
		Driver:        os.Getenv("DB_DRIVER"),
		User:          os.Getenv("DB_USER"),
		Password:      os.Getenv("DB_PASSWORD"),
		Name:          os.Getenv("DB_NAME"),
		Host:          os.Getenv("DB_HOST"),
		Port:          os.Getenv("DB_PORT"),
		SSLMode:       os.Getenv("DB_SSLMODE"),
		InstanceName:  os.Getenv("INSTANCE_CONNECTION_NAME"),
		SQLitePath:    os.Getenv("DB_PATH"),
		ConnTimeout:   cast.ToDuration(os.Getenv("DB_CONNECT_TIMEOUT")),
		RunMigrations: cast.ToBool(os.Getenv("RUN_MIGRATIONS")),
	}
	if cfg.Driver == "" {
		cfg.Driver = DriverPostgres
	}
	if cfg.Port == "" {
		cfg.Port = "5432"
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = "./stock.db"
	}
	if cfg.ConnTimeout <= 0 {
		cfg.ConnTimeout = 60 * time.Second
	}
	return cfg
}

// BuildDSN は設定から接続文字列を生成します。
// SQLiteの場合はファイルパス、PostgreSQLの場合はkey=value形式のDSNを返します。
func BuildDSN(cfg Config) string {
	if cfg.Driver == DriverSQLite {
		return cfg.SQLitePath
	}
	host, port := cfg.Host, cfg.Port
	if cfg.InstanceName != "" {
		// Cloud SQL はUnixソケットのディレクトリをhostに指定する
		host = "/cloudsql/" + cfg.InstanceName
		port = ""
	}
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		host, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)
	if port != "" {
		dsn += " port=" + port
	}
	return dsn
}

// OpenerFor はドライバ名に応じたOpenerを返します。
func OpenerFor(driverName string) Opener {
	if driverName == DriverSQLite {
		return func(dsn string) (*gorm.DB, error) {
			return gorm.Open(sqlite.Open(dsn), &gorm.Config{})
		}
	}
	return func(dsn string) (*gorm.DB, error) {
		return gorm.Open(postgres.Open(dsn), &gorm.Config{})
	}
}

// ConnectWithRetry は timeout に達するまで一定間隔で接続を再試行します。
func ConnectWithRetry(dsn string, timeout time.Duration, open Opener) (*gorm.DB, error) {
	deadline := time.Now().Add(timeout)
	for {
		db, err := open(dsn)
		if err == nil {
			return db, nil
		}
		if time.Now().Add(retryInterval).After(deadline) {
			return nil, fmt.Errorf("db connect failed after %v: %w", timeout, err)
		}
		zap.L().Warn("DB connect failed, retrying", zap.Error(err))
		time.Sleep(retryInterval)
	}
}

// OpenDB は設定に従って接続し、必要であればマイグレーションを実行します。
func OpenDB(cfg Config, logger *zap.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := ConnectWithRetry(BuildDSN(cfg), cfg.ConnTimeout, OpenerFor(cfg.Driver))
	if err != nil {
		return nil, err
	}
	logger.Info("database connected", zap.String("driver", cfg.Driver))

	if cfg.RunMigrations || cfg.Driver == DriverSQLite {
		if err := Migrate(db); err != nil {
			return nil, fmt.Errorf("failed to migrate: %w", err)
		}
		logger.Info("database migrated")
	}
	return db, nil
}

// Migrate は全テーブルのスキーマを作成・更新します。
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&symbolentity.Symbol{},
		&priceadapters.PriceBarModel{},
	)
}
