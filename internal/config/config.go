package config

import (
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション設定を表す
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Booking  BookingConfig
}

// ServerConfig はサーバー設定
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig はデータベース設定
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig はRedis設定
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// BookingConfig は予約エンジン設定
type BookingConfig struct {
	// HoldTTL は仮押さえのリース期間（唯一の正とする値）
	HoldTTL time.Duration
	// SweepInterval は期限切れ掃除の実行間隔
	SweepInterval time.Duration
	// SweepTimeout は掃除1バッチあたりのタイムアウト
	SweepTimeout time.Duration
	// WarnHorizon は未確定予約の終了前警告の対象期間
	WarnHorizon time.Duration
	// MinHoldDuration は予約の最小時間
	MinHoldDuration time.Duration
	// MaxHoldDuration は予約の最大時間
	MaxHoldDuration time.Duration
	// HeartbeatInterval は購読者への生存確認の間隔
	HeartbeatInterval time.Duration
	// SlotCacheTTL はスロット状態キャッシュの有効期限
	SlotCacheTTL time.Duration
}

// Load は環境変数から設定を読み込む
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "coworking_reservation"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Booking: BookingConfig{
			HoldTTL:           getDurationEnv("HOLD_TTL", 15*time.Minute),
			SweepInterval:     getDurationEnv("SWEEP_INTERVAL", 60*time.Second),
			SweepTimeout:      getDurationEnv("SWEEP_TIMEOUT", 30*time.Second),
			WarnHorizon:       getDurationEnv("WARN_HORIZON", time.Hour),
			MinHoldDuration:   getDurationEnv("MIN_HOLD_DURATION", time.Hour),
			MaxHoldDuration:   getDurationEnv("MAX_HOLD_DURATION", 7*24*time.Hour),
			HeartbeatInterval: getDurationEnv("HEARTBEAT_INTERVAL", 30*time.Second),
			SlotCacheTTL:      getDurationEnv("SLOT_CACHE_TTL", 30*time.Second),
		},
	}
}

// DSN はPostgreSQL接続文字列を返す
func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + c.Port +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" sslmode=" + c.SSLMode
}

// Addr はRedis接続アドレスを返す
func (c *RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
