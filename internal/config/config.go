package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション設定を表す
type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Services  ServicesConfig
	Auth      AuthConfig
	Scheduler SchedulerConfig
	Cache     CacheConfig
	Events    EventsConfig
	Inventory InventoryConfig
	Metrics   MetricsConfig
}

// AppConfig はアプリケーション全体の設定
type AppConfig struct {
	Env         string
	ServiceName string
}

// ServerConfig はサーバー設定
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig はデータベース設定
type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MigrationsPath string
}

// RedisConfig はRedis設定
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// ServicesConfig は連携先サービスの設定
type ServicesConfig struct {
	ConcertURL     string
	UserURL        string
	RequestTimeout time.Duration
}

// AuthConfig はサービス間認証の設定
type AuthConfig struct {
	JWTSecret       string
	ServiceTokenTTL time.Duration
}

// SchedulerConfig はコンサート自動無効化スケジューラの設定
type SchedulerConfig struct {
	Interval time.Duration
	LockTTL  time.Duration
}

// CacheConfig は読み取りキャッシュの設定
type CacheConfig struct {
	TTL         time.Duration
	UpcomingTTL time.Duration
}

// EventsConfig は予約イベント配信の設定
type EventsConfig struct {
	Channel       string
	AMQPURL       string
	AMQPQueue     string
	FallbackEmail string
}

// InventoryConfig は在庫カウンタ監査の設定
type InventoryConfig struct {
	ReconcileInterval time.Duration
}

// MetricsConfig は /metrics の Basic 認証設定（両方空なら認証なし）
type MetricsConfig struct {
	User     string
	Password string
}

// AuthEnabled は認証が有効かどうかを返す
func (c *MetricsConfig) AuthEnabled() bool {
	return c.User != "" && c.Password != ""
}

// Load は環境変数から設定を読み込む
// カレントディレクトリに .env があれば先に読み込む（既存の環境変数は上書きしない）
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		App: AppConfig{
			Env:         getEnv("APP_ENV", "development"),
			ServiceName: getEnv("SERVICE_NAME", "booking-service"),
		},
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			DBName:         getEnv("DB_NAME", "concert_booking"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MigrationsPath: getEnv("DB_MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Services: ServicesConfig{
			ConcertURL:     getEnv("CONCERT_SERVICE_URL", "http://localhost:8081/api/v1"),
			UserURL:        getEnv("AUTH_SERVICE_URL", "http://localhost:8082/api/v1"),
			RequestTimeout: getDurationEnv("SERVICE_REQUEST_TIMEOUT", 5*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:       getEnv("JWT_SECRET", "your-secret-key"),
			ServiceTokenTTL: getDurationEnv("JWT_SERVICE_EXPIRY", time.Hour),
		},
		Scheduler: SchedulerConfig{
			Interval: getDurationEnv("SCHEDULER_INTERVAL", time.Minute),
			LockTTL:  getDurationEnv("SCHEDULER_LOCK_TTL", 50*time.Second),
		},
		Cache: CacheConfig{
			TTL:         getDurationEnv("CACHE_TTL", time.Hour),
			UpcomingTTL: getDurationEnv("CACHE_UPCOMING_TTL", 5*time.Minute),
		},
		Events: EventsConfig{
			Channel:       getEnv("EVENTS_CHANNEL", "booking-events"),
			AMQPURL:       getEnv("RABBITMQ_URL", ""),
			AMQPQueue:     getEnv("RABBITMQ_QUEUE", "booking.events"),
			FallbackEmail: getEnv("NOTIFY_FALLBACK_EMAIL", "bookings@example.com"),
		},
		Inventory: InventoryConfig{
			ReconcileInterval: getDurationEnv("INVENTORY_RECONCILE_INTERVAL", 5*time.Minute),
		},
		Metrics: MetricsConfig{
			User:     os.Getenv("METRICS_USER"),
			Password: os.Getenv("METRICS_PASSWORD"),
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

// IsProduction は本番環境かどうかを返す
func (c *AppConfig) IsProduction() bool {
	return c.Env == "production"
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
