package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Environment string
	LogLevel    string

	StoreDriver string
	DBDSN       string
	DBMaxConns  int

	HTTPAddr  string
	JWTSecret string
	// CORSAllowedOrigins список origin браузерного клиента; "*" разрешает любой
	CORSAllowedOrigins []string

	RedisAddr string
	CacheTTL  time.Duration

	TelegramToken  string
	TelegramChatID int64

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int

	ConflictMaxRetries int
	CommitCheckTimeout time.Duration
}

// Load читает .env (если есть) и переменные окружения
func Load() (*Config, error) {
	LoadDotEnv()
	return FromEnv()
}

// LoadDotEnv переносит .env в окружение; уже заданные переменные не перезаписываются
func LoadDotEnv() {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
		return
	}
	log.Println("✅ Loaded configuration from .env file")
}

// FromEnv собирает конфиг только из окружения
func FromEnv() (*Config, error) {
	cfg := &Config{
		Environment:   getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		StoreDriver:   strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		DBDSN:         os.Getenv("DB_DSN"),
		HTTPAddr:      getEnv("HTTP_ADDR", ":5001"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}

	var err error
	if cfg.DBMaxConns, err = getEnvInt("DB_MAX_CONNS", 10); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getEnvDuration("CACHE_TTL", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.OutboxPollInterval, err = getEnvDuration("OUTBOX_POLL_INTERVAL", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.OutboxBatchSize, err = getEnvInt("OUTBOX_BATCH_SIZE", 20); err != nil {
		return nil, err
	}
	if cfg.OutboxMaxAttempts, err = getEnvInt("OUTBOX_MAX_ATTEMPTS", 5); err != nil {
		return nil, err
	}
	if cfg.ConflictMaxRetries, err = getEnvInt("CONFLICT_MAX_RETRIES", 2); err != nil {
		return nil, err
	}
	if cfg.CommitCheckTimeout, err = getEnvDuration("COMMIT_CHECK_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if raw := os.Getenv("TELEGRAM_CHAT_ID"); raw != "" {
		if cfg.TelegramChatID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, fmt.Errorf("invalid int for TELEGRAM_CHAT_ID: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет обязательные поля и диапазоны
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DBDSN == "" {
			return fmt.Errorf("DB_DSN is required when STORE_DRIVER=postgres")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required but not set")
	}
	if c.ConflictMaxRetries < 0 {
		return fmt.Errorf("CONFLICT_MAX_RETRIES must not be negative")
	}
	if c.OutboxBatchSize <= 0 || c.OutboxMaxAttempts <= 0 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE and OUTBOX_MAX_ATTEMPTS must be positive")
	}
	if c.DBMaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	for _, origin := range c.CORSAllowedOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("CORS_ALLOWED_ORIGINS: bad origin %q", origin)
		}
	}
	return nil
}

// TelegramEnabled true когда заданы и токен, и чат
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvList(key string, fallback []string) []string {
	var items []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}

func getEnvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid int for %s: %w", key, err)
	}
	return parsed, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return parsed, nil
}
