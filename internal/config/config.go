package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	ServiceName string
	Env         string
	LogLevel    string

	HTTPAddr       string
	RequestTimeout time.Duration

	StoreDriver string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPass      string
	DBName      string
	DBSSLMode   string

	JWTSecret string
	TokenTTL  time.Duration

	RedisURL        string
	CatalogCacheTTL time.Duration

	BotToken    string
	AdminChatID int64

	OrderConflictRetries int
}

// Load reads .env from the project root (when present) and then the process environment.
func Load() (*Config, error) {
	_, filename, _, _ := runtime.Caller(0)
	rootDir := filepath.Join(filepath.Dir(filename), "..", "..")

	envPath := filepath.Join(rootDir, ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load %s: %w", envPath, err)
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		ServiceName: getenv("SERVICE_NAME", "grocery"),
		Env:         getenv("ENV", "dev"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		HTTPAddr:    getenv("HTTP_ADDR", ":3000"),
		StoreDriver: getenv("STORE_DRIVER", DriverPostgres),
		DBHost:      getenv("DB_HOST", "localhost"),
		DBPort:      getenv("DB_PORT", "5432"),
		DBUser:      os.Getenv("DB_USER"),
		DBPass:      os.Getenv("DB_PASSWORD"),
		DBName:      os.Getenv("DB_NAME"),
		DBSSLMode:   getenv("DB_SSLMODE", "disable"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		RedisURL:    os.Getenv("REDIS_URL"),
		BotToken:    os.Getenv("BOT_TOKEN"),
	}

	var err error
	if cfg.RequestTimeout, err = durationEnv("REQUEST_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.TokenTTL, err = durationEnv("TOKEN_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.CatalogCacheTTL, err = durationEnv("CATALOG_CACHE_TTL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.OrderConflictRetries, err = intEnv("ORDER_CONFLICT_RETRIES", 1); err != nil {
		return nil, err
	}
	if v := os.Getenv("ADMIN_CHAT_ID"); v != "" {
		if cfg.AdminChatID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, fmt.Errorf("config: ADMIN_CHAT_ID: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET is required")
	}
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DBUser == "" || c.DBName == "" {
			return errors.New("config: DB_USER and DB_NAME are required for the postgres store")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.OrderConflictRetries < 0 {
		return errors.New("config: ORDER_CONFLICT_RETRIES must not be negative")
	}
	return nil
}

// NotificationsEnabled reports whether the Telegram admin channel is configured.
func (c *Config) NotificationsEnabled() bool {
	return c.BotToken != "" && c.AdminChatID != 0
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}
