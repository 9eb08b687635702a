package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"grocery/internal/config"
)

// NewPostgresDB opens a pooled connection to Postgres and checks it is reachable.
func NewPostgresDB(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*sql.DB, error) {
	connStr := DSN(cfg)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("db: open: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		logger.Error("postgres_connect_failed",
			zap.String("host", cfg.DBHost),
			zap.String("db", cfg.DBName),
			zap.Error(err),
		)
		return nil, fmt.Errorf("db: ping: %w", err)
	}

	logger.Info("postgres_connected", zap.String("host", cfg.DBHost), zap.String("db", cfg.DBName))
	return db, nil
}

func DSN(cfg *config.Config) string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPass, cfg.DBName, cfg.DBSSLMode,
	)
}
