package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"grocery/internal/config"
	"grocery/internal/db"
	"grocery/internal/logging"
)

var migrations = []string{
	"001_create_users.sql",
	"002_create_grocery_items.sql",
	"003_create_orders.sql",
	"004_create_order_items.sql",
	"100_data.sql",
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := logging.MustNewLogger(cfg.ServiceName+"-migrations", cfg.Env, cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	conn, err := db.NewPostgresDB(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("migrations_db_unavailable", zap.Error(err))
	}
	defer conn.Close()

	projectRoot, err := getProjectRoot()
	if err != nil {
		logger.Fatal("migrations_project_root_not_found", zap.Error(err))
	}

	successes := 0
	for _, migration := range migrations {
		migrationPath := filepath.Join(projectRoot, "migrations", migration)
		if err := Apply(ctx, conn, migrationPath); err != nil {
			logger.Error("migration_failed", zap.String("migration", migration), zap.Error(err))
			continue
		}
		logger.Info("migration_applied", zap.String("migration", migration))
		successes++
	}
	logger.Info("migrations_done", zap.Int("applied", successes), zap.Int("total", len(migrations)))
	if successes != len(migrations) {
		os.Exit(1)
	}
}

// Apply runs one SQL file in its own transaction.
func Apply(ctx context.Context, conn *sql.DB, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// getProjectRoot walks up from the working directory to the directory holding go.mod.
func getProjectRoot() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(wd, "go.mod")); err == nil {
			return wd, nil
		}

		parent := filepath.Dir(wd)
		if parent == wd {
			return "", os.ErrNotExist
		}
		wd = parent
	}
}
