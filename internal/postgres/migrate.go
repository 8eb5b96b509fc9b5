package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/matheusmosca/order-fulfillment/internal/config"
)

// Migrate aplica o schema do serviço. Os scripts usam CREATE ... IF NOT EXISTS
// e podem ser executados a cada inicialização.
func Migrate(ctx context.Context, dsn string, schema string, log *zap.Logger) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database for migration: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	log.Info("✅ Schema applied")
	return nil
}

// Open conecta o pool e, com database.auto_migrate, aplica o schema
func Open(ctx context.Context, cfg config.DatabaseConfig, schema string, log *zap.Logger) (*pgxpool.Pool, error) {
	pool, err := Connect(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := Migrate(ctx, cfg.DSN(), schema, log); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return pool, nil
}
