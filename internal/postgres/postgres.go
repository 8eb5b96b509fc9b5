// Package postgres concentra a conexão com o banco, as transações e a
// criação do schema de cada serviço.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/matheusmosca/order-fulfillment/internal/apperr"
	"github.com/matheusmosca/order-fulfillment/internal/config"
)

const connectAttempts = 30

// Connect abre o pool e espera o banco ficar disponível
func Connect(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	for i := 0; i < connectAttempts; i++ {
		if err := pool.Ping(ctx); err == nil {
			log.Info("✅ Connected to database", zap.String("database", cfg.Name))
			return pool, nil
		}
		log.Info("⏳ Waiting for database...", zap.Int("attempt", i+1), zap.Int("max", connectAttempts))

		select {
		case <-ctx.Done():
			pool.Close()
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}

	pool.Close()
	return nil, fmt.Errorf("failed to connect to database after %d attempts", connectAttempts)
}

// DB é o que os repositórios usam do pool. *pgxpool.Pool satisfaz.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ DB = (*pgxpool.Pool)(nil)

// CheckID garante que o id cabe numa coluna UUID. Um id em outro formato não
// existe no banco e vira NotFoundError em vez de erro de sintaxe do Postgres.
func CheckID(entity, id string) error {
	if _, err := uuid.Parse(id); err != nil || len(id) != 36 {
		return apperr.NotFound(entity, id)
	}
	return nil
}

// Tx implementa a interface Tx dos repositórios sobre pgx.Tx
type Tx struct {
	tx pgx.Tx
}

// Begin inicia uma nova transação no pool
func Begin(ctx context.Context, db DB) (*Tx, error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

func (t *Tx) Commit() error {
	return t.tx.Commit(context.Background())
}

// Rollback depois de um Commit não tem efeito
func (t *Tx) Rollback() error {
	err := t.tx.Rollback(context.Background())
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

// Unwrap extrai a pgx.Tx da transação recebida pelo repositório
func Unwrap(tx any) (pgx.Tx, error) {
	pgTx, ok := tx.(*Tx)
	if !ok {
		return nil, fmt.Errorf("unexpected transaction type %T", tx)
	}
	return pgTx.tx, nil
}
