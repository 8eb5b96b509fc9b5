package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Querier é satisfeito por *pgxpool.Pool e pgx.Tx
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Table descreve a tabela de histórico de um serviço.
// Colunas: id, <EntityColumn>, status, timestamp, note, location, seq (bigserial).
type Table struct {
	Name         string
	EntityColumn string
}

// Append insere uma entrada dentro da transação da entidade
func (t Table) Append(ctx context.Context, tx pgx.Tx, entityID string, entry Entry) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, %s, status, timestamp, note, location)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, t.Name, t.EntityColumn)

	_, err := tx.Exec(ctx, query, entry.ID, entityID, entry.Status, entry.Timestamp, entry.Note, entry.Location)
	if err != nil {
		return fmt.Errorf("failed to append %s entry: %w", t.Name, err)
	}
	return nil
}

// List devolve a série da entidade, da mais nova para a mais antiga
func (t Table) List(ctx context.Context, q Querier, entityID string) ([]Entry, error) {
	query := fmt.Sprintf(`
		SELECT id, status, timestamp, COALESCE(note, ''), COALESCE(location, '')
		FROM %s
		WHERE %s = $1
		ORDER BY timestamp DESC, seq DESC
	`, t.Name, t.EntityColumn)

	rows, err := q.Query(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", t.Name, err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Status, &e.Timestamp, &e.Note, &e.Location); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
