package mutations

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/nocturne-journal/nocturne/internal/dbx"
	"github.com/nocturne-journal/nocturne/internal/models"
)

// SQLiteRepository implements Repository over a SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetAll returns queued mutations in submission order.
func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.Mutation, error) {
	query := `SELECT payload FROM pending_mutations ORDER BY seq ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select mutations: %w", err)
	}
	defer rows.Close()

	var result []models.Mutation
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var m models.Mutation
		if err := json.Unmarshal(payload, &m); err != nil {
			return nil, fmt.Errorf("failed to decode mutation: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ReplaceAll rewrites the queue table with the given list in one
// transaction, preserving order.
func (r *SQLiteRepository) ReplaceAll(ctx context.Context, queue []models.Mutation) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM pending_mutations`); err != nil {
			return fmt.Errorf("failed to clear mutations: %w", err)
		}
		query := `INSERT INTO pending_mutations (payload) VALUES (?)`
		for _, m := range queue {
			payload, err := json.Marshal(m)
			if err != nil {
				return fmt.Errorf("failed to encode mutation: %w", err)
			}
			if _, err := tx.ExecContext(ctx, query, payload); err != nil {
				return fmt.Errorf("failed to insert mutation: %w", err)
			}
		}
		return nil
	})
}
