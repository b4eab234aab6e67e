package entries

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

// GetAll lists all entries ordered newest-first by local id.
func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.JournalEntry, error) {
	query := `SELECT payload FROM entries ORDER BY local_id DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select entries: %w", err)
	}
	defer rows.Close()

	var result []models.JournalEntry
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var item models.JournalEntry
		if err := json.Unmarshal(payload, &item); err != nil {
			return nil, fmt.Errorf("failed to decode entry: %w", err)
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ReplaceAll rewrites the entries table with the given list in one
// transaction, so readers never observe a partially applied list.
func (r *SQLiteRepository) ReplaceAll(ctx context.Context, entries []models.JournalEntry) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM entries`); err != nil {
			return fmt.Errorf("failed to clear entries: %w", err)
		}
		query := `INSERT INTO entries (local_id, remote_id, payload) VALUES (?, ?, ?)`
		for _, e := range entries {
			payload, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("failed to encode entry: %w", err)
			}
			var remoteID any
			if e.RemoteID != nil {
				remoteID = *e.RemoteID
			}
			if _, err := tx.ExecContext(ctx, query, e.LocalID, remoteID, payload); err != nil {
				return fmt.Errorf("failed to insert entry: %w", err)
			}
		}
		return nil
	})
}
