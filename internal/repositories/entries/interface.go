package entries

import (
	"context"

	"github.com/nocturne-journal/nocturne/internal/models"
)

// Repository persists the full journal entry list. The store treats durable
// storage as a single document: every write replaces the whole sorted list,
// so a crash mid-write never leaves a partially applied state behind.
type Repository interface {
	// GetAll returns every persisted entry, newest-first.
	GetAll(ctx context.Context) ([]models.JournalEntry, error)

	// ReplaceAll atomically replaces the persisted list with entries.
	ReplaceAll(ctx context.Context, entries []models.JournalEntry) error
}
