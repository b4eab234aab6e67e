package mutations

import (
	"context"

	"github.com/nocturne-journal/nocturne/internal/models"
)

// Repository persists the ordered mutation queue. The queue is always
// written as a whole list: head removal and identifier remapping both
// produce a full rewrite, which keeps the persisted order authoritative.
type Repository interface {
	// GetAll returns the queue in submission order.
	GetAll(ctx context.Context) ([]models.Mutation, error)

	// ReplaceAll atomically replaces the persisted queue.
	ReplaceAll(ctx context.Context, queue []models.Mutation) error
}
