// Package syncer holds the persisted mutation queue and the engine that
// drains it against the backend.
package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nocturne-journal/nocturne/internal/models"
	"github.com/nocturne-journal/nocturne/internal/repositories/mutations"
)

// Queue is the ordered log of not-yet-synchronized create/update/delete
// intents. The in-memory slice mirrors the persisted queue; every change is
// written through before it is considered applied.
//
// The queue only changes in four ways: append (new mutation), payload fold
// (an update absorbed into a still-queued create for the same entry), head
// removal (successful replay) and bulk rewrite (identifier remapping after
// a create resolves, or a delete clearing prior mutations for its entry).
type Queue struct {
	mu    sync.Mutex
	repo  mutations.Repository
	items []models.Mutation
}

func NewQueue(repo mutations.Repository) *Queue {
	return &Queue{repo: repo}
}

// Load restores the persisted queue. Must be called before the first drain.
func (q *Queue) Load(ctx context.Context) error {
	items, err := q.repo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("loading mutation queue: %w", err)
	}
	q.mu.Lock()
	q.items = items
	q.mu.Unlock()
	return nil
}

// Len returns the current queue depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Items returns a copy of the queue in submission order.
func (q *Queue) Items() []models.Mutation {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.Mutation, len(q.items))
	for i, m := range q.items {
		out[i] = m.Clone()
	}
	return out
}

// HasPendingFor reports whether any queued mutation targets localID.
func (q *Queue) HasPendingFor(localID int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.indexFor(localID) >= 0
}

// EnqueueCreate appends a create mutation carrying the entry snapshot.
func (q *Queue) EnqueueCreate(ctx context.Context, entry models.JournalEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	e := entry.Clone()
	q.items = append(q.items, models.Mutation{
		ID:        uuid.NewString(),
		Kind:      models.MutationCreate,
		CreatedAt: time.Now().UTC(),
		LocalID:   entry.LocalID,
		Entry:     &e,
	})
	return q.persistLocked(ctx)
}

// EnqueueUpdate records an update intent. When the entry's create is still
// queued (no remote id yet) the update is folded into the create's payload
// so the eventual create carries the final state and the queue never holds
// an update ordered before its create. Otherwise a new update mutation is
// appended.
func (q *Queue) EnqueueUpdate(ctx context.Context, entry models.JournalEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	e := entry.Clone()
	for i := range q.items {
		if q.items[i].LocalID == entry.LocalID && q.items[i].Kind == models.MutationCreate {
			q.items[i].Entry = &e
			return q.persistLocked(ctx)
		}
	}

	q.items = append(q.items, models.Mutation{
		ID:        uuid.NewString(),
		Kind:      models.MutationUpdate,
		CreatedAt: time.Now().UTC(),
		LocalID:   entry.LocalID,
		RemoteID:  e.RemoteID,
		Entry:     &e,
	})
	return q.persistLocked(ctx)
}

// EnqueueDelete clears every queued mutation for the entry and, when the
// entry exists remotely, appends a delete. An entry whose create never left
// the device needs no remote delete at all.
func (q *Queue) EnqueueDelete(ctx context.Context, localID int64, remoteID *int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.items[:0]
	for _, m := range q.items {
		if m.LocalID != localID {
			kept = append(kept, m)
		}
	}
	q.items = kept

	if remoteID != nil {
		rid := *remoteID
		q.items = append(q.items, models.Mutation{
			ID:        uuid.NewString(),
			Kind:      models.MutationDelete,
			CreatedAt: time.Now().UTC(),
			LocalID:   localID,
			RemoteID:  &rid,
		})
	}
	return q.persistLocked(ctx)
}

// Head returns a copy of the head mutation.
func (q *Queue) Head() (models.Mutation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return models.Mutation{}, false
	}
	return q.items[0].Clone(), true
}

// ResolveCreateHead removes the head (which must be a create), rewrites
// every remaining mutation targeting the same entry to carry the
// server-assigned remote id, and persists the result. It reports whether
// further queued mutations still target the entry.
func (q *Queue) ResolveCreateHead(ctx context.Context, remoteID int64) (stillQueued bool, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 || q.items[0].Kind != models.MutationCreate {
		return false, fmt.Errorf("queue head is not a create")
	}
	localID := q.items[0].LocalID
	q.items = q.items[1:]

	for i := range q.items {
		if q.items[i].LocalID != localID {
			continue
		}
		rid := remoteID
		q.items[i].RemoteID = &rid
		if q.items[i].Entry != nil {
			q.items[i].Entry.RemoteID = &rid
		}
		stillQueued = true
	}

	if err := q.persistLocked(ctx); err != nil {
		return false, err
	}
	return stillQueued, nil
}

// RemoveHead removes the head mutation after a successful replay and
// reports whether further queued mutations still target the same entry.
func (q *Queue) RemoveHead(ctx context.Context) (stillQueued bool, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return false, fmt.Errorf("queue is empty")
	}
	localID := q.items[0].LocalID
	q.items = q.items[1:]

	if err := q.persistLocked(ctx); err != nil {
		return false, err
	}
	return q.indexFor(localID) >= 0, nil
}

func (q *Queue) indexFor(localID int64) int {
	for i := range q.items {
		if q.items[i].LocalID == localID {
			return i
		}
	}
	return -1
}

func (q *Queue) persistLocked(ctx context.Context) error {
	if err := q.repo.ReplaceAll(ctx, q.items); err != nil {
		return fmt.Errorf("persisting mutation queue: %w", err)
	}
	return nil
}
