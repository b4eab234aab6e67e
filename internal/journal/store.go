// Package journal implements the entry store: the authoritative, persisted,
// newest-first list of journal entries that every UI-facing operation goes
// through. Each mutating operation decides, from auth mode, connectivity
// and whether the entry already has a server id, whether to resolve against
// the backend directly or to queue the mutation for a later drain.
package journal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nocturne-journal/nocturne/internal/common"
	"github.com/nocturne-journal/nocturne/internal/connectivity"
	"github.com/nocturne-journal/nocturne/internal/identity"
	"github.com/nocturne-journal/nocturne/internal/logging"
	"github.com/nocturne-journal/nocturne/internal/models"
	"github.com/nocturne-journal/nocturne/internal/remote"
	"github.com/nocturne-journal/nocturne/internal/repositories/entries"
	"github.com/nocturne-journal/nocturne/internal/syncer"
)

// Store holds the in-memory entry list, mirrors it to durable storage on
// every write, and keeps a per-entry snapshot map so long-running async
// work (analysis) can read the freshest state without racing renders.
//
// The mutex guards in-memory state only; it is never held across a remote
// call. Callers are expected to issue one mutating call at a time per entry.
type Store struct {
	mu       sync.Mutex
	entries  []models.JournalEntry
	snapshot map[int64]models.JournalEntry

	repo    entries.Repository
	queue   *syncer.Queue
	backend remote.Backend
	session *identity.Session
	gate    *connectivity.Gate
	log     logging.Logger
}

func NewStore(repo entries.Repository, queue *syncer.Queue, backend remote.Backend, session *identity.Session, gate *connectivity.Gate, log logging.Logger) *Store {
	return &Store{
		snapshot: make(map[int64]models.JournalEntry),
		repo:     repo,
		queue:    queue,
		backend:  backend,
		session:  session,
		gate:     gate,
		log:      log,
	}
}

// Load restores the persisted list. Durable storage is the source of truth
// after a crash: whatever the previous process managed to write is what we
// continue from.
func (s *Store) Load(ctx context.Context) error {
	list, err := s.repo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("loading entries: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = list
	sort.Slice(s.entries, func(i, j int) bool { return s.entries[i].LocalID > s.entries[j].LocalID })
	s.snapshot = make(map[int64]models.JournalEntry, len(list))
	for _, e := range s.entries {
		s.snapshot[e.LocalID] = e.Clone()
	}
	return nil
}

// List returns a copy of all entries, newest-first.
func (s *Store) List() []models.JournalEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.JournalEntry, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Clone()
	}
	return out
}

// Get returns a copy of one entry by its local id.
func (s *Store) Get(localID int64) (models.JournalEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].LocalID == localID {
			return s.entries[i].Clone(), true
		}
	}
	return models.JournalEntry{}, false
}

// Snapshot returns the latest persisted state of one entry. In-flight async
// operations use this instead of a stale captured copy.
func (s *Store) Snapshot(localID int64) (models.JournalEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.snapshot[localID]
	if !ok {
		return models.JournalEntry{}, false
	}
	return e.Clone(), true
}

// Add creates a new entry. Guests write straight to local storage; an
// authenticated client tries the backend when online and falls back to the
// optimistic-plus-queue path on any remote failure.
func (s *Store) Add(ctx context.Context, entry models.JournalEntry) (models.JournalEntry, error) {
	if entry.LocalID == 0 {
		entry.LocalID = models.NextLocalID()
	}
	if entry.ClientRequestID == "" {
		entry.ClientRequestID = uuid.NewString()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	ident := s.session.Current()
	if ident.Guest() {
		if err := s.persist(ctx, &entry); err != nil {
			return models.JournalEntry{}, err
		}
		return entry, nil
	}

	if s.gate.Online(ctx) {
		server, err := s.backend.CreateEntry(ctx, entry, ident.OwnerID())
		if err == nil {
			server.LocalID = entry.LocalID
			server.PendingSync = false
			if err := s.persist(ctx, &server); err != nil {
				return models.JournalEntry{}, err
			}
			return server, nil
		}
		s.log.Warn(ctx, "remote create failed, queuing", "localId", entry.LocalID, "error", err)
	}

	entry.PendingSync = true
	if err := s.persist(ctx, &entry); err != nil {
		return models.JournalEntry{}, err
	}
	if err := s.queue.EnqueueCreate(ctx, entry); err != nil {
		return models.JournalEntry{}, err
	}
	return entry, nil
}

// Update overwrites an entry's content. Updating an entry that is no longer
// in the store is a silent no-op, tolerating a race with a concurrent
// delete.
func (s *Store) Update(ctx context.Context, entry models.JournalEntry) (models.JournalEntry, error) {
	existing, ok := s.Snapshot(entry.LocalID)
	if !ok {
		return models.JournalEntry{}, nil
	}

	// Identity fields never change through updates.
	entry.RemoteID = existing.RemoteID
	entry.ClientRequestID = existing.ClientRequestID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = existing.CreatedAt
	}
	entry.UpdatedAt = time.Now().UTC()

	ident := s.session.Current()
	if ident.Guest() {
		if err := s.persist(ctx, &entry); err != nil {
			return models.JournalEntry{}, err
		}
		return entry, nil
	}

	if entry.RemoteID != nil && !s.queue.HasPendingFor(entry.LocalID) && s.gate.Online(ctx) {
		server, err := s.backend.UpdateEntry(ctx, entry)
		if err == nil {
			server.LocalID = entry.LocalID
			server.PendingSync = false
			if err := s.persist(ctx, &server); err != nil {
				return models.JournalEntry{}, err
			}
			return server, nil
		}
		s.log.Warn(ctx, "remote update failed, queuing", "localId", entry.LocalID, "error", err)
	}

	entry.PendingSync = true
	if err := s.persist(ctx, &entry); err != nil {
		return models.JournalEntry{}, err
	}
	if err := s.enqueueChange(ctx, entry); err != nil {
		return models.JournalEntry{}, err
	}
	return entry, nil
}

// Remove deletes an entry. Deleting an entry that is already gone counts as
// success. The optimistic local removal always happens first on the queued
// path; a delete also clears any earlier queued mutations for the entry.
func (s *Store) Remove(ctx context.Context, localID int64) error {
	existing, ok := s.Snapshot(localID)
	if !ok {
		return nil
	}

	ident := s.session.Current()
	if ident.Guest() {
		return s.removeLocal(ctx, localID)
	}

	if existing.RemoteID != nil && !s.queue.HasPendingFor(localID) && s.gate.Online(ctx) {
		err := s.backend.DeleteEntry(ctx, *existing.RemoteID)
		if err == nil || isNotFound(err) {
			return s.removeLocal(ctx, localID)
		}
		s.log.Warn(ctx, "remote delete failed, queuing", "localId", localID, "error", err)
	}

	if err := s.removeLocal(ctx, localID); err != nil {
		return err
	}
	return s.queue.EnqueueDelete(ctx, localID, existing.RemoteID)
}

// ToggleFavorite flips the favorite flag. Unlike create/update/delete, the
// direct remote path does not degrade to queuing on failure: the optimistic
// flip is rolled back and the error returned, because the outcome is
// immediately user-visible. The offline path queues like any other edit.
func (s *Store) ToggleFavorite(ctx context.Context, localID int64) (models.JournalEntry, error) {
	existing, ok := s.Snapshot(localID)
	if !ok {
		return models.JournalEntry{}, nil
	}

	flipped := existing.Clone()
	flipped.IsFavorite = !existing.IsFavorite
	flipped.UpdatedAt = time.Now().UTC()

	ident := s.session.Current()
	if ident.Guest() {
		if err := s.persist(ctx, &flipped); err != nil {
			return models.JournalEntry{}, err
		}
		return flipped, nil
	}

	if existing.RemoteID != nil && !s.queue.HasPendingFor(localID) && s.gate.Online(ctx) {
		if err := s.persist(ctx, &flipped); err != nil {
			return models.JournalEntry{}, err
		}
		server, err := s.backend.UpdateEntry(ctx, flipped)
		if err != nil {
			if rbErr := s.persist(ctx, &existing); rbErr != nil {
				return models.JournalEntry{}, rbErr
			}
			return models.JournalEntry{}, fmt.Errorf("toggling favorite: %w", err)
		}
		server.LocalID = localID
		server.PendingSync = false
		if err := s.persist(ctx, &server); err != nil {
			return models.JournalEntry{}, err
		}
		return server, nil
	}

	flipped.PendingSync = true
	if err := s.persist(ctx, &flipped); err != nil {
		return models.JournalEntry{}, err
	}
	if err := s.enqueueChange(ctx, flipped); err != nil {
		return models.JournalEntry{}, err
	}
	return flipped, nil
}

// enqueueChange records the right mutation for a locally changed entry. An
// entry the server has never confirmed gets a create carrying the final
// state, since there is nothing remote to update. Guest-era entries edited
// after a login land here. Anything else gets an update, which the queue
// folds into an earlier create for the same entry if one is still queued.
func (s *Store) enqueueChange(ctx context.Context, entry models.JournalEntry) error {
	if entry.RemoteID == nil && !s.queue.HasPendingFor(entry.LocalID) {
		return s.queue.EnqueueCreate(ctx, entry)
	}
	return s.queue.EnqueueUpdate(ctx, entry)
}

// EnqueueLocalOnly queues a create for every entry the server has never
// confirmed and that has nothing queued yet. Called on the guest to user
// transition so guest-era entries reach the new account without waiting
// for the user to edit them.
func (s *Store) EnqueueLocalOnly(ctx context.Context) error {
	for _, e := range s.List() {
		if e.RemoteID != nil || s.queue.HasPendingFor(e.LocalID) {
			continue
		}
		e.PendingSync = true
		if err := s.persist(ctx, &e); err != nil {
			return err
		}
		if err := s.queue.EnqueueCreate(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// ClearSynced drops every entry whose state is fully confirmed remotely.
// Called on logout: the server keeps the authoritative copy, and the next
// guest session should not see the previous user's journal. Entries with
// unconfirmed local changes are kept so queued work is not lost.
func (s *Store) ClearSynced(ctx context.Context) error {
	s.mu.Lock()
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.RemoteID != nil && !e.PendingSync && !s.queue.HasPendingFor(e.LocalID) {
			delete(s.snapshot, e.LocalID)
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	list := make([]models.JournalEntry, len(s.entries))
	copy(list, s.entries)
	s.mu.Unlock()

	if err := s.repo.ReplaceAll(ctx, list); err != nil {
		return fmt.Errorf("persisting entries: %w", err)
	}
	return nil
}

// persist is the single write path: normalize, upsert into the sorted
// in-memory list, refresh the snapshot, then write the whole list to
// durable storage. In-memory state changes before the durable write so a
// crash in between is recovered by reloading from storage on next launch.
// The entry is normalized in place so callers return the same state that
// was written.
func (s *Store) persist(ctx context.Context, entry *models.JournalEntry) error {
	models.Normalize(entry)

	s.mu.Lock()
	replaced := false
	for i := range s.entries {
		if s.entries[i].LocalID == entry.LocalID {
			s.entries[i] = *entry
			replaced = true
			break
		}
	}
	if !replaced {
		s.entries = append(s.entries, *entry)
	}
	sort.Slice(s.entries, func(i, j int) bool { return s.entries[i].LocalID > s.entries[j].LocalID })
	s.snapshot[entry.LocalID] = entry.Clone()
	list := make([]models.JournalEntry, len(s.entries))
	copy(list, s.entries)
	s.mu.Unlock()

	if err := s.repo.ReplaceAll(ctx, list); err != nil {
		return fmt.Errorf("persisting entries: %w", err)
	}
	return nil
}

func (s *Store) removeLocal(ctx context.Context, localID int64) error {
	s.mu.Lock()
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.LocalID != localID {
			kept = append(kept, e)
		}
	}
	s.entries = kept
	delete(s.snapshot, localID)
	list := make([]models.JournalEntry, len(s.entries))
	copy(list, s.entries)
	s.mu.Unlock()

	if err := s.repo.ReplaceAll(ctx, list); err != nil {
		return fmt.Errorf("persisting entries: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, common.ErrNotFound)
}
