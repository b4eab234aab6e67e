package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/nocturne-journal/nocturne/internal/common"
	"github.com/nocturne-journal/nocturne/internal/connectivity"
	"github.com/nocturne-journal/nocturne/internal/identity"
	"github.com/nocturne-journal/nocturne/internal/logging"
	"github.com/nocturne-journal/nocturne/internal/models"
	"github.com/nocturne-journal/nocturne/internal/remote"
)

// EntryReconciler is the slice of the entry store the engine needs to
// reconcile local state as queued mutations resolve.
type EntryReconciler interface {
	// ResolveRemoteID returns the remote id the store knows for localID.
	ResolveRemoteID(localID int64) (int64, bool)

	// AdoptServerEntry replaces the local copy with the authoritative
	// server object, clearing the pending-sync flag.
	AdoptServerEntry(ctx context.Context, localID int64, server models.JournalEntry) error

	// AttachRemoteID keeps the local copy (further mutations are still
	// queued for it) but records the server-assigned id.
	AttachRemoteID(ctx context.Context, localID int64, remoteID int64) error

	// RemoveLocal drops the entry after a confirmed remote delete.
	RemoveLocal(ctx context.Context, localID int64) error

	// MergeServerEntries reconciles a fetched server list into the store,
	// preferring local copies that still have queued mutations.
	MergeServerEntries(ctx context.Context, server []models.JournalEntry) error
}

// Engine drains the mutation queue against the backend, strictly
// head-to-tail. A failure at the head stops the drain and leaves the
// remainder queued: replay order is the correctness guarantee, and drains
// are retried on every connectivity or auth transition anyway.
type Engine struct {
	queue    *Queue
	backend  remote.Backend
	store    EntryReconciler
	session  *identity.Session
	gate     *connectivity.Gate
	log      logging.Logger
	draining atomic.Bool
}

func NewEngine(queue *Queue, backend remote.Backend, store EntryReconciler, session *identity.Session, gate *connectivity.Gate, log logging.Logger) *Engine {
	return &Engine{
		queue:   queue,
		backend: backend,
		store:   store,
		session: session,
		gate:    gate,
		log:     log,
	}
}

// Drain replays queued mutations until the queue is empty or a mutation
// fails. Guests and offline states are no-ops. Only one drain runs at a
// time; a request arriving mid-drain is dropped, since the running drain
// picks up anything enqueued meanwhile and the next trigger starts fresh.
func (e *Engine) Drain(ctx context.Context) error {
	if !e.session.Authenticated() {
		return nil
	}
	if !e.gate.Online(ctx) {
		return nil
	}
	if !e.draining.CompareAndSwap(false, true) {
		return nil
	}
	defer e.draining.Store(false)

	processed := 0
	for {
		m, ok := e.queue.Head()
		if !ok {
			break
		}

		if err := e.resolve(ctx, m); err != nil {
			e.log.Warn(ctx, "drain stopped", "kind", string(m.Kind), "localId", m.LocalID, "processed", processed, "error", err)
			if errors.Is(err, common.ErrMissingRemoteID) {
				return err
			}
			return nil
		}
		processed++
	}

	if processed > 0 {
		e.log.Info(ctx, "drain finished", "processed", processed)
	}
	return nil
}

// resolve replays one mutation against the backend and reconciles local
// state. An error means the head stays queued.
func (e *Engine) resolve(ctx context.Context, m models.Mutation) error {
	switch m.Kind {
	case models.MutationCreate:
		return e.resolveCreate(ctx, m)
	case models.MutationUpdate:
		return e.resolveUpdate(ctx, m)
	case models.MutationDelete:
		return e.resolveDelete(ctx, m)
	default:
		return fmt.Errorf("unknown mutation kind %q", m.Kind)
	}
}

func (e *Engine) resolveCreate(ctx context.Context, m models.Mutation) error {
	if m.Entry == nil {
		return fmt.Errorf("create mutation without entry payload")
	}

	server, err := e.backend.CreateEntry(ctx, *m.Entry, e.session.Current().OwnerID())
	if err != nil {
		return err
	}
	if server.RemoteID == nil {
		return fmt.Errorf("backend accepted create without assigning a remote id")
	}

	stillQueued, err := e.queue.ResolveCreateHead(ctx, *server.RemoteID)
	if err != nil {
		return err
	}

	if stillQueued {
		return e.store.AttachRemoteID(ctx, m.LocalID, *server.RemoteID)
	}
	return e.store.AdoptServerEntry(ctx, m.LocalID, server)
}

func (e *Engine) resolveUpdate(ctx context.Context, m models.Mutation) error {
	if m.Entry == nil {
		return fmt.Errorf("update mutation without entry payload")
	}

	remoteID, ok := e.remoteIDFor(m)
	if !ok {
		// Creates are always ordered before their updates, so this means
		// the queue invariant was broken somewhere upstream.
		return fmt.Errorf("update for entry %d: %w", m.LocalID, common.ErrMissingRemoteID)
	}

	entry := m.Entry.Clone()
	entry.RemoteID = &remoteID

	server, err := e.backend.UpdateEntry(ctx, entry)
	if err != nil {
		return err
	}

	stillQueued, err := e.queue.RemoveHead(ctx)
	if err != nil {
		return err
	}
	if stillQueued {
		return nil
	}
	return e.store.AdoptServerEntry(ctx, m.LocalID, server)
}

func (e *Engine) resolveDelete(ctx context.Context, m models.Mutation) error {
	remoteID, ok := e.remoteIDFor(m)
	if !ok {
		return fmt.Errorf("delete for entry %d: %w", m.LocalID, common.ErrMissingRemoteID)
	}

	// A record already gone on the server is a success for a delete.
	if err := e.backend.DeleteEntry(ctx, remoteID); err != nil && !errors.Is(err, common.ErrNotFound) {
		return err
	}

	if _, err := e.queue.RemoveHead(ctx); err != nil {
		return err
	}
	return e.store.RemoveLocal(ctx, m.LocalID)
}

// remoteIDFor resolves a mutation's remote id from its own payload first,
// falling back to what the store currently knows.
func (e *Engine) remoteIDFor(m models.Mutation) (int64, bool) {
	if m.RemoteID != nil {
		return *m.RemoteID, true
	}
	if m.Entry != nil && m.Entry.RemoteID != nil {
		return *m.Entry.RemoteID, true
	}
	return e.store.ResolveRemoteID(m.LocalID)
}

// Hydrate fetches the authoritative entry list for the current identity and
// merges it into the store. Called on auth transitions before draining.
func (e *Engine) Hydrate(ctx context.Context) error {
	if !e.session.Authenticated() || !e.gate.Online(ctx) {
		return nil
	}

	server, err := e.backend.FetchEntries(ctx, e.session.Current().OwnerID())
	if err != nil {
		return fmt.Errorf("fetching entries: %w", err)
	}
	return e.store.MergeServerEntries(ctx, server)
}
