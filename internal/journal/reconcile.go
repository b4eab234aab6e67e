package journal

import (
	"context"
	"fmt"
	"sort"

	"github.com/nocturne-journal/nocturne/internal/models"
)

// The methods in this file implement syncer.EntryReconciler: they are how
// the drain loop feeds authoritative server state back into the store.

// ResolveRemoteID returns the remote id currently known for localID.
func (s *Store) ResolveRemoteID(localID int64) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.snapshot[localID]
	if !ok || e.RemoteID == nil {
		return 0, false
	}
	return *e.RemoteID, true
}

// AdoptServerEntry replaces the local copy with the server object under the
// same local id, clearing the pending flag. Used when no further queued
// mutation targets the entry, so the server copy is authoritative.
func (s *Store) AdoptServerEntry(ctx context.Context, localID int64, server models.JournalEntry) error {
	server.LocalID = localID
	server.PendingSync = false
	return s.persist(ctx, &server)
}

// AttachRemoteID records the server-assigned id on the local copy while
// later queued mutations for the entry are still pending; the local content
// stays authoritative until they resolve.
func (s *Store) AttachRemoteID(ctx context.Context, localID int64, remoteID int64) error {
	existing, ok := s.Snapshot(localID)
	if !ok {
		return nil
	}
	if existing.RemoteID != nil && *existing.RemoteID != remoteID {
		return fmt.Errorf("entry %d already bound to remote id %d", localID, *existing.RemoteID)
	}
	existing.RemoteID = &remoteID
	return s.persist(ctx, &existing)
}

// RemoveLocal drops the entry after its remote delete was confirmed.
func (s *Store) RemoveLocal(ctx context.Context, localID int64) error {
	return s.removeLocal(ctx, localID)
}

// MergeServerEntries reconciles a freshly fetched server list into the
// store. Local copies with queued mutations win over their server
// counterparts (local-first); synced local copies missing from the server
// list were deleted elsewhere and are dropped; server entries unknown
// locally are added.
func (s *Store) MergeServerEntries(ctx context.Context, server []models.JournalEntry) error {
	s.mu.Lock()

	byRemote := make(map[int64]int, len(s.entries))
	usedLocal := make(map[int64]bool, len(s.entries))
	for i, e := range s.entries {
		if e.RemoteID != nil {
			byRemote[*e.RemoteID] = i
		}
		usedLocal[e.LocalID] = true
	}

	seen := make(map[int64]bool, len(server))
	merged := make([]models.JournalEntry, 0, len(s.entries)+len(server))

	for _, sv := range server {
		if sv.RemoteID == nil {
			continue
		}
		seen[*sv.RemoteID] = true

		if i, ok := byRemote[*sv.RemoteID]; ok {
			local := s.entries[i]
			if local.PendingSync || s.queue.HasPendingFor(local.LocalID) {
				merged = append(merged, local)
				continue
			}
			sv.LocalID = local.LocalID
			sv.PendingSync = false
			models.Normalize(&sv)
			merged = append(merged, sv)
			continue
		}

		if sv.LocalID == 0 || usedLocal[sv.LocalID] {
			sv.LocalID = models.NextLocalID()
		}
		usedLocal[sv.LocalID] = true
		sv.PendingSync = false
		models.Normalize(&sv)
		merged = append(merged, sv)
	}

	for _, local := range s.entries {
		if local.RemoteID == nil {
			// Never confirmed remotely: keep, it is local-only or queued.
			merged = append(merged, local)
			continue
		}
		if seen[*local.RemoteID] {
			continue
		}
		if local.PendingSync || s.queue.HasPendingFor(local.LocalID) {
			merged = append(merged, local)
		}
	}

	sort.Slice(merged, func(i, j int) bool { return merged[i].LocalID > merged[j].LocalID })
	s.entries = merged
	s.snapshot = make(map[int64]models.JournalEntry, len(merged))
	for _, e := range merged {
		s.snapshot[e.LocalID] = e.Clone()
	}
	list := make([]models.JournalEntry, len(merged))
	copy(list, merged)
	s.mu.Unlock()

	if err := s.repo.ReplaceAll(ctx, list); err != nil {
		return fmt.Errorf("persisting merged entries: %w", err)
	}
	return nil
}
