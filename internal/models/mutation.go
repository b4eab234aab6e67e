package models

import "time"

// MutationKind discriminates the closed set of deferred operations.
type MutationKind string

const (
	MutationCreate MutationKind = "create"
	MutationUpdate MutationKind = "update"
	MutationDelete MutationKind = "delete"
)

// Mutation is one deferred create/update/delete intent awaiting remote
// confirmation. Create and update carry a full entry snapshot; delete only
// carries identifiers.
//
// LocalID is always set so the queue can be scanned for every mutation that
// targets a given entry. RemoteID is nil for mutations enqueued before the
// entry's create was confirmed; the sync engine fills it in when the create
// resolves.
type Mutation struct {
	ID        string        `json:"id"`
	Kind      MutationKind  `json:"kind"`
	CreatedAt time.Time     `json:"createdAt"`
	LocalID   int64         `json:"localId"`
	RemoteID  *int64        `json:"remoteId,omitempty"`
	Entry     *JournalEntry `json:"entry,omitempty"`
}

// Clone returns a deep copy of the mutation.
func (m Mutation) Clone() Mutation {
	out := m
	if m.RemoteID != nil {
		v := *m.RemoteID
		out.RemoteID = &v
	}
	if m.Entry != nil {
		e := m.Entry.Clone()
		out.Entry = &e
	}
	return out
}
