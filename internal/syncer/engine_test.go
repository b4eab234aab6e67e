package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nocturne-journal/nocturne/internal/common"
	"github.com/nocturne-journal/nocturne/internal/connectivity"
	"github.com/nocturne-journal/nocturne/internal/identity"
	"github.com/nocturne-journal/nocturne/internal/logging"
	"github.com/nocturne-journal/nocturne/internal/models"
	"github.com/nocturne-journal/nocturne/internal/remote"
)

type memMeta struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemMeta() *memMeta { return &memMeta{data: map[string][]byte{}} }

func (m *memMeta) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *memMeta) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memMeta) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memMeta) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = map[string][]byte{}
	return nil
}

func testToken(t *testing.T, sub, tier string) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": sub, "exp": time.Now().Add(time.Hour).Unix()}
	if tier != "" {
		claims["tier"] = tier
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func userSession(t *testing.T) *identity.Session {
	t.Helper()
	ctx := context.Background()
	s, err := identity.NewSession(ctx, newMemMeta(), logging.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.SetTokens(ctx, testToken(t, "user-1", "free"), "refresh"))
	return s
}

func guestSession(t *testing.T) *identity.Session {
	t.Helper()
	s, err := identity.NewSession(context.Background(), newMemMeta(), logging.NewNop())
	require.NoError(t, err)
	return s
}

func onlineGate() *connectivity.Gate {
	return connectivity.NewGate(func(context.Context) (bool, bool) { return true, true }, nil)
}

func offlineGate() *connectivity.Gate {
	return connectivity.NewGate(func(context.Context) (bool, bool) { return false, true }, nil)
}

// fakeBackend scripts the entry CRUD surface; other operations are unused
// by the engine.
type fakeBackend struct {
	mu        sync.Mutex
	nextID    int64
	created   map[string]int64 // clientRequestId -> assigned remote id
	deleted   []int64
	updated   []models.JournalEntry
	fetched   []models.JournalEntry
	createErr error
	updateErr error
	deleteErr error

	// lostCreateResponses makes that many creates apply server-side but
	// fail on the way back, like a response lost in transit.
	lostCreateResponses int

	createStarted chan struct{}
	createRelease chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{nextID: 900, created: map[string]int64{}}
}

func (b *fakeBackend) Ping(context.Context) error { return nil }

func (b *fakeBackend) CreateEntry(_ context.Context, entry models.JournalEntry, _ string) (models.JournalEntry, error) {
	if b.createStarted != nil {
		b.createStarted <- struct{}{}
		<-b.createRelease
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.createErr != nil {
		return models.JournalEntry{}, b.createErr
	}
	// deduplicate on the client request id, like the real server does
	id, ok := b.created[entry.ClientRequestID]
	if !ok {
		id = b.nextID
		b.nextID++
		b.created[entry.ClientRequestID] = id
	}
	if b.lostCreateResponses > 0 {
		b.lostCreateResponses--
		return models.JournalEntry{}, remote.ErrUnavailable
	}
	server := entry.Clone()
	server.RemoteID = &id
	server.PendingSync = false
	return server, nil
}

func (b *fakeBackend) UpdateEntry(_ context.Context, entry models.JournalEntry) (models.JournalEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.updateErr != nil {
		return models.JournalEntry{}, b.updateErr
	}
	b.updated = append(b.updated, entry.Clone())
	server := entry.Clone()
	server.PendingSync = false
	return server, nil
}

func (b *fakeBackend) DeleteEntry(_ context.Context, remoteID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deleteErr != nil {
		return b.deleteErr
	}
	b.deleted = append(b.deleted, remoteID)
	return nil
}

func (b *fakeBackend) FetchEntries(context.Context, string) ([]models.JournalEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fetched, nil
}

func (b *fakeBackend) AnalyzeText(context.Context, remote.AnalyzeTextRequest) (remote.AnalyzeTextResult, error) {
	return remote.AnalyzeTextResult{}, errors.New("not implemented")
}

func (b *fakeBackend) GenerateImage(context.Context, remote.GenerateImageRequest) (string, error) {
	return "", errors.New("not implemented")
}

func (b *fakeBackend) QuotaStatus(context.Context, string) (remote.QuotaStatus, error) {
	return remote.QuotaStatus{}, errors.New("not implemented")
}

func (b *fakeBackend) GetSalt(context.Context, string) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (b *fakeBackend) Login(context.Context, string, []byte) (remote.TokenPair, error) {
	return remote.TokenPair{}, errors.New("not implemented")
}

// fakeReconciler records how the engine reconciled local state.
type fakeReconciler struct {
	mu        sync.Mutex
	remoteIDs map[int64]int64
	adopted   []models.JournalEntry
	attached  map[int64]int64
	removed   []int64
	merged    []models.JournalEntry
}

func newFakeReconciler() *fakeReconciler {
	return &fakeReconciler{remoteIDs: map[int64]int64{}, attached: map[int64]int64{}}
}

func (r *fakeReconciler) ResolveRemoteID(localID int64) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.remoteIDs[localID]
	return id, ok
}

func (r *fakeReconciler) AdoptServerEntry(_ context.Context, localID int64, server models.JournalEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adopted = append(r.adopted, server)
	if server.RemoteID != nil {
		r.remoteIDs[localID] = *server.RemoteID
	}
	return nil
}

func (r *fakeReconciler) AttachRemoteID(_ context.Context, localID, remoteID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attached[localID] = remoteID
	r.remoteIDs[localID] = remoteID
	return nil
}

func (r *fakeReconciler) RemoveLocal(_ context.Context, localID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, localID)
	return nil
}

func (r *fakeReconciler) MergeServerEntries(_ context.Context, server []models.JournalEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.merged = server
	return nil
}

func newTestEngine(t *testing.T, backend remote.Backend, gate *connectivity.Gate, session *identity.Session) (*Engine, *Queue, *fakeReconciler) {
	t.Helper()
	q, _ := newTestQueue(t)
	store := newFakeReconciler()
	return NewEngine(q, backend, store, session, gate, logging.NewNop()), q, store
}

func TestDrain_GuestIsNoOp(t *testing.T) {
	backend := newFakeBackend()
	engine, q, _ := newTestEngine(t, backend, onlineGate(), guestSession(t))
	ctx := context.Background()

	require.NoError(t, q.EnqueueCreate(ctx, entry(5)))
	require.NoError(t, engine.Drain(ctx))

	assert.Equal(t, 1, q.Len())
	assert.Empty(t, backend.created)
}

func TestDrain_OfflineIsNoOp(t *testing.T) {
	backend := newFakeBackend()
	engine, q, _ := newTestEngine(t, backend, offlineGate(), userSession(t))
	ctx := context.Background()

	require.NoError(t, q.EnqueueCreate(ctx, entry(5)))
	require.NoError(t, engine.Drain(ctx))

	assert.Equal(t, 1, q.Len())
	assert.Empty(t, backend.created)
}

func TestDrain_RemapsCreateUpdateDelete(t *testing.T) {
	backend := newFakeBackend()
	engine, q, store := newTestEngine(t, backend, onlineGate(), userSession(t))
	ctx := context.Background()

	e := entry(5)
	e.ClientRequestID = "req-5"
	require.NoError(t, q.EnqueueCreate(ctx, e))
	q.items = append(q.items,
		models.Mutation{ID: "u", Kind: models.MutationUpdate, LocalID: 5, Entry: &e},
		models.Mutation{ID: "d", Kind: models.MutationDelete, LocalID: 5},
	)
	require.NoError(t, q.persistLocked(ctx))

	require.NoError(t, engine.Drain(ctx))

	// the create's id 900 flowed into the update and the delete
	assert.Equal(t, 0, q.Len())
	require.Len(t, backend.updated, 1)
	require.NotNil(t, backend.updated[0].RemoteID)
	assert.Equal(t, int64(900), *backend.updated[0].RemoteID)
	assert.Equal(t, []int64{900}, backend.deleted)

	// local entry kept its id while mutations remained, then was removed
	assert.Equal(t, int64(900), store.attached[5])
	assert.Equal(t, []int64{5}, store.removed)
}

func TestDrain_CreateFollowedByNothingAdoptsServerCopy(t *testing.T) {
	backend := newFakeBackend()
	engine, q, store := newTestEngine(t, backend, onlineGate(), userSession(t))
	ctx := context.Background()

	e := entry(5)
	e.ClientRequestID = "req-5"
	require.NoError(t, q.EnqueueCreate(ctx, e))
	require.NoError(t, engine.Drain(ctx))

	assert.Equal(t, 0, q.Len())
	require.Len(t, store.adopted, 1)
	require.NotNil(t, store.adopted[0].RemoteID)
	assert.Equal(t, int64(900), *store.adopted[0].RemoteID)
	assert.False(t, store.adopted[0].PendingSync)
}

func TestDrain_StopsAtFailedHeadKeepingOrder(t *testing.T) {
	backend := newFakeBackend()
	backend.createErr = remote.ErrUnavailable
	engine, q, _ := newTestEngine(t, backend, onlineGate(), userSession(t))
	ctx := context.Background()

	require.NoError(t, q.EnqueueCreate(ctx, entry(5)))
	require.NoError(t, q.EnqueueCreate(ctx, entry(6)))

	// transient failure is not surfaced; the queue simply stays put
	require.NoError(t, engine.Drain(ctx))
	assert.Equal(t, 2, q.Len())
	head, ok := q.Head()
	require.True(t, ok)
	assert.Equal(t, int64(5), head.LocalID)
}

func TestDrain_MissingRemoteIDIsSurfaced(t *testing.T) {
	backend := newFakeBackend()
	engine, q, _ := newTestEngine(t, backend, onlineGate(), userSession(t))
	ctx := context.Background()

	// an update with no create before it and no known remote id breaks the
	// queue invariant and must be reported, not silently retried forever
	e := entry(5)
	q.items = append(q.items, models.Mutation{ID: "u", Kind: models.MutationUpdate, LocalID: 5, Entry: &e})
	require.NoError(t, q.persistLocked(ctx))

	err := engine.Drain(ctx)
	require.ErrorIs(t, err, common.ErrMissingRemoteID)
	assert.Equal(t, 1, q.Len())
}

func TestDrain_DeleteToleratesMissingRemoteRecord(t *testing.T) {
	backend := newFakeBackend()
	backend.deleteErr = common.ErrNotFound
	engine, q, store := newTestEngine(t, backend, onlineGate(), userSession(t))
	ctx := context.Background()

	rid := int64(900)
	q.items = append(q.items, models.Mutation{ID: "d", Kind: models.MutationDelete, LocalID: 5, RemoteID: &rid})
	require.NoError(t, q.persistLocked(ctx))

	require.NoError(t, engine.Drain(ctx))
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, []int64{5}, store.removed)
}

// A create whose response was lost stays queued; the retried drain reuses
// the same client request id, so the server applies the create only once.
func TestDrain_CreateReplayIsIdempotent(t *testing.T) {
	backend := newFakeBackend()
	backend.lostCreateResponses = 1
	engine, q, store := newTestEngine(t, backend, onlineGate(), userSession(t))
	ctx := context.Background()

	e := entry(5)
	e.ClientRequestID = "req-5"
	require.NoError(t, q.EnqueueCreate(ctx, e))

	require.NoError(t, engine.Drain(ctx))
	assert.Equal(t, 1, q.Len())

	require.NoError(t, engine.Drain(ctx))
	assert.Equal(t, 0, q.Len())

	assert.Len(t, backend.created, 1)
	require.Len(t, store.adopted, 1)
	require.NotNil(t, store.adopted[0].RemoteID)
	assert.Equal(t, int64(900), *store.adopted[0].RemoteID)
}

func TestDrain_SingleInFlight(t *testing.T) {
	backend := newFakeBackend()
	backend.createStarted = make(chan struct{}, 1)
	backend.createRelease = make(chan struct{})
	engine, q, _ := newTestEngine(t, backend, onlineGate(), userSession(t))
	ctx := context.Background()

	e := entry(5)
	e.ClientRequestID = "req-5"
	require.NoError(t, q.EnqueueCreate(ctx, e))

	done := make(chan error, 1)
	go func() { done <- engine.Drain(ctx) }()
	<-backend.createStarted

	// a second drain while the first is mid-flight returns immediately
	require.NoError(t, engine.Drain(ctx))
	assert.Equal(t, 1, q.Len())

	close(backend.createRelease)
	require.NoError(t, <-done)
	assert.Equal(t, 0, q.Len())
}

func TestHydrate_MergesServerEntries(t *testing.T) {
	backend := newFakeBackend()
	rid := int64(41)
	backend.fetched = []models.JournalEntry{{LocalID: 1, RemoteID: &rid, Transcript: "from server"}}
	engine, _, store := newTestEngine(t, backend, onlineGate(), userSession(t))

	require.NoError(t, engine.Hydrate(context.Background()))
	require.Len(t, store.merged, 1)
	assert.Equal(t, "from server", store.merged[0].Transcript)
}

func TestHydrate_GuestIsNoOp(t *testing.T) {
	backend := newFakeBackend()
	backend.fetched = []models.JournalEntry{{LocalID: 1}}
	engine, _, store := newTestEngine(t, backend, onlineGate(), guestSession(t))

	require.NoError(t, engine.Hydrate(context.Background()))
	assert.Empty(t, store.merged)
}
