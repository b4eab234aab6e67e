package identity

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nocturne-journal/nocturne/internal/logging"
)

type memMeta struct {
	m map[string][]byte
}

func newMemMeta() *memMeta { return &memMeta{m: map[string][]byte{}} }

func (f *memMeta) Get(_ context.Context, key string) ([]byte, error) { return f.m[key], nil }
func (f *memMeta) Set(_ context.Context, key string, value []byte) error {
	f.m[key] = value
	return nil
}
func (f *memMeta) Delete(_ context.Context, key string) error {
	delete(f.m, key)
	return nil
}
func (f *memMeta) Clear(_ context.Context) error {
	f.m = map[string][]byte{}
	return nil
}

func testToken(t *testing.T, sub, tier string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  sub,
		"tier": tier,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestNewSession_StartsAsGuestWithStableFingerprint(t *testing.T) {
	meta := newMemMeta()
	ctx := context.Background()

	s1, err := NewSession(ctx, meta, logging.NewNop())
	require.NoError(t, err)
	ident := s1.Current()
	assert.Equal(t, KindGuest, ident.Kind)
	assert.Equal(t, TierFree, ident.Tier)
	assert.NotEmpty(t, ident.Fingerprint)

	// same metadata store, new session: same device, same fingerprint
	s2, err := NewSession(ctx, meta, logging.NewNop())
	require.NoError(t, err)
	assert.Equal(t, ident.Fingerprint, s2.Current().Fingerprint)
}

func TestSetTokens_BecomesUserAndNotifies(t *testing.T) {
	meta := newMemMeta()
	ctx := context.Background()

	s, err := NewSession(ctx, meta, logging.NewNop())
	require.NoError(t, err)

	var notified []Identity
	s.OnChange(func(i Identity) { notified = append(notified, i) })

	require.NoError(t, s.SetTokens(ctx, testToken(t, "user-42", "premium"), "refresh-1"))

	ident := s.Current()
	assert.Equal(t, KindUser, ident.Kind)
	assert.Equal(t, "user-42", ident.UserID)
	assert.Equal(t, TierPremium, ident.Tier)
	assert.True(t, ident.Tier.Paid())

	require.Len(t, notified, 1)
	assert.Equal(t, "user-42", notified[0].UserID)
}

func TestSession_RestoredFromPersistedTokens(t *testing.T) {
	meta := newMemMeta()
	ctx := context.Background()

	s, err := NewSession(ctx, meta, logging.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.SetTokens(ctx, testToken(t, "user-42", "free"), "refresh-1"))

	restored, err := NewSession(ctx, meta, logging.NewNop())
	require.NoError(t, err)
	assert.True(t, restored.Authenticated())
	assert.Equal(t, "user-42", restored.Current().UserID)

	access, refresh := restored.Tokens()
	assert.NotEmpty(t, access)
	assert.Equal(t, "refresh-1", refresh)
}

func TestLogout_BackToGuest(t *testing.T) {
	meta := newMemMeta()
	ctx := context.Background()

	s, err := NewSession(ctx, meta, logging.NewNop())
	require.NoError(t, err)
	guestFP := s.Current().Fingerprint

	require.NoError(t, s.SetTokens(ctx, testToken(t, "user-42", "premium"), "r"))
	require.NoError(t, s.Logout(ctx))

	ident := s.Current()
	assert.Equal(t, KindGuest, ident.Kind)
	assert.Equal(t, guestFP, ident.Fingerprint, "fingerprint survives login/logout")

	access, _ := s.Tokens()
	assert.Empty(t, access)
}

func TestSetTokens_RejectsGarbage(t *testing.T) {
	meta := newMemMeta()
	ctx := context.Background()

	s, err := NewSession(ctx, meta, logging.NewNop())
	require.NoError(t, err)
	require.Error(t, s.SetTokens(ctx, "not-a-jwt", "r"))
	assert.True(t, s.Current().Guest())
}

func TestOwnerID(t *testing.T) {
	guest := Identity{Kind: KindGuest, Fingerprint: "fp"}
	user := Identity{Kind: KindUser, UserID: "u1"}
	assert.Equal(t, "fp", guest.OwnerID())
	assert.Equal(t, "u1", user.OwnerID())
}

func TestFingerprint_DeterministicPerSecret(t *testing.T) {
	a := Fingerprint([]byte("secret-a"))
	b := Fingerprint([]byte("secret-b"))
	assert.Equal(t, a, Fingerprint([]byte("secret-a")))
	assert.NotEqual(t, a, b)
}
