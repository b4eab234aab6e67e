package identity

import (
	"context"
	"fmt"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nocturne-journal/nocturne/internal/common"
	"github.com/nocturne-journal/nocturne/internal/logging"
	"github.com/nocturne-journal/nocturne/internal/repositories/metadata"
)

// Session holds the current identity and the token pair backing it, loaded
// from and persisted to the metadata repository so both survive restarts.
// Change listeners fire on login, logout and token refresh; the sync engine
// subscribes to trigger a drain on auth transitions.
type Session struct {
	mu           sync.Mutex
	meta         metadata.Repository
	current      Identity
	accessToken  string
	refreshToken string
	onChange     []func(Identity)
	log          logging.Logger
}

// NewSession restores the previous session from the metadata repository.
// With no stored tokens the session starts as a guest; a device secret is
// generated and persisted on first run so the fingerprint stays stable.
func NewSession(ctx context.Context, meta metadata.Repository, log logging.Logger) (*Session, error) {
	s := &Session{meta: meta, log: log}

	secret, err := meta.Get(ctx, metadata.KeyDeviceSecret)
	if err != nil {
		return nil, fmt.Errorf("loading device secret: %w", err)
	}
	if len(secret) == 0 {
		secret = []byte(uuid.NewString())
		if err := meta.Set(ctx, metadata.KeyDeviceSecret, secret); err != nil {
			return nil, fmt.Errorf("storing device secret: %w", err)
		}
	}
	s.current = Identity{Kind: KindGuest, Fingerprint: Fingerprint(secret), Tier: TierFree}

	access, err := meta.Get(ctx, metadata.KeyAccessToken)
	if err != nil {
		return nil, fmt.Errorf("loading access token: %w", err)
	}
	refresh, err := meta.Get(ctx, metadata.KeyRefreshToken)
	if err != nil {
		return nil, fmt.Errorf("loading refresh token: %w", err)
	}
	if len(access) > 0 {
		ident, err := identityFromToken(string(access))
		if err != nil {
			// A stale or malformed token falls back to guest mode rather
			// than blocking startup.
			log.Warn(ctx, "stored access token unusable, starting as guest", "error", err)
		} else {
			s.current = ident
			s.accessToken = string(access)
			s.refreshToken = string(refresh)
		}
	}

	return s, nil
}

// Current returns the identity snapshot.
func (s *Session) Current() Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Authenticated reports whether a user is logged in.
func (s *Session) Authenticated() bool {
	return s.Current().Kind == KindUser
}

// Tokens returns the current access and refresh tokens.
func (s *Session) Tokens() (access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken, s.refreshToken
}

// SetTokens installs a new token pair (login or refresh), persists it and
// notifies change listeners.
func (s *Session) SetTokens(ctx context.Context, access, refresh string) error {
	ident, err := identityFromToken(access)
	if err != nil {
		return err
	}

	if err := s.meta.Set(ctx, metadata.KeyAccessToken, []byte(access)); err != nil {
		return fmt.Errorf("storing access token: %w", err)
	}
	if err := s.meta.Set(ctx, metadata.KeyRefreshToken, []byte(refresh)); err != nil {
		return fmt.Errorf("storing refresh token: %w", err)
	}

	s.mu.Lock()
	s.current = ident
	s.accessToken = access
	s.refreshToken = refresh
	listeners := append([]func(Identity){}, s.onChange...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(ident)
	}
	return nil
}

// Logout clears the token pair and returns to the guest identity derived
// from the persisted device secret.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.meta.Delete(ctx, metadata.KeyAccessToken); err != nil {
		return err
	}
	if err := s.meta.Delete(ctx, metadata.KeyRefreshToken); err != nil {
		return err
	}

	secret, err := s.meta.Get(ctx, metadata.KeyDeviceSecret)
	if err != nil {
		return err
	}
	ident := Identity{Kind: KindGuest, Fingerprint: Fingerprint(secret), Tier: TierFree}

	s.mu.Lock()
	s.current = ident
	s.accessToken = ""
	s.refreshToken = ""
	listeners := append([]func(Identity){}, s.onChange...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(ident)
	}
	return nil
}

// OnChange registers fn to be called after every identity transition.
func (s *Session) OnChange(fn func(Identity)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// identityFromToken extracts the user id and tier from access-token claims.
// The signature is the server's concern; the client only reads claims it
// was handed over TLS, so ParseUnverified is sufficient here.
func identityFromToken(access string) (Identity, error) {
	var claims jwt.MapClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(access, &claims); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Identity{}, common.ErrInvalidToken
	}

	tier := TierFree
	if v, ok := claims["tier"].(string); ok && v != "" {
		tier = Tier(v)
	}
	return Identity{Kind: KindUser, UserID: sub, Tier: tier}, nil
}
