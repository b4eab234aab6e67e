// Package quota gates billable operations (analysis, exploration, chat
// messages) on the current identity's allowance. Denial is decided before
// any state mutation or remote call happens, so a blocked operation leaves
// no partial side effects behind.
package quota

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/nocturne-journal/nocturne/internal/identity"
	"github.com/nocturne-journal/nocturne/internal/logging"
	"github.com/nocturne-journal/nocturne/internal/remote"
	"github.com/nocturne-journal/nocturne/internal/repositories/metadata"
)

// Class is an operation class with its own allowance.
type Class string

const (
	ClassAnalysis    Class = "analysis"
	ClassExploration Class = "exploration"
	ClassMessages    Class = "messages"
)

// DefaultFreeAnalysisLimit applies when no server-reported limit is
// available (e.g. a guest who has never been online).
const DefaultFreeAnalysisLimit = 3

// QuotaExceededError reports a denied billable operation and the tier it
// was denied at, so the UI can pitch the right upgrade.
type QuotaExceededError struct {
	Tier  identity.Tier
	Class Class
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s at tier %s", e.Class, e.Tier)
}

// StatusProvider is the slice of the backend the gate consumes.
type StatusProvider interface {
	QuotaStatus(ctx context.Context, ownerID string) (remote.QuotaStatus, error)
}

// Gate caches the server's usage snapshot per identity and consults it for
// non-paid tiers. Paid tiers short-circuit to allowed without any remote
// check. Guests additionally keep a local analysis counter that is
// reconciled against the server's count by taking the maximum; the local
// count must never undercount server truth, or a reinstall would reset the
// allowance.
type Gate struct {
	mu        sync.Mutex
	cached    *remote.QuotaStatus
	cachedFor identity.Identity

	provider StatusProvider
	session  *identity.Session
	meta     metadata.Repository
	log      logging.Logger
}

func NewGate(provider StatusProvider, session *identity.Session, meta metadata.Repository, log logging.Logger) *Gate {
	return &Gate{provider: provider, session: session, meta: meta, log: log}
}

// Allow returns nil when the current identity may perform one more
// operation of the given class, or a *QuotaExceededError when it may not.
// A snapshot that cannot be refreshed does not deny: the backend remains
// the enforcing side, the gate only avoids pointless calls.
func (g *Gate) Allow(ctx context.Context, class Class) error {
	ident := g.session.Current()
	if ident.Tier.Paid() {
		return nil
	}

	status, err := g.status(ctx, ident)
	if err != nil {
		g.log.Warn(ctx, "quota status unavailable, deferring to server enforcement", "error", err)
		if ident.Guest() && class == ClassAnalysis {
			return g.allowGuestOffline(ctx, ident)
		}
		return nil
	}

	switch class {
	case ClassAnalysis:
		if ident.Guest() {
			used, err := g.guestCount(ctx)
			if err != nil {
				return err
			}
			if used < status.AnalysisUsed {
				used = status.AnalysisUsed
			}
			limit := status.AnalysisLimit
			if limit == 0 {
				limit = DefaultFreeAnalysisLimit
			}
			if used >= limit {
				return &QuotaExceededError{Tier: ident.Tier, Class: class}
			}
			return nil
		}
		if !status.CanAnalyze {
			return &QuotaExceededError{Tier: ident.Tier, Class: class}
		}
	case ClassExploration:
		if !status.CanExplore {
			return &QuotaExceededError{Tier: ident.Tier, Class: class}
		}
	case ClassMessages:
		if status.MessagesLimit > 0 && status.MessagesUsed >= status.MessagesLimit {
			return &QuotaExceededError{Tier: ident.Tier, Class: class}
		}
	}
	return nil
}

// CanAnalyze is the gate consulted by the analysis orchestrator.
func (g *Gate) CanAnalyze(ctx context.Context) error {
	return g.Allow(ctx, ClassAnalysis)
}

// allowGuestOffline falls back to the local counter against the default
// limit when no server snapshot is reachable.
func (g *Gate) allowGuestOffline(ctx context.Context, ident identity.Identity) error {
	used, err := g.guestCount(ctx)
	if err != nil {
		return err
	}
	if used >= DefaultFreeAnalysisLimit {
		return &QuotaExceededError{Tier: ident.Tier, Class: ClassAnalysis}
	}
	return nil
}

// Invalidate drops the cached snapshot so the next check refetches usage.
// Called after every successful billable operation.
func (g *Gate) Invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cached = nil
}

// Usage returns the current snapshot, refreshing it if needed.
func (g *Gate) Usage(ctx context.Context) (remote.QuotaStatus, error) {
	status, err := g.status(ctx, g.session.Current())
	if err != nil {
		return remote.QuotaStatus{}, err
	}
	return *status, nil
}

// RecordGuestAnalysis bumps the local guest counter by one and reconciles
// it with the server-reported count when present, keeping the maximum.
func (g *Gate) RecordGuestAnalysis(ctx context.Context, serverCount *int) error {
	used, err := g.guestCount(ctx)
	if err != nil {
		return err
	}
	used++
	if serverCount != nil && *serverCount > used {
		used = *serverCount
	}
	return g.meta.Set(ctx, metadata.KeyGuestAnalysisCount, []byte(strconv.Itoa(used)))
}

// GuestAnalysisCount exposes the local counter (for status display).
func (g *Gate) GuestAnalysisCount(ctx context.Context) (int, error) {
	return g.guestCount(ctx)
}

func (g *Gate) guestCount(ctx context.Context) (int, error) {
	raw, err := g.meta.Get(ctx, metadata.KeyGuestAnalysisCount)
	if err != nil {
		return 0, fmt.Errorf("reading guest analysis count: %w", err)
	}
	if len(raw) == 0 {
		return 0, nil
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, fmt.Errorf("corrupt guest analysis count %q: %w", raw, err)
	}
	return n, nil
}

// status returns the cached snapshot for ident, refetching when the cache
// is empty or belongs to a different identity or tier.
func (g *Gate) status(ctx context.Context, ident identity.Identity) (*remote.QuotaStatus, error) {
	g.mu.Lock()
	if g.cached != nil && g.cachedFor == ident {
		cached := *g.cached
		g.mu.Unlock()
		return &cached, nil
	}
	g.mu.Unlock()

	status, err := g.provider.QuotaStatus(ctx, ident.OwnerID())
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	g.cached = &status
	g.cachedFor = ident
	g.mu.Unlock()
	return &status, nil
}
