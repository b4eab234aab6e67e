package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/nocturne-journal/nocturne/internal/logging"
)

// Pinger is the minimal probe the watcher needs: typically the backend's
// health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingSignal adapts a backend ping into an internet-reachability Signal.
// A ping outcome is always a known signal: success means reachable, error
// means not.
func PingSignal(p Pinger, timeout time.Duration) Signal {
	return func(ctx context.Context) (bool, bool) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return p.Ping(ctx) == nil, true
	}
}

// Watcher polls the gate on an interval and notifies subscribers on every
// online/offline transition. The sync engine subscribes so a regained
// connection immediately triggers a drain.
type Watcher struct {
	gate     *Gate
	interval time.Duration
	log      logging.Logger

	mu     sync.Mutex
	online bool
	known  bool
	subs   []func(online bool)
}

func NewWatcher(gate *Gate, interval time.Duration, log logging.Logger) *Watcher {
	return &Watcher{gate: gate, interval: interval, log: log}
}

// Subscribe registers fn to be called on every transition.
func (w *Watcher) Subscribe(fn func(online bool)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subs = append(w.subs, fn)
}

// Online returns the last observed state; before the first observation it
// fails open like the gate itself.
func (w *Watcher) Online() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.known {
		return true
	}
	return w.online
}

// Run polls until ctx is done. The first check happens immediately.
func (w *Watcher) Run(ctx context.Context) {
	w.observe(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.observe(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) observe(ctx context.Context) {
	online := w.gate.Online(ctx)

	w.mu.Lock()
	changed := !w.known || online != w.online
	w.known = true
	w.online = online
	subs := append([]func(bool){}, w.subs...)
	w.mu.Unlock()

	if !changed {
		return
	}
	if online {
		w.log.Info(ctx, "connectivity regained")
	} else {
		w.log.Warn(ctx, "connectivity lost")
	}
	for _, fn := range subs {
		fn(online)
	}
}
