// Package connectivity decides whether the client should attempt remote
// calls or queue work for later.
package connectivity

import "context"

// Signal is one reachability observation source. known is false when the
// source cannot currently assess reachability at all.
type Signal func(ctx context.Context) (reachable, known bool)

// Gate combines an explicit internet-reachability signal with a weaker
// link-level signal into a single boolean. The internet signal wins when it
// is known; otherwise the link signal is consulted; when neither signal is
// available the gate fails open and reports reachable, so an unknown state
// never forces needless queuing.
type Gate struct {
	internet Signal
	link     Signal
}

// NewGate builds a gate from the given signals. Either may be nil.
func NewGate(internet, link Signal) *Gate {
	return &Gate{internet: internet, link: link}
}

// Online reports whether remote calls should be attempted right now.
func (g *Gate) Online(ctx context.Context) bool {
	if g.internet != nil {
		if reachable, known := g.internet(ctx); known {
			return reachable
		}
	}
	if g.link != nil {
		if reachable, known := g.link(ctx); known {
			return reachable
		}
	}
	return true
}
