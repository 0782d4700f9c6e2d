package planning

import (
	"sync"
	"sync/atomic"

	"fleemy/internal/core"
)

// guard serialises mutations per entity id and numbers loads so that only the
// latest one is applied.
type guard struct {
	mu       sync.Mutex
	inflight map[string]struct{}
	gen      atomic.Uint64
}

func newGuard() *guard {
	return &guard{inflight: make(map[string]struct{})}
}

// acquire claims every id or none of them.
func (g *guard) acquire(ids ...string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, id := range ids {
		if _, busy := g.inflight[id]; busy {
			return core.ErrMutationInFlight
		}
	}
	for _, id := range ids {
		g.inflight[id] = struct{}{}
	}
	return nil
}

func (g *guard) release(ids ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, id := range ids {
		delete(g.inflight, id)
	}
}

// nextLoad starts a new load generation.
func (g *guard) nextLoad() uint64 {
	return g.gen.Add(1)
}

// current reports whether gen is still the latest load.
func (g *guard) current(gen uint64) bool {
	return g.gen.Load() == gen
}
