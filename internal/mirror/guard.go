package mirror

import (
	"sync"
	"sync/atomic"
)

// Guard serialises units of work with shutdown. A unit holds the guard from
// its first request to its last write, so whoever acquires the guard next
// never observes a half-written unit.
type Guard struct {
	mu   sync.Mutex
	busy atomic.Bool
}

// Do runs fn while holding the guard. The guard is not re-entrant: fn must
// not call Do. Shutdown acquires it from another goroutine and waits for the
// unit in flight.
func (g *Guard) Do(fn func() error) error {
	g.mu.Lock()
	g.busy.Store(true)
	defer func() {
		g.busy.Store(false)
		g.mu.Unlock()
	}()
	return fn()
}

// Busy reports whether a unit is running.
func (g *Guard) Busy() bool {
	return g.busy.Load()
}
