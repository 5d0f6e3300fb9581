package app

import (
	"sync"
	"time"
)

// transitionRecord marks a room whose owner declared intent to navigate away
// and has not yet reconnected on the far side. connID is the connection the
// owner held when the window was armed; the expiry callback uses it to tell a
// genuinely absent owner from one that already came back on a new connection.
type transitionRecord struct {
	ownerName string
	connID    string
	startedAt time.Time
	timer     *time.Timer
}

// TransitionGuard suppresses disconnect-triggered eviction for owners that
// are mid-navigation. A record is armed by Begin, cleared by the owner's
// reconnect, and otherwise fires the expiry callback once after the grace
// window. Timers are cancellable and the expiry path is idempotent: it
// re-checks the record before acting.
type TransitionGuard struct {
	window   time.Duration
	onExpire func(roomID, ownerName, connID string)

	mu      sync.Mutex
	pending map[string]*transitionRecord
}

func NewTransitionGuard(window time.Duration, onExpire func(roomID, ownerName, connID string)) *TransitionGuard {
	return &TransitionGuard{
		window:   window,
		onExpire: onExpire,
		pending:  make(map[string]*transitionRecord),
	}
}

// Begin arms (or re-arms) the grace window for a room. A prior pending timer
// for the same room is cancelled and replaced.
func (g *TransitionGuard) Begin(roomID, ownerName, connID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if rec, ok := g.pending[roomID]; ok {
		rec.timer.Stop()
	}
	rec := &transitionRecord{ownerName: ownerName, connID: connID, startedAt: time.Now()}
	rec.timer = time.AfterFunc(g.window, func() {
		g.expire(roomID, ownerName, connID)
	})
	g.pending[roomID] = rec
}

// Clear is the success path: the owner reconnected before the window expired.
// It reports whether a matching record was pending.
func (g *TransitionGuard) Clear(roomID, ownerName string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.pending[roomID]
	if !ok || rec.ownerName != ownerName {
		return false
	}
	rec.timer.Stop()
	delete(g.pending, roomID)
	return true
}

// Pending reports whether a transition is in flight for (roomID, ownerName).
// The disconnect path uses this to suppress eviction.
func (g *TransitionGuard) Pending(roomID, ownerName string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.pending[roomID]
	return ok && rec.ownerName == ownerName
}

// Cancel drops any pending record for the room regardless of owner, used when
// the room itself is deleted.
func (g *TransitionGuard) Cancel(roomID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if rec, ok := g.pending[roomID]; ok {
		rec.timer.Stop()
		delete(g.pending, roomID)
	}
}

func (g *TransitionGuard) expire(roomID, ownerName, connID string) {
	g.mu.Lock()
	rec, ok := g.pending[roomID]
	if !ok || rec.ownerName != ownerName || rec.connID != connID {
		// Cleared or replaced after the timer fired.
		g.mu.Unlock()
		return
	}
	delete(g.pending, roomID)
	g.mu.Unlock()

	g.onExpire(roomID, ownerName, connID)
}
