package viewer

import (
	"sync"
	"time"

	"restaurant-orders/internal/domain"
)

// autoReady arms one countdown per preparing order and fires a callback
// when the estimated preparation time elapses. Callbacks run on timer
// goroutines; the owner serializes them back into its event loop.
type autoReady struct {
	onExpired func(orderID string)

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func newAutoReady(onExpired func(orderID string)) *autoReady {
	return &autoReady{onExpired: onExpired, timers: make(map[string]*time.Timer)}
}

// Observe syncs the countdown for one order with its current state:
// preparing orders with a known start and estimate get a timer, everything
// else gets any existing timer cleared.
func (a *autoReady) Observe(o domain.Order) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if t, ok := a.timers[o.ID]; ok {
		t.Stop()
		delete(a.timers, o.ID)
	}

	if o.Status != domain.StatusPreparing || o.PrepStartedAt == nil || o.EstimatedPrepMinutes == nil {
		return
	}

	deadline := o.PrepStartedAt.Add(time.Duration(*o.EstimatedPrepMinutes) * time.Minute)
	remaining := time.Until(deadline)
	if remaining < 0 {
		remaining = 0
	}
	id := o.ID
	a.timers[id] = time.AfterFunc(remaining, func() {
		a.mu.Lock()
		delete(a.timers, id)
		a.mu.Unlock()
		a.onExpired(id)
	})
}

// StopAll clears every pending countdown; used on teardown and before a
// full resync rebuilds the order set.
func (a *autoReady) StopAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, t := range a.timers {
		t.Stop()
		delete(a.timers, id)
	}
}
