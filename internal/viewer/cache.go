package viewer

import (
	"sort"

	"restaurant-orders/internal/domain"
)

// Cache is a viewer's local view of the order list. It is owned by a
// single event loop, so it needs no locking; all mutation goes through
// Apply, ReplaceAll and MarkReadyLocally, which never let an order's
// status move backwards.
type Cache struct {
	orders     map[string]domain.Order
	optimistic map[string]bool // ids whose "ready" is a local timer guess
}

func NewCache() *Cache {
	return &Cache{
		orders:     make(map[string]domain.Order),
		optimistic: make(map[string]bool),
	}
}

// supersedes reports whether an incoming status may replace the cached
// one: cancelled always wins, otherwise strictly higher rank only.
func supersedes(cached, incoming domain.Status) bool {
	return incoming == domain.StatusCancelled || incoming.Rank() > cached.Rank()
}

// Apply merges one event into the cache and reports whether anything
// changed. Applying the same event twice is always a no-op the second
// time.
func (c *Cache) Apply(ev domain.Event) bool {
	switch e := ev.(type) {
	case domain.OrderCreated:
		if _, exists := c.orders[e.Order.ID]; exists {
			return false // duplicate delivery
		}
		c.orders[e.Order.ID] = e.Order
		return true

	case domain.StatusChanged:
		cur, exists := c.orders[e.OrderID]
		if !exists {
			// missed creation event: adopt the embedded snapshot
			o := e.Order
			o.ID = e.OrderID
			o.Status = e.NewStatus
			c.orders[e.OrderID] = o
			return true
		}
		if !supersedes(cur.Status, e.NewStatus) {
			if e.NewStatus == cur.Status {
				// authoritative confirmation of a local guess
				delete(c.optimistic, e.OrderID)
			}
			return false // late or duplicate, discard
		}
		cur.Status = e.NewStatus
		if e.Order.PrepStartedAt != nil {
			cur.PrepStartedAt = e.Order.PrepStartedAt
		}
		if e.Order.EstimatedPrepMinutes != nil {
			cur.EstimatedPrepMinutes = e.Order.EstimatedPrepMinutes
		}
		c.orders[e.OrderID] = cur
		delete(c.optimistic, e.OrderID) // authoritative word received
		return true

	case domain.OrderUpdated:
		cur, exists := c.orders[e.Order.ID]
		if !exists {
			c.orders[e.Order.ID] = e.Order
			return true
		}
		// item replace never moves status backwards
		next := e.Order
		if !supersedes(cur.Status, next.Status) {
			next.Status = cur.Status
		}
		c.orders[next.ID] = next
		return true

	case domain.QueueDrained:
		return false

	default:
		return false
	}
}

// ReplaceAll rebuilds the cache from a full resync fetch. Fetched rows win
// wholesale except where the surviving local entry is already further
// along; a stale snapshot must not drag a status back.
func (c *Cache) ReplaceAll(orders []domain.Order) {
	fresh := make(map[string]domain.Order, len(orders))
	for _, o := range orders {
		if prev, exists := c.orders[o.ID]; exists && !supersedes(prev.Status, o.Status) && prev.Status != o.Status {
			o.Status = prev.Status
		}
		fresh[o.ID] = o
	}
	c.orders = fresh
	c.optimistic = make(map[string]bool)
}

// MarkReadyLocally applies the optimistic countdown result. It is
// advisory only: it rides the same rank rule, is flagged as a guess, and
// the next authoritative event overrides it.
func (c *Cache) MarkReadyLocally(id string) bool {
	cur, exists := c.orders[id]
	if !exists || !supersedes(cur.Status, domain.StatusReady) {
		return false
	}
	cur.Status = domain.StatusReady
	c.orders[id] = cur
	c.optimistic[id] = true
	return true
}

// IsOptimistic reports whether an order's ready status is a local guess
// not yet confirmed by the server.
func (c *Cache) IsOptimistic(id string) bool { return c.optimistic[id] }

func (c *Cache) Get(id string) (domain.Order, bool) {
	o, ok := c.orders[id]
	return o, ok
}

func (c *Cache) Len() int { return len(c.orders) }

// Orders returns a stable-sorted snapshot of the cached orders.
func (c *Cache) Orders() []domain.Order {
	out := make([]domain.Order, 0, len(c.orders))
	for _, o := range c.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
