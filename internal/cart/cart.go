// Package cart implements the shopping cart state machine and its
// persistence interface. A Cart holds an ordered set of lines keyed by
// book ID; every mutation notifies subscribers with a snapshot so the
// current state can be written through to storage.
package cart

import (
	"sync"

	"github.com/restory/server/internal/domain"
)

// Line is a single cart entry. Quantity is always at least 1; a line
// that would reach zero is removed instead.
type Line struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Author     string `json:"author"`
	PriceCents int64  `json:"price_cents"`
	ImageURL   string `json:"image_url"`
	Quantity   int    `json:"quantity"`
}

// Subscriber receives a snapshot of the cart lines after each mutation.
// Snapshots are copies; subscribers may retain them.
type Subscriber func(sessionID string, lines []Line)

// Cart is the in-memory cart for one session. All methods are safe for
// concurrent use. Subscribers are notified in mutation order: the
// snapshot delivered last always reflects the latest mutation, so a
// write-through store never ends up holding a stale snapshot.
type Cart struct {
	sessionID string

	// writeMu is held across a mutation and its subscriber
	// notifications, keeping deliveries in the same order as the
	// mutations that produced them. Subscribers must not mutate the
	// cart; reads are fine.
	writeMu sync.Mutex

	mu    sync.Mutex
	lines []Line // insertion order
	subs  []Subscriber
}

// New creates an empty cart for the given session.
func New(sessionID string) *Cart {
	return &Cart{sessionID: sessionID}
}

// Hydrate creates a cart pre-populated with previously persisted lines.
// Lines with a non-positive quantity, a negative price, or an empty ID
// are dropped, and a duplicate ID merges into the earlier line, so a
// damaged record can never produce an invalid cart.
func Hydrate(sessionID string, lines []Line) *Cart {
	c := New(sessionID)
	for _, l := range lines {
		if l.ID == "" || l.Quantity <= 0 || l.PriceCents < 0 {
			continue
		}
		if existing := c.find(l.ID); existing != nil {
			existing.Quantity += l.Quantity
			continue
		}
		c.lines = append(c.lines, l)
	}
	return c
}

// SessionID returns the session this cart belongs to.
func (c *Cart) SessionID() string {
	return c.sessionID
}

// Subscribe registers fn to be called after every mutation.
func (c *Cart) Subscribe(fn Subscriber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, fn)
}

// AddItem adds a line to the cart. If a line with the same ID already
// exists, the quantities are merged and the stored title, price, and
// image are left as they were.
func (c *Cart) AddItem(line Line) error {
	if line.ID == "" {
		return domain.Invalid("cart.add", "item ID is required")
	}
	if line.Quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	if line.PriceCents < 0 {
		return domain.Invalid("cart.add", "item price must not be negative")
	}

	c.mutate(func() {
		if existing := c.find(line.ID); existing != nil {
			existing.Quantity += line.Quantity
		} else {
			c.lines = append(c.lines, line)
		}
	})
	return nil
}

// RemoveItem removes the line with the given ID. Removing an ID that is
// not in the cart is a no-op.
func (c *Cart) RemoveItem(id string) {
	c.mutate(func() {
		c.removeLocked(id)
	})
}

// removeLocked drops the line with the given ID. Caller must hold c.mu.
func (c *Cart) removeLocked(id string) {
	kept := c.lines[:0]
	for _, l := range c.lines {
		if l.ID != id {
			kept = append(kept, l)
		}
	}
	c.lines = kept
}

// IncreaseQuantity increments the quantity of the line with the given
// ID by one. An absent ID is a no-op.
func (c *Cart) IncreaseQuantity(id string) {
	c.mutate(func() {
		if l := c.find(id); l != nil {
			l.Quantity++
		}
	})
}

// DecreaseQuantity decrements the quantity of the line with the given
// ID by one. Decrementing a line at quantity 1 removes it; a zero
// quantity line never exists. An absent ID is a no-op.
func (c *Cart) DecreaseQuantity(id string) {
	c.mutate(func() {
		if l := c.find(id); l != nil {
			if l.Quantity > 1 {
				l.Quantity--
			} else {
				c.removeLocked(id)
			}
		}
	})
}

// Clear removes all lines from the cart.
func (c *Cart) Clear() {
	c.mutate(func() {
		c.lines = nil
	})
}

// Lines returns a copy of the cart lines in insertion order.
func (c *Cart) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// TotalCents returns the sum of price times quantity across all lines.
func (c *Cart) TotalCents() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var total int64
	for _, l := range c.lines {
		total += l.PriceCents * int64(l.Quantity)
	}
	return total
}

// ItemCount returns the total quantity across all lines.
func (c *Cart) ItemCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var n int
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines) == 0
}

// find returns a pointer to the line with the given ID, or nil.
// Caller must hold c.mu.
func (c *Cart) find(id string) *Line {
	for i := range c.lines {
		if c.lines[i].ID == id {
			return &c.lines[i]
		}
	}
	return nil
}

// snapshotLocked copies the current lines. Caller must hold c.mu.
func (c *Cart) snapshotLocked() []Line {
	snapshot := make([]Line, len(c.lines))
	copy(snapshot, c.lines)
	return snapshot
}

// mutate applies fn under the state lock, then delivers the resulting
// snapshot to subscribers. writeMu is held for the whole of it so a
// slow subscriber cannot be overtaken by a later mutation's delivery.
// The state lock itself is released before subscribers run, so they
// may read the cart without deadlocking.
func (c *Cart) mutate(fn func()) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	fn()
	snapshot := c.snapshotLocked()
	subs := make([]Subscriber, len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	for _, sub := range subs {
		sub(c.sessionID, snapshot)
	}
}
