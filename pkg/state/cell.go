// Package state provides small shared observable values.
//
// A Cell holds a single value of any type and notifies subscribers on
// every write. The reel CLI uses cells for process-wide UI state such as
// the streaming loading flag and the currently selected app, where several
// components need to observe one value without holding references to each
// other.
package state

import "sync"

// Cell is a concurrent-safe single-value container with subscriber
// notification.
//
// Writes are last-writer-wins. When several streams share one cell the
// visible value reflects only the most recent Set call, not a count of
// active writers. A reference-counted variant would change observable
// behavior for existing consumers, so the coarse semantics are kept.
type Cell[T any] struct {
	mu     sync.RWMutex
	value  T
	subs   map[int]func(T)
	nextID int
}

// NewCell returns a cell seeded with the given value.
// Subscribers are not notified of the seed value.
func NewCell[T any](value T) *Cell[T] {
	return &Cell[T]{value: value}
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.value
}

// Set stores v and notifies every subscriber with it.
// Notifications are not deduplicated: writing the value the cell already
// holds still notifies, so callers that re-assert state (a loading flag
// re-set on every chunk, for example) produce one notification per call.
func (c *Cell[T]) Set(v T) {
	c.mu.Lock()
	c.value = v

	// Snapshot subscribers so callbacks run outside the lock. A callback
	// that calls Get or Subscribe must not deadlock against Set.
	fns := make([]func(T), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Subscribe registers fn to be called on every subsequent Set.
// It returns an unsubscribe function. Calling it more than once is a no-op.
func (c *Cell[T]) Subscribe(fn func(T)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.subs == nil {
		c.subs = make(map[int]func(T))
	}

	id := c.nextID
	c.nextID++
	c.subs[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}
