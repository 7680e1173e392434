package session

import "sync"

// Clock hands out per-connection generation tokens. Any action that
// invalidates in-flight work for a connection advances its token; a
// completion carrying an older token is discarded.
type Clock struct {
	mu  sync.Mutex
	gen map[string]uint64
}

// NewClock returns a Clock with every connection at generation zero.
func NewClock() *Clock {
	return &Clock{gen: make(map[string]uint64)}
}

// Advance bumps the token for id and returns the new value.
func (c *Clock) Advance(id string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen[id]++
	return c.gen[id]
}

// Current returns the token for id.
func (c *Clock) Current(id string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen[id]
}
