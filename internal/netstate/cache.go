// Package netstate maintains the process-wide blockhash/slot cache that
// dispatch engines sign against, refreshed by a background poller and an
// optional websocket slot feed.
package netstate

import (
	"sync"

	"github.com/gateway-fm/quotebench/pkg/types"
)

// Cache is the single shared mutable entity of the pipeline: the poller
// writes, every dispatch engine reads. The lock is held only for the copy,
// never across network calls.
type Cache struct {
	mu    sync.RWMutex
	state types.NetworkState
}

// NewCache returns an empty cache. It must be primed (see Poller.Prime)
// before any sender starts.
func NewCache() *Cache {
	return &Cache{}
}

// State returns a copy of the current network state.
func (c *Cache) State() types.NetworkState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Update overwrites the cached state. The slot never moves backwards: a
// stale poll result cannot undo a fresher slot from the feed.
func (c *Cache) Update(s types.NetworkState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.Slot < c.state.Slot {
		s.Slot = c.state.Slot
	}
	c.state = s
}

// AdvanceSlot raises the cached slot without touching the blockhash. Used
// by the slot feed, which sees slot progress faster than the poller.
func (c *Cache) AdvanceSlot(slot uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if slot > c.state.Slot {
		c.state.Slot = slot
	}
}
