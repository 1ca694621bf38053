// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package surface

import (
	"sync"

	"github.com/gogpu/swapchain"
)

// Cache remembers the buffer fetched for each slot and the generation
// it belonged to. A lookup hits only when the generation still matches,
// so a reallocation or buffer-count reset on the queue naturally reads
// as a miss and triggers a fresh RequestBuffer.
//
// A Cache is safe for concurrent use. The zero value is not usable;
// call NewCache.
type Cache struct {
	mu      sync.Mutex
	entries map[int]cacheEntry
}

type cacheEntry struct {
	generation uint32
	buffer     *swapchain.Buffer
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[int]cacheEntry)}
}

// Lookup returns the cached buffer for slot if it was stored under the
// same generation.
func (c *Cache) Lookup(slot int, generation uint32) (*swapchain.Buffer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[slot]
	if !ok || e.generation != generation {
		return nil, false
	}
	return e.buffer, true
}

// Store records buf as the slot's buffer for the given generation,
// replacing any earlier entry for the slot.
func (c *Cache) Store(slot int, generation uint32, buf *swapchain.Buffer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[slot] = cacheEntry{generation: generation, buffer: buf}
}

// Invalidate drops the entry for one slot.
func (c *Cache) Invalidate(slot int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, slot)
}

// Clear drops every entry. Consumers typically call this from
// OnBuffersReleased.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// Len returns the number of cached slots.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
