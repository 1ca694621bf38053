// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package surface

import (
	"testing"

	"github.com/sourcegraph/conc"

	"github.com/gogpu/swapchain"
)

func testBuffer(w, h uint32) *swapchain.Buffer {
	return swapchain.NewBuffer(w, h, w*4, 0, 0, nopStorage{})
}

func TestCache_LookupMiss(t *testing.T) {
	c := NewCache()
	if _, ok := c.Lookup(0, 0); ok {
		t.Error("Lookup() on empty cache = hit, want miss")
	}
}

func TestCache_StoreLookup(t *testing.T) {
	c := NewCache()
	buf := testBuffer(64, 64)
	c.Store(3, 7, buf)

	got, ok := c.Lookup(3, 7)
	if !ok || got != buf {
		t.Errorf("Lookup(3, 7) = (%v, %v), want the stored buffer", got, ok)
	}
	if _, ok := c.Lookup(3, 8); ok {
		t.Error("Lookup() with stale generation = hit, want miss")
	}
	if _, ok := c.Lookup(4, 7); ok {
		t.Error("Lookup() of unknown slot = hit, want miss")
	}
}

func TestCache_StoreReplaces(t *testing.T) {
	c := NewCache()
	c.Store(0, 1, testBuffer(32, 32))
	fresh := testBuffer(64, 64)
	c.Store(0, 2, fresh)

	if _, ok := c.Lookup(0, 1); ok {
		t.Error("Lookup() of replaced generation = hit, want miss")
	}
	if got, ok := c.Lookup(0, 2); !ok || got != fresh {
		t.Error("Lookup() of new generation missed")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestCache_Invalidate(t *testing.T) {
	c := NewCache()
	c.Store(0, 1, testBuffer(32, 32))
	c.Store(1, 1, testBuffer(32, 32))

	c.Invalidate(0)
	if _, ok := c.Lookup(0, 1); ok {
		t.Error("Lookup() of invalidated slot = hit, want miss")
	}
	if _, ok := c.Lookup(1, 1); !ok {
		t.Error("Invalidate(0) dropped slot 1 too")
	}
}

func TestCache_Clear(t *testing.T) {
	c := NewCache()
	for i := 0; i < 4; i++ {
		c.Store(i, 1, testBuffer(32, 32))
	}
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() = %d after Clear(), want 0", c.Len())
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := NewCache()
	var wg conc.WaitGroup
	for i := 0; i < 8; i++ {
		slot := i
		wg.Go(func() {
			buf := testBuffer(32, 32)
			for g := uint32(0); g < 100; g++ {
				c.Store(slot, g, buf)
				if _, ok := c.Lookup(slot, g); !ok {
					t.Errorf("slot %d lost generation %d", slot, g)
				}
			}
			c.Invalidate(slot)
		})
	}
	wg.Wait()

	if c.Len() != 0 {
		t.Errorf("Len() = %d after all slots invalidated, want 0", c.Len())
	}
}
