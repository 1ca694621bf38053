// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package native

import (
	"sync"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/swapchain"
)

// Texture is the Storage implementation backing GPU buffers: one HAL
// texture plus the device that created it.
//
// Texture is safe for concurrent read access. Release destroys the
// underlying HAL texture exactly once; the swapchain calls it when a
// slot is invalidated, so any raw handle obtained earlier must not
// outlive the buffer's ownership.
type Texture struct {
	// mu protects mutable state.
	mu sync.RWMutex

	// halTexture is the underlying HAL texture handle.
	halTexture hal.Texture

	// device is the parent HAL device, retained for destruction.
	device hal.Device

	// label is the debug name given at creation.
	label string

	// released indicates whether the texture has been destroyed.
	released bool
}

var _ swapchain.Storage = (*Texture)(nil)

// Label returns the texture's debug name.
func (t *Texture) Label() string {
	return t.label
}

// Released returns true if the texture has been destroyed.
func (t *Texture) Released() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.released
}

// Raw returns the underlying HAL texture handle.
//
// Returns nil after Release. Use with caution - the caller should
// ensure the buffer is not released while the handle is in use.
func (t *Texture) Raw() hal.Texture {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.released {
		return nil
	}
	return t.halTexture
}

// Release implements swapchain.Storage, destroying the HAL texture.
//
// This method is idempotent - calling it multiple times is safe.
func (t *Texture) Release() {
	t.mu.Lock()
	if t.released {
		t.mu.Unlock()
		return
	}
	t.released = true
	device := t.device
	halTex := t.halTexture
	t.halTexture = nil
	t.mu.Unlock()

	if device != nil && halTex != nil {
		device.DestroyTexture(halTex)
	}
}

// TextureOf returns the HAL texture wrapper behind a GPU-backed buffer.
// ok is false when the buffer came from another backend.
func TextureOf(b *swapchain.Buffer) (*Texture, bool) {
	if b == nil {
		return nil, false
	}
	tex, ok := b.Storage().(*Texture)
	return tex, ok
}
