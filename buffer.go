// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package swapchain

import (
	"image"

	"github.com/gogpu/gputypes"
)

// Storage is the allocator-owned backing of a Buffer. The queue treats
// it as opaque; backends expose their concrete types for callers that
// need the underlying texture or bytes.
type Storage interface {
	// Release frees the backing memory. Implementations must tolerate
	// repeated calls.
	Release()
}

// Buffer is one allocated graphics buffer: an opaque storage handle plus
// the metadata the queue negotiated for it. Buffers compare by identity;
// two dequeues of the same slot and generation return the same *Buffer.
//
// The queue owns buffers it allocated and releases their storage when a
// slot is invalidated. Holders that cached a (slot, generation, buffer)
// triple learn about that through the generation bump, not through the
// pointer.
type Buffer struct {
	Width  uint32
	Height uint32

	// Stride is the row pitch in bytes. Backends may pad rows beyond
	// Width for alignment.
	Stride uint32

	Format gputypes.TextureFormat
	Usage  gputypes.TextureUsage

	storage Storage
}

// NewBuffer wraps allocator storage with its metadata. Intended for
// Allocator implementations under backend/.
func NewBuffer(width, height, stride uint32, format gputypes.TextureFormat, usage gputypes.TextureUsage, st Storage) *Buffer {
	return &Buffer{
		Width:   width,
		Height:  height,
		Stride:  stride,
		Format:  format,
		Usage:   usage,
		storage: st,
	}
}

// Storage returns the backing handle for type assertion by the backend
// that produced it.
func (b *Buffer) Storage() Storage {
	return b.storage
}

// Release frees the backing storage. Safe to call more than once.
func (b *Buffer) Release() {
	if b.storage != nil {
		b.storage.Release()
	}
}

// Bounds returns the buffer's pixel rectangle, used for crop validation.
func (b *Buffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, int(b.Width), int(b.Height))
}

// matches reports whether the buffer already satisfies a dequeue request,
// so the slot can be reused without reallocation. The usage check allows
// a superset: a buffer allocated with more capabilities still serves.
func (b *Buffer) matches(width, height uint32, format gputypes.TextureFormat, usage gputypes.TextureUsage) bool {
	return b != nil &&
		b.Width == width &&
		b.Height == height &&
		b.Format == format &&
		b.Usage&usage == usage
}

// Allocator materializes buffer storage for the queue. Implementations
// live under backend/; allocation failures surface from DequeueBuffer
// wrapped in ErrNoMemory.
type Allocator interface {
	// Allocate returns a buffer of exactly the requested geometry.
	Allocate(width, height uint32, format gputypes.TextureFormat, usage gputypes.TextureUsage) (*Buffer, error)
}
