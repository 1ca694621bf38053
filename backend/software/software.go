// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package software provides a system-memory buffer allocator for the
// swapchain. Buffers are plain byte slices with 4-byte-aligned rows,
// directly writable by CPU rasterizers and inspectable in tests.
package software

import (
	"fmt"
	"math"
	"sync"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/swapchain"
)

// strideAlign is the row alignment applied to every allocation.
const strideAlign = 4

// Allocator allocates swapchain buffers in system memory. The zero
// value is ready to use.
type Allocator struct{}

var _ swapchain.Allocator = (*Allocator)(nil)

// NewAllocator returns a system-memory allocator.
func NewAllocator() *Allocator {
	return &Allocator{}
}

// Allocate implements swapchain.Allocator. The returned buffer is
// backed by a zeroed byte slice of Stride*Height bytes.
func (a *Allocator) Allocate(width, height uint32, format gputypes.TextureFormat, usage gputypes.TextureUsage) (*swapchain.Buffer, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("software: invalid buffer size %dx%d", width, height)
	}
	bpp, err := bytesPerPixel(format)
	if err != nil {
		return nil, err
	}
	stride := (uint64(width)*uint64(bpp) + strideAlign - 1) &^ (strideAlign - 1)
	size := stride * uint64(height)
	if size > math.MaxInt32 {
		return nil, fmt.Errorf("software: buffer too large: %d bytes", size)
	}
	mem := &Memory{pix: make([]byte, size)}
	return swapchain.NewBuffer(width, height, uint32(stride), format, usage, mem), nil
}

// Memory is the Storage implementation backing software buffers: one
// contiguous slab of pixel rows.
type Memory struct {
	mu  sync.Mutex
	pix []byte
}

var _ swapchain.Storage = (*Memory)(nil)

// Bytes returns the pixel slab, or nil after Release.
func (m *Memory) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pix
}

// Release implements swapchain.Storage. Safe to call more than once.
func (m *Memory) Release() {
	m.mu.Lock()
	m.pix = nil
	m.mu.Unlock()
}

// BytesOf returns the pixel bytes behind a software-backed buffer. ok
// is false when the buffer came from another backend or its storage was
// already released.
func BytesOf(b *swapchain.Buffer) ([]byte, bool) {
	if b == nil {
		return nil, false
	}
	mem, ok := b.Storage().(*Memory)
	if !ok {
		return nil, false
	}
	pix := mem.Bytes()
	return pix, pix != nil
}

// bytesPerPixel returns the packed pixel width of the formats this
// backend can back with plain byte slices.
func bytesPerPixel(format gputypes.TextureFormat) (uint32, error) {
	switch format {
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatBGRA8Unorm:
		return 4, nil
	default:
		return 0, fmt.Errorf("software: unsupported format %v", format)
	}
}
