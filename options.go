// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package swapchain

import "github.com/gogpu/gputypes"

// Pool size limits. The slot count is fixed at construction.
const (
	// DefaultSlotCount is the pool size used when WithSlotCount is not
	// given.
	DefaultSlotCount = 32

	// MaxSlotCount bounds WithSlotCount.
	MaxSlotCount = 128
)

// Option configures a Queue during creation.
//
// Example:
//
//	// Default pool backed by the software allocator
//	q, err := swapchain.New(swapchain.WithAllocator(software.NewAllocator()))
//
//	// Small pool for a double-buffered display path
//	q, err := swapchain.New(
//	    swapchain.WithSlotCount(4),
//	    swapchain.WithAllocator(alloc),
//	)
type Option func(*config)

// config holds optional configuration for Queue creation.
type config struct {
	slotCount     int
	allocator     Allocator
	maxAcquired   int
	defaultFormat gputypes.TextureFormat
	name          string
}

// defaultConfig returns the default queue configuration.
func defaultConfig() config {
	return config{
		slotCount:     DefaultSlotCount,
		maxAcquired:   1,
		defaultFormat: gputypes.TextureFormatRGBA8Unorm,
		name:          "unnamed",
	}
}

// WithSlotCount fixes the pool size. Legal values are 2 through
// MaxSlotCount; New fails with ErrBadValue outside that range.
func WithSlotCount(n int) Option {
	return func(c *config) {
		c.slotCount = n
	}
}

// WithAllocator sets the allocator that materializes buffer storage.
// Without one, any dequeue that needs a new buffer fails with
// ErrNoMemory. See backend/software and backend/native.
func WithAllocator(a Allocator) Option {
	return func(c *config) {
		c.allocator = a
	}
}

// WithMaxAcquiredBufferCount sets how many buffers the consumer may hold
// acquired at once. Legal values are 1 through slotCount-2. The consumer
// can change this later with SetMaxAcquiredBufferCount while no producer
// is connected.
func WithMaxAcquiredBufferCount(n int) Option {
	return func(c *config) {
		c.maxAcquired = n
	}
}

// WithDefaultBufferFormat sets the format substituted when a dequeue
// passes a zero format.
func WithDefaultBufferFormat(f gputypes.TextureFormat) Option {
	return func(c *config) {
		c.defaultFormat = f
	}
}

// WithName labels the queue in logs and dumps.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}
