// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package swapchain

import (
	"fmt"
	"image"

	"github.com/gogpu/swapchain/fence"
)

// SlotState tracks which side of the exchange owns a slot.
type SlotState uint8

const (
	// SlotFree: owned by the queue, eligible for the next dequeue.
	SlotFree SlotState = iota

	// SlotDequeued: owned by the producer, being filled.
	SlotDequeued

	// SlotQueued: filled, waiting in the FIFO for the consumer.
	SlotQueued

	// SlotAcquired: owned by the consumer, being read.
	SlotAcquired
)

// String returns a human-readable name for the state.
func (s SlotState) String() string {
	switch s {
	case SlotFree:
		return "free"
	case SlotDequeued:
		return "dequeued"
	case SlotQueued:
		return "queued"
	case SlotAcquired:
		return "acquired"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// neverQueued is the frameNumber of a freshly allocated slot. It sorts
// last in the LRU free-slot scan so warm buffers are preferred.
const neverQueued = ^uint64(0)

// slot is one entry in the fixed pool. Every field is guarded by the
// owning queue's mutex.
//
// generation advances each time the slot's buffer is invalidated or
// replaced. Callers that cache slot-to-buffer mappings compare it against
// the value returned by dequeue to learn when a cached handle went stale.
type slot struct {
	state       SlotState
	buffer      *Buffer
	fence       fence.Fence
	frameNumber uint64
	generation  uint32
	requested   bool

	// Frame metadata recorded at queue time, handed to the consumer at
	// acquire time.
	timestamp   int64
	crop        image.Rectangle
	transform   Transform
	scalingMode ScalingMode

	// droppable marks a queued frame that a later queue may replace
	// instead of growing the FIFO. Set for async producers, which trade
	// latency for frame drops.
	droppable bool
}
