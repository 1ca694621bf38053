// Package swapchain implements a buffer exchange protocol between one
// producer and one consumer sharing a fixed pool of image buffers.
//
// # Overview
//
// swapchain is a Pure Go buffer queue for the GoGPU ecosystem. A
// producer dequeues empty slots, renders into them, and queues the
// finished frames; a consumer acquires frames in order, reads or
// displays them, and releases the slots back to the pool. Ownership of
// every slot is singular at all times, and deferred GPU work travels
// with the slot as a fence rather than a blocking wait.
//
// # Quick Start
//
//	import (
//		"context"
//
//		"github.com/gogpu/swapchain"
//		"github.com/gogpu/swapchain/backend/software"
//		"github.com/gogpu/swapchain/fence"
//	)
//
//	// One queue, one consumer, one producer.
//	q, _ := swapchain.New(
//		swapchain.WithAllocator(software.NewAllocator()),
//		swapchain.WithSlotCount(8),
//	)
//
//	cons := q.Consumer()
//	cons.Connect(listener, false)
//
//	prod := q.Producer()
//	prod.Connect(context.Background(), swapchain.APIGPU, false)
//
//	// Producer: dequeue, fetch the buffer, render, queue.
//	res, _ := prod.DequeueBuffer(640, 480, 0, 0, false)
//	buf, _ := prod.RequestBuffer(res.Slot)
//	fillFrame(buf)
//	prod.QueueBuffer(res.Slot, swapchain.QueueInput{AutoTimestamp: true})
//
//	// Consumer: acquire in order, read, release.
//	item, _ := cons.AcquireBuffer(true)
//	present(item.Buffer)
//	cons.ReleaseBuffer(item.Slot, item.FrameNumber, fence.Fence{})
//
// # Ownership
//
// A slot is always in exactly one of four states: Free (owned by the
// queue), Dequeued (producer), Queued (waiting in the FIFO), or
// Acquired (consumer). Frames are acquired strictly in frame-number
// order, no matter when their fences signal.
//
// # Fences
//
// The queue never touches pixel memory and never waits on a fence. It
// stores the fence attached to each hand-off and gives it to the next
// owner, who waits before reading or writing. See the fence package.
//
// # Capacity
//
// The consumer declares how many frames it may hold at once and a
// default buffer count; the producer may override the count with
// SetBufferCount. The effective capacity always leaves the consumer
// enough un-dequeued slots to make progress, and dequeueing past that
// bound fails rather than starving the other side.
//
// # Architecture
//
// The module is organized into:
//   - swapchain: the slot table, queue state machine, and wire codec
//   - fence: deferred completion values and waitable handles
//   - timing: frame timestamp history for jank analysis
//   - surface: a window-like facade over the producer side
//   - backend/software, backend/native: system-memory and GPU allocators
package swapchain

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)
