// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package swapchain

import (
	"fmt"
	"image"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/swapchain/fence"
)

// ConsumerListener receives notifications about producer activity.
// Callbacks run outside the queue lock, so implementations may call
// back into the queue.
type ConsumerListener interface {
	// OnFrameAvailable reports that a new frame entered the FIFO.
	OnFrameAvailable()

	// OnBuffersReleased reports that the queue dropped buffers the
	// consumer may have cached, for example after SetBufferCount or a
	// producer disconnect. The consumer should purge its slot cache.
	OnBuffersReleased()
}

// Consumer is the consumer-side view of a Queue: the side that reads
// finished frames. Obtain one with Queue.Consumer.
type Consumer struct {
	q *Queue
}

// BufferItem is one acquired frame and its metadata.
type BufferItem struct {
	Slot       int
	Buffer     *Buffer
	Generation uint32

	// Fence guards the frame's contents. The consumer must wait on it
	// before reading pixels.
	Fence fence.Fence

	FrameNumber uint64
	Timestamp   int64
	Crop        image.Rectangle
	Transform   Transform
	ScalingMode ScalingMode
}

// Connect attaches the consumer. A queue accepts no producer until a
// consumer is attached, and abandonment is terminal: once the consumer
// disconnects the queue can never be connected again.
func (c *Consumer) Connect(listener ConsumerListener, controlledByApp bool) error {
	q := c.q
	q.mu.Lock()

	if q.abandoned {
		q.mu.Unlock()
		return fmt.Errorf("%w: consumer connect on abandoned queue", ErrNotInitialized)
	}
	if q.consumerConnected {
		q.mu.Unlock()
		return fmt.Errorf("%w: consumer already connected", ErrBadState)
	}
	if listener == nil {
		q.mu.Unlock()
		return fmt.Errorf("%w: nil consumer listener", ErrBadValue)
	}
	q.consumerConnected = true
	q.listener = listener
	q.consumerControlledByApp = controlledByApp
	q.mu.Unlock()

	slogger().Info("swapchain: consumer connected",
		"name", q.name, "controlled_by_app", controlledByApp)
	return nil
}

// Disconnect abandons the queue. Every slot is freed, the FIFO is
// dropped, and all current and future producer calls fail with
// ErrNotInitialized. Blocked callers wake immediately.
func (c *Consumer) Disconnect() error {
	q := c.q
	q.mu.Lock()

	if !q.consumerConnected {
		q.mu.Unlock()
		return fmt.Errorf("%w: no consumer connected", ErrBadState)
	}
	q.abandoned = true
	q.consumerConnected = false
	q.listener = nil
	q.freeAllBuffersLocked()
	q.cond.Broadcast()
	q.mu.Unlock()

	slogger().Info("swapchain: consumer disconnected, queue abandoned", "name", q.name)
	return nil
}

// AcquireBuffer takes the oldest queued frame, in frame-number order
// regardless of fence timing. With wait set the call blocks until a
// frame arrives; it fails instead of blocking forever if the queue is
// abandoned or the producer disconnects while it waits. With wait
// unset an empty FIFO yields ErrWouldBlock.
//
// The consumer may hold at most one frame beyond its declared maximum,
// so it can latch the next frame before releasing the previous one.
func (c *Consumer) AcquireBuffer(wait bool) (BufferItem, error) {
	q := c.q
	q.mu.Lock()

	acquiredCount := 0
	for i := range q.slots {
		if q.slots[i].state == SlotAcquired {
			acquiredCount++
		}
	}
	if acquiredCount >= q.maxAcquiredBufferCount+1 {
		q.mu.Unlock()
		return BufferItem{}, fmt.Errorf("%w: %d buffers already acquired (max %d)",
			ErrBadState, acquiredCount, q.maxAcquiredBufferCount)
	}

	epoch := q.disconnects
	for len(q.fifo) == 0 {
		if q.abandoned {
			q.mu.Unlock()
			return BufferItem{}, fmt.Errorf("%w: acquire on abandoned queue", ErrNotInitialized)
		}
		if !wait {
			q.mu.Unlock()
			return BufferItem{}, fmt.Errorf("%w: no frame queued", ErrWouldBlock)
		}
		if q.disconnects != epoch {
			q.mu.Unlock()
			return BufferItem{}, fmt.Errorf("%w: producer disconnected while waiting", ErrNotInitialized)
		}
		q.cond.Wait()
	}

	idx := q.fifo[0]
	q.fifo = append(q.fifo[:0], q.fifo[1:]...)

	s := &q.slots[idx]
	s.state = SlotAcquired
	item := BufferItem{
		Slot:        idx,
		Buffer:      s.buffer,
		Generation:  s.generation,
		Fence:       s.fence,
		FrameNumber: s.frameNumber,
		Timestamp:   s.timestamp,
		Crop:        s.crop,
		Transform:   s.transform,
		ScalingMode: s.scalingMode,
	}
	s.fence = fence.Fence{}
	q.mu.Unlock()

	slogger().Debug("swapchain: buffer acquired",
		"name", q.name, "slot", idx, "frame", item.FrameNumber)
	return item, nil
}

// ReleaseBuffer returns an acquired slot to Free. frameNumber must
// match the acquired frame, guarding against releases that raced a
// queue reset. The fence covers the consumer's outstanding reads; the
// next producer to dequeue the slot waits on it before writing.
func (c *Consumer) ReleaseBuffer(slot int, frameNumber uint64, fc fence.Fence) error {
	q := c.q
	q.mu.Lock()

	if q.abandoned {
		q.mu.Unlock()
		return fmt.Errorf("%w: release on abandoned queue", ErrNotInitialized)
	}
	if slot < 0 || slot >= len(q.slots) {
		q.mu.Unlock()
		return fmt.Errorf("%w: slot %d out of range [0, %d)", ErrBadValue, slot, len(q.slots))
	}
	s := &q.slots[slot]
	if s.state != SlotAcquired {
		q.mu.Unlock()
		return fmt.Errorf("%w: release on slot %d in state %v", ErrBadState, slot, s.state)
	}
	if s.frameNumber != frameNumber {
		q.mu.Unlock()
		return fmt.Errorf("%w: stale release of slot %d, frame %d is now %d",
			ErrBadValue, slot, frameNumber, s.frameNumber)
	}
	s.state = SlotFree
	s.fence = fc
	q.cond.Broadcast()
	q.mu.Unlock()

	slogger().Debug("swapchain: buffer released",
		"name", q.name, "slot", slot, "frame", frameNumber)
	return nil
}

// SetDefaultBufferSize sets the dimensions used when the producer
// dequeues with zero width and height.
func (c *Consumer) SetDefaultBufferSize(width, height uint32) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("%w: default buffer size %dx%d", ErrBadValue, width, height)
	}
	q := c.q
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.abandoned {
		return fmt.Errorf("%w: queue abandoned", ErrNotInitialized)
	}
	q.defaultWidth = width
	q.defaultHeight = height
	return nil
}

// SetDefaultBufferFormat sets the format used when the producer
// dequeues with a zero format.
func (c *Consumer) SetDefaultBufferFormat(format gputypes.TextureFormat) {
	q := c.q
	q.mu.Lock()
	defer q.mu.Unlock()
	q.defaultFormat = format
}

// SetConsumerUsageBits declares usage the consumer needs on every
// buffer. The bits are merged into the usage of future allocations.
func (c *Consumer) SetConsumerUsageBits(usage gputypes.TextureUsage) {
	q := c.q
	q.mu.Lock()
	defer q.mu.Unlock()
	q.consumerUsageBits = usage
}

// SetDefaultMaxBufferCount sets the capacity used while the producer
// has not declared its own with SetBufferCount.
func (c *Consumer) SetDefaultMaxBufferCount(n int) error {
	q := c.q
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.abandoned {
		return fmt.Errorf("%w: queue abandoned", ErrNotInitialized)
	}
	if n < 2 || n > len(q.slots) {
		return fmt.Errorf("%w: default max buffer count %d outside [2, %d]", ErrBadValue, n, len(q.slots))
	}
	q.defaultMaxBufferCount = n
	q.cond.Broadcast()
	return nil
}

// SetMaxAcquiredBufferCount sets how many frames the consumer may hold
// at once. It can only change while no producer is connected.
func (c *Consumer) SetMaxAcquiredBufferCount(n int) error {
	q := c.q
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.abandoned {
		return fmt.Errorf("%w: queue abandoned", ErrNotInitialized)
	}
	if q.connectedAPI != APINone {
		return fmt.Errorf("%w: producer connected via %v", ErrBadState, q.connectedAPI)
	}
	if n < 1 || n > len(q.slots)-2 {
		return fmt.Errorf("%w: max acquired count %d outside [1, %d]", ErrBadValue, n, len(q.slots)-2)
	}
	q.maxAcquiredBufferCount = n
	return nil
}

// SetTransformHint tells future producers how the consumer will
// transform frames, letting them pre-rotate and skip a pass.
func (c *Consumer) SetTransformHint(hint Transform) {
	q := c.q
	q.mu.Lock()
	defer q.mu.Unlock()
	q.transformHint = hint
}
