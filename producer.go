// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package swapchain

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/google/uuid"

	"github.com/gogpu/swapchain/fence"
)

// Producer is the producer-side view of a Queue: the side that fills
// buffers with content. Obtain one with Queue.Producer.
//
// The protocol admits one logical producer at a time; Connect enforces
// this. Methods are safe for concurrent use, but interleaving calls
// from several goroutines that believe they are "the" producer will
// trip the ownership checks.
type Producer struct {
	q *Queue
}

// ConnectOutput reports the queue defaults a newly connected producer
// should adopt.
type ConnectOutput struct {
	Width          uint32
	Height         uint32
	TransformHint  Transform
	PendingBuffers uint32

	// Token identifies this connection. Disconnect invalidates it.
	Token uuid.UUID
}

// DequeueResult identifies the slot handed to the producer.
//
// Generation is the slot's reallocation counter. A caller caching
// slot-to-buffer mappings compares it with its cached value: on a
// mismatch the cached handle is stale and RequestBuffer must be called
// before the slot is used.
type DequeueResult struct {
	Slot       int
	Generation uint32

	// Fence guards the previous contents of the slot's buffer. The
	// producer must wait on it before writing.
	Fence fence.Fence
}

// QueueInput carries a finished frame's metadata into QueueBuffer.
type QueueInput struct {
	// Timestamp is the frame's presentation time in nanoseconds.
	// Ignored when AutoTimestamp is set.
	Timestamp     int64
	AutoTimestamp bool

	// Crop selects the valid region of the buffer. The zero rectangle
	// means the whole buffer.
	Crop image.Rectangle

	ScalingMode ScalingMode
	Transform   Transform

	// Async marks the frame droppable: if it is still at the tail of
	// the FIFO when the next frame arrives, the new frame replaces it.
	Async bool

	// Fence guards the buffer contents. The consumer waits on it
	// before reading.
	Fence fence.Fence
}

// QueueOutput reports queue state back to the producer after a frame
// is queued.
type QueueOutput struct {
	Width          uint32
	Height         uint32
	TransformHint  Transform
	PendingBuffers uint32
}

// Connect attaches a producer under the given API token. The context
// stands in for the producer's liveness: if it is canceled while the
// connection is up, the queue treats the producer as dead and
// disconnects it, exactly as if the remote process had gone away. Pass
// context.Background for an in-process producer with no death watch.
func (p *Producer) Connect(ctx context.Context, api API, controlledByApp bool) (ConnectOutput, error) {
	q := p.q
	q.mu.Lock()

	if q.abandoned {
		q.mu.Unlock()
		return ConnectOutput{}, fmt.Errorf("%w: connect on abandoned queue", ErrNotInitialized)
	}
	if !q.consumerConnected {
		q.mu.Unlock()
		return ConnectOutput{}, fmt.Errorf("%w: no consumer attached", ErrNotInitialized)
	}
	if q.connectedAPI != APINone {
		q.mu.Unlock()
		return ConnectOutput{}, fmt.Errorf("%w: producer already connected via %v", ErrBadState, q.connectedAPI)
	}
	if !api.valid() {
		q.mu.Unlock()
		return ConnectOutput{}, fmt.Errorf("%w: unrecognized api %d", ErrBadState, uint32(api))
	}

	token := uuid.New()
	q.connectedAPI = api
	q.connectedToken = token
	q.producerControlledByApp = controlledByApp
	q.dequeueCannotBlock = controlledByApp && q.consumerControlledByApp

	out := ConnectOutput{
		Width:          q.defaultWidth,
		Height:         q.defaultHeight,
		TransformHint:  q.transformHint,
		PendingBuffers: uint32(len(q.fifo)),
		Token:          token,
	}

	if ctx != nil && ctx.Done() != nil {
		q.deathDone = make(chan struct{})
		go q.watchDeath(ctx, token, q.deathDone)
	}
	q.mu.Unlock()

	slogger().Info("swapchain: producer connected",
		"name", q.name,
		"api", api,
		"controlled_by_app", controlledByApp)
	return out, nil
}

// Disconnect detaches the producer. The api must match the one given
// to Connect. Dequeued slots return to Free with their in-flight work
// discarded; frames already queued stay acquirable. Disconnecting an
// abandoned queue is a no-op.
func (p *Producer) Disconnect(api API) error {
	q := p.q
	q.mu.Lock()

	if q.abandoned {
		q.mu.Unlock()
		return nil
	}
	if q.connectedAPI != api {
		connected := q.connectedAPI
		q.mu.Unlock()
		return fmt.Errorf("%w: disconnect api %v does not match connected api %v", ErrBadState, api, connected)
	}

	listener := q.disconnectLocked()
	q.mu.Unlock()

	slogger().Info("swapchain: producer disconnected", "name", q.name, "api", api)
	if listener != nil {
		listener.OnBuffersReleased()
	}
	return nil
}

// SetBufferCount declares how many slots the producer intends to use,
// overriding the consumer's default. n = 0 hands control back to the
// consumer. On success every slot's buffer is dropped, so all cached
// mappings go stale at once; the consumer listener is told to purge.
func (p *Producer) SetBufferCount(n int) error {
	q := p.q
	q.mu.Lock()

	if q.abandoned {
		q.mu.Unlock()
		return fmt.Errorf("%w: setBufferCount on abandoned queue", ErrNotInitialized)
	}
	for i := range q.slots {
		if q.slots[i].state == SlotDequeued {
			q.mu.Unlock()
			return fmt.Errorf("%w: setBufferCount while slot %d is dequeued", ErrBadValue, i)
		}
	}
	if n == 0 {
		q.overrideMaxBufferCount = 0
		q.cond.Broadcast()
		q.mu.Unlock()
		return nil
	}
	if minHeld := q.minUndequeuedCountLocked(false); n <= minHeld || n > len(q.slots) {
		q.mu.Unlock()
		return fmt.Errorf("%w: buffer count %d outside (%d, %d]", ErrBadValue, n, minHeld, len(q.slots))
	}

	q.overrideMaxBufferCount = n
	q.freeAllBuffersLocked()
	q.cond.Broadcast()
	listener := q.listener
	q.mu.Unlock()

	slogger().Debug("swapchain: buffer count set", "name", q.name, "count", n)
	if listener != nil {
		listener.OnBuffersReleased()
	}
	return nil
}

// DequeueBuffer hands the producer a Free slot to fill. Passing zero
// width and height selects the stored defaults; passing a zero format
// selects the default format. The consumer's usage bits are merged
// into usage before allocation.
//
// When no slot is Free, the call blocks until one is, except that a
// queue whose producer and consumer are both app-controlled returns
// ErrWouldBlock instead of ever blocking. The returned fence guards
// the buffer's previous contents and must be waited on before writing.
func (p *Producer) DequeueBuffer(width, height uint32, format gputypes.TextureFormat, usage gputypes.TextureUsage, async bool) (DequeueResult, error) {
	q := p.q
	if (width == 0) != (height == 0) {
		return DequeueResult{}, fmt.Errorf("%w: dequeue size %dx%d, dimensions must be given together", ErrBadValue, width, height)
	}

	q.mu.Lock()
	if width == 0 {
		width = q.defaultWidth
		height = q.defaultHeight
	}
	if format == 0 {
		format = q.defaultFormat
	}
	usage |= q.consumerUsageBits

	found := -1
	for {
		if q.abandoned {
			q.mu.Unlock()
			return DequeueResult{}, fmt.Errorf("%w: dequeue on abandoned queue", ErrNotInitialized)
		}
		if async && q.overrideMaxBufferCount != 0 && q.overrideMaxBufferCount < q.minMaxBufferCountLocked(true) {
			need := q.minMaxBufferCountLocked(true)
			q.mu.Unlock()
			return DequeueResult{}, fmt.Errorf("%w: async dequeue with buffer count %d, need at least %d", ErrBadValue, q.overrideMaxBufferCount, need)
		}

		maxCount := q.maxBufferCountLocked(async)

		// Slots beyond the active range keep no storage.
		for i := maxCount; i < len(q.slots); i++ {
			if q.slots[i].state == SlotFree && q.slots[i].buffer != nil {
				q.freeSlotLocked(i)
			}
		}

		found = -1
		foundMatches := false
		dequeuedCount := 0
		for i := 0; i < maxCount; i++ {
			s := &q.slots[i]
			switch s.state {
			case SlotDequeued:
				dequeuedCount++
			case SlotFree:
				// Prefer a slot already holding a fitting buffer;
				// among equals take the least recently queued, giving
				// the consumer the longest time to finish its reads.
				matches := s.buffer != nil && s.buffer.matches(width, height, format, usage)
				if found < 0 || (matches && !foundMatches) ||
					(matches == foundMatches && s.frameNumber < q.slots[found].frameNumber) {
					found = i
					foundMatches = matches
				}
			}
		}

		if minHeld := q.minUndequeuedCountLocked(async); maxCount-(dequeuedCount+1) < minHeld {
			q.mu.Unlock()
			return DequeueResult{}, fmt.Errorf("%w: %d of %d slots dequeued, consumer needs %d held back",
				ErrBusy, dequeuedCount, maxCount, minHeld)
		}
		if found >= 0 {
			break
		}
		if q.dequeueCannotBlock {
			q.mu.Unlock()
			return DequeueResult{}, fmt.Errorf("%w: no free slot and both sides are app-controlled", ErrWouldBlock)
		}
		q.cond.Wait()
	}

	s := &q.slots[found]
	s.state = SlotDequeued
	needsAlloc := s.buffer == nil || !s.buffer.matches(width, height, format, usage)
	if needsAlloc {
		if s.buffer != nil {
			s.buffer.Release()
			s.buffer = nil
			s.generation++
		}
		s.requested = false
		s.frameNumber = neverQueued
		s.fence = fence.Fence{}
	}
	// The fence travels with the slot. On reallocation it was dropped
	// with the old buffer above.
	outFence := s.fence
	s.fence = fence.Fence{}

	if needsAlloc {
		if q.alloc == nil {
			s.state = SlotFree
			s.frameNumber = 0
			q.cond.Broadcast()
			q.mu.Unlock()
			return DequeueResult{}, fmt.Errorf("%w: no allocator configured", ErrNoMemory)
		}

		// Allocation can be slow; drop the lock. The slot is already
		// Dequeued, so nobody else can claim it meanwhile.
		q.mu.Unlock()
		buf, allocErr := q.alloc.Allocate(width, height, format, usage)
		q.mu.Lock()

		if allocErr != nil {
			s.state = SlotFree
			s.frameNumber = 0
			q.cond.Broadcast()
			q.mu.Unlock()
			return DequeueResult{}, fmt.Errorf("%w: %dx%d: %v", ErrNoMemory, width, height, allocErr)
		}
		if q.abandoned {
			buf.Release()
			s.state = SlotFree
			s.frameNumber = 0
			q.mu.Unlock()
			return DequeueResult{}, fmt.Errorf("%w: queue abandoned during allocation", ErrNotInitialized)
		}
		if s.state != SlotDequeued {
			// The producer was disconnected while the lock was down.
			buf.Release()
			q.mu.Unlock()
			return DequeueResult{}, fmt.Errorf("%w: connection lost during allocation", ErrNotInitialized)
		}
		s.buffer = buf

		slogger().Debug("swapchain: buffer allocated",
			"name", q.name,
			"slot", found,
			"width", width,
			"height", height,
			"format", format,
			"generation", s.generation)
	}

	res := DequeueResult{Slot: found, Generation: s.generation, Fence: outFence}
	q.mu.Unlock()

	slogger().Debug("swapchain: buffer dequeued",
		"name", q.name, "slot", found, "realloc", needsAlloc)
	return res, nil
}

// RequestBuffer returns the authoritative buffer handle for a slot the
// caller has dequeued, and records that the handle was fetched.
// Producers cache the result per slot and call this again whenever
// DequeueBuffer reports an unfamiliar generation.
func (p *Producer) RequestBuffer(slot int) (*Buffer, error) {
	q := p.q
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.abandoned {
		return nil, fmt.Errorf("%w: requestBuffer on abandoned queue", ErrNotInitialized)
	}
	if slot < 0 || slot >= len(q.slots) {
		return nil, fmt.Errorf("%w: slot %d out of range [0, %d)", ErrBadValue, slot, len(q.slots))
	}
	s := &q.slots[slot]
	if s.state != SlotDequeued {
		return nil, fmt.Errorf("%w: requestBuffer on slot %d in state %v", ErrBadValue, slot, s.state)
	}
	s.requested = true
	return s.buffer, nil
}

// QueueBuffer hands a filled slot to the consumer side. The slot must
// be Dequeued by the caller and its buffer must have been fetched with
// RequestBuffer at least once since allocation.
//
// A frame queued with Async set is droppable: if it is still at the
// tail of the FIFO when the next frame arrives, the new frame replaces
// it and the dropped frame's slot returns to Free.
func (p *Producer) QueueBuffer(slot int, in QueueInput) (QueueOutput, error) {
	q := p.q
	if !in.ScalingMode.valid() {
		return QueueOutput{}, fmt.Errorf("%w: unrecognized scaling mode %d", ErrBadValue, uint32(in.ScalingMode))
	}

	q.mu.Lock()

	if q.abandoned {
		q.mu.Unlock()
		return QueueOutput{}, fmt.Errorf("%w: queueBuffer on abandoned queue", ErrNotInitialized)
	}
	if in.Async && q.overrideMaxBufferCount != 0 && q.overrideMaxBufferCount < q.minMaxBufferCountLocked(true) {
		need := q.minMaxBufferCountLocked(true)
		q.mu.Unlock()
		return QueueOutput{}, fmt.Errorf("%w: async queue with buffer count %d, need at least %d", ErrBadValue, q.overrideMaxBufferCount, need)
	}
	if slot < 0 || slot >= len(q.slots) {
		q.mu.Unlock()
		return QueueOutput{}, fmt.Errorf("%w: slot %d out of range [0, %d)", ErrBadValue, slot, len(q.slots))
	}
	s := &q.slots[slot]
	if s.state != SlotDequeued {
		q.mu.Unlock()
		return QueueOutput{}, fmt.Errorf("%w: queueBuffer on slot %d in state %v", ErrBadValue, slot, s.state)
	}
	if !s.requested {
		q.mu.Unlock()
		return QueueOutput{}, fmt.Errorf("%w: queueBuffer on slot %d without requestBuffer", ErrBadValue, slot)
	}
	if !in.Crop.Empty() && !in.Crop.In(s.buffer.Bounds()) {
		bounds := s.buffer.Bounds()
		q.mu.Unlock()
		return QueueOutput{}, fmt.Errorf("%w: crop %v outside buffer bounds %v", ErrBadValue, in.Crop, bounds)
	}

	ts := in.Timestamp
	if in.AutoTimestamp {
		ts = time.Now().UnixNano()
	}

	q.frameCounter++
	frame := q.frameCounter
	s.state = SlotQueued
	s.fence = in.Fence
	s.frameNumber = frame
	s.timestamp = ts
	s.crop = in.Crop
	s.transform = in.Transform
	s.scalingMode = in.ScalingMode
	s.droppable = in.Async || q.dequeueCannotBlock

	var listener ConsumerListener
	dropped := -1
	if n := len(q.fifo); n > 0 && q.slots[q.fifo[n-1]].droppable {
		// Replace the droppable tail instead of growing the FIFO: the
		// dropped frame's slot goes back to Free, first in line for
		// the next dequeue, keeping its fence for the next owner.
		dropped = q.fifo[n-1]
		d := &q.slots[dropped]
		d.state = SlotFree
		d.frameNumber = 0
		q.fifo[n-1] = slot
	} else {
		q.fifo = append(q.fifo, slot)
		listener = q.listener
	}
	q.cond.Broadcast()

	out := QueueOutput{
		Width:          q.defaultWidth,
		Height:         q.defaultHeight,
		TransformHint:  q.transformHint,
		PendingBuffers: uint32(len(q.fifo)),
	}
	q.mu.Unlock()

	slogger().Debug("swapchain: buffer queued",
		"name", q.name,
		"slot", slot,
		"frame", frame,
		"dropped_slot", dropped,
		"pending", out.PendingBuffers)
	if listener != nil {
		listener.OnFrameAvailable()
	}
	return out, nil
}

// CancelBuffer returns a dequeued slot to Free without queueing it.
// The fence travels with the slot: the next dequeuer must wait on it
// before writing.
func (p *Producer) CancelBuffer(slot int, fc fence.Fence) error {
	q := p.q
	q.mu.Lock()

	if q.abandoned {
		q.mu.Unlock()
		return fmt.Errorf("%w: cancelBuffer on abandoned queue", ErrNotInitialized)
	}
	if slot < 0 || slot >= len(q.slots) {
		q.mu.Unlock()
		return fmt.Errorf("%w: slot %d out of range [0, %d)", ErrBadValue, slot, len(q.slots))
	}
	s := &q.slots[slot]
	if s.state != SlotDequeued {
		q.mu.Unlock()
		return fmt.Errorf("%w: cancelBuffer on slot %d in state %v", ErrBadValue, slot, s.state)
	}
	s.state = SlotFree
	s.fence = fc
	s.frameNumber = 0
	q.cond.Broadcast()
	q.mu.Unlock()

	slogger().Debug("swapchain: buffer canceled", "name", q.name, "slot", slot)
	return nil
}

// Query reads one introspection value without changing any state.
func (p *Producer) Query(what Query) (int, error) {
	q := p.q
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.abandoned {
		return 0, fmt.Errorf("%w: query on abandoned queue", ErrNotInitialized)
	}
	switch what {
	case QueryWidth:
		return int(q.defaultWidth), nil
	case QueryHeight:
		return int(q.defaultHeight), nil
	case QueryFormat:
		return int(q.defaultFormat), nil
	case QueryMinUndequeued:
		return q.minUndequeuedCountLocked(false), nil
	case QueryRunningBehind:
		if len(q.fifo) >= 2 {
			return 1, nil
		}
		return 0, nil
	case QueryTransformHint:
		return int(q.transformHint), nil
	default:
		return 0, fmt.Errorf("%w: unknown query token %d", ErrBadValue, uint32(what))
	}
}
