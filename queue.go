// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package swapchain

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/google/uuid"

	"github.com/gogpu/swapchain/fence"
)

// Queue is the shared core of one producer/consumer pairing: a fixed
// pool of buffer slots, the FIFO of queued frames, and the negotiation
// state both sides operate on through their respective views.
//
// All mutation happens under one mutex; DequeueBuffer and the blocking
// form of AcquireBuffer are the only operations that wait. Every
// transition that frees a slot or queues a frame broadcasts on the
// condition variable, and waiters re-validate after every wake.
//
// The queue stores and forwards fences but never waits on one: waiting
// before touching pixels is the owner's job.
type Queue struct {
	mu   sync.Mutex
	cond *sync.Cond

	name  string
	alloc Allocator

	slots []slot
	fifo  []int // queued slot indices in frame order

	frameCounter uint64

	connectedAPI   API
	connectedToken uuid.UUID
	deathDone      chan struct{} // closed on disconnect to retire the death watch

	producerControlledByApp bool
	consumerControlledByApp bool
	dequeueCannotBlock      bool

	consumerConnected bool
	listener          ConsumerListener

	overrideMaxBufferCount int // producer-requested cap, 0 = unset
	defaultMaxBufferCount  int
	maxAcquiredBufferCount int

	defaultWidth      uint32
	defaultHeight     uint32
	defaultFormat     gputypes.TextureFormat
	consumerUsageBits gputypes.TextureUsage
	transformHint     Transform

	// abandoned is terminal: set when the consumer disconnects, never
	// cleared.
	abandoned bool

	// disconnects counts producer disconnections so blocked acquirers
	// can tell one happened while they waited.
	disconnects uint64
}

// New creates a queue. The consumer must attach with ConsumerConnect
// before a producer can connect.
func New(opts ...Option) (*Queue, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.slotCount < 2 || cfg.slotCount > MaxSlotCount {
		return nil, fmt.Errorf("%w: slot count %d outside [2, %d]", ErrBadValue, cfg.slotCount, MaxSlotCount)
	}
	if cfg.maxAcquired < 1 || cfg.maxAcquired > cfg.slotCount-2 {
		return nil, fmt.Errorf("%w: max acquired count %d outside [1, %d]", ErrBadValue, cfg.maxAcquired, cfg.slotCount-2)
	}

	q := &Queue{
		name:                   cfg.name,
		alloc:                  cfg.allocator,
		slots:                  make([]slot, cfg.slotCount),
		defaultMaxBufferCount:  2,
		maxAcquiredBufferCount: cfg.maxAcquired,
		defaultWidth:           1,
		defaultHeight:          1,
		defaultFormat:          cfg.defaultFormat,
	}
	q.cond = sync.NewCond(&q.mu)

	slogger().Debug("swapchain: queue created",
		"name", q.name,
		"slots", cfg.slotCount,
		"max_acquired", cfg.maxAcquired)
	return q, nil
}

// Producer returns the producer-side view. The view is cheap; callers
// may create as many as they like, but the protocol admits one logical
// producer at a time.
func (q *Queue) Producer() *Producer {
	return &Producer{q: q}
}

// Consumer returns the consumer-side view.
func (q *Queue) Consumer() *Consumer {
	return &Consumer{q: q}
}

// minUndequeuedCountLocked is how many slots must remain un-dequeued so
// the consumer can make progress. Async dequeue reserves one extra slot,
// as does the cannot-block policy, since neither may stall the producer.
func (q *Queue) minUndequeuedCountLocked(async bool) int {
	if async || q.dequeueCannotBlock {
		return q.maxAcquiredBufferCount + 1
	}
	return q.maxAcquiredBufferCount
}

// minMaxBufferCountLocked is the smallest pool that still lets both
// sides hold what they are entitled to.
func (q *Queue) minMaxBufferCountLocked(async bool) int {
	return q.minUndequeuedCountLocked(async) + 1
}

// maxBufferCountLocked is the effective capacity: the producer override
// when set, otherwise the consumer default raised to the working
// minimum, clipped to the pool.
func (q *Queue) maxBufferCountLocked(async bool) int {
	if q.overrideMaxBufferCount != 0 {
		return q.overrideMaxBufferCount
	}
	n := q.defaultMaxBufferCount
	if m := q.minMaxBufferCountLocked(async); n < m {
		n = m
	}
	if n > len(q.slots) {
		n = len(q.slots)
	}
	return n
}

// freeSlotLocked invalidates one slot: storage goes back to the
// allocator, the generation advances so cached handles go stale, and
// the slot becomes Free.
func (q *Queue) freeSlotLocked(i int) {
	s := &q.slots[i]
	if s.buffer != nil {
		s.buffer.Release()
		s.buffer = nil
		s.generation++
	}
	s.state = SlotFree
	s.fence = fence.Fence{}
	s.frameNumber = 0
	s.requested = false
}

// freeAllBuffersLocked drops the FIFO and invalidates every slot.
func (q *Queue) freeAllBuffersLocked() {
	q.fifo = q.fifo[:0]
	for i := range q.slots {
		q.freeSlotLocked(i)
	}
}

// disconnectLocked tears down the current producer connection: dequeued
// slots return to Free with their in-flight work discarded, the death
// watch retires, and all waiters wake to terminal results. The consumer
// listener is returned so the caller can notify it outside the lock.
func (q *Queue) disconnectLocked() ConsumerListener {
	for i := range q.slots {
		if q.slots[i].state == SlotDequeued {
			s := &q.slots[i]
			s.state = SlotFree
			s.fence = fence.Fence{}
			s.frameNumber = 0
			s.requested = false
		}
	}
	q.connectedAPI = APINone
	q.connectedToken = uuid.Nil
	q.producerControlledByApp = false
	q.dequeueCannotBlock = false
	if q.deathDone != nil {
		close(q.deathDone)
		q.deathDone = nil
	}
	q.disconnects++
	q.cond.Broadcast()
	return q.listener
}

// watchDeath turns cancellation of the producer's connect context into a
// spontaneous disconnect, the in-process equivalent of a peer-death
// notification. It is a no-op if the connection already ended.
func (q *Queue) watchDeath(ctx context.Context, token uuid.UUID, done <-chan struct{}) {
	select {
	case <-done:
	case <-ctx.Done():
		q.mu.Lock()
		if q.abandoned || q.connectedToken != token {
			q.mu.Unlock()
			return
		}
		listener := q.disconnectLocked()
		q.mu.Unlock()
		slogger().Warn("swapchain: producer died, connection dropped",
			"name", q.name,
			"token", token)
		if listener != nil {
			listener.OnBuffersReleased()
		}
	}
}

// Stats is a point-in-time snapshot of queue occupancy.
type Stats struct {
	Free     int
	Dequeued int
	Queued   int
	Acquired int

	// FrameCounter is the total number of frames ever queued.
	FrameCounter uint64
}

// String formats the snapshot on one line for logs.
func (s Stats) String() string {
	return fmt.Sprintf("free=%d dequeued=%d queued=%d acquired=%d frames=%d",
		s.Free, s.Dequeued, s.Queued, s.Acquired, s.FrameCounter)
}

// Stats returns a snapshot of slot occupancy.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	var st Stats
	for i := range q.slots {
		switch q.slots[i].state {
		case SlotFree:
			st.Free++
		case SlotDequeued:
			st.Dequeued++
		case SlotQueued:
			st.Queued++
		case SlotAcquired:
			st.Acquired++
		}
	}
	st.FrameCounter = q.frameCounter
	return st
}

// Dump writes a human-readable description of the queue for diagnostics.
// Slots that have never held a buffer are omitted.
func (q *Queue) Dump(w io.Writer) {
	q.mu.Lock()
	defer q.mu.Unlock()

	fmt.Fprintf(w, "%s: api=%v abandoned=%v override=%d default=%d maxAcquired=%d frames=%d\n",
		q.name, q.connectedAPI, q.abandoned,
		q.overrideMaxBufferCount, q.defaultMaxBufferCount,
		q.maxAcquiredBufferCount, q.frameCounter)
	fmt.Fprintf(w, "  fifo: %v\n", q.fifo)
	for i := range q.slots {
		s := &q.slots[i]
		if s.state == SlotFree && s.buffer == nil && s.generation == 0 {
			continue
		}
		fmt.Fprintf(w, "  slot %02d: %-8v gen=%d frame=%d fence=%v",
			i, s.state, s.generation, s.frameNumber, s.fence)
		if s.buffer != nil {
			fmt.Fprintf(w, " %dx%d fmt=%v stride=%d",
				s.buffer.Width, s.buffer.Height, s.buffer.Format, s.buffer.Stride)
		}
		fmt.Fprintln(w)
	}
}
