package swapchain

import (
	"errors"
	"testing"
	"time"

	"github.com/gogpu/swapchain/fence"
)

func TestConsumer_Connect(t *testing.T) {
	q, err := New(WithAllocator(&stubAllocator{}))
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	cons := q.Consumer()

	if err := cons.Connect(nil, false); !errors.Is(err, ErrBadValue) {
		t.Errorf("Connect(nil listener) = %v, want ErrBadValue", err)
	}
	if err := cons.Connect(&countListener{}, false); err != nil {
		t.Fatalf("Connect() = %v", err)
	}
	if err := cons.Connect(&countListener{}, false); !errors.Is(err, ErrBadState) {
		t.Errorf("second Connect() = %v, want ErrBadState", err)
	}
}

func TestConsumer_Disconnect(t *testing.T) {
	q, err := New(WithAllocator(&stubAllocator{}))
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	cons := q.Consumer()

	if err := cons.Disconnect(); !errors.Is(err, ErrBadState) {
		t.Errorf("Disconnect() before Connect() = %v, want ErrBadState", err)
	}
	if err := cons.Connect(&countListener{}, false); err != nil {
		t.Fatalf("Connect() = %v", err)
	}
	if err := cons.Disconnect(); err != nil {
		t.Fatalf("Disconnect() = %v", err)
	}

	// The queue dies with its consumer.
	if err := cons.Connect(&countListener{}, false); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Connect() after Disconnect() = %v, want ErrNotInitialized", err)
	}
	if err := cons.Disconnect(); !errors.Is(err, ErrBadState) {
		t.Errorf("second Disconnect() = %v, want ErrBadState", err)
	}
}

// TestConsumer_AcquireFIFOOrder checks frames come out in queue order
// even when a later frame's fence signaled first.
func TestConsumer_AcquireFIFOOrder(t *testing.T) {
	tq := newTestQueue(t)
	if err := tq.prod.SetBufferCount(4); err != nil {
		t.Fatalf("SetBufferCount(4) = %v", err)
	}

	pending := fence.Pending(fence.NewManual())
	tq.queueFrame(t, 32, 32, QueueInput{Timestamp: 1, Fence: pending})
	tq.queueFrame(t, 32, 32, QueueInput{Timestamp: 2, Fence: fence.SignaledAt(10)})

	item, err := tq.cons.AcquireBuffer(false)
	if err != nil {
		t.Fatalf("AcquireBuffer() = %v", err)
	}
	if item.FrameNumber != 1 {
		t.Errorf("acquired frame %d first, want 1 (FIFO ignores fence readiness)", item.FrameNumber)
	}
	if item.Fence.Signaled() {
		t.Error("first frame's fence reports signaled, want pending")
	}

	item2, err := tq.cons.AcquireBuffer(false)
	if err != nil {
		t.Fatalf("second AcquireBuffer() = %v", err)
	}
	if item2.FrameNumber != 2 {
		t.Errorf("acquired frame %d second, want 2", item2.FrameNumber)
	}
	if got := item2.Fence.SignalTime(); got != 10 {
		t.Errorf("second frame's fence signal time = %d, want 10", got)
	}
}

func TestConsumer_AcquireWouldBlock(t *testing.T) {
	tq := newTestQueue(t)
	if _, err := tq.cons.AcquireBuffer(false); !errors.Is(err, ErrWouldBlock) {
		t.Errorf("AcquireBuffer(false) on empty queue = %v, want ErrWouldBlock", err)
	}
}

// TestConsumer_AcquireLimit exercises the held-frame ceiling: the
// consumer may hold maxAcquired+1 frames, never more.
func TestConsumer_AcquireLimit(t *testing.T) {
	tq := newTestQueue(t)
	if err := tq.prod.SetBufferCount(5); err != nil {
		t.Fatalf("SetBufferCount(5) = %v", err)
	}
	for i := 0; i < 3; i++ {
		tq.queueFrame(t, 32, 32, QueueInput{Timestamp: int64(i + 1)})
	}

	if _, err := tq.cons.AcquireBuffer(false); err != nil {
		t.Fatalf("first AcquireBuffer() = %v", err)
	}
	if _, err := tq.cons.AcquireBuffer(false); err != nil {
		t.Fatalf("second AcquireBuffer() = %v", err)
	}
	if _, err := tq.cons.AcquireBuffer(false); !errors.Is(err, ErrBadState) {
		t.Errorf("third AcquireBuffer() = %v, want ErrBadState (over the limit)", err)
	}
}

// TestConsumer_AcquireWokenByDisconnect is the waiting-consumer race: a
// producer disconnect must fail the blocked acquire instead of leaving
// it waiting for a frame that will never come.
func TestConsumer_AcquireWokenByDisconnect(t *testing.T) {
	tq := newTestQueue(t)

	got := make(chan error, 1)
	go func() {
		_, err := tq.cons.AcquireBuffer(true)
		got <- err
	}()

	// Give the acquirer time to park on the condition variable.
	time.Sleep(20 * time.Millisecond)
	if err := tq.prod.Disconnect(APIGPU); err != nil {
		t.Fatalf("Disconnect() = %v", err)
	}

	select {
	case err := <-got:
		if !errors.Is(err, ErrNotInitialized) {
			t.Errorf("blocked AcquireBuffer() = %v, want ErrNotInitialized", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("AcquireBuffer() still blocked after producer disconnect")
	}
}

func TestConsumer_AcquireWokenByAbandon(t *testing.T) {
	tq := newTestQueue(t)

	got := make(chan error, 1)
	go func() {
		_, err := tq.cons.AcquireBuffer(true)
		got <- err
	}()

	time.Sleep(20 * time.Millisecond)
	if err := tq.cons.Disconnect(); err != nil {
		t.Fatalf("Disconnect() = %v", err)
	}

	select {
	case err := <-got:
		if !errors.Is(err, ErrNotInitialized) {
			t.Errorf("blocked AcquireBuffer() = %v, want ErrNotInitialized", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("AcquireBuffer() still blocked after abandon")
	}
}

func TestConsumer_ReleaseBuffer(t *testing.T) {
	tq := newTestQueue(t)
	tq.queueFrame(t, 32, 32, QueueInput{Timestamp: 1})

	item, err := tq.cons.AcquireBuffer(false)
	if err != nil {
		t.Fatalf("AcquireBuffer() = %v", err)
	}

	if err := tq.cons.ReleaseBuffer(-1, item.FrameNumber, fence.Fence{}); !errors.Is(err, ErrBadValue) {
		t.Errorf("ReleaseBuffer(-1) = %v, want ErrBadValue", err)
	}
	if err := tq.cons.ReleaseBuffer(item.Slot+1, item.FrameNumber, fence.Fence{}); !errors.Is(err, ErrBadState) {
		t.Errorf("ReleaseBuffer(unacquired slot) = %v, want ErrBadState", err)
	}
	if err := tq.cons.ReleaseBuffer(item.Slot, item.FrameNumber+1, fence.Fence{}); !errors.Is(err, ErrBadValue) {
		t.Errorf("ReleaseBuffer(stale frame) = %v, want ErrBadValue", err)
	}
	if err := tq.cons.ReleaseBuffer(item.Slot, item.FrameNumber, fence.SignaledAt(99)); err != nil {
		t.Fatalf("ReleaseBuffer() = %v", err)
	}

	// The release fence rides the slot back to the producer.
	res, err := tq.prod.DequeueBuffer(32, 32, 0, 0, false)
	if err != nil {
		t.Fatalf("DequeueBuffer() = %v", err)
	}
	if got := res.Fence.SignalTime(); got != 99 {
		t.Errorf("dequeued fence signal time = %d, want 99 from the release", got)
	}
}

func TestConsumer_SetDefaultBufferSize(t *testing.T) {
	tq := newTestQueue(t)
	if err := tq.cons.SetDefaultBufferSize(0, 5); !errors.Is(err, ErrBadValue) {
		t.Errorf("SetDefaultBufferSize(0, 5) = %v, want ErrBadValue", err)
	}
	if err := tq.cons.SetDefaultBufferSize(64, 32); err != nil {
		t.Errorf("SetDefaultBufferSize(64, 32) = %v", err)
	}
}

func TestConsumer_SetDefaultMaxBufferCount(t *testing.T) {
	tq := newTestQueue(t)
	if err := tq.cons.SetDefaultMaxBufferCount(1); !errors.Is(err, ErrBadValue) {
		t.Errorf("SetDefaultMaxBufferCount(1) = %v, want ErrBadValue", err)
	}
	if err := tq.cons.SetDefaultMaxBufferCount(9); !errors.Is(err, ErrBadValue) {
		t.Errorf("SetDefaultMaxBufferCount(9) = %v, want ErrBadValue", err)
	}
	if err := tq.cons.SetDefaultMaxBufferCount(4); err != nil {
		t.Errorf("SetDefaultMaxBufferCount(4) = %v", err)
	}
}

func TestConsumer_SetMaxAcquiredBufferCount(t *testing.T) {
	tq := newTestQueue(t)
	if err := tq.cons.SetMaxAcquiredBufferCount(2); !errors.Is(err, ErrBadState) {
		t.Errorf("SetMaxAcquiredBufferCount() with producer connected = %v, want ErrBadState", err)
	}

	if err := tq.prod.Disconnect(APIGPU); err != nil {
		t.Fatalf("Disconnect() = %v", err)
	}
	if err := tq.cons.SetMaxAcquiredBufferCount(0); !errors.Is(err, ErrBadValue) {
		t.Errorf("SetMaxAcquiredBufferCount(0) = %v, want ErrBadValue", err)
	}
	if err := tq.cons.SetMaxAcquiredBufferCount(7); !errors.Is(err, ErrBadValue) {
		t.Errorf("SetMaxAcquiredBufferCount(7) = %v, want ErrBadValue", err)
	}
	if err := tq.cons.SetMaxAcquiredBufferCount(2); err != nil {
		t.Errorf("SetMaxAcquiredBufferCount(2) = %v", err)
	}
}

func TestConsumer_UsageBitsReachProducer(t *testing.T) {
	tq := newTestQueue(t)
	tq.cons.SetConsumerUsageBits(0x40)

	res, err := tq.prod.DequeueBuffer(32, 32, 0, 0x2, false)
	if err != nil {
		t.Fatalf("DequeueBuffer() = %v", err)
	}
	buf, err := tq.prod.RequestBuffer(res.Slot)
	if err != nil {
		t.Fatalf("RequestBuffer() = %v", err)
	}
	if buf.Usage&0x40 == 0 || buf.Usage&0x2 == 0 {
		t.Errorf("buffer usage = %#x, want both consumer bit 0x40 and producer bit 0x2", buf.Usage)
	}
}

func TestConsumer_ListenerNotified(t *testing.T) {
	tq := newTestQueue(t)
	tq.queueFrame(t, 32, 32, QueueInput{Timestamp: 1})
	tq.queueFrame(t, 32, 32, QueueInput{Timestamp: 2})

	if frames, _ := tq.listener.counts(); frames != 2 {
		t.Errorf("OnFrameAvailable called %d times, want 2", frames)
	}
}

func TestConsumer_AbandonedQueue(t *testing.T) {
	tq := newTestQueue(t)
	if err := tq.cons.Disconnect(); err != nil {
		t.Fatalf("Disconnect() = %v", err)
	}

	if _, err := tq.cons.AcquireBuffer(false); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("AcquireBuffer() = %v, want ErrNotInitialized", err)
	}
	if err := tq.cons.ReleaseBuffer(0, 1, fence.Fence{}); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("ReleaseBuffer() = %v, want ErrNotInitialized", err)
	}
	if err := tq.cons.SetDefaultBufferSize(32, 32); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("SetDefaultBufferSize() = %v, want ErrNotInitialized", err)
	}
}

// TestConsumer_DisconnectReleasesBuffers makes sure abandonment returns
// every allocation, whatever state its slot was in.
func TestConsumer_DisconnectReleasesBuffers(t *testing.T) {
	tq := newTestQueue(t)
	if err := tq.prod.SetBufferCount(4); err != nil {
		t.Fatalf("SetBufferCount(4) = %v", err)
	}

	tq.queueFrame(t, 32, 32, QueueInput{Timestamp: 1})
	tq.queueFrame(t, 32, 32, QueueInput{Timestamp: 2})
	if _, err := tq.cons.AcquireBuffer(false); err != nil {
		t.Fatalf("AcquireBuffer() = %v", err)
	}
	if _, err := tq.prod.DequeueBuffer(32, 32, 0, 0, false); err != nil {
		t.Fatalf("DequeueBuffer() = %v", err)
	}

	if err := tq.cons.Disconnect(); err != nil {
		t.Fatalf("Disconnect() = %v", err)
	}
	allocs, releases := tq.alloc.counts()
	if releases != allocs {
		t.Errorf("allocator saw %d allocs but %d releases after abandon", allocs, releases)
	}
}
