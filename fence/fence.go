// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package fence models deferred synchronization for buffer exchange.
//
// A Fence marks the completion of asynchronous work (GPU writes, CPU
// uploads, display reads) attached to a buffer as it changes ownership.
// It is a small tagged value with three states:
//
//   - already signaled: the zero value; no work is outstanding.
//   - pending: completion is delegated to an out-of-band Handle.
//   - signaled at: completion happened at a known timestamp.
//
// Collapsing pending into signaled-at is the only state change a fence
// ever undergoes. Resolve performs it; calling Resolve lazily and
// repeatedly is safe, so holders may re-check whenever convenient.
package fence

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// TimePending is the sentinel reported by SignalTime while completion is
// still unknown. It distinguishes "not yet known" from "known to be zero".
const TimePending int64 = math.MaxInt64

// ErrTimeout is returned by Wait when the work does not complete in time.
var ErrTimeout = errors.New("fence: wait timed out")

// Handle is an opaque reference to out-of-band asynchronous work.
// Handles are queried, never owned: dropping a fence never cancels the
// underlying work.
type Handle interface {
	// SignalTime reports when the work completed, in nanoseconds.
	// ok is false while the work is still in flight.
	SignalTime() (ns int64, ok bool)

	// Wait blocks until the work completes or the timeout elapses.
	// A non-positive timeout waits indefinitely.
	Wait(timeout time.Duration) error
}

type state uint8

const (
	stateSignaled state = iota
	statePending
	stateSignaledAt
)

// Fence is the deferred-synchronization value passed between buffer
// owners. The zero value is an already-signaled fence, so "no fence
// attached" and "ready now" are the same thing and a missing fence is
// unrepresentable.
type Fence struct {
	st state
	at int64
	h  Handle
}

// Pending returns a fence gated on h. A nil handle yields an
// already-signaled fence.
func Pending(h Handle) Fence {
	if h == nil {
		return Fence{}
	}
	return Fence{st: statePending, h: h}
}

// SignaledAt returns a fence that signaled at the given timestamp.
func SignaledAt(ns int64) Fence {
	return Fence{st: stateSignaledAt, at: ns}
}

// Signaled reports whether completion is already known, without polling
// the handle. A pending fence whose work has since finished still reports
// false until Resolve collapses it.
func (f Fence) Signaled() bool {
	return f.st != statePending
}

// Resolve collapses a pending fence whose work has completed into a
// signaled-at fence. The returned bool reports whether the result is
// signaled. Resolving an already-signaled fence returns it unchanged.
func (f Fence) Resolve() (Fence, bool) {
	if f.st != statePending {
		return f, true
	}
	if ns, ok := f.h.SignalTime(); ok {
		return SignaledAt(ns), true
	}
	return f, false
}

// SignalTime reports the completion timestamp. It polls a pending
// fence's handle; if the work is still in flight it returns TimePending.
// An already-signaled fence with no recorded timestamp reports 0.
func (f Fence) SignalTime() int64 {
	switch f.st {
	case statePending:
		if ns, ok := f.h.SignalTime(); ok {
			return ns
		}
		return TimePending
	case stateSignaledAt:
		return f.at
	default:
		return 0
	}
}

// Wait blocks until the fence signals or the timeout elapses. It returns
// immediately for signaled fences. A non-positive timeout waits
// indefinitely.
func (f Fence) Wait(timeout time.Duration) error {
	if f.st != statePending {
		return nil
	}
	return f.h.Wait(timeout)
}

// String returns a short description for diagnostics.
func (f Fence) String() string {
	switch f.st {
	case statePending:
		return "pending"
	case stateSignaledAt:
		return fmt.Sprintf("signaled@%d", f.at)
	default:
		return "signaled"
	}
}

// Manual is a Handle signaled explicitly from Go code. It stands in for
// CPU-side work in the software backend and gives tests a fence whose
// signal time is controlled precisely.
type Manual struct {
	mu   sync.Mutex
	done chan struct{}
	at   int64
	set  bool
}

var _ Handle = (*Manual)(nil)

// NewManual returns an unsignaled manual handle.
func NewManual() *Manual {
	return &Manual{done: make(chan struct{})}
}

// Signal marks the work complete at the given timestamp. Only the first
// call has any effect.
func (m *Manual) Signal(ns int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.set {
		return
	}
	m.set = true
	m.at = ns
	close(m.done)
}

// SignalNow signals with the current wall-clock time.
func (m *Manual) SignalNow() {
	m.Signal(time.Now().UnixNano())
}

// SignalTime implements Handle.
func (m *Manual) SignalTime() (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.at, m.set
}

// Wait implements Handle.
func (m *Manual) Wait(timeout time.Duration) error {
	if timeout <= 0 {
		<-m.done
		return nil
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-m.done:
		return nil
	case <-t.C:
		return fmt.Errorf("%w after %v", ErrTimeout, timeout)
	}
}
