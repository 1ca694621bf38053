// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package timing records per-frame timestamp history for jank
// analysis: when each frame wanted to be on screen, when it was ready,
// and when it actually appeared.
//
// A FrameTracker is not synchronized. It is built for a single display
// pipeline goroutine; callers that share one must serialize access
// themselves.
package timing

import (
	"fmt"
	"io"
	"math"

	"github.com/gogpu/swapchain/fence"
)

// NumFrameRecords is the depth of the circular frame history.
const NumFrameRecords = 128

// TimeUnknown marks a timestamp that is not known yet, as opposed to a
// timestamp of zero. It is the value reported for a record whose fence
// has not signaled.
const TimeUnknown int64 = math.MaxInt64

// record is one frame's timestamps. An attached fence takes priority
// over its timestamp field: once it signals, the signal time replaces
// the field and the fence is dropped.
type record struct {
	desired int64
	ready   int64
	actual  int64

	readyFence     fence.Fence
	actualFence    fence.Fence
	hasReadyFence  bool
	hasActualFence bool
}

// FrameTracker keeps the last NumFrameRecords frames' desired, ready
// and actual present times in a circular buffer. Timestamps may arrive
// directly or as fences resolved later; ProcessFences folds signaled
// fences into their timestamp fields without changing the observable
// history.
//
// The zero FrameTracker is ready to use.
type FrameTracker struct {
	records [NumFrameRecords]record

	// offset is the cursor of the frame currently being assembled.
	offset int

	// numFences counts attached, unresolved fences so ProcessFences
	// visits only as many records as can still change.
	numFences int
}

// SetDesiredPresentTime records when the current frame wants to be on
// screen.
func (t *FrameTracker) SetDesiredPresentTime(ns int64) {
	t.records[t.offset].desired = ns
}

// SetFrameReadyTime records when the current frame finished rendering.
func (t *FrameTracker) SetFrameReadyTime(ns int64) {
	t.records[t.offset].ready = ns
}

// SetFrameReadyFence attaches a fence that will signal when the
// current frame finishes rendering.
func (t *FrameTracker) SetFrameReadyFence(f fence.Fence) {
	r := &t.records[t.offset]
	r.readyFence = f
	r.hasReadyFence = true
	t.numFences++
}

// SetActualPresentTime records when the current frame reached the
// screen.
func (t *FrameTracker) SetActualPresentTime(ns int64) {
	t.records[t.offset].actual = ns
}

// SetActualPresentFence attaches a fence that will signal when the
// current frame reaches the screen.
func (t *FrameTracker) SetActualPresentFence(f fence.Fence) {
	r := &t.records[t.offset]
	r.actualFence = f
	r.hasActualFence = true
	t.numFences++
}

// AdvanceFrame moves the cursor to the next record and resets it for
// the incoming frame. If the record being overwritten still holds an
// unresolved fence, that fence is clobbered: its eventual signal is
// discarded and the outstanding count drops.
func (t *FrameTracker) AdvanceFrame() {
	t.offset = (t.offset + 1) % NumFrameRecords
	r := &t.records[t.offset]
	r.desired = TimeUnknown
	r.ready = TimeUnknown
	r.actual = TimeUnknown
	if r.hasReadyFence {
		r.readyFence = fence.Fence{}
		r.hasReadyFence = false
		t.numFences--
	}
	if r.hasActualFence {
		r.actualFence = fence.Fence{}
		r.hasActualFence = false
		t.numFences--
	}
}

// Clear resets the history to all-zero and drops every attached fence.
// The record under the cursor is marked in-progress rather than zero.
func (t *FrameTracker) Clear() {
	for i := range t.records {
		t.records[i] = record{}
	}
	t.numFences = 0
	r := &t.records[t.offset]
	r.desired = TimeUnknown
	r.ready = TimeUnknown
	r.actual = TimeUnknown
}

// ProcessFences folds signaled fences into their timestamp fields. A
// fence that has not signaled leaves TimeUnknown in the field and
// stays attached. The walk runs newest to oldest and stops once every
// outstanding fence has been seen, so the cost is bounded by the
// number of attached fences, not the history depth.
//
// Observable history never changes, only how it is stored: calling
// ProcessFences twice with nothing signaled in between yields the
// same state.
func (t *FrameTracker) ProcessFences() {
	for i := 1; i < NumFrameRecords && t.numFences > 0; i++ {
		index := (t.offset + NumFrameRecords - i) % NumFrameRecords
		r := &t.records[index]
		if r.hasReadyFence {
			r.ready = r.readyFence.SignalTime()
			if r.ready != TimeUnknown {
				r.readyFence = fence.Fence{}
				r.hasReadyFence = false
				t.numFences--
			}
		}
		if r.hasActualFence {
			r.actual = r.actualFence.SignalTime()
			if r.actual != TimeUnknown {
				r.actualFence = fence.Fence{}
				r.hasActualFence = false
				t.numFences--
			}
		}
	}
}

// Dump writes the timestamp history, oldest to newest, one frame per
// line as "desired ready actual" in nanoseconds. The record still
// being assembled is omitted. Fences that have signaled are folded in
// first; a still-pending fence reports TimeUnknown.
func (t *FrameTracker) Dump(w io.Writer) {
	t.ProcessFences()
	for i := 1; i < NumFrameRecords; i++ {
		index := (t.offset + i) % NumFrameRecords
		r := &t.records[index]
		fmt.Fprintf(w, "%d\t%d\t%d\n", r.desired, r.ready, r.actual)
	}
	fmt.Fprintln(w)
}
