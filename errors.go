// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package swapchain

import "errors"

// Protocol errors. Operations return these sentinels, usually wrapped with
// call-site detail; match with errors.Is. None of them is retried
// internally: retry and backoff policy belongs to the caller.
var (
	// ErrNotInitialized is returned once the queue is abandoned, or before
	// a consumer has ever attached. Abandonment is terminal: nothing short
	// of constructing a new queue clears it.
	ErrNotInitialized = errors.New("swapchain: not initialized")

	// ErrBadState is returned when an operation is valid in general but
	// not for the current connection or slot state, such as connecting a
	// second producer or releasing a slot that is not acquired.
	ErrBadState = errors.New("swapchain: invalid state")

	// ErrBadValue is returned for malformed arguments: out-of-range slot
	// indices or buffer counts, unrecognized tokens, crops outside the
	// buffer bounds.
	ErrBadValue = errors.New("swapchain: invalid value")

	// ErrWouldBlock is returned instead of waiting when both sides are
	// application-controlled and no slot is free, and by non-blocking
	// acquire when no frame is queued.
	ErrWouldBlock = errors.New("swapchain: operation would block")

	// ErrBusy is returned when the producer already holds as many
	// dequeued slots as the capacity negotiation allows.
	ErrBusy = errors.New("swapchain: too many buffers dequeued")

	// ErrNoMemory is returned when the allocator cannot materialize a
	// buffer for a slot.
	ErrNoMemory = errors.New("swapchain: buffer allocation failed")

	// ErrDeadObject is returned by client facades whose underlying
	// connection was torn down by a death notification.
	ErrDeadObject = errors.New("swapchain: peer connection is gone")
)
