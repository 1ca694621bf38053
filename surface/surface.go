// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package surface

import (
	"context"
	"fmt"
	"image"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/swapchain"
	"github.com/gogpu/swapchain/fence"
)

// Frame is one dequeued buffer the caller is free to render into.
// Queue or Cancel returns it to the queue.
type Frame struct {
	// Slot is the queue slot backing the frame.
	Slot int

	// Buffer is the allocation to render into. Rendering must wait for
	// Fence before writing.
	Buffer *swapchain.Buffer

	// Fence gates the previous reader's access. It travels from the
	// consumer's release (or a producer cancel) with the slot.
	Fence fence.Fence
}

// Surface is the producer-side client of a buffer queue.
//
// It holds the sticky per-window state a render loop sets once (buffer
// size, format, usage, crop, transform, scaling mode, async) and stamps
// it onto every frame, the way a native window does. Dequeue reconciles
// the slot cache by generation so RequestBuffer only runs when the
// slot's backing allocation actually changed.
//
// A Surface is not safe for concurrent use.
type Surface struct {
	prod  *swapchain.Producer
	cache *Cache

	ctx       context.Context
	connected bool
	api       swapchain.API

	width, height uint32
	format        gputypes.TextureFormat
	usage         gputypes.TextureUsage
	async         bool

	crop      image.Rectangle
	transform swapchain.Transform
	scaling   swapchain.ScalingMode

	// timestamp is stamped onto the next queued frame; zero selects the
	// queue's auto-timestamp.
	timestamp int64

	hint swapchain.Transform
}

// New wraps a producer endpoint. A nil cache gets a private one; pass a
// shared cache to keep warm slots across Surface lifetimes.
func New(prod *swapchain.Producer, cache *Cache) *Surface {
	if cache == nil {
		cache = NewCache()
	}
	return &Surface{prod: prod, cache: cache}
}

// SetBufferSize sets the geometry of subsequently dequeued buffers.
// Zero by zero selects the consumer's default size.
func (s *Surface) SetBufferSize(width, height uint32) {
	s.width, s.height = width, height
}

// Width returns the sticky buffer width. Zero means the consumer's
// default.
func (s *Surface) Width() uint32 { return s.width }

// Height returns the sticky buffer height. Zero means the consumer's
// default.
func (s *Surface) Height() uint32 { return s.height }

// SetFormat sets the pixel format of subsequently dequeued buffers.
// Zero selects the consumer's default.
func (s *Surface) SetFormat(f gputypes.TextureFormat) { s.format = f }

// SetUsage sets the producer's usage bits for subsequently dequeued
// buffers. The consumer's bits are merged in by the queue.
func (s *Surface) SetUsage(usage gputypes.TextureUsage) { s.usage = usage }

// SetAsync switches the surface between blocking and frame-dropping
// mode. In async mode a queued frame the consumer has not latched yet
// may be replaced by the next one.
func (s *Surface) SetAsync(async bool) { s.async = async }

// SetCrop sets the crop stamped onto queued frames. An empty rectangle
// means no crop.
func (s *Surface) SetCrop(crop image.Rectangle) { s.crop = crop }

// SetTransform sets the transform stamped onto queued frames.
func (s *Surface) SetTransform(t swapchain.Transform) { s.transform = t }

// SetScalingMode sets the scaling mode stamped onto queued frames.
func (s *Surface) SetScalingMode(m swapchain.ScalingMode) { s.scaling = m }

// SetTimestamp fixes the timestamp of the next queued frames, in
// nanoseconds. Zero restores automatic timestamps.
func (s *Surface) SetTimestamp(ns int64) { s.timestamp = ns }

// TransformHint is the consumer's preferred pre-rotation, refreshed on
// Connect and after every Queue. Rendering pre-rotated saves the
// consumer a pass.
func (s *Surface) TransformHint() swapchain.Transform { return s.hint }

// Connect attaches the surface to its queue. The context's lifetime
// bounds the connection: cancellation disconnects the producer and
// subsequent calls on the surface fail with ErrDeadObject.
func (s *Surface) Connect(ctx context.Context, api swapchain.API) error {
	if s.connected {
		return fmt.Errorf("%w: surface already connected", swapchain.ErrBadState)
	}
	out, err := s.prod.Connect(ctx, api, true)
	if err != nil {
		return err
	}
	s.ctx = ctx
	s.connected = true
	s.api = api
	s.hint = out.TransformHint
	return nil
}

// Disconnect detaches the surface and forgets its cached buffers. It
// is safe to call after the connection died; local state is reset
// either way.
func (s *Surface) Disconnect() error {
	if !s.connected {
		return nil
	}
	dead := s.deadConnection()
	s.connected = false
	s.ctx = nil
	s.cache.Clear()
	if dead {
		// The death watch already disconnected the queue side.
		return nil
	}
	return s.prod.Disconnect(s.api)
}

// Dequeue obtains the next free buffer, fetching it from the queue
// only when the slot's generation is not in the cache.
func (s *Surface) Dequeue() (Frame, error) {
	if err := s.alive(); err != nil {
		return Frame{}, err
	}
	res, err := s.prod.DequeueBuffer(s.width, s.height, s.format, s.usage, s.async)
	if err != nil {
		return Frame{}, err
	}
	buf, ok := s.cache.Lookup(res.Slot, res.Generation)
	if !ok {
		buf, err = s.prod.RequestBuffer(res.Slot)
		if err != nil {
			s.prod.CancelBuffer(res.Slot, res.Fence)
			return Frame{}, err
		}
		s.cache.Store(res.Slot, res.Generation, buf)
	}
	return Frame{Slot: res.Slot, Buffer: buf, Fence: res.Fence}, nil
}

// Queue hands a rendered frame to the consumer. The fence gates reads
// of the frame's contents; pass the zero fence if rendering already
// finished. Sticky state supplies the frame metadata.
func (s *Surface) Queue(f Frame, fc fence.Fence) error {
	if err := s.alive(); err != nil {
		return err
	}
	out, err := s.prod.QueueBuffer(f.Slot, swapchain.QueueInput{
		Timestamp:     s.timestamp,
		AutoTimestamp: s.timestamp == 0,
		Crop:          s.crop,
		ScalingMode:   s.scaling,
		Transform:     s.transform,
		Async:         s.async,
		Fence:         fc,
	})
	if err != nil {
		return err
	}
	s.hint = out.TransformHint
	return nil
}

// Cancel returns an unrendered frame to the queue. The fence gates any
// writes the caller already issued.
func (s *Surface) Cancel(f Frame, fc fence.Fence) error {
	if err := s.alive(); err != nil {
		return err
	}
	return s.prod.CancelBuffer(f.Slot, fc)
}

func (s *Surface) alive() error {
	if !s.connected {
		return fmt.Errorf("%w: surface is not connected", swapchain.ErrBadState)
	}
	if s.deadConnection() {
		return fmt.Errorf("%w: connect context canceled", swapchain.ErrDeadObject)
	}
	return nil
}

// deadConnection reports whether the connect context ended, which the
// queue's death watch turns into a producer disconnect.
func (s *Surface) deadConnection() bool {
	return s.ctx != nil && s.ctx.Err() != nil
}
