// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package surface provides the producer-side client facade over a
// buffer queue.
//
// Surface wraps a swapchain.Producer with the ergonomics a render loop
// wants: sticky buffer geometry, per-slot buffer caching keyed by
// generation, and a three-call frame loop instead of the raw five-call
// protocol.
//
// # Slot Cache
//
// The queue hands out slot indices; the actual buffer for a slot only
// needs to be fetched (RequestBuffer) when the slot's backing
// allocation changed. Cache remembers the buffer last fetched for each
// slot together with the generation it belonged to, so steady-state
// frames skip the fetch entirely. A cache is an explicit value passed
// to New; callers that reconnect to the same queue can carry one across
// Surface lifetimes, and callers that do not care pass nil.
//
// # Usage
//
//	s := surface.New(q.Producer(), nil)
//	s.SetBufferSize(1920, 1080)
//	if err := s.Connect(ctx, swapchain.APIGPU); err != nil {
//	    return err
//	}
//	defer s.Disconnect()
//
//	for running {
//	    frame, err := s.Dequeue()
//	    if err != nil {
//	        return err
//	    }
//	    render(frame.Buffer, frame.Fence)
//	    if err := s.Queue(frame, renderDoneFence); err != nil {
//	        return err
//	    }
//	}
//
// A Surface is not safe for concurrent use by multiple goroutines; the
// queue below it is, but the facade's sticky state is a single
// producer's view.
package surface
