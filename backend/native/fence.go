// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package native

import (
	"fmt"
	"time"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/swapchain/fence"
)

// signalValue is the fence value each submission signals. One HAL
// fence serves one submission, so the first value suffices.
const signalValue = 1

// FenceHandle adapts a submitted hal.Fence to the fence.Handle
// interface. A watcher goroutine blocks in the HAL until the fence
// signals, records the completion time, and destroys the HAL fence.
// HAL fences carry no device timestamp, so SignalTime reports the
// wall-clock time at which completion was first observed.
type FenceHandle struct {
	done chan struct{}
	at   int64
	err  error
}

var _ fence.Handle = (*FenceHandle)(nil)

// newFenceHandle starts the watcher for a submitted fence.
func newFenceHandle(device hal.Device, halFence hal.Fence) *FenceHandle {
	h := &FenceHandle{done: make(chan struct{})}
	go h.watch(device, halFence)
	return h
}

// watch blocks until the fence signals or the device errors, then
// records the time and frees the fence. err is published before done
// closes.
func (h *FenceHandle) watch(device hal.Device, halFence hal.Fence) {
	for {
		ok, err := device.Wait(halFence, signalValue, time.Second)
		if err != nil {
			h.err = fmt.Errorf("native: fence wait: %w", err)
			break
		}
		if ok {
			break
		}
	}
	h.at = time.Now().UnixNano()
	device.DestroyFence(halFence)
	close(h.done)
}

// SignalTime implements fence.Handle.
func (h *FenceHandle) SignalTime() (int64, bool) {
	select {
	case <-h.done:
		return h.at, true
	default:
		return 0, false
	}
}

// Wait implements fence.Handle. A non-positive timeout waits
// indefinitely. A submission whose device reported an error surfaces
// it here.
func (h *FenceHandle) Wait(timeout time.Duration) error {
	if timeout <= 0 {
		<-h.done
		return h.err
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-h.done:
		return h.err
	case <-t.C:
		return fmt.Errorf("%w after %v", fence.ErrTimeout, timeout)
	}
}

// SubmitFence submits command buffers on the allocator's queue with a
// fresh HAL fence behind them and returns a swapchain fence pending on
// its completion. An empty command list is valid: the fence signals
// once all previously submitted work finishes.
func (a *Allocator) SubmitFence(cmds []hal.CommandBuffer) (fence.Fence, error) {
	if a.queue == nil {
		return fence.Fence{}, ErrNilQueue
	}
	halFence, err := a.device.CreateFence()
	if err != nil {
		return fence.Fence{}, fmt.Errorf("native: create fence: %w", err)
	}
	if err := a.queue.Submit(cmds, halFence, signalValue); err != nil {
		a.device.DestroyFence(halFence)
		return fence.Fence{}, fmt.Errorf("native: submit: %w", err)
	}
	return fence.Pending(newFenceHandle(a.device, halFence)), nil
}
