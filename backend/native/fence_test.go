// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package native

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/swapchain/fence"
)

var _ fence.Handle = (*FenceHandle)(nil)

func TestFenceHandle_Signaled(t *testing.T) {
	device := &mockHALDevice{}

	h := newFenceHandle(device, nil)
	if err := h.Wait(0); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	at, ok := h.SignalTime()
	if !ok {
		t.Fatal("SignalTime reported pending after Wait returned")
	}
	if at <= 0 {
		t.Errorf("SignalTime = %d, want a wall-clock timestamp", at)
	}
	if got := atomic.LoadInt32(&device.fencesDestroyed); got != 1 {
		t.Errorf("fencesDestroyed = %d, want 1", got)
	}
}

func TestFenceHandle_Pending(t *testing.T) {
	gate := make(chan struct{})
	device := &mockHALDevice{
		waitFunc: func(_ hal.Fence, _ uint64, _ time.Duration) (bool, error) {
			select {
			case <-gate:
				return true, nil
			case <-time.After(10 * time.Millisecond):
				return false, nil
			}
		},
	}

	h := newFenceHandle(device, nil)
	if _, ok := h.SignalTime(); ok {
		t.Error("SignalTime reported signaled while the device fence is pending")
	}
	if err := h.Wait(30 * time.Millisecond); !errors.Is(err, fence.ErrTimeout) {
		t.Errorf("Wait = %v, want ErrTimeout", err)
	}

	close(gate)
	if err := h.Wait(time.Second); err != nil {
		t.Fatalf("Wait after signal failed: %v", err)
	}
	if _, ok := h.SignalTime(); !ok {
		t.Error("SignalTime still pending after the device fence signaled")
	}
}

func TestFenceHandle_DeviceError(t *testing.T) {
	boom := errors.New("device lost")
	device := &mockHALDevice{
		waitFunc: func(_ hal.Fence, _ uint64, _ time.Duration) (bool, error) {
			return false, boom
		},
	}

	h := newFenceHandle(device, nil)
	if err := h.Wait(0); !errors.Is(err, boom) {
		t.Errorf("Wait = %v, want the device error", err)
	}
	// The handle no longer blocks waiters once the device errors out.
	if _, ok := h.SignalTime(); !ok {
		t.Error("SignalTime reported pending after a device error")
	}
	if got := atomic.LoadInt32(&device.fencesDestroyed); got != 1 {
		t.Errorf("fencesDestroyed = %d, want 1", got)
	}
}

func TestSubmitFence_NoQueue(t *testing.T) {
	a, err := NewAllocatorFromHAL(&mockHALDevice{}, nil)
	if err != nil {
		t.Fatalf("NewAllocatorFromHAL failed: %v", err)
	}
	if _, err := a.SubmitFence(nil); !errors.Is(err, ErrNilQueue) {
		t.Errorf("SubmitFence = %v, want ErrNilQueue", err)
	}
}

func TestSubmitFence_CreateFenceError(t *testing.T) {
	boom := errors.New("fence exhausted")
	device := &mockHALDevice{
		createFenceFunc: func() (hal.Fence, error) { return nil, boom },
	}
	a, err := NewAllocatorFromHAL(device, noopQueue(t))
	if err != nil {
		t.Fatalf("NewAllocatorFromHAL failed: %v", err)
	}
	if _, err := a.SubmitFence(nil); !errors.Is(err, boom) {
		t.Errorf("SubmitFence = %v, want wrapped fence error", err)
	}
}
