// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package software

import (
	"context"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/swapchain"
)

type nopListener struct{}

func (nopListener) OnFrameAvailable()  {}
func (nopListener) OnBuffersReleased() {}

func TestAllocator_Allocate(t *testing.T) {
	a := NewAllocator()

	b, err := a.Allocate(10, 4, gputypes.TextureFormatRGBA8Unorm, gputypes.TextureUsageTextureBinding)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if b.Width != 10 || b.Height != 4 {
		t.Errorf("buffer size = %dx%d, want 10x4", b.Width, b.Height)
	}
	if b.Stride != 40 {
		t.Errorf("Stride = %d, want 40", b.Stride)
	}
	if b.Format != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("Format = %v, want RGBA8Unorm", b.Format)
	}
	if b.Usage != gputypes.TextureUsageTextureBinding {
		t.Errorf("Usage = %v, want TextureBinding", b.Usage)
	}

	pix, ok := BytesOf(b)
	if !ok {
		t.Fatal("BytesOf reported a non-software buffer")
	}
	if len(pix) != 160 {
		t.Errorf("len(pix) = %d, want 160", len(pix))
	}
}

func TestAllocator_AllocateBadSize(t *testing.T) {
	a := NewAllocator()

	if _, err := a.Allocate(0, 5, gputypes.TextureFormatRGBA8Unorm, 0); err == nil {
		t.Error("Allocate(0, 5) succeeded, want error")
	}
	if _, err := a.Allocate(5, 0, gputypes.TextureFormatRGBA8Unorm, 0); err == nil {
		t.Error("Allocate(5, 0) succeeded, want error")
	}
}

func TestAllocator_AllocateUnsupportedFormat(t *testing.T) {
	a := NewAllocator()

	if _, err := a.Allocate(5, 5, gputypes.TextureFormatUndefined, 0); err == nil {
		t.Error("Allocate with an undefined format succeeded, want error")
	}
}

func TestMemory_ReleaseIdempotent(t *testing.T) {
	a := NewAllocator()

	b, err := a.Allocate(8, 8, gputypes.TextureFormatBGRA8Unorm, 0)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	b.Release()
	b.Release()
	if _, ok := BytesOf(b); ok {
		t.Error("BytesOf returned ok for a released buffer")
	}
}

type foreignStorage struct{}

func (foreignStorage) Release() {}

func TestBytesOf_ForeignStorage(t *testing.T) {
	b := swapchain.NewBuffer(4, 4, 16, gputypes.TextureFormatRGBA8Unorm, 0, foreignStorage{})
	if _, ok := BytesOf(b); ok {
		t.Error("BytesOf returned ok for a buffer from another backend")
	}
	if _, ok := BytesOf(nil); ok {
		t.Error("BytesOf(nil) returned ok")
	}
}

func TestAllocator_BacksQueue(t *testing.T) {
	q, err := swapchain.New(
		swapchain.WithSlotCount(4),
		swapchain.WithAllocator(NewAllocator()),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := q.Consumer().Connect(nopListener{}, false); err != nil {
		t.Fatalf("consumer Connect failed: %v", err)
	}
	prod := q.Producer()
	if _, err := prod.Connect(context.Background(), swapchain.APIGPU, true); err != nil {
		t.Fatalf("producer Connect failed: %v", err)
	}

	res, err := prod.DequeueBuffer(16, 16, gputypes.TextureFormatRGBA8Unorm, 0, false)
	if err != nil {
		t.Fatalf("DequeueBuffer failed: %v", err)
	}
	buf, err := prod.RequestBuffer(res.Slot)
	if err != nil {
		t.Fatalf("RequestBuffer failed: %v", err)
	}

	pix, ok := BytesOf(buf)
	if !ok {
		t.Fatal("dequeued buffer is not software-backed")
	}
	if len(pix) != 16*16*4 {
		t.Errorf("len(pix) = %d, want %d", len(pix), 16*16*4)
	}
}
