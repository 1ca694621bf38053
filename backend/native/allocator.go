// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package native provides a GPU-backed buffer allocator using gogpu/wgpu.
//
// Buffers are hal.Texture handles created on a shared device. The
// allocator never creates a device of its own: it receives one from the
// host application, either as raw HAL handles or through a
// gpucontext.DeviceProvider that exposes them.
package native

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/types"

	"github.com/gogpu/swapchain"
)

// Allocator errors.
var (
	// ErrNilDevice is returned when constructing an allocator without a
	// HAL device.
	ErrNilDevice = errors.New("native: HAL device is nil")

	// ErrNilQueue is returned when submitting without a HAL queue.
	ErrNilQueue = errors.New("native: HAL queue is nil")

	// ErrNoHALAccess is returned when a device provider does not expose
	// HAL handles.
	ErrNoHALAccess = errors.New("native: provider does not expose HAL types")

	// ErrInvalidSize is returned when buffer dimensions are invalid.
	ErrInvalidSize = errors.New("native: invalid buffer size")
)

// copyAlign is wgpu's required bytes-per-row alignment for texture
// copies. Reported strides honor it so readback paths need no
// re-padding.
const copyAlign = 256

// Allocator allocates swapchain buffers as GPU textures on a shared
// HAL device. It implements swapchain.Allocator.
//
// The device and queue are borrowed, never owned: the host that opened
// the device remains responsible for destroying it, after all buffers
// from this allocator have been released.
type Allocator struct {
	device hal.Device
	queue  hal.Queue

	// defaultFormat substitutes for TextureFormatUndefined requests,
	// typically the provider's surface format.
	defaultFormat gputypes.TextureFormat
}

var _ swapchain.Allocator = (*Allocator)(nil)

// NewAllocator builds an allocator from a device provider. The provider
// must also implement HalDevice() any and HalQueue() any returning
// wgpu/hal types; providers that keep their device private cannot back
// GPU buffer allocation.
func NewAllocator(provider gpucontext.DeviceProvider) (*Allocator, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHALAccess
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoHALAccess)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoHALAccess)
	}

	a, err := NewAllocatorFromHAL(device, queue)
	if err != nil {
		return nil, err
	}
	a.defaultFormat = provider.SurfaceFormat()
	return a, nil
}

// NewAllocatorFromHAL builds an allocator over raw HAL handles.
func NewAllocatorFromHAL(device hal.Device, queue hal.Queue) (*Allocator, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	return &Allocator{device: device, queue: queue}, nil
}

// Device returns the underlying HAL device.
func (a *Allocator) Device() hal.Device {
	return a.device
}

// Queue returns the underlying HAL queue, nil when the allocator was
// built without one.
func (a *Allocator) Queue() hal.Queue {
	return a.queue
}

// Allocate implements swapchain.Allocator. Each buffer is one 2D
// texture; the reported stride is the 256-byte-aligned row pitch a
// copy of the texture occupies.
func (a *Allocator) Allocate(width, height uint32, format gputypes.TextureFormat, usage gputypes.TextureUsage) (*swapchain.Buffer, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	if format == gputypes.TextureFormatUndefined {
		format = a.defaultFormat
	}
	halUsage := convertUsage(usage)

	desc := &hal.TextureDescriptor{
		Label: fmt.Sprintf("swapchain %dx%d", width, height),
		Size: hal.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     types.TextureDimension2D,
		Format:        convertFormat(format),
		Usage:         halUsage,
	}

	halTexture, err := a.device.CreateTexture(desc)
	if err != nil {
		return nil, fmt.Errorf("native: create texture: %w", err)
	}

	stride := (width*formatBytes(format) + copyAlign - 1) &^ (copyAlign - 1)
	tex := &Texture{device: a.device, halTexture: halTexture, label: desc.Label}
	return swapchain.NewBuffer(width, height, stride, format, usage, tex), nil
}

// convertFormat converts gputypes.TextureFormat to types.TextureFormat.
func convertFormat(format gputypes.TextureFormat) types.TextureFormat {
	switch format {
	case gputypes.TextureFormatRGBA8Unorm:
		return types.TextureFormatRGBA8Unorm
	case gputypes.TextureFormatBGRA8Unorm:
		return types.TextureFormatBGRA8Unorm
	case types.TextureFormatRGBA8UnormSrgb:
		return types.TextureFormatRGBA8UnormSrgb
	case types.TextureFormatBGRA8UnormSrgb:
		return types.TextureFormatBGRA8UnormSrgb
	case types.TextureFormatR8Unorm:
		return types.TextureFormatR8Unorm
	case types.TextureFormatR32Float:
		return types.TextureFormatR32Float
	case types.TextureFormatRG32Float:
		return types.TextureFormatRG32Float
	case types.TextureFormatRGBA32Float:
		return types.TextureFormatRGBA32Float
	default:
		return types.TextureFormatRGBA8Unorm
	}
}

// convertUsage converts swapchain buffer usage to types.TextureUsage.
// Zero usage means the caller stated no requirements; such buffers get
// the render-target default.
func convertUsage(usage gputypes.TextureUsage) types.TextureUsage {
	if usage == 0 {
		return types.TextureUsageRenderAttachment | types.TextureUsageTextureBinding
	}
	var result types.TextureUsage
	if usage&gputypes.TextureUsageCopySrc != 0 {
		result |= types.TextureUsageCopySrc
	}
	if usage&gputypes.TextureUsageCopyDst != 0 {
		result |= types.TextureUsageCopyDst
	}
	if usage&gputypes.TextureUsageTextureBinding != 0 {
		result |= types.TextureUsageTextureBinding
	}
	if usage&types.TextureUsageStorageBinding != 0 {
		result |= types.TextureUsageStorageBinding
	}
	if usage&gputypes.TextureUsageRenderAttachment != 0 {
		result |= types.TextureUsageRenderAttachment
	}
	return result
}

// formatBytes returns the packed per-pixel byte width of a format.
func formatBytes(format gputypes.TextureFormat) uint32 {
	switch format {
	case types.TextureFormatR8Unorm:
		return 1
	case types.TextureFormatRG32Float:
		return 8
	case types.TextureFormatRGBA32Float:
		return 16
	default:
		return 4
	}
}
