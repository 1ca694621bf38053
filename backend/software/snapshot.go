// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package software

import (
	"fmt"
	"image"

	"github.com/gogpu/gputypes"
	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/swapchain"
)

// Snapshot copies a software-backed buffer into an *image.RGBA,
// swapping BGRA channel order where needed. The result shares no memory
// with the buffer, so it stays valid after the slot is reused.
func Snapshot(b *swapchain.Buffer) (*image.RGBA, error) {
	pix, ok := BytesOf(b)
	if !ok {
		return nil, fmt.Errorf("software: buffer is not software-backed or was released")
	}
	w, h := int(b.Width), int(b.Height)
	stride := int(b.Stride)
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	switch b.Format {
	case gputypes.TextureFormatRGBA8Unorm:
		for y := 0; y < h; y++ {
			copy(img.Pix[y*img.Stride:y*img.Stride+w*4], pix[y*stride:y*stride+w*4])
		}
	case gputypes.TextureFormatBGRA8Unorm:
		for y := 0; y < h; y++ {
			src := pix[y*stride : y*stride+w*4]
			dst := img.Pix[y*img.Stride : y*img.Stride+w*4]
			for x := 0; x < w; x++ {
				dst[x*4+0] = src[x*4+2]
				dst[x*4+1] = src[x*4+1]
				dst[x*4+2] = src[x*4+0]
				dst[x*4+3] = src[x*4+3]
			}
		}
	default:
		return nil, fmt.Errorf("software: cannot snapshot format %v", b.Format)
	}
	return img, nil
}

// Thumbnail snapshots a buffer and scales it to fit within maxDim on
// its longer side, preserving aspect ratio. Buffers already within the
// limit are returned at full size.
func Thumbnail(b *swapchain.Buffer, maxDim int) (*image.RGBA, error) {
	if maxDim <= 0 {
		return nil, fmt.Errorf("software: invalid thumbnail size %d", maxDim)
	}
	img, err := Snapshot(b)
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDim && h <= maxDim {
		return img, nil
	}

	tw, th := maxDim, h*maxDim/w
	if h > w {
		tw, th = w*maxDim/h, maxDim
	}
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, xdraw.Src, nil)
	return dst, nil
}
