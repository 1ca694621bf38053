// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package swapchain

import "fmt"

// API identifies the producer-side client stack holding the connection.
// Exactly one API may be connected at a time.
type API uint32

const (
	// APINone means no producer is connected.
	APINone API = iota

	// APIGPU is a GPU renderer producing frames.
	APIGPU

	// APICPU is software rendering into mapped buffers.
	APICPU

	// APIMedia is a media decoder.
	APIMedia

	// APICamera is a camera pipeline.
	APICamera
)

// String returns a human-readable name for the API.
func (a API) String() string {
	switch a {
	case APINone:
		return "none"
	case APIGPU:
		return "gpu"
	case APICPU:
		return "cpu"
	case APIMedia:
		return "media"
	case APICamera:
		return "camera"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(a))
	}
}

func (a API) valid() bool {
	return a >= APIGPU && a <= APICamera
}

// ScalingMode describes how a queued buffer maps onto the consumer's
// output geometry.
type ScalingMode uint32

const (
	// ScalingFreeze requires the buffer to match the output exactly.
	ScalingFreeze ScalingMode = iota

	// ScalingScaleToWindow stretches the buffer to the output.
	ScalingScaleToWindow

	// ScalingScaleCrop scales uniformly, cropping overflow.
	ScalingScaleCrop

	// ScalingNoScaleCrop centers without scaling, cropping overflow.
	ScalingNoScaleCrop
)

// String returns a human-readable name for the scaling mode.
func (m ScalingMode) String() string {
	switch m {
	case ScalingFreeze:
		return "freeze"
	case ScalingScaleToWindow:
		return "scale-to-window"
	case ScalingScaleCrop:
		return "scale-crop"
	case ScalingNoScaleCrop:
		return "no-scale-crop"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(m))
	}
}

func (m ScalingMode) valid() bool {
	return m <= ScalingNoScaleCrop
}

// Transform is a bitmask of flip and rotate steps the consumer applies
// when reading a buffer. Rotations compose from flips: 180 degrees is
// both flips, 270 is 180 plus 90.
type Transform uint32

const (
	TransformNone  Transform = 0
	TransformFlipH Transform = 1 << 0
	TransformFlipV Transform = 1 << 1
	TransformRot90 Transform = 1 << 2

	TransformRot180 = TransformFlipH | TransformFlipV
	TransformRot270 = TransformRot180 | TransformRot90
)

// String returns a compact description such as "flipH|rot90".
func (t Transform) String() string {
	if t == TransformNone {
		return "none"
	}
	s := ""
	if t&TransformFlipH != 0 {
		s += "|flipH"
	}
	if t&TransformFlipV != 0 {
		s += "|flipV"
	}
	if t&TransformRot90 != 0 {
		s += "|rot90"
	}
	if rest := t &^ (TransformFlipH | TransformFlipV | TransformRot90); rest != 0 {
		s += fmt.Sprintf("|unknown(%#x)", uint32(rest))
	}
	return s[1:]
}

// Query selects a value for Producer.Query.
type Query uint32

const (
	// QueryWidth is the default buffer width.
	QueryWidth Query = iota

	// QueryHeight is the default buffer height.
	QueryHeight

	// QueryFormat is the default buffer format.
	QueryFormat

	// QueryMinUndequeued is the number of slots that must stay
	// un-dequeued for the consumer to make progress.
	QueryMinUndequeued

	// QueryRunningBehind reports 1 when two or more frames are queued
	// and the consumer has not kept up.
	QueryRunningBehind

	// QueryTransformHint is the consumer's preferred pre-rotation.
	QueryTransformHint
)
