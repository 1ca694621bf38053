// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package swapchain

import (
	"encoding"
	"encoding/binary"
	"fmt"
	"image"

	"github.com/gogpu/swapchain/fence"
)

// Wire layout for callers bridging a transport. QueueOutput is the
// legacy fixed reply record: four little-endian uint32 values, no
// padding. QueueInput is 43 bytes:
//
//	offset size field
//	0      8    timestamp (int64)
//	8      1    auto-timestamp (0 or 1)
//	9      16   crop min.X, min.Y, max.X, max.Y (int32 each)
//	25     4    scaling mode
//	29     4    transform
//	33     1    async (0 or 1)
//	34     1    fence tag (0 = signaled, 1 = signaled at)
//	35     8    fence signal time (int64, 0 unless tag is 1)
//
// A Pending fence has no wire form: handles never cross this boundary.
const (
	wireQueueOutputLen = 16
	wireQueueInputLen  = 43

	wireFenceSignaled   = 0
	wireFenceSignaledAt = 1
)

var (
	_ encoding.BinaryMarshaler   = QueueOutput{}
	_ encoding.BinaryUnmarshaler = (*QueueOutput)(nil)
	_ encoding.BinaryMarshaler   = QueueInput{}
	_ encoding.BinaryUnmarshaler = (*QueueInput)(nil)
)

// MarshalBinary encodes the reply as four little-endian uint32 values.
func (o QueueOutput) MarshalBinary() ([]byte, error) {
	b := make([]byte, wireQueueOutputLen)
	binary.LittleEndian.PutUint32(b[0:], o.Width)
	binary.LittleEndian.PutUint32(b[4:], o.Height)
	binary.LittleEndian.PutUint32(b[8:], uint32(o.TransformHint))
	binary.LittleEndian.PutUint32(b[12:], o.PendingBuffers)
	return b, nil
}

// UnmarshalBinary decodes a reply encoded by MarshalBinary.
func (o *QueueOutput) UnmarshalBinary(data []byte) error {
	if len(data) != wireQueueOutputLen {
		return fmt.Errorf("%w: queue output is %d bytes, want %d", ErrBadValue, len(data), wireQueueOutputLen)
	}
	o.Width = binary.LittleEndian.Uint32(data[0:])
	o.Height = binary.LittleEndian.Uint32(data[4:])
	o.TransformHint = Transform(binary.LittleEndian.Uint32(data[8:]))
	o.PendingBuffers = binary.LittleEndian.Uint32(data[12:])
	return nil
}

// MarshalBinary encodes the frame metadata. A still-pending fence is
// first given the chance to resolve; if it has not signaled yet the
// input cannot be encoded and ErrBadValue is returned.
func (in QueueInput) MarshalBinary() ([]byte, error) {
	fc, ok := in.Fence.Resolve()
	if !ok {
		return nil, fmt.Errorf("%w: pending fence cannot cross the wire", ErrBadValue)
	}

	b := make([]byte, wireQueueInputLen)
	binary.LittleEndian.PutUint64(b[0:], uint64(in.Timestamp))
	if in.AutoTimestamp {
		b[8] = 1
	}
	binary.LittleEndian.PutUint32(b[9:], uint32(int32(in.Crop.Min.X)))
	binary.LittleEndian.PutUint32(b[13:], uint32(int32(in.Crop.Min.Y)))
	binary.LittleEndian.PutUint32(b[17:], uint32(int32(in.Crop.Max.X)))
	binary.LittleEndian.PutUint32(b[21:], uint32(int32(in.Crop.Max.Y)))
	binary.LittleEndian.PutUint32(b[25:], uint32(in.ScalingMode))
	binary.LittleEndian.PutUint32(b[29:], uint32(in.Transform))
	if in.Async {
		b[33] = 1
	}
	if ts := fc.SignalTime(); ts != 0 {
		b[34] = wireFenceSignaledAt
		binary.LittleEndian.PutUint64(b[35:], uint64(ts))
	} else {
		b[34] = wireFenceSignaled
	}
	return b, nil
}

// UnmarshalBinary decodes frame metadata encoded by MarshalBinary.
func (in *QueueInput) UnmarshalBinary(data []byte) error {
	if len(data) != wireQueueInputLen {
		return fmt.Errorf("%w: queue input is %d bytes, want %d", ErrBadValue, len(data), wireQueueInputLen)
	}
	in.Timestamp = int64(binary.LittleEndian.Uint64(data[0:]))
	in.AutoTimestamp = data[8] != 0
	in.Crop = image.Rect(
		int(int32(binary.LittleEndian.Uint32(data[9:]))),
		int(int32(binary.LittleEndian.Uint32(data[13:]))),
		int(int32(binary.LittleEndian.Uint32(data[17:]))),
		int(int32(binary.LittleEndian.Uint32(data[21:]))),
	)
	in.ScalingMode = ScalingMode(binary.LittleEndian.Uint32(data[25:]))
	in.Transform = Transform(binary.LittleEndian.Uint32(data[29:]))
	in.Async = data[33] != 0
	switch data[34] {
	case wireFenceSignaled:
		in.Fence = fence.Fence{}
	case wireFenceSignaledAt:
		in.Fence = fence.SignaledAt(int64(binary.LittleEndian.Uint64(data[35:])))
	default:
		return fmt.Errorf("%w: unknown fence tag %d", ErrBadValue, data[34])
	}
	return nil
}
