// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package timing

import "fmt"

// Stats summarizes the present-to-present intervals visible in a
// tracker's history. All durations are nanoseconds.
type Stats struct {
	// Frames counts records with a known actual present time.
	Frames int

	// Intervals counts consecutive pairs of known present times.
	Intervals int

	MinInterval  int64
	MaxInterval  int64
	MeanInterval int64
}

// FPS derives the frame rate from the mean interval, or 0 when no
// intervals are known.
func (s Stats) FPS() float64 {
	if s.MeanInterval <= 0 {
		return 0
	}
	return 1e9 / float64(s.MeanInterval)
}

// String formats the summary on one line for logs.
func (s Stats) String() string {
	return fmt.Sprintf("frames=%d intervals=%d min=%dns max=%dns mean=%dns fps=%.1f",
		s.Frames, s.Intervals, s.MinInterval, s.MaxInterval, s.MeanInterval, s.FPS())
}

// Stats folds signaled fences in, then summarizes the intervals
// between known actual present times, oldest to newest. Records whose
// present time is zero or still unknown are skipped.
func (t *FrameTracker) Stats() Stats {
	t.ProcessFences()

	var st Stats
	prev := int64(-1)
	var sum int64
	for i := 1; i < NumFrameRecords; i++ {
		index := (t.offset + i) % NumFrameRecords
		actual := t.records[index].actual
		if actual == 0 || actual == TimeUnknown {
			continue
		}
		st.Frames++
		if prev >= 0 {
			d := actual - prev
			st.Intervals++
			sum += d
			if st.Intervals == 1 || d < st.MinInterval {
				st.MinInterval = d
			}
			if d > st.MaxInterval {
				st.MaxInterval = d
			}
		}
		prev = actual
	}
	if st.Intervals > 0 {
		st.MeanInterval = sum / int64(st.Intervals)
	}
	return st
}
