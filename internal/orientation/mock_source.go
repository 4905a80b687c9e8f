// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"time"
)

// CurlSource synthesizes the pose of one limb performing dumbbell curls.
// The forearm (wrist) sweeps through Amplitude degrees of pitch per repetition
// while the upper arm stays nearly still, so the arm-minus-wrist pitch
// difference rises above the rest level once per Period.
type CurlSource struct {
	Period    time.Duration
	Amplitude float64
	Offset    float64
	Wrist     bool

	start time.Time
	now   func() time.Time
}

// NewMockSource creates a curl source for the given limb driven by wall-clock time.
func NewMockSource(wrist bool) *CurlSource {
	return &CurlSource{
		Period:    2 * time.Second,
		Amplitude: 110,
		Offset:    -10,
		Wrist:     wrist,
		start:     time.Now(),
		now:       time.Now,
	}
}

// Next returns the pose at the current time.
func (m *CurlSource) Next() (Pose, error) {
	return m.At(m.now().Sub(m.start)), nil
}

// At returns the pose at elapsed time t since the start of the set.
func (m *CurlSource) At(t time.Duration) Pose {
	phase := 2 * math.Pi * t.Seconds() / m.Period.Seconds()
	// 0 at rest, 1 at full flexion.
	flex := 0.5 * (1 - math.Cos(phase))

	if m.Wrist {
		return Pose{
			Roll:  5 * math.Sin(phase),
			Pitch: -(m.Offset + m.Amplitude*flex),
			Yaw:   2 * math.Sin(phase/2),
		}
	}
	return Pose{
		Roll:  1.5 * math.Sin(phase),
		Pitch: 3 * flex,
		Yaw:   0.5 * math.Cos(phase),
	}
}
