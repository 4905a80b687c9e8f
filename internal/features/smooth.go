// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package features

import "math"

// WindowSamples converts a smoothing span in milliseconds into a sample count
// at the given sample interval. The result is never below 1.
func WindowSamples(windowMS, sampleIntervalMS float64) int {
	if sampleIntervalMS <= 0 {
		return 1
	}
	w := int(math.Round(windowMS / sampleIntervalMS))
	if w < 1 {
		return 1
	}
	return w
}

// Smooth applies a trailing moving average of the given window. The first
// window-1 outputs average however many samples are available, so every
// output is defined. A window of 1 returns an exact copy.
func Smooth(x []float64, window int) []float64 {
	out := make([]float64, len(x))
	if window <= 1 {
		copy(out, x)
		return out
	}
	for i := range x {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		var sum float64
		for _, v := range x[lo : i+1] {
			sum += v
		}
		out[i] = sum / float64(i+1-lo)
	}
	return out
}
