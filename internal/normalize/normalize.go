// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package normalize expresses feature vectors relative to the subject's first
// repetition and then applies a fitted per-feature standardization.
package normalize

import (
	"fmt"

	"github.com/relabs-tech/fatigue_computer/internal/features"
)

// BaselineEpsilon replaces exact zeros in the baseline.
const BaselineEpsilon = 1e-8

// Normalizer holds the write-once baseline and the fitted mean and scale.
// It is not safe for concurrent use; the owning session serializes calls.
type Normalizer struct {
	baseline features.Vector
	mean     []float64
	scale    []float64
}

// New returns a normalizer for vectors of len(mean) entries. A zero scale
// entry leaves that feature unscaled.
func New(mean, scale []float64) (*Normalizer, error) {
	if len(mean) != len(scale) {
		return nil, fmt.Errorf("normalize: mean has %d entries, scale has %d", len(mean), len(scale))
	}
	n := &Normalizer{
		mean:  append([]float64(nil), mean...),
		scale: make([]float64, len(scale)),
	}
	for i, s := range scale {
		if s == 0 {
			s = 1
		}
		n.scale[i] = s
	}
	return n, nil
}

// Identity returns a normalizer of width n whose standardization is a no-op,
// so only the baseline ratio is applied.
func Identity(n int) *Normalizer {
	scale := make([]float64, n)
	for i := range scale {
		scale[i] = 1
	}
	nz, _ := New(make([]float64, n), scale)
	return nz
}

// Len is the vector width this normalizer accepts.
func (n *Normalizer) Len() int { return len(n.mean) }

// Calibrated reports whether the baseline has been captured.
func (n *Normalizer) Calibrated() bool { return n.baseline != nil }

// Baseline returns a copy of the baseline, or nil before the first vector.
func (n *Normalizer) Baseline() features.Vector {
	if n.baseline == nil {
		return nil
	}
	return append(features.Vector(nil), n.baseline...)
}

// Normalize captures v as the baseline if none is set yet, then returns
// ((v / baseline) - mean) / scale. The input is not modified.
func (n *Normalizer) Normalize(v features.Vector) (features.Vector, error) {
	if len(v) != len(n.mean) {
		return nil, fmt.Errorf("normalize: vector has %d entries, want %d", len(v), len(n.mean))
	}
	if n.baseline == nil {
		n.baseline = make(features.Vector, len(v))
		for i, x := range v {
			if x == 0 {
				x = BaselineEpsilon
			}
			n.baseline[i] = x
		}
	}
	out := make(features.Vector, len(v))
	for i, x := range v {
		out[i] = (x/n.baseline[i] - n.mean[i]) / n.scale[i]
	}
	return out, nil
}
