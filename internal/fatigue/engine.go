// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package fatigue keeps the growing sequence of normalized window vectors
// and turns the model's output into a score and a label.
package fatigue

import (
	"fmt"
	"time"

	"github.com/relabs-tech/fatigue_computer/internal/features"
	"github.com/relabs-tech/fatigue_computer/internal/model"
)

// DefaultFeatures are the feature indices the shipped network was trained on.
var DefaultFeatures = []int{12, 18, 221, 224, 156, 162, 35, 36, 67, 75, 100, 108, 205, 206, 210, 215, 218, 233, 237}

// Engine owns the sequence buffer and the score history for one session.
// It is not safe for concurrent use.
type Engine struct {
	model   model.Sequence
	indices []int
	buffer  []features.Vector
	scores  []float64
	state   State
	now     func() time.Time
}

// NewEngine returns an engine that projects the buffered vectors onto
// indices at inference. A nil or empty indices uses DefaultFeatures.
func NewEngine(m model.Sequence, indices []int) *Engine {
	if len(indices) == 0 {
		indices = DefaultFeatures
	}
	return &Engine{
		model:   m,
		indices: append([]int(nil), indices...),
		state:   State{Label: LabelNone},
		now:     time.Now,
	}
}

// Indices returns the feature selection in use.
func (e *Engine) Indices() []int { return append([]int(nil), e.indices...) }

// Append adds a normalized vector and rescores the whole buffer. On an
// inference error the vector stays buffered and the state is unchanged.
// A vector too short for the feature selection is rejected unbuffered.
func (e *Engine) Append(v features.Vector) (State, error) {
	for _, idx := range e.indices {
		if idx < 0 || idx >= len(v) {
			return e.state, fmt.Errorf("fatigue: feature index %d out of range for vector of %d", idx, len(v))
		}
	}
	e.buffer = append(e.buffer, append(features.Vector(nil), v...))
	return e.infer()
}

// Buffer returns a copy of the buffered vectors in arrival order.
func (e *Engine) Buffer() []features.Vector {
	out := make([]features.Vector, len(e.buffer))
	for i, v := range e.buffer {
		out[i] = append(features.Vector(nil), v...)
	}
	return out
}

func (e *Engine) infer() (State, error) {
	if len(e.buffer) == 0 {
		return e.state, nil
	}
	snapshot := make([][]float64, len(e.buffer))
	for i, v := range e.buffer {
		row := make([]float64, len(e.indices))
		for j, idx := range e.indices {
			row[j] = v[idx]
		}
		snapshot[i] = row
	}

	out, err := e.model.Predict(snapshot)
	if err != nil {
		return e.state, fmt.Errorf("fatigue: predict over %d windows: %w", len(snapshot), err)
	}
	if len(out) == 0 {
		return e.state, fmt.Errorf("fatigue: model returned no output for %d windows", len(snapshot))
	}
	score := out[len(out)-1]
	e.scores = append(e.scores, score)
	e.state = State{
		Score:     score,
		Label:     LabelFor(score),
		Valid:     true,
		Windows:   len(e.buffer),
		Peaks:     e.state.Peaks,
		UpdatedAt: e.now(),
	}
	return e.state, nil
}

// SetPeaks records the current repetition count on the state.
func (e *Engine) SetPeaks(n int) { e.state.Peaks = n }

// State returns the latest state.
func (e *Engine) State() State { return e.state }

// Windows is the number of buffered vectors.
func (e *Engine) Windows() int { return len(e.buffer) }

// Scores returns every score produced so far, in order.
func (e *Engine) Scores() []float64 { return append([]float64(nil), e.scores...) }
