// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/fatigue_computer/internal/features"
)

func TestBaselineIsWriteOnce(t *testing.T) {
	n := Identity(4)
	require.False(t, n.Calibrated())
	require.Nil(t, n.Baseline())

	vectors := []features.Vector{
		{2, 0, -4, 8},
		{1, 1, 1, 1},
		{0, 0, 0, 0},
		{5, 6, 7, 8},
		{-1, 3, 2, 0.5},
	}
	for _, v := range vectors {
		_, err := n.Normalize(v)
		require.NoError(t, err)
	}
	assert.Equal(t, features.Vector{2, BaselineEpsilon, -4, 8}, n.Baseline())
}

func TestFirstVectorNormalizesToOnes(t *testing.T) {
	n := Identity(3)
	out, err := n.Normalize(features.Vector{3, 0, -2})
	require.NoError(t, err)
	assert.Equal(t, features.Vector{1, 0, 1}, out)

	out, err = n.Normalize(features.Vector{6, 1e-8, -1})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2, 1, 0.5}, out, 1e-12)
}

func TestStandardization(t *testing.T) {
	n, err := New([]float64{1, 0.5}, []float64{2, 0})
	require.NoError(t, err)

	out, err := n.Normalize(features.Vector{4, 4})
	require.NoError(t, err)
	// ratio 1 everywhere; (1-1)/2 and (1-0.5)/1
	assert.InDeltaSlice(t, []float64{0, 0.5}, out, 1e-12)

	out, err = n.Normalize(features.Vector{12, 2})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 0}, out, 1e-12)
}

func TestInputNotModified(t *testing.T) {
	n := Identity(2)
	v := features.Vector{0, 5}
	_, err := n.Normalize(v)
	require.NoError(t, err)
	assert.Equal(t, features.Vector{0, 5}, v)

	b := n.Baseline()
	b[0] = 42
	assert.Equal(t, BaselineEpsilon, n.Baseline()[0])
}

func TestLengthMismatch(t *testing.T) {
	_, err := New([]float64{1, 2}, []float64{1})
	require.Error(t, err)

	n := Identity(3)
	_, err = n.Normalize(features.Vector{1, 2})
	require.Error(t, err)
	assert.False(t, n.Calibrated(), "a rejected vector must not become the baseline")
}
