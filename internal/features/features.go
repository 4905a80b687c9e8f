// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package features turns a window of IMU rows into a fixed-length
// statistical description: eleven values per column.
package features

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// PerColumn is the number of features computed for each column.
const PerColumn = 11

// Names lists the per-column features in output order.
var Names = [PerColumn]string{
	"mean",
	"std",
	"skewness",
	"kurtosis",
	"range",
	"max",
	"min",
	"rms",
	"autocorrelation",
	"psd_total",
	"dominant_frequency",
}

// Vector is a flat feature vector, column-major by feature: all features of
// column 0, then column 1, and so on.
type Vector []float64

// Extractor computes feature vectors for a fixed column layout.
type Extractor struct {
	columns int
	window  int
}

// NewExtractor returns an extractor for rows of the given width. Each column
// is smoothed with a trailing mean of window samples before features are
// taken.
func NewExtractor(columns, window int) *Extractor {
	if window < 1 {
		window = 1
	}
	return &Extractor{columns: columns, window: window}
}

// Len is the length of every vector this extractor returns.
func (e *Extractor) Len() int { return e.columns * PerColumn }

// Window is the smoothing window in samples.
func (e *Extractor) Window() int { return e.window }

// Extract computes the feature vector for rows. Rows shorter than the
// column count read missing cells as 0. Any feature whose definition
// degenerates (empty window, constant column) is 0, so the result never
// carries NaN or Inf.
func (e *Extractor) Extract(rows [][]float64) Vector {
	out := make(Vector, 0, e.Len())
	col := make([]float64, len(rows))
	for c := 0; c < e.columns; c++ {
		for i, r := range rows {
			if c < len(r) {
				col[i] = r[c]
			} else {
				col[i] = 0
			}
		}
		out = append(out, Column(Smooth(col, e.window))...)
	}
	return out
}

// Column computes the eleven features of a single already-smoothed column.
func Column(x []float64) []float64 {
	f := make([]float64, PerColumn)
	if len(x) == 0 {
		return f
	}
	mean, variance := stat.PopMeanVariance(x, nil)
	max, min := floats.Max(x), floats.Min(x)

	f[0] = mean
	f[1] = math.Sqrt(variance)
	f[2], f[3] = shape(x, mean)
	f[4] = max - min
	f[5] = max
	f[6] = min
	f[7] = math.Sqrt(floats.Dot(x, x) / float64(len(x)))
	f[8] = lagOneAutocorrelation(x)
	f[9] = floats.Sum(WelchPSD(x))
	f[10] = DominantFrequency(x)

	for i, v := range f {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			f[i] = 0
		}
	}
	return f
}

// shape returns the biased skewness and biased excess kurtosis of x. Both
// are 0 when the spread is below float resolution relative to the mean.
func shape(x []float64, mean float64) (skew, kurt float64) {
	m2 := stat.Moment(2, x, nil)
	eps := 1e-15 * mean
	if m2 <= eps*eps {
		return 0, 0
	}
	m3 := stat.Moment(3, x, nil)
	m4 := stat.Moment(4, x, nil)
	return m3 / math.Pow(m2, 1.5), m4/(m2*m2) - 3
}

// lagOneAutocorrelation is the Pearson correlation of x[:-1] with x[1:].
func lagOneAutocorrelation(x []float64) float64 {
	if len(x) < 3 {
		return 0
	}
	r := stat.Correlation(x[:len(x)-1], x[1:], nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}
