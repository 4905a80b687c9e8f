// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package features

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// maxSegment caps the Welch segment length.
const maxSegment = 256

// hannPeriodic returns the periodic (DFT-even) Hann window of length n.
func hannPeriodic(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// WelchPSD estimates the one-sided power spectral density of x with Welch's
// method at unit sampling frequency: Hann window, segment length
// min(256, len(x)), 50% overlap, per-segment mean removal and density
// scaling. Segment periodograms are averaged.
func WelchPSD(x []float64) []float64 {
	n := len(x)
	if n == 0 {
		return nil
	}
	nperseg := n
	if nperseg > maxSegment {
		nperseg = maxSegment
	}
	if nperseg == 1 {
		// a detrended single sample carries no power
		return []float64{0}
	}
	noverlap := nperseg / 2
	step := nperseg - noverlap
	segments := (n - noverlap) / step

	win := hannPeriodic(nperseg)
	var sumSq float64
	for _, w := range win {
		sumSq += w * w
	}
	scale := 1.0 / sumSq

	fft := fourier.NewFFT(nperseg)
	bins := nperseg/2 + 1
	psd := make([]float64, bins)
	buf := make([]float64, nperseg)
	var coeffs []complex128

	for s := 0; s < segments; s++ {
		seg := x[s*step : s*step+nperseg]
		var mean float64
		for _, v := range seg {
			mean += v
		}
		mean /= float64(nperseg)
		for i, v := range seg {
			buf[i] = win[i] * (v - mean)
		}
		coeffs = fft.Coefficients(coeffs, buf)
		for k := 0; k < bins; k++ {
			re, im := real(coeffs[k]), imag(coeffs[k])
			psd[k] += (re*re + im*im) * scale
		}
	}

	last := bins
	if nperseg%2 == 0 {
		last = bins - 1
	}
	for k := range psd {
		psd[k] /= float64(segments)
		if k > 0 && k < last {
			psd[k] *= 2
		}
	}
	return psd
}

// magnitudeSpectrum returns |DFT(x)| over all len(x) bins. The upper half is
// mirrored from the lower half so conjugate bins compare exactly equal.
func magnitudeSpectrum(x []float64) []float64 {
	n := len(x)
	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, x)
	mag := make([]float64, n)
	for k, c := range coeffs {
		mag[k] = cmplx.Abs(c)
		if k > 0 {
			mag[n-k] = mag[k]
		}
	}
	return mag
}

// localMaxima returns the indices of local maxima of x, excluding the end
// points. A flat top counts once, at its middle sample (rounded down), and
// only if both sides fall away.
func localMaxima(x []float64) []int {
	var peaks []int
	i := 1
	last := len(x) - 1
	for i < last {
		if x[i-1] < x[i] {
			ahead := i + 1
			for ahead < last && x[ahead] == x[i] {
				ahead++
			}
			if x[ahead] < x[i] {
				peaks = append(peaks, (i+ahead-1)/2)
				i = ahead
			}
		}
		i++
	}
	return peaks
}

// binFrequency is the signed frequency of DFT bin k for a length-n transform,
// in cycles per sample.
func binFrequency(k, n int) float64 {
	if k <= (n-1)/2 {
		return float64(k) / float64(n)
	}
	return float64(k-n) / float64(n)
}

// DominantFrequency returns the frequency (cycles per sample) of the tallest
// local peak of the magnitude spectrum of x. Ties go to the lowest bin. It
// returns 0 for a constant input or when the spectrum has no local peak.
func DominantFrequency(x []float64) float64 {
	if len(x) < 3 || floats.Max(x) == floats.Min(x) {
		return 0
	}
	mag := magnitudeSpectrum(x)
	peaks := localMaxima(mag)
	if len(peaks) == 0 {
		return 0
	}
	best := peaks[0]
	for _, p := range peaks[1:] {
		if mag[p] > mag[best] {
			best = p
		}
	}
	return binFrequency(best, len(x))
}
