// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package segment detects repetition boundaries online from the
// arm-minus-wrist pitch difference.
package segment

// DefaultPeakThreshold is the pitch difference (degrees) a local maximum must
// exceed to count as the top of a repetition.
const DefaultPeakThreshold = 60.0

// Interval is an inclusive range of sample indices spanning three
// consecutive peaks, i.e. two raise-and-lower cycles.
type Interval struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len is the number of sample indices covered by the interval.
func (iv Interval) Len() int {
	return iv.End - iv.Start + 1
}

// Peaks is the ordered list of detected peak indices. Only the most recent
// entry may change after it is stored.
type Peaks struct {
	idx []int
}

// Append stores a new peak.
func (p *Peaks) Append(i int) {
	p.idx = append(p.idx, i)
}

// ReplaceLast overwrites the most recent peak. It is a no-op on an empty list.
func (p *Peaks) ReplaceLast(i int) {
	if len(p.idx) == 0 {
		return
	}
	p.idx[len(p.idx)-1] = i
}

// Last returns the most recent peak.
func (p *Peaks) Last() (int, bool) {
	if len(p.idx) == 0 {
		return 0, false
	}
	return p.idx[len(p.idx)-1], true
}

// FromEnd returns the k-th peak counting back from the newest (k=0 is the newest).
func (p *Peaks) FromEnd(k int) int {
	return p.idx[len(p.idx)-1-k]
}

// Len is the number of stored peaks.
func (p *Peaks) Len() int {
	return len(p.idx)
}

// Indices returns a copy of the stored peaks.
func (p *Peaks) Indices() []int {
	out := make([]int, len(p.idx))
	copy(out, p.idx)
	return out
}

// Segmenter is a single-pass peak detector over the pitch difference. It
// emits an Interval each time a new (not merged) peak brings the count to
// three or more.
//
// Segmenter is not safe for concurrent use.
type Segmenter struct {
	threshold float64
	series    []float64
	peaks     Peaks
	intervals []Interval
}

// New returns a segmenter with the given peak threshold.
func New(threshold float64) *Segmenter {
	return &Segmenter{threshold: threshold}
}

// Push appends one pitch difference sample. Detection lags by one sample: the
// candidate is always the second-newest value. When a freshly appended peak
// completes an interval, the interval is returned with ok=true.
func (s *Segmenter) Push(v float64) (iv Interval, ok bool) {
	s.series = append(s.series, v)
	n := len(s.series)
	if n <= 2 {
		return Interval{}, false
	}

	c := n - 2
	if !(s.series[c] > s.series[c-1] && s.series[c] > s.series[c+1]) {
		return Interval{}, false
	}
	if s.series[c] <= s.threshold {
		return Interval{}, false
	}

	// A dip between two candidates that never falls back under the threshold
	// is one physical peak; move it to the midpoint.
	if last, has := s.peaks.Last(); has {
		mid := (last + c) / 2
		if s.series[mid] > s.threshold {
			s.peaks.ReplaceLast(mid)
			return Interval{}, false
		}
	}

	s.peaks.Append(c)
	if s.peaks.Len() < 3 {
		return Interval{}, false
	}
	iv = Interval{Start: s.peaks.FromEnd(2), End: s.peaks.FromEnd(0)}
	s.intervals = append(s.intervals, iv)
	return iv, true
}

// Threshold returns the configured peak threshold.
func (s *Segmenter) Threshold() float64 { return s.threshold }

// Peaks returns a copy of the detected peak indices.
func (s *Segmenter) Peaks() []int { return s.peaks.Indices() }

// PeakCount is the number of detected peaks.
func (s *Segmenter) PeakCount() int { return s.peaks.Len() }

// Intervals returns a copy of the emitted interval log.
func (s *Segmenter) Intervals() []Interval {
	out := make([]Interval, len(s.intervals))
	copy(out, s.intervals)
	return out
}

// Series returns the pitch difference samples seen so far. The returned
// slice must not be modified.
func (s *Segmenter) Series() []float64 { return s.series }
