// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package samples

import (
	"time"

	"github.com/relabs-tech/fatigue_computer/internal/imu"
	"github.com/relabs-tech/fatigue_computer/internal/orientation"
)

// Record holds the channel values written for one sample index. Fields stay
// unset until their source callback fires for that index.
type Record struct {
	values [NumChannels]float64
	set    uint32
}

const allSet = uint32(1)<<NumChannels - 1

// Get returns the value of channel ch and whether it has been written.
func (r *Record) Get(ch int) (float64, bool) {
	if r.set&(1<<ch) == 0 {
		return 0, false
	}
	return r.values[ch], true
}

// Complete reports whether both limbs have reported every channel.
func (r *Record) Complete() bool {
	return r.set == allSet
}

// Values returns all channels; unset channels read as 0.
func (r *Record) Values() [NumChannels]float64 {
	return r.values
}

func (r *Record) put(ch int, v float64) {
	r.values[ch] = v
	r.set |= 1 << ch
}

// Store is the append-only sample table for one session. Each channel group
// (limb × orientation/motion) advances its own index counter; records are
// paired across limbs purely by index.
//
// Store is not safe for concurrent use.
type Store struct {
	records []Record

	orientNext [2]int
	motionNext [2]int

	diffs      [3][]float64
	timestamps []time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

func (s *Store) record(i int) *Record {
	for len(s.records) <= i {
		s.records = append(s.records, Record{})
	}
	return &s.records[i]
}

// RecordOrientation writes roll/pitch/yaw at the limb's next orientation
// index. For every angle whose counterpart is already present at that index
// the arm-minus-wrist difference is appended to its series. When the pitch
// difference was appended it is returned with ok=true so the caller can feed
// the segmenter.
//
// at is recorded as the row timestamp for wrist samples.
func (s *Store) RecordOrientation(limb Limb, p orientation.Pose, at time.Time) (idx int, pitch float64, ok bool) {
	idx = s.orientNext[limb]
	s.orientNext[limb]++

	r := s.record(idx)
	angles := [3]float64{p.Roll, p.Pitch, p.Yaw}
	for a, v := range angles {
		r.put(angleChannel(limb, Angle(a)), v)
	}

	other := Arm
	if limb == Arm {
		other = Wrist
	}
	for a := Roll; a <= Yaw; a++ {
		if _, has := r.Get(angleChannel(other, a)); !has {
			continue
		}
		d := r.values[angleChannel(Arm, a)] - r.values[angleChannel(Wrist, a)]
		s.diffs[a] = append(s.diffs[a], d)
		if a == Pitch {
			pitch, ok = d, true
		}
	}

	if limb == Wrist {
		s.timestamps = append(s.timestamps, at)
	}
	return idx, pitch, ok
}

// RecordMotion writes the six inertial channels and the two derived
// magnitudes at the limb's next motion index.
func (s *Store) RecordMotion(limb Limb, m imu.Motion) int {
	idx := s.motionNext[limb]
	s.motionNext[limb]++

	r := s.record(idx)
	base := motionBase(limb)
	for i, v := range [6]float64{m.GyroX, m.GyroY, m.GyroZ, m.AccelX, m.AccelY, m.AccelZ} {
		r.put(base+i, v)
	}
	mag := magnitudeBase(limb)
	r.put(mag, m.GyroMagnitude())
	r.put(mag+1, m.AccelMagnitude())
	return idx
}

// Len is the number of records created so far (highest written index + 1).
func (s *Store) Len() int {
	return len(s.records)
}

// Record returns the record at index i.
func (s *Store) Record(i int) (Record, bool) {
	if i < 0 || i >= len(s.records) {
		return Record{}, false
	}
	return s.records[i], true
}

// Difference returns the arm-minus-wrist series for one angle. Entry i
// belongs to sample index i. The returned slice must not be modified.
func (s *Store) Difference(a Angle) []float64 {
	return s.diffs[a]
}

// Timestamps returns the wall-clock time of each wrist orientation sample.
func (s *Store) Timestamps() []time.Time {
	return s.timestamps
}

// Rows assembles the analysis matrix for indices start..end inclusive: the
// record channels followed by the three differences. Indices whose record is
// incomplete or whose differences are missing are skipped.
func (s *Store) Rows(start, end int) [][]float64 {
	if start < 0 {
		start = 0
	}
	var rows [][]float64
	for i := start; i <= end && i < len(s.records); i++ {
		r := &s.records[i]
		if !r.Complete() {
			continue
		}
		if i >= len(s.diffs[Roll]) || i >= len(s.diffs[Pitch]) || i >= len(s.diffs[Yaw]) {
			continue
		}
		row := make([]float64, 0, NumColumns)
		row = append(row, r.values[:]...)
		row = append(row, s.diffs[Roll][i], s.diffs[Pitch][i], s.diffs[Yaw][i])
		rows = append(rows, row)
	}
	return rows
}
