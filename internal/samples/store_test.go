// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package samples

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/fatigue_computer/internal/imu"
	"github.com/relabs-tech/fatigue_computer/internal/orientation"
)

var t0 = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func TestDifferenceDeferredUntilCounterpart(t *testing.T) {
	s := NewStore()

	idx, _, ok := s.RecordOrientation(Wrist, orientation.Pose{Roll: 1, Pitch: 10, Yaw: 100}, t0)
	assert.Equal(t, 0, idx)
	assert.False(t, ok, "no arm sample yet")
	assert.Empty(t, s.Difference(Pitch))

	idx, pitch, ok := s.RecordOrientation(Arm, orientation.Pose{Roll: 4, Pitch: 80, Yaw: 90}, t0)
	assert.Equal(t, 0, idx)
	require.True(t, ok)
	assert.Equal(t, 70.0, pitch)
	assert.Equal(t, []float64{3}, s.Difference(Roll))
	assert.Equal(t, []float64{70}, s.Difference(Pitch))
	assert.Equal(t, []float64{-10}, s.Difference(Yaw))
}

func TestIndependentCounters(t *testing.T) {
	s := NewStore()

	for i := 0; i < 3; i++ {
		s.RecordOrientation(Wrist, orientation.Pose{Pitch: float64(i)}, t0)
	}
	assert.Equal(t, 0, s.RecordMotion(Wrist, imu.Motion{}))
	assert.Equal(t, 1, s.RecordMotion(Wrist, imu.Motion{}))
	assert.Equal(t, 0, s.RecordMotion(Arm, imu.Motion{}))
	assert.Equal(t, 3, s.Len())
	assert.Len(t, s.Timestamps(), 3)

	// arm orientation pairs with wrist index 0 even though wrist is ahead
	idx, pitch, ok := s.RecordOrientation(Arm, orientation.Pose{Pitch: 50}, t0)
	assert.Equal(t, 0, idx)
	assert.True(t, ok)
	assert.Equal(t, 50.0, pitch)
	assert.Len(t, s.Timestamps(), 3, "only wrist orientation samples carry timestamps")
}

func TestRecordMotionMagnitudes(t *testing.T) {
	s := NewStore()
	s.RecordMotion(Arm, imu.Motion{GyroX: 3, GyroY: 4, AccelZ: 2})

	r, ok := s.Record(0)
	require.True(t, ok)
	v, set := r.Get(ArmGyroMagnitude)
	assert.True(t, set)
	assert.Equal(t, 5.0, v)
	v, set = r.Get(ArmAccelMagnitude)
	assert.True(t, set)
	assert.Equal(t, 2.0, v)
	_, set = r.Get(WristGyroMagnitude)
	assert.False(t, set)
	assert.False(t, r.Complete())
}

func fill(s *Store, n int) {
	for i := 0; i < n; i++ {
		f := float64(i)
		s.RecordMotion(Wrist, imu.Motion{GyroX: f})
		s.RecordMotion(Arm, imu.Motion{GyroX: -f})
		s.RecordOrientation(Wrist, orientation.Pose{Pitch: f}, t0.Add(time.Duration(i)*20*time.Millisecond))
		s.RecordOrientation(Arm, orientation.Pose{Pitch: 2 * f}, t0)
	}
}

func TestRows(t *testing.T) {
	s := NewStore()
	fill(s, 5)

	rows := s.Rows(1, 3)
	require.Len(t, rows, 3)
	for i, row := range rows {
		require.Len(t, row, NumColumns)
		f := float64(i + 1)
		assert.Equal(t, f, row[WristGyroX])
		assert.Equal(t, -f, row[ArmGyroX])
		assert.Equal(t, f, row[NumChannels+1], "pitch difference")
	}

	t.Run("incomplete records are skipped", func(t *testing.T) {
		s.RecordOrientation(Wrist, orientation.Pose{Pitch: 1}, t0)
		s.RecordOrientation(Arm, orientation.Pose{Pitch: 1}, t0)
		assert.Len(t, s.Rows(0, 10), 5)
	})

	t.Run("clamped range", func(t *testing.T) {
		assert.Len(t, s.Rows(-3, 0), 1)
		assert.Empty(t, s.Rows(4, 2))
	})
}

func TestParseLimb(t *testing.T) {
	l, err := ParseLimb(" Wrist ")
	require.NoError(t, err)
	assert.Equal(t, Wrist, l)
	l, err = ParseLimb("arm")
	require.NoError(t, err)
	assert.Equal(t, Arm, l)
	_, err = ParseLimb("leg")
	assert.Error(t, err)
	assert.Equal(t, "arm", Arm.String())
}
