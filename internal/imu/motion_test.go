// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMagnitude(t *testing.T) {
	assert.InDelta(t, 5.0, Magnitude(3, 4, 0), 1e-12)
	m := Motion{GyroX: 1, GyroY: 2, GyroZ: 2, AccelX: 0, AccelY: 0, AccelZ: -1}
	assert.InDelta(t, 3.0, m.GyroMagnitude(), 1e-12)
	assert.InDelta(t, 1.0, m.AccelMagnitude(), 1e-12)
}

func TestToMotion(t *testing.T) {
	raw := IMURaw{Ax: 16384, Ay: -8192, Az: 0, Gx: 131, Gy: -262, Gz: 0}

	m := raw.ToMotion(0, 0)
	assert.InDelta(t, 1.0, m.AccelX, 1e-12)
	assert.InDelta(t, -0.5, m.AccelY, 1e-12)
	assert.InDelta(t, 1.0, m.GyroX, 1e-12)
	assert.InDelta(t, -2.0, m.GyroY, 1e-12)

	t.Run("16g range", func(t *testing.T) {
		m := raw.ToMotion(3, 0)
		assert.InDelta(t, 8.0, m.AccelX, 1e-12)
	})

	t.Run("unknown range falls back to default", func(t *testing.T) {
		m := raw.ToMotion(9, 9)
		assert.InDelta(t, 1.0, m.AccelX, 1e-12)
		assert.InDelta(t, 1.0, m.GyroX, 1e-12)
	})
}
