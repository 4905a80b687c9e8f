// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import "math"

// Motion is one inertial report from a single sensor: angular rate in deg/s
// and acceleration in g.
type Motion struct {
	GyroX  float64 `json:"gyroscope_x"`
	GyroY  float64 `json:"gyroscope_y"`
	GyroZ  float64 `json:"gyroscope_z"`
	AccelX float64 `json:"accelerometer_x"`
	AccelY float64 `json:"accelerometer_y"`
	AccelZ float64 `json:"accelerometer_z"`
}

// GyroMagnitude is the Euclidean norm of the angular rate vector.
func (m Motion) GyroMagnitude() float64 {
	return Magnitude(m.GyroX, m.GyroY, m.GyroZ)
}

// AccelMagnitude is the Euclidean norm of the acceleration vector.
func (m Motion) AccelMagnitude() float64 {
	return Magnitude(m.AccelX, m.AccelY, m.AccelZ)
}

// Magnitude computes the norm of a 3-axis vector.
func Magnitude(x, y, z float64) float64 {
	return math.Sqrt(x*x + y*y + z*z)
}
