// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import "math"

// Complementary fuses gyro integration with the accelerometer tilt estimate.
// Alpha weights the integrated gyro angle; 1-Alpha pulls towards the
// accelerometer. Yaw has no absolute reference and is gyro-integrated only.
type Complementary struct {
	Alpha float64

	pose   Pose
	primed bool
}

// NewComplementary returns a filter with the given gyro weight.
func NewComplementary(alpha float64) *Complementary {
	return &Complementary{Alpha: alpha}
}

// Update advances the filter by dt seconds. Accelerations are in any
// consistent unit, rates in deg/s.
func (c *Complementary) Update(ax, ay, az, gx, gy, gz, dt float64) Pose {
	tilt := ComputePoseFromAccel(ax, ay, az)
	if !c.primed || dt <= 0 {
		c.pose = tilt
		c.primed = true
		return c.pose
	}
	c.pose.Roll = c.Alpha*(c.pose.Roll+gx*dt) + (1-c.Alpha)*tilt.Roll
	c.pose.Pitch = c.Alpha*(c.pose.Pitch+gy*dt) + (1-c.Alpha)*tilt.Pitch
	c.pose.Yaw = math.Mod(c.pose.Yaw+gz*dt+540, 360) - 180
	return c.pose
}

// Pose returns the current estimate.
func (c *Complementary) Pose() Pose { return c.pose }
