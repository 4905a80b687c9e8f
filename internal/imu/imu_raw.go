// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

// IMURaw represents a single raw MPU-9250 accel+gyro sample in sensor counts.
type IMURaw struct {
	Source string `json:"source"` // "wrist" or "arm"

	Ax int16 `json:"ax"` // accel
	Ay int16 `json:"ay"`
	Az int16 `json:"az"`

	Gx int16 `json:"gx"` // gyro
	Gy int16 `json:"gy"`
	Gz int16 `json:"gz"`
}

// Sensitivities of the MPU-9250 per full-scale range setting (0-3).
var (
	accelLSBPerG   = [4]float64{16384, 8192, 4096, 2048}
	gyroLSBPerDegS = [4]float64{131, 65.5, 32.8, 16.4}
)

// ToMotion converts raw counts to physical units using the configured
// accelerometer and gyroscope range indices. Out-of-range indices fall back to
// the power-on default (0).
func (r IMURaw) ToMotion(accelRange, gyroRange byte) Motion {
	if int(accelRange) >= len(accelLSBPerG) {
		accelRange = 0
	}
	if int(gyroRange) >= len(gyroLSBPerDegS) {
		gyroRange = 0
	}
	a := accelLSBPerG[accelRange]
	g := gyroLSBPerDegS[gyroRange]
	return Motion{
		GyroX:  float64(r.Gx) / g,
		GyroY:  float64(r.Gy) / g,
		GyroZ:  float64(r.Gz) / g,
		AccelX: float64(r.Ax) / a,
		AccelY: float64(r.Ay) / a,
		AccelZ: float64(r.Az) / a,
	}
}

// IMURawSource is anything that can provide raw samples.
type IMURawSource interface {
	ReadRaw() (IMURaw, error)
}
