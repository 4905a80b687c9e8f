// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package samples

import (
	"fmt"
	"strings"
)

// Limb identifies which of the two sensors produced a sample.
type Limb int

const (
	Wrist Limb = iota
	Arm
)

func (l Limb) String() string {
	switch l {
	case Wrist:
		return "wrist"
	case Arm:
		return "arm"
	default:
		return fmt.Sprintf("limb(%d)", int(l))
	}
}

// ParseLimb accepts "wrist" or "arm" (case-insensitive).
func ParseLimb(s string) (Limb, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "wrist":
		return Wrist, nil
	case "arm":
		return Arm, nil
	}
	return 0, fmt.Errorf("unknown limb %q (want wrist or arm)", s)
}

// Angle selects one Euler angle of an orientation sample.
type Angle int

const (
	Roll Angle = iota
	Pitch
	Yaw
)

// Channel indices into a Record, in the column order of the session table.
const (
	WristGyroX = iota
	WristGyroY
	WristGyroZ
	WristAccelX
	WristAccelY
	WristAccelZ
	WristRoll
	WristPitch
	WristYaw
	ArmGyroX
	ArmGyroY
	ArmGyroZ
	ArmAccelX
	ArmAccelY
	ArmAccelZ
	ArmRoll
	ArmPitch
	ArmYaw
	WristGyroMagnitude
	WristAccelMagnitude
	ArmGyroMagnitude
	ArmAccelMagnitude

	NumChannels
)

// NumColumns is the width of an analysis window: every record channel plus
// the roll, pitch and yaw differences.
const NumColumns = NumChannels + 3

// ChannelNames are the column headers used for the session table.
var ChannelNames = [NumChannels]string{
	"Wrist Gyroscope X (deg/s)",
	"Wrist Gyroscope Y (deg/s)",
	"Wrist Gyroscope Z (deg/s)",
	"Wrist Accelerometer X (g)",
	"Wrist Accelerometer Y (g)",
	"Wrist Accelerometer Z (g)",
	"Wrist Roll (deg)",
	"Wrist Pitch (deg)",
	"Wrist Yaw (deg)",
	"Arm Gyroscope X (deg/s)",
	"Arm Gyroscope Y (deg/s)",
	"Arm Gyroscope Z (deg/s)",
	"Arm Accelerometer X (g)",
	"Arm Accelerometer Y (g)",
	"Arm Accelerometer Z (g)",
	"Arm Roll (deg)",
	"Arm Pitch (deg)",
	"Arm Yaw (deg)",
	"Wrist Gyroscope Magnitude (deg/s)",
	"Wrist Accelerometer Magnitude (g)",
	"Arm Gyroscope Magnitude (deg/s)",
	"Arm Accelerometer Magnitude (g)",
}

// DifferenceNames are the headers of the three arm-minus-wrist columns.
var DifferenceNames = [3]string{
	"Difference Roll (deg)",
	"Difference Pitch (deg)",
	"Difference Yaw (deg)",
}

func angleChannel(l Limb, a Angle) int {
	if l == Wrist {
		return WristRoll + int(a)
	}
	return ArmRoll + int(a)
}

func motionBase(l Limb) int {
	if l == Wrist {
		return WristGyroX
	}
	return ArmGyroX
}

func magnitudeBase(l Limb) int {
	if l == Wrist {
		return WristGyroMagnitude
	}
	return ArmGyroMagnitude
}
