// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"go.uber.org/zap"

	"github.com/relabs-tech/fatigue_computer/internal/config"
	"github.com/relabs-tech/fatigue_computer/internal/imu"
	"github.com/relabs-tech/fatigue_computer/internal/samples"
)

// WristSettings and ArmSettings pick each sensor's bus settings from cfg.
func WristSettings(cfg *config.Config) Settings {
	return Settings{
		SPIDevice:  cfg.IMUWristSPIDevice,
		CSPin:      cfg.IMUWristCSPin,
		AccelRange: cfg.IMUAccelRange,
		GyroRange:  cfg.IMUGyroRange,
	}
}

func ArmSettings(cfg *config.Config) Settings {
	return Settings{
		SPIDevice:  cfg.IMUArmSPIDevice,
		CSPin:      cfg.IMUArmCSPin,
		AccelRange: cfg.IMUAccelRange,
		GyroRange:  cfg.IMUGyroRange,
	}
}

// OpenPair initializes the wrist and arm sensors.
func OpenPair(cfg *config.Config, log *zap.Logger) (wrist, arm imu.IMURawSource, err error) {
	wrist, err = NewIMUSource(samples.Wrist, WristSettings(cfg), log)
	if err != nil {
		return nil, nil, err
	}
	arm, err = NewIMUSource(samples.Arm, ArmSettings(cfg), log)
	if err != nil {
		return nil, nil, err
	}
	return wrist, arm, nil
}
