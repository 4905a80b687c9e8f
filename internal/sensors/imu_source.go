// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/fatigue_computer/internal/imu"
	"github.com/relabs-tech/fatigue_computer/internal/logger"
	"github.com/relabs-tech/fatigue_computer/internal/samples"
)

// Full-scale labels per range index.
var (
	accelRangeG   = [4]int{2, 4, 8, 16}
	gyroRangeDegS = [4]int{250, 500, 1000, 2000}
)

// Settings selects one MPU9250 on the SPI bus and its full-scale ranges.
type Settings struct {
	SPIDevice  string
	CSPin      string
	AccelRange byte
	GyroRange  byte
}

func (s Settings) validate() error {
	if int(s.AccelRange) >= len(accelRangeG) {
		return fmt.Errorf("accel range index %d out of range 0-3", s.AccelRange)
	}
	if int(s.GyroRange) >= len(gyroRangeDegS) {
		return fmt.Errorf("gyro range index %d out of range 0-3", s.GyroRange)
	}
	if s.SPIDevice == "" || s.CSPin == "" {
		return fmt.Errorf("SPI device and CS pin are required")
	}
	return nil
}

type imuSource struct {
	limb samples.Limb
	imu  *mpu9250.MPU9250
}

// NewIMUSource initializes one MPU9250 over SPI, applies the ranges and
// runs the built-in gyro/accel bias calibration. The sensor must be still
// while this runs.
func NewIMUSource(limb samples.Limb, s Settings, log *zap.Logger) (imu.IMURawSource, error) {
	log = logger.Component(log, "imu").With(zap.String("limb", limb.String()))
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("%s IMU: %w", limb, err)
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("%s IMU: periph host init: %w", limb, err)
	}

	cs := gpioreg.ByName(s.CSPin)
	if cs == nil {
		return nil, fmt.Errorf("%s IMU: CS pin %q not found", limb, s.CSPin)
	}

	tr, err := mpu9250.NewSpiTransport(s.SPIDevice, cs)
	if err != nil {
		return nil, fmt.Errorf("%s IMU: SPI transport (%s): %w", limb, s.SPIDevice, err)
	}

	dev, err := mpu9250.New(tr)
	if err != nil {
		return nil, fmt.Errorf("%s IMU: device creation: %w", limb, err)
	}

	if err := dev.Init(); err != nil {
		return nil, fmt.Errorf("%s IMU: initialization: %w", limb, err)
	}

	if err := dev.SetAccelRange(s.AccelRange); err != nil {
		return nil, fmt.Errorf("%s IMU: set accel range: %w", limb, err)
	}
	if err := dev.SetGyroRange(s.GyroRange); err != nil {
		return nil, fmt.Errorf("%s IMU: set gyro range: %w", limb, err)
	}
	log.Info("ranges set",
		zap.Int("accel_g", accelRangeG[s.AccelRange]),
		zap.Int("gyro_dps", gyroRangeDegS[s.GyroRange]))

	if err := dev.Calibrate(); err != nil {
		log.Warn("calibration failed", zap.Error(err))
	} else {
		log.Info("calibration complete")
	}

	return &imuSource{limb: limb, imu: dev}, nil
}

// ReadRaw reads accelerometer and gyroscope counts.
func (s *imuSource) ReadRaw() (imu.IMURaw, error) {
	ax, err := s.imu.GetAccelerationX()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("%s IMU accel X: %w", s.limb, err)
	}
	ay, err := s.imu.GetAccelerationY()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("%s IMU accel Y: %w", s.limb, err)
	}
	az, err := s.imu.GetAccelerationZ()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("%s IMU accel Z: %w", s.limb, err)
	}

	gx, err := s.imu.GetRotationX()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("%s IMU gyro X: %w", s.limb, err)
	}
	gy, err := s.imu.GetRotationY()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("%s IMU gyro Y: %w", s.limb, err)
	}
	gz, err := s.imu.GetRotationZ()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("%s IMU gyro Z: %w", s.limb, err)
	}

	return imu.IMURaw{
		Source: s.limb.String(),
		Ax:     ax,
		Ay:     ay,
		Az:     az,
		Gx:     gx,
		Gy:     gy,
		Gz:     gz,
	}, nil
}
