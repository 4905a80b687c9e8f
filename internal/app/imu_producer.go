// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/fatigue_computer/internal/config"
	"github.com/relabs-tech/fatigue_computer/internal/imu"
	"github.com/relabs-tech/fatigue_computer/internal/logger"
	"github.com/relabs-tech/fatigue_computer/internal/orientation"
	"github.com/relabs-tech/fatigue_computer/internal/samples"
	"github.com/relabs-tech/fatigue_computer/internal/sensors"
	"github.com/relabs-tech/fatigue_computer/internal/transport"
)

// filterAlpha is the gyro weight of the on-board complementary filter.
const filterAlpha = 0.98

// limbSource produces one orientation and one inertial sample per tick.
type limbSource interface {
	Sample(dt float64) (orientation.Pose, imu.Motion, error)
}

// sensorLimb reads an MPU9250 and fuses its orientation locally.
type sensorLimb struct {
	src        imu.IMURawSource
	filter     *orientation.Complementary
	accelRange byte
	gyroRange  byte
}

func (l *sensorLimb) Sample(dt float64) (orientation.Pose, imu.Motion, error) {
	raw, err := l.src.ReadRaw()
	if err != nil {
		return orientation.Pose{}, imu.Motion{}, err
	}
	m := raw.ToMotion(l.accelRange, l.gyroRange)
	pose := l.filter.Update(m.AccelX, m.AccelY, m.AccelZ, m.GyroX, m.GyroY, m.GyroZ, dt)
	return pose, m, nil
}

// curlLimb replays a synthetic curl set; rates are finite differences of
// the pose and acceleration is gravity seen at that pose.
type curlLimb struct {
	src    *orientation.CurlSource
	prev   orientation.Pose
	primed bool
}

func (l *curlLimb) Sample(dt float64) (orientation.Pose, imu.Motion, error) {
	p, err := l.src.Next()
	if err != nil {
		return orientation.Pose{}, imu.Motion{}, err
	}
	var m imu.Motion
	if l.primed && dt > 0 {
		m.GyroX = (p.Roll - l.prev.Roll) / dt
		m.GyroY = (p.Pitch - l.prev.Pitch) / dt
		m.GyroZ = (p.Yaw - l.prev.Yaw) / dt
	}
	roll := p.Roll * math.Pi / 180
	pitch := p.Pitch * math.Pi / 180
	m.AccelX = -math.Sin(pitch)
	m.AccelY = math.Cos(pitch) * math.Sin(roll)
	m.AccelZ = math.Cos(pitch) * math.Cos(roll)

	l.prev, l.primed = p, true
	return p, m, nil
}

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

type producerLimb struct {
	limb          samples.Limb
	src           limbSource
	eulerTopic    string
	inertialTopic string
}

type producer struct {
	pub   publisher
	limbs []producerLimb
	log   *zap.Logger
}

func newProducer(pub publisher, cfg *config.Config, wrist, arm limbSource, log *zap.Logger) *producer {
	return &producer{
		pub: pub,
		limbs: []producerLimb{
			{samples.Wrist, wrist, cfg.TopicEulerWrist, cfg.TopicInertialWrist},
			{samples.Arm, arm, cfg.TopicEulerArm, cfg.TopicInertialArm},
		},
		log: log,
	}
}

func (p *producer) publishJSON(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", topic, err)
	}
	if token := p.pub.Publish(topic, 0, false, payload); token.Wait() && token.Error() != nil {
		return fmt.Errorf("publish %s: %w", topic, token.Error())
	}
	return nil
}

// step samples both limbs and publishes inertial data before orientation,
// so the session's row for this index is complete when the pitch arrives.
func (p *producer) step(dt float64) error {
	var errs []error
	for _, l := range p.limbs {
		pose, m, err := l.src.Sample(dt)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", l.limb, err))
			continue
		}
		if err := p.publishJSON(l.inertialTopic, m); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := p.publishJSON(l.eulerTopic, pose); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RunIMUProducer samples the two sensors (or a synthetic curl set when
// mock is set) and publishes them on the sample topics until ctx is done.
func RunIMUProducer(ctx context.Context, cfg *config.Config, mock bool, log *zap.Logger) error {
	log = logger.Component(log, "imu_producer")

	var wrist, arm limbSource
	if mock {
		log.Info("using synthetic curl source")
		wrist = &curlLimb{src: orientation.NewMockSource(true)}
		arm = &curlLimb{src: orientation.NewMockSource(false)}
	} else {
		ws, as, err := sensors.OpenPair(cfg, log)
		if err != nil {
			return err
		}
		wrist = &sensorLimb{src: ws, filter: orientation.NewComplementary(filterAlpha),
			accelRange: cfg.IMUAccelRange, gyroRange: cfg.IMUGyroRange}
		arm = &sensorLimb{src: as, filter: orientation.NewComplementary(filterAlpha),
			accelRange: cfg.IMUAccelRange, gyroRange: cfg.IMUGyroRange}
	}

	client, err := transport.Connect(cfg.MQTTBroker, cfg.MQTTClientIDProducer, log)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	p := newProducer(client, cfg, wrist, arm, log)

	interval := time.Duration(cfg.IMUSampleInterval) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	log.Info("publishing", zap.Duration("interval", interval))

	var last time.Time
	var ticks, failures int
	for {
		select {
		case <-ctx.Done():
			log.Info("stopped", zap.Int("ticks", ticks), zap.Int("failures", failures))
			return nil
		case t := <-ticker.C:
			dt := interval.Seconds()
			if !last.IsZero() {
				dt = t.Sub(last).Seconds()
			}
			last = t
			ticks++
			if err := p.step(dt); err != nil {
				failures++
				log.Warn("tick failed", zap.Error(err), zap.Int("failures", failures))
			}
		}
	}
}
