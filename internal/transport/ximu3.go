// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	serial "github.com/jacobsa/go-serial/serial"
	"go.uber.org/zap"

	"github.com/relabs-tech/fatigue_computer/internal/imu"
	"github.com/relabs-tech/fatigue_computer/internal/logger"
	"github.com/relabs-tech/fatigue_computer/internal/orientation"
	"github.com/relabs-tech/fatigue_computer/internal/samples"
)

// ErrUnhandledMessage marks a well-formed x-IMU3 line that carries neither
// inertial nor Euler data (temperature, battery, quaternion and so on).
var ErrUnhandledMessage = errors.New("unhandled x-IMU3 message")

// MessageKind identifies a decoded x-IMU3 ASCII message.
type MessageKind int

const (
	KindInertial MessageKind = iota
	KindEuler
)

// Message is one decoded x-IMU3 data line. Timestamp is device time in
// microseconds.
type Message struct {
	Kind      MessageKind
	Timestamp uint64
	Pose      orientation.Pose
	Motion    imu.Motion
}

// ParseLine decodes one ASCII data message:
//
//	I,<timestamp>,<gyr x>,<gyr y>,<gyr z>,<acc x>,<acc y>,<acc z>
//	A,<timestamp>,<roll>,<pitch>,<yaw>
func ParseLine(line string) (Message, error) {
	line = strings.TrimSpace(line)
	fields := strings.Split(line, ",")
	if len(fields) < 2 || len(fields[0]) != 1 {
		return Message{}, fmt.Errorf("malformed x-IMU3 line %q", line)
	}

	var want int
	var kind MessageKind
	switch fields[0] {
	case "I":
		kind, want = KindInertial, 8
	case "A":
		kind, want = KindEuler, 5
	default:
		return Message{}, fmt.Errorf("%w: %q", ErrUnhandledMessage, fields[0])
	}
	if len(fields) != want {
		return Message{}, fmt.Errorf("x-IMU3 %s message has %d fields, want %d", fields[0], len(fields), want)
	}

	ts, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return Message{}, fmt.Errorf("x-IMU3 timestamp %q: %w", fields[1], err)
	}
	vals := make([]float64, want-2)
	for i, f := range fields[2:] {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return Message{}, fmt.Errorf("x-IMU3 %s field %d %q: %w", fields[0], i+2, f, err)
		}
		vals[i] = v
	}

	msg := Message{Kind: kind, Timestamp: ts}
	if kind == KindInertial {
		msg.Motion = imu.Motion{
			GyroX: vals[0], GyroY: vals[1], GyroZ: vals[2],
			AccelX: vals[3], AccelY: vals[4], AccelZ: vals[5],
		}
	} else {
		msg.Pose = orientation.Pose{Roll: vals[0], Pitch: vals[1], Yaw: vals[2]}
	}
	return msg, nil
}

// SerialOptions are the line settings of an x-IMU3 USB/serial link.
func SerialOptions(port string, baud int) serial.OpenOptions {
	return serial.OpenOptions{
		PortName:              port,
		BaudRate:              uint(baud),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
}

// OpenSerial opens the serial port of one device.
func OpenSerial(port string, baud int) (io.ReadWriteCloser, error) {
	p, err := serial.Open(SerialOptions(port, baud))
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", port, err)
	}
	return p, nil
}

// Device streams one x-IMU3 into a sink as the given limb.
type Device struct {
	Limb samples.Limb
	r    io.Reader
	sink Sink
	log  *zap.Logger
}

// NewDevice wraps an open byte stream.
func NewDevice(limb samples.Limb, r io.Reader, sink Sink, log *zap.Logger) *Device {
	return &Device{
		Limb: limb,
		r:    r,
		sink: sink,
		log:  logger.Component(log, "ximu3").With(zap.String("limb", limb.String())),
	}
}

// Run reads lines until EOF, a read error, or ctx is done. Lines that fail
// to parse are dropped. Cancelling ctx does not interrupt a blocked read;
// close the underlying port to unblock it.
func (d *Device) Run(ctx context.Context) error {
	sc := bufio.NewScanner(d.r)
	var dropped int
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		msg, err := ParseLine(line)
		if err != nil {
			if !errors.Is(err, ErrUnhandledMessage) {
				dropped++
				d.log.Debug("dropping line", zap.Error(err), zap.Int("dropped", dropped))
			}
			continue
		}
		switch msg.Kind {
		case KindEuler:
			d.sink.OnOrientation(d.Limb, msg.Pose)
		case KindInertial:
			d.sink.OnMotion(d.Limb, msg.Motion)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("%s serial read: %w", d.Limb, err)
	}
	return nil
}
