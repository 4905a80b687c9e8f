// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package transport feeds decoded IMU samples into a session, either from
// MQTT topics or straight from x-IMU3 serial links.
package transport

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/fatigue_computer/internal/imu"
	"github.com/relabs-tech/fatigue_computer/internal/logger"
	"github.com/relabs-tech/fatigue_computer/internal/orientation"
	"github.com/relabs-tech/fatigue_computer/internal/samples"
)

// Sink receives samples in arrival order per channel group.
type Sink interface {
	OnOrientation(limb samples.Limb, p orientation.Pose)
	OnMotion(limb samples.Limb, m imu.Motion)
}

// MessageHandler handles one MQTT payload.
type MessageHandler func(topic string, payload []byte) error

// Topics names the four sample topics.
type Topics struct {
	EulerWrist    string
	EulerArm      string
	InertialWrist string
	InertialArm   string
}

// Connect connects a paho client with auto-reconnect enabled.
func Connect(broker, clientID string, log *zap.Logger) (mqtt.Client, error) {
	log = logger.Component(log, "mqtt")
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetOrderMatters(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warn("connection lost", zap.Error(err))
		}).
		SetOnConnectHandler(func(mqtt.Client) {
			log.Info("connected", zap.String("broker", broker), zap.String("client_id", clientID))
		})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", broker, token.Error())
	}
	return client, nil
}

// EulerHandler decodes {"roll","pitch","yaw"} payloads for limb.
func EulerHandler(sink Sink, limb samples.Limb) MessageHandler {
	return func(topic string, payload []byte) error {
		var p orientation.Pose
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("%s: euler payload: %w", topic, err)
		}
		sink.OnOrientation(limb, p)
		return nil
	}
}

// InertialHandler decodes imu.Motion payloads for limb.
func InertialHandler(sink Sink, limb samples.Limb) MessageHandler {
	return func(topic string, payload []byte) error {
		var m imu.Motion
		if err := json.Unmarshal(payload, &m); err != nil {
			return fmt.Errorf("%s: inertial payload: %w", topic, err)
		}
		sink.OnMotion(limb, m)
		return nil
	}
}

// Subscriber routes the four sample topics into a sink.
type Subscriber struct {
	client mqtt.Client
	topics Topics
	routes map[string]MessageHandler
	log    *zap.Logger
}

// NewSubscriber prepares a subscriber; nothing is subscribed until Start.
func NewSubscriber(client mqtt.Client, topics Topics, sink Sink, log *zap.Logger) *Subscriber {
	return &Subscriber{
		client: client,
		topics: topics,
		routes: map[string]MessageHandler{
			topics.EulerWrist:    EulerHandler(sink, samples.Wrist),
			topics.EulerArm:      EulerHandler(sink, samples.Arm),
			topics.InertialWrist: InertialHandler(sink, samples.Wrist),
			topics.InertialArm:   InertialHandler(sink, samples.Arm),
		},
		log: logger.Component(log, "mqtt_subscriber"),
	}
}

// Handle dispatches one message by topic. Decode errors are logged and
// dropped so one bad payload never stalls the stream.
func (s *Subscriber) Handle(topic string, payload []byte) {
	h, ok := s.routes[topic]
	if !ok {
		s.log.Debug("message on unrouted topic", zap.String("topic", topic))
		return
	}
	if err := h(topic, payload); err != nil {
		s.log.Warn("dropping message", zap.String("topic", topic), zap.Error(err))
	}
}

// Start subscribes to all four topics at QoS 0.
func (s *Subscriber) Start() error {
	for topic := range s.routes {
		token := s.client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			s.Handle(msg.Topic(), msg.Payload())
		})
		if token.Wait() && token.Error() != nil {
			return fmt.Errorf("failed to subscribe to topic %s: %w", topic, token.Error())
		}
		s.log.Info("subscribed", zap.String("topic", topic))
	}
	return nil
}

// Stop unsubscribes from all topics.
func (s *Subscriber) Stop() error {
	topics := make([]string, 0, len(s.routes))
	for t := range s.routes {
		topics = append(topics, t)
	}
	if token := s.client.Unsubscribe(topics...); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to unsubscribe: %w", token.Error())
	}
	return nil
}
