// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sink

import (
	"context"
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/fatigue_computer/internal/session"
)

// MQTTPublisher publishes snapshots as retained JSON so a console that
// connects late still sees the current estimate.
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
	qos    byte
}

func NewMQTTPublisher(client mqtt.Client, topic string) *MQTTPublisher {
	return &MQTTPublisher{client: client, topic: topic, qos: 1}
}

func (p *MQTTPublisher) Publish(ctx context.Context, st session.State) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	token := p.client.Publish(p.topic, p.qos, true, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", p.topic, err)
	}
	return nil
}
