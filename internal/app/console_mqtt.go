// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/fatigue_computer/internal/config"
	"github.com/relabs-tech/fatigue_computer/internal/logger"
	"github.com/relabs-tech/fatigue_computer/internal/session"
	"github.com/relabs-tech/fatigue_computer/internal/transport"
)

func formatState(st session.State) string {
	line := fmt.Sprintf("[FATIGUE] %-16s reps=%3d intervals=%3d windows=%3d samples=%6d session=%s",
		st.Display, st.Peaks, st.Intervals, st.Windows, st.Samples, st.SessionID)
	if st.Ended {
		line += " (ended)"
	}
	return line
}

// consoleHandler prints each decoded state to out.
func consoleHandler(out io.Writer) transport.MessageHandler {
	return func(topic string, payload []byte) error {
		var st session.State
		if err := json.Unmarshal(payload, &st); err != nil {
			return fmt.Errorf("%s: state payload: %w", topic, err)
		}
		_, err := fmt.Fprintln(out, formatState(st))
		return err
	}
}

// RunConsoleMQTT prints every fatigue update published by the monitor
// until ctx is done.
func RunConsoleMQTT(ctx context.Context, cfg *config.Config, out io.Writer, log *zap.Logger) error {
	log = logger.Component(log, "console")
	client, err := transport.Connect(cfg.MQTTBroker, cfg.MQTTClientIDConsole, log)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	handle := consoleHandler(out)
	token := client.Subscribe(cfg.TopicFatigue, 1, func(_ mqtt.Client, msg mqtt.Message) {
		if err := handle(msg.Topic(), msg.Payload()); err != nil {
			log.Warn("dropping message", zap.Error(err))
		}
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", cfg.TopicFatigue, token.Error())
	}
	log.Info("subscribed", zap.String("topic", cfg.TopicFatigue))

	<-ctx.Done()
	log.Info("shutting down")
	return nil
}
