// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sink forwards session snapshots to the outside world: a retained
// MQTT topic for consoles and a Redis cache for dashboards.
package sink

import (
	"context"

	"go.uber.org/zap"

	"github.com/relabs-tech/fatigue_computer/internal/logger"
	"github.com/relabs-tech/fatigue_computer/internal/session"
)

// Publisher delivers one snapshot.
type Publisher interface {
	Publish(ctx context.Context, st session.State) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, st session.State) error

func (f PublisherFunc) Publish(ctx context.Context, st session.State) error { return f(ctx, st) }

// Run drains updates into every publisher until the channel is closed or
// ctx is done. A failing publisher is logged and does not block the others.
func Run(ctx context.Context, updates <-chan session.State, log *zap.Logger, pubs ...Publisher) {
	log = logger.Component(log, "sink")
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-updates:
			if !ok {
				return
			}
			for _, p := range pubs {
				if err := p.Publish(ctx, st); err != nil {
					log.Warn("publish failed",
						zap.String("session_id", st.SessionID),
						zap.Int("windows", st.Windows),
						zap.Error(err))
				}
			}
		}
	}
}
