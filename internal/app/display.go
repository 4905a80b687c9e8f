// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/fatigue_computer/internal/config"
	"github.com/relabs-tech/fatigue_computer/internal/display"
)

// startDisplay opens the OLED and starts its refresh loop. The returned
// screen receives snapshots; close releases the panel once the refresh loop
// has stopped. A nil screen means the display is disabled or unavailable.
func startDisplay(ctx context.Context, cfg *config.Config, log *zap.Logger) (*display.Screen, func()) {
	if !cfg.DisplayEnabled {
		return nil, func() {}
	}
	oled, err := display.OpenOLED(cfg.DisplayI2CBus)
	if err != nil {
		log.Warn("display unavailable, continuing without it", zap.Error(err))
		return nil, func() {}
	}
	screen := display.NewScreen(oled, log)

	done := make(chan struct{})
	go func() {
		defer close(done)
		screen.Run(ctx, time.Duration(cfg.DisplayUpdateInterval)*time.Millisecond)
	}()
	return screen, func() {
		<-done
		if err := oled.Close(); err != nil {
			log.Warn("display close", zap.Error(err))
		}
	}
}
