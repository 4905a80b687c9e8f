// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package display

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/fatigue_computer/internal/logger"
	"github.com/relabs-tech/fatigue_computer/internal/session"
)

// Panel is the drawing surface of a display.
type Panel interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

// Screen keeps the latest snapshot and redraws the panel on a fixed
// interval when it changed.
type Screen struct {
	panel Panel
	log   *zap.Logger

	mu     sync.Mutex
	latest session.State
	dirty  bool
}

// NewScreen shows the splash screen on panel.
func NewScreen(panel Panel, log *zap.Logger) *Screen {
	s := &Screen{panel: panel, log: logger.Component(log, "display")}
	if err := s.draw(Splash()); err != nil {
		s.log.Warn("splash screen", zap.Error(err))
	}
	return s
}

func (s *Screen) draw(img image.Image) error {
	return s.panel.Draw(s.panel.Bounds(), img, image.Point{})
}

// Publish records a snapshot for the next redraw.
func (s *Screen) Publish(_ context.Context, st session.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = st
	s.dirty = true
	return nil
}

// Refresh draws the latest snapshot if it changed since the last redraw.
func (s *Screen) Refresh() error {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	st := s.latest
	s.dirty = false
	s.mu.Unlock()
	return s.draw(Render(st))
}

// Run redraws every interval until ctx is done.
func (s *Screen) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(); err != nil {
				s.log.Warn("display update", zap.Error(err))
			}
		}
	}
}

// OLED is an SSD1306 panel on an I2C bus.
type OLED struct {
	dev *ssd1306.Dev
	bus i2c.BusCloser
}

// OpenOLED initializes periph and opens the panel. An empty bus name picks
// the first bus.
func OpenOLED(busName string) (*OLED, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus: %w", err)
	}
	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("failed to initialize display: %w", err)
	}
	return &OLED{dev: dev, bus: bus}, nil
}

func (o *OLED) Bounds() image.Rectangle { return o.dev.Bounds() }

func (o *OLED) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	return o.dev.Draw(r, src, sp)
}

// Close blanks and halts the panel, then releases the bus.
func (o *OLED) Close() error {
	_ = o.dev.Draw(o.dev.Bounds(), canvas(), image.Point{})
	_ = o.dev.Halt()
	return o.bus.Close()
}
