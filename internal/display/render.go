// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package display renders the fatigue estimate for the 128x64 OLED and for
// the PNG badge served by the web API.
package display

import (
	"fmt"
	"image"
	"image/png"
	"io"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/fatigue_computer/internal/session"
)

// Screen size of the SSD1306 panel.
const (
	Width  = 128
	Height = 64
)

const lineHeight = 13

// Lines is the text shown for a snapshot, top to bottom.
func Lines(st session.State) []string {
	if !st.Valid {
		lines := []string{"Fatigue: None", "Waiting..."}
		if st.Peaks > 0 {
			lines = append(lines, fmt.Sprintf("Reps: %d", st.Peaks))
		}
		return lines
	}
	lines := []string{
		"Fatigue:",
		st.Display,
		fmt.Sprintf("Reps:%d Win:%d", st.Peaks, st.Windows),
	}
	if st.Ended {
		lines = append(lines, "Session ended")
	}
	return lines
}

func canvas() *image1bit.VerticalLSB {
	return image1bit.NewVerticalLSB(image.Rect(0, 0, Width, Height))
}

func drawLines(img *image1bit.VerticalLSB, x int, lines []string) {
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, l := range lines {
		if i >= Height/lineHeight {
			break
		}
		drawer.Dot = fixed.P(x, lineHeight*(i+1))
		drawer.DrawString(l)
	}
}

// Render draws a snapshot onto a fresh 1-bit canvas.
func Render(st session.State) *image1bit.VerticalLSB {
	img := canvas()
	drawLines(img, 0, Lines(st))
	return img
}

// Splash is the start-up screen.
func Splash() *image1bit.VerticalLSB {
	img := canvas()
	drawLines(img, 10, []string{"", "Fatigue Pi", "Waiting for", "sensors"})
	return img
}

// WritePNG encodes the rendered snapshot as PNG.
func WritePNG(w io.Writer, st session.State) error {
	if err := png.Encode(w, Render(st)); err != nil {
		return fmt.Errorf("encode badge: %w", err)
	}
	return nil
}
