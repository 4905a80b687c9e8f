// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package model

import (
	"encoding/json"
	"fmt"
	"os"
)

// Scaler is a fitted per-feature standardization: (x - Mean) / Scale.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// LoadScaler reads a scaler artifact. When width is positive both arrays
// must have exactly that many entries.
func LoadScaler(path string, width int) (*Scaler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifact, err)
	}
	var s Scaler
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrArtifact, path, err)
	}
	if len(s.Mean) != len(s.Scale) {
		return nil, fmt.Errorf("%w: %s: mean has %d entries, scale has %d", ErrArtifact, path, len(s.Mean), len(s.Scale))
	}
	if width > 0 && len(s.Mean) != width {
		return nil, fmt.Errorf("%w: %s: %d entries, want %d", ErrArtifact, path, len(s.Mean), width)
	}
	return &s, nil
}
