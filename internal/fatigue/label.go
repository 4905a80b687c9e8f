// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package fatigue

import (
	"fmt"
	"time"
)

// Label is the qualitative fatigue bucket shown to the operator.
type Label string

const (
	LabelNone     Label = "None"
	LabelLow      Label = "Low"
	LabelModerate Label = "Moderate"
	LabelHigh     Label = "High"
)

// Label thresholds on the model score.
const (
	ModerateFrom = 3.0
	HighFrom     = 5.0
)

// LabelFor buckets a score: below 3 is Low, 5 and above is High.
func LabelFor(score float64) Label {
	switch {
	case score < ModerateFrom:
		return LabelLow
	case score >= HighFrom:
		return LabelHigh
	default:
		return LabelModerate
	}
}

// State is the latest fatigue estimate. Before the first scored window
// Valid is false and Label is LabelNone.
type State struct {
	Score     float64   `json:"score"`
	Label     Label     `json:"label"`
	Valid     bool      `json:"valid"`
	Windows   int       `json:"windows"`
	Peaks     int       `json:"peaks"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Display renders the state the way the collection screen shows it,
// for example "Moderate (3.4)".
func (s State) Display() string {
	if !s.Valid {
		return string(LabelNone)
	}
	return fmt.Sprintf("%s (%.1f)", s.Label, s.Score)
}
