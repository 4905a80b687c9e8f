// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package model

import (
	"fmt"
	"math"
)

type activation func(float64) float64

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// hardSigmoid follows Keras 3: relu6(x+3)/6.
func hardSigmoid(x float64) float64 { return math.Max(0, math.Min(1, x/6+0.5)) }

func relu(x float64) float64 { return math.Max(0, x) }

func linear(x float64) float64 { return x }

func activationByName(name, fallback string) (activation, error) {
	if name == "" {
		name = fallback
	}
	switch name {
	case "tanh":
		return math.Tanh, nil
	case "sigmoid":
		return sigmoid, nil
	case "hard_sigmoid":
		return hardSigmoid, nil
	case "relu":
		return relu, nil
	case "linear":
		return linear, nil
	default:
		return nil, fmt.Errorf("unknown activation %q", name)
	}
}
