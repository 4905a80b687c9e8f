// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package model runs the pretrained fatigue network and loads the frozen
// artifacts (network weights and feature scaler) it depends on.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"
)

// ErrArtifact is wrapped by every artifact load failure.
var ErrArtifact = errors.New("model artifact")

// Sequence scores a sequence of feature vectors, one output per step.
// Implementations that only produce a final output return one value.
type Sequence interface {
	Predict(seq [][]float64) ([]float64, error)
}

// LayerSpec is the serialized form of one layer. Weight layouts follow
// Keras: kernel (in, k*units), recurrent_kernel (units, k*units).
type LayerSpec struct {
	Type                string          `json:"type"`
	Units               int             `json:"units"`
	Activation          string          `json:"activation,omitempty"`
	RecurrentActivation string          `json:"recurrent_activation,omitempty"`
	ReturnSequences     bool            `json:"return_sequences,omitempty"`
	Kernel              [][]float64     `json:"kernel"`
	RecurrentKernel     [][]float64     `json:"recurrent_kernel,omitempty"`
	Bias                json.RawMessage `json:"bias,omitempty"`
}

// Artifact is the on-disk network description.
type Artifact struct {
	Name     string      `json:"name,omitempty"`
	Features []int       `json:"features,omitempty"`
	Layers   []LayerSpec `json:"layers"`
}

// Network is a stack of recurrent layers followed by a per-step dense head
// producing a single output.
type Network struct {
	name     string
	features []int
	layers   []layer
}

// Build validates an artifact and assembles the network.
func Build(a Artifact) (*Network, error) {
	if len(a.Layers) == 0 {
		return nil, errors.New("no layers")
	}
	n := &Network{name: a.Name, features: append([]int(nil), a.Features...)}
	in := 0
	for i, spec := range a.Layers {
		if i == 0 {
			in = len(spec.Kernel)
		}
		l, err := buildLayer(spec, in)
		if err != nil {
			return nil, fmt.Errorf("layer %d (%s): %w", i, spec.Type, err)
		}
		n.layers = append(n.layers, l)
		in = l.outputs()
	}
	if in != 1 {
		return nil, fmt.Errorf("final layer has %d outputs, want 1", in)
	}
	for _, f := range n.features {
		if f < 0 {
			return nil, fmt.Errorf("negative feature index %d", f)
		}
	}
	if len(n.features) > 0 && len(n.features) != n.InputSize() {
		return nil, fmt.Errorf("%d feature indices for input size %d", len(n.features), n.InputSize())
	}
	return n, nil
}

// LoadNetwork reads and builds a network artifact from a JSON file.
func LoadNetwork(path string) (*Network, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifact, err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrArtifact, path, err)
	}
	n, err := Build(a)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrArtifact, path, err)
	}
	return n, nil
}

// Name is the artifact's name, if it carried one.
func (n *Network) Name() string { return n.name }

// Features returns the feature indices the network was trained on, or nil
// when the artifact does not override the default selection.
func (n *Network) Features() []int { return append([]int(nil), n.features...) }

// InputSize is the width of each step the network accepts.
func (n *Network) InputSize() int { return n.layers[0].inputs() }

// Predict runs the whole sequence through the network. An empty sequence
// yields no outputs.
func (n *Network) Predict(seq [][]float64) ([]float64, error) {
	if len(seq) == 0 {
		return nil, nil
	}
	width := n.InputSize()
	xs := make([]*mat.VecDense, len(seq))
	for t, step := range seq {
		if len(step) != width {
			return nil, fmt.Errorf("model: step %d has %d values, want %d", t, len(step), width)
		}
		xs[t] = mat.NewVecDense(width, append([]float64(nil), step...))
	}
	for _, l := range n.layers {
		xs = l.forward(xs)
	}
	out := make([]float64, len(xs))
	for t, v := range xs {
		out[t] = v.AtVec(0)
	}
	return out, nil
}

func buildLayer(spec LayerSpec, in int) (layer, error) {
	if spec.Units <= 0 {
		return nil, fmt.Errorf("units must be positive, got %d", spec.Units)
	}
	switch spec.Type {
	case "dense":
		act, err := activationByName(spec.Activation, "linear")
		if err != nil {
			return nil, err
		}
		k, err := matrix("kernel", spec.Kernel, in, spec.Units)
		if err != nil {
			return nil, err
		}
		b, err := flatBias(spec.Bias, spec.Units)
		if err != nil {
			return nil, err
		}
		return &dense{affine: affine{kernel: k, bias: b}, act: act}, nil
	case "simple_rnn":
		act, err := activationByName(spec.Activation, "tanh")
		if err != nil {
			return nil, err
		}
		base, err := recurrentWeights(spec, in, 1, false)
		if err != nil {
			return nil, err
		}
		return &simpleRNN{recurrentBase: base, act: act}, nil
	case "lstm":
		act, rec, err := gateActivations(spec)
		if err != nil {
			return nil, err
		}
		base, err := recurrentWeights(spec, in, 4, false)
		if err != nil {
			return nil, err
		}
		return &lstm{recurrentBase: base, act: act, rec: rec}, nil
	case "gru":
		act, rec, err := gateActivations(spec)
		if err != nil {
			return nil, err
		}
		base, err := recurrentWeights(spec, in, 3, true)
		if err != nil {
			return nil, err
		}
		return &gru{recurrentBase: base, act: act, rec: rec}, nil
	default:
		return nil, fmt.Errorf("unsupported layer type %q", spec.Type)
	}
}

func gateActivations(spec LayerSpec) (act, rec activation, err error) {
	if act, err = activationByName(spec.Activation, "tanh"); err != nil {
		return nil, nil, err
	}
	if rec, err = activationByName(spec.RecurrentActivation, "sigmoid"); err != nil {
		return nil, nil, err
	}
	return act, rec, nil
}

// recurrentWeights decodes kernel, recurrent kernel and bias for a cell with
// k gates. With splitBias the bias is (2, k*units): input row then
// recurrent row.
func recurrentWeights(spec LayerSpec, in, k int, splitBias bool) (recurrentBase, error) {
	width := k * spec.Units
	kernel, err := matrix("kernel", spec.Kernel, in, width)
	if err != nil {
		return recurrentBase{}, err
	}
	recurrent, err := matrix("recurrent_kernel", spec.RecurrentKernel, spec.Units, width)
	if err != nil {
		return recurrentBase{}, err
	}
	base := recurrentBase{
		units:      spec.Units,
		in:         affine{kernel: kernel},
		recurrent:  affine{kernel: recurrent},
		returnSeqs: spec.ReturnSequences,
	}
	if !splitBias {
		b, err := flatBias(spec.Bias, width)
		if err != nil {
			return recurrentBase{}, err
		}
		base.in.bias = b
		return base, nil
	}
	var rows [][]float64
	if len(spec.Bias) > 0 {
		if err := json.Unmarshal(spec.Bias, &rows); err != nil {
			return recurrentBase{}, fmt.Errorf("bias: %w", err)
		}
	}
	if len(rows) == 0 {
		return base, nil
	}
	if len(rows) != 2 {
		return recurrentBase{}, fmt.Errorf("bias: %d rows, want 2", len(rows))
	}
	if base.in.bias, err = vector("bias[0]", rows[0], width); err != nil {
		return recurrentBase{}, err
	}
	if base.recurrent.bias, err = vector("bias[1]", rows[1], width); err != nil {
		return recurrentBase{}, err
	}
	return base, nil
}

// flatBias decodes an optional one-dimensional bias.
func flatBias(raw json.RawMessage, want int) (*mat.VecDense, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var b []float64
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("bias: %w", err)
	}
	if len(b) == 0 {
		return nil, nil
	}
	return vector("bias", b, want)
}
