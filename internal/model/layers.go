// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// layer maps a sequence of input vectors to a sequence of output vectors.
// Recurrent layers that do not return sequences yield a single vector.
type layer interface {
	forward(seq []*mat.VecDense) []*mat.VecDense
	inputs() int
	outputs() int
}

// affine holds x·W + b with W stored as (in, k·units) and b as (k·units).
type affine struct {
	kernel *mat.Dense
	bias   *mat.VecDense
}

// apply returns Wᵀx + b.
func (a affine) apply(x mat.Vector) *mat.VecDense {
	var z mat.VecDense
	z.MulVec(a.kernel.T(), x)
	if a.bias != nil {
		z.AddVec(&z, a.bias)
	}
	return &z
}

// recurrentBase carries the weights shared by every recurrent cell.
type recurrentBase struct {
	units      int
	in         affine
	recurrent  affine
	returnSeqs bool
}

func (r *recurrentBase) inputs() int {
	rows, _ := r.in.kernel.Dims()
	return rows
}

func (r *recurrentBase) outputs() int { return r.units }

func (r *recurrentBase) collect(all []*mat.VecDense) []*mat.VecDense {
	if r.returnSeqs || len(all) == 0 {
		return all
	}
	return all[len(all)-1:]
}

type simpleRNN struct {
	recurrentBase
	act activation
}

func (l *simpleRNN) forward(seq []*mat.VecDense) []*mat.VecDense {
	h := mat.NewVecDense(l.units, nil)
	out := make([]*mat.VecDense, 0, len(seq))
	for _, x := range seq {
		z := l.in.apply(x)
		z.AddVec(z, l.recurrent.apply(h))
		next := mat.NewVecDense(l.units, nil)
		for j := 0; j < l.units; j++ {
			next.SetVec(j, l.act(z.AtVec(j)))
		}
		h = next
		out = append(out, h)
	}
	return l.collect(out)
}

// lstm gates are laid out i, f, c, o.
type lstm struct {
	recurrentBase
	act, rec activation
}

func (l *lstm) forward(seq []*mat.VecDense) []*mat.VecDense {
	u := l.units
	h := mat.NewVecDense(u, nil)
	c := mat.NewVecDense(u, nil)
	out := make([]*mat.VecDense, 0, len(seq))
	for _, x := range seq {
		z := l.in.apply(x)
		z.AddVec(z, l.recurrent.apply(h))
		nh := mat.NewVecDense(u, nil)
		nc := mat.NewVecDense(u, nil)
		for j := 0; j < u; j++ {
			i := l.rec(z.AtVec(j))
			f := l.rec(z.AtVec(u + j))
			g := l.act(z.AtVec(2*u + j))
			o := l.rec(z.AtVec(3*u + j))
			cj := f*c.AtVec(j) + i*g
			nc.SetVec(j, cj)
			nh.SetVec(j, o*l.act(cj))
		}
		h, c = nh, nc
		out = append(out, h)
	}
	return l.collect(out)
}

// gru gates are laid out z, r, h. The reset gate is applied after the
// recurrent matmul, and input and recurrent biases are kept apart.
type gru struct {
	recurrentBase
	act, rec activation
}

func (l *gru) forward(seq []*mat.VecDense) []*mat.VecDense {
	u := l.units
	h := mat.NewVecDense(u, nil)
	out := make([]*mat.VecDense, 0, len(seq))
	for _, x := range seq {
		xz := l.in.apply(x)
		hz := l.recurrent.apply(h)
		nh := mat.NewVecDense(u, nil)
		for j := 0; j < u; j++ {
			z := l.rec(xz.AtVec(j) + hz.AtVec(j))
			r := l.rec(xz.AtVec(u+j) + hz.AtVec(u+j))
			cand := l.act(xz.AtVec(2*u+j) + r*hz.AtVec(2*u+j))
			nh.SetVec(j, z*h.AtVec(j)+(1-z)*cand)
		}
		h = nh
		out = append(out, h)
	}
	return l.collect(out)
}

// dense applies the same affine map and activation at every timestep.
type dense struct {
	affine
	act activation
}

func (l *dense) inputs() int {
	rows, _ := l.kernel.Dims()
	return rows
}

func (l *dense) outputs() int {
	_, cols := l.kernel.Dims()
	return cols
}

func (l *dense) forward(seq []*mat.VecDense) []*mat.VecDense {
	out := make([]*mat.VecDense, len(seq))
	for t, x := range seq {
		z := l.apply(x)
		for j := 0; j < z.Len(); j++ {
			z.SetVec(j, l.act(z.AtVec(j)))
		}
		out[t] = z
	}
	return out
}

// matrix converts row-major weights into a Dense, checking the shape.
func matrix(name string, rows [][]float64, wantRows, wantCols int) (*mat.Dense, error) {
	if len(rows) != wantRows {
		return nil, fmt.Errorf("%s: %d rows, want %d", name, len(rows), wantRows)
	}
	if wantRows == 0 || wantCols == 0 {
		return nil, fmt.Errorf("%s: empty shape (%d, %d)", name, wantRows, wantCols)
	}
	data := make([]float64, 0, wantRows*wantCols)
	for i, r := range rows {
		if len(r) != wantCols {
			return nil, fmt.Errorf("%s: row %d has %d columns, want %d", name, i, len(r), wantCols)
		}
		data = append(data, r...)
	}
	return mat.NewDense(wantRows, wantCols, data), nil
}

func vector(name string, v []float64, want int) (*mat.VecDense, error) {
	if len(v) != want {
		return nil, fmt.Errorf("%s: %d entries, want %d", name, len(v), want)
	}
	return mat.NewVecDense(want, append([]float64(nil), v...)), nil
}
