// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package export builds the end-of-session tables and writes them to CSV
// files and SQLite.
package export

import (
	"context"
	"errors"
	"time"

	"github.com/relabs-tech/fatigue_computer/internal/samples"
	"github.com/relabs-tech/fatigue_computer/internal/segment"
)

// ErrNoRows is returned when a session has no timestamped samples to tabulate.
var ErrNoRows = errors.New("no sample rows")

// Index column headers.
const (
	OffsetIndexName = "Timestamp (ms)"
	WallIndexName   = "Timestamp"
)

// Cell is one optional table value.
type Cell struct {
	Value float64
	Valid bool
}

// Row is one sample index of the joined table.
type Row struct {
	Index int
	At    time.Time
	// Offset is At relative to the earliest timestamp in the table.
	Offset time.Duration
	Cells  []Cell
}

// Complete reports whether every cell carries a value.
func (r Row) Complete() bool {
	for _, c := range r.Cells {
		if !c.Valid {
			return false
		}
	}
	return true
}

// OffsetMS is Offset in fractional milliseconds.
func (r Row) OffsetMS() float64 {
	return float64(r.Offset) / float64(time.Millisecond)
}

// SampleTable is the joined per-index sample table. Raw tables are keyed by
// wall-clock time and may hold incomplete rows; normalized ones are keyed by
// millisecond offset and hold only complete rows.
type SampleTable struct {
	Columns []string
	Rows    []Row
	Raw     bool
}

// IndexName is the header of the index column.
func (t SampleTable) IndexName() string {
	if t.Raw {
		return WallIndexName
	}
	return OffsetIndexName
}

// Columns returns the 25 value column names in table order.
func Columns() []string {
	cols := make([]string, 0, samples.NumColumns)
	cols = append(cols, samples.ChannelNames[:]...)
	return append(cols, samples.DifferenceNames[:]...)
}

// joined returns one row per index below min(timestamps, records). Missing
// differences become invalid cells.
func joined(s *samples.Store) []Row {
	ts := s.Timestamps()
	cutoff := len(ts)
	if s.Len() < cutoff {
		cutoff = s.Len()
	}
	var earliest time.Time
	for i := 0; i < cutoff; i++ {
		if i == 0 || ts[i].Before(earliest) {
			earliest = ts[i]
		}
	}

	diffs := [3][]float64{
		s.Difference(samples.Roll),
		s.Difference(samples.Pitch),
		s.Difference(samples.Yaw),
	}
	rows := make([]Row, 0, cutoff)
	for i := 0; i < cutoff; i++ {
		rec, _ := s.Record(i)
		cells := make([]Cell, 0, samples.NumColumns)
		for ch := 0; ch < samples.NumChannels; ch++ {
			v, ok := rec.Get(ch)
			cells = append(cells, Cell{Value: v, Valid: ok})
		}
		for _, d := range diffs {
			if i < len(d) {
				cells = append(cells, Cell{Value: d[i], Valid: true})
			} else {
				cells = append(cells, Cell{})
			}
		}
		rows = append(rows, Row{Index: i, At: ts[i], Offset: ts[i].Sub(earliest), Cells: cells})
	}
	return rows
}

// BuildSamples returns the normalized sample table: millisecond offsets
// from the first timestamp, with every incomplete row dropped.
func BuildSamples(s *samples.Store) (SampleTable, error) {
	all := joined(s)
	if len(all) == 0 {
		return SampleTable{}, ErrNoRows
	}
	rows := all[:0]
	for _, r := range all {
		if r.Complete() {
			rows = append(rows, r)
		}
	}
	return SampleTable{Columns: Columns(), Rows: rows}, nil
}

// RawSamples returns the fallback table: wall-clock index, nothing dropped.
func RawSamples(s *samples.Store) SampleTable {
	return SampleTable{Columns: Columns(), Rows: joined(s), Raw: true}
}

// Writer persists the outputs of one session.
type Writer interface {
	WriteSamples(ctx context.Context, t SampleTable) error
	WriteIntervals(ctx context.Context, intervals []segment.Interval) error
	WriteScores(ctx context.Context, scores []float64) error
}

// MultiWriter fans every write out to all writers and joins their errors.
func MultiWriter(ws ...Writer) Writer { return multiWriter(ws) }

type multiWriter []Writer

func (m multiWriter) WriteSamples(ctx context.Context, t SampleTable) error {
	var errs []error
	for _, w := range m {
		errs = append(errs, w.WriteSamples(ctx, t))
	}
	return errors.Join(errs...)
}

func (m multiWriter) WriteIntervals(ctx context.Context, intervals []segment.Interval) error {
	var errs []error
	for _, w := range m {
		errs = append(errs, w.WriteIntervals(ctx, intervals))
	}
	return errors.Join(errs...)
}

func (m multiWriter) WriteScores(ctx context.Context, scores []float64) error {
	var errs []error
	for _, w := range m {
		errs = append(errs, w.WriteScores(ctx, scores))
	}
	return errors.Join(errs...)
}
