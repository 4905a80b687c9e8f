// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/relabs-tech/fatigue_computer/internal/segment"
)

// Output file names inside a participant folder.
const (
	SamplesFile     = "imu_data.csv"
	RepetitionsFile = "repetitions.csv"
	PredictionsFile = "predictions.csv"
)

// WallTimeLayout formats the raw table index.
const WallTimeLayout = "2006-01-02 15:04:05.000000"

// CSVWriter writes the session tables as CSV files into Dir.
type CSVWriter struct {
	Dir string
}

// NewCSVWriter returns a writer targeting dir, which must already exist.
func NewCSVWriter(dir string) *CSVWriter { return &CSVWriter{Dir: dir} }

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func (w *CSVWriter) writeFile(name string, records [][]string) error {
	path := filepath.Join(w.Dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	cw := csv.NewWriter(f)
	if err := cw.WriteAll(records); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// WriteSamples writes imu_data.csv. Invalid cells are left empty.
func (w *CSVWriter) WriteSamples(ctx context.Context, t SampleTable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	records := make([][]string, 0, len(t.Rows)+1)
	header := append([]string{t.IndexName()}, t.Columns...)
	records = append(records, header)
	for _, r := range t.Rows {
		rec := make([]string, 0, len(r.Cells)+1)
		if t.Raw {
			rec = append(rec, r.At.Format(WallTimeLayout))
		} else {
			rec = append(rec, formatFloat(r.OffsetMS()))
		}
		for _, c := range r.Cells {
			if c.Valid {
				rec = append(rec, formatFloat(c.Value))
			} else {
				rec = append(rec, "")
			}
		}
		records = append(records, rec)
	}
	return w.writeFile(SamplesFile, records)
}

// WriteIntervals writes repetitions.csv.
func (w *CSVWriter) WriteIntervals(ctx context.Context, intervals []segment.Interval) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	records := [][]string{{"start (index)", "end (index)"}}
	for _, iv := range intervals {
		records = append(records, []string{strconv.Itoa(iv.Start), strconv.Itoa(iv.End)})
	}
	return w.writeFile(RepetitionsFile, records)
}

// WriteScores writes predictions.csv, one score per line in order.
func (w *CSVWriter) WriteScores(ctx context.Context, scores []float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	records := make([][]string, 0, len(scores))
	for _, s := range scores {
		records = append(records, []string{formatFloat(s)})
	}
	return w.writeFile(PredictionsFile, records)
}
