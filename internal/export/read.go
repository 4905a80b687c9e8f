// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// ReadSamples parses an imu_data.csv produced by CSVWriter. The index
// header decides whether the table is raw (wall-clock) or normalized.
func ReadSamples(r io.Reader) (SampleTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return SampleTable{}, fmt.Errorf("read header: %w", err)
	}

	want := Columns()
	if len(header) != len(want)+1 {
		return SampleTable{}, fmt.Errorf("header has %d columns, want %d", len(header), len(want)+1)
	}
	t := SampleTable{Columns: want}
	switch header[0] {
	case WallIndexName:
		t.Raw = true
	case OffsetIndexName:
	default:
		return SampleTable{}, fmt.Errorf("unknown index column %q", header[0])
	}
	for i, name := range want {
		if header[i+1] != name {
			return SampleTable{}, fmt.Errorf("column %d is %q, want %q", i+1, header[i+1], name)
		}
	}

	var earliest time.Time
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return SampleTable{}, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) != len(header) {
			return SampleTable{}, fmt.Errorf("line %d has %d fields, want %d", line, len(rec), len(header))
		}

		row := Row{Index: len(t.Rows), Cells: make([]Cell, len(want))}
		if t.Raw {
			at, err := time.ParseInLocation(WallTimeLayout, rec[0], time.Local)
			if err != nil {
				return SampleTable{}, fmt.Errorf("line %d timestamp: %w", line, err)
			}
			row.At = at
			if len(t.Rows) == 0 || at.Before(earliest) {
				earliest = at
			}
		} else {
			ms, err := strconv.ParseFloat(rec[0], 64)
			if err != nil {
				return SampleTable{}, fmt.Errorf("line %d offset: %w", line, err)
			}
			row.Offset = time.Duration(ms * float64(time.Millisecond))
		}
		for i, s := range rec[1:] {
			if s == "" {
				continue
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return SampleTable{}, fmt.Errorf("line %d column %q: %w", line, want[i], err)
			}
			row.Cells[i] = Cell{Value: v, Valid: true}
		}
		t.Rows = append(t.Rows, row)
	}

	if t.Raw {
		for i := range t.Rows {
			t.Rows[i].Offset = t.Rows[i].At.Sub(earliest)
		}
	}
	return t, nil
}

// ReadSamplesFile opens and parses path.
func ReadSamplesFile(path string) (SampleTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return SampleTable{}, err
	}
	defer f.Close()
	t, err := ReadSamples(f)
	if err != nil {
		return SampleTable{}, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}
