// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package export

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/fatigue_computer/internal/imu"
	"github.com/relabs-tech/fatigue_computer/internal/orientation"
	"github.com/relabs-tech/fatigue_computer/internal/samples"
	"github.com/relabs-tech/fatigue_computer/internal/segment"
)

var t0 = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

// fillStore writes n fully paired samples 20 ms apart, then one extra wrist
// orientation sample with no arm counterpart.
func fillStore(n int) *samples.Store {
	s := samples.NewStore()
	for i := 0; i < n; i++ {
		at := t0.Add(time.Duration(i) * 20 * time.Millisecond)
		f := float64(i)
		s.RecordOrientation(samples.Wrist, orientation.Pose{Roll: f, Pitch: -f, Yaw: 1}, at)
		s.RecordOrientation(samples.Arm, orientation.Pose{Roll: 2 * f, Pitch: f, Yaw: 3}, at)
		s.RecordMotion(samples.Wrist, imu.Motion{GyroX: f, AccelZ: 1})
		s.RecordMotion(samples.Arm, imu.Motion{GyroY: f, AccelZ: 1})
	}
	s.RecordOrientation(samples.Wrist, orientation.Pose{}, t0.Add(time.Duration(n)*20*time.Millisecond))
	return s
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	recs, err := r.ReadAll()
	require.NoError(t, err)
	return recs
}

func TestColumns(t *testing.T) {
	cols := Columns()
	require.Len(t, cols, samples.NumColumns)
	assert.Equal(t, "Wrist Gyroscope X (deg/s)", cols[0])
	assert.Equal(t, "Difference Yaw (deg)", cols[24])
}

func TestBuildSamplesDropsIncomplete(t *testing.T) {
	tbl, err := BuildSamples(fillStore(3))
	require.NoError(t, err)
	assert.False(t, tbl.Raw)
	assert.Equal(t, OffsetIndexName, tbl.IndexName())
	require.Len(t, tbl.Rows, 3)
	assert.Equal(t, []float64{0, 20, 40}, []float64{tbl.Rows[0].OffsetMS(), tbl.Rows[1].OffsetMS(), tbl.Rows[2].OffsetMS()})

	pitchDiff := tbl.Rows[2].Cells[samples.NumChannels+1]
	assert.True(t, pitchDiff.Valid)
	assert.Equal(t, 4.0, pitchDiff.Value)
}

func TestRawSamplesKeepsEverything(t *testing.T) {
	tbl := RawSamples(fillStore(3))
	assert.True(t, tbl.Raw)
	assert.Equal(t, WallIndexName, tbl.IndexName())
	require.Len(t, tbl.Rows, 4)
	assert.False(t, tbl.Rows[3].Complete())
	assert.Equal(t, t0.Add(60*time.Millisecond), tbl.Rows[3].At)
}

func TestCutoffIsShorterOfTimestampsAndRecords(t *testing.T) {
	s := samples.NewStore()
	// arm-only samples have no timestamps
	for i := 0; i < 4; i++ {
		s.RecordOrientation(samples.Arm, orientation.Pose{}, t0)
	}
	s.RecordOrientation(samples.Wrist, orientation.Pose{}, t0)
	assert.Len(t, RawSamples(s).Rows, 1)
}

func TestBuildSamplesEmpty(t *testing.T) {
	_, err := BuildSamples(samples.NewStore())
	assert.True(t, errors.Is(err, ErrNoRows))
	assert.Empty(t, RawSamples(samples.NewStore()).Rows)
}

func TestCSVWriter(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	w := NewCSVWriter(dir)
	s := fillStore(2)

	tbl, err := BuildSamples(s)
	require.NoError(t, err)
	require.NoError(t, w.WriteSamples(ctx, tbl))
	require.NoError(t, w.WriteIntervals(ctx, []segment.Interval{{Start: 2, End: 8}, {Start: 5, End: 11}}))
	require.NoError(t, w.WriteScores(ctx, []float64{1.25, 3}))

	data := readCSV(t, filepath.Join(dir, SamplesFile))
	require.Len(t, data, 3)
	assert.Equal(t, OffsetIndexName, data[0][0])
	assert.Len(t, data[0], samples.NumColumns+1)
	assert.Equal(t, "20", data[2][0])

	reps := readCSV(t, filepath.Join(dir, RepetitionsFile))
	assert.Equal(t, [][]string{{"start (index)", "end (index)"}, {"2", "8"}, {"5", "11"}}, reps)

	preds := readCSV(t, filepath.Join(dir, PredictionsFile))
	assert.Equal(t, [][]string{{"1.25"}, {"3"}}, preds)
}

func TestCSVWriterRawTable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, NewCSVWriter(dir).WriteSamples(context.Background(), RawSamples(fillStore(1))))

	data := readCSV(t, filepath.Join(dir, SamplesFile))
	require.Len(t, data, 3)
	assert.Equal(t, WallIndexName, data[0][0])
	assert.Equal(t, "2026-03-04 10:00:00.020000", data[2][0])
	assert.Equal(t, "", data[2][samples.ArmRoll+1], "missing arm sample is empty")
}

func TestCSVWriterMissingDir(t *testing.T) {
	w := NewCSVWriter(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, w.WriteScores(context.Background(), []float64{1}))
}

func TestNewSessionFolder(t *testing.T) {
	dir := t.TempDir()

	p, err := NewSessionFolder(dir, "participant")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "participant_0001"), p)

	require.NoError(t, os.Mkdir(filepath.Join(dir, "other_0007"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "notes"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x_0099"), nil, 0o644))

	p, err = NewSessionFolder(dir, "participant")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "participant_0008"), p)
	assert.DirExists(t, p)
}

func TestNewSessionFolderCreatesParent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	p, err := NewSessionFolder(dir, "s")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "s_0001"), p)
}

func TestColumnIdent(t *testing.T) {
	assert.Equal(t, "wrist_gyroscope_x_deg_s", columnIdent("Wrist Gyroscope X (deg/s)"))
	assert.Equal(t, "difference_pitch_deg", columnIdent("Difference Pitch (deg)"))
	seen := map[string]bool{}
	for _, c := range valueColumns() {
		assert.False(t, seen[c], c)
		seen[c] = true
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := OpenDB(":memory:")
	require.NoError(t, err)
	defer db.Close()

	w := db.Session("s-1", t0)
	tbl, err := BuildSamples(fillStore(3))
	require.NoError(t, err)
	require.NoError(t, w.WriteSamples(ctx, tbl))
	require.NoError(t, w.WriteIntervals(ctx, []segment.Interval{{Start: 1, End: 3}}))
	require.NoError(t, w.WriteScores(ctx, []float64{2.5, 4.5}))

	rows, incomplete, raw, err := db.SampleSummary(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, 3, rows)
	assert.Equal(t, 0, incomplete)
	assert.False(t, raw)

	scores, err := db.Scores(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, []float64{2.5, 4.5}, scores)

	ivs, err := db.Intervals(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, []segment.Interval{{Start: 1, End: 3}}, ivs)

	// a retried write replaces the earlier table
	require.NoError(t, w.WriteSamples(ctx, RawSamples(fillStore(3))))
	rows, incomplete, raw, err = db.SampleSummary(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, 4, rows)
	assert.Equal(t, 1, incomplete)
	assert.True(t, raw)
}

func TestSQLiteFileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "fatigue.db")
	db, err := OpenDB(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())
	assert.FileExists(t, path)
}

type failingWriter struct{ err error }

func (f failingWriter) WriteSamples(context.Context, SampleTable) error          { return f.err }
func (f failingWriter) WriteIntervals(context.Context, []segment.Interval) error { return f.err }
func (f failingWriter) WriteScores(context.Context, []float64) error             { return f.err }

func TestMultiWriterJoinsErrors(t *testing.T) {
	dir := t.TempDir()
	boom := errors.New("boom")
	w := MultiWriter(NewCSVWriter(dir), failingWriter{err: boom})

	err := w.WriteScores(context.Background(), []float64{1})
	assert.ErrorIs(t, err, boom)
	assert.FileExists(t, filepath.Join(dir, PredictionsFile))

	assert.NoError(t, MultiWriter(NewCSVWriter(dir)).WriteScores(context.Background(), nil))
}

func TestReadSamplesNormalized(t *testing.T) {
	dir := t.TempDir()
	tbl, err := BuildSamples(fillStore(3))
	require.NoError(t, err)
	require.NoError(t, NewCSVWriter(dir).WriteSamples(context.Background(), tbl))

	got, err := ReadSamplesFile(filepath.Join(dir, SamplesFile))
	require.NoError(t, err)
	assert.False(t, got.Raw)
	require.Len(t, got.Rows, 3)
	assert.Equal(t, 40.0, got.Rows[2].OffsetMS())
	assert.Equal(t, tbl.Rows[2].Cells, got.Rows[2].Cells)
}

func TestReadSamplesRawKeepsMissingCells(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, NewCSVWriter(dir).WriteSamples(context.Background(), RawSamples(fillStore(2))))

	got, err := ReadSamplesFile(filepath.Join(dir, SamplesFile))
	require.NoError(t, err)
	assert.True(t, got.Raw)
	require.Len(t, got.Rows, 3)
	assert.Equal(t, 40.0, got.Rows[2].OffsetMS())
	assert.True(t, got.Rows[2].Cells[samples.WristPitch].Valid)
	assert.False(t, got.Rows[2].Cells[samples.ArmPitch].Valid)
}

func TestReadSamplesRejectsBadInput(t *testing.T) {
	header := OffsetIndexName + "," + strings.Join(Columns(), ",")
	row := "0" + strings.Repeat(",1", len(Columns()))
	tests := []struct {
		name string
		in   string
	}{
		{name: "empty", in: ""},
		{name: "short header", in: "Timestamp (ms),a,b\n"},
		{name: "unknown index", in: strings.Replace(header, OffsetIndexName, "Time", 1) + "\n"},
		{name: "renamed column", in: strings.Replace(header, "Arm Yaw (deg)", "Arm Heading", 1) + "\n"},
		{name: "short row", in: header + "\n0,1,2\n"},
		{name: "bad value", in: header + "\n" + strings.Replace(row, ",1", ",x", 1) + "\n"},
		{name: "bad offset", in: header + "\n" + "z" + row[1:] + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadSamples(strings.NewReader(tt.in))
			assert.Error(t, err)
		})
	}

	got, err := ReadSamples(strings.NewReader(header + "\n" + row + "\n"))
	require.NoError(t, err)
	require.Len(t, got.Rows, 1)
	assert.True(t, got.Rows[0].Complete())
}
