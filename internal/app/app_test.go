// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/relabs-tech/fatigue_computer/internal/config"
	"github.com/relabs-tech/fatigue_computer/internal/export"
	"github.com/relabs-tech/fatigue_computer/internal/fatigue"
	"github.com/relabs-tech/fatigue_computer/internal/features"
	"github.com/relabs-tech/fatigue_computer/internal/imu"
	"github.com/relabs-tech/fatigue_computer/internal/model"
	"github.com/relabs-tech/fatigue_computer/internal/orientation"
	"github.com/relabs-tech/fatigue_computer/internal/samples"
	"github.com/relabs-tech/fatigue_computer/internal/session"
)

type call struct {
	kind string
	limb samples.Limb
	pose orientation.Pose
	m    imu.Motion
}

type fakeSink struct {
	mu    sync.Mutex
	calls []call
}

func (f *fakeSink) OnOrientation(limb samples.Limb, p orientation.Pose) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{kind: "pose", limb: limb, pose: p})
}

func (f *fakeSink) OnMotion(limb samples.Limb, m imu.Motion) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{kind: "motion", limb: limb, m: m})
}

func fullRow(offset time.Duration, base float64) export.Row {
	cells := make([]export.Cell, samples.NumColumns)
	for i := range cells {
		cells[i] = export.Cell{Value: base + float64(i), Valid: true}
	}
	return export.Row{Offset: offset, Cells: cells}
}

func TestFeedTableOrderAndSkips(t *testing.T) {
	partial := fullRow(20*time.Millisecond, 100)
	partial.Cells[samples.ArmPitch] = export.Cell{}
	partial.Cells[samples.WristAccelY] = export.Cell{}
	tbl := export.SampleTable{Rows: []export.Row{fullRow(0, 0), partial}}

	sink := &fakeSink{}
	clock := &replayClock{base: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, feedTable(context.Background(), tbl, sink, clock, false))

	require.Len(t, sink.calls, 6)
	kinds := make([]string, 0, len(sink.calls))
	for _, c := range sink.calls {
		kinds = append(kinds, c.kind+":"+c.limb.String())
	}
	assert.Equal(t, []string{
		"motion:wrist", "motion:arm", "pose:wrist", "pose:arm",
		"motion:arm", "pose:wrist",
	}, kinds)

	first := sink.calls[0].m
	assert.Equal(t, imu.Motion{GyroX: 0, GyroY: 1, GyroZ: 2, AccelX: 3, AccelY: 4, AccelZ: 5}, first)
	assert.Equal(t, orientation.Pose{Roll: 15, Pitch: 16, Yaw: 17}, sink.calls[3].pose)
	assert.Equal(t, clock.base.Add(20*time.Millisecond), clock.Now())
}

func TestFeedTableCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink := &fakeSink{}
	tbl := export.SampleTable{Rows: []export.Row{fullRow(0, 0)}}
	assert.ErrorIs(t, feedTable(ctx, tbl, sink, nil, true), context.Canceled)
	assert.Empty(t, sink.calls)
}

func TestCurlLimbSeesGravity(t *testing.T) {
	l := &curlLimb{src: orientation.NewMockSource(true)}
	_, m, err := l.Sample(0.02)
	require.NoError(t, err)
	assert.InDelta(t, 1, m.AccelMagnitude(), 1e-12)
	assert.Zero(t, m.GyroMagnitude(), "no rate before the second sample")

	_, m, err = l.Sample(0.02)
	require.NoError(t, err)
	assert.InDelta(t, 1, m.AccelMagnitude(), 1e-12)
}

type fixedRaw struct {
	raw imu.IMURaw
	err error
}

func (f fixedRaw) ReadRaw() (imu.IMURaw, error) { return f.raw, f.err }

func TestSensorLimbFusesLevelSensor(t *testing.T) {
	l := &sensorLimb{
		src:    fixedRaw{raw: imu.IMURaw{Az: 16384, Gz: 131}},
		filter: orientation.NewComplementary(filterAlpha),
	}
	pose, m, err := l.Sample(0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, m.AccelZ)
	assert.Equal(t, 1.0, m.GyroZ)
	assert.Equal(t, orientation.Pose{}, pose)

	pose, _, err = l.Sample(0.5)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, pose.Yaw, 1e-12)

	l.src = fixedRaw{err: errors.New("spi")}
	_, _, err = l.Sample(0.02)
	assert.Error(t, err)
}

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t doneToken) Error() error { return t.err }

type fakePublisher struct {
	topics   []string
	payloads [][]byte
	failOn   string
}

func (p *fakePublisher) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload.([]byte))
	if topic == p.failOn {
		return doneToken{err: errors.New("broker gone")}
	}
	return doneToken{}
}

type staticLimb struct {
	pose orientation.Pose
	m    imu.Motion
	err  error
}

func (s staticLimb) Sample(float64) (orientation.Pose, imu.Motion, error) { return s.pose, s.m, s.err }

func TestProducerStep(t *testing.T) {
	cfg := config.Default()
	pub := &fakePublisher{}
	p := newProducer(pub, cfg,
		staticLimb{pose: orientation.Pose{Pitch: -5}, m: imu.Motion{AccelZ: 1}},
		staticLimb{pose: orientation.Pose{Pitch: 40}},
		zap.NewNop())

	require.NoError(t, p.step(0.02))
	assert.Equal(t, []string{
		cfg.TopicInertialWrist, cfg.TopicEulerWrist,
		cfg.TopicInertialArm, cfg.TopicEulerArm,
	}, pub.topics)

	var pose orientation.Pose
	require.NoError(t, json.Unmarshal(pub.payloads[3], &pose))
	assert.Equal(t, 40.0, pose.Pitch)
	var m imu.Motion
	require.NoError(t, json.Unmarshal(pub.payloads[0], &m))
	assert.Equal(t, 1.0, m.AccelZ)
}

func TestProducerStepKeepsGoingAfterFailure(t *testing.T) {
	cfg := config.Default()
	pub := &fakePublisher{failOn: cfg.TopicInertialArm}
	p := newProducer(pub, cfg,
		staticLimb{err: errors.New("spi timeout")},
		staticLimb{},
		zap.NewNop())

	err := p.step(0.02)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrist: spi timeout")
	assert.Contains(t, err.Error(), "broker gone")
	assert.Equal(t, []string{cfg.TopicInertialArm}, pub.topics)
}

func TestConsoleHandler(t *testing.T) {
	var out bytes.Buffer
	h := consoleHandler(&out)

	st := fatigue.State{Score: 4.2, Label: fatigue.LabelModerate, Valid: true, Windows: 3, Peaks: 8}
	payload, err := json.Marshal(session.State{SessionID: "abc", State: st, Display: st.Display(), Intervals: 3, Ended: true})
	require.NoError(t, err)
	require.NoError(t, h("fatigue/state", payload))
	line := out.String()
	assert.True(t, strings.HasPrefix(line, "[FATIGUE] Moderate (4.2)"), line)
	assert.Contains(t, line, "reps=  8")
	assert.Contains(t, line, "session=abc (ended)")

	assert.Error(t, h("fatigue/state", []byte("{")))
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

// replayFixture writes a constant-output network, an identity scaler and a
// recording of four curls into dir.
func replayFixture(t *testing.T, dir string) (*config.Config, string) {
	t.Helper()
	width := samples.NumColumns * features.PerColumn
	inputs := len(fatigue.DefaultFeatures)
	writeJSON(t, filepath.Join(dir, "rnn.json"), model.Artifact{
		Name: "constant",
		Layers: []model.LayerSpec{
			{
				Type: "simple_rnn", Units: 1, ReturnSequences: true,
				Kernel:          make2D(inputs, 1),
				RecurrentKernel: [][]float64{{0}},
			},
			{Type: "dense", Units: 1, Kernel: [][]float64{{1}}, Bias: json.RawMessage("[1.5]")},
		},
	})
	ones := make([]float64, width)
	for i := range ones {
		ones[i] = 1
	}
	writeJSON(t, filepath.Join(dir, "scaler.json"), model.Scaler{Mean: make([]float64, width), Scale: ones})

	store := samples.NewStore()
	at := time.Date(2026, 5, 6, 7, 0, 0, 0, time.UTC)
	var diffs []float64
	for r := 0; r < 4; r++ {
		diffs = append(diffs, 0, 30, 90, 30)
	}
	diffs = append(diffs, 0)
	for i, d := range diffs {
		f := float64(i)
		store.RecordOrientation(samples.Wrist, orientation.Pose{Roll: math.Sin(f), Pitch: -5, Yaw: 10}, at)
		store.RecordOrientation(samples.Arm, orientation.Pose{Roll: math.Cos(f), Pitch: d - 5, Yaw: 12}, at)
		store.RecordMotion(samples.Wrist, imu.Motion{GyroX: f, AccelZ: 1})
		store.RecordMotion(samples.Arm, imu.Motion{GyroY: -f, AccelZ: 1})
		at = at.Add(20 * time.Millisecond)
	}
	tbl, err := export.BuildSamples(store)
	require.NoError(t, err)
	rec := filepath.Join(dir, "recording")
	require.NoError(t, os.Mkdir(rec, 0o755))
	require.NoError(t, export.NewCSVWriter(rec).WriteSamples(context.Background(), tbl))

	cfg := config.Default()
	cfg.ModelPath = filepath.Join(dir, "rnn.json")
	cfg.ScalerPath = filepath.Join(dir, "scaler.json")
	cfg.OutputDir = filepath.Join(dir, "out")
	cfg.SQLitePath = filepath.Join(dir, "out", "sessions.db")
	return cfg, filepath.Join(rec, export.SamplesFile)
}

func make2D(rows, cols int) [][]float64 {
	out := make([][]float64, rows)
	for i := range out {
		out[i] = make([]float64, cols)
	}
	return out
}

func TestRunReplayEndToEnd(t *testing.T) {
	dir := t.TempDir()
	cfg, input := replayFixture(t, dir)

	st, err := RunReplay(context.Background(), cfg, input, false, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, st.Ended)
	assert.Equal(t, 2, st.Intervals)
	assert.Equal(t, 2, st.Windows)
	assert.Equal(t, fatigue.LabelLow, st.Label)
	assert.Equal(t, "Low (1.5)", st.Display)

	folder := filepath.Join(cfg.OutputDir, "participant_0001")
	for _, f := range []string{export.SamplesFile, export.RepetitionsFile, export.PredictionsFile} {
		assert.FileExists(t, filepath.Join(folder, f))
	}
	preds, err := os.ReadFile(filepath.Join(folder, export.PredictionsFile))
	require.NoError(t, err)
	assert.Equal(t, "1.5\n1.5\n", string(preds))

	db, err := export.OpenDB(cfg.SQLitePath)
	require.NoError(t, err)
	defer db.Close()
	scores, err := db.Scores(context.Background(), st.SessionID)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 1.5}, scores)

	// a second replay gets the next folder
	_, err = RunReplay(context.Background(), cfg, input, false, zap.NewNop())
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(cfg.OutputDir, "participant_0002"))
}

func TestRunReplayOutputDirUnusable(t *testing.T) {
	dir := t.TempDir()
	cfg, input := replayFixture(t, dir)
	t.Setenv("TMPDIR", filepath.Join(dir, "tmp"))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "tmp"), 0o755))
	cfg.OutputDir = filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(cfg.OutputDir, []byte("x"), 0o644))
	cfg.SQLitePath = filepath.Join(dir, "db", "sessions.db")

	st, err := RunReplay(context.Background(), cfg, input, false, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create output dir")
	assert.True(t, st.Ended)

	db, err := export.OpenDB(cfg.SQLitePath)
	require.NoError(t, err)
	defer db.Close()
	scores, err := db.Scores(context.Background(), st.SessionID)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 1.5}, scores)

	// the CSV files still land in a temp folder
	preds, err := filepath.Glob(filepath.Join(dir, "tmp", cfg.OutputPrefix+"_*", export.PredictionsFile))
	require.NoError(t, err)
	require.Len(t, preds, 1)
	data, err := os.ReadFile(preds[0])
	require.NoError(t, err)
	assert.Equal(t, "1.5\n1.5\n", string(data))
}

func TestRunReplayBadArtifacts(t *testing.T) {
	dir := t.TempDir()
	cfg, input := replayFixture(t, dir)
	cfg.ScalerPath = filepath.Join(dir, "missing.json")

	_, err := RunReplay(context.Background(), cfg, input, false, zap.NewNop())
	assert.ErrorIs(t, err, model.ErrArtifact)
}
