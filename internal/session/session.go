// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package session runs the online fatigue pipeline for one collection
// session: samples in, repetitions segmented, windows scored.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relabs-tech/fatigue_computer/internal/export"
	"github.com/relabs-tech/fatigue_computer/internal/fatigue"
	"github.com/relabs-tech/fatigue_computer/internal/features"
	"github.com/relabs-tech/fatigue_computer/internal/imu"
	"github.com/relabs-tech/fatigue_computer/internal/logger"
	"github.com/relabs-tech/fatigue_computer/internal/model"
	"github.com/relabs-tech/fatigue_computer/internal/normalize"
	"github.com/relabs-tech/fatigue_computer/internal/orientation"
	"github.com/relabs-tech/fatigue_computer/internal/samples"
	"github.com/relabs-tech/fatigue_computer/internal/segment"
)

// ErrSessionEnded is returned by End after the first call.
var ErrSessionEnded = errors.New("session already ended")

// Pipeline defaults.
const (
	DefaultSampleIntervalMS  = 20.0
	DefaultSmoothingWindowMS = 100.0
)

// Config wires one session. Model and Normalizer are required.
type Config struct {
	Model      model.Sequence
	Normalizer *normalize.Normalizer
	// Features overrides the model's feature selection.
	Features []int

	PeakThreshold     float64
	SampleIntervalMS  float64
	SmoothingWindowMS float64

	Logger *zap.Logger
	// Now stamps samples; time.Now when nil.
	Now func() time.Time
}

// State is the externally visible snapshot of a session.
type State struct {
	SessionID string `json:"session_id"`
	fatigue.State
	Display   string `json:"display"`
	Intervals int    `json:"intervals"`
	Samples   int    `json:"samples"`
	Ended     bool   `json:"ended"`
}

// Session owns all mutable pipeline state. Callbacks may come from any
// goroutine; they are serialized by one mutex.
type Session struct {
	mu sync.Mutex

	id        string
	startedAt time.Time
	now       func() time.Time
	log       *zap.Logger

	store     *samples.Store
	seg       *segment.Segmenter
	extractor *features.Extractor
	norm      *normalize.Normalizer
	engine    *fatigue.Engine

	ended bool
	subs  map[int]chan State
	next  int
}

// New starts a session.
func New(cfg Config) (*Session, error) {
	if cfg.Model == nil {
		return nil, errors.New("session: model is required")
	}
	if cfg.Normalizer == nil {
		return nil, errors.New("session: normalizer is required")
	}
	ext := features.NewExtractor(samples.NumColumns, features.WindowSamples(
		orDefault(cfg.SmoothingWindowMS, DefaultSmoothingWindowMS),
		orDefault(cfg.SampleIntervalMS, DefaultSampleIntervalMS)))
	if cfg.Normalizer.Len() != ext.Len() {
		return nil, fmt.Errorf("session: normalizer width %d, feature vectors have %d", cfg.Normalizer.Len(), ext.Len())
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	s := &Session{
		id:        uuid.NewString(),
		startedAt: now(),
		now:       now,
		store:     samples.NewStore(),
		seg:       segment.New(orDefault(cfg.PeakThreshold, segment.DefaultPeakThreshold)),
		extractor: ext,
		norm:      cfg.Normalizer,
		engine:    fatigue.NewEngine(cfg.Model, cfg.Features),
		subs:      make(map[int]chan State),
	}
	s.log = logger.Component(cfg.Logger, "session").With(zap.String("session_id", s.id))
	s.log.Info("session started",
		zap.Float64("peak_threshold", s.seg.Threshold()),
		zap.Int("smoothing_window", ext.Window()),
		zap.Ints("features", s.engine.Indices()))
	return s, nil
}

func orDefault(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}

// ID is the session's unique id.
func (s *Session) ID() string { return s.id }

// StartedAt is when the session was created.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// OnOrientation records one orientation sample for limb. Every new pitch
// difference is fed to the segmenter; a completed interval is scored
// before this returns. Samples after End are ignored.
func (s *Session) OnOrientation(limb samples.Limb, p orientation.Pose) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	_, pitch, ok := s.store.RecordOrientation(limb, p, s.now())
	if !ok {
		return
	}
	peaks := s.seg.PeakCount()
	iv, complete := s.seg.Push(pitch)
	if s.seg.PeakCount() != peaks {
		s.engine.SetPeaks(s.seg.PeakCount())
		s.log.Debug("repetition peak", zap.Int("peaks", s.seg.PeakCount()))
	}
	if complete {
		s.scoreInterval(iv)
	}
	if complete || s.seg.PeakCount() != peaks {
		s.publish()
	}
}

// OnMotion records one inertial sample for limb. Samples after End are
// ignored.
func (s *Session) OnMotion(limb samples.Limb, m imu.Motion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.store.RecordMotion(limb, m)
}

// scoreInterval runs feature extraction, normalization and inference for
// one interval. Failures are logged and leave the fatigue state as it was.
func (s *Session) scoreInterval(iv segment.Interval) {
	log := s.log.With(zap.Int("start", iv.Start), zap.Int("end", iv.End))
	rows := s.store.Rows(iv.Start, iv.End)
	if len(rows) == 0 {
		log.Warn("interval has no complete rows, skipping")
		return
	}
	if len(rows) < iv.Len() {
		log.Debug("interval rows incomplete", zap.Int("rows", len(rows)), zap.Int("span", iv.Len()))
	}
	vec, err := s.norm.Normalize(s.extractor.Extract(rows))
	if err != nil {
		log.Error("normalize window", zap.Error(err))
		return
	}
	st, err := s.engine.Append(vec)
	if err != nil {
		log.Error("score window", zap.Error(err))
		return
	}
	log.Info("window scored",
		zap.Float64("score", st.Score),
		zap.String("label", string(st.Label)),
		zap.Int("windows", st.Windows))
}

func (s *Session) snapshot() State {
	st := s.engine.State()
	return State{
		SessionID: s.id,
		State:     st,
		Display:   st.Display(),
		Intervals: len(s.seg.Intervals()),
		Samples:   s.store.Len(),
		Ended:     s.ended,
	}
}

// State returns the current snapshot.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// publish offers the snapshot to every subscriber without blocking; a
// subscriber whose buffer is full misses this update.
func (s *Session) publish() {
	st := s.snapshot()
	for _, ch := range s.subs {
		select {
		case ch <- st:
		default:
		}
	}
}

// Subscribe returns a channel receiving a snapshot after every state
// change, and a function that unsubscribes and closes it. The channel is
// also closed when the session ends.
func (s *Session) Subscribe(buffer int) (<-chan State, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan State, buffer)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		close(ch)
		return ch, func() {}
	}
	id := s.next
	s.next++
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

// Intervals returns every interval found so far.
func (s *Session) Intervals() []segment.Interval {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seg.Intervals()
}

// Scores returns every score produced so far.
func (s *Session) Scores() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Scores()
}

// Peaks returns the current peak indices.
func (s *Session) Peaks() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seg.Peaks()
}

// End stops accepting samples and hands the session outputs to w. The
// normalized sample table is written first; if that fails the raw table is
// written instead. Intervals and scores are always written. A second call
// returns ErrSessionEnded.
func (s *Session) End(ctx context.Context, w export.Writer) error {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return ErrSessionEnded
	}
	s.ended = true
	final := s.snapshot()
	for id, ch := range s.subs {
		select {
		case ch <- final:
		default:
		}
		close(ch)
		delete(s.subs, id)
	}
	s.mu.Unlock()

	// the store is frozen once ended is set
	var errs []error
	primary, err := export.BuildSamples(s.store)
	if err == nil {
		err = w.WriteSamples(ctx, primary)
	}
	if err != nil {
		s.log.Warn("sample table write failed, writing raw rows", zap.Error(err))
		raw := export.RawSamples(s.store)
		if ferr := w.WriteSamples(ctx, raw); ferr != nil {
			errs = append(errs, fmt.Errorf("write samples: %w", errors.Join(err, ferr)))
		} else {
			s.log.Info("raw sample table written", zap.Int("rows", len(raw.Rows)))
		}
	} else {
		s.log.Info("sample table written", zap.Int("rows", len(primary.Rows)))
	}

	if err := w.WriteIntervals(ctx, s.seg.Intervals()); err != nil {
		errs = append(errs, fmt.Errorf("write intervals: %w", err))
	}
	if err := w.WriteScores(ctx, s.engine.Scores()); err != nil {
		errs = append(errs, fmt.Errorf("write scores: %w", err))
	}
	s.log.Info("session ended",
		zap.Int("intervals", final.Intervals),
		zap.Int("windows", final.Windows),
		zap.Int("samples", final.Samples))
	return errors.Join(errs...)
}
