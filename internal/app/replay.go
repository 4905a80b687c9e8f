// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/fatigue_computer/internal/config"
	"github.com/relabs-tech/fatigue_computer/internal/export"
	"github.com/relabs-tech/fatigue_computer/internal/imu"
	"github.com/relabs-tech/fatigue_computer/internal/logger"
	"github.com/relabs-tech/fatigue_computer/internal/orientation"
	"github.com/relabs-tech/fatigue_computer/internal/samples"
	"github.com/relabs-tech/fatigue_computer/internal/session"
	"github.com/relabs-tech/fatigue_computer/internal/transport"
)

// replayClock stamps samples with the recorded offsets instead of wall time.
type replayClock struct {
	mu   sync.Mutex
	base time.Time
	at   time.Duration
}

func (c *replayClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.base.Add(c.at)
}

func (c *replayClock) set(d time.Duration) {
	c.mu.Lock()
	c.at = d
	c.mu.Unlock()
}

func cellGroup(cells []export.Cell, first, n int) ([]float64, bool) {
	out := make([]float64, n)
	for i := range out {
		c := cells[first+i]
		if !c.Valid {
			return nil, false
		}
		out[i] = c.Value
	}
	return out, true
}

func rowMotion(cells []export.Cell, first int) (imu.Motion, bool) {
	v, ok := cellGroup(cells, first, 6)
	if !ok {
		return imu.Motion{}, false
	}
	return imu.Motion{GyroX: v[0], GyroY: v[1], GyroZ: v[2], AccelX: v[3], AccelY: v[4], AccelZ: v[5]}, true
}

func rowPose(cells []export.Cell, first int) (orientation.Pose, bool) {
	v, ok := cellGroup(cells, first, 3)
	if !ok {
		return orientation.Pose{}, false
	}
	return orientation.Pose{Roll: v[0], Pitch: v[1], Yaw: v[2]}, true
}

// feedTable drives sink with every recorded row: inertial samples first,
// then orientation, wrist before arm. Groups with a missing cell are
// skipped. When realtime is set the original sample spacing is kept.
func feedTable(ctx context.Context, t export.SampleTable, sink transport.Sink, clock *replayClock, realtime bool) error {
	var prev time.Duration
	for i, r := range t.Rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if realtime && i > 0 && r.Offset > prev {
			select {
			case <-time.After(r.Offset - prev):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		prev = r.Offset
		if clock != nil {
			clock.set(r.Offset)
		}

		if m, ok := rowMotion(r.Cells, samples.WristGyroX); ok {
			sink.OnMotion(samples.Wrist, m)
		}
		if m, ok := rowMotion(r.Cells, samples.ArmGyroX); ok {
			sink.OnMotion(samples.Arm, m)
		}
		if p, ok := rowPose(r.Cells, samples.WristRoll); ok {
			sink.OnOrientation(samples.Wrist, p)
		}
		if p, ok := rowPose(r.Cells, samples.ArmRoll); ok {
			sink.OnOrientation(samples.Arm, p)
		}
	}
	return nil
}

// RunReplay runs a recorded imu_data.csv through a fresh session and saves
// the outputs in a new participant folder. It returns the final state.
func RunReplay(ctx context.Context, cfg *config.Config, path string, realtime bool, log *zap.Logger) (session.State, error) {
	log = logger.Component(log, "replay").With(zap.String("input", path))
	t, err := export.ReadSamplesFile(path)
	if err != nil {
		return session.State{}, err
	}
	log.Info("replaying", zap.Int("rows", len(t.Rows)), zap.Bool("raw", t.Raw))

	clock := &replayClock{base: time.Now()}
	s, err := newSession(cfg, log, clock.Now)
	if err != nil {
		return session.State{}, err
	}
	feedErr := feedTable(ctx, t, s, clock, realtime)
	if feedErr != nil {
		log.Warn("replay interrupted", zap.Error(feedErr))
	}

	endCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := finishSession(endCtx, s, cfg, log); err != nil {
		return s.State(), err
	}
	st := s.State()
	log.Info("replay complete",
		zap.String("fatigue", st.Display),
		zap.Int("intervals", st.Intervals),
		zap.Int("windows", st.Windows))
	return st, feedErr
}
