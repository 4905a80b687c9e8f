// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/fatigue_computer/internal/config"
	"github.com/relabs-tech/fatigue_computer/internal/export"
	"github.com/relabs-tech/fatigue_computer/internal/features"
	"github.com/relabs-tech/fatigue_computer/internal/model"
	"github.com/relabs-tech/fatigue_computer/internal/normalize"
	"github.com/relabs-tech/fatigue_computer/internal/samples"
	"github.com/relabs-tech/fatigue_computer/internal/session"
)

// newSession loads the model artifacts named in cfg and starts a session.
func newSession(cfg *config.Config, log *zap.Logger, now func() time.Time) (*session.Session, error) {
	net, err := model.LoadNetwork(cfg.ModelPath)
	if err != nil {
		return nil, err
	}
	scaler, err := model.LoadScaler(cfg.ScalerPath, samples.NumColumns*features.PerColumn)
	if err != nil {
		return nil, err
	}
	norm, err := normalize.New(scaler.Mean, scaler.Scale)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", model.ErrArtifact, cfg.ScalerPath, err)
	}
	log.Info("model loaded",
		zap.String("model", net.Name()),
		zap.String("path", cfg.ModelPath),
		zap.Int("input_size", net.InputSize()))

	return session.New(session.Config{
		Model:             net,
		Normalizer:        norm,
		Features:          net.Features(),
		PeakThreshold:     cfg.PeakThresholdDeg,
		SampleIntervalMS:  cfg.SampleIntervalMS,
		SmoothingWindowMS: cfg.SmoothingWindowMS,
		Logger:            log,
		Now:               now,
	})
}

// finishSession ends s and writes its outputs into a fresh participant
// folder, plus the SQLite database when one is configured. When the folder
// cannot be created the CSV files go to a temporary directory instead. It
// returns the directory the CSV files were written to.
func finishSession(ctx context.Context, s *session.Session, cfg *config.Config, log *zap.Logger) (string, error) {
	var errs []error
	dir, err := export.NewSessionFolder(cfg.OutputDir, cfg.OutputPrefix)
	if err != nil {
		errs = append(errs, err)
		dir, err = os.MkdirTemp("", cfg.OutputPrefix+"_")
		if err != nil {
			errs = append(errs, fmt.Errorf("create fallback dir: %w", err))
			dir = ""
		} else {
			log.Warn("output dir unusable, writing session to temp dir",
				zap.String("output_dir", cfg.OutputDir),
				zap.String("dir", dir))
		}
	}

	var writers []export.Writer
	if dir != "" {
		writers = append(writers, export.NewCSVWriter(dir))
	}
	if cfg.SQLitePath != "" {
		db, err := export.OpenDB(cfg.SQLitePath)
		if err != nil {
			errs = append(errs, err)
		} else {
			defer db.Close()
			writers = append(writers, db.Session(s.ID(), s.StartedAt()))
		}
	}

	if err := s.End(ctx, export.MultiWriter(writers...)); err != nil {
		errs = append(errs, err)
	}
	log.Info("session saved", zap.String("dir", dir), zap.String("session_id", s.ID()))
	return dir, errors.Join(errs...)
}
