// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/relabs-tech/fatigue_computer/internal/app"
	"github.com/relabs-tech/fatigue_computer/internal/config"
	"github.com/relabs-tech/fatigue_computer/internal/logger"
)

func main() {
	configPath := flag.String("config", "./fatigue_config.txt", "path to configuration file")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	zl, err := logger.New(cfg.LogLevel, cfg.LogFormat, "fatigue-monitor")
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zl.Info("starting fatigue monitor (samples → fatigue estimate)",
		zap.String("config", *configPath),
		zap.String("source", cfg.SampleSource))
	if err := app.RunMonitor(ctx, cfg, zl); err != nil {
		zl.Fatal("monitor failed", zap.Error(err))
	}
}
