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

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	zl, err := logger.New(cfg.LogLevel, "console", "fatigue-console")
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunConsoleMQTT(ctx, cfg, os.Stdout, zl); err != nil {
		zl.Fatal("console failed", zap.Error(err))
	}
}
