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
	mock := flag.Bool("mock", false, "publish a synthetic curl set instead of reading the sensors")
	flag.Parse()

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	zl, err := logger.New(cfg.LogLevel, cfg.LogFormat, "fatigue-imu-producer")
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zl.Info("starting IMU producer (wrist + arm → MQTT)", zap.Bool("mock", *mock))
	if err := app.RunIMUProducer(ctx, cfg, *mock, zl); err != nil {
		zl.Fatal("producer failed", zap.Error(err))
	}
}
