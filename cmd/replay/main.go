// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"fmt"
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
	input := flag.String("input", "", "imu_data.csv recording to replay")
	realtime := flag.Bool("realtime", false, "keep the recorded sample spacing")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "usage: replay -input <participant>/imu_data.csv [-config file] [-realtime]")
		os.Exit(2)
	}
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	zl, err := logger.New(cfg.LogLevel, cfg.LogFormat, "fatigue-replay")
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := app.RunReplay(ctx, cfg, *input, *realtime, zl)
	if err != nil {
		zl.Fatal("replay failed", zap.Error(err))
	}
	fmt.Printf("fatigue: %s after %d repetitions\n", st.Display, st.Peaks)
}
