// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/fatigue_computer/internal/config"
	"github.com/relabs-tech/fatigue_computer/internal/logger"
	"github.com/relabs-tech/fatigue_computer/internal/samples"
	"github.com/relabs-tech/fatigue_computer/internal/session"
	"github.com/relabs-tech/fatigue_computer/internal/sink"
	"github.com/relabs-tech/fatigue_computer/internal/transport"
	"github.com/relabs-tech/fatigue_computer/internal/web"
)

// RunMonitor runs one collection session until ctx is cancelled or the
// serial links close, then writes the session outputs.
func RunMonitor(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	log = logger.Component(log, "monitor")

	s, err := newSession(cfg, log, nil)
	if err != nil {
		return err
	}
	updates, _ := s.Subscribe(16)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	client, err := transport.Connect(cfg.MQTTBroker, cfg.MQTTClientIDMonitor, log)
	if err != nil {
		if cfg.SampleSource == config.SourceMQTT {
			return err
		}
		log.Warn("MQTT unavailable, fatigue state will not be published", zap.Error(err))
		client = nil
	}
	if client != nil {
		defer client.Disconnect(250)
	}

	// sinks
	var pubs []sink.Publisher
	var background sync.WaitGroup
	if client != nil {
		pubs = append(pubs, sink.NewMQTTPublisher(client, cfg.TopicFatigue))
	}
	if cfg.RedisAddr != "" {
		rc := sink.NewRedisClient(cfg.RedisAddr, cfg.RedisDB)
		defer rc.Close()
		if err := rc.Ping(runCtx).Err(); err != nil {
			log.Warn("redis unavailable, caching disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			pubs = append(pubs, sink.NewRedisPublisher(rc, cfg.RedisKeyPrefix, 0))
		}
	}
	if cfg.WebServerPort > 0 {
		srv := web.NewServer("web", log)
		defer srv.Close()
		pubs = append(pubs, srv)
		background.Add(1)
		go func() {
			defer background.Done()
			if err := serveHTTP(runCtx, cfg.WebServerPort, srv, log); err != nil {
				log.Error("web server stopped", zap.Error(err))
			}
		}()
	}
	screen, closeScreen := startDisplay(runCtx, cfg, log)
	if screen != nil {
		pubs = append(pubs, screen)
	}

	sinkDone := make(chan struct{})
	go func() {
		defer close(sinkDone)
		// drains until End closes the channel
		sink.Run(context.Background(), updates, log, pubs...)
	}()

	// sources
	var srcErr error
	switch cfg.SampleSource {
	case config.SourceSerial:
		srcErr = runSerial(runCtx, cfg, s, log)
	default:
		srcErr = runMQTT(runCtx, client, cfg, s, log)
	}
	if srcErr != nil && !errors.Is(srcErr, context.Canceled) {
		log.Error("sample source stopped", zap.Error(srcErr))
	}

	endCtx, endCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer endCancel()
	dir, endErr := finishSession(endCtx, s, cfg, log)

	<-sinkDone
	cancel()
	background.Wait()
	closeScreen()

	final := s.State()
	log.Info("monitor stopped",
		zap.String("dir", dir),
		zap.String("fatigue", final.Display),
		zap.Int("intervals", final.Intervals))
	if srcErr != nil && !errors.Is(srcErr, context.Canceled) {
		return errors.Join(srcErr, endErr)
	}
	return endErr
}

func runMQTT(ctx context.Context, client mqtt.Client, cfg *config.Config, s *session.Session, log *zap.Logger) error {
	sub := transport.NewSubscriber(client, transport.Topics{
		EulerWrist:    cfg.TopicEulerWrist,
		EulerArm:      cfg.TopicEulerArm,
		InertialWrist: cfg.TopicInertialWrist,
		InertialArm:   cfg.TopicInertialArm,
	}, s, log)
	if err := sub.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	if err := sub.Stop(); err != nil {
		log.Warn("unsubscribe", zap.Error(err))
	}
	return ctx.Err()
}

// runSerial streams both x-IMU3 links until ctx is done or either link
// fails or closes.
func runSerial(ctx context.Context, cfg *config.Config, s *session.Session, log *zap.Logger) error {
	ports := map[samples.Limb]string{
		samples.Wrist: cfg.SerialWristPort,
		samples.Arm:   cfg.SerialArmPort,
	}
	links := make(map[samples.Limb]io.ReadWriteCloser, len(ports))
	closeAll := func() {
		for _, l := range links {
			_ = l.Close()
		}
	}
	for limb, port := range ports {
		l, err := transport.OpenSerial(port, cfg.SerialBaudRate)
		if err != nil {
			closeAll()
			return fmt.Errorf("%s: %w", limb, err)
		}
		links[limb] = l
		log.Info("serial link open", zap.String("limb", limb.String()), zap.String("port", port))
	}

	errCh := make(chan error, len(links))
	for limb, l := range links {
		d := transport.NewDevice(limb, l, s, log)
		go func() { errCh <- d.Run(ctx) }()
	}

	var err error
	pending := len(links)
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case err = <-errCh:
		pending--
		if err == nil {
			err = errors.New("serial link closed")
		}
	}
	// closing unblocks the reads of the remaining devices
	closeAll()
	for ; pending > 0; pending-- {
		<-errCh
	}
	return err
}
