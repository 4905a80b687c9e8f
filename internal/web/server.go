// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package web serves the live fatigue estimate: a JSON endpoint, a PNG
// badge and a websocket stream of snapshots.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/relabs-tech/fatigue_computer/internal/display"
	"github.com/relabs-tech/fatigue_computer/internal/logger"
	"github.com/relabs-tech/fatigue_computer/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins on the local network
	},
}

// Server keeps the latest snapshot and fans it out to websocket clients.
type Server struct {
	mu    sync.RWMutex
	state session.State
	have  bool

	hub *Hub
	mux *http.ServeMux
	log *zap.Logger
}

// NewServer builds the handler tree. staticDir, when set, is served at "/".
func NewServer(staticDir string, log *zap.Logger) *Server {
	s := &Server{
		hub: NewHub(),
		mux: http.NewServeMux(),
		log: logger.Component(log, "web"),
	}
	s.mux.HandleFunc("/api/fatigue", s.handleState)
	s.mux.HandleFunc("/api/fatigue.png", s.handleBadge)
	s.mux.HandleFunc("/ws/fatigue", s.handleStream)
	if staticDir != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// Publish records the snapshot and pushes it to every connected client.
func (s *Server) Publish(_ context.Context, st session.State) error {
	s.mu.Lock()
	s.state = st
	s.have = true
	s.mu.Unlock()
	s.hub.Broadcast(st)
	return nil
}

func (s *Server) latest() (session.State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.have
}

// Close disconnects every websocket client.
func (s *Server) Close() { s.hub.Close() }

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	st, ok := s.latest()
	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(st); err != nil {
		s.log.Warn("json encode", zap.Error(err))
	}
}

// handleBadge renders the OLED view; before any data it shows "None".
func (s *Server) handleBadge(w http.ResponseWriter, r *http.Request) {
	st, _ := s.latest()
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := display.WritePNG(w, st); err != nil {
		s.log.Warn("png encode", zap.Error(err))
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade", zap.Error(err))
		return
	}
	c := s.hub.register(conn, s.latest)
	s.log.Debug("client connected", zap.String("remote", r.RemoteAddr), zap.Int("clients", s.hub.Len()))
	go c.writeLoop()
	c.readLoop()
	s.hub.unregister(c)
	s.log.Debug("client disconnected", zap.String("remote", r.RemoteAddr))
}
