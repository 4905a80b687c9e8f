// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package web

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/fatigue_computer/internal/session"
)

const (
	clientBuffer = 8
	writeWait    = 5 * time.Second
)

// Hub tracks websocket clients. Broadcast never blocks: a client that
// falls behind loses its oldest queued snapshots, the latest one still
// arrives.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

type client struct {
	conn *websocket.Conn
	send chan session.State
	done chan struct{}
	once sync.Once
}

// register adds a client and queues the current snapshot, if any, under the
// hub lock so it cannot overtake a concurrent broadcast.
func (h *Hub) register(conn *websocket.Conn, current func() (session.State, bool)) *client {
	c := &client{
		conn: conn,
		send: make(chan session.State, clientBuffer),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		c.stop()
		return c
	}
	h.clients[c] = struct{}{}
	if st, ok := current(); ok {
		c.offer(st)
	}
	return c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.stop()
}

// Len is the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast offers st to every client.
func (h *Hub) Broadcast(st session.State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.offer(st)
	}
}

// Close stops every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		c.stop()
		delete(h.clients, c)
	}
}

// offer queues st, dropping the oldest queued snapshot when full.
func (c *client) offer(st session.State) {
	for {
		select {
		case c.send <- st:
			return
		default:
		}
		select {
		case <-c.send:
		default:
		}
	}
}

func (c *client) stop() {
	c.once.Do(func() { close(c.done) })
}

// writeLoop owns all writes and closes the connection on exit.
func (c *client) writeLoop() {
	defer c.conn.Close()
	for {
		select {
		case st := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(st); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// readLoop discards client messages and returns when the connection drops.
func (c *client) readLoop() {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
