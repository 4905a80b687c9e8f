// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/relabs-tech/fatigue_computer/internal/session"
)

// ErrNoState is returned by Latest before any session has published.
var ErrNoState = errors.New("no fatigue state cached")

// RedisPublisher caches snapshots. Key layout under the prefix:
//
//	<prefix>:latest                 id of the most recent session
//	<prefix>:session:<id>           JSON snapshot
//	<prefix>:session:<id>:scores    stream, one entry per scored window
type RedisPublisher struct {
	client *redis.Client
	prefix string
	ttl    time.Duration

	mu      sync.Mutex
	windows map[string]int
}

// NewRedisClient opens a client; it does not dial until first use.
func NewRedisClient(addr string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
}

// NewRedisPublisher caches snapshots under prefix. A zero ttl keeps keys
// forever.
func NewRedisPublisher(client *redis.Client, prefix string, ttl time.Duration) *RedisPublisher {
	return &RedisPublisher{
		client:  client,
		prefix:  prefix,
		ttl:     ttl,
		windows: make(map[string]int),
	}
}

func (p *RedisPublisher) latestKey() string { return p.prefix + ":latest" }

func (p *RedisPublisher) sessionKey(id string) string { return p.prefix + ":session:" + id }

func (p *RedisPublisher) scoresKey(id string) string { return p.sessionKey(id) + ":scores" }

// Publish stores the snapshot and, when it carries a newly scored window,
// appends that score to the session's stream.
func (p *RedisPublisher) Publish(ctx context.Context, st session.State) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	p.mu.Lock()
	newWindow := st.Valid && st.Windows > p.windows[st.SessionID]
	p.mu.Unlock()

	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, p.sessionKey(st.SessionID), payload, p.ttl)
		pipe.Set(ctx, p.latestKey(), st.SessionID, p.ttl)
		if newWindow {
			pipe.XAdd(ctx, &redis.XAddArgs{
				Stream: p.scoresKey(st.SessionID),
				Values: map[string]interface{}{
					"window": strconv.Itoa(st.Windows),
					"score":  strconv.FormatFloat(st.Score, 'g', -1, 64),
					"label":  string(st.Label),
				},
			})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache state %s: %w", st.SessionID, err)
	}

	if newWindow {
		p.mu.Lock()
		p.windows[st.SessionID] = st.Windows
		p.mu.Unlock()
	}
	return nil
}

// Latest reads back the most recently published snapshot.
func (p *RedisPublisher) Latest(ctx context.Context) (session.State, error) {
	id, err := p.client.Get(ctx, p.latestKey()).Result()
	if errors.Is(err, redis.Nil) {
		return session.State{}, ErrNoState
	}
	if err != nil {
		return session.State{}, err
	}
	raw, err := p.client.Get(ctx, p.sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return session.State{}, ErrNoState
	}
	if err != nil {
		return session.State{}, err
	}
	var st session.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return session.State{}, fmt.Errorf("decode cached state: %w", err)
	}
	return st, nil
}

// Scores reads the score stream of one session in window order.
func (p *RedisPublisher) Scores(ctx context.Context, sessionID string) ([]float64, error) {
	msgs, err := p.client.XRange(ctx, p.scoresKey(sessionID), "-", "+").Result()
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(msgs))
	for _, m := range msgs {
		s, _ := m.Values["score"].(string)
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("stream entry %s: %w", m.ID, err)
		}
		out = append(out, v)
	}
	return out, nil
}
