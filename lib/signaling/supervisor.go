// Copyright (C) 2026 The ClipboardPush Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package signaling

import (
	"context"
	"time"
)

const (
	reconnectDelay    = 5 * time.Second
	watchdogInterval  = 10 * time.Second
	watchdogThreshold = 45 * time.Second
)

// ReconnectSupervisor is a suture.Service that watches a Client's status
// and schedules a reconnect attempt shortly after it goes disconnected,
// mirroring the original agent's countdown-reconnect thread.
type ReconnectSupervisor struct {
	client *Client
	delay  time.Duration
}

// NewReconnectSupervisor wraps client with the default reconnect delay.
func NewReconnectSupervisor(client *Client) *ReconnectSupervisor {
	return &ReconnectSupervisor{client: client, delay: reconnectDelay}
}

// Serve implements suture.Service: it blocks until ctx is done, issuing a
// reconnect attempt every time the client is found disconnected after the
// configured delay.
func (s *ReconnectSupervisor) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.delay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if s.client.ManuallyStopped() {
				continue
			}
			if s.client.Status() == StatusDisconnected {
				l.Infof("reconnect supervisor attempting reconnect")
				reconnectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
				if err := s.client.Connect(reconnectCtx); err != nil {
					l.Warnf("reconnect attempt failed: %v", err)
				}
				cancel()
			}
		}
	}
}

// WatchdogSupervisor is a suture.Service that forces a reconnect when the
// link has been silent for longer than watchdogThreshold, catching dead
// connections the transport itself never noticed.
type WatchdogSupervisor struct {
	client    *Client
	interval  time.Duration
	threshold time.Duration
}

// NewWatchdogSupervisor wraps client with the default interval/threshold.
func NewWatchdogSupervisor(client *Client) *WatchdogSupervisor {
	return &WatchdogSupervisor{client: client, interval: watchdogInterval, threshold: watchdogThreshold}
}

// Serve implements suture.Service.
func (s *WatchdogSupervisor) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if s.client.ManuallyStopped() || s.client.Status() == StatusDisconnected {
				continue
			}
			if time.Since(s.client.LastActivity()) > s.threshold {
				l.Warnf("watchdog: link silent for over %s, forcing reconnect", s.threshold)
				forceCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
				if err := s.client.Reconnect(forceCtx); err != nil {
					l.Warnf("watchdog reconnect failed: %v", err)
				}
				cancel()
			}
		}
	}
}
