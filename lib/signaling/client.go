// Copyright (C) 2026 The ClipboardPush Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package signaling implements the Engine.IO/Socket.IO v4 client used to
// join a room on the relay server, exchange clipboard and file-transfer
// events with peers, and keep the connection alive across network
// hiccups via a supervised reconnect/watchdog pair.
package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/clipboardpush/relayagent/lib/logger"
	"github.com/clipboardpush/relayagent/lib/netinfo"
	"github.com/clipboardpush/relayagent/lib/syncutil"
	"github.com/clipboardpush/relayagent/lib/wsclient"
)

var l = logger.DefaultLogger.NewFacility("signaling", "Relay signaling client")

// ConnectionStatus mirrors the original agent's status enum, surfaced to
// the UI layer via OnStatusChange.
type ConnectionStatus int

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnectedLonely // joined, but no other peers present
	StatusConnectedSynced // joined, at least one peer present
	StatusRetrying
)

// String renders the status for logging.
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnectedLonely:
		return "connected_lonely"
	case StatusConnectedSynced:
		return "connected_synced"
	case StatusRetrying:
		return "retrying"
	default:
		return "unknown"
	}
}

// Event is a single decoded application-level event delivered to the
// caller's Events channel.
type Event struct {
	Name string
	Data json.RawMessage
}

// Config carries everything the client needs to join a room.
type Config struct {
	RelayURL   string
	RoomID     string
	DeviceID   string
	DeviceName string
	LANPort    func() int
}

// Client owns one Engine.IO/Socket.IO connection. It is not safe for
// concurrent Connect calls; after the first one, Connect is called by the
// reconnect supervisor in supervisor.go, by Reconnect (which the watchdog
// uses) and by the peer-eviction handler.
type Client struct {
	cfg Config
	ws  *wsclient.Client

	mu              syncutil.Mutex
	status          ConnectionStatus
	lastActivity    time.Time
	networkEpoch    uint64
	haveNetSnap     bool
	netSnap         netinfo.Snapshot
	onStatusChange  func(ConnectionStatus)
	manuallyStopped atomic.Bool

	Events chan Event
}

// New constructs a Client. Call Connect to establish the session.
func New(cfg Config) *Client {
	return &Client{
		cfg:    cfg,
		ws:     wsclient.New(nil),
		mu:     syncutil.NewMutex(),
		Events: make(chan Event, 64),
	}
}

// OnStatusChange registers a callback invoked whenever the connection
// status transitions.
func (c *Client) OnStatusChange(fn func(ConnectionStatus)) {
	c.mu.Lock()
	c.onStatusChange = fn
	c.mu.Unlock()
}

// Status returns the current connection status.
func (c *Client) Status() ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// LastActivity returns the last time any frame (including a ping/pong)
// was observed, for the watchdog to judge link liveness.
func (c *Client) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

func (c *Client) touchActivity() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

// refreshNetworkEpoch captures the current gateway/local-IP snapshot and
// bumps networkEpoch whenever it differs from the one observed on the
// previous connect, so the relay can tell a genuine network change
// (e.g. switching Wi-Fi networks) apart from a plain reconnect.
func (c *Client) refreshNetworkEpoch() {
	snap := netinfo.Capture()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.haveNetSnap && netinfo.Changed(c.netSnap, snap) {
		c.networkEpoch++
		l.Infof("network change detected, epoch -> %d", c.networkEpoch)
	}
	c.netSnap = snap
	c.haveNetSnap = true
}

// ManuallyStopped reports whether Close was the last thing called on this
// client without an intervening Connect, so the reconnect and watchdog
// supervisors know to stand down until the caller explicitly reconnects.
func (c *Client) ManuallyStopped() bool {
	return c.manuallyStopped.Load()
}

func (c *Client) setStatus(s ConnectionStatus) {
	c.mu.Lock()
	changed := c.status != s
	c.status = s
	cb := c.onStatusChange
	c.mu.Unlock()
	if changed {
		l.Infof("status -> %s", s)
		if cb != nil {
			cb(s)
		}
	}
}

// Connect dials the relay and sends the Socket.IO namespace-connect frame.
// It returns once that frame has been written; the join payload is sent
// when the server answers with its own connect frame, and
// room_state_changed / client_list_update / room_stats then drive the
// transition between StatusConnectedLonely and StatusConnectedSynced
// asynchronously.
func (c *Client) Connect(ctx context.Context) error {
	c.manuallyStopped.Store(false)
	c.setStatus(StatusConnecting)
	c.refreshNetworkEpoch()

	target, err := url.Parse(c.cfg.RelayURL)
	if err != nil {
		c.setStatus(StatusDisconnected)
		return err
	}

	err = c.ws.Connect(ctx, target, nil, wsclient.Handler{
		OnMessage: c.handleFrame,
		OnClose: func(err error) {
			l.Warnf("connection closed: %v", err)
			c.setStatus(StatusDisconnected)
		},
		OnError: func(err error) {
			l.Warnf("transport error: %v", err)
		},
	})
	if err != nil {
		c.setStatus(StatusDisconnected)
		return err
	}
	if err := c.ws.Send(websocket.TextMessage, []byte(encodeConnect())); err != nil {
		c.setStatus(StatusDisconnected)
		return err
	}

	c.touchActivity()
	return nil
}

func (c *Client) handleFrame(_ int, data []byte) {
	c.touchActivity()
	frame, err := decodeFrame(string(data))
	if err != nil {
		l.Debugf("unparseable frame: %v", err)
		return
	}

	switch frame.kind {
	case framePing:
		c.ws.Send(websocket.TextMessage, []byte(encodePong()))
	case frameConnected:
		c.sendConnectAck()
		c.joinRoom()
	case frameDisconnected:
		c.setStatus(StatusDisconnected)
	case frameEvent:
		c.routeEvent(frame.event, frame.data)
	}
}

func (c *Client) sendConnectAck() {
	// Connect already sent the namespace-connect frame; nothing further
	// is required beyond joining the room.
}

func (c *Client) joinRoom() {
	lanPort := 0
	if c.cfg.LANPort != nil {
		lanPort = c.cfg.LANPort()
	}
	c.mu.Lock()
	snap, epoch := c.netSnap, c.networkEpoch
	c.mu.Unlock()

	payload := JoinPayload{
		ProtocolVersion: ProtocolVersion,
		Room:            c.cfg.RoomID,
		ClientID:        c.cfg.DeviceID,
		ClientType:      ClientTypePC,
		JoinedAtMs:      time.Now().UnixMilli(),
		Network: JoinNetworkInfo{
			PrivateIP:     snap.LocalIP,
			CIDR:          snap.CIDR,
			NetworkIDHash: snap.NetworkIDHash,
			NetworkEpoch:  epoch,
		},
		Probe: JoinProbeInfo{
			ProbeURL:   fmt.Sprintf("http://%s:%d/probe", snap.LocalIP, lanPort),
			ProbeTTLMs: probeTTLMs,
		},
	}
	if err := c.emit(EventJoin, payload); err != nil {
		l.Warnf("failed to send join: %v", err)
		return
	}
	c.setStatus(StatusConnectedLonely)
}

func (c *Client) routeEvent(name string, data json.RawMessage) {
	switch name {
	case EventRoomStateChanged:
		var rs RoomStateChanged
		if err := json.Unmarshal(data, &rs); err == nil {
			c.updateSyncedStatus(len(peersExcludingSelf(rs.Peers, c.cfg.DeviceID)) > 0)
		}
	case EventClientListUpdate:
		var cl ClientListUpdate
		if err := json.Unmarshal(data, &cl); err == nil {
			c.updateSyncedStatus(len(idsExcludingSelf(cl.DeviceIDs, c.cfg.DeviceID)) > 0)
		}
	case EventRoomStats:
		var rs RoomStats
		if err := json.Unmarshal(data, &rs); err == nil {
			c.updateSyncedStatus(rs.Count > 1)
		}
	case EventPeerEvicted:
		go c.handlePeerEvicted()
	}

	select {
	case c.Events <- Event{Name: name, Data: data}:
	default:
		l.Warnf("event channel full, dropping %s", name)
	}
}

// handlePeerEvicted reacts to the server dropping this device from the
// room: the connection itself is still fine, so it tears down and
// immediately rejoins rather than waiting on the reconnect supervisor.
func (c *Client) handlePeerEvicted() {
	l.Warnf("evicted from room, rejoining")
	c.ws.Close(2 * time.Second)
	c.setStatus(StatusDisconnected)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		l.Warnf("rejoin after eviction failed: %v", err)
	}
}

func (c *Client) updateSyncedStatus(hasPeers bool) {
	c.mu.Lock()
	cur := c.status
	c.mu.Unlock()
	if cur != StatusConnectedLonely && cur != StatusConnectedSynced {
		return
	}
	if hasPeers {
		c.setStatus(StatusConnectedSynced)
	} else {
		c.setStatus(StatusConnectedLonely)
	}
}

// Emit sends a typed application event to the room.
func (c *Client) Emit(event string, payload interface{}) error {
	return c.emit(event, payload)
}

// EventsChan exposes the decoded-event stream as a receive-only channel,
// satisfying the transfer package's Signaler interface.
func (c *Client) EventsChan() <-chan Event {
	return c.Events
}

func (c *Client) emit(event string, payload interface{}) error {
	frame, err := encodeEvent(event, payload)
	if err != nil {
		return err
	}
	return c.ws.Send(websocket.TextMessage, []byte(frame))
}

// Reconnect tears down and re-establishes the connection, mirroring the
// manual "reconnect" action the original settings dialog exposed.
func (c *Client) Reconnect(ctx context.Context) error {
	c.ws.Close(2 * time.Second)
	c.setStatus(StatusRetrying)
	return c.Connect(ctx)
}

// Close tears down the connection without reconnecting. It latches a
// "manually stopped" flag that the reconnect and watchdog supervisors
// must consult before acting, so a deliberate disconnect sticks until the
// next explicit Connect.
func (c *Client) Close() error {
	c.manuallyStopped.Store(true)
	err := c.ws.Close(2 * time.Second)
	c.setStatus(StatusDisconnected)
	return err
}
