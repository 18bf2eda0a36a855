// Copyright (C) 2026 The ClipboardPush Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package wsclient is a thin, re-connectable wrapper around
// gorilla/websocket. It exists as its own package, distinct from
// lib/signaling, because the Engine.IO framing layered on top needs a
// transport it can tear down and rebuild freely without re-implementing
// the dial/read-pump bookkeeping each time.
package wsclient

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/clipboardpush/relayagent/lib/logger"
)

var l = logger.DefaultLogger.NewFacility("wsclient", "WebSocket transport")

// ErrNotConnected is returned by Send when no connection is established.
var ErrNotConnected = errors.New("wsclient: not connected")

// Handler receives transport-level events. OnMessage is called once per
// frame read from the socket; OnClose is called exactly once when a
// connection ends by remote close, read error or local Close (with a nil
// error for a local Close), and not for a connection replaced by a later
// Connect; OnError receives the read error that ended the read pump, just
// before OnClose fires.
type Handler struct {
	OnMessage func(messageType int, data []byte)
	OnClose   func(err error)
	OnError   func(err error)
}

// Client manages a single underlying websocket.Conn, recreated on every
// Connect call. Methods are safe for concurrent use; Connect implicitly
// closes any previous connection first.
type Client struct {
	dialer *websocket.Dialer

	mu       sync.Mutex
	conn     *websocket.Conn
	gen      uint64
	handler  Handler
	writeMut sync.Mutex
}

// New returns a Client using the given TLS-aware dialer settings. Pass
// nil to use gorilla's default dialer.
func New(dialer *websocket.Dialer) *Client {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return &Client{dialer: dialer}
}

// Connect dials target and starts the background read pump, delivering
// events to handler. Any previously established connection is closed
// first. The handshake uses ctx's deadline, if any; the resulting
// connection itself is not bound to ctx.
func (c *Client) Connect(ctx context.Context, target *url.URL, header http.Header, handler Handler) error {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.gen++
	myGen := c.gen
	c.handler = handler
	c.mu.Unlock()

	conn, resp, err := c.dialer.DialContext(ctx, target.String(), header)
	if resp != nil {
		resp.Body.Close()
	}
	if err != nil {
		l.Debugf("dial %s failed: %v", target, err)
		return err
	}
	l.Debugf("connected to %s", target)

	c.mu.Lock()
	if c.gen != myGen {
		// Superseded by a newer Connect call while dialing.
		c.mu.Unlock()
		conn.Close()
		return errors.New("wsclient: superseded by a later Connect call")
	}
	c.conn = conn
	c.mu.Unlock()

	go c.readPump(conn, myGen, handler)
	return nil
}

func (c *Client) readPump(conn *websocket.Conn, gen uint64, handler Handler) {
	var finalErr error
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			finalErr = err
			break
		}
		if handler.OnMessage != nil {
			handler.OnMessage(mt, data)
		}
	}

	c.mu.Lock()
	current := c.gen == gen
	if current {
		c.conn = nil
	}
	c.mu.Unlock()

	if !current {
		// A newer connection already replaced this one; stay quiet.
		return
	}
	if finalErr != nil && handler.OnError != nil {
		handler.OnError(finalErr)
	}
	if handler.OnClose != nil {
		handler.OnClose(finalErr)
	}
}

// Send writes a single text or binary frame.
func (c *Client) Send(messageType int, data []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	c.writeMut.Lock()
	defer c.writeMut.Unlock()
	return conn.WriteMessage(messageType, data)
}

// Close tears down the current connection, if any, with a normal closure
// handshake bounded by the given deadline, then calls the handler's
// OnClose with a nil error.
func (c *Client) Close(deadline time.Duration) error {
	c.mu.Lock()
	conn := c.conn
	handler := c.handler
	c.conn = nil
	c.gen++
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	c.writeMut.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(deadline))
	c.writeMut.Unlock()
	err := conn.Close()
	if handler.OnClose != nil {
		handler.OnClose(nil)
	}
	return err
}

// Connected reports whether a live connection is currently held.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}
