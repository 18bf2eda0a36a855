// Copyright (C) 2026 The ClipboardPush Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package httpclient provides the one-shot HTTP GET/PUT/POST helper used
// by the transfer orchestrator to talk to the LAN server and the cloud
// relay's upload endpoints. TLS connections never negotiate below 1.2 and
// only offer the cipher suite list the agent considers secure, the same
// policy syncthing's lib/tlsutil applies to its relay connections.
package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net/http"
	"time"
)

// ErrTransport wraps any non-2xx HTTP response.
var ErrTransport = errors.New("httpclient: request failed")

// SecureDefaultWithTLS12 returns the tls.Config used for every outbound
// HTTPS request: TLS 1.2 minimum, restricted to the six ECDHE AEAD cipher
// suites (AES-256-GCM, AES-128-GCM and ChaCha20-Poly1305, each for RSA and
// ECDSA certificates).
func SecureDefaultWithTLS12() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
		},
	}
}

// Client is a thin wrapper over *http.Client with the agent's default
// timeout and TLS policy, exposing exactly the verbs the transfer
// orchestrator needs.
type Client struct {
	hc *http.Client
}

// New returns a Client with a sane request timeout and the agent's TLS
// policy applied to any https:// target.
func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		hc: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: SecureDefaultWithTLS12(),
			},
		},
	}
}

// Get issues a GET request with optional headers and returns the response
// body in full.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	applyHeaders(req, headers)
	return c.do(req)
}

// PostJSON issues a POST request with a JSON-shaped body (caller
// pre-encodes it) and the standard Content-Type header.
func (c *Client) PostJSON(ctx context.Context, url string, body []byte, headers map[string]string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	applyHeaders(req, headers)
	return c.do(req)
}

// PutBytes issues a PUT with a raw binary body, used for cloud upload of
// sealed envelopes.
func (c *Client) PutBytes(ctx context.Context, url string, body []byte, headers map[string]string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	applyHeaders(req, headers)
	return c.do(req)
}

func applyHeaders(req *http.Request, headers map[string]string) {
	for k, v := range headers {
		req.Header.Set(k, v)
	}
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return body, resp.StatusCode, ErrTransport
	}
	return body, resp.StatusCode, nil
}
