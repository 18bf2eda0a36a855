// Copyright (C) 2026 The ClipboardPush Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Room-ID") != "room-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New(0)
	body, status, err := c.Get(context.Background(), srv.URL, map[string]string{"X-Room-ID": "room-1"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if status != http.StatusOK || string(body) != "ok" {
		t.Errorf("unexpected response: %d %q", status, body)
	}
}

func TestGetNonSuccessReturnsErrTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(0)
	_, status, err := c.Get(context.Background(), srv.URL, nil)
	if err != ErrTransport {
		t.Errorf("expected ErrTransport, got %v", err)
	}
	if status != http.StatusForbidden {
		t.Errorf("unexpected status %d", status)
	}
}

func TestPutBytesSendsBody(t *testing.T) {
	var received []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received, _ = io.ReadAll(r.Body)
		if r.Header.Get("Content-Type") != "application/octet-stream" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := New(0)
	payload := []byte{1, 2, 3, 4}
	_, status, err := c.PutBytes(context.Background(), srv.URL, payload, nil)
	if err != nil {
		t.Fatalf("PutBytes: %v", err)
	}
	if status != http.StatusCreated {
		t.Errorf("unexpected status %d", status)
	}
	if string(received) != string(payload) {
		t.Errorf("server received %v, want %v", received, payload)
	}
}
