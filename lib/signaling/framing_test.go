// Copyright (C) 2026 The ClipboardPush Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package signaling

import (
	"encoding/json"
	"testing"
)

func TestDecodeFramePing(t *testing.T) {
	f, err := decodeFrame("2")
	if err != nil {
		t.Fatalf("decodeFrame: %v", err)
	}
	if f.kind != framePing {
		t.Errorf("expected framePing, got %v", f.kind)
	}
}

func TestDecodeFrameConnected(t *testing.T) {
	f, err := decodeFrame("40")
	if err != nil {
		t.Fatalf("decodeFrame: %v", err)
	}
	if f.kind != frameConnected {
		t.Errorf("expected frameConnected, got %v", f.kind)
	}
}

func TestDecodeFrameEvent(t *testing.T) {
	f, err := decodeFrame(`42["file_available",{"transfer_id":"abc"}]`)
	if err != nil {
		t.Fatalf("decodeFrame: %v", err)
	}
	if f.kind != frameEvent || f.event != "file_available" {
		t.Fatalf("unexpected frame: %+v", f)
	}
	var payload FileAvailable
	if err := json.Unmarshal(f.data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.TransferID != "abc" {
		t.Errorf("unexpected transfer id %q", payload.TransferID)
	}
}

func TestDecodeFrameEventWithAckID(t *testing.T) {
	f, err := decodeFrame(`42123["ping_event",null]`)
	if err != nil {
		t.Fatalf("decodeFrame: %v", err)
	}
	if f.kind != frameEvent || f.event != "ping_event" {
		t.Fatalf("unexpected frame: %+v", f)
	}
}

func TestDecodeFrameInvalid(t *testing.T) {
	cases := []string{"", "4", "42notjson", "9garbage"}
	for _, c := range cases {
		if _, err := decodeFrame(c); err != ErrInvalidFrame {
			t.Errorf("decodeFrame(%q): expected ErrInvalidFrame, got %v", c, err)
		}
	}
}

func TestEncodeEventRoundTrip(t *testing.T) {
	payload := JoinPayload{
		ProtocolVersion: ProtocolVersion,
		Room:            "r1",
		ClientID:        "d1",
		ClientType:      ClientTypePC,
		Network:         JoinNetworkInfo{PrivateIP: "192.168.1.5"},
		Probe:           JoinProbeInfo{ProbeURL: "http://192.168.1.5:51000/probe", ProbeTTLMs: probeTTLMs},
	}
	raw, err := encodeEvent(EventJoin, payload)
	if err != nil {
		t.Fatalf("encodeEvent: %v", err)
	}

	f, err := decodeFrame(raw)
	if err != nil {
		t.Fatalf("decodeFrame: %v", err)
	}
	if f.event != EventJoin {
		t.Fatalf("unexpected event name %q", f.event)
	}
	var got JoinPayload
	if err := json.Unmarshal(f.data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != payload {
		t.Errorf("got %+v, want %+v", got, payload)
	}
}

func TestPingIntervalFromOpenFrame(t *testing.T) {
	got := pingIntervalFromOpenFrame(`0{"sid":"abc","pingInterval":30000,"pingTimeout":5000}`)
	if got != 30000 {
		t.Errorf("got %d, want 30000", got)
	}
	if got := pingIntervalFromOpenFrame("not an open frame"); got != 25000 {
		t.Errorf("expected default 25000, got %d", got)
	}
}
