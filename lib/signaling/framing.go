// Copyright (C) 2026 The ClipboardPush Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package signaling

import (
	"encoding/json"
	"errors"
	"strings"
)

// Engine.IO packet types, the first byte of every frame.
const (
	eioOpen    = '0'
	eioClose   = '1'
	eioPing    = '2'
	eioPong    = '3'
	eioMessage = '4'
)

// Socket.IO packet types, the byte following an eioMessage frame.
const (
	sioConnect    = '0'
	sioDisconnect = '1'
	sioEvent      = '2'
	sioAck        = '3'
	sioError      = '4'
)

// ErrInvalidFrame is returned for a frame this client does not
// understand well enough to act on.
var ErrInvalidFrame = errors.New("signaling: invalid frame")

type frameKind int

const (
	frameUnknown frameKind = iota
	framePing
	framePong
	frameConnected
	frameDisconnected
	frameEvent
	frameError
)

type decodedFrame struct {
	kind  frameKind
	event string
	data  json.RawMessage
}

// decodeFrame classifies a raw text frame read off the websocket.
func decodeFrame(raw string) (decodedFrame, error) {
	if raw == "" {
		return decodedFrame{}, ErrInvalidFrame
	}
	switch raw[0] {
	case eioPing:
		return decodedFrame{kind: framePing}, nil
	case eioPong:
		return decodedFrame{kind: framePong}, nil
	case eioOpen:
		return decodedFrame{kind: frameUnknown}, nil
	case eioClose:
		return decodedFrame{kind: frameDisconnected}, nil
	case eioMessage:
		return decodeSocketIOFrame(raw[1:])
	default:
		return decodedFrame{}, ErrInvalidFrame
	}
}

func decodeSocketIOFrame(body string) (decodedFrame, error) {
	if body == "" {
		return decodedFrame{}, ErrInvalidFrame
	}
	switch body[0] {
	case sioConnect:
		return decodedFrame{kind: frameConnected}, nil
	case sioDisconnect:
		return decodedFrame{kind: frameDisconnected}, nil
	case sioError:
		return decodedFrame{kind: frameError, data: json.RawMessage(body[1:])}, nil
	case sioEvent:
		return decodeEventFrame(body[1:])
	default:
		return decodedFrame{}, ErrInvalidFrame
	}
}

// decodeEventFrame parses `["event_name", <data>]`, tolerating an
// optional leading ack-id digit string as Socket.IO v4 permits
// (e.g. "2[\"ev\",{}]" vs "2123[\"ev\",{}]" is not produced by this
// server, but a defensive skip costs nothing).
func decodeEventFrame(body string) (decodedFrame, error) {
	i := 0
	for i < len(body) && body[i] >= '0' && body[i] <= '9' {
		i++
	}
	body = body[i:]

	var parts []json.RawMessage
	if err := json.Unmarshal([]byte(body), &parts); err != nil {
		return decodedFrame{}, ErrInvalidFrame
	}
	if len(parts) < 1 {
		return decodedFrame{}, ErrInvalidFrame
	}
	var event string
	if err := json.Unmarshal(parts[0], &event); err != nil {
		return decodedFrame{}, ErrInvalidFrame
	}
	var data json.RawMessage
	if len(parts) > 1 {
		data = parts[1]
	}
	return decodedFrame{kind: frameEvent, event: event, data: data}, nil
}

// encodePong builds the Engine.IO pong frame answering a ping.
func encodePong() string {
	return string(rune(eioPong))
}

// encodeConnect builds the Socket.IO namespace-connect frame.
func encodeConnect() string {
	return string(rune(eioMessage)) + string(rune(sioConnect))
}

// encodeEvent builds `42["event",<data>]` for the given event name,
// marshaling payload to JSON; a nil payload leaves the data element out.
func encodeEvent(event string, payload interface{}) (string, error) {
	encodedPayload, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteByte(eioMessage)
	sb.WriteByte(sioEvent)
	sb.WriteByte('[')
	nameJSON, err := json.Marshal(event)
	if err != nil {
		return "", err
	}
	sb.Write(nameJSON)
	if payload != nil {
		sb.WriteByte(',')
		sb.Write(encodedPayload)
	}
	sb.WriteByte(']')
	return sb.String(), nil
}

// pingIntervalFromOpenFrame extracts the "pingInterval" field from the
// Engine.IO open handshake payload `0{"sid":"...","pingInterval":25000,...}`,
// defaulting to 25000ms if absent or unparsable.
func pingIntervalFromOpenFrame(raw string) int {
	const def = 25000
	if len(raw) < 1 || raw[0] != eioOpen {
		return def
	}
	var hs struct {
		PingInterval int `json:"pingInterval"`
	}
	if err := json.Unmarshal([]byte(raw[1:]), &hs); err != nil {
		return def
	}
	if hs.PingInterval <= 0 {
		return def
	}
	return hs.PingInterval
}
