// Copyright (C) 2026 The ClipboardPush Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package config loads, persists, and publishes the agent's JSON
// configuration file, the way the original Config singleton does:
// load-or-initialize-defaults on startup, atomic snapshot reads, and a
// credential regeneration entry point.
package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/clipboardpush/relayagent/lib/envelope"
	"github.com/clipboardpush/relayagent/lib/logger"
	"github.com/clipboardpush/relayagent/lib/syncutil"
)

var l = logger.DefaultLogger.NewFacility("config", "Configuration persistence")

// Data is the on-disk configuration shape and its documented defaults.
type Data struct {
	RoomID            string `json:"room_id"`
	RoomKey           string `json:"room_key"`
	DeviceID          string `json:"device_id"`
	DeviceName        string `json:"device_name"`
	RelayURL          string `json:"relay_url"`
	CloudUploadURL    string `json:"cloud_upload_url"`
	DownloadDirectory string `json:"download_directory"`
	PushHotkey        string `json:"push_hotkey"`
	AutoStart         bool   `json:"auto_start"`
	ShowNotifications bool   `json:"show_notifications"`
	PreferLAN         bool   `json:"prefer_lan"`
}

func defaults() Data {
	return Data{
		RelayURL:          "wss://relay.clipboardpush.app/socket.io/?EIO=4&transport=websocket",
		CloudUploadURL:    "https://relay.clipboardpush.app/api",
		DownloadDirectory: defaultDownloadDir(),
		PushHotkey:        "Ctrl+F6",
		AutoStart:         false,
		ShowNotifications: true,
		PreferLAN:         true,
	}
}

func defaultDownloadDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "Downloads", "ClipboardMan")
}

// ErrHotkeyParse is returned by Wrapper.SetHotkey for a grammatically
// invalid hotkey string.
var ErrHotkeyParse = errors.New("config: invalid hotkey expression")

// Wrapper guards Data behind a lock and is the only way the rest of the
// agent touches configuration, mirroring the snapshot-publish pattern the
// teacher's config wrapper uses around its own struct.
type Wrapper struct {
	mu   syncutil.RWMutex
	path string
	data Data
}

// Load reads path, initializing and persisting defaults plus a fresh room
// identity if the file does not exist yet.
func Load(path string) (*Wrapper, error) {
	w := &Wrapper{mu: syncutil.NewRWMutex(), path: path}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		l.Infof("no configuration at %s, creating defaults", path)
		w.data = defaults()
		if err := w.generateCredentialsLocked(); err != nil {
			return nil, err
		}
		if err := w.saveLocked(); err != nil {
			return nil, err
		}
		return w, nil
	}
	if err != nil {
		return nil, err
	}

	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	w.data = data
	return w, nil
}

// Snapshot returns a copy of the current configuration, safe to read
// without further locking.
func (w *Wrapper) Snapshot() Data {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.data
}

// Save persists the current in-memory configuration to disk.
func (w *Wrapper) Save() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.saveLocked()
}

func (w *Wrapper) saveLocked() error {
	raw, err := json.MarshalIndent(w.data, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(w.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(w.path, raw, 0o600)
}

// Update applies fn to a copy of the current data, persists the result,
// and publishes it atomically.
func (w *Wrapper) Update(fn func(*Data)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	updated := w.data
	fn(&updated)
	w.data = updated
	return w.saveLocked()
}

// RegenerateCredentials replaces the room ID and key with freshly
// generated values and persists them, matching the original
// GenerateNewCredentials behavior.
func (w *Wrapper) RegenerateCredentials() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.generateCredentialsLocked(); err != nil {
		return err
	}
	return w.saveLocked()
}

func (w *Wrapper) generateCredentialsLocked() error {
	roomID, err := randomRoomID()
	if err != nil {
		return err
	}
	key, err := envelope.GenerateKeyBase64()
	if err != nil {
		return err
	}
	w.data.RoomID = roomID
	w.data.RoomKey = key
	if w.data.DeviceID == "" {
		deviceID, err := randomRoomID()
		if err != nil {
			return err
		}
		w.data.DeviceID = deviceID
	}
	return nil
}
