// Copyright (C) 2026 The ClipboardPush Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package config

import (
	"encoding/base64"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaultsWithFreshCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	w, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	snap := w.Snapshot()

	if snap.RoomID == "" || snap.RoomKey == "" || snap.DeviceID == "" {
		t.Fatalf("expected generated credentials, got %+v", snap)
	}
	if _, err := base64.StdEncoding.DecodeString(snap.RoomKey); err != nil {
		t.Errorf("room key is not valid base64: %v", err)
	}
	if snap.PushHotkey == "" {
		t.Error("expected a default push hotkey")
	}

	w2, err := Load(path)
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if w2.Snapshot().RoomID != snap.RoomID {
		t.Error("expected credentials to persist across reloads")
	}
}

func TestRegenerateCredentialsChangesRoomIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	w, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	before := w.Snapshot()

	if err := w.RegenerateCredentials(); err != nil {
		t.Fatalf("RegenerateCredentials: %v", err)
	}
	after := w.Snapshot()

	if after.RoomID == before.RoomID {
		t.Error("expected a new room ID")
	}
	if after.RoomKey == before.RoomKey {
		t.Error("expected a new room key")
	}
	if after.DeviceID != before.DeviceID {
		t.Error("device ID should be stable across credential regeneration")
	}
}

func TestUpdatePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	w, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := w.Update(func(d *Data) { d.ShowNotifications = false }); err != nil {
		t.Fatalf("Update: %v", err)
	}

	w2, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if w2.Snapshot().ShowNotifications {
		t.Error("expected persisted ShowNotifications=false")
	}
}

func TestParseHotkeyValid(t *testing.T) {
	cases := []struct {
		expr string
		want Hotkey
	}{
		{"Ctrl+Alt+V", Hotkey{Modifiers: []string{"Ctrl", "Alt"}, Key: "V"}},
		{" Ctrl + V ", Hotkey{Modifiers: []string{"Ctrl"}, Key: "V"}},
		{"F5", Hotkey{Key: "F5"}},
		{"Shift+Win+Space", Hotkey{Modifiers: []string{"Shift", "Win"}, Key: "SPACE"}},
	}
	for _, tc := range cases {
		got, err := ParseHotkey(tc.expr)
		if err != nil {
			t.Errorf("ParseHotkey(%q): unexpected error %v", tc.expr, err)
			continue
		}
		if got.Key != tc.want.Key || len(got.Modifiers) != len(tc.want.Modifiers) {
			t.Errorf("ParseHotkey(%q) = %+v, want %+v", tc.expr, got, tc.want)
		}
	}
}

func TestParseHotkeyInvalid(t *testing.T) {
	cases := []string{"", "Ctrl+Alt", "Ctrl++V", "Ctrl+V+B", "Ctrl+Foo", "++"}
	for _, expr := range cases {
		if _, err := ParseHotkey(expr); err != ErrHotkeyParse {
			t.Errorf("ParseHotkey(%q): expected ErrHotkeyParse, got %v", expr, err)
		}
	}
}

func TestSetHotkeyRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	w, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := w.SetHotkey("NotAHotkey"); err != ErrHotkeyParse {
		t.Errorf("expected ErrHotkeyParse, got %v", err)
	}
	if err := w.SetHotkey("Ctrl+Shift+F5"); err != nil {
		t.Errorf("unexpected error for valid hotkey: %v", err)
	}
	if w.Snapshot().PushHotkey != "Ctrl+Shift+F5" {
		t.Error("expected push hotkey to be updated")
	}
}
