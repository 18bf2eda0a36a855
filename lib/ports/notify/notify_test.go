// Copyright (C) 2026 The ClipboardPush Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package notify

import (
	"testing"

	"github.com/clipboardpush/relayagent/lib/logger"
)

func TestNotifyLogsWhenEnabled(t *testing.T) {
	var got string
	logger.DefaultLogger.AddHandler(logger.LevelInfo, func(l logger.LogLevel, msg string) {
		if l == logger.LevelInfo {
			got = msg
		}
	})

	a := New()
	a.Notify("Title", "Body")
	if got != "Title: Body" {
		t.Fatalf("expected logged message %q, got %q", "Title: Body", got)
	}
}

func TestNotifySkipsWhenDisabled(t *testing.T) {
	var got string
	logger.DefaultLogger.AddHandler(logger.LevelInfo, func(l logger.LogLevel, msg string) {
		got = msg
	})

	a := New()
	a.SetEnabled(false)
	a.Notify("Title", "Should not log")
	if got == "Title: Should not log" {
		t.Fatal("expected Notify to be suppressed while disabled")
	}
}
