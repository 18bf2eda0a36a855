// Copyright (C) 2026 The ClipboardPush Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package notify is the default ports.NotificationSink. A real toast or
// tray balloon is platform UI, out of scope for this module; this
// adapter logs at Info level through the same facility logger the rest
// of the agent uses, so the seam is still exercised end to end and a
// platform-specific sink is a drop-in replacement.
package notify

import (
	"sync/atomic"

	"github.com/clipboardpush/relayagent/lib/logger"
)

var l = logger.DefaultLogger.NewFacility("notify", "User-facing notifications")

// Adapter implements ports.NotificationSink.
type Adapter struct {
	enabled atomic.Bool
}

// New returns a log-backed notification sink with notifications enabled.
func New() *Adapter {
	a := &Adapter{}
	a.enabled.Store(true)
	return a
}

// SetEnabled toggles whether Notify actually emits anything, mirroring
// the configured show_notifications preference.
func (a *Adapter) SetEnabled(enabled bool) {
	a.enabled.Store(enabled)
}

// Notify logs the notification unless notifications are disabled; a GUI
// build would pop a toast instead.
func (a *Adapter) Notify(title, body string) {
	if !a.enabled.Load() {
		return
	}
	l.Infof("%s: %s", title, body)
}
