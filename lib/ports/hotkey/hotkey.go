// Copyright (C) 2026 The ClipboardPush Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package hotkey is the default ports.HotkeySink: it validates and
// stores the registered hotkey expression and invokes the callback on
// Trigger. Installing an OS-level global hotkey hook is GUI-adjacent
// platform code out of scope for this module; Trigger is the seam a
// future hook, or a test, calls into.
package hotkey

import (
	"sync"

	"github.com/clipboardpush/relayagent/lib/config"
	"github.com/clipboardpush/relayagent/lib/ports"
)

// Adapter implements ports.HotkeySink.
type Adapter struct {
	mu   sync.Mutex
	expr string
	fn   func()
}

// New returns an empty Adapter; call Register before Trigger does
// anything.
func New() *Adapter {
	return &Adapter{}
}

// Register validates expr against the documented hotkey grammar and
// stores fn to be invoked by Trigger.
func (a *Adapter) Register(expr string, fn func()) error {
	if _, err := config.ParseHotkey(expr); err != nil {
		return err
	}
	a.mu.Lock()
	a.expr = expr
	a.fn = fn
	a.mu.Unlock()
	return nil
}

// Trigger invokes the registered callback, if any.
func (a *Adapter) Trigger() {
	a.mu.Lock()
	fn := a.fn
	a.mu.Unlock()
	if fn != nil {
		fn()
	}
}

var _ ports.HotkeySink = (*Adapter)(nil)
