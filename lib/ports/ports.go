// Copyright (C) 2026 The ClipboardPush Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package ports declares the seams between the synchronization engine
// and the platform layer it is embedded in: clipboard access, user
// notifications, and a global hotkey. Their internal behavior (actual OS
// clipboard polling, tray UI, hotkey hook installation) is out of scope
// for this module; this package only fixes the interfaces and ships
// thin default adapters.
package ports

// ClipboardContent is a tagged union of the clipboard payload kinds the
// engine can push or receive.
type ClipboardContent struct {
	Kind  ContentKind
	Text  string
	Image []byte   // encoded image bytes (e.g. PNG), when Kind == ContentImage
	Files []string // absolute file paths, when Kind == ContentFiles
}

// ContentKind discriminates ClipboardContent.
type ContentKind int

const (
	ContentText ContentKind = iota
	ContentImage
	ContentFiles
)

// ClipboardSink is the platform clipboard adapter.
type ClipboardSink interface {
	// Read returns the current clipboard content.
	Read() (ClipboardContent, error)
	// Write replaces the clipboard content.
	Write(ClipboardContent) error
	// Watch invokes fn every time the clipboard content changes, until
	// the returned stop function is called.
	Watch(fn func(ClipboardContent)) (stop func())
}

// NotificationSink surfaces a message to the user, e.g. via a toast or a
// tray balloon.
type NotificationSink interface {
	Notify(title, body string)
}

// HotkeySink lets the engine register a callback for the configured push
// hotkey and trigger it programmatically (e.g. from a test, or from a
// future OS-level global hotkey hook feeding into Trigger).
type HotkeySink interface {
	Register(expr string, fn func()) error
	Trigger()
}
