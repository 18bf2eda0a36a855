// Copyright (C) 2026 The ClipboardPush Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package transfer

import (
	"os"

	"github.com/clipboardpush/relayagent/lib/ports"
)

// PushViaHotkey reads the current clipboard content and pushes it,
// always surfacing a notification — including the "no peers" case,
// distinct from AutoPushClipboardChange's silent skip when unsynced.
func (o *Orchestrator) PushViaHotkey() error {
	content, err := o.deps.Clipboard.Read()
	if err != nil {
		o.deps.Notify.Notify("ClipboardPush", "Unable to read clipboard: "+err.Error())
		return err
	}

	switch content.Kind {
	case ports.ContentText:
		return o.PushText(content.Text, true)
	case ports.ContentImage:
		return o.PushFileData("clipboard-image.png", content.Image, true)
	case ports.ContentFiles:
		return o.PushPhysicalFiles(content.Files, true)
	default:
		return nil
	}
}

// PushPhysicalFiles pushes one or more files already on disk (e.g. from
// a file manager's "copy" selection), one transfer per file.
func (o *Orchestrator) PushPhysicalFiles(paths []string, manual bool) error {
	if !o.gate.HasPeers() {
		if manual {
			o.deps.Notify.Notify("ClipboardPush", "No peers connected")
		}
		return nil
	}
	var firstErr error
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			o.pushFailed(manual, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := o.PushFileData(baseName(p), data, manual); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func baseName(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' || p[i] == '\\' {
			return p[i+1:]
		}
	}
	return p
}

// AutoPushClipboardChange is the clipboard watcher callback: it pushes a
// local clipboard change unless the change was itself caused by applying
// a remote update (the echo-suppression latch), logging but never
// notifying on failure, per the manual/auto push notification asymmetry.
func (o *Orchestrator) AutoPushClipboardChange(content ports.ClipboardContent) {
	if o.gate.ShouldSuppressOutbound() {
		return
	}
	if !o.gate.HasPeers() {
		return
	}
	switch content.Kind {
	case ports.ContentText:
		if err := o.PushText(content.Text, false); err != nil {
			l.Warnf("auto-push failed: %v", err)
		}
	case ports.ContentImage:
		if err := o.PushFileData("clipboard-image.png", content.Image, false); err != nil {
			l.Warnf("auto-push failed: %v", err)
		}
	}
}
