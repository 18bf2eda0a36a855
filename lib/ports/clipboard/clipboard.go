// Copyright (C) 2026 The ClipboardPush Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package clipboard is the default ports.ClipboardSink, backed by
// golang.design/x/clipboard for text and image content. File-list
// clipboard content (a set of paths, as produced by "copy" in a file
// manager) has no cross-platform library support in the pack, so Write
// for ports.ContentFiles is a no-op reporting an error instead of
// silently dropping the files; callers that need it wire a
// platform-specific adapter in its place.
package clipboard

import (
	"context"
	"errors"

	cb "golang.design/x/clipboard"

	"github.com/clipboardpush/relayagent/lib/ports"
)

// ErrFilesUnsupported is returned by Write for ports.ContentFiles, since
// no cross-platform clipboard library in use here supports file-list
// payloads.
var ErrFilesUnsupported = errors.New("clipboard: file-list clipboard content is not supported by this adapter")

// Adapter implements ports.ClipboardSink.
type Adapter struct{}

// New initializes the underlying clipboard library and returns an
// Adapter. It must be called once before use.
func New() (*Adapter, error) {
	if err := cb.Init(); err != nil {
		return nil, err
	}
	return &Adapter{}, nil
}

// Read returns the current text clipboard content. Image content is
// intentionally not polled here; the caller subscribes to image changes
// via Watch instead.
func (a *Adapter) Read() (ports.ClipboardContent, error) {
	text := cb.Read(cb.FmtText)
	return ports.ClipboardContent{Kind: ports.ContentText, Text: string(text)}, nil
}

// Write replaces the clipboard content.
func (a *Adapter) Write(c ports.ClipboardContent) error {
	switch c.Kind {
	case ports.ContentText:
		cb.Write(cb.FmtText, []byte(c.Text))
		return nil
	case ports.ContentImage:
		cb.Write(cb.FmtImage, c.Image)
		return nil
	default:
		return ErrFilesUnsupported
	}
}

// Watch subscribes to both text and image clipboard changes and invokes
// fn on each, until stop is called.
func (a *Adapter) Watch(fn func(ports.ClipboardContent)) func() {
	ctx, cancel := context.WithCancel(context.Background())

	textCh := cb.Watch(ctx, cb.FmtText)
	imageCh := cb.Watch(ctx, cb.FmtImage)

	go func() {
		for data := range textCh {
			fn(ports.ClipboardContent{Kind: ports.ContentText, Text: string(data)})
		}
	}()
	go func() {
		for data := range imageCh {
			fn(ports.ClipboardContent{Kind: ports.ContentImage, Image: data})
		}
	}()

	return cancel
}
