// Copyright (C) 2026 The ClipboardPush Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package transfer

import (
	"sync/atomic"
	"time"
)

// echoSuppressionWindow is how long the suppression latch stays set
// after applying a remote update, matching the original's ~500ms timer.
const echoSuppressionWindow = 500 * time.Millisecond

// Gate is the outbound-push gate: it tracks how many peers are present
// and suppresses auto-push of clipboard changes that were themselves
// caused by applying a remote update, preventing an echo loop.
type Gate struct {
	activePeerCount      atomic.Int32
	isProcessingRemote   atomic.Bool
	suppressionTimer     atomic.Pointer[time.Timer]
}

// NewGate returns a Gate with no peers present.
func NewGate() *Gate {
	return &Gate{}
}

// SetActivePeerCount updates the known peer count, as derived from
// room_state_changed/client_list_update.
func (g *Gate) SetActivePeerCount(n int) {
	g.activePeerCount.Store(int32(n))
}

// ActivePeerCount returns the last known peer count.
func (g *Gate) ActivePeerCount() int {
	return int(g.activePeerCount.Load())
}

// HasPeers reports whether at least one peer is present.
func (g *Gate) HasPeers() bool {
	return g.ActivePeerCount() > 0
}

// BeginRemoteApply sets the suppression latch, to be called just before
// writing a remotely-received value to the local clipboard. The latch
// auto-clears after echoSuppressionWindow even if EndRemoteApply is never
// called, so a panic or early return can never wedge the gate open.
func (g *Gate) BeginRemoteApply() {
	g.isProcessingRemote.Store(true)
	timer := time.AfterFunc(echoSuppressionWindow, func() {
		g.isProcessingRemote.Store(false)
	})
	if old := g.suppressionTimer.Swap(timer); old != nil {
		old.Stop()
	}
}

// ShouldSuppressOutbound reports whether an auto-push triggered by a
// clipboard-change notification should be dropped because it was most
// likely caused by BeginRemoteApply's own write.
func (g *Gate) ShouldSuppressOutbound() bool {
	return g.isProcessingRemote.Load()
}
