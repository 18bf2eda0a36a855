// Copyright (C) 2026 The ClipboardPush Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package transfer is the send/receive orchestrator: it decides, per
// outbound file, whether the receiving peer pulled it over the LAN or
// needs a cloud relay upload, and applies whatever a peer pushes to the
// local clipboard while suppressing the echo that would otherwise push
// it straight back out.
package transfer

import (
	"sync"
	"sync/atomic"
	"time"
)

// Reason labels recorded on the terminal relay-vs-LAN transition, purely
// for logging/diagnostics.
const (
	ReasonServerDirected = "server_directed"
	ReasonAppFallback    = "app_fallback"
	ReasonTimeout        = "timeout"
)

// ReasonLANUnreachable is the wire reason the receiver reports on
// file_need_relay when a LAN pull could not be completed (the fetch failed,
// returned an empty body, or decryption failed). A failed probe sends
// file_need_relay without a reason.
const ReasonLANUnreachable = "lan_unreachable"

// PendingTransfer tracks one outbound file from announcement to
// completion. Every terminal flag is monotonic: once true, it never
// reverts, and each is flipped via a single compare-and-swap so the
// orchestrator can safely race multiple signaling events against each
// other without double-processing.
type PendingTransfer struct {
	TransferID string
	Filename   string
	Sealed     []byte
	CreatedAt  time.Time

	completed       atomic.Bool
	uploadRequested atomic.Bool
	uploadStarted   atomic.Bool

	arbiterOnce sync.Once
	arbiterCh   chan struct{}
	reasonMu    sync.Mutex
	reason      string
}

// NewPendingTransfer constructs a transfer record for filename/sealed
// envelope content, with a fresh, open arbiter channel.
func NewPendingTransfer(transferID, filename string, sealed []byte) *PendingTransfer {
	return &PendingTransfer{
		TransferID: transferID,
		Filename:   filename,
		Sealed:     sealed,
		CreatedAt:  time.Now(),
		arbiterCh:  make(chan struct{}),
	}
}

// MarkCompleted latches the completed flag. Returns true the first time
// it is called for this transfer.
func (p *PendingTransfer) MarkCompleted() bool {
	return p.completed.CompareAndSwap(false, true)
}

// Completed reports whether the receiver has confirmed receipt.
func (p *PendingTransfer) Completed() bool {
	return p.completed.Load()
}

// RequestRelay latches the "cloud relay needed" decision exactly once,
// recording why, and wakes the arbiter. Subsequent calls are no-ops:
// the first reason to land wins.
func (p *PendingTransfer) RequestRelay(reason string) {
	if p.uploadRequested.CompareAndSwap(false, true) {
		p.reasonMu.Lock()
		p.reason = reason
		p.reasonMu.Unlock()
		p.arbiterOnce.Do(func() { close(p.arbiterCh) })
	}
}

// NeedsRelay reports whether a relay upload was requested.
func (p *PendingTransfer) NeedsRelay() bool {
	return p.uploadRequested.Load()
}

// Reason returns the recorded reason for the relay decision, or "" if
// none has landed yet.
func (p *PendingTransfer) Reason() string {
	p.reasonMu.Lock()
	defer p.reasonMu.Unlock()
	return p.reason
}

// Arbiter returns the channel that closes exactly once the relay
// decision has been made (by transfer_command, file_need_relay, or the
// orchestrator's own timeout), replacing a polling loop with a single
// wakeup.
func (p *PendingTransfer) Arbiter() <-chan struct{} {
	return p.arbiterCh
}

// BeginUpload latches the "upload in flight/done" flag exactly once,
// guaranteeing performCloudUpload only ever runs a single time for this
// transfer no matter how many relay signals arrive.
func (p *PendingTransfer) BeginUpload() bool {
	return p.uploadStarted.CompareAndSwap(false, true)
}
