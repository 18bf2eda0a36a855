// Copyright (C) 2026 The ClipboardPush Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package transfer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/clipboardpush/relayagent/lib/envelope"
	"github.com/clipboardpush/relayagent/lib/httpclient"
	"github.com/clipboardpush/relayagent/lib/lanserver"
	"github.com/clipboardpush/relayagent/lib/logger"
	"github.com/clipboardpush/relayagent/lib/netinfo"
	"github.com/clipboardpush/relayagent/lib/ports"
	"github.com/clipboardpush/relayagent/lib/signaling"
)

var l = logger.DefaultLogger.NewFacility("transfer", "Send/receive orchestrator")

// relayTimeout bounds how long the sender waits for either
// transfer_command or file_need_relay before deciding for itself that a
// cloud relay upload is needed.
const relayTimeout = 8 * time.Second

// probeTimeout bounds how long the receiver waits for a LAN probe before
// falling back to asking for a cloud relay upload.
const probeTimeout = 1500 * time.Millisecond

// Signaler is the subset of *signaling.Client the orchestrator depends
// on, narrowed to an interface so it can be driven by a fake in tests.
type Signaler interface {
	Emit(event string, payload interface{}) error
	EventsChan() <-chan signaling.Event
}

// Deps are the collaborators the orchestrator wires together. All fields
// are required.
type Deps struct {
	Signaling   Signaler
	LAN         *lanserver.Server
	HTTP        *httpclient.Client
	Clipboard   ports.ClipboardSink
	Notify      ports.NotificationSink
	Key         []byte // room key, applied to every envelope
	DeviceID    string
	TempDir     string
	DownloadDir string
	UploadAPI   string // base URL for the cloud relay's HTTP API (/relay, /file/upload_auth)
	RoomID      string
	PreferLAN   bool // if false, the receiver skips the LAN probe and always asks for a relay upload
}

// Orchestrator runs the send/receive pipeline described by the
// synchronization engine: manual/auto pushes out, and applying whatever
// a peer pushes in.
type Orchestrator struct {
	deps     Deps
	registry *Registry
	gate     *Gate
}

// New constructs an Orchestrator. Call Run to start processing events.
func New(deps Deps) *Orchestrator {
	return &Orchestrator{
		deps:     deps,
		registry: NewRegistry(),
		gate:     NewGate(),
	}
}

// Gate exposes the outbound gate so the clipboard watcher can consult
// ShouldSuppressOutbound/HasPeers before deciding to auto-push.
func (o *Orchestrator) Gate() *Gate { return o.gate }

// Serve implements suture.Service, so the orchestrator can be added
// directly to the agent's supervision tree alongside the signaling
// reconnect/watchdog services.
func (o *Orchestrator) Serve(ctx context.Context) error {
	return o.Run(ctx)
}

// Run consumes signaling events until ctx is done. It is intended to be
// run as a suture.Service.
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-o.deps.Signaling.EventsChan():
			o.handleEvent(ev)
		}
	}
}

func (o *Orchestrator) handleEvent(ev signaling.Event) {
	switch ev.Name {
	case signaling.EventRoomStateChanged:
		var rs signaling.RoomStateChanged
		if json.Unmarshal(ev.Data, &rs) == nil {
			count := 0
			for _, p := range rs.Peers {
				if p.DeviceID != o.deps.DeviceID {
					count++
				}
			}
			o.gate.SetActivePeerCount(count)
		}
	case signaling.EventClientListUpdate:
		var cl signaling.ClientListUpdate
		if json.Unmarshal(ev.Data, &cl) == nil {
			count := 0
			for _, id := range cl.DeviceIDs {
				if id != o.deps.DeviceID {
					count++
				}
			}
			o.gate.SetActivePeerCount(count)
		}
	case signaling.EventClipboardSync:
		var cs signaling.ClipboardSync
		if json.Unmarshal(ev.Data, &cs) == nil {
			o.handleClipboardSync(cs)
		}
	case signaling.EventFileAvailable:
		var fa signaling.FileAvailable
		if json.Unmarshal(ev.Data, &fa) == nil {
			go o.handleFileAvailable(fa)
		}
	case signaling.EventTransferCommand:
		var tc signaling.TransferCommand
		if json.Unmarshal(ev.Data, &tc) == nil {
			o.handleTransferCommand(tc)
		}
	case signaling.EventFileNeedRelay:
		var fr signaling.FileNeedRelay
		if json.Unmarshal(ev.Data, &fr) == nil {
			if pt, ok := o.registry.Get(fr.TransferID); ok {
				pt.RequestRelay(ReasonAppFallback)
			}
		}
	case signaling.EventFileSync:
		var fs signaling.FileSync
		if json.Unmarshal(ev.Data, &fs) == nil {
			go o.handleFileSync(fs)
		}
	case signaling.EventFileSyncCompleted:
		var fc signaling.FileSyncCompleted
		if json.Unmarshal(ev.Data, &fc) == nil {
			o.handleFileSyncCompleted(fc)
		}
	}
}

// postRelay POSTs an event the signaling socket itself should not carry
// (clipboard_sync and file_sync both go this route) to the cloud relay's
// HTTP fan-out endpoint, which re-broadcasts it to the room over the
// socket on the server side.
func (o *Orchestrator) postRelay(ctx context.Context, event string, data interface{}) error {
	body, err := json.Marshal(signaling.RelayEnvelope{
		Room:     o.deps.RoomID,
		Event:    event,
		SenderID: o.deps.DeviceID,
		Data:     data,
	})
	if err != nil {
		return err
	}
	_, _, err = o.deps.HTTP.PostJSON(ctx, o.deps.UploadAPI+"/relay", body, nil)
	return err
}

// ---- outbound: text ----

// PushText seals and broadcasts a text clipboard update. manual
// distinguishes a hotkey/tray-triggered push (which always notifies,
// success or failure) from an automatic clipboard-watcher push (which
// only logs on failure).
func (o *Orchestrator) PushText(text string, manual bool) error {
	if !o.gate.HasPeers() {
		if manual {
			o.deps.Notify.Notify("ClipboardPush", "No peers connected")
		}
		return nil
	}

	sealed, err := envelope.SealText(o.deps.Key, text)
	if err != nil {
		o.pushFailed(manual, err)
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	err = o.postRelay(ctx, signaling.EventClipboardSync, signaling.ClipboardSyncRelayData{
		Room:      o.deps.RoomID,
		Content:   sealed,
		Encrypted: true,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Source:    o.deps.DeviceID,
	})
	if err != nil {
		o.pushFailed(manual, err)
		return err
	}
	if manual {
		o.deps.Notify.Notify("ClipboardPush", "Clipboard pushed")
	}
	return nil
}

func (o *Orchestrator) pushFailed(manual bool, err error) {
	l.Warnf("push failed: %v", err)
	if manual {
		o.deps.Notify.Notify("ClipboardPush", "Push failed: "+err.Error())
	}
}

func (o *Orchestrator) handleClipboardSync(cs signaling.ClipboardSync) {
	if cs.Origin == o.deps.DeviceID {
		return
	}
	text, err := envelope.OpenText(o.deps.Key, cs.Envelope)
	if err != nil {
		l.Warnf("failed to decrypt incoming clipboard_sync: %v", err)
		return
	}
	o.gate.BeginRemoteApply()
	if err := o.deps.Clipboard.Write(ports.ClipboardContent{Kind: ports.ContentText, Text: text}); err != nil {
		l.Warnf("failed to apply incoming clipboard content: %v", err)
	}
}

// ---- outbound: files ----

// PushFileData seals fileData, announces it to the room, and arbitrates
// between the receiver pulling it over LAN and a cloud relay upload.
func (o *Orchestrator) PushFileData(filename string, fileData []byte, manual bool) error {
	if !o.gate.HasPeers() {
		if manual {
			o.deps.Notify.Notify("ClipboardPush", "No peers connected")
		}
		return nil
	}

	transferID, err := newTransferID()
	if err != nil {
		o.pushFailed(manual, err)
		return err
	}
	sealed, err := envelope.Seal(o.deps.Key, fileData)
	if err != nil {
		o.pushFailed(manual, err)
		return err
	}

	tempName := transferID + "_" + filename
	tempPath := filepath.Join(o.deps.TempDir, tempName)
	if err := os.MkdirAll(o.deps.TempDir, 0o755); err != nil {
		o.pushFailed(manual, err)
		return err
	}
	if err := os.WriteFile(tempPath, sealed, 0o600); err != nil {
		o.pushFailed(manual, err)
		return err
	}

	pt := NewPendingTransfer(transferID, tempName, sealed)
	o.registry.Put(pt)
	go o.monitorArbiter(pt)

	err = o.deps.Signaling.Emit(signaling.EventFileAvailable, signaling.FileAvailable{
		TransferID: transferID,
		Filename:   filename,
		Size:       int64(len(fileData)),
		Origin:     o.deps.DeviceID,
		LANPort:    o.deps.LAN.Port(),
		LANHost:    netinfo.Capture().LocalIP,
	})
	if err != nil {
		o.pushFailed(manual, err)
		return err
	}
	if manual {
		o.deps.Notify.Notify("ClipboardPush", "File pushed: "+filename)
	}
	return nil
}

// monitorArbiter waits for the relay-vs-LAN decision (transfer_command,
// file_need_relay, or a local timeout, whichever lands first via the
// pending transfer's arbiter channel) and performs the cloud upload
// exactly once if one is needed.
func (o *Orchestrator) monitorArbiter(pt *PendingTransfer) {
	timeout := time.AfterFunc(relayTimeout, func() {
		pt.RequestRelay(ReasonTimeout)
	})
	<-pt.Arbiter()
	timeout.Stop()

	if pt.Completed() {
		return
	}
	if pt.NeedsRelay() && pt.BeginUpload() {
		if err := o.performCloudUpload(pt); err != nil {
			l.Warnf("cloud upload failed for transfer %s: %v", pt.TransferID, err)
		}
	}
}

// performCloudUpload requests an upload URL, PUTs the sealed envelope,
// and announces its availability via file_sync.
func (o *Orchestrator) performCloudUpload(pt *PendingTransfer) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reqBody, err := json.Marshal(signaling.UploadAuthRequest{
		RoomID:     o.deps.RoomID,
		TransferID: pt.TransferID,
		Filename:   pt.Filename,
	})
	if err != nil {
		return err
	}
	raw, _, err := o.deps.HTTP.PostJSON(ctx, o.deps.UploadAPI+"/file/upload_auth", reqBody, map[string]string{
		"X-Room-ID": o.deps.RoomID,
	})
	if err != nil {
		return err
	}
	var auth signaling.UploadAuthResponse
	if err := json.Unmarshal(raw, &auth); err != nil {
		return err
	}

	if _, _, err := o.deps.HTTP.PutBytes(ctx, auth.UploadURL, pt.Sealed, nil); err != nil {
		return err
	}

	l.Infof("transfer %s (reason=%s) uploaded to cloud relay", pt.TransferID, pt.Reason())
	return o.postRelay(ctx, signaling.EventFileSync, signaling.FileSyncRelayData{
		Room:        o.deps.RoomID,
		DownloadURL: auth.DownloadURL,
		Filename:    pt.Filename,
		Type:        "application/octet-stream",
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	})
}

func (o *Orchestrator) handleTransferCommand(tc signaling.TransferCommand) {
	pt, ok := o.registry.Get(tc.TransferID)
	if !ok {
		return
	}
	if tc.Command == signaling.CommandUseRelay {
		pt.RequestRelay(ReasonServerDirected)
	}
}

func (o *Orchestrator) handleFileSyncCompleted(fc signaling.FileSyncCompleted) {
	pt, ok := o.registry.Get(fc.TransferID)
	if !ok {
		return
	}
	if pt.MarkCompleted() {
		os.Remove(filepath.Join(o.deps.TempDir, pt.Filename))
		o.registry.Remove(fc.TransferID)
	}
}

// ---- inbound: files ----

// handleFileAvailable is the receiver's reaction to a peer's
// file_available announcement: probe the sender's LAN server, and
// either pull directly or ask for a relay upload.
func (o *Orchestrator) handleFileAvailable(fa signaling.FileAvailable) {
	if fa.Origin == o.deps.DeviceID {
		return
	}

	if o.deps.PreferLAN {
		lanURL := fmt.Sprintf("http://%s:%d", fa.LANHost, fa.LANPort)
		ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
		_, status, err := o.deps.HTTP.Get(ctx, lanURL+"/probe", nil)
		cancel()

		if err == nil && status == 200 {
			o.deps.Signaling.Emit(signaling.EventTransferCommand, signaling.TransferCommand{
				TransferID: fa.TransferID, Command: signaling.CommandUseLAN,
			})
			wireName := fa.TransferID + "_" + fa.Filename
			o.pullAndApply(fa.TransferID, fa.Filename, lanURL+"/files/"+wireName, map[string]string{"X-Room-ID": o.deps.RoomID}, true)
			return
		}
	}

	o.deps.Signaling.Emit(signaling.EventTransferCommand, signaling.TransferCommand{
		TransferID: fa.TransferID, Command: signaling.CommandUseRelay,
	})
	o.deps.Signaling.Emit(signaling.EventFileNeedRelay, signaling.FileNeedRelay{TransferID: fa.TransferID})
}

func (o *Orchestrator) handleFileSync(fs signaling.FileSync) {
	if fs.Origin == o.deps.DeviceID {
		return
	}
	o.pullAndApply(fs.TransferID, fs.Filename, fs.URL, nil, false)
}

// pullAndApply fetches a sealed envelope from url, decrypts it, saves it
// under the download directory with a collision-safe name, and
// acknowledges completion. fallbackOnFailure asks for a cloud relay
// upload when the fetch or decrypt fails; it is set for a LAN pull
// (where a cloud copy may still be obtainable) and cleared for a cloud
// pull (where there is nowhere left to fall back to).
func (o *Orchestrator) pullAndApply(transferID, filename, url string, headers map[string]string, fallbackOnFailure bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	sealed, status, err := o.deps.HTTP.Get(ctx, url, headers)
	if err != nil || status != 200 || len(sealed) == 0 {
		l.Warnf("failed to fetch transfer %s: %v (status %d)", transferID, err, status)
		if fallbackOnFailure {
			o.requestCloudFallback(transferID)
		}
		return
	}
	plaintext, err := envelope.Open(o.deps.Key, sealed)
	if err != nil {
		l.Warnf("failed to decrypt transfer %s: %v", transferID, err)
		if fallbackOnFailure {
			o.requestCloudFallback(transferID)
		}
		return
	}

	o.gate.BeginRemoteApply()
	if _, err := collisionSafeWrite(o.deps.DownloadDir, filename, plaintext); err != nil {
		l.Warnf("failed to save transfer %s: %v", transferID, err)
		return
	}

	o.deps.Signaling.Emit(signaling.EventFileSyncCompleted, signaling.FileSyncCompleted{TransferID: transferID})
}

// requestCloudFallback asks the sender for a cloud relay upload after a
// LAN pull could not be completed by any means.
func (o *Orchestrator) requestCloudFallback(transferID string) {
	o.deps.Signaling.Emit(signaling.EventFileNeedRelay, signaling.FileNeedRelay{
		TransferID: transferID,
		Reason:     ReasonLANUnreachable,
	})
}
