// Copyright (C) 2026 The ClipboardPush Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package transfer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/clipboardpush/relayagent/lib/envelope"
	"github.com/clipboardpush/relayagent/lib/httpclient"
	"github.com/clipboardpush/relayagent/lib/lanserver"
	"github.com/clipboardpush/relayagent/lib/ports"
	"github.com/clipboardpush/relayagent/lib/signaling"
)

// fakeSignaler drives the orchestrator in tests without a real relay
// connection: Emit records every outbound event, and push feeds a
// decoded inbound event to Run's select loop.
type fakeSignaler struct {
	mu      sync.Mutex
	emitted []fakeEmission
	events  chan signaling.Event
}

type fakeEmission struct {
	name    string
	payload interface{}
}

func newFakeSignaler() *fakeSignaler {
	return &fakeSignaler{events: make(chan signaling.Event, 64)}
}

func (f *fakeSignaler) Emit(event string, payload interface{}) error {
	f.mu.Lock()
	f.emitted = append(f.emitted, fakeEmission{event, payload})
	f.mu.Unlock()
	return nil
}

func (f *fakeSignaler) EventsChan() <-chan signaling.Event { return f.events }

func (f *fakeSignaler) push(name string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	f.events <- signaling.Event{Name: name, Data: data}
}

func (f *fakeSignaler) findEmitted(name string) (fakeEmission, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.emitted {
		if e.name == name {
			return e, true
		}
	}
	return fakeEmission{}, false
}

func (f *fakeSignaler) countEmitted(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.emitted {
		if e.name == name {
			n++
		}
	}
	return n
}

// fakeClipboard is an in-memory ports.ClipboardSink.
type fakeClipboard struct {
	mu      sync.Mutex
	content ports.ClipboardContent
}

func (c *fakeClipboard) Read() (ports.ClipboardContent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.content, nil
}

func (c *fakeClipboard) Write(content ports.ClipboardContent) error {
	c.mu.Lock()
	c.content = content
	c.mu.Unlock()
	return nil
}

func (c *fakeClipboard) Watch(func(ports.ClipboardContent)) func() { return func() {} }

func (c *fakeClipboard) written() ports.ClipboardContent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.content
}

// fakeNotify records every notification raised.
type fakeNotify struct {
	mu    sync.Mutex
	calls []string
}

func (n *fakeNotify) Notify(title, body string) {
	n.mu.Lock()
	n.calls = append(n.calls, title+": "+body)
	n.mu.Unlock()
}

func (n *fakeNotify) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.calls) == 0 {
		return ""
	}
	return n.calls[len(n.calls)-1]
}

func (n *fakeNotify) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

func testKey(t *testing.T) []byte {
	t.Helper()
	key, err := envelope.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return key
}

func newTestOrchestrator(t *testing.T, key []byte, sig Signaler) (*Orchestrator, *fakeClipboard, *fakeNotify, string, string) {
	t.Helper()
	tempDir := t.TempDir()
	downloadDir := t.TempDir()
	clip := &fakeClipboard{}
	notify := &fakeNotify{}

	lan := lanserver.New(func() string { return "room-1" }, downloadDir, tempDir, nil)
	if _, err := lan.Listen(); err != nil {
		t.Fatalf("lan.Listen: %v", err)
	}
	t.Cleanup(func() { lan.Shutdown(context.Background()) })

	o := New(Deps{
		Signaling:   sig,
		LAN:         lan,
		HTTP:        httpclient.New(5 * time.Second),
		Clipboard:   clip,
		Notify:      notify,
		Key:         key,
		DeviceID:    "device-a",
		TempDir:     tempDir,
		DownloadDir: downloadDir,
		UploadAPI:   "http://unused.invalid",
		RoomID:      "room-1",
		PreferLAN:   true,
	})
	return o, clip, notify, tempDir, downloadDir
}

func runOrchestrator(t *testing.T, o *Orchestrator) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go o.Run(ctx)
	t.Cleanup(cancel)
	return cancel
}

func eventually(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !cond() {
		t.Fatal("condition was never satisfied")
	}
}

func TestPushTextWithNoPeersNotifiesAndSkips(t *testing.T) {
	posts := 0
	var mu sync.Mutex
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		posts++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer relay.Close()

	sig := newFakeSignaler()
	o, _, notify, _, _ := newTestOrchestrator(t, testKey(t), sig)
	o.deps.UploadAPI = relay.URL

	if err := o.PushText("hello", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if notify.last() != "ClipboardPush: No peers connected" {
		t.Fatalf("unexpected notification: %q", notify.last())
	}
	mu.Lock()
	defer mu.Unlock()
	if posts != 0 {
		t.Fatalf("expected no relay POST with no peers, got %d", posts)
	}
}

func TestPushTextEmitsSealedEnvelope(t *testing.T) {
	key := testKey(t)

	var mu sync.Mutex
	var captured signaling.RelayEnvelope
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/relay" {
			http.NotFound(w, r)
			return
		}
		mu.Lock()
		json.NewDecoder(r.Body).Decode(&captured)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer relay.Close()

	sig := newFakeSignaler()
	o, _, notify, _, _ := newTestOrchestrator(t, key, sig)
	o.deps.UploadAPI = relay.URL
	o.Gate().SetActivePeerCount(1)

	if err := o.PushText("hello world", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mu.Lock()
	env := captured
	mu.Unlock()
	if env.Event != signaling.EventClipboardSync {
		t.Fatalf("unexpected relay event %q", env.Event)
	}
	if env.SenderID != "device-a" {
		t.Fatalf("unexpected sender_id %q", env.SenderID)
	}
	raw, err := json.Marshal(env.Data)
	if err != nil {
		t.Fatalf("remarshal data: %v", err)
	}
	var data signaling.ClipboardSyncRelayData
	if err := json.Unmarshal(raw, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if !data.Encrypted || data.Source != "device-a" {
		t.Fatalf("unexpected relay data: %+v", data)
	}
	plain, err := envelope.OpenText(key, data.Content)
	if err != nil {
		t.Fatalf("OpenText: %v", err)
	}
	if plain != "hello world" {
		t.Fatalf("unexpected plaintext %q", plain)
	}
	if notify.last() != "ClipboardPush: Clipboard pushed" {
		t.Fatalf("unexpected notification %q", notify.last())
	}
}

func TestHandleClipboardSyncIgnoresOwnOrigin(t *testing.T) {
	key := testKey(t)
	sig := newFakeSignaler()
	o, clip, _, _, _ := newTestOrchestrator(t, key, sig)
	runOrchestrator(t, o)

	sealed, err := envelope.SealText(key, "should not apply")
	if err != nil {
		t.Fatal(err)
	}
	sig.push(signaling.EventClipboardSync, signaling.ClipboardSync{Envelope: sealed, Origin: "device-a"})

	time.Sleep(100 * time.Millisecond)
	if clip.written().Text != "" {
		t.Fatal("own-origin clipboard_sync should not be applied")
	}
}

func TestHandleClipboardSyncAppliesRemoteAndSuppresses(t *testing.T) {
	key := testKey(t)
	sig := newFakeSignaler()
	o, clip, _, _, _ := newTestOrchestrator(t, key, sig)
	runOrchestrator(t, o)

	sealed, err := envelope.SealText(key, "from peer")
	if err != nil {
		t.Fatal(err)
	}
	sig.push(signaling.EventClipboardSync, signaling.ClipboardSync{Envelope: sealed, Origin: "device-b"})

	eventually(t, time.Second, func() bool { return clip.written().Text == "from peer" })
	if !o.Gate().ShouldSuppressOutbound() {
		t.Fatal("expected suppression latch set after applying remote clipboard content")
	}
}

func TestPushFileDataWritesWireNamedTempFile(t *testing.T) {
	key := testKey(t)
	sig := newFakeSignaler()
	o, _, _, tempDir, _ := newTestOrchestrator(t, key, sig)
	o.Gate().SetActivePeerCount(1)

	if err := o.PushFileData("report.pdf", []byte("file contents"), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	emission, ok := sig.findEmitted(signaling.EventFileAvailable)
	if !ok {
		t.Fatal("expected file_available to be emitted")
	}
	fa := emission.payload.(signaling.FileAvailable)
	if fa.Filename != "report.pdf" || fa.Origin != "device-a" {
		t.Fatalf("unexpected file_available payload: %+v", fa)
	}

	wireName := fa.TransferID + "_report.pdf"
	if _, err := os.Stat(filepath.Join(tempDir, wireName)); err != nil {
		t.Fatalf("expected wire-named temp file to exist: %v", err)
	}
}

func TestRelayRequestedViaFileNeedRelayTriggersUpload(t *testing.T) {
	key := testKey(t)
	sig := newFakeSignaler()
	o, _, _, _, _ := newTestOrchestrator(t, key, sig)
	o.Gate().SetActivePeerCount(1)

	uploadCount := 0
	relayCount := 0
	var mu sync.Mutex
	var relay *httptest.Server
	relay = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/file/upload_auth":
			mu.Lock()
			uploadCount++
			mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(signaling.UploadAuthResponse{
				UploadURL:   relay.URL + "/blob",
				DownloadURL: relay.URL + "/blob",
			})
		case "/blob":
			w.WriteHeader(http.StatusOK)
		case "/relay":
			mu.Lock()
			relayCount++
			mu.Unlock()
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer relay.Close()

	o.deps.UploadAPI = relay.URL
	o.deps.HTTP = httpclient.New(5 * time.Second)

	if err := o.PushFileData("photo.png", []byte("binary data"), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	emission, ok := sig.findEmitted(signaling.EventFileAvailable)
	if !ok {
		t.Fatal("expected file_available")
	}
	fa := emission.payload.(signaling.FileAvailable)

	sig.push(signaling.EventFileNeedRelay, signaling.FileNeedRelay{TransferID: fa.TransferID})

	eventually(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return relayCount == 1
	})

	mu.Lock()
	count := uploadCount
	mu.Unlock()
	if count != 1 {
		t.Fatalf("expected exactly one upload_auth call, got %d", count)
	}
}

func TestRelayRequestIsIdempotentUnderConcurrentSignals(t *testing.T) {
	pt := NewPendingTransfer("t1", "a.txt", []byte("x"))

	var wg sync.WaitGroup
	beginCount := 0
	var mu sync.Mutex
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pt.RequestRelay(ReasonAppFallback)
			if pt.BeginUpload() {
				mu.Lock()
				beginCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if beginCount != 1 {
		t.Fatalf("expected BeginUpload to succeed exactly once, got %d", beginCount)
	}
}

func TestHandleFileSyncCompletedRemovesTempFileOnce(t *testing.T) {
	key := testKey(t)
	sig := newFakeSignaler()
	o, _, _, tempDir, _ := newTestOrchestrator(t, key, sig)

	pt := NewPendingTransfer("t1", "wire_name.txt", []byte("sealed"))
	o.registry.Put(pt)
	tempPath := filepath.Join(tempDir, pt.Filename)
	if err := os.WriteFile(tempPath, []byte("sealed"), 0o600); err != nil {
		t.Fatal(err)
	}

	o.handleFileSyncCompleted(signaling.FileSyncCompleted{TransferID: "t1"})
	if _, err := os.Stat(tempPath); !os.IsNotExist(err) {
		t.Fatal("expected temp file to be removed")
	}
	if _, ok := o.registry.Get("t1"); ok {
		t.Fatal("expected registry entry to be removed")
	}

	// A second delivery of the same ack (at-least-once signaling) must
	// be a harmless no-op, not a panic or double-remove error.
	o.handleFileSyncCompleted(signaling.FileSyncCompleted{TransferID: "t1"})
}

func TestHandleFileAvailablePullsOverLAN(t *testing.T) {
	key := testKey(t)
	senderSig := newFakeSignaler()
	sender, _, _, _, _ := newTestOrchestrator(t, key, senderSig)
	sender.Gate().SetActivePeerCount(1)

	plaintext := []byte("hello over lan")
	if err := sender.PushFileData("notes.txt", plaintext, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	emission, ok := senderSig.findEmitted(signaling.EventFileAvailable)
	if !ok {
		t.Fatal("expected file_available")
	}
	fa := emission.payload.(signaling.FileAvailable)
	fa.Origin = "device-b" // simulate this announcement arriving from a peer

	receiverSig := newFakeSignaler()
	receiver, _, _, _, receiverDownload := newTestOrchestrator(t, key, receiverSig)

	// Point the receiver at the sender's real LAN server.
	fa.LANHost = "127.0.0.1"
	fa.LANPort = sender.deps.LAN.Port()

	receiver.handleFileAvailable(fa)

	eventually(t, 2*time.Second, func() bool {
		_, err := os.Stat(filepath.Join(receiverDownload, "notes.txt"))
		return err == nil
	})

	got, err := os.ReadFile(filepath.Join(receiverDownload, "notes.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != string(plaintext) {
		t.Fatalf("unexpected content %q", got)
	}

	if _, ok := receiverSig.findEmitted(signaling.EventFileSyncCompleted); !ok {
		t.Fatal("expected file_sync_completed to be emitted")
	}
	cmd, ok := receiverSig.findEmitted(signaling.EventTransferCommand)
	if !ok || cmd.payload.(signaling.TransferCommand).Command != signaling.CommandUseLAN {
		t.Fatal("expected transfer_command use_lan")
	}
}

func TestHandleFileAvailableFallsBackToRelayWhenLANUnreachable(t *testing.T) {
	key := testKey(t)
	receiverSig := newFakeSignaler()
	receiver, _, _, _, _ := newTestOrchestrator(t, key, receiverSig)

	fa := signaling.FileAvailable{
		TransferID: "t-unreachable",
		Filename:   "x.bin",
		Origin:     "device-b",
		LANHost:    "127.0.0.1",
		LANPort:    1, // nothing listening
	}
	receiver.handleFileAvailable(fa)

	cmd, ok := receiverSig.findEmitted(signaling.EventTransferCommand)
	if !ok || cmd.payload.(signaling.TransferCommand).Command != signaling.CommandUseRelay {
		t.Fatal("expected transfer_command use_relay fallback")
	}
	if _, ok := receiverSig.findEmitted(signaling.EventFileNeedRelay); !ok {
		t.Fatal("expected file_need_relay fallback")
	}
}

func TestHandleFileAvailableSkipsProbeWhenLANDisabled(t *testing.T) {
	key := testKey(t)
	senderSig := newFakeSignaler()
	sender, _, _, _, _ := newTestOrchestrator(t, key, senderSig)
	sender.Gate().SetActivePeerCount(1)
	if err := sender.PushFileData("notes.txt", []byte("data"), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	emission, _ := senderSig.findEmitted(signaling.EventFileAvailable)
	fa := emission.payload.(signaling.FileAvailable)
	fa.Origin = "device-b"
	fa.LANHost = "127.0.0.1"
	fa.LANPort = sender.deps.LAN.Port() // reachable, but PreferLAN is off below

	receiverSig := newFakeSignaler()
	receiver, _, _, _, _ := newTestOrchestrator(t, key, receiverSig)
	receiver.deps.PreferLAN = false

	receiver.handleFileAvailable(fa)

	cmd, ok := receiverSig.findEmitted(signaling.EventTransferCommand)
	if !ok || cmd.payload.(signaling.TransferCommand).Command != signaling.CommandUseRelay {
		t.Fatal("expected transfer_command use_relay when PreferLAN is disabled, even though LAN was reachable")
	}
	if _, ok := receiverSig.findEmitted(signaling.EventFileNeedRelay); !ok {
		t.Fatal("expected file_need_relay")
	}
}

func TestHandleFileSyncIgnoresOwnOrigin(t *testing.T) {
	key := testKey(t)
	sig := newFakeSignaler()
	o, _, _, _, downloadDir := newTestOrchestrator(t, key, sig)

	o.handleFileSync(signaling.FileSync{TransferID: "t1", Filename: "x.bin", URL: "http://unused.invalid", Origin: "device-a"})

	if entries, _ := os.ReadDir(downloadDir); len(entries) != 0 {
		t.Fatal("own-origin file_sync should not trigger a fetch")
	}
}
