// Copyright (C) 2026 The ClipboardPush Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/clipboardpush/relayagent/lib/config"
	"github.com/clipboardpush/relayagent/lib/envelope"
	"github.com/clipboardpush/relayagent/lib/httpclient"
	"github.com/clipboardpush/relayagent/lib/lanserver"
	"github.com/clipboardpush/relayagent/lib/logger"
	"github.com/clipboardpush/relayagent/lib/ports"
	"github.com/clipboardpush/relayagent/lib/ports/clipboard"
	"github.com/clipboardpush/relayagent/lib/ports/hotkey"
	"github.com/clipboardpush/relayagent/lib/ports/notify"
	"github.com/clipboardpush/relayagent/lib/signaling"
	"github.com/clipboardpush/relayagent/lib/transfer"
)

var l = logger.DefaultLogger.NewFacility("main", "Agent entrypoint")

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "clipagent.json"
	}
	return filepath.Join(dir, "clipagent", "config.json")
}

func defaultTempDir() string {
	return filepath.Join(os.TempDir(), "clipagent")
}

func main() {
	log.SetFlags(log.Lshortfile | log.LstdFlags)

	var configPath string
	var debug bool
	var trace string
	var deviceName string

	flag.StringVar(&configPath, "config", defaultConfigPath(), "Path to the agent's configuration file")
	flag.BoolVar(&debug, "debug", false, "Enable debug-level logging for every facility")
	flag.StringVar(&trace, "trace", "", "Comma-separated facility trace spec, e.g. \"transfer,signaling:debug\"")
	flag.StringVar(&deviceName, "device-name", "", "Override the device name advertised to peers")
	flag.Parse()

	if debug {
		logger.DefaultLogger.SetDebug("", true)
	}
	for _, field := range strings.Split(trace, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		negate := strings.HasPrefix(field, "!")
		name := strings.TrimPrefix(field, "!")
		if idx := strings.IndexByte(name, ':'); idx >= 0 {
			name = name[:idx]
		}
		if name == "all" {
			name = ""
		}
		logger.DefaultLogger.SetDebug(name, !negate)
	}

	cfgWrapper, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	cfg := cfgWrapper.Snapshot()

	if deviceName != "" {
		cfgWrapper.Update(func(d *config.Data) { d.DeviceName = deviceName })
		cfg = cfgWrapper.Snapshot()
	}
	if cfg.DeviceName == "" {
		host, _ := os.Hostname()
		cfgWrapper.Update(func(d *config.Data) { d.DeviceName = host })
		cfg = cfgWrapper.Snapshot()
	}

	roomKey, err := envelope.DecodeKey(cfg.RoomKey)
	if err != nil {
		log.Fatalf("configured room_key is invalid: %v", err)
	}

	tempDir := defaultTempDir()
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		log.Fatalf("failed to create temp directory: %v", err)
	}
	if err := os.MkdirAll(cfg.DownloadDirectory, 0o755); err != nil {
		log.Fatalf("failed to create download directory: %v", err)
	}

	lan := lanserver.New(func() string { return cfgWrapper.Snapshot().RoomID }, cfg.DownloadDirectory, tempDir, nil)
	lanPort, err := lan.Listen()
	if err != nil {
		log.Fatalf("failed to start LAN server: %v", err)
	}
	l.Infof("LAN server listening on port %d", lanPort)

	sigClient := signaling.New(signaling.Config{
		RelayURL:   cfg.RelayURL,
		RoomID:     cfg.RoomID,
		DeviceID:   cfg.DeviceID,
		DeviceName: cfg.DeviceName,
		LANPort:    lan.Port,
	})
	sigClient.OnStatusChange(func(s signaling.ConnectionStatus) {
		l.Infof("connection status: %s", s)
	})

	clipboardAdapter, err := clipboard.New()
	if err != nil {
		log.Fatalf("failed to initialize clipboard: %v", err)
	}
	notifyAdapter := notify.New()
	notifyAdapter.SetEnabled(cfg.ShowNotifications)
	hotkeyAdapter := hotkey.New()

	orch := transfer.New(transfer.Deps{
		Signaling:   sigClient,
		LAN:         lan,
		HTTP:        httpclient.New(15 * time.Second),
		Clipboard:   clipboardAdapter,
		Notify:      notifyAdapter,
		Key:         roomKey,
		DeviceID:    cfg.DeviceID,
		TempDir:     tempDir,
		DownloadDir: cfg.DownloadDirectory,
		UploadAPI:   cfg.CloudUploadURL,
		RoomID:      cfg.RoomID,
		PreferLAN:   cfg.PreferLAN,
	})

	if err := hotkeyAdapter.Register(cfg.PushHotkey, func() {
		if err := orch.PushViaHotkey(); err != nil {
			l.Warnf("hotkey push failed: %v", err)
		}
	}); err != nil {
		l.Warnf("configured push hotkey %q is invalid, hotkey push disabled: %v", cfg.PushHotkey, err)
	}

	stopWatch := clipboardAdapter.Watch(func(c ports.ClipboardContent) {
		orch.AutoPushClipboardChange(c)
	})
	defer stopWatch()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	if err := sigClient.Connect(connectCtx); err != nil {
		l.Warnf("initial connect failed, the reconnect supervisor will retry: %v", err)
	}
	cancel()

	sup := suture.New("clipagent", suture.Spec{
		EventHook: func(e suture.Event) {
			l.Debugf("supervisor event: %s", e.String())
		},
	})
	sup.Add(orch)
	sup.Add(signaling.NewReconnectSupervisor(sigClient))
	sup.Add(signaling.NewWatchdogSupervisor(sigClient))

	l.Infof("clipagent ready: room=%s device=%s(%s)", cfg.RoomID, cfg.DeviceName, cfg.DeviceID)
	fmt.Fprintf(os.Stderr, "clipagent running; room id %s, push hotkey %s\n", cfg.RoomID, cfg.PushHotkey)

	if err := sup.Serve(ctx); err != nil && ctx.Err() == nil {
		l.Warnf("supervisor exited: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := lan.Shutdown(shutdownCtx); err != nil {
		l.Warnf("LAN server shutdown: %v", err)
	}
	sigClient.Close()
}
