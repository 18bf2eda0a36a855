// Copyright (C) 2026 The ClipboardPush Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package netinfo captures the network metadata carried in the signaling
// join payload (local IP, default gateway) and tracks whether it has
// changed since the last snapshot, so the signaling client can bump
// network_epoch when the agent has plausibly moved networks.
package netinfo

import (
	"crypto/sha256"
	"encoding/hex"
	"net"

	"github.com/jackpal/gateway"
)

// Snapshot is the network metadata published to peers at join time.
type Snapshot struct {
	LocalIP       string `json:"local_ip"`
	Gateway       string `json:"gateway"`
	CIDR          string `json:"cidr"`
	NetworkIDHash string `json:"network_id_hash"`
}

// Capture gathers the current default gateway, the local IP used to reach
// it, its subnet in CIDR form, and a stable hash identifying the L2
// network. Any field may be empty if it could not be determined (e.g. no
// default route), which is not treated as an error: the agent still
// functions over the cloud relay.
func Capture() Snapshot {
	var snap Snapshot

	gw, err := gateway.DiscoverGateway()
	if err == nil {
		snap.Gateway = gw.String()
	}

	ip := preferredLocalIP()
	if ip != nil {
		snap.LocalIP = ip.String()
		if ipNet := subnetFor(ip); ipNet != nil {
			snap.CIDR = (&net.IPNet{IP: ip.Mask(ipNet.Mask), Mask: ipNet.Mask}).String()
		}
	}

	snap.NetworkIDHash = networkIDHash(snap.Gateway, snap.CIDR)
	return snap
}

// Changed reports whether b differs from a in any field that marks a
// genuine network change.
func Changed(a, b Snapshot) bool {
	return a.LocalIP != b.LocalIP || a.Gateway != b.Gateway || a.NetworkIDHash != b.NetworkIDHash
}

// networkIDHash derives a short, stable identifier for the current L2
// network from its gateway and subnet, the Go equivalent of the original
// agent's Windows adapter GUID: it changes when the agent moves to a
// different network and stays put otherwise.
func networkIDHash(gateway, cidr string) string {
	if gateway == "" && cidr == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(gateway + "|" + cidr))
	return hex.EncodeToString(sum[:])[:16]
}

func preferredLocalIP() net.IP {
	if ip, err := gateway.DiscoverInterface(); err == nil {
		return ip
	}
	return firstNonLoopbackIP()
}

func subnetFor(ip net.IP) *net.IPNet {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		if ipNet.IP.Equal(ip) {
			return ipNet
		}
	}
	return nil
}

func firstNonLoopbackIP() net.IP {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if v4 := ipNet.IP.To4(); v4 != nil {
			return v4
		}
	}
	return nil
}
