// Copyright (C) 2026 The ClipboardPush Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package signaling

import "testing"

func TestPeersExcludingSelf(t *testing.T) {
	peers := []RoomStatePeer{
		{DeviceID: "self", DeviceName: "me"},
		{DeviceID: "other", DeviceName: "them"},
	}
	got := peersExcludingSelf(peers, "self")
	if len(got) != 1 || got[0].DeviceID != "other" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestIdsExcludingSelf(t *testing.T) {
	got := idsExcludingSelf([]string{"self", "a", "b"}, "self")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestIdsExcludingSelfAllSelf(t *testing.T) {
	got := idsExcludingSelf([]string{"self"}, "self")
	if len(got) != 0 {
		t.Fatalf("expected empty slice, got %+v", got)
	}
}
