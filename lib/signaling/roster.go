// Copyright (C) 2026 The ClipboardPush Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package signaling

// peersExcludingSelf filters a room_state_changed roster down to peers
// other than the local device, since the relay includes the caller's
// own entry in the broadcast roster.
func peersExcludingSelf(peers []RoomStatePeer, selfID string) []RoomStatePeer {
	out := make([]RoomStatePeer, 0, len(peers))
	for _, p := range peers {
		if p.DeviceID == selfID {
			continue
		}
		out = append(out, p)
	}
	return out
}

// idsExcludingSelf does the same for the bare client_list_update array.
func idsExcludingSelf(ids []string, selfID string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == selfID {
			continue
		}
		out = append(out, id)
	}
	return out
}
