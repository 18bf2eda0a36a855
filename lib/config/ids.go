// Copyright (C) 2026 The ClipboardPush Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package config

import "github.com/google/uuid"

// randomRoomID returns a fresh identifier suitable for both room IDs and
// device IDs: a UUIDv4, matching the teacher's habit of using
// google/uuid for any opaque identifier rather than hand-rolling one.
func randomRoomID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
