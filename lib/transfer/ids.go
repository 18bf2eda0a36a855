// Copyright (C) 2026 The ClipboardPush Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package transfer

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"time"
)

// newTransferID returns a millisecond-timestamp-prefixed, cryptographically
// random-suffixed identifier. The timestamp keeps IDs roughly sortable
// and human-diagnosable in logs; the random suffix (not present in the
// original implementation's simpler counter) guarantees uniqueness even
// when two transfers are announced within the same millisecond.
func newTransferID() (string, error) {
	suffix := make([]byte, 5)
	if _, err := rand.Read(suffix); err != nil {
		return "", err
	}
	enc := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(suffix)
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), enc), nil
}
