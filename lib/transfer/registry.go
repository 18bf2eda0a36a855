// Copyright (C) 2026 The ClipboardPush Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package transfer

import "github.com/clipboardpush/relayagent/lib/syncutil"

// Registry is the sender-side table of in-flight PendingTransfers, keyed
// by transfer ID. At most one entry is expected at a time per the
// single-object-in-flight-per-direction non-goal, but the registry
// itself does not enforce that limit; callers do.
type Registry struct {
	mu      syncutil.Mutex
	entries map[string]*PendingTransfer
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		mu:      syncutil.NewMutex(),
		entries: make(map[string]*PendingTransfer),
	}
}

// Put registers a transfer.
func (r *Registry) Put(p *PendingTransfer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[p.TransferID] = p
}

// Get looks up a transfer by ID.
func (r *Registry) Get(transferID string) (*PendingTransfer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.entries[transferID]
	return p, ok
}

// Remove deletes a transfer once it is fully resolved.
func (r *Registry) Remove(transferID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, transferID)
}

// Len reports how many transfers are currently tracked.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
