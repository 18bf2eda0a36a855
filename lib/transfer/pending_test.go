// Copyright (C) 2026 The ClipboardPush Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package transfer

import (
	"sync"
	"testing"
	"time"
)

func TestMarkCompletedIsMonotonic(t *testing.T) {
	pt := NewPendingTransfer("t1", "a.txt", []byte("x"))
	if !pt.MarkCompleted() {
		t.Fatal("first MarkCompleted should return true")
	}
	if pt.MarkCompleted() {
		t.Fatal("second MarkCompleted should return false")
	}
	if !pt.Completed() {
		t.Fatal("expected Completed() true")
	}
}

func TestRequestRelayFirstReasonWins(t *testing.T) {
	pt := NewPendingTransfer("t1", "a.txt", nil)

	var wg sync.WaitGroup
	reasons := []string{ReasonServerDirected, ReasonAppFallback, ReasonTimeout}
	for _, r := range reasons {
		wg.Add(1)
		go func(reason string) {
			defer wg.Done()
			pt.RequestRelay(reason)
		}(r)
	}
	wg.Wait()

	if !pt.NeedsRelay() {
		t.Fatal("expected NeedsRelay() true")
	}
	got := pt.Reason()
	found := false
	for _, r := range reasons {
		if got == r {
			found = true
		}
	}
	if !found {
		t.Fatalf("unexpected reason %q", got)
	}
}

func TestArbiterWakesOnRelayRequest(t *testing.T) {
	pt := NewPendingTransfer("t1", "a.txt", nil)

	select {
	case <-pt.Arbiter():
		t.Fatal("arbiter should not be closed yet")
	default:
	}

	pt.RequestRelay(ReasonTimeout)

	select {
	case <-pt.Arbiter():
	case <-time.After(time.Second):
		t.Fatal("arbiter did not wake up after RequestRelay")
	}
}

func TestBeginUploadOnlyOnce(t *testing.T) {
	pt := NewPendingTransfer("t1", "a.txt", nil)
	if !pt.BeginUpload() {
		t.Fatal("first BeginUpload should return true")
	}
	if pt.BeginUpload() {
		t.Fatal("second BeginUpload should return false")
	}
}

func TestRegistryPutGetRemove(t *testing.T) {
	r := NewRegistry()
	pt := NewPendingTransfer("t1", "a.txt", nil)
	r.Put(pt)

	got, ok := r.Get("t1")
	if !ok || got != pt {
		t.Fatalf("expected to retrieve the same pending transfer")
	}
	if r.Len() != 1 {
		t.Fatalf("expected len 1, got %d", r.Len())
	}

	r.Remove("t1")
	if _, ok := r.Get("t1"); ok {
		t.Fatal("expected transfer to be removed")
	}
	if r.Len() != 0 {
		t.Fatalf("expected len 0, got %d", r.Len())
	}
}
