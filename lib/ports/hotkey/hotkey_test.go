// Copyright (C) 2026 The ClipboardPush Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package hotkey

import "testing"

func TestRegisterRejectsInvalidExpression(t *testing.T) {
	a := New()
	if err := a.Register("NotAHotkey", func() {}); err == nil {
		t.Error("expected error for invalid hotkey expression")
	}
}

func TestTriggerInvokesRegisteredCallback(t *testing.T) {
	a := New()
	called := false
	if err := a.Register("Ctrl+Alt+V", func() { called = true }); err != nil {
		t.Fatalf("Register: %v", err)
	}
	a.Trigger()
	if !called {
		t.Error("expected Trigger to invoke the registered callback")
	}
}

func TestTriggerWithoutRegisterIsNoop(t *testing.T) {
	a := New()
	a.Trigger() // must not panic
}
