// Copyright (C) 2026 The ClipboardPush Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package transfer

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCollisionSafeWriteFirstWrite(t *testing.T) {
	dir := t.TempDir()
	path, err := collisionSafeWrite(dir, "report.txt", []byte("v1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(path) != "report.txt" {
		t.Fatalf("expected report.txt, got %s", path)
	}
	got, _ := os.ReadFile(path)
	if string(got) != "v1" {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestCollisionSafeWriteRenamesOnCollision(t *testing.T) {
	dir := t.TempDir()
	if _, err := collisionSafeWrite(dir, "report.txt", []byte("v1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	path2, err := collisionSafeWrite(dir, "report.txt", []byte("v2"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(path2) != "report_1.txt" {
		t.Fatalf("expected report_1.txt, got %s", path2)
	}
	path3, err := collisionSafeWrite(dir, "report.txt", []byte("v3"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(path3) != "report_2.txt" {
		t.Fatalf("expected report_2.txt, got %s", path3)
	}

	original, _ := os.ReadFile(filepath.Join(dir, "report.txt"))
	if string(original) != "v1" {
		t.Fatal("original file must not be overwritten")
	}
}

func TestNewTransferIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := newTransferID()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate transfer id %s", id)
		}
		seen[id] = true
	}
}
