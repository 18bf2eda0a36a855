// Copyright (C) 2026 The ClipboardPush Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package envelope

import (
	"bytes"
	"testing"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return key
}

func TestRoundTrip(t *testing.T) {
	key := testKey(t)
	plaintext := []byte("the quick brown fox jumps over the lazy dog")

	sealed, err := Seal(key, plaintext)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	got, err := Open(key, sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("round trip mismatch: got %q, want %q", got, plaintext)
	}
}

func TestRoundTripEmptyPlaintext(t *testing.T) {
	key := testKey(t)
	sealed, err := Seal(key, nil)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	got, err := Open(key, sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty plaintext, got %q", got)
	}
}

func TestTamperedCiphertextRejected(t *testing.T) {
	key := testKey(t)
	sealed, err := Seal(key, []byte("hello, room"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	tampered := append([]byte(nil), sealed...)
	tampered[len(tampered)-1] ^= 0xFF

	if _, err := Open(key, tampered); err != ErrCorruptedEnvelope {
		t.Errorf("expected ErrCorruptedEnvelope for tampered envelope, got %v", err)
	}
}

func TestWrongKeyRejected(t *testing.T) {
	key := testKey(t)
	other := testKey(t)
	sealed, err := Seal(key, []byte("hello, room"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := Open(other, sealed); err != ErrCorruptedEnvelope {
		t.Errorf("expected ErrCorruptedEnvelope for wrong key, got %v", err)
	}
}

func TestShortEnvelopeRejected(t *testing.T) {
	key := testKey(t)
	if _, err := Open(key, []byte{1, 2, 3}); err != ErrCorruptedEnvelope {
		t.Errorf("expected ErrCorruptedEnvelope for short envelope, got %v", err)
	}
}

func TestNonceUniqueness(t *testing.T) {
	key := testKey(t)
	seen := make(map[string]bool)
	for i := 0; i < 256; i++ {
		sealed, err := Seal(key, []byte("same plaintext every time"))
		if err != nil {
			t.Fatalf("Seal: %v", err)
		}
		nonce := string(sealed[:nonceSize])
		if seen[nonce] {
			t.Fatalf("nonce reuse detected after %d seals", i)
		}
		seen[nonce] = true
	}
}

func TestEnvelopeSizeOverhead(t *testing.T) {
	key := testKey(t)
	plaintext := []byte("0123456789")
	sealed, err := Seal(key, plaintext)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	want := len(plaintext) + nonceSize + tagSize
	if len(sealed) != want {
		t.Errorf("unexpected envelope size: got %d, want %d", len(sealed), want)
	}
}

func TestSealTextOpenTextRoundTrip(t *testing.T) {
	key := testKey(t)
	const msg = "héllo, wörld"

	encoded, err := SealText(key, msg)
	if err != nil {
		t.Fatalf("SealText: %v", err)
	}
	got, err := OpenText(key, encoded)
	if err != nil {
		t.Fatalf("OpenText: %v", err)
	}
	if got != msg {
		t.Errorf("got %q, want %q", got, msg)
	}
}

func TestDecodeKeyRejectsWrongSize(t *testing.T) {
	if _, err := DecodeKey("dG9vc2hvcnQ="); err != ErrInvalidKeySize {
		t.Errorf("expected ErrInvalidKeySize, got %v", err)
	}
}

func TestGenerateKeyBase64RoundTrip(t *testing.T) {
	encoded, err := GenerateKeyBase64()
	if err != nil {
		t.Fatalf("GenerateKeyBase64: %v", err)
	}
	key, err := DecodeKey(encoded)
	if err != nil {
		t.Fatalf("DecodeKey: %v", err)
	}
	if len(key) != KeySize {
		t.Errorf("unexpected key length %d", len(key))
	}
}
