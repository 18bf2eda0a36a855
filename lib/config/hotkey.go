// Copyright (C) 2026 The ClipboardPush Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package config

import "strings"

// Hotkey is a parsed "Ctrl+Alt+V" style push-hotkey expression: zero or
// more modifiers plus exactly one non-modifier key.
type Hotkey struct {
	Modifiers []string
	Key       string
}

var validModifiers = map[string]bool{
	"ctrl": true, "control": true, "alt": true, "shift": true, "win": true,
}

var validKeys = buildValidKeys()

func buildValidKeys() map[string]bool {
	keys := make(map[string]bool)
	for c := 'A'; c <= 'Z'; c++ {
		keys[string(c)] = true
	}
	for i := 1; i <= 12; i++ {
		keys["F"+itoa(i)] = true
	}
	for _, k := range []string{"Space", "Insert", "Delete", "Home", "End"} {
		keys[strings.ToUpper(k)] = true
	}
	return keys
}

func itoa(i int) string {
	if i < 10 {
		return string(rune('0' + i))
	}
	return string(rune('0'+i/10)) + string(rune('0'+i%10))
}

// ParseHotkey validates and parses a "+"-separated hotkey expression.
// Whitespace around tokens is ignored; at least one non-modifier token is
// required.
func ParseHotkey(expr string) (Hotkey, error) {
	var hk Hotkey
	tokens := strings.Split(expr, "+")
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			return Hotkey{}, ErrHotkeyParse
		}
		lower := strings.ToLower(tok)
		if validModifiers[lower] {
			hk.Modifiers = append(hk.Modifiers, canonicalModifier(lower))
			continue
		}
		upper := strings.ToUpper(tok)
		if validKeys[upper] {
			if hk.Key != "" {
				return Hotkey{}, ErrHotkeyParse
			}
			hk.Key = upper
			continue
		}
		return Hotkey{}, ErrHotkeyParse
	}
	if hk.Key == "" {
		return Hotkey{}, ErrHotkeyParse
	}
	return hk, nil
}

func canonicalModifier(lower string) string {
	switch lower {
	case "control":
		return "Ctrl"
	case "ctrl":
		return "Ctrl"
	case "alt":
		return "Alt"
	case "shift":
		return "Shift"
	case "win":
		return "Win"
	}
	return lower
}

// String renders the hotkey back to its canonical "+"-joined form.
func (h Hotkey) String() string {
	parts := append([]string(nil), h.Modifiers...)
	parts = append(parts, h.Key)
	return strings.Join(parts, "+")
}

// SetHotkey validates expr and, if valid, persists it as the configured
// push hotkey.
func (w *Wrapper) SetHotkey(expr string) error {
	if _, err := ParseHotkey(expr); err != nil {
		return err
	}
	return w.Update(func(d *Data) {
		d.PushHotkey = expr
	})
}
