// Copyright (C) 2026 The ClipboardPush Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package logger provides a facility-scoped leveled logger, in the style
// of syncthing's lib/logger: a single process-wide logger with named
// facilities that can each be switched into debug mode independently,
// controlled at startup by an environment variable.
package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
)

// LogLevel is the severity of a single log line.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelVerbose
	LevelInfo
	LevelWarn
	NumLevels
)

// EnvVarName is the environment variable consulted at startup to enable
// debug/verbose logging for specific facilities, e.g. "CLIPAGENT_TRACE".
const EnvVarName = "CLIPAGENT_TRACE"

// MessageHandler receives every line logged at or above the level it was
// registered for.
type MessageHandler func(l LogLevel, msg string)

// Logger is the interface consumed by the rest of the agent; packages log
// through the facility view NewFacility returns, while debug toggles and
// handlers (SetDebug, IsEnabledFor, AddHandler) are set on the
// *facilityLogger itself.
type Logger interface {
	Debugf(format string, vals ...interface{})
	Debugln(vals ...interface{})
	Verbosef(format string, vals ...interface{})
	Verboseln(vals ...interface{})
	Infof(format string, vals ...interface{})
	Infoln(vals ...interface{})
	Warnf(format string, vals ...interface{})
	Warnln(vals ...interface{})
}

type facilityLogger struct {
	mut      sync.Mutex
	logger   *log.Logger
	handlers [NumLevels][]MessageHandler
	debug    map[string]bool
}

// DefaultLogger is the process-wide logger instance; packages obtain their
// own facility-scoped view of it via NewFacility.
var DefaultLogger = New()

// New creates a standalone facility logger, writing to stderr by default.
func New() *facilityLogger {
	fl := &facilityLogger{
		logger: log.New(os.Stderr, "", log.Ltime),
		debug:  make(map[string]bool),
	}
	fl.parseEnv()
	return fl
}

func (l *facilityLogger) parseEnv() {
	spec := os.Getenv(EnvVarName)
	if spec == "" {
		return
	}
	for _, field := range strings.FieldsFunc(spec, func(r rune) bool {
		return r == ',' || r == ';' || r == '\t'
	}) {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		negate := strings.HasPrefix(field, "!")
		if negate {
			field = field[1:]
		}
		name := field
		if idx := strings.IndexByte(field, ':'); idx >= 0 {
			name = field[:idx]
		}
		if name == "all" {
			name = ""
		}
		l.debug[name] = !negate
	}
}

// NewFacility returns a Logger bound to the given facility name. The
// description is informational only, kept for parity with the facility
// registry pattern but not otherwise surfaced.
func (l *facilityLogger) NewFacility(name, _ string) Logger {
	return &facility{parent: l, name: name}
}

// SetDebug toggles debug-level output for a named facility at runtime.
func (l *facilityLogger) SetDebug(name string, enabled bool) {
	l.mut.Lock()
	defer l.mut.Unlock()
	l.debug[name] = enabled
}

// IsEnabledFor reports whether the named facility should emit the given
// level, taking both the facility-specific and "all" overrides into
// account.
func (l *facilityLogger) IsEnabledFor(name string, level LogLevel) bool {
	if level >= LevelInfo {
		return true
	}
	l.mut.Lock()
	defer l.mut.Unlock()
	if v, ok := l.debug[name]; ok {
		return v
	}
	if v, ok := l.debug[""]; ok {
		return v
	}
	return false
}

// AddHandler registers a callback invoked for every line logged at or
// above the given level, across all facilities.
func (l *facilityLogger) AddHandler(level LogLevel, h MessageHandler) {
	l.mut.Lock()
	defer l.mut.Unlock()
	for lv := level; lv < NumLevels; lv++ {
		l.handlers[lv] = append(l.handlers[lv], h)
	}
}

func (l *facilityLogger) output(level LogLevel, name, s string) {
	prefix := levelPrefix(level)
	if name != "" {
		prefix = prefix + "[" + name + "] "
	}
	l.mut.Lock()
	l.logger.Output(4, prefix+s)
	handlers := append([]MessageHandler(nil), l.handlers[level]...)
	l.mut.Unlock()
	for _, h := range handlers {
		h(level, s)
	}
}

func levelPrefix(l LogLevel) string {
	switch l {
	case LevelDebug:
		return "DEBUG: "
	case LevelVerbose:
		return "VERBOSE: "
	case LevelInfo:
		return "INFO: "
	case LevelWarn:
		return "WARN: "
	default:
		return ""
	}
}

// facility is the per-package handle returned by NewFacility.
type facility struct {
	parent *facilityLogger
	name   string
}

func (f *facility) Debugf(format string, vals ...interface{}) {
	if f.parent.IsEnabledFor(f.name, LevelDebug) {
		f.parent.output(LevelDebug, f.name, fmt.Sprintf(format, vals...))
	}
}

func (f *facility) Debugln(vals ...interface{}) {
	if f.parent.IsEnabledFor(f.name, LevelDebug) {
		f.parent.output(LevelDebug, f.name, fmt.Sprintln(vals...))
	}
}

func (f *facility) Verbosef(format string, vals ...interface{}) {
	if f.parent.IsEnabledFor(f.name, LevelVerbose) {
		f.parent.output(LevelVerbose, f.name, fmt.Sprintf(format, vals...))
	}
}

func (f *facility) Verboseln(vals ...interface{}) {
	if f.parent.IsEnabledFor(f.name, LevelVerbose) {
		f.parent.output(LevelVerbose, f.name, fmt.Sprintln(vals...))
	}
}

func (f *facility) Infof(format string, vals ...interface{}) {
	f.parent.output(LevelInfo, f.name, fmt.Sprintf(format, vals...))
}

func (f *facility) Infoln(vals ...interface{}) {
	f.parent.output(LevelInfo, f.name, fmt.Sprintln(vals...))
}

func (f *facility) Warnf(format string, vals ...interface{}) {
	f.parent.output(LevelWarn, f.name, fmt.Sprintf(format, vals...))
}

func (f *facility) Warnln(vals ...interface{}) {
	f.parent.output(LevelWarn, f.name, fmt.Sprintln(vals...))
}
