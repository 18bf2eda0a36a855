// Copyright (C) 2026 The ClipboardPush Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package syncutil wraps the stdlib sync primitives with optional
// lock-hold-time debug logging, toggled at runtime the same way
// syncthing's lib/sync does: when the "sync" facility is in debug mode,
// every mutex and wait group tracks how long it was held and logs a
// message (with caller stack) if it exceeds a threshold.
package syncutil

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/clipboardpush/relayagent/lib/logger"
)

var l = logger.DefaultLogger.NewFacility("sync", "Lock contention debugging")

var (
	debug     = logger.DefaultLogger.IsEnabledFor("sync", logger.LevelDebug)
	threshold = 100 * time.Millisecond
)

// Mutex mirrors sync.Mutex.
type Mutex interface {
	Lock()
	Unlock()
}

// RWMutex mirrors sync.RWMutex.
type RWMutex interface {
	Mutex
	RLock()
	RUnlock()
}

// WaitGroup mirrors sync.WaitGroup.
type WaitGroup interface {
	Add(int)
	Done()
	Wait()
}

// NewMutex returns a plain sync.Mutex, or a debug-logged wrapper when the
// "sync" facility is in debug mode.
func NewMutex() Mutex {
	if debug {
		return &loggedMutex{}
	}
	return &sync.Mutex{}
}

// NewRWMutex returns a plain sync.RWMutex, or a debug-logged wrapper when
// the "sync" facility is in debug mode.
func NewRWMutex() RWMutex {
	if debug {
		return &loggedRWMutex{}
	}
	return &sync.RWMutex{}
}

// NewWaitGroup returns a plain sync.WaitGroup, or a debug-logged wrapper
// when the "sync" facility is in debug mode.
func NewWaitGroup() WaitGroup {
	if debug {
		return &loggedWaitGroup{}
	}
	return &sync.WaitGroup{}
}

// SetDebug toggles lock-hold-time logging for future Mutex/RWMutex/
// WaitGroup creations.
func SetDebug(enabled bool) {
	debug = enabled
	logger.DefaultLogger.SetDebug("sync", enabled)
}

type loggedMutex struct {
	sync.Mutex
	start time.Time
}

func (m *loggedMutex) Lock() {
	m.Mutex.Lock()
	m.start = time.Now()
}

func (m *loggedMutex) Unlock() {
	d := time.Since(m.start)
	m.Mutex.Unlock()
	if d > threshold {
		l.Debugf("Mutex held for %v\nat %s", d, callerStack())
	}
}

type loggedRWMutex struct {
	sync.RWMutex
	start    time.Time
	rlockers int
	mu       sync.Mutex
}

func (m *loggedRWMutex) Lock() {
	t0 := time.Now()
	m.RWMutex.Lock()
	m.start = time.Now()
	held := time.Since(t0)
	m.mu.Lock()
	n := m.rlockers
	m.mu.Unlock()
	if n > 0 && held > threshold {
		l.Debugf("Blocked on %d RUnlockers while locking:\nat %s", n, callerStack())
	}
}

func (m *loggedRWMutex) Unlock() {
	d := time.Since(m.start)
	m.RWMutex.Unlock()
	if d > threshold {
		l.Debugf("RWMutex held for %v\nat %s", d, callerStack())
	}
}

func (m *loggedRWMutex) RLock() {
	m.mu.Lock()
	m.rlockers++
	m.mu.Unlock()
	m.RWMutex.RLock()
}

func (m *loggedRWMutex) RUnlock() {
	m.RWMutex.RUnlock()
	m.mu.Lock()
	m.rlockers--
	m.mu.Unlock()
}

type loggedWaitGroup struct {
	sync.WaitGroup
}

func (wg *loggedWaitGroup) Wait() {
	t0 := time.Now()
	wg.WaitGroup.Wait()
	if d := time.Since(t0); d > threshold {
		l.Debugf("WaitGroup waited for %v\nat %s", d, callerStack())
	}
}

func callerStack() string {
	pc := make([]uintptr, 8)
	n := runtime.Callers(4, pc)
	frames := runtime.CallersFrames(pc[:n])
	s := ""
	for {
		frame, more := frames.Next()
		s += fmt.Sprintf("%s:%d\n", frame.File, frame.Line)
		if !more {
			break
		}
	}
	return s
}
