// Copyright (C) 2026 The ClipboardPush Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package lanserver is the embedded HTTP server peers on the same LAN
// pull sealed envelopes from directly, avoiding a cloud relay hop. It
// binds to 0.0.0.0 on a random port in [50000, 60000) chosen once at
// startup, and serves /probe, /ping, /files/:name, and /upload.
package lanserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/julienschmidt/httprouter"

	"github.com/clipboardpush/relayagent/lib/logger"
)

var l = logger.DefaultLogger.NewFacility("lanserver", "Embedded LAN file server")

const (
	portRangeLow  = 50000
	portRangeHigh = 60000
)

var (
	// ErrUnauthorized is returned when a request's X-Room-ID header does
	// not match the configured room.
	ErrUnauthorized = errors.New("lanserver: unauthorized")
	// ErrBadFilename is returned for a filename containing a path
	// traversal or separator component.
	ErrBadFilename = errors.New("lanserver: invalid filename")
	// ErrNotFound is returned when the requested file exists in neither
	// the download directory nor the temp directory.
	ErrNotFound = errors.New("lanserver: file not found")
)

// RoomIDFunc returns the room ID currently expected of callers; it is
// read on every request so room regeneration takes effect immediately.
type RoomIDFunc func() string

// UploadHandler is invoked after a file has been saved to disk via
// POST /upload, receiving the final saved path.
type UploadHandler func(savedPath string)

// Server is the embedded LAN HTTP listener.
type Server struct {
	roomID      RoomIDFunc
	downloadDir string
	tempDir     string
	onUpload    UploadHandler

	httpSrv *http.Server
	mu      sync.Mutex
	port    int
}

// New constructs a Server. Listen must be called to actually bind and
// serve.
func New(roomID RoomIDFunc, downloadDir, tempDir string, onUpload UploadHandler) *Server {
	return &Server{
		roomID:      roomID,
		downloadDir: downloadDir,
		tempDir:     tempDir,
		onUpload:    onUpload,
	}
}

// Listen binds to 0.0.0.0 on a random port in [50000, 60000), retrying a
// handful of times on collision, and starts serving in the background.
// It returns the bound port.
func (s *Server) Listen() (int, error) {
	router := httprouter.New()
	router.GET("/probe", s.handleProbe)
	router.GET("/ping", s.handlePing)
	router.GET("/files/:name", s.handleGetFile)
	router.POST("/upload", s.handleUpload)
	// A name that decodes to more than one path segment (e.g. an encoded
	// "../") never matches /files/:name; reject it as a bad filename.
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/files/") {
			http.Error(w, ErrBadFilename.Error(), http.StatusBadRequest)
			return
		}
		http.NotFound(w, r)
	})

	var ln net.Listener
	var err error
	for attempt := 0; attempt < 10; attempt++ {
		port := portRangeLow + rand.Intn(portRangeHigh-portRangeLow)
		ln, err = net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", port))
		if err == nil {
			s.mu.Lock()
			s.port = port
			s.mu.Unlock()
			break
		}
	}
	if err != nil {
		return 0, fmt.Errorf("lanserver: unable to bind a port: %w", err)
	}

	s.httpSrv = &http.Server{Handler: router}
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			l.Warnf("serve exited: %v", err)
		}
	}()

	l.Infof("listening on 0.0.0.0:%d", s.Port())
	return s.Port(), nil
}

// Port returns the bound listening port, or 0 if Listen has not
// succeeded yet.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleProbe(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Write([]byte("ok"))
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Write([]byte("pong"))
}

func (s *Server) authorized(r *http.Request) bool {
	want := s.roomID()
	return want != "" && r.Header.Get("X-Room-ID") == want
}

// safeFilename rejects any filename carrying a path separator or
// traversal component, returning the bare base name otherwise.
func safeFilename(name string) (string, error) {
	if name == "" {
		return "", ErrBadFilename
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, "/\\") {
		return "", ErrBadFilename
	}
	base := filepath.Base(name)
	if base != name {
		return "", ErrBadFilename
	}
	return base, nil
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if !s.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	name, err := safeFilename(ps.ByName("name"))
	if err != nil {
		http.Error(w, "bad filename", http.StatusBadRequest)
		return
	}

	for _, dir := range []string{s.downloadDir, s.tempDir} {
		path := filepath.Join(dir, name)
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		defer f.Close()
		w.Header().Set("Content-Type", "application/octet-stream")
		io.Copy(w, f)
		return
	}
	http.Error(w, "not found", http.StatusNotFound)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if !s.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	defer file.Close()

	name, err := safeFilename(header.Filename)
	if err != nil {
		http.Error(w, "bad filename", http.StatusBadRequest)
		return
	}

	if err := os.MkdirAll(s.downloadDir, 0o755); err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	savedPath, err := collisionSafeSave(s.downloadDir, name, file)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	if s.onUpload != nil {
		s.onUpload(savedPath)
	}
	w.WriteHeader(http.StatusCreated)
}

// collisionSafeSave writes src to dir/name, renaming to "stem_1.ext",
// "stem_2.ext", ... if name already exists, matching the original
// server's collision handling.
func collisionSafeSave(dir, name string, src io.Reader) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := name

	for i := 1; ; i++ {
		path := filepath.Join(dir, candidate)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
			if err != nil {
				if errors.Is(err, os.ErrExist) {
					candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
					continue
				}
				return "", err
			}
			defer f.Close()
			if _, err := io.Copy(f, src); err != nil {
				return "", err
			}
			return path, nil
		}
		candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
	}
}
