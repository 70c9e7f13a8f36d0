// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package attach is the local stream-socket front-end for interactive
// clients (C10): one JSON request per line, dispatched under the runtime
// mutex with non-blocking/blocking/timed acquisition (spec.md §4.7/§6).
package attach

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"github.com/groupsio/capharness/internal/hostruntime"
)

const maxRequestBytes = 4 * 1024 * 1024

// Server accepts concurrent clients over a Unix stream socket.
type Server struct {
	socketPath string
	runtime    capRuntime
	listener   net.Listener
	background context.Context
}

// New creates a Server bound to socketPath. background is used for
// operations (reset, restore-state, relay install) that need a context but
// have no per-request one of their own. The socket is not opened until
// Serve is called.
func New(socketPath string, rt *hostruntime.Runtime, background context.Context) *Server {
	return &Server{socketPath: socketPath, runtime: rt, background: background}
}

func (s *Server) ctx() context.Context {
	if s.background != nil {
		return s.background
	}
	return context.Background()
}

// Serve removes any stale socket file, binds the listener, and accepts
// connections until ctx-independent Close is called. Mirrors the teacher
// pack's Unix-socket proxy pattern (accept loop + one goroutine per
// connection, closed-listener errors treated as a clean shutdown signal).
func (s *Server) Serve() error {
	if err := os.RemoveAll(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("attach: remove stale socket: %w", err)
	}
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("attach: listen on %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		log.Printf("capharness: attach: chmod socket: %v", err)
	}
	s.listener = listener
	log.Printf("capharness: attach: listening on %s", s.socketPath)

	for {
		conn, err := listener.Accept()
		if err != nil {
			var opErr *net.OpError
			if errors.As(err, &opErr) && opErr.Err.Error() == "use of closed network connection" {
				return nil
			}
			log.Printf("capharness: attach: accept: %v", err)
			continue
		}
		go s.handleConnection(conn)
	}
}

// Close stops accepting new connections and removes the socket file.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	err := s.listener.Close()
	_ = os.Remove(s.socketPath)
	return err
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), maxRequestBytes)
	enc := json.NewEncoder(conn)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		resp := s.handleLine(line)
		if err := enc.Encode(resp); err != nil {
			log.Printf("capharness: attach: write response: %v", err)
			return
		}
	}
}

func (s *Server) handleLine(line []byte) interface{} {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return simpleError(fmt.Sprintf("malformed request: %v", err))
	}

	mode := hostruntime.Blocking
	var timeout time.Duration
	if req.Timeout > 0 {
		mode = hostruntime.Timed
		timeout = time.Duration(req.Timeout * float64(time.Second))
	} else if req.Wait != nil && !*req.Wait {
		mode = hostruntime.NonBlocking
	}

	result, err := s.runtime.WithLock(mode, timeout, func() (interface{}, error) {
		return s.dispatch(req)
	})
	if err != nil {
		if errors.Is(err, hostruntime.ErrBusy) {
			return simpleError("busy")
		}
		return simpleError(err.Error())
	}
	return result
}
