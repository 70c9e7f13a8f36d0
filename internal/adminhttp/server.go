// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package adminhttp

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/groupsio/capharness/internal/hostruntime"
)

// Server is the loopback admin HTTP server.
type Server struct {
	addr   string
	router *mux.Router
	server *http.Server
}

// NewServer builds a Server bound to addr (typically a loopback address
// such as "127.0.0.1:8090"; see HostConfig.HTTPAddr).
func NewServer(addr string, rt *hostruntime.Runtime) *Server {
	return &Server{addr: addr, router: NewRouter(rt)}
}

// Router returns the underlying router, mainly for tests.
func (s *Server) Router() *mux.Router {
	return s.router
}

// ListenAndServe starts the server. Blocks until Shutdown is called or the
// listener fails.
func (s *Server) ListenAndServe() error {
	s.server = &http.Server{Addr: s.addr, Handler: s.router}
	log.Printf("admin HTTP server listening on http://%s", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	shutdownCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
	}
	return s.server.Shutdown(shutdownCtx)
}
