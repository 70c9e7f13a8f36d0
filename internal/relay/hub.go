// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Hub is the host-side registry of installed relay backends (C6). All of
// its methods are meant to be called while the host runtime mutex is held
// (spec.md §4.6: "a single hub lock is sufficient because calls are already
// serialized by the runtime mutex"); Hub keeps its own lock too so it stays
// safe if that invariant is ever relaxed.
type Hub struct {
	mu       sync.Mutex
	backends map[string]*Backend
}

func NewHub() *Hub {
	return &Hub{backends: make(map[string]*Backend)}
}

// Install spawns and registers a backend under name, replacing (and
// uninstalling) any existing entry first.
func (h *Hub) Install(ctx context.Context, name string, spec SpawnSpec) (*Backend, error) {
	h.mu.Lock()
	existing := h.backends[name]
	h.mu.Unlock()
	if existing != nil {
		_ = existing.Uninstall()
	}

	b, err := Install(ctx, name, spec)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.backends[name] = b
	h.mu.Unlock()
	return b, nil
}

// Call routes a relay invocation to the named backend.
func (h *Hub) Call(name, method string, arguments map[string]interface{}) (interface{}, error) {
	h.mu.Lock()
	b, ok := h.backends[name]
	h.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no relay capability installed under %q", name)
	}
	return b.Call(context.Background(), method, arguments)
}

// Invoke implements internal/worker.RelayInvoker.
func (h *Hub) Invoke(capability, method string, args map[string]interface{}) (interface{}, error) {
	return h.Call(capability, method, args)
}

// Uninstall best-effort shuts down and removes one backend.
func (h *Hub) Uninstall(name string) error {
	h.mu.Lock()
	b, ok := h.backends[name]
	delete(h.backends, name)
	h.mu.Unlock()
	if !ok {
		return nil
	}
	return b.Uninstall()
}

// Backend returns the installed backend under name, if any.
func (h *Hub) Backend(name string) (*Backend, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.backends[name]
	return b, ok
}

// Names lists installed backend names.
func (h *Hub) Names() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.backends))
	for name := range h.backends {
		out = append(out, name)
	}
	return out
}

// Close uninstalls every backend concurrently (spec.md §4.7: "async").
func (h *Hub) Close() error {
	h.mu.Lock()
	backends := make(map[string]*Backend, len(h.backends))
	for k, v := range h.backends {
		backends[k] = v
	}
	h.backends = make(map[string]*Backend)
	h.mu.Unlock()

	var g errgroup.Group
	for name, b := range backends {
		b := b
		name := name
		g.Go(func() error {
			if err := b.Uninstall(); err != nil {
				return fmt.Errorf("uninstall backend %s: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}
