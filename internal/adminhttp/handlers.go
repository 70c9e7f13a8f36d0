// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package adminhttp

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/groupsio/capharness/internal/hostruntime"
	"github.com/groupsio/capharness/internal/relay"
)

// RuntimeHandler exposes internal/hostruntime.Runtime's operations over
// HTTP, the same surface internal/attach exposes over a Unix socket.
type RuntimeHandler struct {
	rt *hostruntime.Runtime
}

// NewRuntimeHandler creates a RuntimeHandler.
func NewRuntimeHandler(rt *hostruntime.Runtime) *RuntimeHandler {
	return &RuntimeHandler{rt: rt}
}

type executeRequest struct {
	Code string `json:"code"`
}

// Execute handles POST /execute.
func (h *RuntimeHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid JSON: "+err.Error())
		return
	}
	withRuntime(w, r, h.rt, func() (interface{}, error) {
		return h.rt.Execute(req.Code)
	})
}

// State handles GET /state.
func (h *RuntimeHandler) State(w http.ResponseWriter, r *http.Request) {
	withRuntime(w, r, h.rt, func() (interface{}, error) {
		return h.rt.State()
	})
}

// ListCapabilities handles GET /capabilities.
func (h *RuntimeHandler) ListCapabilities(w http.ResponseWriter, r *http.Request) {
	withRuntime(w, r, h.rt, func() (interface{}, error) {
		return h.rt.ListCapabilities()
	})
}

// DescribeCapability handles GET /capabilities/{name}.
func (h *RuntimeHandler) DescribeCapability(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	withRuntime(w, r, h.rt, func() (interface{}, error) {
		return h.rt.DescribeCapability(name)
	})
}

type installCapabilityRequest struct {
	Name    string                     `json:"name"`
	CapKind string                     `json:"cap_kind"`
	Roots   []string                   `json:"roots,omitempty"`
	Config  hostruntime.ShellCapConfig `json:"config,omitempty"`
	Command string                     `json:"command,omitempty"`
	Args    []string                   `json:"args,omitempty"`
	Env     map[string]string          `json:"env,omitempty"`
	Cwd     string                     `json:"cwd,omitempty"`
}

// InstallCapability handles POST /capabilities.
func (h *RuntimeHandler) InstallCapability(w http.ResponseWriter, r *http.Request) {
	var req installCapabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid JSON: "+err.Error())
		return
	}
	withRuntime(w, r, h.rt, func() (interface{}, error) {
		switch req.CapKind {
		case "file":
			if err := h.rt.InstallFileCapability(req.Name, req.Roots, false); err != nil {
				return nil, err
			}
		case "shell":
			if err := h.rt.InstallShellCapability(req.Name, req.Config); err != nil {
				return nil, err
			}
		case "relay":
			spec := relay.SpawnSpec{Command: req.Command, Args: req.Args, Env: req.Env, Cwd: req.Cwd}
			if err := h.rt.InstallRelayCapability(r.Context(), req.Name, spec); err != nil {
				return nil, err
			}
		default:
			return nil, errUnknownCapKind(req.CapKind)
		}
		return map[string]interface{}{"success": true}, nil
	})
}

// UninstallCapability handles DELETE /capabilities/{name}.
func (h *RuntimeHandler) UninstallCapability(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	withRuntime(w, r, h.rt, func() (interface{}, error) {
		if err := h.rt.UninstallCapability(name); err != nil {
			return nil, err
		}
		return map[string]interface{}{"success": true}, nil
	})
}

// ListStates handles GET /states.
func (h *RuntimeHandler) ListStates(w http.ResponseWriter, r *http.Request) {
	withRuntime(w, r, h.rt, func() (interface{}, error) {
		names, err := h.rt.ListStates()
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"states": names}, nil
	})
}

// SaveState handles POST /states/{name}.
func (h *RuntimeHandler) SaveState(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	withRuntime(w, r, h.rt, func() (interface{}, error) {
		return h.rt.SaveState(name, nowRFC3339())
	})
}

// RestoreState handles POST /states/{name}/restore.
func (h *RuntimeHandler) RestoreState(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	withRuntime(w, r, h.rt, func() (interface{}, error) {
		return h.rt.RestoreState(r.Context(), name)
	})
}

// Reset handles POST /reset.
func (h *RuntimeHandler) Reset(w http.ResponseWriter, r *http.Request) {
	withRuntime(w, r, h.rt, func() (interface{}, error) {
		if err := h.rt.Reset(r.Context()); err != nil {
			return nil, err
		}
		return map[string]interface{}{"success": true}, nil
	})
}
