// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package attach

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/groupsio/capharness/internal/hostruntime"
	"github.com/groupsio/capharness/internal/relay"
	"github.com/groupsio/capharness/internal/statestore"
	"github.com/groupsio/capharness/internal/worker"
)

// capRuntime is the subset of *hostruntime.Runtime the attach server needs.
// Narrowing to an interface lets tests exercise dispatch against a fake
// without spawning a real session-worker subprocess.
type capRuntime interface {
	WithLock(mode hostruntime.AcquireMode, timeout time.Duration, fn func() (interface{}, error)) (interface{}, error)
	Execute(code string) (worker.ExecuteResponse, error)
	State() (worker.StateResponse, error)
	ListCapabilities() (worker.ListCapabilitiesResponse, error)
	DescribeCapability(name string) (worker.DescribeCapabilityResponse, error)
	ExportState() (worker.Snapshot, error)
	ImportState(ctx context.Context, snap worker.Snapshot) (worker.ImportResponse, error)
	InstallFileCapability(name string, roots []string, readOnly bool) error
	InstallShellCapability(name string, cfg hostruntime.ShellCapConfig) error
	InstallRelayCapability(ctx context.Context, name string, spec relay.SpawnSpec) error
	UninstallCapability(name string) error
	SaveState(name, savedAt string) (statestore.Record, error)
	RestoreState(ctx context.Context, name string) (worker.ImportResponse, error)
	ListStates() ([]string, error)
	Reset(ctx context.Context) error
}

// dispatch runs one request under the runtime mutex (already held by the
// caller) and returns the value to encode as the response line.
func (s *Server) dispatch(req Request) (interface{}, error) {
	switch req.Op {
	case "ping":
		return map[string]interface{}{"success": true, "pong": true}, nil

	case "execute":
		return s.runtime.Execute(req.Code)

	case "state":
		return s.runtime.State()

	case "list_capabilities":
		return s.runtime.ListCapabilities()

	case "describe_capability":
		return s.runtime.DescribeCapability(req.Name)

	case "export_state":
		return s.runtime.ExportState()

	case "import_state":
		if req.State == nil {
			return nil, fmt.Errorf("import_state: missing state")
		}
		return s.runtime.ImportState(s.ctx(), *req.State)

	case "install-capability":
		return s.installCapability(req)

	case "uninstall-capability":
		if err := s.runtime.UninstallCapability(req.Name); err != nil {
			return nil, err
		}
		return simpleOK(), nil

	case "save-state":
		rec, err := s.runtime.SaveState(req.Name, time.Now().Format(time.RFC3339))
		if err != nil {
			return nil, err
		}
		return rec, nil

	case "restore-state":
		return s.runtime.RestoreState(s.ctx(), req.Name)

	case "list_states":
		names, err := s.runtime.ListStates()
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"success": true, "states": names}, nil

	case "reset":
		if err := s.runtime.Reset(s.ctx()); err != nil {
			return nil, err
		}
		return simpleOK(), nil

	default:
		return nil, fmt.Errorf("unknown op %q", req.Op)
	}
}

func (s *Server) installCapability(req Request) (interface{}, error) {
	switch req.CapKind {
	case "file":
		if err := s.runtime.InstallFileCapability(req.Name, req.Roots, false); err != nil {
			return nil, err
		}
	case "shell":
		var cfg hostruntime.ShellCapConfig
		if req.Config != "" {
			if err := json.Unmarshal([]byte(req.Config), &cfg); err != nil {
				return nil, fmt.Errorf("install-capability: shell config: %w", err)
			}
		}
		if err := s.runtime.InstallShellCapability(req.Name, cfg); err != nil {
			return nil, err
		}
	case "relay":
		spec := relay.SpawnSpec{Command: req.Command, Args: req.Args, Env: req.Env, Cwd: req.Cwd}
		if err := s.runtime.InstallRelayCapability(s.ctx(), req.Name, spec); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("install-capability: unknown cap_kind %q", req.CapKind)
	}
	return simpleOK(), nil
}
