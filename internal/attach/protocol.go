// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package attach

import "github.com/groupsio/capharness/internal/worker"

// Request is one line of the attach wire protocol (spec.md §6): a single op
// plus whatever fields that op needs, and the acquisition hint for the
// runtime mutex.
type Request struct {
	Op string `json:"op"`

	Code string `json:"code,omitempty"`
	Name string `json:"name,omitempty"`

	// install-capability fields. name/cap_kind also double as the
	// save-state/restore-state/uninstall-capability key.
	CapKind string            `json:"cap_kind,omitempty"`
	Roots   []string          `json:"roots,omitempty"`
	Config  string            `json:"config,omitempty"`
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	Cwd     string            `json:"cwd,omitempty"`

	// import_state.
	State *worker.Snapshot `json:"state,omitempty"`

	// Acquisition hint: Wait == nil means "blocking" (the default);
	// Wait == false means non-blocking; Timeout > 0 means timed,
	// regardless of Wait.
	Wait    *bool   `json:"wait,omitempty"`
	Timeout float64 `json:"timeout,omitempty"`
}

func simpleError(msg string) map[string]interface{} {
	return map[string]interface{}{"success": false, "error": msg}
}

func simpleOK() map[string]interface{} {
	return map[string]interface{}{"success": true}
}
