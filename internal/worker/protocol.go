// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package worker is the host-side driver for a session worker subprocess:
// it spawns cmd/sessionworker, speaks the line-delimited JSON command
// protocol described in spec.md §4.5 over its stdin/stdout, and intercepts
// inline relay_request/relay_response traffic on behalf of the relay hub.
package worker

// Request is one host→worker command line.
type Request struct {
	Op    string              `json:"op"`
	Code  string              `json:"code,omitempty"`
	Name  string              `json:"name,omitempty"`
	Tools map[string]ToolSpec `json:"tools,omitempty"`
	State *Snapshot           `json:"state,omitempty"`

	// fields for inject_capability (capharness addition — see DESIGN.md)
	CapKind string `json:"cap_kind,omitempty"`
	Config  string `json:"config,omitempty"`
}

// ToolSpec describes one tool exposed by a relay backend.
type ToolSpec struct {
	Description     string                 `json:"description"`
	ParameterSchema map[string]interface{} `json:"parameter_schema"`
}

// PongResponse answers `ping`.
type PongResponse struct {
	Pong bool `json:"pong"`
}

// ExecuteResponse answers `execute`.
type ExecuteResponse struct {
	Success      bool        `json:"success"`
	Stdout       string      `json:"stdout"`
	Stderr       string      `json:"stderr"`
	ReturnValue  interface{} `json:"return_value,omitempty"`
	ErrorType    string      `json:"error_type,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

// FunctionInfo/VariableInfo back the `state` command's best-effort
// introspection (spec.md §4.5).
type FunctionInfo struct {
	Name      string `json:"name"`
	Signature string `json:"signature"`
	Doc       string `json:"doc,omitempty"`
}

type VariableInfo struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// StateResponse answers `state`.
type StateResponse struct {
	Functions     []FunctionInfo `json:"functions"`
	Variables     []VariableInfo `json:"variables"`
	Capabilities  []string       `json:"capabilities"`
	HistoryLength int            `json:"history_length"`
}

// SimpleResponse answers `inject` and `inject_relay_capability`.
type SimpleResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// RegisterCapabilityResponse answers `register_capability`.
type RegisterCapabilityResponse struct {
	Success        bool   `json:"success"`
	CapabilityName string `json:"capability_name,omitempty"`
	Error          string `json:"error,omitempty"`
}

// ListCapabilitiesResponse answers `list_capabilities`.
type ListCapabilitiesResponse struct {
	Capabilities []string `json:"capabilities"`
}

// DescribeCapabilityResponse answers `describe_capability` (SUPPLEMENTED
// FEATURES: every capability's own Describe() text).
type DescribeCapabilityResponse struct {
	Success     bool   `json:"success"`
	Description string `json:"description,omitempty"`
	Error       string `json:"error,omitempty"`
}

// VariableSnapshot/FunctionSnapshot/CapabilitySnapshot/Snapshot mirror
// internal/script's shapes over the wire, so the worker doesn't need to
// import the host's process structure and the host doesn't need to import
// the worker's interpreter package.
type VariableSnapshot struct {
	Name  string      `json:"name"`
	Kind  string      `json:"kind"`
	Value interface{} `json:"value,omitempty"`
	Repr  string      `json:"repr,omitempty"`
	Type  string      `json:"type"`
}

type FunctionSnapshot struct {
	Name      string `json:"name"`
	Signature string `json:"signature"`
	Source    string `json:"source"`
}

type CapabilitySnapshot struct {
	Name       string   `json:"name"`
	Kind       string   `json:"kind"`
	CapKind    string   `json:"cap_kind,omitempty"`
	ConfigJSON string   `json:"config,omitempty"`
	RelayName  string   `json:"relay_name,omitempty"`
	RelayTools []string `json:"relay_tools,omitempty"`
}

// Snapshot is the full export_state/import_state payload.
type Snapshot struct {
	Variables    []VariableSnapshot   `json:"variables"`
	Functions    []FunctionSnapshot   `json:"functions"`
	Capabilities []CapabilitySnapshot `json:"capabilities"`
	History      []string             `json:"history"`
}

// ImportResponse answers `import_state`.
type ImportResponse struct {
	FunctionsRestored          int      `json:"functions_restored"`
	VariablesRestored          int      `json:"variables_restored"`
	CapabilitiesRestored       int      `json:"capabilities_restored"`
	FunctionsFailed            []string `json:"functions_failed,omitempty"`
	VariablesFailed            []string `json:"variables_failed,omitempty"`
	CapabilitiesFailed         []string `json:"capabilities_failed,omitempty"`
	RelayCapabilitiesToRestore []string `json:"relay_capabilities_to_restore,omitempty"`
}

// RelayRequest is emitted by the worker mid-execute when script code calls
// a relay capability's method (spec.md §4.5).
type RelayRequest struct {
	Type       string                 `json:"type"`
	ID         int64                  `json:"id"`
	Capability string                 `json:"capability"`
	Method     string                 `json:"method"`
	Arguments  map[string]interface{} `json:"arguments"`
}

// RelayResponse answers a RelayRequest.
type RelayResponse struct {
	Type    string      `json:"type"`
	ID      int64       `json:"id"`
	Success bool        `json:"success"`
	Result  interface{} `json:"result,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// envelope is used only to sniff the "type" discriminator of an incoming
// line before deciding whether it's a relay request or a command response.
type envelope struct {
	Type string `json:"type"`
}
