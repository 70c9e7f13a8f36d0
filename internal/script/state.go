// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package script

import "fmt"

// VariableSnapshot is one exported variable binding (spec.md §3: "kind is
// 'value' when the binding round-trips through JSON, 'repr' otherwise").
type VariableSnapshot struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Value Value  `json:"value,omitempty"`
	Repr  string `json:"repr,omitempty"`
	Type  string `json:"type"`
}

// FunctionSnapshot captures enough of a def to recreate it verbatim.
type FunctionSnapshot struct {
	Name      string `json:"name"`
	Signature string `json:"signature"`
	Source    string `json:"source"`
}

// CapabilitySnapshot captures one registered capability.
type CapabilitySnapshot struct {
	Name       string   `json:"name"`
	Kind       string   `json:"kind"` // "native" or "relay"
	CapKind    string   `json:"cap_kind,omitempty"`
	ConfigJSON string   `json:"config,omitempty"`
	RelayName  string   `json:"relay_name,omitempty"`
	RelayTools []string `json:"relay_tools,omitempty"`
}

// Snapshot is the full namespace export used by export_state / the session
// statestore (SPEC_FULL.md's C8).
type Snapshot struct {
	Variables    []VariableSnapshot   `json:"variables"`
	Functions    []FunctionSnapshot   `json:"functions"`
	Capabilities []CapabilitySnapshot `json:"capabilities"`
	History      []string             `json:"history"`
}

// Export walks the namespace in binding order and produces a Snapshot.
func (in *Interpreter) Export() Snapshot {
	var snap Snapshot
	for _, name := range in.ns.Names() {
		b, _ := in.ns.Get(name)
		switch b.Kind {
		case KindVariable:
			vs := VariableSnapshot{Name: name, Type: TypeName(b.Value)}
			if JSONRoundTrippable(b.Value) {
				vs.Kind = "value"
				vs.Value = b.Value
			} else {
				vs.Kind = "repr"
				vs.Repr = Repr(b.Value)
			}
			snap.Variables = append(snap.Variables, vs)
		case KindFunction:
			snap.Functions = append(snap.Functions, FunctionSnapshot{
				Name:      name,
				Signature: fmt.Sprintf("%s(%s)", name, joinParams(b.Func.Params)),
				Source:    b.Source,
			})
		case KindCapability:
			cb := b.Capability
			cs := CapabilitySnapshot{Name: name, Kind: string(cb.Kind)}
			if cb.Kind == CapabilityNative {
				cs.CapKind = cb.CapKind
				cs.ConfigJSON = cb.ConfigJSON
			} else {
				cs.RelayName = cb.RelayName
				cs.RelayTools = cb.RelayTools
			}
			snap.Capabilities = append(snap.Capabilities, cs)
		}
	}
	snap.History = in.History()
	return snap
}

func joinParams(params []string) string {
	out := ""
	for i, p := range params {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}

// ImportResult reports, per kind, which bindings actually restored —
// restore order is functions, then variables, then (by the caller,
// cmd/sessionworker's import_state handler) capabilities. A failure in one binding is recorded by
// name and does not stop the rest of that kind's list, or any other kind,
// from restoring.
type ImportResult struct {
	FunctionsRestored []string
	FunctionsFailed   []string
	VariablesRestored []string
	VariablesFailed   []string
}

// Import restores variables and function sources into the namespace.
// Capabilities are NOT restored here — reconstructing a native capability
// requires the host-side constructor (filecap.New, shellcap.New, ...), and
// a relay capability requires re-establishing the backend process. After
// Import runs, cmd/sessionworker's import_state handler rebuilds native
// capabilities from their stored kind and config, and reports relay
// capabilities back to the host, which re-installs them.
func (in *Interpreter) Import(snap Snapshot) ImportResult {
	var res ImportResult
	for _, f := range snap.Functions {
		if err := in.importFunction(f); err != nil {
			res.FunctionsFailed = append(res.FunctionsFailed, f.Name)
			continue
		}
		res.FunctionsRestored = append(res.FunctionsRestored, f.Name)
	}
	for _, v := range snap.Variables {
		if v.Kind == "value" {
			in.ns.SetValue(v.Name, v.Value)
		} else {
			in.ns.Set(v.Name, &Binding{Kind: KindVariable, IsRepr: true, ReprText: v.Repr, Value: v.Repr})
		}
		res.VariablesRestored = append(res.VariablesRestored, v.Name)
	}
	in.history = append(in.history, snap.History...)
	return res
}

func (in *Interpreter) importFunction(f FunctionSnapshot) error {
	stmts, err := Parse(f.Source)
	if err != nil {
		return fmt.Errorf("restoring function %q: %w", f.Name, err)
	}
	if len(stmts) != 1 {
		return fmt.Errorf("restoring function %q: expected a single def", f.Name)
	}
	fd, ok := stmts[0].(*FuncDefStmt)
	if !ok {
		return fmt.Errorf("restoring function %q: source is not a def", f.Name)
	}
	in.ns.Set(f.Name, &Binding{Kind: KindFunction, Func: fd.Def, Source: f.Source})
	return nil
}

// RegisterNativeCapability binds name to a host-native capability.
func (in *Interpreter) RegisterNativeCapability(name, capKind, configJSON string, dispatcher NativeDispatcher) {
	in.ns.Set(name, &Binding{Kind: KindCapability, Capability: &CapabilityBinding{
		Kind:       CapabilityNative,
		Native:     dispatcher,
		CapKind:    capKind,
		ConfigJSON: configJSON,
	}})
}

// RegisterRelayCapability binds name to a relay capability forwarding calls
// to the named backend.
func (in *Interpreter) RegisterRelayCapability(name, backend string, tools []string) {
	in.ns.Set(name, &Binding{Kind: KindCapability, Capability: &CapabilityBinding{
		Kind:       CapabilityRelay,
		RelayName:  backend,
		RelayTools: tools,
	}})
}
