// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/groupsio/capharness/internal/script"
	"github.com/groupsio/capharness/internal/worker"
)

// handleExecute runs submitted code and classifies any failure using
// spec.md §7's error taxonomy: a parse error is a "syntax" failure, any
// other error surfaced from the interpreter is an "execution" failure —
// the worker process itself stays alive either way.
func (w *workerState) handleExecute(code string) worker.ExecuteResponse {
	result, err := w.interp.Execute(code)
	if err != nil {
		return worker.ExecuteResponse{
			Success:      false,
			Stdout:       result.Stdout,
			ErrorType:    classifyError(err),
			ErrorMessage: err.Error(),
		}
	}
	resp := worker.ExecuteResponse{Success: true, Stdout: result.Stdout}
	if result.HasReturn {
		resp.ReturnValue = result.ReturnValue
	}
	return resp
}

func classifyError(err error) string {
	if _, ok := err.(*script.ParseError); ok {
		return "syntax"
	}
	return "execution"
}

// handleState summarizes the namespace for introspection (spec.md §4.5).
// Capability bindings are reported separately via list_capabilities, not
// duplicated here.
func (w *workerState) handleState() worker.StateResponse {
	var resp worker.StateResponse
	ns := w.interp.Namespace()
	for _, name := range ns.Names() {
		b, _ := ns.Get(name)
		switch b.Kind {
		case script.KindVariable:
			resp.Variables = append(resp.Variables, worker.VariableInfo{
				Name:  name,
				Type:  script.TypeName(b.Value),
				Value: script.Repr(b.Value),
			})
		case script.KindFunction:
			resp.Functions = append(resp.Functions, worker.FunctionInfo{
				Name:      name,
				Signature: fmt.Sprintf("%s(%s)", name, joinParams(b.Func.Params)),
			})
		case script.KindCapability:
			resp.Capabilities = append(resp.Capabilities, name)
		}
	}
	resp.HistoryLength = len(w.interp.History())
	return resp
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

// handleInject executes code, which is expected to itself bind name (e.g.
// code="x = 5", name="x"), then reads back whatever code bound under name —
// defaulting to nil if code never touched it — for the host's `inject
// {name, code}` convenience command (spec.md §4.5). Grounded on
// original_source/harness/repl.py's _inject: `exec(code, _namespace);
// _namespace[name] = _namespace.get(name)`. This is deliberately not a
// read of code's expression-evaluation result: Execute only populates that
// for a bare-expression statement, not for the assignment statements this
// command exists to support.
func (w *workerState) handleInject(name, code string) worker.SimpleResponse {
	if _, err := w.interp.Execute(code); err != nil {
		return worker.SimpleResponse{Success: false, Error: err.Error()}
	}
	if name != "" {
		var value script.Value
		if b, ok := w.interp.Namespace().Get(name); ok {
			value = b.Value
		}
		w.interp.Namespace().SetValue(name, value)
	}
	return worker.SimpleResponse{Success: true}
}

// handleInjectCapability constructs a host-native capability object from a
// JSON config descriptor and binds it under name. There is no source text
// to execute here — native capabilities have no class syntax in this
// interpreter — so this is a capharness-specific addition to the literal
// worker command table (see DESIGN.md).
func (w *workerState) handleInjectCapability(name, capKind, configJSON string) worker.SimpleResponse {
	var dispatcher script.NativeDispatcher
	var err error
	switch capKind {
	case "file":
		dispatcher, err = newFileDispatcher(name, configJSON)
	case "shell":
		dispatcher, err = newShellDispatcher(name, configJSON)
	default:
		err = fmt.Errorf("unknown capability kind %q", capKind)
	}
	if err != nil {
		return worker.SimpleResponse{Success: false, Error: err.Error()}
	}
	w.interp.RegisterNativeCapability(name, capKind, configJSON, dispatcher)
	return worker.SimpleResponse{Success: true}
}

// handleInjectRelayCapability binds name to a relay capability forwarding
// to an already-installed hub backend. The tool table is informational
// only here — method dispatch validates against it at call time via the
// host, not locally.
func (w *workerState) handleInjectRelayCapability(name string, tools map[string]worker.ToolSpec) worker.SimpleResponse {
	names := make([]string, 0, len(tools))
	for t := range tools {
		names = append(names, t)
	}
	w.interp.RegisterRelayCapability(name, name, names)
	return worker.SimpleResponse{Success: true}
}

// handleRegisterCapability confirms a capability binding already exists
// under name. spec.md describes a two-phase inject-then-register flow;
// our interpreter binds the capability during inject_capability /
// inject_relay_capability itself, so this step is a validating
// confirmation rather than a promotion (see DESIGN.md).
func (w *workerState) handleRegisterCapability(name string) worker.RegisterCapabilityResponse {
	b, ok := w.interp.Namespace().Get(name)
	if !ok || b.Kind != script.KindCapability {
		return worker.RegisterCapabilityResponse{Success: false, Error: fmt.Sprintf("no capability named %q is bound", name)}
	}
	return worker.RegisterCapabilityResponse{Success: true, CapabilityName: name}
}

func (w *workerState) handleListCapabilities() worker.ListCapabilitiesResponse {
	var names []string
	ns := w.interp.Namespace()
	for _, name := range ns.Names() {
		b, _ := ns.Get(name)
		if b.Kind == script.KindCapability {
			names = append(names, name)
		}
	}
	return worker.ListCapabilitiesResponse{Capabilities: names}
}

// handleDescribeCapability answers describe_capability using the capability
// object's own Describe() text (SUPPLEMENTED FEATURES, grounded on
// original_source/capabilities/base.py's describe()). Relay capabilities
// have no Describe() of their own — they report their tool names instead.
func (w *workerState) handleDescribeCapability(name string) worker.DescribeCapabilityResponse {
	b, ok := w.interp.Namespace().Get(name)
	if !ok || b.Kind != script.KindCapability {
		return worker.DescribeCapabilityResponse{Success: false, Error: fmt.Sprintf("no capability named %q is bound", name)}
	}
	cap := b.Capability
	if cap.Kind == script.CapabilityNative {
		return worker.DescribeCapabilityResponse{Success: true, Description: cap.Native.Describe()}
	}
	return worker.DescribeCapabilityResponse{
		Success:     true,
		Description: fmt.Sprintf("relay capability %q, backend %q, methods: %s", name, cap.RelayName, joinParams(cap.RelayTools)),
	}
}

func toWireSnapshot(snap script.Snapshot) worker.Snapshot {
	out := worker.Snapshot{History: snap.History}
	for _, v := range snap.Variables {
		out.Variables = append(out.Variables, worker.VariableSnapshot{
			Name: v.Name, Kind: v.Kind, Value: v.Value, Repr: v.Repr, Type: v.Type,
		})
	}
	for _, f := range snap.Functions {
		out.Functions = append(out.Functions, worker.FunctionSnapshot{
			Name: f.Name, Signature: f.Signature, Source: f.Source,
		})
	}
	for _, c := range snap.Capabilities {
		out.Capabilities = append(out.Capabilities, worker.CapabilitySnapshot{
			Name: c.Name, Kind: c.Kind, CapKind: c.CapKind, ConfigJSON: c.ConfigJSON,
			RelayName: c.RelayName, RelayTools: c.RelayTools,
		})
	}
	return out
}

func fromWireSnapshot(snap worker.Snapshot) script.Snapshot {
	out := script.Snapshot{History: snap.History}
	for _, v := range snap.Variables {
		out.Variables = append(out.Variables, script.VariableSnapshot{
			Name: v.Name, Kind: v.Kind, Value: v.Value, Repr: v.Repr, Type: v.Type,
		})
	}
	for _, f := range snap.Functions {
		out.Functions = append(out.Functions, script.FunctionSnapshot{
			Name: f.Name, Signature: f.Signature, Source: f.Source,
		})
	}
	for _, c := range snap.Capabilities {
		out.Capabilities = append(out.Capabilities, script.CapabilitySnapshot{
			Name: c.Name, Kind: c.Kind, CapKind: c.CapKind, ConfigJSON: c.ConfigJSON,
			RelayName: c.RelayName, RelayTools: c.RelayTools,
		})
	}
	return out
}

// handleImportState restores a snapshot into the interpreter. Native
// capabilities are rebuilt here from their stored kind and config, counted
// in CapabilitiesRestored or named in CapabilitiesFailed. Relay capabilities
// are not reconnected here (their backend processes live on the host);
// their names are surfaced in RelayCapabilitiesToRestore so
// internal/hostruntime can re-install them after this response returns.
func (w *workerState) handleImportState(snap *worker.Snapshot) worker.ImportResponse {
	if snap == nil {
		return worker.ImportResponse{}
	}
	scriptSnap := fromWireSnapshot(*snap)

	restored := w.interp.Import(scriptSnap)
	resp := worker.ImportResponse{
		FunctionsRestored: len(restored.FunctionsRestored),
		FunctionsFailed:   restored.FunctionsFailed,
		VariablesRestored: len(restored.VariablesRestored),
		VariablesFailed:   restored.VariablesFailed,
	}

	for _, c := range scriptSnap.Capabilities {
		switch c.Kind {
		case string(script.CapabilityNative):
			if injected := w.handleInjectCapability(c.Name, c.CapKind, c.ConfigJSON); !injected.Success {
				resp.CapabilitiesFailed = append(resp.CapabilitiesFailed, c.Name)
				continue
			}
			resp.CapabilitiesRestored++
		case string(script.CapabilityRelay):
			resp.RelayCapabilitiesToRestore = append(resp.RelayCapabilitiesToRestore, c.Name)
		}
	}
	return resp
}
