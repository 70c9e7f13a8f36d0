// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package script

// BindingKind tags what a namespace entry actually is. spec.md's Design
// Notes call for replacing reflective "is this a function / class / plain
// value" classification with an explicit tagged record per binding — this
// is that record.
type BindingKind string

const (
	KindVariable   BindingKind = "variable"
	KindFunction   BindingKind = "function"
	KindCapability BindingKind = "capability"
)

// CapabilityKind distinguishes a host-native capability (backed by a Go
// type such as filecap.Capability) from a relay capability (forwarded to an
// external tool-server process through the host).
type CapabilityKind string

const (
	CapabilityNative CapabilityKind = "native"
	CapabilityRelay  CapabilityKind = "relay"
)

// CapabilityBinding describes one registered capability object.
type CapabilityBinding struct {
	Kind CapabilityKind

	// Native dispatches method calls directly for a host-provided
	// capability (file, shell, ...).
	Native NativeDispatcher

	// RelayName is the backend name to forward calls to when Kind ==
	// CapabilityRelay.
	RelayName string
	// RelayTools is the set of method names the relay backend exposes,
	// used for a friendlier "unknown method" error.
	RelayTools []string

	// ConfigJSON is the constructor configuration used to build Native,
	// kept so export_state/import_state can round-trip a native
	// capability without source text (there is none — see DESIGN.md).
	ConfigJSON string
	CapKind    string // "file", "shell", ... — used to reconstruct on import
}

// NativeDispatcher invokes one method on a host-native capability.
type NativeDispatcher interface {
	Name() string
	Describe() string
	Call(method string, kwargs map[string]Value) (Value, error)
}

// Binding is one entry in a Namespace.
type Binding struct {
	Kind BindingKind

	// KindVariable
	Value    Value
	IsRepr   bool   // true if Value couldn't round-trip through JSON
	ReprText string // textual fallback when IsRepr is true

	// KindFunction
	Func   *FuncDef
	Source string

	// KindCapability
	Capability *CapabilityBinding
}

// Namespace is the interpreter's single global scope, mirroring the flat
// module-level namespace the worker exposes to submitted code (spec.md §3:
// "a single persistent namespace — no per-call sandboxing beyond the
// capability objects themselves").
type Namespace struct {
	bindings map[string]*Binding
	order    []string
}

func NewNamespace() *Namespace {
	return &Namespace{bindings: make(map[string]*Binding)}
}

func (n *Namespace) Get(name string) (*Binding, bool) {
	b, ok := n.bindings[name]
	return b, ok
}

func (n *Namespace) Set(name string, b *Binding) {
	if _, exists := n.bindings[name]; !exists {
		n.order = append(n.order, name)
	}
	n.bindings[name] = b
}

func (n *Namespace) SetValue(name string, v Value) {
	n.Set(name, &Binding{Kind: KindVariable, Value: v})
}

func (n *Namespace) Delete(name string) {
	if _, exists := n.bindings[name]; !exists {
		return
	}
	delete(n.bindings, name)
	for i, nm := range n.order {
		if nm == name {
			n.order = append(n.order[:i], n.order[i+1:]...)
			break
		}
	}
}

// Names returns bound names in insertion order.
func (n *Namespace) Names() []string {
	out := make([]string, len(n.order))
	copy(out, n.order)
	return out
}
