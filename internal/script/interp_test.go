// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, in *Interpreter, src string) ExecResult {
	t.Helper()
	res, err := in.Execute(src)
	require.NoError(t, err)
	return res
}

func TestAssignmentAndExpressionReturn(t *testing.T) {
	in := NewInterpreter(NewNamespace())
	run(t, in, "x = 3")
	res := run(t, in, "x + 4")
	assert.True(t, res.HasReturn)
	assert.Equal(t, int64(7), res.ReturnValue)
}

func TestStatePersistsAcrossExecuteCalls(t *testing.T) {
	in := NewInterpreter(NewNamespace())
	run(t, in, "counter = 0")
	run(t, in, "counter = counter + 1")
	res := run(t, in, "counter")
	assert.Equal(t, int64(1), res.ReturnValue)
}

func TestFunctionDefInlineAndBlock(t *testing.T) {
	in := NewInterpreter(NewNamespace())
	run(t, in, "def inc(x): return x + 1")
	res := run(t, in, "inc(41)")
	assert.Equal(t, int64(42), res.ReturnValue)

	run(t, in, "def add(a, b):\n    total = a + b\n    return total")
	res = run(t, in, "add(2, 3)")
	assert.Equal(t, int64(5), res.ReturnValue)
}

func TestListAndMapLiterals(t *testing.T) {
	in := NewInterpreter(NewNamespace())
	res := run(t, in, `[1, 2, 3][1]`)
	assert.Equal(t, int64(2), res.ReturnValue)

	res = run(t, in, `{"a": 1, "b": 2}["b"]`)
	assert.Equal(t, int64(2), res.ReturnValue)
}

func TestIfElse(t *testing.T) {
	in := NewInterpreter(NewNamespace())
	run(t, in, "def sign(n):\n    if n > 0:\n        return 1\n    elif n < 0:\n        return -1\n    else:\n        return 0")
	res := run(t, in, "sign(5)")
	assert.Equal(t, int64(1), res.ReturnValue)
	res = run(t, in, "sign(-5)")
	assert.Equal(t, int64(-1), res.ReturnValue)
	res = run(t, in, "sign(0)")
	assert.Equal(t, int64(0), res.ReturnValue)
}

type fakeCapability struct {
	calls []string
}

func (f *fakeCapability) Name() string     { return "fake" }
func (f *fakeCapability) Describe() string { return "fake capability" }
func (f *fakeCapability) Call(method string, kwargs map[string]Value) (Value, error) {
	f.calls = append(f.calls, method)
	if method == "read" {
		return kwargs["path"], nil
	}
	return nil, nil
}

func TestNativeCapabilityCall(t *testing.T) {
	in := NewInterpreter(NewNamespace())
	fc := &fakeCapability{}
	in.RegisterNativeCapability("fs", "file", `{"roots":["/tmp"]}`, fc)

	res := run(t, in, `fs.read(path="/tmp/a.txt")`)
	assert.Equal(t, "/tmp/a.txt", res.ReturnValue)
	assert.Equal(t, []string{"read"}, fc.calls)
}

func TestRelayCapabilityCallForwards(t *testing.T) {
	in := NewInterpreter(NewNamespace())
	in.RegisterRelayCapability("search", "web-search", []string{"query"})
	var gotBackend, gotMethod string
	in.RelayInvoke = func(backend, method string, kwargs map[string]Value) (Value, error) {
		gotBackend, gotMethod = backend, method
		return kwargs["q"], nil
	}

	res := run(t, in, `search.query(q="go generics")`)
	assert.Equal(t, "go generics", res.ReturnValue)
	assert.Equal(t, "web-search", gotBackend)
	assert.Equal(t, "query", gotMethod)
}

func TestExportImportRoundTrip(t *testing.T) {
	in := NewInterpreter(NewNamespace())
	run(t, in, "x = 10")
	run(t, in, "def inc(n): return n + 1")

	snap := in.Export()
	require.Len(t, snap.Variables, 1)
	require.Len(t, snap.Functions, 1)
	assert.Equal(t, "value", snap.Variables[0].Kind)

	in2 := NewInterpreter(NewNamespace())
	restored := in2.Import(snap)
	assert.Equal(t, []string{"inc"}, restored.FunctionsRestored)
	assert.Equal(t, []string{"x"}, restored.VariablesRestored)
	assert.Empty(t, restored.FunctionsFailed)
	res := run(t, in2, "inc(x)")
	assert.Equal(t, int64(11), res.ReturnValue)
}

func TestImportCollectsPerFunctionFailures(t *testing.T) {
	in := NewInterpreter(NewNamespace())
	snap := Snapshot{
		Functions: []FunctionSnapshot{
			{Name: "ok", Source: "def ok(): return 1"},
			{Name: "bad", Source: "def bad(:"},
			{Name: "also_ok", Source: "def also_ok(): return 2"},
		},
	}

	restored := in.Import(snap)
	assert.ElementsMatch(t, []string{"ok", "also_ok"}, restored.FunctionsRestored)
	assert.Equal(t, []string{"bad"}, restored.FunctionsFailed)

	res := run(t, in, "ok()")
	assert.Equal(t, int64(1), res.ReturnValue)
	res = run(t, in, "also_ok()")
	assert.Equal(t, int64(2), res.ReturnValue)
}

func TestReturnOutsideFunctionIsAnError(t *testing.T) {
	in := NewInterpreter(NewNamespace())
	_, err := in.Execute("x = 1\nreturn x")
	assert.Error(t, err)
}

func TestPrintWritesStdout(t *testing.T) {
	in := NewInterpreter(NewNamespace())
	res := run(t, in, `print("hello", 1)`)
	assert.Equal(t, "hello 1\n", res.Stdout)
}
