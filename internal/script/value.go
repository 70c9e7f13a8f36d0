// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package script implements the small, self-contained interpreter that
// cmd/sessionworker hosts in place of an ambient scripting language (see
// SPEC_FULL.md's "interpreter re-architecture" section). It supports
// assignment, arithmetic/comparison expressions, list/map literals,
// function definitions, and capability/relay method calls — enough to
// drive every literal example in spec.md §8.
package script

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Value is any runtime value the interpreter manipulates: nil, bool,
// int64, float64, string, []Value, or map[string]Value.
type Value interface{}

// TypeName returns a short, human-readable type name for v, used by the
// worker's namespace introspection (spec.md §4.5: "best-effort
// serialization").
func TypeName(v Value) string {
	switch t := v.(type) {
	case nil:
		return "NoneType"
	case bool:
		return "bool"
	case int64:
		return "int"
	case float64:
		return "float"
	case string:
		return "str"
	case []Value:
		if len(t) == 0 {
			return "list"
		}
		return fmt.Sprintf("list[%s, ...]", TypeName(t[0]))
	case map[string]Value:
		if len(t) == 0 {
			return "dict"
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return fmt.Sprintf("dict[str, %s]", TypeName(t[keys[0]]))
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Repr renders v as a Python-ish literal, used as the stdout formatting for
// print() and the textual fallback when a value can't round-trip through
// JSON.
func Repr(v Value) string {
	switch t := v.(type) {
	case nil:
		return "None"
	case bool:
		if t {
			return "True"
		}
		return "False"
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case string:
		return t
	case []Value:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = quoteIfString(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]Value:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%q: %s", k, quoteIfString(t[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf("%v", t)
	}
}

func quoteIfString(v Value) string {
	if s, ok := v.(string); ok {
		return strconv.Quote(s)
	}
	return Repr(v)
}

// Truthy implements the interpreter's notion of truthiness, used by `if`,
// `not`, and binary "and"/"or".
func Truthy(v Value) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case int64:
		return t != 0
	case float64:
		return t != 0
	case string:
		return t != ""
	case []Value:
		return len(t) != 0
	case map[string]Value:
		return len(t) != 0
	default:
		return true
	}
}

// JSONRoundTrippable reports whether v contains only JSON-representable
// values (used to decide the "value" vs "repr" snapshot kind, spec.md §3).
func JSONRoundTrippable(v Value) bool {
	switch t := v.(type) {
	case nil, bool, int64, float64, string:
		return true
	case []Value:
		for _, e := range t {
			if !JSONRoundTrippable(e) {
				return false
			}
		}
		return true
	case map[string]Value:
		for _, e := range t {
			if !JSONRoundTrippable(e) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
