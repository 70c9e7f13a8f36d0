// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package script

import (
	"fmt"
	"strings"
)

// Interpreter executes parsed statements against a shared Namespace. One
// Interpreter backs one worker session for its entire lifetime (spec.md §3:
// state persists across execute() calls within a session).
type Interpreter struct {
	ns      *Namespace
	stdout  *strings.Builder
	history []string

	// RelayInvoke forwards a relay capability method call to the host and
	// blocks for the result. Wired by cmd/sessionworker; nil when a
	// script has no relay capabilities registered.
	RelayInvoke func(backend, method string, kwargs map[string]Value) (Value, error)
}

// History returns the ordered list of code strings previously submitted to
// Execute, used for export_state and as the source-recovery fallback when a
// function's live source can't be found (spec.md §3).
func (in *Interpreter) History() []string {
	out := make([]string, len(in.history))
	copy(out, in.history)
	return out
}

func NewInterpreter(ns *Namespace) *Interpreter {
	return &Interpreter{ns: ns, stdout: &strings.Builder{}}
}

func (in *Interpreter) Namespace() *Namespace { return in.ns }

// returnSignal unwinds exec() on a `return` statement.
type returnSignal struct{ value Value }

func (returnSignal) Error() string { return "return outside function" }

// ExecResult is what one Execute call produces.
type ExecResult struct {
	ReturnValue Value
	HasReturn   bool
	Stdout      string
}

// Execute runs source against the namespace. If source parses as a single
// bare expression statement, its value becomes ReturnValue (spec.md §3: "the
// return value is populated only when the submitted code is a single
// expression"); otherwise statements run purely for effect.
func (in *Interpreter) Execute(source string) (ExecResult, error) {
	stmts, err := Parse(source)
	if err != nil {
		return ExecResult{}, err
	}
	in.history = append(in.history, source)
	in.stdout.Reset()

	if len(stmts) == 1 {
		if es, ok := stmts[0].(*ExprStmt); ok {
			v, err := in.eval(es.X)
			if err != nil {
				return ExecResult{Stdout: in.stdout.String()}, err
			}
			return ExecResult{ReturnValue: v, HasReturn: true, Stdout: in.stdout.String()}, nil
		}
	}

	for _, s := range stmts {
		if err := in.exec(s); err != nil {
			if _, ok := err.(returnSignal); ok {
				return ExecResult{Stdout: in.stdout.String()}, fmt.Errorf("return outside function")
			}
			return ExecResult{Stdout: in.stdout.String()}, err
		}
	}
	return ExecResult{Stdout: in.stdout.String()}, nil
}

func (in *Interpreter) exec(s Stmt) error {
	switch st := s.(type) {
	case *AssignStmt:
		v, err := in.eval(st.Value)
		if err != nil {
			return err
		}
		in.ns.SetValue(st.Target, v)
		return nil
	case *ExprStmt:
		_, err := in.eval(st.X)
		return err
	case *FuncDefStmt:
		src := st.Def.RawSource
		if src == "" {
			src = renderFuncSource(st.Def)
		}
		in.ns.Set(st.Def.Name, &Binding{Kind: KindFunction, Func: st.Def, Source: src})
		return nil
	case *ReturnStmt:
		var v Value
		if st.Value != nil {
			var err error
			v, err = in.eval(st.Value)
			if err != nil {
				return err
			}
		}
		return returnSignal{value: v}
	case *IfStmt:
		cond, err := in.eval(st.Cond)
		if err != nil {
			return err
		}
		branch := st.Else
		if Truthy(cond) {
			branch = st.Then
		}
		for _, sub := range branch {
			if err := in.exec(sub); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported statement %T", s)
	}
}

func (in *Interpreter) execFuncBody(body []Stmt) (Value, error) {
	for _, s := range body {
		if err := in.exec(s); err != nil {
			if rs, ok := err.(returnSignal); ok {
				return rs.value, nil
			}
			return nil, err
		}
	}
	return nil, nil
}

func (in *Interpreter) eval(e Expr) (Value, error) {
	switch x := e.(type) {
	case *NumberLit:
		if x.IsFloat {
			return x.Float, nil
		}
		return x.Int, nil
	case *StringLit:
		return x.Value, nil
	case *BoolLit:
		return x.Value, nil
	case *NoneLit:
		return nil, nil
	case *Ident:
		if x.Name == "print" {
			return builtinPrint, nil
		}
		b, ok := in.ns.Get(x.Name)
		if !ok {
			return nil, fmt.Errorf("name %q is not defined", x.Name)
		}
		switch b.Kind {
		case KindVariable:
			return b.Value, nil
		case KindFunction:
			return b, nil
		case KindCapability:
			return b, nil
		}
		return nil, fmt.Errorf("cannot evaluate binding %q", x.Name)
	case *ListLit:
		out := make([]Value, len(x.Elems))
		for i, el := range x.Elems {
			v, err := in.eval(el)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case *MapLit:
		out := make(map[string]Value, len(x.Entries))
		for _, entry := range x.Entries {
			k, err := in.eval(entry.Key)
			if err != nil {
				return nil, err
			}
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("map keys must be strings")
			}
			v, err := in.eval(entry.Value)
			if err != nil {
				return nil, err
			}
			out[ks] = v
		}
		return out, nil
	case *UnaryExpr:
		v, err := in.eval(x.X)
		if err != nil {
			return nil, err
		}
		return evalUnary(x.Op, v)
	case *BinaryExpr:
		return in.evalBinary(x)
	case *IndexExpr:
		return in.evalIndex(x)
	case *AttrExpr:
		return in.evalAttr(x)
	case *CallExpr:
		return in.evalCall(x)
	default:
		return nil, fmt.Errorf("unsupported expression %T", e)
	}
}

func (in *Interpreter) evalBinary(x *BinaryExpr) (Value, error) {
	if x.Op == "and" {
		l, err := in.eval(x.X)
		if err != nil {
			return nil, err
		}
		if !Truthy(l) {
			return l, nil
		}
		return in.eval(x.Y)
	}
	if x.Op == "or" {
		l, err := in.eval(x.X)
		if err != nil {
			return nil, err
		}
		if Truthy(l) {
			return l, nil
		}
		return in.eval(x.Y)
	}
	l, err := in.eval(x.X)
	if err != nil {
		return nil, err
	}
	r, err := in.eval(x.Y)
	if err != nil {
		return nil, err
	}
	return evalBinaryOp(x.Op, l, r)
}

func (in *Interpreter) evalIndex(x *IndexExpr) (Value, error) {
	base, err := in.eval(x.X)
	if err != nil {
		return nil, err
	}
	idx, err := in.eval(x.Index)
	if err != nil {
		return nil, err
	}
	switch b := base.(type) {
	case []Value:
		i, ok := idx.(int64)
		if !ok {
			return nil, fmt.Errorf("list index must be an int")
		}
		if i < 0 || int(i) >= len(b) {
			return nil, fmt.Errorf("list index out of range")
		}
		return b[i], nil
	case map[string]Value:
		k, ok := idx.(string)
		if !ok {
			return nil, fmt.Errorf("map key must be a string")
		}
		v, ok := b[k]
		if !ok {
			return nil, fmt.Errorf("key %q not found", k)
		}
		return v, nil
	case string:
		i, ok := idx.(int64)
		if !ok {
			return nil, fmt.Errorf("string index must be an int")
		}
		r := []rune(b)
		if i < 0 || int(i) >= len(r) {
			return nil, fmt.Errorf("string index out of range")
		}
		return string(r[i]), nil
	default:
		return nil, fmt.Errorf("value of type %s is not indexable", TypeName(base))
	}
}

// evalAttr evaluates `x.y` where x must resolve to a capability binding
// (method lookup happens at call time; here we just carry the pair
// through so evalCall can dispatch it).
type methodRef struct {
	binding *Binding
	method  string
}

func (in *Interpreter) evalAttr(x *AttrExpr) (Value, error) {
	ident, ok := x.X.(*Ident)
	if !ok {
		return nil, fmt.Errorf("attribute access is only supported on capability names")
	}
	b, ok := in.ns.Get(ident.Name)
	if !ok {
		return nil, fmt.Errorf("name %q is not defined", ident.Name)
	}
	if b.Kind != KindCapability {
		return nil, fmt.Errorf("%q is not a capability", ident.Name)
	}
	return methodRef{binding: b, method: x.Attr}, nil
}

func (in *Interpreter) evalCall(x *CallExpr) (Value, error) {
	fnVal, err := in.eval(x.Fn)
	if err != nil {
		return nil, err
	}

	args := make([]Value, 0, len(x.Args))
	kwargs := make(map[string]Value)
	for _, a := range x.Args {
		v, err := in.eval(a.Value)
		if err != nil {
			return nil, err
		}
		if a.Name != "" {
			kwargs[a.Name] = v
		} else {
			args = append(args, v)
		}
	}

	switch fn := fnVal.(type) {
	case builtinFunc:
		return fn(args, kwargs, in)
	case methodRef:
		return in.callCapability(fn.binding, fn.method, args, kwargs)
	case *Binding:
		if fn.Kind == KindFunction {
			return in.callUserFunc(fn.Func, args, kwargs)
		}
		if fn.Kind == KindCapability {
			return nil, fmt.Errorf("capability must be called as <name>.<method>(...)")
		}
	}
	return nil, fmt.Errorf("value is not callable")
}

func (in *Interpreter) callUserFunc(fd *FuncDef, args []Value, kwargs map[string]Value) (Value, error) {
	saved := make(map[string]*Binding, len(fd.Params))
	hadSaved := make(map[string]bool, len(fd.Params))
	for i, p := range fd.Params {
		if b, ok := in.ns.Get(p); ok {
			saved[p] = b
			hadSaved[p] = true
		}
		var v Value
		if i < len(args) {
			v = args[i]
		} else if kv, ok := kwargs[p]; ok {
			v = kv
		}
		in.ns.SetValue(p, v)
	}
	defer func() {
		for _, p := range fd.Params {
			if hadSaved[p] {
				in.ns.Set(p, saved[p])
			} else {
				in.ns.Delete(p)
			}
		}
	}()
	return in.execFuncBody(fd.Body)
}

func (in *Interpreter) callCapability(b *Binding, method string, args []Value, kwargs map[string]Value) (Value, error) {
	cb := b.Capability
	if cb == nil {
		return nil, fmt.Errorf("not a capability")
	}
	merged := make(map[string]Value, len(kwargs)+len(args))
	for k, v := range kwargs {
		merged[k] = v
	}
	if len(args) > 0 {
		merged["__positional"] = args
	}
	switch cb.Kind {
	case CapabilityNative:
		if cb.Native == nil {
			return nil, fmt.Errorf("native capability has no dispatcher")
		}
		return cb.Native.Call(method, merged)
	case CapabilityRelay:
		if in.RelayInvoke == nil {
			return nil, fmt.Errorf("relay invocation is not available in this interpreter")
		}
		return in.RelayInvoke(cb.RelayName, method, merged)
	}
	return nil, fmt.Errorf("unknown capability kind")
}

type builtinFunc func(args []Value, kwargs map[string]Value, in *Interpreter) (Value, error)

var builtinPrint builtinFunc = func(args []Value, _ map[string]Value, in *Interpreter) (Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = Repr(a)
	}
	fmt.Fprintln(in.stdout, strings.Join(parts, " "))
	return nil, nil
}

func renderFuncSource(fd *FuncDef) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "def %s(%s):", fd.Name, strings.Join(fd.Params, ", "))
	for _, s := range fd.Body {
		sb.WriteString("\n    ")
		sb.WriteString(renderStmt(s))
	}
	return sb.String()
}

func renderStmt(s Stmt) string {
	switch st := s.(type) {
	case *ReturnStmt:
		if st.Value == nil {
			return "return"
		}
		return "return " + renderExpr(st.Value)
	case *AssignStmt:
		return st.Target + " = " + renderExpr(st.Value)
	case *ExprStmt:
		return renderExpr(st.X)
	case *IfStmt:
		return "if " + renderExpr(st.Cond) + ": ..."
	case *FuncDefStmt:
		return "def " + st.Def.Name + "(...): ..."
	default:
		return "..."
	}
}

func renderExpr(e Expr) string {
	switch x := e.(type) {
	case *Ident:
		return x.Name
	case *NumberLit:
		if x.IsFloat {
			return fmt.Sprintf("%g", x.Float)
		}
		return fmt.Sprintf("%d", x.Int)
	case *StringLit:
		return fmt.Sprintf("%q", x.Value)
	case *BoolLit:
		if x.Value {
			return "True"
		}
		return "False"
	case *NoneLit:
		return "None"
	case *BinaryExpr:
		return renderExpr(x.X) + " " + x.Op + " " + renderExpr(x.Y)
	case *UnaryExpr:
		return x.Op + " " + renderExpr(x.X)
	case *CallExpr:
		return renderExpr(x.Fn) + "(...)"
	case *AttrExpr:
		return renderExpr(x.X) + "." + x.Attr
	default:
		return "..."
	}
}
