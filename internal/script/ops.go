// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package script

import "fmt"

func evalUnary(op string, v Value) (Value, error) {
	switch op {
	case "not":
		return !Truthy(v), nil
	case "-":
		switch n := v.(type) {
		case int64:
			return -n, nil
		case float64:
			return -n, nil
		}
		return nil, fmt.Errorf("unary '-' not supported on %s", TypeName(v))
	}
	return nil, fmt.Errorf("unknown unary operator %q", op)
}

func evalBinaryOp(op string, l, r Value) (Value, error) {
	switch op {
	case "==":
		return valuesEqual(l, r), nil
	case "!=":
		return !valuesEqual(l, r), nil
	case "<", "<=", ">", ">=":
		return compareOrdered(op, l, r)
	case "+":
		return addValues(l, r)
	case "-", "*", "/", "%":
		return arith(op, l, r)
	}
	return nil, fmt.Errorf("unknown operator %q", op)
}

func valuesEqual(l, r Value) bool {
	lf, lok := toFloat(l)
	rf, rok := toFloat(r)
	if lok && rok {
		return lf == rf
	}
	return fmt.Sprintf("%#v", l) == fmt.Sprintf("%#v", r)
}

func toFloat(v Value) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func compareOrdered(op string, l, r Value) (Value, error) {
	if ls, ok := l.(string); ok {
		if rs, ok := r.(string); ok {
			return compareResult(op, stringsCompare(ls, rs)), nil
		}
	}
	lf, lok := toFloat(l)
	rf, rok := toFloat(r)
	if !lok || !rok {
		return nil, fmt.Errorf("cannot compare %s and %s", TypeName(l), TypeName(r))
	}
	switch {
	case lf < rf:
		return compareResult(op, -1), nil
	case lf > rf:
		return compareResult(op, 1), nil
	default:
		return compareResult(op, 0), nil
	}
}

func stringsCompare(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareResult(op string, cmp int) bool {
	switch op {
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	}
	return false
}

func addValues(l, r Value) (Value, error) {
	if ls, ok := l.(string); ok {
		if rs, ok := r.(string); ok {
			return ls + rs, nil
		}
		return nil, fmt.Errorf("cannot add %s and %s", TypeName(l), TypeName(r))
	}
	if ll, ok := l.([]Value); ok {
		if rl, ok := r.([]Value); ok {
			out := make([]Value, 0, len(ll)+len(rl))
			out = append(out, ll...)
			out = append(out, rl...)
			return out, nil
		}
		return nil, fmt.Errorf("cannot add %s and %s", TypeName(l), TypeName(r))
	}
	return arith("+", l, r)
}

func arith(op string, l, r Value) (Value, error) {
	li, liok := l.(int64)
	ri, riok := r.(int64)
	if liok && riok && op != "/" {
		switch op {
		case "+":
			return li + ri, nil
		case "-":
			return li - ri, nil
		case "*":
			return li * ri, nil
		case "%":
			if ri == 0 {
				return nil, fmt.Errorf("modulo by zero")
			}
			return li % ri, nil
		}
	}
	lf, lok := toFloat(l)
	rf, rok := toFloat(r)
	if !lok || !rok {
		return nil, fmt.Errorf("unsupported operand types for %s: %s and %s", op, TypeName(l), TypeName(r))
	}
	switch op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return lf / rf, nil
	case "%":
		if rf == 0 {
			return nil, fmt.Errorf("modulo by zero")
		}
		return float64(int64(lf) % int64(rf)), nil
	}
	return nil, fmt.Errorf("unknown operator %q", op)
}
