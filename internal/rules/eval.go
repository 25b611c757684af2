package rules

import "fmt"

// Env is the variable scope an expression evaluates against. Values are
// float64, string, bool, nil, nested map[string]any, []any, or Func.
type Env map[string]any

// Func is a callable exposed to rule expressions.
type Func func(args ...any) (any, error)

// EvalError reports a runtime evaluation failure (unknown identifier,
// type mismatch, bad call). Evaluation never panics on rule input.
type EvalError struct {
	Pos int
	Msg string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("evaluation error at offset %d: %s", e.Pos, e.Msg)
}

// Eval evaluates the program and returns the raw result.
func (p *Program) Eval(env Env) (any, error) {
	return eval(p.root, env)
}

// EvalBool evaluates the program and requires a boolean result. Eligibility
// rules must yield true or false; anything else is a rule defect.
func (p *Program) EvalBool(env Env) (bool, error) {
	v, err := eval(p.root, env)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, &EvalError{Pos: p.root.pos(), Msg: fmt.Sprintf("rule returned %T, want bool", v)}
	}
	return b, nil
}

func eval(n node, env Env) (any, error) {
	switch n := n.(type) {
	case *literalNode:
		return n.value, nil

	case *identNode:
		v, ok := env[n.name]
		if !ok {
			return nil, &EvalError{Pos: n.at, Msg: "unknown identifier " + n.name}
		}
		return v, nil

	case *fieldNode:
		x, err := eval(n.x, env)
		if err != nil {
			return nil, err
		}
		m, ok := x.(map[string]any)
		if !ok {
			return nil, &EvalError{Pos: n.at, Msg: fmt.Sprintf("cannot access field %s on %T", n.name, x)}
		}
		v, ok := m[n.name]
		if !ok {
			return nil, &EvalError{Pos: n.at, Msg: "unknown field " + n.name}
		}
		return v, nil

	case *callNode:
		fv, err := eval(n.fn, env)
		if err != nil {
			return nil, err
		}
		fn, ok := fv.(Func)
		if !ok {
			return nil, &EvalError{Pos: n.at, Msg: fmt.Sprintf("%T is not callable", fv)}
		}
		args := make([]any, len(n.args))
		for i, a := range n.args {
			args[i], err = eval(a, env)
			if err != nil {
				return nil, err
			}
		}
		out, err := fn(args...)
		if err != nil {
			return nil, &EvalError{Pos: n.at, Msg: err.Error()}
		}
		return out, nil

	case *unaryNode:
		x, err := eval(n.x, env)
		if err != nil {
			return nil, err
		}
		switch n.op {
		case "!":
			b, ok := x.(bool)
			if !ok {
				return nil, &EvalError{Pos: n.at, Msg: fmt.Sprintf("operator ! needs bool, got %T", x)}
			}
			return !b, nil
		case "-":
			f, ok := toNumber(x)
			if !ok {
				return nil, &EvalError{Pos: n.at, Msg: fmt.Sprintf("operator - needs number, got %T", x)}
			}
			return -f, nil
		}
		return nil, &EvalError{Pos: n.at, Msg: "unknown unary operator " + n.op}

	case *binaryNode:
		return evalBinary(n, env)
	}
	return nil, &EvalError{Pos: n.pos(), Msg: "unknown expression node"}
}

func evalBinary(n *binaryNode, env Env) (any, error) {
	// Short-circuit operators evaluate the right side lazily.
	if n.op == "&&" || n.op == "||" {
		lv, err := eval(n.left, env)
		if err != nil {
			return nil, err
		}
		lb, ok := lv.(bool)
		if !ok {
			return nil, &EvalError{Pos: n.at, Msg: fmt.Sprintf("operator %s needs bool, got %T", n.op, lv)}
		}
		if n.op == "&&" && !lb {
			return false, nil
		}
		if n.op == "||" && lb {
			return true, nil
		}
		rv, err := eval(n.right, env)
		if err != nil {
			return nil, err
		}
		rb, ok := rv.(bool)
		if !ok {
			return nil, &EvalError{Pos: n.at, Msg: fmt.Sprintf("operator %s needs bool, got %T", n.op, rv)}
		}
		return rb, nil
	}

	lv, err := eval(n.left, env)
	if err != nil {
		return nil, err
	}
	rv, err := eval(n.right, env)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "==":
		return looseEqual(lv, rv), nil
	case "!=":
		return !looseEqual(lv, rv), nil
	}

	// String comparison and concatenation.
	if ls, lok := lv.(string); lok {
		rs, rok := rv.(string)
		if !rok {
			return nil, &EvalError{Pos: n.at, Msg: fmt.Sprintf("operator %s mixes string and %T", n.op, rv)}
		}
		switch n.op {
		case "+":
			return ls + rs, nil
		case "<":
			return ls < rs, nil
		case "<=":
			return ls <= rs, nil
		case ">":
			return ls > rs, nil
		case ">=":
			return ls >= rs, nil
		}
		return nil, &EvalError{Pos: n.at, Msg: "operator " + n.op + " not defined for strings"}
	}

	lf, lok := toNumber(lv)
	rf, rok := toNumber(rv)
	if !lok || !rok {
		return nil, &EvalError{Pos: n.at, Msg: fmt.Sprintf("operator %s needs numbers, got %T and %T", n.op, lv, rv)}
	}
	switch n.op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, &EvalError{Pos: n.at, Msg: "division by zero"}
		}
		return lf / rf, nil
	case "%":
		if rf == 0 {
			return nil, &EvalError{Pos: n.at, Msg: "division by zero"}
		}
		return float64(int64(lf) % int64(rf)), nil
	case "<":
		return lf < rf, nil
	case "<=":
		return lf <= rf, nil
	case ">":
		return lf > rf, nil
	case ">=":
		return lf >= rf, nil
	}
	return nil, &EvalError{Pos: n.at, Msg: "unknown operator " + n.op}
}

// looseEqual compares across the value types rules can produce. Numbers
// compare numerically whatever Go type they arrived in.
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, aok := toNumber(a); aok {
		bf, bok := toNumber(b)
		return bok && af == bf
	}
	return a == b
}

func toNumber(v any) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
