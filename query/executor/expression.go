package executor

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/relvacode/iso8601"
	"github.com/wkalt/teeql/query/plan"
	"github.com/wkalt/teeql/query/types"
)

/*
This file compiles bound plan expressions into evaluators: closures over a
single row. Kinds are resolved at bind time, so evaluation only has to deal
with NULL propagation and runtime failures such as division by zero or
unparseable casts.
*/

////////////////////////////////////////////////////////////////////////////////

type evaluator func(row []types.Value) (types.Value, error)

func compileExpr(e *plan.Expr) (evaluator, error) {
	switch e.Type {
	case plan.Literal:
		v := e.Value
		return func([]types.Value) (types.Value, error) {
			return v, nil
		}, nil
	case plan.ColumnRef:
		idx := e.Index
		return func(row []types.Value) (types.Value, error) {
			return row[idx], nil
		}, nil
	case plan.Unary:
		return compileUnary(e)
	case plan.Binary:
		return compileBinary(e)
	case plan.Cast:
		arg, err := compileExpr(e.Args[0])
		if err != nil {
			return nil, err
		}
		kind := e.Kind
		return func(row []types.Value) (types.Value, error) {
			v, err := arg(row)
			if err != nil {
				return v, err
			}
			return castValue(v, kind)
		}, nil
	case plan.Call:
		return compileCall(e)
	default:
		return nil, fmt.Errorf("unrecognized expression type %d", e.Type)
	}
}

func compileArgs(exprs []*plan.Expr) ([]evaluator, error) {
	result := make([]evaluator, len(exprs))
	for i, expr := range exprs {
		var err error
		if result[i], err = compileExpr(expr); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func compileUnary(e *plan.Expr) (evaluator, error) {
	arg, err := compileExpr(e.Args[0])
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case "NOT":
		return func(row []types.Value) (types.Value, error) {
			v, err := arg(row)
			if err != nil || v.IsNull() {
				return v, err
			}
			return types.Bool(!v.AsBool()), nil
		}, nil
	case "-":
		return func(row []types.Value) (types.Value, error) {
			v, err := arg(row)
			if err != nil {
				return v, err
			}
			switch v.Kind() {
			case types.Integer:
				if v.AsInt() == math.MinInt64 {
					return types.NullValue(), fmt.Errorf("failed to negate %d: %w", v.AsInt(), ErrIntegerOverflow)
				}
				return types.Int(-v.AsInt()), nil
			case types.Double:
				return types.Float(-v.AsFloat()), nil
			default:
				return v, nil
			}
		}, nil
	default:
		return nil, fmt.Errorf("unrecognized unary operator %s", e.Op)
	}
}

func compileBinary(e *plan.Expr) (evaluator, error) {
	left, err := compileExpr(e.Args[0])
	if err != nil {
		return nil, err
	}
	right, err := compileExpr(e.Args[1])
	if err != nil {
		return nil, err
	}
	op := e.Op
	switch op {
	case "AND", "OR":
		return compileLogical(op, left, right), nil
	case "=", "<>", "<", "<=", ">", ">=":
		return func(row []types.Value) (types.Value, error) {
			a, b, err := evalPair(row, left, right)
			if err != nil || a.IsNull() || b.IsNull() {
				return types.NullValue(), err
			}
			return types.Bool(compareOp(op, compareValues(a, b))), nil
		}, nil
	case "+", "-", "*", "/", "//", "%":
		kind := e.Kind
		return func(row []types.Value) (types.Value, error) {
			a, b, err := evalPair(row, left, right)
			if err != nil {
				return types.NullValue(), err
			}
			return arithmetic(op, kind, a, b)
		}, nil
	default:
		return nil, fmt.Errorf("unrecognized binary operator %s", op)
	}
}

func evalPair(row []types.Value, left, right evaluator) (types.Value, types.Value, error) {
	a, err := left(row)
	if err != nil {
		return a, a, err
	}
	b, err := right(row)
	return a, b, err
}

// compileLogical implements three-valued AND and OR.
func compileLogical(op string, left, right evaluator) evaluator {
	dominant := op == "OR"
	return func(row []types.Value) (types.Value, error) {
		a, err := left(row)
		if err != nil {
			return a, err
		}
		if !a.IsNull() && a.AsBool() == dominant {
			return types.Bool(dominant), nil
		}
		b, err := right(row)
		if err != nil {
			return b, err
		}
		if !b.IsNull() && b.AsBool() == dominant {
			return types.Bool(dominant), nil
		}
		if a.IsNull() || b.IsNull() {
			return types.NullValue(), nil
		}
		return types.Bool(!dominant), nil
	}
}

func compareOp(op string, cmp int) bool {
	switch op {
	case "=":
		return cmp == 0
	case "<>":
		return cmp != 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	default:
		return cmp >= 0
	}
}

// compareValues orders two non-null values of comparable kinds.
func compareValues(a, b types.Value) int {
	switch {
	case a.Kind() == types.Integer && b.Kind() == types.Integer:
		return cmpOrdered(a.AsInt(), b.AsInt())
	case a.Kind().Numeric() && b.Kind().Numeric():
		return cmpOrdered(a.AsFloat(), b.AsFloat())
	case a.Kind() == types.Varchar:
		return strings.Compare(a.AsString(), b.AsString())
	case a.Kind() == types.Boolean:
		return cmpOrdered(boolInt(a.AsBool()), boolInt(b.AsBool()))
	case a.Kind() == types.Timestamp:
		return a.AsTime().Compare(b.AsTime())
	default:
		return 0
	}
}

func cmpOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func arithmetic(op string, kind types.Kind, a, b types.Value) (types.Value, error) {
	if a.IsNull() || b.IsNull() {
		return types.NullValue(), nil
	}
	if kind == types.Integer {
		x, y := a.AsInt(), b.AsInt()
		switch op {
		case "+":
			return checked(op, x, y, addInt)
		case "-":
			return checked(op, x, y, subInt)
		case "*":
			return checked(op, x, y, mulInt)
		case "//":
			if y == 0 {
				return types.NullValue(), ErrDivisionByZero
			}
			if x == math.MinInt64 && y == -1 {
				return types.NullValue(), fmt.Errorf("%d // %d: %w", x, y, ErrIntegerOverflow)
			}
			return types.Int(floorDiv(x, y)), nil
		case "%":
			if y == 0 {
				return types.NullValue(), ErrDivisionByZero
			}
			return types.Int(x % y), nil
		}
	}
	x, y := a.AsFloat(), b.AsFloat()
	switch op {
	case "+":
		return types.Float(x + y), nil
	case "-":
		return types.Float(x - y), nil
	case "*":
		return types.Float(x * y), nil
	case "/":
		if y == 0 && a.Kind() == types.Integer && b.Kind() == types.Integer {
			return types.NullValue(), ErrDivisionByZero
		}
		return types.Float(x / y), nil
	case "//":
		return types.Float(math.Floor(x / y)), nil
	case "%":
		return types.Float(math.Mod(x, y)), nil
	default:
		return types.NullValue(), fmt.Errorf("unrecognized operator %s", op)
	}
}

func checked(op string, x, y int64, f func(x, y int64) (int64, bool)) (types.Value, error) {
	z, ok := f(x, y)
	if !ok {
		return types.NullValue(), fmt.Errorf("%d %s %d: %w", x, op, y, ErrIntegerOverflow)
	}
	return types.Int(z), nil
}

func addInt(x, y int64) (int64, bool) {
	z := x + y
	return z, (x^z)&(y^z) >= 0
}

func subInt(x, y int64) (int64, bool) {
	z := x - y
	return z, (x^y)&(x^z) >= 0
}

func mulInt(x, y int64) (int64, bool) {
	if x == 0 || y == 0 {
		return 0, true
	}
	z := x * y
	if (x == -1 && y == math.MinInt64) || (y == -1 && x == math.MinInt64) {
		return z, false
	}
	return z, z/y == x
}

func floorDiv(x, y int64) int64 {
	q := x / y
	if x%y != 0 && (x < 0) != (y < 0) {
		q--
	}
	return q
}

func castValue(v types.Value, to types.Kind) (types.Value, error) {
	if v.IsNull() || v.Kind() == to {
		return v, nil
	}
	fail := CastError{Value: v, To: to}
	switch to {
	case types.Varchar:
		return types.String(v.Text()), nil
	case types.Integer:
		switch v.Kind() {
		case types.Double:
			f := math.Round(v.AsFloat())
			if math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxInt64 {
				return types.NullValue(), fail
			}
			return types.Int(int64(f)), nil
		case types.Boolean:
			return types.Int(boolInt(v.AsBool())), nil
		case types.Varchar:
			i, err := strconv.ParseInt(strings.TrimSpace(v.AsString()), 10, 64)
			if err != nil {
				f, ferr := strconv.ParseFloat(strings.TrimSpace(v.AsString()), 64)
				if ferr != nil {
					return types.NullValue(), fail
				}
				return castValue(types.Float(f), to)
			}
			return types.Int(i), nil
		}
	case types.Double:
		switch v.Kind() {
		case types.Integer:
			return types.Float(float64(v.AsInt())), nil
		case types.Boolean:
			return types.Float(float64(boolInt(v.AsBool()))), nil
		case types.Varchar:
			f, err := strconv.ParseFloat(strings.TrimSpace(v.AsString()), 64)
			if err != nil {
				return types.NullValue(), fail
			}
			return types.Float(f), nil
		}
	case types.Boolean:
		switch v.Kind() {
		case types.Integer:
			return types.Bool(v.AsInt() != 0), nil
		case types.Double:
			return types.Bool(v.AsFloat() != 0), nil
		case types.Varchar:
			b, ok := parseBool(v.AsString())
			if !ok {
				return types.NullValue(), fail
			}
			return types.Bool(b), nil
		}
	case types.Timestamp:
		if v.Kind() == types.Varchar {
			t, err := parseTimestamp(v.AsString())
			if err != nil {
				return types.NullValue(), fail
			}
			return types.Time(t), nil
		}
	}
	return types.NullValue(), fail
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "1":
		return true, true
	case "false", "f", "no", "n", "0":
		return false, true
	default:
		return false, false
	}
}

// parseTimestamp accepts the canonical rendering of a timestamp as well as
// ISO 8601.
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02 15:04:05.999999999", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := iso8601.Parse([]byte(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp: %w", err)
	}
	return t, nil
}
