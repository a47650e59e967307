package executor

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/spaolacci/murmur3"
	"github.com/wkalt/teeql/query/plan"
	"github.com/wkalt/teeql/query/types"
)

// scalarFunc implements a scalar function over evaluated arguments. Argument
// kinds have been checked by the binder.
type scalarFunc func(args []types.Value) (types.Value, error)

var scalarFunctions = map[string]scalarFunc{ // nolint:gochecknoglobals
	"floor":    roundingFunc(math.Floor),
	"ceil":     roundingFunc(math.Ceil),
	"ceiling":  roundingFunc(math.Ceil),
	"abs":      absFunc,
	"round":    roundFunc,
	"lower":    stringFunc(strings.ToLower),
	"upper":    stringFunc(strings.ToUpper),
	"length":   lengthFunc,
	"concat":   concatFunc,
	"coalesce": coalesceFunc,
	"hash":     hashFunc,
}

func compileCall(e *plan.Expr) (evaluator, error) {
	fn, ok := scalarFunctions[e.Name]
	if !ok {
		return nil, fmt.Errorf("unrecognized function %s", e.Name)
	}
	args, err := compileArgs(e.Args)
	if err != nil {
		return nil, err
	}
	kind := e.Kind
	return func(row []types.Value) (types.Value, error) {
		values := make([]types.Value, len(args))
		for i, arg := range args {
			var err error
			if values[i], err = arg(row); err != nil {
				return types.NullValue(), err
			}
		}
		v, err := fn(values)
		if err != nil {
			return v, fmt.Errorf("%s: %w", e.Name, err)
		}
		if kind == types.Double && v.Kind() == types.Integer {
			return types.Float(v.AsFloat()), nil
		}
		return v, nil
	}, nil
}

func roundingFunc(f func(float64) float64) scalarFunc {
	return func(args []types.Value) (types.Value, error) {
		v := args[0]
		switch v.Kind() {
		case types.Double:
			return types.Float(f(v.AsFloat())), nil
		default:
			return v, nil
		}
	}
}

func absFunc(args []types.Value) (types.Value, error) {
	v := args[0]
	switch v.Kind() {
	case types.Integer:
		if v.AsInt() == math.MinInt64 {
			return types.NullValue(), fmt.Errorf("failed to compute abs(%d): %w", v.AsInt(), ErrIntegerOverflow)
		}
		if v.AsInt() < 0 {
			return types.Int(-v.AsInt()), nil
		}
		return v, nil
	case types.Double:
		return types.Float(math.Abs(v.AsFloat())), nil
	default:
		return v, nil
	}
}

// roundFunc rounds half away from zero, to an optional number of decimal
// places.
func roundFunc(args []types.Value) (types.Value, error) {
	v := args[0]
	if v.Kind() != types.Double {
		return v, nil
	}
	if len(args) == 1 {
		return types.Float(math.Round(v.AsFloat())), nil
	}
	if args[1].IsNull() {
		return types.NullValue(), nil
	}
	scale := math.Pow(10, float64(args[1].AsInt()))
	return types.Float(math.Round(v.AsFloat()*scale) / scale), nil
}

func stringFunc(f func(string) string) scalarFunc {
	return func(args []types.Value) (types.Value, error) {
		if args[0].IsNull() {
			return args[0], nil
		}
		return types.String(f(args[0].AsString())), nil
	}
}

func lengthFunc(args []types.Value) (types.Value, error) {
	if args[0].IsNull() {
		return args[0], nil
	}
	return types.Int(int64(utf8.RuneCountInString(args[0].AsString()))), nil
}

// concatFunc joins the text of its arguments, skipping NULLs.
func concatFunc(args []types.Value) (types.Value, error) {
	sb := &strings.Builder{}
	for _, arg := range args {
		sb.WriteString(arg.Text())
	}
	return types.String(sb.String()), nil
}

func coalesceFunc(args []types.Value) (types.Value, error) {
	for _, arg := range args {
		if !arg.IsNull() {
			return arg, nil
		}
	}
	return types.NullValue(), nil
}

// hashFunc returns the 64-bit murmur3 hash of the value's text, with the kind
// mixed in so that 1 and '1' differ. NULL hashes like any other value.
func hashFunc(args []types.Value) (types.Value, error) {
	v := args[0]
	buf := make([]byte, 0, 32)
	buf = append(buf, byte(v.Kind()))
	buf = v.AppendText(buf)
	return types.Int(int64(murmur3.Sum64(buf))), nil
}
