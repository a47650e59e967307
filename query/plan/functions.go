package plan

import (
	"errors"
	"fmt"

	"github.com/wkalt/teeql/query/types"
)

// function describes the arity and result typing of a scalar function. The
// executor holds the implementations, keyed by the same names.
type function struct {
	minArgs int
	maxArgs int // -1 for variadic
	resolve func(args []types.Kind) (types.Kind, error)
}

var functions = map[string]function{ // nolint:gochecknoglobals
	"floor":    {1, 1, sameNumeric},
	"ceil":     {1, 1, sameNumeric},
	"ceiling":  {1, 1, sameNumeric},
	"abs":      {1, 1, sameNumeric},
	"round":    {1, 2, resolveRound},
	"lower":    {1, 1, stringTo(types.Varchar)},
	"upper":    {1, 1, stringTo(types.Varchar)},
	"length":   {1, 1, stringTo(types.Integer)},
	"concat":   {1, -1, func([]types.Kind) (types.Kind, error) { return types.Varchar, nil }},
	"coalesce": {1, -1, resolveCoalesce},
	"hash":     {1, 1, func([]types.Kind) (types.Kind, error) { return types.Integer, nil }},
}

func sameNumeric(args []types.Kind) (types.Kind, error) {
	switch args[0] {
	case types.Integer, types.Double:
		return args[0], nil
	case types.Null:
		return types.Double, nil
	default:
		return types.Null, fmt.Errorf("expected a numeric argument, got %s", args[0])
	}
}

func resolveRound(args []types.Kind) (types.Kind, error) {
	if len(args) == 2 && !isKind(args[1], types.Integer) {
		return types.Null, fmt.Errorf("expected an integer precision, got %s", args[1])
	}
	return sameNumeric(args)
}

func stringTo(result types.Kind) func([]types.Kind) (types.Kind, error) {
	return func(args []types.Kind) (types.Kind, error) {
		if !isKind(args[0], types.Varchar) {
			return types.Null, fmt.Errorf("expected a VARCHAR argument, got %s", args[0])
		}
		return result, nil
	}
}

func resolveCoalesce(args []types.Kind) (types.Kind, error) {
	result := types.Null
	for _, k := range args {
		switch {
		case k == types.Null || k == result:
		case result == types.Null:
			result = k
		case result.Numeric() && k.Numeric():
			result = types.Double
		default:
			return types.Null, errors.New("arguments must share a type")
		}
	}
	return result, nil
}
