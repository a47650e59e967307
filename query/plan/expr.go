package plan

import (
	"fmt"
	"strings"

	"github.com/wkalt/teeql/query/ql"
	"github.com/wkalt/teeql/query/types"
)

/*
Expressions are bound against the schema of their input: column references are
resolved to ordinals, and every expression node is annotated with the kind of
value it produces. The executor evaluates bound expressions without consulting
names.

Typing rules:
  - + - * // % over integers produce BIGINT; a DOUBLE operand produces DOUBLE.
  - / always produces DOUBLE.
  - comparisons produce BOOLEAN, over numeric operands or operands of one kind.
  - NULL literals are accepted anywhere and propagate at runtime.
*/

////////////////////////////////////////////////////////////////////////////////

// ExprType is the type of a bound expression node.
type ExprType int

const (
	// Literal is a constant value.
	Literal ExprType = iota
	// ColumnRef is a reference to an input column by ordinal.
	ColumnRef
	// Unary is a negation or logical NOT.
	Unary
	// Binary is an arithmetic, comparison, or logical operator.
	Binary
	// Cast converts its argument to Kind.
	Cast
	// Call is a scalar function call.
	Call
)

// Expr is a bound scalar expression.
type Expr struct {
	Type  ExprType
	Kind  types.Kind
	Value types.Value
	Index int
	Name  string
	Op    string
	Args  []*Expr
}

// String returns a string representation of the expression.
func (e *Expr) String() string {
	switch e.Type {
	case Literal:
		if e.Value.Kind() == types.Varchar {
			return "'" + strings.ReplaceAll(e.Value.AsString(), "'", "''") + "'"
		}
		return e.Value.String()
	case ColumnRef:
		return e.Name
	case Unary:
		if e.Op == "NOT" {
			return "(NOT " + e.Args[0].String() + ")"
		}
		return "-" + e.Args[0].String()
	case Binary:
		return fmt.Sprintf("(%s %s %s)", e.Args[0], e.Op, e.Args[1])
	case Cast:
		return fmt.Sprintf("CAST(%s AS %s)", e.Args[0], e.Kind)
	case Call:
		args := make([]string, len(e.Args))
		for i, arg := range e.Args {
			args[i] = arg.String()
		}
		return fmt.Sprintf("%s(%s)", e.Name, strings.Join(args, ", "))
	default:
		return "?"
	}
}

func literal(v types.Value) *Expr {
	return &Expr{Type: Literal, Kind: v.Kind(), Value: v}
}

func column(index int, col types.Column) *Expr {
	return &Expr{Type: ColumnRef, Kind: col.Type, Index: index, Name: col.Name}
}

// BindExpr binds an AST expression against an input schema.
func BindExpr(e *ql.Expr, schema types.Schema) (*Expr, error) {
	return bindOr(e, schema)
}

func bindOr(e *ql.Expr, schema types.Schema) (*Expr, error) {
	var result *Expr
	for _, term := range e.Or {
		bound, err := bindAnd(term, schema)
		if err != nil {
			return nil, err
		}
		if result == nil {
			result = bound
			continue
		}
		if result, err = logical("OR", result, bound); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func bindAnd(e *ql.AndExpr, schema types.Schema) (*Expr, error) {
	var result *Expr
	for _, term := range e.And {
		bound, err := bindNot(term, schema)
		if err != nil {
			return nil, err
		}
		if result == nil {
			result = bound
			continue
		}
		if result, err = logical("AND", result, bound); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func bindNot(e *ql.NotExpr, schema types.Schema) (*Expr, error) {
	bound, err := bindComparison(e.Comparison, schema)
	if err != nil {
		return nil, err
	}
	if !e.Not {
		return bound, nil
	}
	if !isKind(bound.Kind, types.Boolean) {
		return nil, badPlan("NOT requires a boolean operand, got %s", bound.Kind)
	}
	return &Expr{Type: Unary, Kind: types.Boolean, Op: "NOT", Args: []*Expr{bound}}, nil
}

func bindComparison(e *ql.Comparison, schema types.Schema) (*Expr, error) {
	left, err := bindAdditive(e.Left, schema)
	if err != nil {
		return nil, err
	}
	if e.Op == "" {
		return left, nil
	}
	right, err := bindAdditive(e.Right, schema)
	if err != nil {
		return nil, err
	}
	if !comparableKinds(left.Kind, right.Kind) {
		return nil, badPlan("cannot compare %s and %s", left.Kind, right.Kind)
	}
	op := e.Op
	if op == "!=" {
		op = "<>"
	}
	return &Expr{Type: Binary, Kind: types.Boolean, Op: op, Args: []*Expr{left, right}}, nil
}

func bindAdditive(e *ql.Additive, schema types.Schema) (*Expr, error) {
	result, err := bindMultiplicative(e.Left, schema)
	if err != nil {
		return nil, err
	}
	for _, term := range e.Right {
		right, err := bindMultiplicative(term.Right, schema)
		if err != nil {
			return nil, err
		}
		if result, err = arithmetic(term.Op, result, right); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func bindMultiplicative(e *ql.Multiplicative, schema types.Schema) (*Expr, error) {
	result, err := bindUnary(e.Left, schema)
	if err != nil {
		return nil, err
	}
	for _, term := range e.Right {
		right, err := bindUnary(term.Right, schema)
		if err != nil {
			return nil, err
		}
		if result, err = arithmetic(term.Op, result, right); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func bindUnary(e *ql.Unary, schema types.Schema) (*Expr, error) {
	bound, err := bindPostfix(e.Value, schema)
	if err != nil {
		return nil, err
	}
	if !e.Negate {
		return bound, nil
	}
	if !numericOrNull(bound.Kind) {
		return nil, badPlan("cannot negate %s", bound.Kind)
	}
	kind := bound.Kind
	if kind == types.Null {
		kind = types.Integer
	}
	return &Expr{Type: Unary, Kind: kind, Op: "-", Args: []*Expr{bound}}, nil
}

func bindPostfix(e *ql.Postfix, schema types.Schema) (*Expr, error) {
	result, err := bindPrimary(e.Primary, schema)
	if err != nil {
		return nil, err
	}
	for _, name := range e.Casts {
		if result, err = cast(result, name.String()); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func bindPrimary(e *ql.Primary, schema types.Schema) (*Expr, error) {
	switch {
	case e.Cast != nil:
		inner, err := bindOr(e.Cast.Value, schema)
		if err != nil {
			return nil, err
		}
		return cast(inner, e.Cast.Type.String())
	case e.Call != nil:
		return bindCall(e.Call, schema)
	case e.Float != nil:
		return literal(types.Float(*e.Float)), nil
	case e.Integer != nil:
		return literal(types.Int(*e.Integer)), nil
	case e.String != nil:
		return literal(types.String(e.String.String())), nil
	case e.Null:
		return literal(types.NullValue()), nil
	case e.Bool != nil:
		return literal(types.Bool(bool(*e.Bool))), nil
	case e.Column != nil:
		name := e.Column.String()
		idx := schema.Index(name)
		if idx < 0 {
			return nil, BadPlanError{ColumnNotFoundError{Column: name, Available: schema.Names()}}
		}
		return column(idx, schema[idx]), nil
	case e.Subexpr != nil:
		return bindOr(e.Subexpr, schema)
	default:
		return nil, badPlan("empty expression")
	}
}

func bindCall(e *ql.Call, schema types.Schema) (*Expr, error) {
	name := strings.ToLower(e.Name.String())
	fn, ok := functions[name]
	if !ok {
		return nil, badPlan("unknown function %s", e.Name)
	}
	if len(e.Args) < fn.minArgs || (fn.maxArgs >= 0 && len(e.Args) > fn.maxArgs) {
		return nil, badPlan("wrong number of arguments to %s: %d", name, len(e.Args))
	}
	args := make([]*Expr, len(e.Args))
	kinds := make([]types.Kind, len(e.Args))
	for i, arg := range e.Args {
		bound, err := bindOr(arg, schema)
		if err != nil {
			return nil, err
		}
		args[i] = bound
		kinds[i] = bound.Kind
	}
	kind, err := fn.resolve(kinds)
	if err != nil {
		return nil, BadPlanError{fmt.Errorf("%s: %w", name, err)}
	}
	return &Expr{Type: Call, Kind: kind, Name: name, Args: args}, nil
}

func cast(e *Expr, typename string) (*Expr, error) {
	kind, err := types.ParseKind(typename)
	if err != nil {
		return nil, BadPlanError{err}
	}
	return &Expr{Type: Cast, Kind: kind, Args: []*Expr{e}}, nil
}

func logical(op string, left, right *Expr) (*Expr, error) {
	if !isKind(left.Kind, types.Boolean) || !isKind(right.Kind, types.Boolean) {
		return nil, badPlan("%s requires boolean operands, got %s and %s", op, left.Kind, right.Kind)
	}
	return &Expr{Type: Binary, Kind: types.Boolean, Op: op, Args: []*Expr{left, right}}, nil
}

func arithmetic(op string, left, right *Expr) (*Expr, error) {
	if !numericOrNull(left.Kind) || !numericOrNull(right.Kind) {
		return nil, badPlan("operator %s is not defined for %s and %s", op, left.Kind, right.Kind)
	}
	kind := types.Integer
	if op == "/" || left.Kind == types.Double || right.Kind == types.Double {
		kind = types.Double
	}
	return &Expr{Type: Binary, Kind: kind, Op: op, Args: []*Expr{left, right}}, nil
}

func isKind(k types.Kind, want types.Kind) bool {
	return k == want || k == types.Null
}

func numericOrNull(k types.Kind) bool {
	return k.Numeric() || k == types.Null
}

func comparableKinds(a, b types.Kind) bool {
	if a == types.Null || b == types.Null || a == b {
		return true
	}
	return a.Numeric() && b.Numeric()
}

// constant evaluates an expression that must be a literal, optionally
// negated. It is used for table function arguments.
func constant(e *ql.Expr) (types.Value, error) {
	bound, err := bindOr(e, nil)
	if err != nil {
		return types.NullValue(), badPlan("expected a constant argument: %w", err)
	}
	switch {
	case bound.Type == Literal:
		return bound.Value, nil
	case bound.Type == Unary && bound.Op == "-" && bound.Args[0].Type == Literal:
		v := bound.Args[0].Value
		switch v.Kind() {
		case types.Integer:
			return types.Int(-v.AsInt()), nil
		case types.Double:
			return types.Float(-v.AsFloat()), nil
		}
	}
	return types.NullValue(), badPlan("expected a constant argument, got %s", bound)
}
