package plan

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/wkalt/teeql/query/ql"
	"github.com/wkalt/teeql/query/types"
)

// Describer resolves a read_csv pattern to the files it names and the schema
// they share.
type Describer interface {
	Describe(ctx context.Context, pattern string, delimiter rune) ([]string, types.Schema, error)
}

type compiler struct {
	ctx       context.Context
	describer Describer
}

// CompileQuery compiles an AST query to a plan node. The describer is
// consulted for read_csv sources and may be nil if none are used.
func CompileQuery(ctx context.Context, ast ql.Query, describer Describer) (*Node, error) {
	c := &compiler{ctx: ctx, describer: describer}
	return c.compileQuery(&ast)
}

func (c *compiler) compileQuery(ast *ql.Query) (*Node, error) {
	source, err := c.compileSource(ast.From)
	if err != nil {
		return nil, err
	}
	if ast.Where != nil {
		predicate, err := BindExpr(ast.Where, source.Schema)
		if err != nil {
			return nil, err
		}
		if !isKind(predicate.Kind, types.Boolean) {
			return nil, badPlan("WHERE clause must be boolean, got %s", predicate.Kind)
		}
		source = &Node{
			Type:      Filter,
			Schema:    source.Schema,
			Predicate: predicate,
			Children:  []*Node{source},
		}
	}
	exprs := []*Expr{}
	schema := types.Schema{}
	for _, item := range ast.Select {
		if item.Star {
			if item.Alias != nil {
				return nil, badPlan("cannot alias *")
			}
			for i, col := range source.Schema {
				exprs = append(exprs, column(i, col))
				schema = append(schema, col)
			}
			continue
		}
		expr, err := BindExpr(item.Expr, source.Schema)
		if err != nil {
			return nil, err
		}
		name := expr.String()
		if item.Alias != nil {
			name = item.Alias.String()
		}
		exprs = append(exprs, expr)
		schema = append(schema, types.NewColumn(name, expr.Kind))
	}
	node := &Node{
		Type:     Project,
		Schema:   schema,
		Exprs:    exprs,
		Children: []*Node{source},
	}
	return wrapWithPaging(node, ast.Limit, ast.Offset), nil
}

// wrapWithPaging wraps a plan node in limit and offset nodes.
func wrapWithPaging(node *Node, limit, offset *int64) *Node {
	if offset != nil {
		node = &Node{
			Type:     Offset,
			Schema:   node.Schema,
			Offset:   offset,
			Children: []*Node{node},
		}
	}
	if limit != nil {
		node = &Node{
			Type:     Limit,
			Schema:   node.Schema,
			Limit:    limit,
			Children: []*Node{node},
		}
	}
	return node
}

func (c *compiler) compileSource(ast *ql.Source) (*Node, error) {
	if ast == nil {
		return &Node{
			Type:   Values,
			Schema: types.Schema{},
			Rows:   [][]types.Value{{}},
		}, nil
	}
	var node *Node
	var err error
	if ast.Subquery != nil {
		node, err = c.compileQuery(ast.Subquery)
	} else {
		node, err = c.compileTableCall(ast.Function)
	}
	if err != nil {
		return nil, err
	}
	return applyAlias(node, ast.Alias)
}

// applyAlias renames the leading columns of a relation.
func applyAlias(node *Node, alias *ql.Alias) (*Node, error) {
	if alias == nil || len(alias.Columns) == 0 {
		return node, nil
	}
	if len(alias.Columns) > len(node.Schema) {
		return nil, badPlan(
			"relation %s has %d columns available but %d columns specified",
			alias.Name, len(node.Schema), len(alias.Columns),
		)
	}
	schema := make(types.Schema, len(node.Schema))
	copy(schema, node.Schema)
	for i, name := range alias.Columns {
		schema[i].Name = name.String()
	}
	node.Schema = schema
	return node, nil
}

func (c *compiler) compileTableCall(call *ql.TableCall) (*Node, error) {
	name := strings.ToLower(call.Name.String())
	switch name {
	case "tee":
		return c.compileTee(call)
	case "range", "generate_series":
		return c.compileRange(call)
	case "read_csv":
		return c.compileReadCSV(call)
	default:
		return nil, badPlan("unknown table function %s", call.Name)
	}
}

// namedArgs collects the named arguments of a call, rejecting duplicates and
// names outside the allowed set.
func namedArgs(call *ql.TableCall, allowed ...string) (map[string]types.Value, error) {
	result := make(map[string]types.Value)
	for _, arg := range call.Args {
		if arg.Named == nil {
			continue
		}
		name := strings.ToLower(arg.Named.Name.String())
		found := false
		for _, a := range allowed {
			if a == name {
				found = true
				break
			}
		}
		if !found {
			return nil, badPlan("unknown argument %s to %s", name, strings.ToLower(call.Name.String()))
		}
		if _, ok := result[name]; ok {
			return nil, badPlan("argument %s specified more than once", name)
		}
		v, err := constant(arg.Named.Value)
		if err != nil {
			return nil, err
		}
		result[name] = v
	}
	return result, nil
}

func delimiterArg(named map[string]types.Value) (rune, error) {
	v, ok := named["delimiter"]
	if !ok {
		return ',', nil
	}
	if v.Kind() != types.Varchar || utf8.RuneCountInString(v.AsString()) != 1 {
		return 0, badPlan("delimiter must be a single character, got %s", v)
	}
	d, _ := utf8.DecodeRuneInString(v.AsString())
	if d == '"' || d == '\n' || d == '\r' {
		return 0, badPlan("invalid delimiter %q", d)
	}
	return d, nil
}

func (c *compiler) compileTee(call *ql.TableCall) (*Node, error) {
	var input *Node
	for _, arg := range call.Args {
		switch {
		case arg.Named != nil:
		case arg.Subquery != nil:
			if input != nil {
				return nil, badPlan("tee accepts exactly one subquery")
			}
			var err error
			if input, err = c.compileQuery(arg.Subquery); err != nil {
				return nil, err
			}
		default:
			return nil, badPlan("tee expects a subquery, got %s", describeArg(arg))
		}
	}
	if input == nil {
		return nil, badPlan("tee requires a subquery argument")
	}
	named, err := namedArgs(call, "path", "delimiter", "header")
	if err != nil {
		return nil, err
	}
	path, ok := named["path"]
	if !ok {
		return nil, badPlan("tee requires a path argument")
	}
	if path.Kind() != types.Varchar || path.AsString() == "" {
		return nil, badPlan("path must be a non-empty string, got %s", path)
	}
	delimiter, err := delimiterArg(named)
	if err != nil {
		return nil, err
	}
	header := true
	if v, ok := named["header"]; ok {
		if v.Kind() != types.Boolean {
			return nil, badPlan("header must be a boolean, got %s", v)
		}
		header = v.AsBool()
	}
	schema, err := types.Derive(input.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to bind tee: %w", err)
	}
	return &Node{
		Type:   Tee,
		Schema: schema,
		Tee: &TeeArgs{
			Path:      path.AsString(),
			Delimiter: delimiter,
			Header:    header,
		},
		Children: []*Node{input},
	}, nil
}

func (c *compiler) compileRange(call *ql.TableCall) (*Node, error) {
	bounds := []int64{}
	for _, arg := range call.Args {
		if arg.Value == nil {
			return nil, badPlan("range expects integer arguments, got %s", describeArg(arg))
		}
		v, err := constant(arg.Value)
		if err != nil {
			return nil, err
		}
		if v.Kind() != types.Integer {
			return nil, badPlan("range expects integer arguments, got %s", v)
		}
		bounds = append(bounds, v.AsInt())
	}
	args := &RangeArgs{Step: 1}
	switch len(bounds) {
	case 1:
		args.Stop = bounds[0]
	case 2:
		args.Start, args.Stop = bounds[0], bounds[1]
	case 3:
		args.Start, args.Stop, args.Step = bounds[0], bounds[1], bounds[2]
	default:
		return nil, badPlan("range expects 1 to 3 arguments, got %d", len(bounds))
	}
	if args.Step == 0 {
		return nil, badPlan("range step cannot be zero")
	}
	return &Node{
		Type:   Range,
		Schema: types.Schema{types.NewColumn("range", types.Integer)},
		Range:  args,
	}, nil
}

func (c *compiler) compileReadCSV(call *ql.TableCall) (*Node, error) {
	var pattern *types.Value
	for _, arg := range call.Args {
		switch {
		case arg.Named != nil:
		case arg.Value != nil && pattern == nil:
			v, err := constant(arg.Value)
			if err != nil {
				return nil, err
			}
			if v.Kind() != types.Varchar {
				return nil, badPlan("read_csv expects a string path, got %s", v)
			}
			pattern = &v
		default:
			return nil, badPlan("unexpected argument to read_csv: %s", describeArg(arg))
		}
	}
	if pattern == nil {
		return nil, badPlan("read_csv requires a path argument")
	}
	named, err := namedArgs(call, "delimiter")
	if err != nil {
		return nil, err
	}
	delimiter, err := delimiterArg(named)
	if err != nil {
		return nil, err
	}
	if c.describer == nil {
		return nil, badPlan("read_csv is not available")
	}
	paths, schema, err := c.describer.Describe(c.ctx, pattern.AsString(), delimiter)
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s: %w", pattern.AsString(), err)
	}
	return &Node{
		Type:   ReadCSV,
		Schema: schema,
		ReadCSV: &ReadCSVArgs{
			Pattern:   pattern.AsString(),
			Paths:     paths,
			Delimiter: delimiter,
		},
	}, nil
}

func describeArg(arg *ql.Arg) string {
	switch {
	case arg.Subquery != nil:
		return "a subquery"
	case arg.Named != nil:
		return "named argument " + arg.Named.Name.String()
	default:
		return "an expression"
	}
}
