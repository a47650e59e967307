package executor

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/wkalt/teeql/query/plan"
	"github.com/wkalt/teeql/sink"
)

/*
The executor module implements a chunked, pull-based query executor with a
small set of operators:
  * values: emits literal rows
  * range: emits a sequence of integers
  * csvscan: reads rows from delimited files
  * project: evaluates a select list
  * filter: filters rows based on a predicate
  * limit: limits the number of rows returned
  * offset: skips the first n rows
  * tee: copies every row to a delimited file and passes it through unchanged

Queries arrive as a tree of plan nodes, which are compiled to a tree of executor
nodes. The execution tree is executed by repeatedly calling Next on the root
node until an io.EOF occurs. Close is called on the root on every exit path,
which releases any sinks held by tee nodes below it.
*/

////////////////////////////////////////////////////////////////////////////////

// Storage is the set of storage operations the executor requires: creating
// tee destinations, and listing and reading read_csv sources.
type Storage interface {
	sink.Opener
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Glob(ctx context.Context, pattern string) ([]string, error)
}

// Env holds the dependencies and settings shared by all nodes of one query.
type Env struct {
	Storage   Storage
	ChunkSize int

	// Stats wraps every node in a stats recorder. Stats are written to the
	// util exec context of the context passed to Close.
	Stats bool

	// OnTee, if set, is called once per tee node when it finishes or aborts.
	OnTee func(ctx context.Context, report TeeReport)
}

func (e *Env) chunkSize() int {
	if e.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return e.ChunkSize
}

// Run compiles a plan tree to an executor tree, and executes it to
// completion, handing each chunk to emit. If execution fails, the context
// seen by Close is canceled with the failure as its cause.
func Run(ctx context.Context, node *plan.Node, env *Env, emit func(*Chunk) error) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	root, err := CompilePlan(ctx, node, env)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			cancel(err)
		}
		if closeErr := root.Close(ctx); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close plan: %w", closeErr)
		}
	}()
	for {
		chunk, err := root.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := emit(chunk); err != nil {
			return fmt.Errorf("failed to emit chunk: %w", err)
		}
	}
}

// CompilePlan compiles a "plan tree" -- a tree of plan nodes -- to a tree of
// executor nodes.
func CompilePlan(ctx context.Context, node *plan.Node, env *Env) (Node, error) {
	var result Node
	var err error
	switch node.Type {
	case plan.Values:
		result = NewValuesNode(node.Rows, env.chunkSize())
	case plan.Range:
		result = NewRangeNode(node.Range.Start, node.Range.Stop, node.Range.Step, env.chunkSize())
	case plan.ReadCSV:
		result, err = compileReadCSV(node, env)
	case plan.Project:
		result, err = compileProject(ctx, node, env)
	case plan.Filter:
		result, err = compileFilter(ctx, node, env)
	case plan.Limit:
		result, err = compileLimit(ctx, node, env)
	case plan.Offset:
		result, err = compileOffset(ctx, node, env)
	case plan.Tee:
		result, err = compileTee(ctx, node, env)
	default:
		return nil, fmt.Errorf("unrecognized node type %s", node.Type)
	}
	if err != nil {
		return nil, err
	}
	if env.Stats {
		result = NewNodeStats(result, node.Type.String())
	}
	return result, nil
}

func compileReadCSV(node *plan.Node, env *Env) (Node, error) {
	if env.Storage == nil {
		return nil, errors.New("read_csv requires storage")
	}
	return NewCSVScanNode(
		env.Storage,
		node.ReadCSV.Paths,
		node.Schema,
		node.ReadCSV.Delimiter,
		env.chunkSize(),
	), nil
}

func compileProject(ctx context.Context, node *plan.Node, env *Env) (Node, error) {
	child, err := CompilePlan(ctx, node.Children[0], env)
	if err != nil {
		return nil, err
	}
	evaluators := make([]evaluator, len(node.Exprs))
	for i, expr := range node.Exprs {
		if evaluators[i], err = compileExpr(expr); err != nil {
			return nil, errors.Join(err, child.Close(ctx))
		}
	}
	return NewProjectNode(evaluators, identity(node.Exprs, len(node.Children[0].Schema)), child), nil
}

func compileFilter(ctx context.Context, node *plan.Node, env *Env) (Node, error) {
	child, err := CompilePlan(ctx, node.Children[0], env)
	if err != nil {
		return nil, err
	}
	predicate, err := compileExpr(node.Predicate)
	if err != nil {
		return nil, errors.Join(err, child.Close(ctx))
	}
	return NewFilterNode(predicate, child), nil
}

func compileLimit(ctx context.Context, node *plan.Node, env *Env) (Node, error) {
	child, err := CompilePlan(ctx, node.Children[0], env)
	if err != nil {
		return nil, err
	}
	return NewLimitNode(*node.Limit, child), nil
}

func compileOffset(ctx context.Context, node *plan.Node, env *Env) (Node, error) {
	child, err := CompilePlan(ctx, node.Children[0], env)
	if err != nil {
		return nil, err
	}
	return NewOffsetNode(*node.Offset, child), nil
}

func compileTee(ctx context.Context, node *plan.Node, env *Env) (Node, error) {
	if env.Storage == nil {
		return nil, errors.New("tee requires storage")
	}
	child, err := CompilePlan(ctx, node.Children[0], env)
	if err != nil {
		return nil, err
	}
	return NewTeeNode(child, env.Storage, node.Tee.Path, node.Children[0].Schema,
		WithTeeDelimiter(node.Tee.Delimiter),
		WithTeeHeader(node.Tee.Header),
		WithTeeObserver(env.OnTee),
	), nil
}

// identity reports whether a select list reproduces its input unchanged.
func identity(exprs []*plan.Expr, width int) bool {
	if len(exprs) != width {
		return false
	}
	for i, e := range exprs {
		if e.Type != plan.ColumnRef || e.Index != i {
			return false
		}
	}
	return true
}
