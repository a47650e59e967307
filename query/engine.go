package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alecthomas/participle/v2"
	"github.com/google/uuid"
	"github.com/wkalt/teeql/history"
	"github.com/wkalt/teeql/output"
	"github.com/wkalt/teeql/query/executor"
	"github.com/wkalt/teeql/query/plan"
	"github.com/wkalt/teeql/query/ql"
	"github.com/wkalt/teeql/query/types"
	"github.com/wkalt/teeql/storage"
	"github.com/wkalt/teeql/util"
	"github.com/wkalt/teeql/util/log"
)

/*
The engine is the entrypoint for running query text. It parses a script,
binds each statement to a plan, executes it with the chunked executor, and
hands the passthrough rows to an output writer. Statements run in order and
the first failure stops the script.

Each statement is assigned a query id, which tags its log lines and the
history entries of any tee nodes it contains.
*/

////////////////////////////////////////////////////////////////////////////////

// Engine executes query scripts.
type Engine struct {
	opts      Options
	parser    *participle.Parser[ql.Script]
	describer plan.Describer
}

// NewEngine constructs a new engine. Without a storage option, paths resolve
// against the current working directory.
func NewEngine(options ...Option) *Engine {
	opts := Options{
		ChunkSize: executor.DefaultChunkSize,
	}
	for _, opt := range options {
		opt(&opts)
	}
	if opts.Storage == nil {
		opts.Storage = storage.NewDirectoryStore("")
	}
	return &Engine{
		opts:      opts,
		parser:    ql.NewParser(),
		describer: executor.NewCSVDescriber(opts.Storage, opts.ChunkSize),
	}
}

// Parse parses a script without executing it.
func (e *Engine) Parse(script string) (*ql.Script, error) {
	ast, err := e.parser.ParseString("", script)
	if err != nil {
		return nil, SyntaxError{err}
	}
	return ast, nil
}

// Exec runs every statement of script, writing results to w.
func (e *Engine) Exec(ctx context.Context, script string, w output.Writer) error {
	ast, err := e.Parse(script)
	if err != nil {
		return err
	}
	for _, stmt := range ast.Statements {
		if err := e.run(ctx, stmt, w); err != nil {
			return err
		}
	}
	return nil
}

// Plan binds a single statement and returns its plan.
func (e *Engine) Plan(ctx context.Context, stmt *ql.Query) (*plan.Node, error) {
	node, err := plan.CompileQuery(ctx, *stmt, e.describer)
	if err != nil {
		return nil, fmt.Errorf("failed to compile query: %w", err)
	}
	return node, nil
}

func (e *Engine) run(ctx context.Context, stmt *ql.Query, w output.Writer) error {
	queryID := uuid.New()
	ctx = log.AddTags(ctx, "query_id", queryID.String())
	node, err := e.Plan(ctx, stmt)
	if err != nil {
		return err
	}
	log.Debugw(ctx, "Executing query", "plan", node.String())
	if e.opts.Stats {
		ctx = util.WithContext(ctx, "query")
	}
	env := &executor.Env{
		Storage:   e.opts.Storage,
		ChunkSize: e.opts.ChunkSize,
		Stats:     e.opts.Stats,
		OnTee:     e.recorder(queryID),
	}
	if err := w.Begin(node.Schema); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	start := time.Now()
	var rows int64
	if err := executor.Run(ctx, node, env, func(chunk *executor.Chunk) error {
		rows += int64(chunk.Len())
		return w.Write(chunk.Rows)
	}); err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}
	if err := w.End(); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	log.Debugw(ctx, "Query complete", "rows", rows, "elapsed", time.Since(start))
	if e.opts.Stats && e.opts.StatsOutput != nil {
		data, err := util.JSONFromContext(ctx)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(e.opts.StatsOutput, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write stats: %w", err)
		}
	}
	return nil
}

// recorder returns a tee observer that records history entries for queryID.
func (e *Engine) recorder(queryID uuid.UUID) func(context.Context, executor.TeeReport) {
	if e.opts.History == nil {
		return nil
	}
	return func(ctx context.Context, report executor.TeeReport) {
		entry := history.Entry{
			ID:         uuid.New(),
			QueryID:    queryID,
			Path:       report.Path,
			Rows:       report.Rows,
			Bytes:      report.Bytes,
			Status:     history.StatusFinished,
			StartedAt:  report.Started,
			FinishedAt: report.Finished,
		}
		if report.Err != nil {
			entry.Status = history.StatusAborted
			entry.Error = report.Err.Error()
		}
		// the query context may already be canceled.
		if err := e.opts.History.Record(context.WithoutCancel(ctx), entry); err != nil {
			log.Errorw(ctx, "failed to record tee history", "error", err, "path", report.Path)
		}
	}
}

// SyntaxError is returned when query text does not parse.
type SyntaxError struct {
	Err error
}

func (e SyntaxError) Error() string {
	return fmt.Sprintf("syntax error: %s", e.Err)
}

func (e SyntaxError) Unwrap() error {
	return e.Err
}

func (e SyntaxError) Is(target error) bool {
	_, ok := target.(SyntaxError)
	return ok
}

// IsUserError reports whether err was caused by the query text rather than by
// execution: a syntax error, or a statement that cannot be bound.
func IsUserError(err error) bool {
	return errors.Is(err, SyntaxError{}) ||
		errors.Is(err, plan.BadPlanError{}) ||
		errors.Is(err, types.SchemaError{})
}
