package query_test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wkalt/teeql/history"
	"github.com/wkalt/teeql/output"
	"github.com/wkalt/teeql/query"
	"github.com/wkalt/teeql/query/plan"
	"github.com/wkalt/teeql/query/types"
	"github.com/wkalt/teeql/sink"
	"github.com/wkalt/teeql/storage"
)

func newEngine(t *testing.T, opts ...query.Option) (*query.Engine, string) {
	t.Helper()
	dir := t.TempDir()
	opts = append([]query.Option{query.WithStorage(storage.NewDirectoryStore(dir))}, opts...)
	return query.NewEngine(opts...), dir
}

func exec(ctx context.Context, t *testing.T, engine *query.Engine, script string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	w, err := output.NewWriter(output.CSV, buf)
	require.NoError(t, err)
	err = engine.Exec(ctx, script, w)
	return buf.String(), err
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestEngine(t *testing.T) {
	ctx := context.Background()

	t.Run("single literal row", func(t *testing.T) {
		engine, dir := newEngine(t)
		out, err := exec(ctx, t, engine, `SELECT * FROM tee((SELECT 42 AS a), path='out.csv');`)
		require.NoError(t, err)
		require.Equal(t, "a\n42\n", out)
		require.Equal(t, "a\n42\n", readFile(t, filepath.Join(dir, "out.csv")))
	})

	t.Run("range across chunks", func(t *testing.T) {
		engine, dir := newEngine(t)
		out, err := exec(ctx, t, engine, `SELECT * FROM tee((
			SELECT a, 10 AS b, a%9 AS c, FLOOR(a/5)::int AS d FROM range(4097) AS _(a)
		), path='out.csv')`)
		require.NoError(t, err)
		file := readFile(t, filepath.Join(dir, "out.csv"))
		require.Equal(t, file, out)
		lines := strings.Split(strings.TrimSuffix(file, "\n"), "\n")
		require.Len(t, lines, 4098)
		require.Equal(t, "a,b,c,d", lines[0])
		require.Equal(t, "0,10,0,0", lines[1])
		require.Equal(t, fmt.Sprintf("4096,10,%d,%d", 4096%9, 4096/5), lines[4097])
	})

	t.Run("absolute path", func(t *testing.T) {
		engine, _ := newEngine(t)
		path := filepath.Join(t.TempDir(), "abs.csv")
		_, err := exec(ctx, t, engine, fmt.Sprintf(`SELECT * FROM tee((SELECT 1 AS x), path='%s')`, path))
		require.NoError(t, err)
		require.Equal(t, "x\n1\n", readFile(t, path))
	})

	t.Run("statements run in order", func(t *testing.T) {
		engine, dir := newEngine(t)
		out, err := exec(ctx, t, engine, `
			SELECT * FROM tee((SELECT 1 AS x), path='out.csv');
			SELECT * FROM tee((SELECT 2 AS x), path='out.csv');
			SELECT * FROM read_csv('out.csv');
		`)
		require.NoError(t, err)
		require.Equal(t, "x\n1\nx\n2\nx\n2\n", out)
		require.Equal(t, "x\n2\n", readFile(t, filepath.Join(dir, "out.csv")))
	})

	t.Run("failure stops the script", func(t *testing.T) {
		engine, dir := newEngine(t)
		_, err := exec(ctx, t, engine, `
			SELECT * FROM tee((SELECT 1 AS x), path='missing/out.csv');
			SELECT * FROM tee((SELECT 2 AS x), path='never.csv');
		`)
		require.ErrorIs(t, err, sink.FileIOError{})
		require.ErrorIs(t, err, os.ErrNotExist)
		_, statErr := os.Stat(filepath.Join(dir, "never.csv"))
		require.ErrorIs(t, statErr, os.ErrNotExist)
	})

	t.Run("canceled context", func(t *testing.T) {
		engine, _ := newEngine(t)
		ctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := exec(ctx, t, engine, `SELECT * FROM tee((SELECT * FROM range(10)), path='out.csv')`)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestEngineErrors(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		assertion string
		query     string
		target    error
		user      bool
	}{
		{"syntax", "SELECT FROM WHERE", query.SyntaxError{}, true},
		{"empty script", "", query.SyntaxError{}, true},
		{"missing path", "SELECT * FROM tee((SELECT 1))", plan.BadPlanError{}, true},
		{"unknown column", "SELECT b FROM (SELECT 1 AS a)", plan.BadPlanError{}, true},
		{"unwritable path", "SELECT * FROM tee((SELECT 1 AS a), path='nope/out.csv')", sink.FileIOError{}, false},
		{"zero columns", "SELECT * FROM tee((SELECT *), path='out.csv')", types.SchemaError{}, true},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			engine, _ := newEngine(t)
			_, err := exec(ctx, t, engine, c.query)
			require.ErrorIs(t, err, c.target)
			require.Equal(t, c.user, query.IsUserError(err))
		})
	}
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	store := history.NewMemStore()
	engine, _ := newEngine(t, query.WithHistory(store))

	_, err := exec(ctx, t, engine, `SELECT * FROM tee((SELECT * FROM range(3)), path='a.csv')`)
	require.NoError(t, err)
	_, err = exec(ctx, t, engine, `SELECT 1 // range FROM tee((SELECT * FROM range(3)), path='b.csv')`)
	require.Error(t, err)

	entries, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	require.Equal(t, "b.csv", entries[0].Path)
	require.Equal(t, history.StatusAborted, entries[0].Status)
	require.Contains(t, entries[0].Error, "division by zero")

	require.Equal(t, "a.csv", entries[1].Path)
	require.Equal(t, history.StatusFinished, entries[1].Status)
	require.Equal(t, int64(3), entries[1].Rows)
	require.Equal(t, int64(len("range\n0\n1\n2\n")), entries[1].Bytes)
	require.Empty(t, entries[1].Error)
	require.NotEqual(t, entries[0].QueryID, entries[1].QueryID)
	require.False(t, entries[1].FinishedAt.Before(entries[1].StartedAt))
}

func TestNestedTeesShareQueryID(t *testing.T) {
	ctx := context.Background()
	store := history.NewMemStore()
	engine, _ := newEngine(t, query.WithHistory(store))
	_, err := exec(ctx, t, engine, `SELECT * FROM tee((
		SELECT * FROM tee((SELECT * FROM range(2)), path='inner.csv')
	), path='outer.csv')`)
	require.NoError(t, err)
	entries, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, entries[0].QueryID, entries[1].QueryID)
	require.ElementsMatch(t, []string{"inner.csv", "outer.csv"}, []string{entries[0].Path, entries[1].Path})
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	stats := &bytes.Buffer{}
	engine, _ := newEngine(t, query.WithStats(stats), query.WithChunkSize(100))
	_, err := exec(ctx, t, engine, `SELECT * FROM tee((SELECT * FROM range(250)), path='out.csv')`)
	require.NoError(t, err)
	require.Contains(t, stats.String(), `"name":"query"`)
	require.Contains(t, stats.String(), `"rows_written":250`)
	require.Contains(t, stats.String(), `"chunks_out":3`)
}

func TestPlan(t *testing.T) {
	ctx := context.Background()
	engine, _ := newEngine(t)
	ast, err := engine.Parse(`SELECT * FROM tee((SELECT 42 AS a), path='out.csv')`)
	require.NoError(t, err)
	node, err := engine.Plan(ctx, ast.Statements[0])
	require.NoError(t, err)
	require.Equal(t, "[project (a) [tee (out.csv) [project (42) [values (1)]]]]", node.String())
	require.Equal(t, types.Schema{types.NewColumn("a", types.Integer)}, node.Schema)
}
