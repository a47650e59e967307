package executor_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wkalt/teeql/query/executor"
	"github.com/wkalt/teeql/query/plan"
	"github.com/wkalt/teeql/query/ql"
	"github.com/wkalt/teeql/query/types"
	"github.com/wkalt/teeql/storage"
	"github.com/wkalt/teeql/util"
)

const scenarioB = `SELECT * FROM tee((
	SELECT a, 10 AS b, a % 9 AS c, FLOOR(a / 5)::int AS d
	FROM range(4097) AS _(a)
), path = 'out.csv')`

func execute(ctx context.Context, t *testing.T, env *executor.Env, query string) (types.Schema, [][]types.Value, error) {
	t.Helper()
	ast, err := ql.NewParser().ParseString("", query)
	require.NoError(t, err)
	require.Len(t, ast.Statements, 1)
	node, err := plan.CompileQuery(ctx, *ast.Statements[0], executor.NewCSVDescriber(env.Storage, env.ChunkSize))
	if err != nil {
		return nil, nil, err
	}
	rows := [][]types.Value{}
	err = executor.Run(ctx, node, env, func(chunk *executor.Chunk) error {
		rows = append(rows, chunk.Rows...)
		return nil
	})
	return node.Schema, rows, err
}

func memEnv(chunkSize int) (*executor.Env, *storage.MemStore) {
	store := storage.NewMemStore()
	return &executor.Env{Storage: store, ChunkSize: chunkSize}, store
}

func scenarioBFile() string {
	sb := &strings.Builder{}
	sb.WriteString("a,b,c,d\n")
	for a := 0; a < 4097; a++ {
		fmt.Fprintf(sb, "%d,10,%d,%d\n", a, a%9, a/5)
	}
	return sb.String()
}

func TestScenarios(t *testing.T) {
	ctx := context.Background()

	t.Run("single literal row", func(t *testing.T) {
		env, store := memEnv(0)
		schema, rows, err := execute(ctx, t, env, `SELECT * FROM tee((SELECT 42 AS 'a'), path = 'out.csv')`)
		require.NoError(t, err)
		require.Equal(t, []string{"a"}, schema.Names())
		require.Equal(t, [][]types.Value{{types.Int(42)}}, rows)
		require.Equal(t, "a\n42\n", readString(t, store, "out.csv"))
	})

	t.Run("range across chunks", func(t *testing.T) {
		env, store := memEnv(0)
		schema, rows, err := execute(ctx, t, env, scenarioB)
		require.NoError(t, err)
		require.Equal(t, []string{"a", "b", "c", "d"}, schema.Names())
		require.Len(t, rows, 4097)
		for i, row := range rows {
			a := int64(i)
			require.Equal(t, []types.Value{
				types.Int(a), types.Int(10), types.Int(a % 9), types.Int(a / 5),
			}, row)
		}

		content := readString(t, store, "out.csv")
		lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
		require.Len(t, lines, 4098)
		require.Equal(t, "a,b,c,d", lines[0])
		require.Equal(t, "0,10,0,0", lines[1])
		require.Equal(t, "4096,10,1,819", lines[4097])
		require.Equal(t, scenarioBFile(), content)
	})

	t.Run("file content is independent of chunk size", func(t *testing.T) {
		expected := scenarioBFile()
		for _, size := range []int{1, 7, 2048, 4096, 4097, 10000} {
			env, store := memEnv(size)
			_, rows, err := execute(ctx, t, env, scenarioB)
			require.NoError(t, err)
			require.Len(t, rows, 4097)
			require.Equal(t, expected, readString(t, store, "out.csv"), "chunk size %d", size)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		env, store := memEnv(0)
		_, rows, err := execute(ctx, t, env, `SELECT * FROM tee((SELECT range AS x FROM range(0)), path = 'out.csv')`)
		require.NoError(t, err)
		require.Empty(t, rows)
		require.Equal(t, "x\n", readString(t, store, "out.csv"))
	})

	t.Run("overwrite leaves only the latest content", func(t *testing.T) {
		env, store := memEnv(0)
		_, _, err := execute(ctx, t, env, scenarioB)
		require.NoError(t, err)
		_, _, err = execute(ctx, t, env, `SELECT * FROM tee((SELECT 42 AS a), path = 'out.csv')`)
		require.NoError(t, err)
		require.Equal(t, "a\n42\n", readString(t, store, "out.csv"))
	})

	t.Run("overwrite on disk", func(t *testing.T) {
		dir := t.TempDir()
		env := &executor.Env{Storage: storage.NewDirectoryStore(dir)}
		_, _, err := execute(ctx, t, env, scenarioB)
		require.NoError(t, err)
		_, _, err = execute(ctx, t, env, `SELECT * FROM tee((SELECT 42 AS a), path = 'out.csv')`)
		require.NoError(t, err)
		data, err := os.ReadFile(filepath.Join(dir, "out.csv"))
		require.NoError(t, err)
		require.Equal(t, "a\n42\n", string(data))
	})

	t.Run("missing directory fails the query", func(t *testing.T) {
		env := &executor.Env{Storage: storage.NewDirectoryStore(t.TempDir())}
		_, _, err := execute(ctx, t, env, `SELECT * FROM tee((SELECT 1 AS a), path = 'nope/out.csv')`)
		require.Error(t, err)
	})

	t.Run("nested tees write both files", func(t *testing.T) {
		env, store := memEnv(3)
		_, rows, err := execute(ctx, t, env, `
			SELECT * FROM tee((
				SELECT range * 2 AS doubled FROM tee((SELECT * FROM range(5)), path = 'inner.csv')
			), path = 'outer.csv')`)
		require.NoError(t, err)
		require.Len(t, rows, 5)
		require.Equal(t, "range\n0\n1\n2\n3\n4\n", readString(t, store, "inner.csv"))
		require.Equal(t, "doubled\n0\n2\n4\n6\n8\n", readString(t, store, "outer.csv"))
	})

	t.Run("limit above tee still writes the whole input", func(t *testing.T) {
		expected := "a\n0\n1\n2\n3\n4\n5\n6\n7\n8\n9\n"
		for _, size := range []int{2, 2048} {
			env, store := memEnv(size)
			var reports []executor.TeeReport
			env.OnTee = func(_ context.Context, r executor.TeeReport) {
				reports = append(reports, r)
			}
			_, rows, err := execute(ctx, t, env, `SELECT * FROM tee((SELECT a FROM range(10) AS _(a)), path = 'out.csv') LIMIT 3`)
			require.NoError(t, err)
			require.Len(t, rows, 3)
			require.Equal(t, expected, readString(t, store, "out.csv"), "chunk size %d", size)
			require.Len(t, reports, 1)
			require.NoError(t, reports[0].Err)
			require.Equal(t, int64(10), reports[0].Rows)
		}
	})

	t.Run("limit zero above tee still writes the whole input", func(t *testing.T) {
		env, store := memEnv(2)
		_, rows, err := execute(ctx, t, env, `SELECT * FROM tee((SELECT * FROM range(3)), path = 'out.csv') LIMIT 0`)
		require.NoError(t, err)
		require.Empty(t, rows)
		require.Equal(t, "range\n0\n1\n2\n", readString(t, store, "out.csv"))
	})

	t.Run("downstream failure aborts the tee", func(t *testing.T) {
		env, store := memEnv(2)
		var reports []executor.TeeReport
		env.OnTee = func(_ context.Context, r executor.TeeReport) {
			reports = append(reports, r)
		}
		ast, err := ql.NewParser().ParseString("", `SELECT * FROM tee((SELECT * FROM range(10)), path = 'out.csv')`)
		require.NoError(t, err)
		node, err := plan.CompileQuery(ctx, *ast.Statements[0], nil)
		require.NoError(t, err)
		err = executor.Run(ctx, node, env, func(*executor.Chunk) error {
			return errors.New("client went away")
		})
		require.ErrorContains(t, err, "client went away")
		require.Len(t, reports, 1)
		require.ErrorContains(t, reports[0].Err, "client went away")
		require.Equal(t, "range\n0\n1\n", readString(t, store, "out.csv"))
	})

	t.Run("runtime error aborts the tee", func(t *testing.T) {
		env, _ := memEnv(2)
		var reports []executor.TeeReport
		env.OnTee = func(_ context.Context, r executor.TeeReport) {
			reports = append(reports, r)
		}
		_, _, err := execute(ctx, t, env, `SELECT * FROM tee((SELECT 10 // (range - 3) AS x FROM range(10)), path = 'out.csv')`)
		require.ErrorIs(t, err, executor.ErrDivisionByZero)
		require.Len(t, reports, 1)
		require.ErrorIs(t, reports[0].Err, executor.ErrDivisionByZero)
	})

	t.Run("integer overflow aborts the tee", func(t *testing.T) {
		env, _ := memEnv(2)
		var reports []executor.TeeReport
		env.OnTee = func(_ context.Context, r executor.TeeReport) {
			reports = append(reports, r)
		}
		_, _, err := execute(ctx, t, env, `SELECT * FROM tee((
			SELECT a * 2 AS b FROM range(9223372036854775805, 9223372036854775807) AS _(a)
		), path = 'out.csv')`)
		require.ErrorIs(t, err, executor.ErrIntegerOverflow)
		require.Len(t, reports, 1)
		require.ErrorIs(t, reports[0].Err, executor.ErrIntegerOverflow)
	})

	t.Run("canceled context", func(t *testing.T) {
		env, _ := memEnv(1)
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		ast, err := ql.NewParser().ParseString("", `SELECT * FROM tee((SELECT * FROM range(10)), path = 'out.csv')`)
		require.NoError(t, err)
		node, err := plan.CompileQuery(ctx, *ast.Statements[0], nil)
		require.NoError(t, err)
		pulled := 0
		err = executor.Run(ctx, node, env, func(*executor.Chunk) error {
			pulled++
			if pulled == 2 {
				cancel()
			}
			return nil
		})
		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, 2, pulled)
	})
}

func TestQueries(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		assertion string
		query     string
		expected  [][]string
	}{
		{"where", "SELECT range FROM range(10) WHERE range % 3 = 0", [][]string{{"0"}, {"3"}, {"6"}, {"9"}}},
		{"limit", "SELECT * FROM range(10) LIMIT 2", [][]string{{"0"}, {"1"}}},
		{"offset", "SELECT * FROM range(5) OFFSET 3", [][]string{{"3"}, {"4"}}},
		{"limit and offset", "SELECT * FROM range(10) LIMIT 2 OFFSET 7", [][]string{{"7"}, {"8"}}},
		{"offset past end", "SELECT * FROM range(3) OFFSET 5", [][]string{}},
		{"limit zero", "SELECT * FROM range(3) LIMIT 0", [][]string{}},
		{"descending range", "SELECT * FROM range(5, 0, -2)", [][]string{{"5"}, {"3"}, {"1"}}},
		{"two argument range", "SELECT * FROM range(2, 4)", [][]string{{"2"}, {"3"}}},
		{"subquery", "SELECT x + 1 AS y FROM (SELECT range AS x FROM range(2))", [][]string{{"1"}, {"2"}}},
		{"null where is false", "SELECT range FROM range(3) WHERE NULL", [][]string{}},
		{"multiple columns", "SELECT range, range * range FROM range(3)", [][]string{{"0", "0"}, {"1", "1"}, {"2", "4"}}},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			env, _ := memEnv(2)
			_, rows, err := execute(ctx, t, env, c.query)
			require.NoError(t, err)
			actual := [][]string{}
			for _, row := range rows {
				strs := make([]string, len(row))
				for i, v := range row {
					strs[i] = v.Text()
				}
				actual = append(actual, strs)
			}
			require.Equal(t, c.expected, actual)
		})
	}
}

func TestExpressions(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		assertion string
		expr      string
		expected  types.Value
	}{
		{"integer addition", "1 + 2", types.Int(3)},
		{"precedence", "1 + 2 * 3", types.Int(7)},
		{"parens", "(1 + 2) * 3", types.Int(9)},
		{"division is double", "7 / 2", types.Float(3.5)},
		{"floor division", "7 // 2", types.Int(3)},
		{"negative floor division", "-7 // 2", types.Int(-4)},
		{"modulo sign follows dividend", "-7 % 3", types.Int(-1)},
		{"double modulo", "7.5 % 2", types.Float(1.5)},
		{"floor of division", "FLOOR(4096 / 5)", types.Float(819)},
		{"floor cast to int", "FLOOR(4096 / 5)::int", types.Int(819)},
		{"ceil", "ceil(1.2)", types.Float(2)},
		{"round half away from zero", "round(-2.5)", types.Float(-3)},
		{"round to places", "round(3.14159, 2)", types.Float(3.14)},
		{"abs", "abs(-3)", types.Int(3)},
		{"double to int rounds", "2.5::int", types.Int(3)},
		{"negative double to int rounds", "-2.5::int", types.Int(-3)},
		{"string to int", "'42'::bigint", types.Int(42)},
		{"int to string", "CAST(42 AS varchar)", types.String("42")},
		{"int to double", "1::double", types.Float(1)},
		{"string to bool", "'true'::boolean", types.Bool(true)},
		{"null arithmetic", "1 + NULL", types.NullValue()},
		{"null comparison", "1 = NULL", types.NullValue()},
		{"comparison", "1 < 2", types.Bool(true)},
		{"mixed comparison", "1 = 1.0", types.Bool(true)},
		{"string comparison", "'a' < 'b'", types.Bool(true)},
		{"not equal", "1 <> 2", types.Bool(true)},
		{"bang equal", "1 != 1", types.Bool(false)},
		{"and with null", "FALSE AND NULL", types.Bool(false)},
		{"or with null", "TRUE OR NULL", types.Bool(true)},
		{"and null", "TRUE AND NULL", types.NullValue()},
		{"not", "NOT (1 = 2)", types.Bool(true)},
		{"lower", "lower('ABC')", types.String("abc")},
		{"upper", "upper('abc')", types.String("ABC")},
		{"length", "length('héllo')", types.Int(5)},
		{"concat skips nulls", "concat('a', NULL, 1, TRUE)", types.String("a1true")},
		{"coalesce", "coalesce(NULL, 2)", types.Int(2)},
		{"coalesce widens", "coalesce(NULL, 2, 3.5)", types.Float(2)},
		{"negation", "-(1 + 2)", types.Int(-3)},
		{"addition at max", "9223372036854775806 + 1", types.Int(9223372036854775807)},
		{"multiplication at min", "-4611686018427387904 * 2", types.Int(-9223372036854775807 - 1)},
		{"min modulo minus one", "(-9223372036854775807 - 1) % -1", types.Int(0)},
		{"timestamp cast", "'2024-01-02T03:04:05Z'::timestamp::varchar", types.String("2024-01-02 03:04:05")},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			env, _ := memEnv(0)
			_, rows, err := execute(ctx, t, env, "SELECT "+c.expr+" AS x")
			require.NoError(t, err)
			require.Len(t, rows, 1)
			require.True(t, c.expected.Equal(rows[0][0]), "expected %s, got %s", c.expected, rows[0][0])
		})
	}
}

func TestExpressionErrors(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		assertion string
		expr      string
		target    error
	}{
		{"integer division by zero", "1 // 0", executor.ErrDivisionByZero},
		{"modulo by zero", "1 % 0", executor.ErrDivisionByZero},
		{"slash by integer zero", "1 / 0", executor.ErrDivisionByZero},
		{"addition overflow", "9223372036854775807 + 1", executor.ErrIntegerOverflow},
		{"subtraction overflow", "(-9223372036854775807 - 1) - 1", executor.ErrIntegerOverflow},
		{"multiplication overflow", "4611686018427387904 * 2", executor.ErrIntegerOverflow},
		{"negative multiplication overflow", "(-9223372036854775807 - 1) * -1", executor.ErrIntegerOverflow},
		{"floor division overflow", "(-9223372036854775807 - 1) // -1", executor.ErrIntegerOverflow},
		{"negation overflow", "-(-9223372036854775807 - 1)", executor.ErrIntegerOverflow},
		{"abs overflow", "abs(-9223372036854775807 - 1)", executor.ErrIntegerOverflow},
		{"bad integer cast", "'abc'::int", executor.CastError{}},
		{"bad timestamp cast", "'yesterday'::timestamp", executor.CastError{}},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			env, _ := memEnv(0)
			_, _, err := execute(ctx, t, env, "SELECT "+c.expr+" AS x")
			require.ErrorIs(t, err, c.target)
		})
	}
}

func TestHash(t *testing.T) {
	ctx := context.Background()
	env, _ := memEnv(0)
	_, rows, err := execute(ctx, t, env, "SELECT hash(1) AS a, hash(1) AS b, hash('1') AS c, hash(2) AS d")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	row := rows[0]
	require.Equal(t, row[0], row[1])
	require.NotEqual(t, row[0], row[2])
	require.NotEqual(t, row[0], row[3])
}

func TestStats(t *testing.T) {
	ctx := util.WithContext(context.Background(), "query")
	env, _ := memEnv(1000)
	env.Stats = true
	_, rows, err := execute(ctx, t, env, `SELECT * FROM tee((SELECT * FROM range(2500)), path = 'out.csv')`)
	require.NoError(t, err)
	require.Len(t, rows, 2500)
	data, err := util.JSONFromContext(ctx)
	require.NoError(t, err)
	require.Contains(t, string(data), `"name":"tee"`)
	require.Contains(t, string(data), `"rows_written":2500`)
	require.Contains(t, string(data), `"chunks_out":3`)
	require.Contains(t, string(data), `"path":"out.csv"`)
}
