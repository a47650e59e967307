package executor_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wkalt/teeql/query/executor"
	"github.com/wkalt/teeql/query/types"
)

func ints(chunks []*executor.Chunk) []int64 {
	result := []int64{}
	for _, c := range chunks {
		for _, row := range c.Rows {
			result = append(result, row[0].AsInt())
		}
	}
	return result
}

func TestLimitNode(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		assertion string
		limit     int64
		input     [][]int64
		expected  []int64
		pulls     int
	}{
		{"zero", 0, [][]int64{{1, 2}}, []int64{}, 0},
		{"within first chunk", 1, [][]int64{{1, 2}, {3}}, []int64{1}, 1},
		{"exact chunk boundary", 2, [][]int64{{1, 2}, {3}}, []int64{1, 2}, 1},
		{"across chunks", 3, [][]int64{{1, 2}, {3, 4}}, []int64{1, 2, 3}, 2},
		{"more than input", 10, [][]int64{{1, 2}, {3}}, []int64{1, 2, 3}, 3},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			mock := executor.NewIntMockNode(c.input...)
			node := executor.NewLimitNode(c.limit, mock)
			chunks, err := drain(ctx, t, node)
			require.NoError(t, err)
			require.Equal(t, c.expected, ints(chunks))
			require.Equal(t, c.pulls, mock.Pulls)
			require.NoError(t, node.Close(ctx))
			require.Equal(t, 1, mock.Closes)
		})
	}
}

func TestOffsetNode(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		assertion string
		offset    int64
		input     [][]int64
		expected  []int64
	}{
		{"zero", 0, [][]int64{{1, 2}, {3}}, []int64{1, 2, 3}},
		{"within first chunk", 1, [][]int64{{1, 2}, {3}}, []int64{2, 3}},
		{"whole chunk", 2, [][]int64{{1, 2}, {3}}, []int64{3}},
		{"across chunks", 3, [][]int64{{1, 2}, {3, 4}}, []int64{4}},
		{"past end", 5, [][]int64{{1, 2}, {3}}, []int64{}},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			node := executor.NewOffsetNode(c.offset, executor.NewIntMockNode(c.input...))
			chunks, err := drain(ctx, t, node)
			require.NoError(t, err)
			require.Equal(t, c.expected, ints(chunks))
		})
	}
}

func TestRangeNode(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		assertion         string
		start, stop, step int64
		chunkSize         int
		expected          []int64
		chunks            int
	}{
		{"empty", 0, 0, 1, 2, []int64{}, 0},
		{"single chunk", 0, 3, 1, 10, []int64{0, 1, 2}, 1},
		{"chunk boundary", 0, 4, 1, 2, []int64{0, 1, 2, 3}, 2},
		{"partial last chunk", 0, 5, 1, 2, []int64{0, 1, 2, 3, 4}, 3},
		{"step", 1, 10, 4, 10, []int64{1, 5, 9}, 1},
		{"negative step", 3, 0, -1, 10, []int64{3, 2, 1}, 1},
		{"wrong direction", 3, 0, 1, 10, []int64{}, 0},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			node := executor.NewRangeNode(c.start, c.stop, c.step, c.chunkSize)
			chunks, err := drain(ctx, t, node)
			require.NoError(t, err)
			require.Equal(t, c.expected, ints(chunks))
			require.Len(t, chunks, c.chunks)
		})
	}
}

func TestRangeNodeOverflow(t *testing.T) {
	ctx := context.Background()
	node := executor.NewRangeNode(9223372036854775806, 9223372036854775807, 5, 10)
	chunks, err := drain(ctx, t, node)
	require.NoError(t, err)
	require.Equal(t, []int64{9223372036854775806}, ints(chunks))
}

func TestValuesNode(t *testing.T) {
	ctx := context.Background()
	rows := [][]types.Value{{types.Int(1)}, {types.Int(2)}, {types.Int(3)}}
	node := executor.NewValuesNode(rows, 2)
	chunks, err := drain(ctx, t, node)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	require.Equal(t, []int64{1, 2, 3}, ints(chunks))
}
