package tablewriter_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wkalt/teeql/util/tablewriter"
)

func TestPrint(t *testing.T) {
	cases := []struct {
		assertion string
		termWidth int
		headers   []string
		data      [][]string
		expected  string
	}{
		{
			"grid",
			80,
			[]string{"a", "bb"},
			[][]string{{"1", "x"}, {"22", "yyyyyy"}},
			"|  a  |   bb   |\n" +
				"|-----|--------|\n" +
				"| 1   | x      |\n" +
				"| 22  | yyyyyy |\n",
		},
		{
			"header only",
			80,
			[]string{"a"},
			nil,
			"|  a  |\n|-----|\n",
		},
		{
			"multibyte values",
			80,
			[]string{"a"},
			[][]string{{"héllo"}},
			"|   a   |\n|-------|\n| héllo |\n",
		},
		{
			"records when too wide",
			10,
			[]string{"a", "long"},
			[][]string{{"1", "xyz"}},
			"-[ RECORD 1 ]+-\n" +
				"a" + strings.Repeat(" ", 12) + "| 1\n" +
				"long" + strings.Repeat(" ", 9) + "| xyz\n",
		},
		{
			"zero width uses default",
			0,
			[]string{"a"},
			[][]string{{"1"}},
			"|  a  |\n|-----|\n| 1   |\n",
		},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tablewriter.Print(buf, c.termWidth, c.headers, c.data)
			require.Equal(t, c.expected, buf.String())
		})
	}
}
