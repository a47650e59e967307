package output

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
	"github.com/wkalt/teeql/query/types"
	"github.com/wkalt/teeql/sink"
	"github.com/wkalt/teeql/util/tablewriter"
)

/*
Output writers render the passthrough result of each statement. A script with
several statements drives one writer through several Begin/Write/End cycles.
The csv writer shares the tee sink's serializer, so its output for a statement
is byte-identical to the file a tee at the root of that statement produces.

The table writer lays out a statement only once it has ended, so it keeps at
most maxRows rendered rows: the first half and a ring of the last half. Rows in
between are counted and shown as a single ellipsis row.
*/

////////////////////////////////////////////////////////////////////////////////

// Format names an output format.
type Format string

const (
	// Table renders a box table, or one record per block when too wide.
	Table Format = "table"
	// CSV renders delimited text with a header line.
	CSV Format = "csv"
	// JSON renders one JSON object per row.
	JSON Format = "json"
)

// ParseFormat resolves a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case Table, CSV, JSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format %q (expected table, csv or json)", s)
	}
}

// Writer receives the result of each statement.
type Writer interface {
	Begin(schema types.Schema) error
	Write(rows [][]types.Value) error
	End() error
}

// DefaultMaxRows is the number of rows a table shows by default.
const DefaultMaxRows = 40

const ellipsis = "..."

// Option configures a writer.
type Option func(*options)

type options struct {
	termWidth int
	delimiter rune
	maxRows   int
}

// WithTermWidth sets the terminal width used to lay out tables.
func WithTermWidth(width int) Option {
	return func(o *options) {
		o.termWidth = width
	}
}

// WithMaxRows sets the number of rows a table shows. Zero or less shows
// every row.
func WithMaxRows(n int) Option {
	return func(o *options) {
		o.maxRows = n
	}
}

// WithDelimiter sets the csv field delimiter.
func WithDelimiter(d rune) Option {
	return func(o *options) {
		o.delimiter = d
	}
}

// NewWriter returns a writer for format that writes to w.
func NewWriter(format Format, w io.Writer, opts ...Option) (Writer, error) {
	o := options{delimiter: sink.DefaultDelimiter, maxRows: DefaultMaxRows}
	for _, opt := range opts {
		opt(&o)
	}
	switch format {
	case Table:
		return newTableWriter(w, o.termWidth, o.maxRows), nil
	case CSV:
		return &csvWriter{w: bufio.NewWriter(w), serializer: sink.NewSerializer(o.delimiter)}, nil
	case JSON:
		return &jsonWriter{w: bufio.NewWriter(w)}, nil
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

type tableWriter struct {
	w         io.Writer
	termWidth int
	headLimit int
	tailLimit int
	headers   []string
	head      [][]string
	tail      [][]string
	next      int
	total     int
}

func newTableWriter(w io.Writer, termWidth, maxRows int) *tableWriter {
	t := &tableWriter{w: w, termWidth: termWidth, headLimit: -1}
	if maxRows > 0 {
		t.tailLimit = maxRows / 2
		t.headLimit = maxRows - t.tailLimit
	}
	return t
}

func (t *tableWriter) Begin(schema types.Schema) error {
	t.headers = schema.Names()
	t.head = t.head[:0]
	t.tail = t.tail[:0]
	t.next = 0
	t.total = 0
	return nil
}

func render(row []types.Value) []string {
	record := make([]string, len(row))
	for i, v := range row {
		if v.IsNull() {
			record[i] = "NULL"
			continue
		}
		record[i] = v.Text()
	}
	return record
}

func (t *tableWriter) Write(rows [][]types.Value) error {
	for _, row := range rows {
		t.total++
		switch {
		case t.headLimit < 0 || len(t.head) < t.headLimit:
			t.head = append(t.head, render(row))
		case t.tailLimit == 0:
		case len(t.tail) < t.tailLimit:
			t.tail = append(t.tail, render(row))
		default:
			t.tail[t.next] = render(row)
			t.next = (t.next + 1) % t.tailLimit
		}
	}
	return nil
}

func (t *tableWriter) End() error {
	data := make([][]string, 0, len(t.head)+len(t.tail)+1)
	data = append(data, t.head...)
	shown := len(t.head) + len(t.tail)
	if t.total > shown {
		skipped := make([]string, len(t.headers))
		for i := range skipped {
			skipped[i] = ellipsis
		}
		data = append(data, skipped)
	}
	data = append(data, t.tail[t.next:]...)
	data = append(data, t.tail[:t.next]...)
	tablewriter.Print(t.w, t.termWidth, t.headers, data)
	noun := "rows"
	if t.total == 1 {
		noun = "row"
	}
	footer := fmt.Sprintf("(%d %s)", t.total, noun)
	if t.total > shown {
		footer = fmt.Sprintf("(%d %s, %d shown)", t.total, noun, shown)
	}
	if _, err := fmt.Fprintln(t.w, footer); err != nil {
		return fmt.Errorf("failed to write table: %w", err)
	}
	return nil
}

type csvWriter struct {
	w          *bufio.Writer
	serializer sink.Serializer
	buf        []byte
}

func (c *csvWriter) Begin(schema types.Schema) error {
	c.buf = c.serializer.AppendHeader(c.buf[:0], schema.Names())
	if _, err := c.w.Write(c.buf); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	return nil
}

func (c *csvWriter) Write(rows [][]types.Value) error {
	for _, row := range rows {
		var err error
		if c.buf, err = c.serializer.AppendRow(c.buf[:0], row); err != nil {
			return err
		}
		if _, err := c.w.Write(c.buf); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	if err := c.w.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	return nil
}

func (c *csvWriter) End() error {
	if err := c.w.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	return nil
}

type jsonWriter struct {
	w    *bufio.Writer
	keys [][]byte
	buf  []byte
}

func (j *jsonWriter) Begin(schema types.Schema) error {
	j.keys = j.keys[:0]
	for _, name := range schema.Names() {
		key, err := json.Marshal(name)
		if err != nil {
			return fmt.Errorf("failed to encode column name: %w", err)
		}
		j.keys = append(j.keys, key)
	}
	return nil
}

// Write encodes each row as an object whose keys follow schema order.
func (j *jsonWriter) Write(rows [][]types.Value) error {
	for _, row := range rows {
		j.buf = append(j.buf[:0], '{')
		for i, v := range row {
			if i > 0 {
				j.buf = append(j.buf, ',')
			}
			j.buf = append(j.buf, j.keys[i]...)
			j.buf = append(j.buf, ':')
			value, err := json.Marshal(v.Native())
			if err != nil {
				return fmt.Errorf("failed to encode value: %w", err)
			}
			j.buf = append(j.buf, value...)
		}
		j.buf = append(j.buf, '}', '\n')
		if _, err := j.w.Write(j.buf); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	if err := j.w.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	return nil
}

func (j *jsonWriter) End() error {
	if err := j.w.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	return nil
}
