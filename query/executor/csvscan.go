package executor

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/wkalt/teeql/query/plan"
	"github.com/wkalt/teeql/query/types"
	"golang.org/x/sync/errgroup"
)

/*
CSVScanNode reads rows from one or more delimited files with a header line,
in the order given. Empty fields read as NULL. Every other field is parsed
according to the column type detected by the CSVDescriber at bind time; a
field that does not parse fails the query with a ParseError.
*/

////////////////////////////////////////////////////////////////////////////////

// CSVScanNode represents the csv scan node.
type CSVScanNode struct {
	storage   Storage
	paths     []string
	schema    types.Schema
	delimiter rune
	chunkSize int

	path   string
	rc     io.ReadCloser
	reader *csv.Reader
	record int
}

// NewCSVScanNode constructs a new csv scan node.
func NewCSVScanNode(
	storage Storage,
	paths []string,
	schema types.Schema,
	delimiter rune,
	chunkSize int,
) *CSVScanNode {
	return &CSVScanNode{
		storage:   storage,
		paths:     paths,
		schema:    schema,
		delimiter: delimiter,
		chunkSize: chunkSize,
	}
}

// Next returns the next chunk from the node.
func (n *CSVScanNode) Next(ctx context.Context) (*Chunk, error) {
	rows := make([][]types.Value, 0, n.chunkSize)
	for len(rows) < n.chunkSize {
		if n.reader == nil {
			if len(n.paths) == 0 {
				break
			}
			if err := n.openNext(ctx); err != nil {
				return nil, err
			}
		}
		record, err := n.reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if err := n.closeCurrent(); err != nil {
					return nil, err
				}
				continue
			}
			return nil, fmt.Errorf("failed to read %s: %w", n.path, err)
		}
		n.record++
		row, err := n.parse(record)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, io.EOF
	}
	return &Chunk{Rows: rows}, nil
}

func (n *CSVScanNode) openNext(ctx context.Context) error {
	n.path = n.paths[0]
	n.paths = n.paths[1:]
	rc, err := n.storage.Open(ctx, n.path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", n.path, err)
	}
	n.rc = rc
	n.reader = newCSVReader(rc, n.delimiter)
	n.reader.FieldsPerRecord = len(n.schema)
	if _, err := n.reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return n.closeCurrent()
		}
		return fmt.Errorf("failed to read header of %s: %w", n.path, err)
	}
	n.record = 1
	return nil
}

func (n *CSVScanNode) closeCurrent() error {
	n.reader = nil
	if n.rc == nil {
		return nil
	}
	rc := n.rc
	n.rc = nil
	if err := rc.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", n.path, err)
	}
	return nil
}

func (n *CSVScanNode) parse(record []string) ([]types.Value, error) {
	row := make([]types.Value, len(record))
	for i, field := range record {
		v, ok := parseField(field, n.schema[i].Type)
		if !ok {
			return nil, ParseError{
				Path:   n.path,
				Line:   n.record,
				Column: n.schema[i].Name,
				Field:  field,
				Kind:   n.schema[i].Type,
			}
		}
		row[i] = v
	}
	return row, nil
}

// Close the node.
func (n *CSVScanNode) Close(context.Context) error {
	n.paths = nil
	return n.closeCurrent()
}

// String returns a string representation of the node.
func (n *CSVScanNode) String() string {
	return fmt.Sprintf("[csvscan %s]", strings.Join(n.paths, " "))
}

func newCSVReader(r io.Reader, delimiter rune) *csv.Reader {
	reader := csv.NewReader(r)
	reader.Comma = delimiter
	reader.ReuseRecord = true
	return reader
}

func parseField(field string, kind types.Kind) (types.Value, bool) {
	if field == "" {
		return types.NullValue(), true
	}
	switch kind {
	case types.Integer:
		i, err := strconv.ParseInt(field, 10, 64)
		return types.Int(i), err == nil
	case types.Double:
		f, err := strconv.ParseFloat(field, 64)
		return types.Float(f), err == nil
	case types.Boolean:
		switch strings.ToLower(field) {
		case "true":
			return types.Bool(true), true
		case "false":
			return types.Bool(false), true
		}
		return types.NullValue(), false
	case types.Timestamp:
		t, err := parseTimestamp(field)
		return types.Time(t), err == nil
	default:
		return types.String(field), true
	}
}

// CSVDescriber resolves read_csv patterns for the binder. It expands globs,
// checks that every matched file has the same header, and detects column
// types from a sample of the first file.
type CSVDescriber struct {
	storage    Storage
	sampleSize int
}

// NewCSVDescriber constructs a new describer that samples up to sampleSize
// rows.
func NewCSVDescriber(storage Storage, sampleSize int) *CSVDescriber {
	if sampleSize <= 0 {
		sampleSize = DefaultChunkSize
	}
	return &CSVDescriber{storage: storage, sampleSize: sampleSize}
}

// Describe returns the files matching pattern, in scan order, and their
// schema.
func (d *CSVDescriber) Describe(ctx context.Context, pattern string, delimiter rune) ([]string, types.Schema, error) {
	paths := []string{pattern}
	if strings.ContainsAny(pattern, "*?[{") {
		var err error
		if paths, err = d.storage.Glob(ctx, pattern); err != nil {
			return nil, nil, fmt.Errorf("failed to expand %s: %w", pattern, err)
		}
		if len(paths) == 0 {
			return nil, nil, plan.BadPlanError{Err: fmt.Errorf("no files match %s", pattern)}
		}
	}
	headers := make([][]string, len(paths))
	var sample [][]string
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			limit := 0
			if i == 0 {
				limit = d.sampleSize
			}
			header, records, err := d.head(gctx, path, delimiter, limit)
			if err != nil {
				return err
			}
			headers[i] = header
			if i == 0 {
				sample = records
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	for i := 1; i < len(headers); i++ {
		if !slices.Equal(headers[0], headers[i]) {
			return nil, nil, plan.BadPlanError{Err: fmt.Errorf(
				"header of %s does not match %s", paths[i], paths[0],
			)}
		}
	}
	return paths, sniff(headers[0], sample), nil
}

// head reads the header and up to limit records of a file.
func (d *CSVDescriber) head(ctx context.Context, path string, delimiter rune, limit int) ([]string, [][]string, error) {
	rc, err := d.storage.Open(ctx, path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer rc.Close()
	reader := csv.NewReader(rc)
	reader.Comma = delimiter
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, plan.BadPlanError{Err: fmt.Errorf("%s has no header", path)}
		}
		return nil, nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	reader.FieldsPerRecord = len(header)
	records := [][]string{}
	for len(records) < limit {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		records = append(records, record)
	}
	return header, records, nil
}

// sniff picks the narrowest of BIGINT, DOUBLE, BOOLEAN and VARCHAR that
// accepts every non-empty sampled field of each column.
func sniff(header []string, records [][]string) types.Schema {
	candidates := []types.Kind{types.Integer, types.Double, types.Boolean, types.Varchar}
	schema := make(types.Schema, len(header))
	for i, name := range header {
		kind := types.Varchar
		seen := false
		for _, candidate := range candidates {
			ok := true
			for _, record := range records {
				if record[i] == "" {
					continue
				}
				seen = true
				if _, parsed := parseField(record[i], candidate); !parsed {
					ok = false
					break
				}
			}
			if ok {
				kind = candidate
				break
			}
		}
		if !seen {
			kind = types.Varchar
		}
		schema[i] = types.NewColumn(name, kind)
	}
	return schema
}
