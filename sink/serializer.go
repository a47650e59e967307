package sink

import (
	"bytes"
	"unicode/utf8"

	"github.com/wkalt/teeql/query/types"
)

/*
The serializer converts rows of typed values into delimited text lines. It is
pure: the same row always produces the same bytes, and it holds no I/O state.

Fields are emitted unquoted unless they contain the delimiter, a double quote,
or a line break, in which case they are wrapped in double quotes with embedded
quotes doubled. NULL renders as an empty field. An empty string renders as ""
so that it remains distinguishable from NULL.
*/

////////////////////////////////////////////////////////////////////////////////

const quote = '"'

// DefaultDelimiter is the field delimiter used when none is configured.
const DefaultDelimiter = ','

// Serializer renders rows and headers as delimited lines.
type Serializer struct {
	delimiter []byte
}

// NewSerializer returns a serializer using the supplied delimiter.
func NewSerializer(delimiter rune) Serializer {
	buf := make([]byte, utf8.RuneLen(delimiter))
	utf8.EncodeRune(buf, delimiter)
	return Serializer{delimiter: buf}
}

// AppendHeader appends a header line for the supplied column names, including
// the terminating newline.
func (s Serializer) AppendHeader(buf []byte, names []string) []byte {
	for i, name := range names {
		if i > 0 {
			buf = append(buf, s.delimiter...)
		}
		buf = s.appendField(buf, []byte(name), true)
	}
	return append(buf, '\n')
}

// AppendRow appends one line for the supplied row, including the terminating
// newline. On error buf is returned unmodified.
func (s Serializer) AppendRow(buf []byte, row []types.Value) ([]byte, error) {
	start := len(buf)
	var scratch [64]byte
	for i, v := range row {
		if i > 0 {
			buf = append(buf, s.delimiter...)
		}
		switch v.Kind() {
		case types.Null:
			continue
		case types.Varchar:
			buf = s.appendField(buf, []byte(v.AsString()), true)
		case types.Boolean, types.Integer, types.Double, types.Timestamp:
			buf = s.appendField(buf, v.AppendText(scratch[:0]), false)
		default:
			return buf[:start], SerializationError{Column: i, Kind: v.Kind()}
		}
	}
	return append(buf, '\n'), nil
}

// Line returns the serialized form of a single row.
func (s Serializer) Line(row []types.Value) ([]byte, error) {
	return s.AppendRow(nil, row)
}

func (s Serializer) appendField(buf []byte, field []byte, quoteEmpty bool) []byte {
	if len(field) == 0 {
		if quoteEmpty {
			return append(buf, quote, quote)
		}
		return buf
	}
	if !s.needsQuotes(field) {
		return append(buf, field...)
	}
	buf = append(buf, quote)
	for {
		i := bytes.IndexByte(field, quote)
		if i < 0 {
			break
		}
		buf = append(buf, field[:i+1]...)
		buf = append(buf, quote)
		field = field[i+1:]
	}
	buf = append(buf, field...)
	return append(buf, quote)
}

func (s Serializer) needsQuotes(field []byte) bool {
	return bytes.Contains(field, s.delimiter) ||
		bytes.ContainsAny(field, "\"\r\n")
}
