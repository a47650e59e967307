package types

import (
	"math"
	"strconv"
	"time"
)

// TimestampFormat is the canonical text form of a timestamp value.
const TimestampFormat = "2006-01-02 15:04:05.999999"

// Value is a single SQL value. The zero value is NULL.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	t    time.Time
}

// NullValue returns a NULL.
func NullValue() Value {
	return Value{}
}

// Int returns an integer value.
func Int(v int64) Value {
	return Value{kind: Integer, i: v}
}

// Float returns a double value.
func Float(v float64) Value {
	return Value{kind: Double, f: v}
}

// String returns a varchar value.
func String(v string) Value {
	return Value{kind: Varchar, s: v}
}

// Bool returns a boolean value.
func Bool(v bool) Value {
	if v {
		return Value{kind: Boolean, i: 1}
	}
	return Value{kind: Boolean}
}

// Time returns a timestamp value, truncated to microseconds.
func Time(v time.Time) Value {
	return Value{kind: Timestamp, t: v.UTC().Truncate(time.Microsecond)}
}

// Kind returns the variant of the value. NULLs of any column type report Null.
func (v Value) Kind() Kind {
	return v.kind
}

// IsNull reports whether the value is NULL.
func (v Value) IsNull() bool {
	return v.kind == Null
}

// AsInt returns the integer payload.
func (v Value) AsInt() int64 {
	return v.i
}

// AsFloat returns the value as a float. Integers are converted.
func (v Value) AsFloat() float64 {
	if v.kind == Integer {
		return float64(v.i)
	}
	return v.f
}

// AsString returns the varchar payload.
func (v Value) AsString() string {
	return v.s
}

// AsBool returns the boolean payload.
func (v Value) AsBool() bool {
	return v.i != 0
}

// AsTime returns the timestamp payload.
func (v Value) AsTime() time.Time {
	return v.t
}

// Text renders the value in its canonical text form. NULL renders as the
// empty string. Integers never carry a decimal point or exponent.
func (v Value) Text() string {
	return string(v.AppendText(nil))
}

// AppendText appends the canonical text form of the value to buf.
func (v Value) AppendText(buf []byte) []byte {
	switch v.kind {
	case Null:
		return buf
	case Boolean:
		return strconv.AppendBool(buf, v.i != 0)
	case Integer:
		return strconv.AppendInt(buf, v.i, 10)
	case Double:
		return AppendFloat(buf, v.f)
	case Varchar:
		return append(buf, v.s...)
	case Timestamp:
		return v.t.AppendFormat(buf, TimestampFormat)
	default:
		return buf
	}
}

// AppendFloat appends the shortest decimal form of f that round-trips. Values
// with very large or very small magnitude use exponent notation.
func AppendFloat(buf []byte, f float64) []byte {
	switch {
	case math.IsNaN(f):
		return append(buf, "nan"...)
	case math.IsInf(f, 1):
		return append(buf, "inf"...)
	case math.IsInf(f, -1):
		return append(buf, "-inf"...)
	}
	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		return strconv.AppendFloat(buf, f, 'e', -1, 64)
	}
	return strconv.AppendFloat(buf, f, 'f', -1, 64)
}

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case Null:
		return true
	case Boolean, Integer:
		return v.i == o.i
	case Double:
		return v.f == o.f || (math.IsNaN(v.f) && math.IsNaN(o.f))
	case Varchar:
		return v.s == o.s
	case Timestamp:
		return v.t.Equal(o.t)
	default:
		return false
	}
}

// Native returns the value as a plain Go value, for JSON encoding.
func (v Value) Native() any {
	switch v.kind {
	case Boolean:
		return v.i != 0
	case Integer:
		return v.i
	case Double:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return v.Text()
		}
		return v.f
	case Varchar:
		return v.s
	case Timestamp:
		return v.Text()
	default:
		return nil
	}
}

// String implements fmt.Stringer.
func (v Value) String() string {
	if v.kind == Null {
		return "NULL"
	}
	if v.kind == Varchar {
		return strconv.Quote(v.s)
	}
	return v.Text()
}
