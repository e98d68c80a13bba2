package rowset

import (
	"math"
	"strconv"
	"time"
)

// Kind is the storage class of a column.
type Kind uint8

const (
	KindText Kind = iota
	KindNumber
	KindInt
	KindBool
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Numeric reports whether the kind holds numbers (float or int).
func (k Kind) Numeric() bool {
	return k == KindNumber || k == KindInt
}

// Value is a nullable scalar cell. The zero Value is a null text cell.
type Value struct {
	kind  Kind
	valid bool
	s     string
	f     float64
	i     int64
	b     bool
	t     time.Time
}

func TextValue(s string) Value { return Value{kind: KindText, valid: true, s: s} }
func NumberValue(f float64) Value { return Value{kind: KindNumber, valid: true, f: f} }
func IntValue(i int64) Value { return Value{kind: KindInt, valid: true, i: i} }
func BoolValue(b bool) Value { return Value{kind: KindBool, valid: true, b: b} }
func TimeValue(t time.Time) Value { return Value{kind: KindTime, valid: true, t: t} }
func NullValue(k Kind) Value { return Value{kind: k} }

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return !v.valid }
func (v Value) Float() float64 { return v.f }
func (v Value) Int() int64 { return v.i }
func (v Value) Bool() bool { return v.b }
func (v Value) Time() time.Time { return v.t }

// Str returns the raw text of a text cell ("" for null or non-text cells).
func (v Value) Str() string {
	if v.kind != KindText || !v.valid {
		return ""
	}
	return v.s
}

// String renders the cell as text. Null renders as "".
func (v Value) String() string {
	if !v.valid {
		return ""
	}
	switch v.kind {
	case KindText:
		return v.s
	case KindNumber:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindBool:
		if v.b {
			return "True"
		}
		return "False"
	case KindTime:
		if v.t.Hour() == 0 && v.t.Minute() == 0 && v.t.Second() == 0 && v.t.Nanosecond() == 0 {
			return v.t.Format("2006-01-02")
		}
		return v.t.Format("2006-01-02 15:04:05")
	}
	return ""
}

// Equal compares kind, nullness and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind || v.valid != o.valid {
		return false
	}
	if !v.valid {
		return true
	}
	switch v.kind {
	case KindText:
		return v.s == o.s
	case KindNumber:
		return v.f == o.f
	case KindInt:
		return v.i == o.i
	case KindBool:
		return v.b == o.b
	case KindTime:
		return v.t.Equal(o.t)
	}
	return false
}

// As converts the value to kind k. Text renders through String; anything
// that cannot be represented becomes null of kind k.
func (v Value) As(k Kind) Value {
	if v.kind == k {
		return v
	}
	if !v.valid {
		return NullValue(k)
	}
	switch k {
	case KindText:
		return TextValue(v.String())
	case KindNumber:
		switch v.kind {
		case KindInt:
			return NumberValue(float64(v.i))
		case KindBool:
			if v.b {
				return NumberValue(1)
			}
			return NumberValue(0)
		}
	case KindInt:
		if v.kind == KindNumber && v.f == math.Trunc(v.f) && v.f >= math.MinInt64 && v.f < math.MaxInt64 {
			return IntValue(int64(v.f))
		}
	}
	return NullValue(k)
}
