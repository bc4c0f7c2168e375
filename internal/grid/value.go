package grid

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind 标识单元格的值类型；分组比较时类型敏感。
type Kind int

const (
	KindEmpty Kind = iota
	KindString
	KindNumber
	KindBool
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	default:
		return "unknown"
	}
}

// Value is a single cell. The zero value is an empty cell.
type Value struct {
	kind Kind
	str  string
	num  decimal.Decimal
	b    bool
	t    time.Time
}

var Empty = Value{}

func String(s string) Value {
	if s == "" {
		return Empty
	}
	return Value{kind: KindString, str: s}
}

func Number(d decimal.Decimal) Value { return Value{kind: KindNumber, num: d} }

func Float(f float64) Value { return Number(decimal.NewFromFloat(f)) }

func Int(i int64) Value { return Number(decimal.NewFromInt(i)) }

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

func Time(t time.Time) Value {
	if t.IsZero() {
		return Empty
	}
	return Value{kind: KindTime, t: t}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsEmpty() bool { return v.kind == KindEmpty }

// Key is a type-tagged identity: Int(1) and String("1") never collide.
func (v Value) Key() string {
	switch v.kind {
	case KindString:
		return "s:" + v.str
	case KindNumber:
		return "n:" + v.num.String()
	case KindBool:
		return "b:" + strconv.FormatBool(v.b)
	case KindTime:
		return "t:" + v.t.UTC().Format(time.RFC3339Nano)
	default:
		return ""
	}
}

func (v Value) Equal(o Value) bool { return v.kind == o.kind && v.Key() == o.Key() }

// String renders the cell the way a sheet would display it.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num.String()
	case KindBool:
		return strings.ToUpper(strconv.FormatBool(v.b))
	case KindTime:
		return v.t.Format(time.RFC3339)
	default:
		return ""
	}
}

func (v Value) Decimal() (decimal.Decimal, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindString:
		d, err := decimal.NewFromString(strings.TrimSpace(v.str))
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		return decimal.Zero, false
	}
}

func (v Value) Float() (float64, bool) {
	d, ok := v.Decimal()
	if !ok {
		return 0, false
	}
	return d.InexactFloat64(), true
}

// Time accepts time cells and ISO-8601 date strings.
func (v Value) Time() (time.Time, bool) {
	switch v.kind {
	case KindTime:
		return v.t, true
	case KindString:
		s := strings.TrimPrefix(strings.TrimSpace(v.str), "'")
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// encode/decode are the storage form used by the SQLite store.
func (v Value) encode() (Kind, string) {
	switch v.kind {
	case KindString:
		return KindString, v.str
	case KindNumber:
		return KindNumber, v.num.String()
	case KindBool:
		return KindBool, strconv.FormatBool(v.b)
	case KindTime:
		return KindTime, v.t.Format(time.RFC3339Nano)
	default:
		return KindEmpty, ""
	}
}

func decodeValue(kind Kind, text string) (Value, error) {
	switch kind {
	case KindEmpty:
		return Empty, nil
	case KindString:
		return String(text), nil
	case KindNumber:
		d, err := decimal.NewFromString(text)
		if err != nil {
			return Empty, fmt.Errorf("decode number %q: %w", text, err)
		}
		return Number(d), nil
	case KindBool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return Empty, fmt.Errorf("decode bool %q: %w", text, err)
		}
		return Bool(b), nil
	case KindTime:
		t, err := time.Parse(time.RFC3339Nano, text)
		if err != nil {
			return Empty, fmt.Errorf("decode time %q: %w", text, err)
		}
		return Time(t), nil
	default:
		return Empty, fmt.Errorf("unknown cell kind %d", kind)
	}
}

// Flatten returns the non-empty cells of rows in row-major order.
func Flatten(rows [][]Value) []Value {
	out := make([]Value, 0, len(rows))
	for _, row := range rows {
		for _, v := range row {
			if !v.IsEmpty() {
				out = append(out, v)
			}
		}
	}
	return out
}
