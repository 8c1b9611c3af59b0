// Package value converts MaterialX typed value strings into concrete values.
//
// MaterialX declares every default and UI bound as a (type tag, string) pair,
// for example ("color3", "0.8, 0.8, 0.8"). Coerce maps such a pair onto the
// small closed set of kinds a node editor can present: float, integer,
// boolean, string and a sequence of floats.
package value

import (
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	// KindNone is the zero Value: no default or bound was provided, or the
	// type tag has no mapping.
	KindNone Kind = iota
	KindFloat
	KindInteger
	KindBoolean
	KindString
	KindFloats
)

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindInteger:
		return "integer"
	case KindBoolean:
		return "boolean"
	case KindString:
		return "string"
	case KindFloats:
		return "floats"
	default:
		return "none"
	}
}

// Value is a tagged union over the supported kinds.
// Values are immutable; Floats returns a copy of the sequence.
type Value struct {
	kind   Kind
	f      float64
	i      int
	b      bool
	s      string
	floats []float64
}

// Float returns a float Value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Integer returns an integer Value.
func Integer(i int) Value { return Value{kind: KindInteger, i: i} }

// Boolean returns a boolean Value.
func Boolean(b bool) Value { return Value{kind: KindBoolean, b: b} }

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Floats returns a float sequence Value. The slice is copied.
func Floats(fs ...float64) Value {
	cp := make([]float64, len(fs))
	copy(cp, fs)
	return Value{kind: KindFloats, floats: cp}
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNone reports whether v holds no value.
func (v Value) IsNone() bool { return v.kind == KindNone }

// AsFloat returns the float held by v. Integers are widened.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInteger:
		return float64(v.i), true
	}
	return 0, false
}

// AsInteger returns the integer held by v.
func (v Value) AsInteger() (int, bool) {
	if v.kind != KindInteger {
		return 0, false
	}
	return v.i, true
}

// AsBoolean returns the boolean held by v.
func (v Value) AsBoolean() (bool, bool) {
	if v.kind != KindBoolean {
		return false, false
	}
	return v.b, true
}

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// AsFloats returns a copy of the sequence held by v.
func (v Value) AsFloats() ([]float64, bool) {
	if v.kind != KindFloats {
		return nil, false
	}
	cp := make([]float64, len(v.floats))
	copy(cp, v.floats)
	return cp, true
}

// Len returns the sequence length for KindFloats, 1 for other kinds and 0 for KindNone.
func (v Value) Len() int {
	switch v.kind {
	case KindNone:
		return 0
	case KindFloats:
		return len(v.floats)
	}
	return 1
}

// Equal reports whether v and o hold the same kind and content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindFloat:
		return v.f == o.f
	case KindInteger:
		return v.i == o.i
	case KindBoolean:
		return v.b == o.b
	case KindString:
		return v.s == o.s
	case KindFloats:
		if len(v.floats) != len(o.floats) {
			return false
		}
		for i := range v.floats {
			if v.floats[i] != o.floats[i] {
				return false
			}
		}
	}
	return true
}

// String serializes v in MaterialX value-string form, so that
// Coerce(tag, v.String(), false) yields v again.
func (v Value) String() string {
	switch v.kind {
	case KindFloat:
		return formatFloat(v.f)
	case KindInteger:
		return strconv.Itoa(v.i)
	case KindBoolean:
		return strconv.FormatBool(v.b)
	case KindString:
		return v.s
	case KindFloats:
		parts := make([]string, len(v.floats))
		for i, f := range v.floats {
			parts[i] = formatFloat(f)
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

// Interface returns v as a plain Go value: float64, int, bool, string,
// []float64, or nil for KindNone.
func (v Value) Interface() any {
	switch v.kind {
	case KindFloat:
		return v.f
	case KindInteger:
		return v.i
	case KindBoolean:
		return v.b
	case KindString:
		return v.s
	case KindFloats:
		fs, _ := v.AsFloats()
		return fs
	}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
