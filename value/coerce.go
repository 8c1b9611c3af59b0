package value

import (
	"fmt"
	"strconv"
	"strings"
)

// Type tags understood by Coerce.
const (
	TagFloat    = "float"
	TagInteger  = "integer"
	TagBoolean  = "boolean"
	TagString   = "string"
	TagFilename = "filename"
)

// CoercionError reports a raw string that does not parse as its declared type.
type CoercionError struct {
	Tag string
	Raw string
	Err error
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("cannot coerce %q to %s: %v", e.Raw, e.Tag, e.Err)
}

func (e *CoercionError) Unwrap() error { return e.Err }

// IsColor reports whether tag belongs to the color family (color3, color4, ...).
func IsColor(tag string) bool {
	return strings.HasPrefix(tag, "color")
}

// IsVector reports whether tag is a fixed-size vector (vector2, vector3, vector4).
// Array-typed vectors are excluded.
func IsVector(tag string) bool {
	return strings.HasPrefix(tag, "vector") && !strings.Contains(tag, "array")
}

// Coerce converts raw according to tag.
//
// Color tags (array variants included) and non-array vector tags are split on
// commas into a float sequence; with narrow set only the first component is
// returned, as a float. Tags with no mapping yield the zero Value and a nil
// error: callers treat that as "not provided", not as a failure.
func Coerce(tag, raw string, narrow bool) (Value, error) {
	switch {
	case tag == TagFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return Value{}, &CoercionError{Tag: tag, Raw: raw, Err: err}
		}
		return Float(f), nil

	case IsColor(tag) || IsVector(tag):
		fs, err := parseFloats(raw)
		if err != nil {
			return Value{}, &CoercionError{Tag: tag, Raw: raw, Err: err}
		}
		if narrow {
			return Float(fs[0]), nil
		}
		return Value{kind: KindFloats, floats: fs}, nil

	case tag == TagString, tag == TagFilename:
		return String(raw), nil

	case tag == TagInteger:
		i, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return Value{}, &CoercionError{Tag: tag, Raw: raw, Err: err}
		}
		return Integer(i), nil

	case tag == TagBoolean:
		return Boolean(strings.EqualFold(raw, "true")), nil
	}

	return Value{}, nil
}

func parseFloats(raw string) ([]float64, error) {
	parts := strings.Split(raw, ",")
	fs := make([]float64, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("component %d: %w", i, err)
		}
		fs[i] = f
	}
	return fs, nil
}
