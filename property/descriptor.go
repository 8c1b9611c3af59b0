// Package property turns declared MaterialX ports into editor property
// descriptors: the kind of widget to show, its label, default and bounds.
package property

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/zero-day-ai/mxgraph/mtlx"
	"github.com/zero-day-ai/mxgraph/value"
)

// Kind is the UI property flavor a descriptor maps to.
type Kind int

const (
	KindFloat Kind = iota + 1
	KindFloatVector
	KindInt
	KindBool
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindFloatVector:
		return "float_vector"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	}
	return "unknown"
}

// Subtype refines how a property is displayed.
type Subtype int

const (
	SubtypeNone Subtype = iota
	SubtypeColor
	SubtypeXYZ
	SubtypeFileName
)

func (s Subtype) String() string {
	switch s {
	case SubtypeColor:
		return "color"
	case SubtypeXYZ:
		return "xyz"
	case SubtypeFileName:
		return "file_name"
	}
	return "none"
}

// Descriptor describes one editable property of a node type.
//
// Bounds are always scalar, even for vector kinds: the editor applies the
// same min/max to every component, so only the first component of a vector
// bound is kept. Absent attributes hold the zero value.Value.
type Descriptor struct {
	// Name is the raw port name; instances key their values by it.
	Name        string
	DisplayName string
	Type        string
	Source      mtlx.PortKind

	Kind    Kind
	Subtype Subtype
	// Size is the component count of KindFloatVector descriptors.
	Size int

	Default value.Value
	Min     value.Value
	Max     value.Value
	SoftMin value.Value
	SoftMax value.Value

	Folder string
	Doc    string
}

// HasDefault reports whether the schema declared a usable default.
func (d *Descriptor) HasDefault() bool { return !d.Default.IsNone() }

// ZeroValue returns the value an instance starts with when no default was
// declared: zero, false, "" or a zero vector of Size components.
func (d *Descriptor) ZeroValue() value.Value {
	switch d.Kind {
	case KindFloat:
		return value.Float(0)
	case KindFloatVector:
		return value.Floats(make([]float64, d.Size)...)
	case KindInt:
		return value.Integer(0)
	case KindBool:
		return value.Boolean(false)
	}
	return value.String("")
}

// InitialValue is Default when declared, ZeroValue otherwise.
func (d *Descriptor) InitialValue() value.Value {
	if d.HasDefault() {
		return d.Default
	}
	return d.ZeroValue()
}

// Accepts reports whether v is a legal value for the descriptor.
func (d *Descriptor) Accepts(v value.Value) bool {
	switch d.Kind {
	case KindFloat:
		return v.Kind() == value.KindFloat
	case KindFloatVector:
		return v.Kind() == value.KindFloats && v.Len() == d.Size
	case KindInt:
		return v.Kind() == value.KindInteger
	case KindBool:
		return v.Kind() == value.KindBoolean
	case KindString:
		return v.Kind() == value.KindString
	}
	return false
}

// Prettify derives a display label from a raw name: underscores become
// spaces and every run of letters is title-cased, so a letter following a
// digit or punctuation starts a new word ("base_color" -> "Base Color",
// "noise2d" -> "Noise2D").
func Prettify(name string) string {
	caser := cases.Title(language.Und)
	name = strings.ReplaceAll(name, "_", " ")

	var b strings.Builder
	b.Grow(len(name))
	start := -1
	for i, r := range name {
		if unicode.IsLetter(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			b.WriteString(caser.String(name[start:i]))
			start = -1
		}
		b.WriteRune(r)
	}
	if start >= 0 {
		b.WriteString(caser.String(name[start:]))
	}
	return b.String()
}
