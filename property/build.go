package property

import (
	"fmt"
	"strconv"

	"github.com/zero-day-ai/mxgraph/mtlx"
	"github.com/zero-day-ai/mxgraph/mxerr"
	"github.com/zero-day-ai/mxgraph/value"
)

var bounds = []string{mtlx.AttrUIMin, mtlx.AttrUIMax, mtlx.AttrUISoftMin, mtlx.AttrUISoftMax}

// Build converts a declared port into a property descriptor.
//
// An unsupported type tag returns a nil descriptor together with an
// mxerr.CodeUnsupportedType diagnostic; the caller omits the property and
// carries on with the rest of the definition. A default or bound that does
// not coerce is dropped and reported as an mxerr.CodeCoercion warning, the
// descriptor itself is still returned.
func Build(p mtlx.Port) (*Descriptor, []error) {
	d := &Descriptor{
		Name:        p.Name,
		DisplayName: Prettify(p.Name),
		Type:        p.Type,
		Source:      p.Kind,
		Folder:      p.UIFolder,
		Doc:         p.Doc,
	}

	if err := classify(d); err != nil {
		return nil, []error{err}
	}

	var errs []error
	if raw, ok := p.Attribute(mtlx.AttrValue); ok {
		v, err := value.Coerce(p.Type, raw, false)
		switch {
		case err != nil:
			errs = append(errs, coercionDiag(p, mtlx.AttrValue, err))
		case !v.IsNone() && !d.Accepts(v):
			errs = append(errs, coercionDiag(p, mtlx.AttrValue,
				fmt.Errorf("%d components given, %s needs %d", v.Len(), p.Type, d.Size)))
		default:
			d.Default = v
		}
	}

	for _, attr := range bounds {
		raw, ok := p.Attribute(attr)
		if !ok {
			continue
		}
		v, err := value.Coerce(p.Type, raw, true)
		if err != nil {
			errs = append(errs, coercionDiag(p, attr, err))
			continue
		}
		switch attr {
		case mtlx.AttrUIMin:
			d.Min = v
		case mtlx.AttrUIMax:
			d.Max = v
		case mtlx.AttrUISoftMin:
			d.SoftMin = v
		case mtlx.AttrUISoftMax:
			d.SoftMax = v
		}
	}

	return d, errs
}

// classify selects kind, subtype and size from the type tag.
func classify(d *Descriptor) error {
	tag := d.Type
	switch {
	case tag == value.TagFloat:
		d.Kind = KindFloat

	case value.IsColor(tag):
		size, err := trailingSize(tag)
		if err != nil {
			return unsupported(d, err)
		}
		d.Kind, d.Subtype, d.Size = KindFloatVector, SubtypeColor, size

	case tag == value.TagString:
		d.Kind = KindString

	case tag == value.TagInteger:
		d.Kind = KindInt

	case tag == value.TagFilename:
		d.Kind, d.Subtype = KindString, SubtypeFileName

	case tag == value.TagBoolean:
		d.Kind = KindBool

	case value.IsVector(tag):
		size, err := trailingSize(tag)
		if err != nil {
			return unsupported(d, err)
		}
		d.Kind, d.Subtype, d.Size = KindFloatVector, SubtypeXYZ, size

	default:
		return unsupported(d, nil)
	}
	return nil
}

func trailingSize(tag string) (int, error) {
	n, err := strconv.Atoi(tag[len(tag)-1:])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("no component count in %q", tag)
	}
	return n, nil
}

func unsupported(d *Descriptor, cause error) error {
	return mxerr.Newf("build", mxerr.CodeUnsupportedType, d.Name, "unknown type %q", d.Type).
		WithCause(cause).
		WithDetails(map[string]any{"type": d.Type})
}

func coercionDiag(p mtlx.Port, attr string, err error) error {
	return mxerr.Newf("coerce", mxerr.CodeCoercion, p.Name, "dropped %s", attr).
		WithCause(err).
		WithSeverity(mxerr.SeverityWarning).
		WithDetails(map[string]any{"type": p.Type, "attribute": attr})
}
