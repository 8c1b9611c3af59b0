package value

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerce_Scalars(t *testing.T) {
	tests := []struct {
		name string
		tag  string
		raw  string
		want Value
	}{
		{"float", "float", "0.8", Float(0.8)},
		{"float with spaces", "float", " 1.5 ", Float(1.5)},
		{"integer", "integer", "4", Integer(4)},
		{"negative integer", "integer", "-12", Integer(-12)},
		{"string verbatim", "string", ` "a, b" `, String(` "a, b" `)},
		{"filename verbatim", "filename", "textures/wood.png", String("textures/wood.png")},
		{"color3", "color3", "1,0.5,0", Floats(1, 0.5, 0)},
		{"color4 spaced", "color4", "0.1, 0.2, 0.3, 1", Floats(0.1, 0.2, 0.3, 1)},
		{"vector2", "vector2", "0, 1", Floats(0, 1)},
		{"vector3", "vector3", "0,0,1", Floats(0, 0, 1)},
		{"color array keeps sequence", "color3array", "1,0,0,0,1,0", Floats(1, 0, 0, 0, 1, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.tag, tt.raw, false)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v want %v", got, tt.want)
		})
	}
}

func TestCoerce_Boolean(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"true", true},
		{"", false},
		{"false", false},
		{"True", true},
		{"TRUE", true},
		{"1", false},
		{" true", false},
	}

	for _, tt := range tests {
		t.Run(strconv.Quote(tt.raw), func(t *testing.T) {
			for _, narrow := range []bool{false, true} {
				got, err := Coerce("boolean", tt.raw, narrow)
				require.NoError(t, err)
				b, ok := got.AsBoolean()
				require.True(t, ok)
				assert.Equal(t, tt.want, b)
			}
		})
	}
}

func TestCoerce_Narrow(t *testing.T) {
	got, err := Coerce("color3", "1,0.5,0", true)
	require.NoError(t, err)
	assert.Equal(t, KindFloat, got.Kind())
	f, _ := got.AsFloat()
	assert.Equal(t, 1.0, f)

	got, err = Coerce("vector3", "-2, 5, 7", true)
	require.NoError(t, err)
	f, _ = got.AsFloat()
	assert.Equal(t, -2.0, f)

	// narrowing leaves scalars untouched
	got, err = Coerce("integer", "3", true)
	require.NoError(t, err)
	assert.True(t, Integer(3).Equal(got))
}

func TestCoerce_Unsupported(t *testing.T) {
	tags := []string{"vectorarray3", "vector3array", "floatarray", "integerarray", "matrix44", "surfaceshader", ""}

	for _, tag := range tags {
		t.Run(tag, func(t *testing.T) {
			for _, raw := range []string{"", "1", "1,2,3", "garbage"} {
				got, err := Coerce(tag, raw, false)
				require.NoError(t, err)
				assert.True(t, got.IsNone())

				got, err = Coerce(tag, raw, true)
				require.NoError(t, err)
				assert.True(t, got.IsNone())
			}
		})
	}
}

func TestCoerce_Errors(t *testing.T) {
	tests := []struct {
		tag string
		raw string
	}{
		{"float", "abc"},
		{"float", ""},
		{"integer", "1.5"},
		{"integer", "ten"},
		{"color3", ""},
		{"color3", "1,,0"},
		{"vector2", "x, y"},
	}

	for _, tt := range tests {
		t.Run(tt.tag+"/"+tt.raw, func(t *testing.T) {
			got, err := Coerce(tt.tag, tt.raw, false)
			require.Error(t, err)
			assert.True(t, got.IsNone())

			var ce *CoercionError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.tag, ce.Tag)
			assert.Equal(t, tt.raw, ce.Raw)
		})
	}
}

func TestCoerce_RoundTrip(t *testing.T) {
	tests := []struct {
		tag string
		raw string
	}{
		{"float", "0.333"},
		{"float", "1e-07"},
		{"integer", "42"},
		{"boolean", "TRUE"},
		{"boolean", "no"},
		{"string", "hello world"},
		{"filename", "a/b.png"},
		{"color3", "0.8,0.8,0.8"},
		{"vector4", "1, 2, 3, 4"},
	}

	for _, tt := range tests {
		t.Run(tt.tag+"/"+tt.raw, func(t *testing.T) {
			first, err := Coerce(tt.tag, tt.raw, false)
			require.NoError(t, err)

			second, err := Coerce(tt.tag, first.String(), false)
			require.NoError(t, err)
			assert.True(t, first.Equal(second), "%v != %v", first, second)
		})
	}
}

func TestValue_Accessors(t *testing.T) {
	v := Floats(1, 2, 3)
	fs, ok := v.AsFloats()
	require.True(t, ok)
	fs[0] = 99

	again, _ := v.AsFloats()
	assert.Equal(t, []float64{1, 2, 3}, again, "AsFloats must return a copy")
	assert.Equal(t, 3, v.Len())
	assert.Equal(t, "1, 2, 3", v.String())

	f, ok := Integer(2).AsFloat()
	assert.True(t, ok)
	assert.Equal(t, 2.0, f)

	_, ok = String("x").AsFloat()
	assert.False(t, ok)

	assert.Nil(t, Value{}.Interface())
	assert.Equal(t, 0, Value{}.Len())
	assert.Equal(t, "none", Value{}.Kind().String())
	assert.False(t, Float(1).Equal(Integer(1)))
}
