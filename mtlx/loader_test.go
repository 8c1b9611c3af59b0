package mtlx

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zero-day-ai/mxgraph/mxerr"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParse_NodeDefs(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "pbr_defs.mtlx"))
	require.NoError(t, err)

	doc, diags := Parse("pbr_defs.mtlx", data)
	assert.Equal(t, "1.37", doc.Version)
	require.Len(t, doc.NodeDefs, 3)

	ss := doc.NodeDefs[0]
	assert.Equal(t, "ND_standard_surface_surfaceshader", ss.Name)
	assert.Equal(t, "standard_surface", ss.NodeString)
	assert.Equal(t, "pbr", ss.NodeGroup)
	assert.Equal(t, "pbr_defs.mtlx", ss.Source)
	require.Len(t, ss.Inputs, 5)
	assert.Equal(t, "base_color", ss.Inputs[1].Name)
	assert.Equal(t, "color3", ss.Inputs[1].Type)
	require.NotNil(t, ss.Inputs[1].Value)
	assert.Equal(t, "0.8, 0.8, 0.8", *ss.Inputs[1].Value)
	assert.Nil(t, ss.Inputs[3].UIMin)

	soft, ok := ss.Inputs[2].Attribute(AttrUISoftMax)
	assert.True(t, ok)
	assert.Equal(t, "1.0", soft)

	// implicit single output
	require.Len(t, ss.Outputs, 1)
	assert.Equal(t, "out", ss.Outputs[0].Name)
	assert.Equal(t, "surfaceshader", ss.Outputs[0].Type)

	img := doc.NodeDefs[1]
	require.Len(t, img.Parameters, 5)
	require.Len(t, img.Inputs, 2)
	assert.Equal(t, []string{"file", "layer", "filtertype", "framerange", "frameoffset"},
		portNames(img.Parameters), "parameter order must follow declaration order")
	assert.Equal(t, "Image", img.Parameters[0].UIFolder)
	require.NotNil(t, img.Parameters[0].Value)
	assert.Equal(t, "", *img.Parameters[0].Value)

	assert.Equal(t, "add", doc.NodeDefs[2].NodeString)

	require.Len(t, diags, 2)
	for _, d := range diags {
		assert.True(t, errors.Is(d, mxerr.ErrSchemaParse))
	}
	assert.Contains(t, diags[0].Error(), "ND_broken")
	assert.Contains(t, diags[1].Error(), `duplicate port name "in"`)
}

func TestParse_Nodes(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "wood.mtlx"))
	require.NoError(t, err)

	doc, diags := Parse("wood.mtlx", data)
	assert.Empty(t, diags)
	assert.Empty(t, doc.NodeDefs)
	require.Len(t, doc.Nodes, 4)

	tex := doc.Nodes[0]
	assert.Equal(t, "image", tex.Category)
	assert.Equal(t, "wood_tex", tex.Name)
	assert.Equal(t, "NG_wood", tex.Graph)
	require.Len(t, tex.Inputs, 1)
	require.NotNil(t, tex.Inputs[0].Value)
	assert.Equal(t, "wood.png", *tex.Inputs[0].Value)

	ss := doc.Nodes[1]
	assert.Equal(t, "standard_surface", ss.Category)
	assert.Equal(t, "", ss.Graph)
	require.Len(t, ss.Inputs, 2)
	assert.False(t, ss.Inputs[0].Connected())
	assert.True(t, ss.Inputs[1].Connected())
	assert.Equal(t, "wood_tex", ss.Inputs[1].NodeName)

	assert.Equal(t, "hologram", doc.Nodes[2].Category)
	assert.Equal(t, "surfacematerial", doc.Nodes[3].Category)
}

func TestParse_Malformed(t *testing.T) {
	t.Run("syntax error keeps earlier records", func(t *testing.T) {
		src := `<materialx>
  <nodedef name="ND_a" node="a" type="float"/>
  <nodedef name="ND_b" node="b" type="float">
    <input name="x" type="float"
</materialx>`
		doc, diags := Parse("broken.mtlx", []byte(src))
		require.Len(t, doc.NodeDefs, 1)
		assert.Equal(t, "a", doc.NodeDefs[0].NodeString)
		require.Len(t, diags, 1)
		assert.True(t, mxerr.HasCode(diags[0], mxerr.CodeSchemaParse))
	})

	t.Run("wrong root", func(t *testing.T) {
		doc, diags := Parse("x.xml", []byte(`<svg><rect/></svg>`))
		assert.Empty(t, doc.NodeDefs)
		require.Len(t, diags, 1)
		assert.Contains(t, diags[0].Error(), "expected <materialx>")
	})

	t.Run("port without type", func(t *testing.T) {
		doc, diags := Parse("x.mtlx", []byte(`<materialx><nodedef name="ND_x" node="x"><input name="a"/></nodedef></materialx>`))
		assert.Empty(t, doc.NodeDefs)
		require.Len(t, diags, 1)
		assert.Contains(t, diags[0].Error(), `input "a" has no type attribute`)
	})

	t.Run("node without name", func(t *testing.T) {
		doc, diags := Parse("x.mtlx", []byte(`<materialx><image type="color3"/></materialx>`))
		assert.Empty(t, doc.Nodes)
		require.Len(t, diags, 1)
	})
}

func TestLoader_Load(t *testing.T) {
	good := BytesSource("extra.mtlx", []byte(`<materialx>
  <nodedef name="ND_add_color3" node="add" type="color3" nodegroup="math">
    <input name="in1" type="color3" value="0,0,0"/>
  </nodedef>
</materialx>`))
	missing := FileSource(filepath.Join("testdata", "does-not-exist.mtlx"))

	lib := NewLoader(quietLogger()).Load(context.Background(),
		FileSource(filepath.Join("testdata", "pbr_defs.mtlx")),
		missing,
		good,
	)

	require.Len(t, lib.Defs, 4)
	assert.Equal(t, "ND_add_float", lib.Defs[2].Name)
	assert.Equal(t, "ND_add_color3", lib.Defs[3].Name, "duplicate node strings are kept in load order")

	// two bad records in pbr_defs plus the missing file
	require.Len(t, lib.Diagnostics, 3)
	assert.Contains(t, lib.Diagnostics[2].Error(), "does-not-exist.mtlx")
}

func TestExpandPaths(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "stdlib")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	for _, name := range []string{"b.mtlx", "a.mtlx", "readme.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(sub, name), []byte("<materialx/>"), 0o644))
	}
	single := filepath.Join(dir, "single.mtlx")
	require.NoError(t, os.WriteFile(single, []byte("<materialx/>"), 0o644))

	sources, err := ExpandPaths(sub, single)
	require.NoError(t, err)
	require.Len(t, sources, 3)
	assert.Equal(t, filepath.Join(sub, "a.mtlx"), sources[0].Name())
	assert.Equal(t, filepath.Join(sub, "b.mtlx"), sources[1].Name())
	assert.Equal(t, single, sources[2].Name())

	sources, err = ExpandPaths(filepath.Join(sub, "*.mtlx"))
	require.NoError(t, err)
	assert.Len(t, sources, 2)

	_, err = ExpandPaths(filepath.Join(dir, "*.nothing"))
	assert.Error(t, err)

	_, err = ExpandPaths(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestReadFile(t *testing.T) {
	doc, diags, err := ReadFile(filepath.Join("testdata", "wood.mtlx"))
	require.NoError(t, err)
	assert.Empty(t, diags)
	assert.Len(t, doc.Nodes, 4)

	_, _, err = ReadFile(filepath.Join("testdata", "nope.mtlx"))
	assert.Error(t, err)
}

func portNames(ports []Port) []string {
	out := make([]string, len(ports))
	for i, p := range ports {
		out[i] = p.Name
	}
	return out
}
