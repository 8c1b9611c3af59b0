package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/mxgraph/mtlx"
	"github.com/zero-day-ai/mxgraph/mxerr"
	"github.com/zero-day-ai/mxgraph/value"
)

func TestTree_NewNode(t *testing.T) {
	tree := NewTree(newTestRegistry(t))

	n, err := tree.NewNode("mx.image")
	require.NoError(t, err)
	assert.Equal(t, "Image", n.Label)
	assert.NotEqual(t, n.ID.String(), "00000000-0000-0000-0000-000000000000")

	got, ok := tree.Node(n.ID)
	require.True(t, ok)
	assert.Same(t, n, got)

	_, err = tree.NewNode("mx.hologram")
	assert.True(t, mxerr.HasCode(err, mxerr.CodeUnknownCategory))
}

func TestInstance_Set(t *testing.T) {
	tree := NewTree(newTestRegistry(t))
	n, err := tree.NewNode("mx.standard_surface")
	require.NoError(t, err)

	tests := []struct {
		name    string
		prop    string
		v       value.Value
		wantErr bool
	}{
		{name: "float", prop: "base", v: value.Float(0.25)},
		{name: "integer widens to float", prop: "base", v: value.Integer(1)},
		{name: "color", prop: "base_color", v: value.Floats(1, 0, 0)},
		{name: "color wrong length", prop: "base_color", v: value.Floats(1, 0), wantErr: true},
		{name: "bool", prop: "thin_walled", v: value.Boolean(true)},
		{name: "bool from string", prop: "thin_walled", v: value.String("true"), wantErr: true},
		{name: "unknown property", prop: "sheen", v: value.Float(1), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := n.Set(tt.prop, tt.v)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.False(t, n.IsDefault(tt.prop))
		})
	}

	v, _ := n.Value("base")
	assert.True(t, value.Float(1).Equal(v))

	n.Reset("base")
	assert.True(t, n.IsDefault("base"))
}

func TestTree_LinkAndRemove(t *testing.T) {
	tree := NewTree(newTestRegistry(t))
	img1, _ := tree.NewNode("mx.image")
	img2, _ := tree.NewNode("mx.image")
	surf, _ := tree.NewNode("mx.standard_surface")

	require.NoError(t, tree.Link(img1, "out", surf, "base_color"))
	require.NoError(t, tree.Link(img2, "out", surf, "base_color"))

	links := tree.Links()
	require.Len(t, links, 1, "an input takes one link")
	assert.Equal(t, img2.ID, links[0].From)

	assert.Error(t, tree.Link(img1, "missing", surf, "base"))
	assert.Error(t, tree.Link(img1, "out", surf, "missing"))
	assert.Error(t, tree.Link(surf, "out", surf, "base"))

	assert.True(t, tree.Remove(img2.ID))
	assert.False(t, tree.Remove(img2.ID))
	assert.Empty(t, tree.Links())
	assert.Equal(t, 2, tree.Len())
}

func TestTree_SocketDisplay(t *testing.T) {
	reg := newTestRegistry(t)
	_, errs := reg.Register(context.Background(), &mtlx.NodeDef{
		Name:       "ND_principled",
		NodeString: "principled",
		Inputs: []mtlx.Port{
			{Kind: mtlx.PortInput, Name: "Base_Color", Type: "color3"},
		},
		Outputs: []mtlx.Port{{Kind: mtlx.PortOutput, Name: "out", Type: "surfaceshader"}},
	})
	require.Empty(t, errs)

	tree := NewTree(reg)
	surf, _ := tree.NewNode("mx.standard_surface")
	img, _ := tree.NewNode("mx.image")
	pr, _ := tree.NewNode("mx.principled")

	i, ok := surf.Type.Input("base_color")
	require.True(t, ok)

	d := tree.SocketDisplay(surf, i)
	assert.Equal(t, DisplayProperty, d.Mode)
	assert.Equal(t, "Base Color", d.Label)
	require.NotNil(t, d.Property)
	assert.Equal(t, "base_color", d.Property.Name)
	assert.True(t, value.Floats(0.8, 0.8, 0.8).Equal(d.Value))

	require.NoError(t, tree.Link(img, "out", surf, "base_color"))
	d = tree.SocketDisplay(surf, i)
	assert.Equal(t, DisplayLabel, d.Mode)
	assert.Nil(t, d.Property)

	tree.Unlink(surf, "base_color")
	assert.Equal(t, DisplayProperty, tree.SocketDisplay(surf, i).Mode)

	// no property is named "base_color" on this type
	d = tree.SocketDisplay(pr, 0)
	assert.Equal(t, DisplayLabel, d.Mode)
	assert.Equal(t, "Base Color", d.Label)
}
