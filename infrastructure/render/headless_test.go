package render

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"familytree/application/ports"
	"familytree/domain/core/valueobjects"
)

func TestHeadlessRenderer_Nodes(t *testing.T) {
	r := NewHeadlessRenderer()
	r.SetNode("p1", ports.NodeData{X: 1, Y: 2, Color: "#fff", Radius: 40})
	r.SetNode("p2", ports.NodeData{})

	nodes := r.Nodes()
	assert.Len(t, nodes, 2)
	nodes["p3"] = ports.NodeData{}
	assert.Len(t, r.Nodes(), 2, "Nodes must return a copy")

	r.Select("p1", "p9")
	assert.Equal(t, map[valueobjects.PersonID]struct{}{"p1": {}}, r.SelectedNodes())

	r.RemoveNode("p1")
	assert.Empty(t, r.SelectedNodes())
	assert.Len(t, r.Nodes(), 1)
}

func TestHeadlessRenderer_Connections(t *testing.T) {
	r := NewHeadlessRenderer()
	r.AddConnection("p2", "p1", valueobjects.ConnectionParent)
	r.AddConnection("p1", "p3", valueobjects.ConnectionSpouse)

	assert.Equal(t, []valueobjects.Connection{
		{From: "p2", To: "p1", Kind: valueobjects.ConnectionParent},
		{From: "p1", To: "p3", Kind: valueobjects.ConnectionSpouse},
	}, r.Connections())

	r.ClearConnections()
	assert.Empty(t, r.Connections())
}

func TestHeadlessRenderer_CameraAndRedraw(t *testing.T) {
	r := NewHeadlessRenderer()
	assert.Equal(t, ports.DefaultCamera(), r.Camera())

	r.SetCamera(10, -5, 0)
	assert.Equal(t, ports.Camera{X: 10, Y: -5, Scale: 1}, r.Camera())

	assert.False(t, r.NeedsRedraw())
	r.RequestRedraw()
	assert.True(t, r.NeedsRedraw())
	assert.False(t, r.NeedsRedraw())
}
