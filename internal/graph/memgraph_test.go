package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/kinemap/roadtrack/internal/geo"
)

func TestMemGraph_NearbyEdges_FindsCloseEdgeOnly(t *testing.T) {
	g := NewMemGraph()
	near := geo.NewInferredEdge("near", []geo.Point{{X: 0, Y: 0}, {X: 10, Y: 0}}, false)
	far := geo.NewInferredEdge("far", []geo.Point{{X: 1000, Y: 1000}, {X: 1010, Y: 1000}}, false)
	g.AddEdge(near)
	g.AddEdge(far)

	mean := mat.NewVecDense(2, []float64{5, 0})
	cov := mat.NewSymDense(2, []float64{1, 0, 0, 1})

	segs := g.NearbyEdges(mean, cov)
	require.Len(t, segs, 1)
	assert.Equal(t, "near", segs[0].Edge.ID)
}

func TestMemGraph_NearbyEdges_EmitsBothDirectionsWhenReversible(t *testing.T) {
	g := NewMemGraph()
	edge := geo.NewInferredEdge("e1", []geo.Point{{X: 0, Y: 0}, {X: 10, Y: 0}}, true)
	g.AddEdge(edge)

	mean := mat.NewVecDense(2, []float64{5, 0})
	cov := mat.NewSymDense(2, []float64{1, 0, 0, 1})

	segs := g.NearbyEdges(mean, cov)
	require.Len(t, segs, 2)
	assert.True(t, segs[0].IsBackward != segs[1].IsBackward)
}

func TestMemGraph_Outgoing_ReturnsRegisteredAdjacency(t *testing.T) {
	g := NewMemGraph()
	a := geo.NewInferredEdge("a", []geo.Point{{X: 0, Y: 0}, {X: 10, Y: 0}}, false)
	b := geo.NewInferredEdge("b", []geo.Point{{X: 10, Y: 0}, {X: 20, Y: 0}}, false)
	g.AddEdge(a, b)
	g.AddEdge(b)

	out := g.Outgoing(a)
	require.Len(t, out, 1)
	assert.Equal(t, "b", out[0].ID)

	assert.Nil(t, g.Outgoing(geo.NullEdge))
}

func TestMemGraph_NearbyEdges_4DMeanUsesPositionComponents(t *testing.T) {
	g := NewMemGraph()
	edge := geo.NewInferredEdge("e1", []geo.Point{{X: 0, Y: 0}, {X: 10, Y: 0}}, false)
	g.AddEdge(edge)

	mean := mat.NewVecDense(4, []float64{5, 1, 0, 0})
	cov := mat.NewSymDense(4, []float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1})

	segs := g.NearbyEdges(mean, cov)
	require.Len(t, segs, 1)
}
