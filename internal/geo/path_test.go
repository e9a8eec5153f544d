package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoEdgeForwardPath() Path {
	e1 := straightEdge("e1", 1)
	e2 := NewInferredEdge("e2", []Point{{X: 1, Y: 0}, {X: 2, Y: 0}}, false)
	return Path{
		Edges: []PathEdge{
			{Edge: e1, DistToStartOfEdge: 0, IsBackward: false},
			{Edge: e2, DistToStartOfEdge: 1, IsBackward: false},
		},
		IsBackward: false,
	}
}

func TestPath_TotalDistance(t *testing.T) {
	p := twoEdgeForwardPath()
	assert.InDelta(t, 2.0, p.TotalDistance(), 1e-9)
	assert.InDelta(t, 0.0, NullPath().TotalDistance(), 1e-9)
}

func TestClampToPath_Idempotent(t *testing.T) {
	p := twoEdgeForwardPath()
	for _, s := range []float64{-5, -0.001, 0, 0.5, 1, 1.5, 2, 2.5, 10} {
		once := p.ClampToPath(s)
		twice := p.ClampToPath(once)
		assert.InDelta(t, once, twice, 1e-12, "s=%v", s)
	}
}

func TestEdgeForDistance_BoundaryGoesToLaterEdge(t *testing.T) {
	p := twoEdgeForwardPath()
	pe := p.EdgeForDistance(1.0)
	assert.Equal(t, "e2", pe.Edge.ID, "boundary distance should belong to the later edge")

	for s := 0.0; s <= 2.0; s += 0.1 {
		pe := p.EdgeForDistance(s)
		assert.True(t, pe.ContainsSigned(s), "s=%v should be contained in returned edge", s)
	}
}

func TestEdgeForDistance_OffRoadReturnsNullEdge(t *testing.T) {
	pe := NullPath().EdgeForDistance(0)
	assert.True(t, pe.Edge.IsNull())
}

func TestAdjustOppositeDirection_WithinTolerance(t *testing.T) {
	p := twoEdgeForwardPath()
	adjusted, ok := p.AdjustOppositeDirection(2.0 + EdgeLengthErrorTolerance/2)
	require.True(t, ok)
	assert.InDelta(t, 2.0, adjusted, 1e-12)

	_, ok = p.AdjustOppositeDirection(2.0 + EdgeLengthErrorTolerance*10)
	assert.False(t, ok)
}

func TestMergePaths_SharedEndpointJoinsForward(t *testing.T) {
	a := Path{Edges: []PathEdge{{Edge: straightEdge("a", 1), DistToStartOfEdge: 0}}}
	bEdge := NewInferredEdge("b", []Point{{X: 1, Y: 0}, {X: 2, Y: 0}}, false)
	b := Path{Edges: []PathEdge{{Edge: bEdge, DistToStartOfEdge: 0}}}

	merged, reversed, err := MergePaths(a, b)
	require.NoError(t, err)
	assert.False(t, reversed)
	assert.InDelta(t, 2.0, merged.TotalDistance(), 1e-9)
}

func TestMergePaths_NoSharedEndpoint(t *testing.T) {
	a := Path{Edges: []PathEdge{{Edge: straightEdge("a", 1), DistToStartOfEdge: 0}}}
	bEdge := NewInferredEdge("b", []Point{{X: 5, Y: 5}, {X: 6, Y: 5}}, false)
	b := Path{Edges: []PathEdge{{Edge: bEdge, DistToStartOfEdge: 0}}}

	_, _, err := MergePaths(a, b)
	assert.ErrorIs(t, err, ErrNoMerge)
}
