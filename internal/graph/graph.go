// Package graph implements the road-graph boundary of spec.md §6: the
// InferenceGraph interface the estimator core queries for nearby edges and
// edge adjacency, one in-memory reference implementation of it purely to
// exercise the interface in tests, and the on/off-edge transition
// distribution of §4.6.
package graph

import (
	"gonum.org/v1/gonum/mat"

	"github.com/kinemap/roadtrack/internal/geo"
)

// InferenceGraphSegment is one candidate oriented edge placement returned by
// a nearby-edge query, ready to seed a single-edge candidate Path (the
// caller supplies DistToStartOfEdge == 0 as the candidate's own origin).
type InferenceGraphSegment struct {
	Edge       *geo.InferredEdge
	IsBackward bool
}

// AsPath wraps the segment as a fresh single-edge candidate Path.
func (s InferenceGraphSegment) AsPath() geo.Path {
	return geo.Path{
		IsBackward: s.IsBackward,
		Edges:      []geo.PathEdge{{Edge: s.Edge, IsBackward: s.IsBackward, DistToStartOfEdge: 0}},
	}
}

// IsNull reports whether s wraps the null (off-road) edge.
func (s InferenceGraphSegment) IsNull() bool {
	return s.Edge.IsNull()
}

// nullSegment is the off-road sentinel TransitionDistribution.Sample
// returns; Edge identity matches geo.NullEdge exactly.
var nullSegment = InferenceGraphSegment{Edge: geo.NullEdge}

// InferenceGraph is the read-only road-graph boundary the estimator core
// depends on (spec.md §6): nearby-edge queries for candidate initialization,
// and outgoing-edge adjacency for the edge walk (§4.5.2). Implementations
// must be safe for concurrent NearbyEdges/Outgoing calls (spec.md §5).
type InferenceGraph interface {
	// NearbyEdges returns the oriented edges within a covariance-scaled
	// radius of mean (a 2D ground point or a 2/4-dimensional Gaussian mean
	// whose position components are read per spec.md §6).
	NearbyEdges(mean *mat.VecDense, cov *mat.SymDense) []InferenceGraphSegment
	// Outgoing returns edge's outgoing adjacency. Calling it with the null
	// edge returns nil: off-road candidates are seeded via NearbyEdges, not
	// adjacency.
	Outgoing(edge *geo.InferredEdge) []*geo.InferredEdge
}
