// Package geo implements the road-network geometry the estimator core
// depends on: polyline edges, multi-edge paths, and the projections between
// 2D ground coordinates and 1D curvilinear road coordinates.
package geo

import (
	"math"
	"strconv"
)

// Point is a 2D planar coordinate, in the same projection as the road graph.
type Point struct {
	X, Y float64
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Add returns p + q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Scale returns p scaled by s.
func (p Point) Scale(s float64) Point {
	return Point{X: p.X * s, Y: p.Y * s}
}

// Dot returns the dot product of p and q, treated as vectors from the origin.
func (p Point) Dot(q Point) float64 {
	return p.X*q.X + p.Y*q.Y
}

// Norm returns the Euclidean length of p, treated as a vector from the origin.
func (p Point) Norm() float64 {
	return math.Hypot(p.X, p.Y)
}

// EdgeLengthErrorTolerance is the fixed tolerance (in the same units as the
// road graph's planar projection, typically meters) within which a position
// marginally beyond a path endpoint is snapped to that endpoint rather than
// rejected as unrepresentable. Owned here, per spec.md §4.1, rather than by
// the motion estimator, since every package that snaps onto a path
// (internal/kalman, internal/estimator) needs the same constant.
const EdgeLengthErrorTolerance = 1e-3

// InferredEdge is an immutable directed polyline on the road graph.
type InferredEdge struct {
	ID         string
	Geometry   []Point
	Length     float64
	Start, End Point
	HasReverse bool
}

// NullEdge is the distinguished singleton representing "off-road". It has
// stable identity: every off-road PathEdge and Path refers to this exact
// value, never a copy.
var NullEdge = &InferredEdge{ID: ""}

// IsNull reports whether e is the null (off-road) edge.
func (e *InferredEdge) IsNull() bool {
	return e == nil || e == NullEdge
}

// NewInferredEdge builds an edge from an ordered polyline, deriving Length,
// Start and End from the geometry. It panics if geometry has fewer than two
// points — a malformed edge is a contract violation in the data source, not
// a runtime condition the core can recover from.
func NewInferredEdge(id string, geometry []Point, hasReverse bool) *InferredEdge {
	if len(geometry) < 2 {
		panic("geo: InferredEdge geometry must have at least two points")
	}
	length := 0.0
	for i := 1; i < len(geometry); i++ {
		length += geometry[i].Sub(geometry[i-1]).Norm()
	}
	return &InferredEdge{
		ID:         id,
		Geometry:   geometry,
		Length:     length,
		Start:      geometry[0],
		End:        geometry[len(geometry)-1],
		HasReverse: hasReverse,
	}
}

// PathEdge is an oriented placement of one InferredEdge on a Path.
type PathEdge struct {
	Edge              *InferredEdge
	DistToStartOfEdge float64
	IsBackward        bool
}

// EndDistance returns the signed distance, along the path, of this edge's far
// end (DistToStartOfEdge + length on the path's sign convention).
func (pe PathEdge) EndDistance() float64 {
	if pe.IsBackward {
		return pe.DistToStartOfEdge - pe.Edge.Length
	}
	return pe.DistToStartOfEdge + pe.Edge.Length
}

// ContainsSigned reports whether signed path-distance s falls within this
// edge's signed range [DistToStartOfEdge, EndDistance()] (order-independent
// of sign), matching spec.md §4.1's edge-lookup containment rule.
func (pe PathEdge) ContainsSigned(s float64) bool {
	lo, hi := pe.DistToStartOfEdge, pe.EndDistance()
	if lo > hi {
		lo, hi = hi, lo
	}
	return s >= lo && s <= hi
}

// geometryLocalTangent returns the unit tangent vector and length of the
// i'th segment of the edge geometry (from Geometry[i] to Geometry[i+1]).
func geometryLocalTangent(edge *InferredEdge, i int) (tangent Point, segLen float64) {
	p0, p1 := edge.Geometry[i], edge.Geometry[i+1]
	d := p1.Sub(p0)
	segLen = d.Norm()
	if segLen == 0 {
		return Point{}, 0
	}
	return d.Scale(1 / segLen), segLen
}

// Segment splits a PathEdge into sub-edges whose concatenated geometry
// equals the original and whose lengths sum to the original length, none
// exceeding targetDistance, per spec.md §4.7. Each sub-edge's
// DistToStartOfEdge is preserved relative to the path. Segmenting an edge
// shorter than targetDistance returns a single-element slice containing an
// equivalent copy of pe.
func (pe PathEdge) Segment(targetDistance float64) []PathEdge {
	if targetDistance <= 0 {
		panic("geo: Segment target distance must be positive")
	}
	edge := pe.Edge
	if edge.IsNull() || edge.Length <= targetDistance {
		return []PathEdge{pe}
	}

	n := int(math.Ceil(edge.Length / targetDistance))
	cut := edge.Length / float64(n)

	geomIdx := 0
	travelled := 0.0
	var out []PathEdge
	for k := 0; k < n; k++ {
		segStart := travelled
		segEnd := math.Min(edge.Length, travelled+cut)
		if k == n-1 {
			segEnd = edge.Length
		}
		var geometry []Point
		segAccum := 0.0
		// Walk the original geometry, collecting points between segStart and segEnd.
		startPt := pointAtArcLength(edge, segStart, &geomIdx, &segAccum)
		geometry = append(geometry, startPt)
		walkIdx := geomIdx
		walkAccum := segAccum
		for walkIdx < len(edge.Geometry)-1 {
			_, segLen := geometryLocalTangent(edge, walkIdx)
			nextAccum := walkAccum + segLen
			if nextAccum >= segEnd-1e-12 {
				break
			}
			geometry = append(geometry, edge.Geometry[walkIdx+1])
			walkAccum = nextAccum
			walkIdx++
		}
		endPt := pointAtArcLength(edge, segEnd, &walkIdx, &walkAccum)
		geometry = append(geometry, endPt)

		subID := edge.ID
		if n > 1 {
			subID = edge.ID + "#" + strconv.Itoa(k)
		}
		sub := NewInferredEdge(subID, geometry, edge.HasReverse)

		var dist float64
		if pe.IsBackward {
			dist = pe.DistToStartOfEdge - segStart
		} else {
			dist = pe.DistToStartOfEdge + segStart
		}
		out = append(out, PathEdge{Edge: sub, DistToStartOfEdge: dist, IsBackward: pe.IsBackward})
		travelled = segEnd
	}
	return out
}

// pointAtArcLength returns the geometry point at cumulative arc length s
// along edge, updating *idx to the segment index containing it and *accum
// to that segment's starting cumulative length (both are advance-only
// hints used by Segment to avoid re-walking the geometry from scratch).
func pointAtArcLength(edge *InferredEdge, s float64, idx *int, accum *float64) Point {
	i := *idx
	cum := *accum
	for i < len(edge.Geometry)-1 {
		_, segLen := geometryLocalTangent(edge, i)
		if cum+segLen >= s-1e-12 || i == len(edge.Geometry)-2 {
			if segLen == 0 {
				*idx, *accum = i, cum
				return edge.Geometry[i]
			}
			t, _ := geometryLocalTangent(edge, i)
			frac := (s - cum)
			if frac < 0 {
				frac = 0
			}
			if frac > segLen {
				frac = segLen
			}
			*idx, *accum = i, cum
			return edge.Geometry[i].Add(t.Scale(frac))
		}
		cum += segLen
		i++
	}
	*idx, *accum = i, cum
	return edge.Geometry[len(edge.Geometry)-1]
}
