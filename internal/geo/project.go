package geo

import (
	"errors"
	"math"
)

// ErrUnrepresentable is returned when a ground state's orthogonal foot on a
// path's geometry falls beyond the path's endpoint by more than
// EdgeLengthErrorTolerance, per spec.md §4.1/§7.
var ErrUnrepresentable = errors.New("geo: ground state is not representable on path within tolerance")

// GroundState is a 4D ground-coordinate kinematic state (x, xdot, y, ydot).
type GroundState struct {
	X, DX, Y, DY float64
}

// RoadState is a 2D road-coordinate kinematic state (s, sdot).
type RoadState struct {
	S, DS float64
}

// segment is one leg of a polyline together with its cumulative arc length
// at the start of the leg and its unit tangent.
type segment struct {
	p0, p1  Point
	tangent Point
	len     float64
	cumDist float64
}

func buildSegments(geometry []Point) []segment {
	segs := make([]segment, 0, len(geometry)-1)
	cum := 0.0
	for i := 0; i < len(geometry)-1; i++ {
		p0, p1 := geometry[i], geometry[i+1]
		d := p1.Sub(p0)
		l := d.Norm()
		var t Point
		if l > 0 {
			t = d.Scale(1 / l)
		}
		segs = append(segs, segment{p0: p0, p1: p1, tangent: t, len: l, cumDist: cum})
		cum += l
	}
	return segs
}

// snapToPolyline orthogonally projects point p onto the length-indexed
// polyline geometry, returning the arc length s* from the polyline start and
// the segment containing the foot of the projection. When p's foot falls
// beyond every segment, the nearest endpoint segment is returned and s* is
// the corresponding polyline endpoint distance (callers clamp afterward).
func snapToPolyline(geometry []Point, p Point) (sStar float64, seg segment) {
	segs := buildSegments(geometry)
	best := math.Inf(1)
	bestS := 0.0
	bestSeg := segs[0]
	for _, sg := range segs {
		if sg.len == 0 {
			continue
		}
		rel := p.Sub(sg.p0)
		frac := rel.Dot(sg.tangent)
		frac = math.Max(0, math.Min(sg.len, frac))
		foot := sg.p0.Add(sg.tangent.Scale(frac))
		d := foot.Sub(p).Norm()
		if d < best {
			best = d
			bestS = sg.cumDist + frac
			bestSeg = sg
		}
	}
	return bestS, bestSeg
}

// segmentContainingDistance returns the segment whose [cumDist, cumDist+len]
// range contains unsigned arc length d (clamped into range by the caller).
func segmentContainingDistance(geometry []Point, d float64) segment {
	segs := buildSegments(geometry)
	for _, sg := range segs {
		if d >= sg.cumDist-1e-9 && d <= sg.cumDist+sg.len+1e-9 {
			return sg
		}
	}
	if d <= 0 {
		return segs[0]
	}
	return segs[len(segs)-1]
}

// ProjectToRoad implements spec.md §4.1's ground→road projection of a 4D
// ground state onto a specific edge's geometry, given the edge's direction
// on the path (isBackward) and whether to preserve velocity magnitude
// (useAbsVelocity) instead of the signed tangential component.
func ProjectToRoad(g GroundState, edge *InferredEdge, isBackward, useAbsVelocity bool) (RoadState, error) {
	pos := Point{X: g.X, Y: g.Y}
	sStar, seg := snapToPolyline(edge.Geometry, pos)

	sStarClamped := math.Max(0, math.Min(edge.Length, sStar))
	if math.Abs(sStarClamped-sStar) > EdgeLengthErrorTolerance {
		return RoadState{}, ErrUnrepresentable
	}
	sStar = sStarClamped

	vel := Point{X: g.DX, Y: g.DY}
	sdot := seg.tangent.Dot(vel)
	if useAbsVelocity {
		sdot = sign(sdot) * vel.Norm()
	}

	s := sStar
	if isBackward {
		s = -s
		sdot = -sdot
	}
	return RoadState{S: s, DS: sdot}, nil
}

// ProjectToGround implements spec.md §4.1's road→ground projection, the
// inverse of ProjectToRoad, on the segment selected by |s|.
func ProjectToGround(r RoadState, edge *InferredEdge, isBackward, useAbsVelocity bool) GroundState {
	s := r.S
	if isBackward {
		s = -s
	}
	s = math.Max(0, math.Min(edge.Length, s))
	seg := segmentContainingDistance(edge.Geometry, s)

	pos := seg.p0.Add(seg.tangent.Scale(s - seg.cumDist))

	sdot := r.DS
	if isBackward {
		sdot = -sdot
	}
	var vel Point
	if useAbsVelocity {
		vel = seg.tangent.Scale(math.Abs(sdot))
	} else {
		vel = seg.tangent.Scale(sdot)
	}

	return GroundState{X: pos.X, DX: vel.X, Y: pos.Y, DY: vel.Y}
}

// GroundToRoadJacobian returns the 2x4 affine Jacobian P of the linear part
// of ProjectToRoad (the snap-then-tangent-dot map of spec.md §4.1 step 2,
// before the optional useAbsVelocity nonlinear correction), for projecting
// a ground covariance onto the road as P*Sigma*P^T. edge and isBackward fix
// the segment/tangent and sign convention the way the mean was projected.
func GroundToRoadJacobian(edge *InferredEdge, pos Point, isBackward bool) [2][4]float64 {
	_, seg := snapToPolyline(edge.Geometry, pos)
	tx, ty := seg.tangent.X, seg.tangent.Y
	dirSign := 1.0
	if isBackward {
		dirSign = -1.0
	}
	// Row 0: ds/d(x,xdot,y,ydot) = dirSign*(tx, 0, ty, 0)
	// Row 1: dsdot/d(x,xdot,y,ydot) = dirSign*(0, tx, 0, ty)
	return [2][4]float64{
		{dirSign * tx, 0, dirSign * ty, 0},
		{0, dirSign * tx, 0, dirSign * ty},
	}
}

// RoadToGroundJacobian returns the 4x2 affine Jacobian of the linear part of
// ProjectToGround, for projecting a road covariance onto the ground as
// P*Sigma*P^T.
func RoadToGroundJacobian(edge *InferredEdge, s float64, isBackward bool) [4][2]float64 {
	local := s
	if isBackward {
		local = -s
	}
	local = math.Max(0, math.Min(edge.Length, local))
	seg := segmentContainingDistance(edge.Geometry, local)
	tx, ty := seg.tangent.X, seg.tangent.Y
	dirSign := 1.0
	if isBackward {
		dirSign = -1.0
	}
	// Row order: x, xdot, y, ydot ; columns: s, sdot
	return [4][2]float64{
		{dirSign * tx, 0},
		{0, dirSign * tx},
		{dirSign * ty, 0},
		{0, dirSign * ty},
	}
}

// ProjectGroundToPath projects a 4D ground state onto whichever of the
// path's edges lies geometrically closest to it, returning the full
// path-relative signed road state, the PathEdge it was projected onto, and
// ErrUnrepresentable if even the closest edge's orthogonal foot falls
// outside tolerance.
func ProjectGroundToPath(p Path, g GroundState, useAbsVelocity bool) (RoadState, PathEdge, error) {
	if p.IsNull() {
		panic("geo: ProjectGroundToPath called on null path")
	}
	pos := Point{X: g.X, Y: g.Y}

	bestDist := math.Inf(1)
	bestIdx := -1
	for i, pe := range p.Edges {
		sStar, seg := snapToPolyline(pe.Edge.Geometry, pos)
		sClamped := math.Max(0, math.Min(pe.Edge.Length, sStar))
		foot := seg.p0.Add(seg.tangent.Scale(sClamped - seg.cumDist))
		d := foot.Sub(pos).Norm()
		if d < bestDist {
			bestDist = d
			bestIdx = i
		}
	}
	pe := p.Edges[bestIdx]

	local, err := ProjectToRoad(g, pe.Edge, pe.IsBackward, useAbsVelocity)
	if err != nil {
		return RoadState{}, pe, err
	}
	return RoadState{S: pe.DistToStartOfEdge + local.S, DS: local.DS}, pe, nil
}

// ProjectPathToGround is the inverse of ProjectGroundToPath: given a full
// path-relative signed road state and the PathEdge it lies on (as returned
// by EdgeForDistance), reconstructs the 4D ground state.
func ProjectPathToGround(pe PathEdge, r RoadState, useAbsVelocity bool) GroundState {
	local := RoadState{S: r.S - pe.DistToStartOfEdge, DS: r.DS}
	return ProjectToGround(local, pe.Edge, pe.IsBackward, useAbsVelocity)
}

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	if x > 0 {
		return 1
	}
	return 0
}
