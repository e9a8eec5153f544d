package geo

import "math"

// Path is an ordered sequence of PathEdges sharing one IsBackward flag.
// A Path with no edges is the null path (off-road).
type Path struct {
	Edges      []PathEdge
	IsBackward bool
}

// NullPath returns the off-road sentinel path.
func NullPath() Path {
	return Path{}
}

// IsNull reports whether p is the off-road sentinel.
func (p Path) IsNull() bool {
	return len(p.Edges) == 0
}

// IsOnRoad is the converse of IsNull, spelled out for readability at call
// sites that branch on road/off-road status.
func (p Path) IsOnRoad() bool {
	return !p.IsNull()
}

// TotalDistance returns the total signed path distance: +length sum when
// forward, -length sum when backward. Zero for the null path.
func (p Path) TotalDistance() float64 {
	if p.IsNull() {
		return 0
	}
	last := p.Edges[len(p.Edges)-1]
	return last.EndDistance()
}

// Bounds returns the [min, max] signed-distance interval spanned by the
// path, ordered so min <= max regardless of direction.
func (p Path) Bounds() (min, max float64) {
	total := p.TotalDistance()
	if total >= 0 {
		return 0, total
	}
	return total, 0
}

// ClampToPath clips s to the path's signed-distance interval. Idempotent:
// ClampToPath(ClampToPath(s)) == ClampToPath(s) for all s, per spec.md §8.
func (p Path) ClampToPath(s float64) float64 {
	lo, hi := p.Bounds()
	if s < lo {
		return lo
	}
	if s > hi {
		return hi
	}
	return s
}

// EdgeForDistance returns the last PathEdge whose signed range contains s
// (|DistToStartOfEdge| <= |s| <= DistToStartOfEdge+length), ties broken to
// the later edge, per spec.md §4.1. Returns the null edge if p is off-road.
func (p Path) EdgeForDistance(s float64) PathEdge {
	if p.IsNull() {
		return PathEdge{Edge: NullEdge}
	}
	s = p.ClampToPath(s)
	for i := len(p.Edges) - 1; i >= 0; i-- {
		if p.Edges[i].ContainsSigned(s) {
			return p.Edges[i]
		}
	}
	// Numerically s can fall marginally outside every edge's range after
	// clamping floating-point error; snap to the nearest endpoint edge.
	if s >= 0 {
		return p.Edges[len(p.Edges)-1]
	}
	return p.Edges[0]
}

// AdjustOppositeDirection implements spec.md §4.1's opposite-direction
// adjustment: if s lies beyond the path endpoint by no more than
// EdgeLengthErrorTolerance, it is snapped to that endpoint; otherwise the
// projection is rejected as unrepresentable.
func (p Path) AdjustOppositeDirection(s float64) (adjusted float64, ok bool) {
	lo, hi := p.Bounds()
	if s < lo {
		if lo-s <= EdgeLengthErrorTolerance {
			return lo, true
		}
		return 0, false
	}
	if s > hi {
		if s-hi <= EdgeLengthErrorTolerance {
			return hi, true
		}
		return 0, false
	}
	return s, true
}

// sharedEndpoint reports whether two points coincide within a small
// geometric epsilon, used by MergePaths to find shared endpoints
// analytically (spec.md §9's "terrible hack" resolved without catch/retry).
func sharedEndpoint(a, b Point) bool {
	const eps = 1e-9
	return math.Hypot(a.X-b.X, a.Y-b.Y) <= eps
}

// ErrNoMerge is returned by MergePaths when the two paths share no
// geometric endpoint, per spec.md §7's "degenerate path merge" disposition.
var ErrNoMerge = errNoMerge{}

type errNoMerge struct{}

func (errNoMerge) Error() string { return "geo: paths share no endpoint, no merge" }

// MergePaths joins two paths that overlap at one end into a single
// continuous path, reporting whether the second path's edges were reversed
// to achieve the join. It computes the shared endpoint directly from the
// two paths' edge geometry instead of relying on a geometry-library
// assertion + retry (spec.md §9 Open Question on mergePaths).
func MergePaths(a, b Path) (merged Path, bReversed bool, err error) {
	if a.IsNull() || b.IsNull() {
		return Path{}, false, ErrNoMerge
	}
	aLast := a.Edges[len(a.Edges)-1]
	bFirst := b.Edges[0]
	bLast := b.Edges[len(b.Edges)-1]

	aEnd := endpointOf(aLast)

	switch {
	case sharedEndpoint(aEnd, startpointOf(bFirst)):
		// b already runs away from a's endpoint: join as-is.
		return joinEdges(a, b, false), false, nil
	case sharedEndpoint(aEnd, endpointOf(bLast)):
		// b runs into a's endpoint instead of away from it: reverse b first.
		return joinEdges(a, reverse(b), true), true, nil
	default:
		return Path{}, false, ErrNoMerge
	}
}

func endpointOf(pe PathEdge) Point {
	if pe.IsBackward {
		return pe.Edge.Start
	}
	return pe.Edge.End
}

func startpointOf(pe PathEdge) Point {
	if pe.IsBackward {
		return pe.Edge.End
	}
	return pe.Edge.Start
}

// reverse returns a path traversing the same edges tail-to-head, with a
// freshly computed DistToStartOfEdge sequence relative to the new origin.
func reverse(p Path) Path {
	n := len(p.Edges)
	out := Path{IsBackward: !p.IsBackward, Edges: make([]PathEdge, n)}
	for i, pe := range p.Edges {
		out.Edges[n-1-i] = PathEdge{Edge: pe.Edge, IsBackward: !pe.IsBackward}
	}
	sign := 1.0
	if out.IsBackward {
		sign = -1.0
	}
	cum := 0.0
	for i := range out.Edges {
		out.Edges[i].DistToStartOfEdge = sign * cum
		cum += out.Edges[i].Edge.Length
	}
	return out
}

func joinEdges(a, b Path, bWasReversed bool) Path {
	out := Path{IsBackward: a.IsBackward, Edges: make([]PathEdge, 0, len(a.Edges)+len(b.Edges))}
	out.Edges = append(out.Edges, a.Edges...)
	offset := a.TotalDistance()
	for _, pe := range b.Edges {
		rel := pe.DistToStartOfEdge
		out.Edges = append(out.Edges, PathEdge{
			Edge:              pe.Edge,
			IsBackward:        a.IsBackward,
			DistToStartOfEdge: offset + rel,
		})
	}
	return out
}
