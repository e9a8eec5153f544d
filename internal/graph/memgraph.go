package graph

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/kinemap/roadtrack/internal/geo"
)

// nearbyRadiusScale and minNearbyRadius turn a query Gaussian's position
// variance into a search radius: scale standard deviations out, but never
// search a radius of zero for a razor-sharp prior.
const (
	nearbyRadiusScale = 3.0
	minNearbyRadius   = 1.0
)

// MemGraph is an in-memory InferenceGraph, grounded on the teacher's
// Tracker.mu pattern (internal/lidar/tracking.go): a single sync.RWMutex
// guards the adjacency/edge maps so NearbyEdges/Outgoing are safe under
// concurrent readers while AddEdge mutates exclusively. It is not a road
// data importer — callers build it directly from known edges, typically in
// tests or small fixtures.
type MemGraph struct {
	mu       sync.RWMutex
	edges    map[string]*geo.InferredEdge
	outgoing map[string][]*geo.InferredEdge
}

// NewMemGraph returns an empty graph.
func NewMemGraph() *MemGraph {
	return &MemGraph{
		edges:    make(map[string]*geo.InferredEdge),
		outgoing: make(map[string][]*geo.InferredEdge),
	}
}

// AddEdge registers edge and its outgoing adjacency (the edges reachable
// immediately after traversing edge to its end).
func (g *MemGraph) AddEdge(edge *geo.InferredEdge, outgoing ...*geo.InferredEdge) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edges[edge.ID] = edge
	g.outgoing[edge.ID] = append([]*geo.InferredEdge(nil), outgoing...)
}

// Outgoing implements InferenceGraph.
func (g *MemGraph) Outgoing(edge *geo.InferredEdge) []*geo.InferredEdge {
	if edge.IsNull() {
		return nil
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]*geo.InferredEdge(nil), g.outgoing[edge.ID]...)
}

// NearbyEdges implements InferenceGraph: every registered edge whose
// polyline passes within a covariance-scaled radius of mean's position,
// including both directions when the edge's HasReverse flag is set.
func (g *MemGraph) NearbyEdges(mean *mat.VecDense, cov *mat.SymDense) []InferenceGraphSegment {
	pos, radius := queryPositionAndRadius(mean, cov)

	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []InferenceGraphSegment
	for _, edge := range g.edges {
		if distancePointToEdge(edge, pos) > radius {
			continue
		}
		out = append(out, InferenceGraphSegment{Edge: edge, IsBackward: false})
		if edge.HasReverse {
			out = append(out, InferenceGraphSegment{Edge: edge, IsBackward: true})
		}
	}
	return out
}

func queryPositionAndRadius(mean *mat.VecDense, cov *mat.SymDense) (geo.Point, float64) {
	var x, y, varX, varY float64
	switch mean.Len() {
	case 2:
		x, y = mean.AtVec(0), mean.AtVec(1)
		varX, varY = cov.At(0, 0), cov.At(1, 1)
	case 4:
		x, y = mean.AtVec(0), mean.AtVec(2)
		varX, varY = cov.At(0, 0), cov.At(2, 2)
	default:
		panic("graph: NearbyEdges requires a 2D or 4D mean")
	}
	sigma := math.Sqrt(math.Max(varX, varY))
	radius := nearbyRadiusScale * sigma
	if radius < minNearbyRadius {
		radius = minNearbyRadius
	}
	return geo.Point{X: x, Y: y}, radius
}

// distancePointToEdge returns the minimum Euclidean distance from p to
// edge's polyline.
func distancePointToEdge(edge *geo.InferredEdge, p geo.Point) float64 {
	best := math.Inf(1)
	for i := 0; i < len(edge.Geometry)-1; i++ {
		p0, p1 := edge.Geometry[i], edge.Geometry[i+1]
		d := p1.Sub(p0)
		l := d.Norm()
		if l == 0 {
			continue
		}
		t := d.Scale(1 / l)
		frac := p.Sub(p0).Dot(t)
		if frac < 0 {
			frac = 0
		}
		if frac > l {
			frac = l
		}
		foot := p0.Add(t.Scale(frac))
		if dist := foot.Sub(p).Norm(); dist < best {
			best = dist
		}
	}
	return best
}
