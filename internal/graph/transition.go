package graph

import (
	"math/rand"

	"github.com/kinemap/roadtrack/internal/geo"
)

// TransitionDistribution is the on/off-edge categorical distribution of
// spec.md §4.6: a Bernoulli null-edge/on-road split from running sufficient
// statistics, and — among on-road candidates — a uniform distribution over a
// mutable domain of oriented edge segments. Sample mutates nothing;
// RemoveNullOption (which zeroes NullHits) and Remove (which edits the
// domain) mutate the distribution in place, so callers that
// need the unmutated original (the updater clones before an edge walk, per
// §4.6's "mutations are local") must call Clone first.
//
// Domain holds InferenceGraphSegment rather than bare *geo.InferredEdge so
// the distribution can seed an off-road particle's first on-road candidate
// (from a NearbyEdges query, where orientation is read off the projection)
// as well as an on-road particle's next edge (from an Outgoing query, always
// forward-oriented by construction).
type TransitionDistribution struct {
	NullHits   float64
	OnRoadHits float64
	Domain     []InferenceGraphSegment
}

// NewTransitionDistribution builds a distribution from Bernoulli sufficient
// statistics (nullHits, onRoadHits) and a uniform on-road domain.
func NewTransitionDistribution(nullHits, onRoadHits float64, domain []InferenceGraphSegment) *TransitionDistribution {
	return &TransitionDistribution{
		NullHits:   nullHits,
		OnRoadHits: onRoadHits,
		Domain:     append([]InferenceGraphSegment(nil), domain...),
	}
}

// NullProb returns the current Bernoulli estimate of off-road probability;
// an uninformative 0.5 when no observations have been folded in yet.
func (d *TransitionDistribution) NullProb() float64 {
	total := d.NullHits + d.OnRoadHits
	if total == 0 {
		return 0.5
	}
	return d.NullHits / total
}

// Observe folds one more on/off-road outcome into the Bernoulli sufficient
// statistics.
func (d *TransitionDistribution) Observe(wasOnRoad bool) {
	if wasOnRoad {
		d.OnRoadHits++
	} else {
		d.NullHits++
	}
}

// Clone returns a deep copy whose Domain slice is independent of d's, so
// RemoveNullOption/Remove on the clone never affect d.
func (d *TransitionDistribution) Clone() *TransitionDistribution {
	return &TransitionDistribution{
		NullHits:   d.NullHits,
		OnRoadHits: d.OnRoadHits,
		Domain:     append([]InferenceGraphSegment(nil), d.Domain...),
	}
}

// RemoveNullOption zeroes the null-edge probability mass, per spec.md
// §4.5.2's "a particle that started on-road stays on-road for this step".
func (d *TransitionDistribution) RemoveNullOption() {
	d.NullHits = 0
}

// Remove deletes edge (either orientation) from the on-road domain if
// present, a no-op otherwise.
func (d *TransitionDistribution) Remove(edge *geo.InferredEdge) {
	for i, s := range d.Domain {
		if s.Edge == edge {
			d.Domain = append(d.Domain[:i:i], d.Domain[i+1:]...)
			return
		}
	}
}

// Sample draws the null edge with probability NullProb() (or always, when
// the on-road domain is empty), otherwise a uniform draw from Domain.
func (d *TransitionDistribution) Sample(rnd *rand.Rand) InferenceGraphSegment {
	if len(d.Domain) == 0 {
		return nullSegment
	}
	if rnd.Float64() < d.NullProb() {
		return nullSegment
	}
	return d.Domain[rnd.Intn(len(d.Domain))]
}
