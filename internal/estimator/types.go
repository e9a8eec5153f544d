// Package estimator implements the bootstrap particle updater of spec.md
// §4.5/§5: per-observation prediction, road-graph edge walking, and weighted
// resampling over a population of VehicleState particles, each carrying its
// own covariance-learning Kalman filter (internal/kalman) and path-state
// belief (internal/belief).
package estimator

import (
	"math/rand"

	"github.com/google/uuid"

	"github.com/kinemap/roadtrack/internal/belief"
	"github.com/kinemap/roadtrack/internal/geo"
	"github.com/kinemap/roadtrack/internal/graph"
	"github.com/kinemap/roadtrack/internal/kalman"
)

// GpsObservation is one incoming GPS fix, chained to its predecessor so the
// Kalman models can recover the elapsed time between irregular fixes
// (spec.md §6). TrueObservation, when set, carries a ground-truth particle
// used only by checkTrueObservationDeviation's divergence warning — test
// and simulation harnesses set it, production callers leave it nil.
type GpsObservation struct {
	TimestampMillis int64
	ProjectedPoint  geo.Point
	Previous        *GpsObservation
	TrueObservation *VehicleState
}

// DtSeconds returns the elapsed time since Previous, or defaultSeconds when
// there is no predecessor or the timestamps are non-increasing (a malformed
// or out-of-order feed falls back to the configured default rather than
// producing a zero or negative dt).
func (o *GpsObservation) DtSeconds(defaultSeconds float64) float64 {
	if o.Previous == nil {
		return defaultSeconds
	}
	deltaMillis := o.TimestampMillis - o.Previous.TimestampMillis
	if deltaMillis <= 0 {
		return defaultSeconds
	}
	return float64(deltaMillis) / 1000.0
}

// VehicleState is one particle: a path-state belief, the covariance-learning
// filter that produced it, the edge-walk sufficient statistics it has
// accumulated, and a link to the single prior generation it descends from
// (Parent.Parent is always nil — spec.md §5 bounds ancestry to one
// generation so particle lineages don't retain an unbounded history). rnd is
// this particle's own forked generator (spec.md §5's "serialized" option):
// every particle gets an independent stream so resampled siblings diverge.
type VehicleState struct {
	ID             uuid.UUID
	Observation    *GpsObservation
	Belief         *belief.PathStateBelief
	Filter         *kalman.ErrorEstimatingRoadTrackingFilter
	EdgeTransition *graph.TransitionDistribution
	Parent         *VehicleState

	rnd *rand.Rand
}

// withParent returns a shallow copy of s suitable for use as a Parent link:
// its own Parent is truncated to nil so ancestry never grows past one
// generation.
func (s *VehicleState) withParent() *VehicleState {
	parent := *s
	parent.Parent = nil
	return &parent
}
