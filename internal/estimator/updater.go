package estimator

import (
	"errors"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"

	"github.com/google/uuid"

	"github.com/kinemap/roadtrack/internal/belief"
	"github.com/kinemap/roadtrack/internal/config"
	"github.com/kinemap/roadtrack/internal/geo"
	"github.com/kinemap/roadtrack/internal/graph"
	"github.com/kinemap/roadtrack/internal/kalman"
)

// ErrAllParticlesDiscarded is returned by Step when every particle's
// predicted position was unrepresentable on its proposed path, leaving
// nothing for Resample to draw from.
var ErrAllParticlesDiscarded = errors.New("estimator: all particles discarded this step")

// Updater runs the bootstrap particle update of spec.md §4.5 over a road
// graph, per the tuning parameters of config.VehicleStateInitialParameters.
type Updater struct {
	Graph  graph.InferenceGraph
	Config *config.VehicleStateInitialParameters

	rnd *rand.Rand
}

// NewUpdater builds an updater seeded from cfg.GetSeed (or the zero-value
// config's default seed, if cfg is nil).
func NewUpdater(g graph.InferenceGraph, cfg *config.VehicleStateInitialParameters) *Updater {
	if cfg == nil {
		cfg = config.EmptyVehicleStateInitialParameters()
	}
	return &Updater{
		Graph:  g,
		Config: cfg,
		rnd:    rand.New(rand.NewSource(cfg.GetSeed())),
	}
}

// forkRand draws a fresh, independent generator from u's own stream — every
// particle gets its own rand.Rand (spec.md §5) so resampled siblings
// diverge instead of tracking each other deterministically.
func (u *Updater) forkRand() *rand.Rand {
	return rand.New(rand.NewSource(u.rnd.Int63()))
}

// Step runs one full observation cycle: predict+walk+place every particle
// (Update), then weighted-resample back to the configured particle count
// (Resample). Particles whose predicted position is unrepresentable on
// their proposed path are dropped before resampling; if every particle is
// dropped, Step returns ErrAllParticlesDiscarded.
func (u *Updater) Step(particles []*VehicleState, obs *GpsObservation) ([]*VehicleState, error) {
	survivors := make([]*VehicleState, 0, len(particles))
	for _, p := range particles {
		next, err := u.updateOne(p, obs)
		if err != nil {
			continue
		}
		survivors = append(survivors, next)
	}
	if len(survivors) == 0 {
		return nil, ErrAllParticlesDiscarded
	}
	return u.Resample(survivors, obs), nil
}

// Update runs predict+walk+place for every particle without resampling,
// returning one successor per input particle that survived (shorter than
// the input when some predictions were unrepresentable).
func (u *Updater) Update(particles []*VehicleState, obs *GpsObservation) []*VehicleState {
	out := make([]*VehicleState, 0, len(particles))
	for _, p := range particles {
		next, err := u.updateOne(p, obs)
		if err != nil {
			continue
		}
		out = append(out, next)
	}
	return out
}

// Resample draws GetNumParticles particles with replacement from the
// supplied population, weighted by ComputeLogLikelihood against obs. Each
// drawn particle is forked (independent Filter, EdgeTransition, and rnd)
// so siblings sharing a source index evolve independently afterward.
func (u *Updater) Resample(particles []*VehicleState, obs *GpsObservation) []*VehicleState {
	logWeights := make([]float64, len(particles))
	for i, p := range particles {
		logWeights[i] = ComputeLogLikelihood(p, obs)
	}
	probs := normalizeLogWeights(logWeights)
	indices := weightedSampleWithReplacement(probs, u.Config.GetNumParticles(), u.rnd)

	out := make([]*VehicleState, len(indices))
	for i, idx := range indices {
		src := particles[idx]
		out[i] = &VehicleState{
			ID:             uuid.New(),
			Observation:    src.Observation,
			Belief:         src.Belief,
			Filter:         src.Filter.Clone(),
			EdgeTransition: src.EdgeTransition.Clone(),
			Parent:         src.withParent(),
			rnd:            u.forkRand(),
		}
	}
	return out
}

// updateOne runs one particle's predict, edge walk, and placement step
// (spec.md §4.5.1-3), then the parallel covariance-learning posterior
// (spec.md §4.8) that updates the particle's own filter in place.
func (u *Updater) updateOne(particle *VehicleState, obs *GpsObservation) (*VehicleState, error) {
	dt := obs.DtSeconds(u.Config.GetInitialObsFreqSeconds())
	prior := particle.Belief
	baseFilter := particle.Filter.RoadTrackingFilter

	predicted, err := belief.Predict(baseFilter, prior, prior.Path, dt)
	if err != nil {
		return nil, err
	}

	model := baseFilter.Ground
	if predicted.IsOnRoad() {
		model = baseFilter.Road
	}
	noise := sampleZeroMeanGaussian(model.Q, particle.rnd)
	noisyMean := mat.NewVecDense(predicted.Mean.Len(), nil)
	noisyMean.AddVec(predicted.Mean, noise)

	newPath, walked := u.walkPath(predicted, particle.EdgeTransition, particle.rnd)

	raw := &belief.PathStateBelief{Path: predicted.Path, Mean: noisyMean, Cov: predicted.Cov}
	placed, err := raw.GetStateBeliefOnPath(newPath)
	if err != nil {
		return nil, err
	}

	obsY, obsCov := covarianceLearningObservation(prior, baseFilter, obs)
	particle.Filter.Update(
		prior.IsOnRoad(),
		prior.Mean, prior.Cov,
		obsY, obsCov,
		obs.ProjectedPoint,
		groundStateIn(prior),
		dt,
		particle.rnd,
	)

	nextTransition := particle.EdgeTransition.Clone()
	if walked {
		nextTransition.Observe(placed.IsOnRoad())
	}

	next := &VehicleState{
		ID:             uuid.New(),
		Observation:    obs,
		Belief:         placed,
		Filter:         particle.Filter,
		EdgeTransition: nextTransition,
		Parent:         particle.withParent(),
		rnd:            particle.rnd,
	}
	checkTrueObservationDeviation(next, obs)
	return next, nil
}

// walkPath decides this step's Path. An on-road particle whose predicted
// position still falls within its current Path's bounds keeps that Path
// unchanged — no walk needed, and reports walked == false so updateOne
// leaves the edge-transition sufficient statistics untouched. Otherwise (the
// particle has reached its path's end, or is off-road and re-querying
// nearby edges every step per spec.md §4.5.2) it samples a fresh edge walk
// and assembles the result into a length-segmented Path (§4.7).
func (u *Updater) walkPath(predicted *belief.PathStateBelief, transition *graph.TransitionDistribution, rnd *rand.Rand) (path geo.Path, walked bool) {
	if predicted.IsOnRoad() {
		lo, hi := predicted.Path.Bounds()
		s := predicted.Mean.AtVec(0)
		if s >= lo && s <= hi {
			return predicted.Path, false
		}
	}

	pe := predicted.GetEdge()
	dist := transition.Clone()
	if predicted.IsOnRoad() {
		dist.RemoveNullOption()
		dist.Domain = wrapOutgoing(u.Graph.Outgoing(pe.Edge))
	} else {
		dist.Domain = u.Graph.NearbyEdges(predicted.Mean, predicted.Cov)
	}

	var segments []graph.InferenceGraphSegment
	prev := pe.Edge
	for {
		s := dist.Sample(rnd)
		if s.IsNull() {
			break
		}
		dist.RemoveNullOption()
		segments = append(segments, s)
		if s.Edge == prev {
			break
		}
		prev = s.Edge
		dist.Domain = wrapOutgoing(u.Graph.Outgoing(prev))
	}

	return buildPathFromSegments(segments, u.Config.GetEdgeSegmentDistance()), true
}

func wrapOutgoing(edges []*geo.InferredEdge) []graph.InferenceGraphSegment {
	out := make([]graph.InferenceGraphSegment, len(edges))
	for i, e := range edges {
		out[i] = graph.InferenceGraphSegment{Edge: e, IsBackward: false}
	}
	return out
}

// buildPathFromSegments chains sampled edges into a Path, all sharing the
// first segment's orientation (a single edge walk never changes direction
// mid-stream), each split into sub-edges no longer than targetDistance.
func buildPathFromSegments(segments []graph.InferenceGraphSegment, targetDistance float64) geo.Path {
	if len(segments) == 0 {
		return geo.NullPath()
	}
	isBackward := segments[0].IsBackward
	sign := 1.0
	if isBackward {
		sign = -1.0
	}
	cum := 0.0
	var edges []geo.PathEdge
	for _, s := range segments {
		pe := geo.PathEdge{Edge: s.Edge, IsBackward: isBackward, DistToStartOfEdge: sign * cum}
		edges = append(edges, pe.Segment(targetDistance)...)
		cum += s.Edge.Length
	}
	return geo.Path{IsBackward: isBackward, Edges: edges}
}

// sampleZeroMeanGaussian draws one sample from N(0, cov), the particle's own
// stochastic forward motion noise (distinct from the deterministic
// Kalman-predicted (mean, cov) pair used for weighting).
func sampleZeroMeanGaussian(cov *mat.SymDense, rnd *rand.Rand) *mat.VecDense {
	dim := cov.SymmetricDim()
	if rnd == nil {
		return mat.NewVecDense(dim, nil)
	}
	normal, ok := distmv.NewNormal(make([]float64, dim), cov, rnd)
	if !ok {
		panic("estimator: cannot build process-noise sampling normal")
	}
	return mat.NewVecDense(dim, normal.Rand(nil))
}

// covarianceLearningObservation builds the observation vector/covariance
// pair internal/kalman's Update needs, expressed in prior's own on/off-road
// coordinate system: a §4.3 road pseudo-observation against prior's own
// carrying edge when on-road, the raw 2D ground fix otherwise.
func covarianceLearningObservation(prior *belief.PathStateBelief, filter *kalman.RoadTrackingFilter, obs *GpsObservation) (*mat.VecDense, *mat.SymDense) {
	if !prior.IsOnRoad() {
		return mat.NewVecDense(2, []float64{obs.ProjectedPoint.X, obs.ProjectedPoint.Y}), filter.ObsCov
	}
	pe := prior.GetEdge()
	ro := kalman.NewRoadObservation(pe.Edge, pe.IsBackward, obs.ProjectedPoint, filter.ObsCov)
	return mat.NewVecDense(1, []float64{ro.Y}), mat.NewSymDense(1, []float64{ro.Cov})
}

func groundStateIn(prior *belief.PathStateBelief) func(x *mat.VecDense) geo.Point {
	if !prior.IsOnRoad() {
		return func(x *mat.VecDense) geo.Point {
			return geo.Point{X: x.AtVec(0), Y: x.AtVec(2)}
		}
	}
	pe := prior.GetEdge()
	return func(x *mat.VecDense) geo.Point {
		gs := geo.ProjectPathToGround(pe, geo.RoadState{S: x.AtVec(0), DS: x.AtVec(1)}, false)
		return geo.Point{X: gs.X, Y: gs.Y}
	}
}
