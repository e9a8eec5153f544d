package estimator

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/google/uuid"

	"github.com/kinemap/roadtrack/internal/belief"
	"github.com/kinemap/roadtrack/internal/geo"
	"github.com/kinemap/roadtrack/internal/graph"
	"github.com/kinemap/roadtrack/internal/kalman"
)

// initialVelocityVariance is the candidate-search velocity uncertainty used
// only to seed InitializeParticles' off-road mixture component — unrelated
// to the filter's own learned process covariance, which takes over from the
// first Update onward.
const initialVelocityVariance = 25.0

// InitializeParticles builds the initial particle population for obs, per
// spec.md §4.5's Initialization: one off-road (null) candidate at obs's
// position, plus one on-road candidate per nearby edge segment, mixture
// weighted by log p(edge | transition prior) + log p(obs | candidate) and
// resampled with replacement to GetNumParticles. The transition-prior term
// comes from a single uninformative TransitionDistribution shared across
// every candidate this call considers: NullProb for the off-road candidate,
// and (1 - NullProb) split uniformly over the nearby-edge domain for each
// on-road candidate.
func (u *Updater) InitializeParticles(obs *GpsObservation) ([]*VehicleState, error) {
	offRoadMean, offRoadCov := offRoadCandidateState(obs, u.Config.BuildObsCovPrior().Mean())

	nearby := u.Graph.NearbyEdges(offRoadMean, offRoadCov)
	transitionPrior := graph.NewTransitionDistribution(1, 1, nearby)

	offRoadCandidate := u.newOffRoadCandidate(obs, offRoadMean, offRoadCov)
	candidates := []*VehicleState{offRoadCandidate}
	logWeights := []float64{math.Log(transitionPrior.NullProb()) + ComputeLogLikelihood(offRoadCandidate, obs)}

	onRoadEdgeLogPrior := math.Log(1-transitionPrior.NullProb()) - math.Log(float64(len(nearby)))
	onRoadCov := u.Config.BuildOnRoadCovPrior().Mean()
	for _, seg := range nearby {
		candidate, ok := u.newOnRoadCandidate(obs, seg, onRoadCov)
		if !ok {
			continue
		}
		candidates = append(candidates, candidate)
		logWeights = append(logWeights, onRoadEdgeLogPrior+ComputeLogLikelihood(candidate, obs))
	}

	probs := normalizeLogWeights(logWeights)
	indices := weightedSampleWithReplacement(probs, u.Config.GetNumParticles(), u.rnd)

	out := make([]*VehicleState, len(indices))
	for i, idx := range indices {
		src := candidates[idx]
		out[i] = &VehicleState{
			ID:             uuid.New(),
			Observation:    obs,
			Belief:         src.Belief,
			Filter:         src.Filter.Clone(),
			EdgeTransition: src.EdgeTransition.Clone(),
			rnd:            u.forkRand(),
		}
	}
	return out, nil
}

func offRoadCandidateState(obs *GpsObservation, obsCov *mat.SymDense) (*mat.VecDense, *mat.SymDense) {
	mean := mat.NewVecDense(4, []float64{obs.ProjectedPoint.X, 0, obs.ProjectedPoint.Y, 0})
	cov := mat.NewSymDense(4, nil)
	cov.SetSym(0, 0, obsCov.At(0, 0))
	cov.SetSym(2, 2, obsCov.At(1, 1))
	cov.SetSym(1, 1, initialVelocityVariance)
	cov.SetSym(3, 3, initialVelocityVariance)
	return mean, cov
}

func (u *Updater) newOffRoadCandidate(obs *GpsObservation, mean *mat.VecDense, cov *mat.SymDense) *VehicleState {
	filter := kalman.NewErrorEstimatingRoadTrackingFilter(
		kalman.NewRoadTrackingFilter(u.Config.BuildObsCovPrior(), u.Config.BuildOnRoadCovPrior(), u.Config.BuildOffRoadCovPrior(), u.forkRand()),
	)
	return &VehicleState{
		Belief:         belief.New(geo.NullPath(), mean, cov),
		Filter:         filter,
		EdgeTransition: graph.NewTransitionDistribution(1, 1, nil),
	}
}

func (u *Updater) newOnRoadCandidate(obs *GpsObservation, seg graph.InferenceGraphSegment, cov2x2 *mat.SymDense) (*VehicleState, bool) {
	path := seg.AsPath()
	groundState := geo.GroundState{X: obs.ProjectedPoint.X, Y: obs.ProjectedPoint.Y}
	roadState, _, err := geo.ProjectGroundToPath(path, groundState, false)
	if err != nil {
		return nil, false
	}

	mean := mat.NewVecDense(2, []float64{roadState.S, 0})
	cov := matCloneSym(cov2x2)

	filter := kalman.NewErrorEstimatingRoadTrackingFilter(
		kalman.NewRoadTrackingFilter(u.Config.BuildObsCovPrior(), u.Config.BuildOnRoadCovPrior(), u.Config.BuildOffRoadCovPrior(), u.forkRand()),
	)
	outgoing := wrapOutgoing(u.Graph.Outgoing(seg.Edge))
	return &VehicleState{
		Belief:         belief.New(path, mean, cov),
		Filter:         filter,
		EdgeTransition: graph.NewTransitionDistribution(0, 1, outgoing),
	}, true
}

func matCloneSym(m *mat.SymDense) *mat.SymDense {
	n := m.SymmetricDim()
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out.SetSym(i, j, m.At(i, j))
		}
	}
	return out
}
