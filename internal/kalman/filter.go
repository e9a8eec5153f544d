package kalman

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/kinemap/roadtrack/internal/geo"
	"github.com/kinemap/roadtrack/internal/matutil"
)

// RoadTrackingFilter holds the coupled road/ground Kalman model pair for one
// particle, per spec.md §3: an on-road (dim 2) and an off-road (dim 4)
// linear-Gaussian model, a shared ground-position observation covariance,
// and the three inverse-Wishart priors that learn Sigma_obs, Q_r, and Q_g
// online (§4.8). It is mutable across updates: Road.Q, Ground.Q, and ObsCov
// are rebuilt in place whenever covariance learning draws a fresh sample.
type RoadTrackingFilter struct {
	Road   *linearModel // dim 2
	Ground *linearModel // dim 4

	ObsCov *mat.SymDense // 2x2, shared ground-position observation covariance

	ObsCovPrior     *matutil.InverseWishart // dim 2
	OnRoadCovPrior  *matutil.InverseWishart // dim 2
	OffRoadCovPrior *matutil.InverseWishart // dim 4
}

// NewRoadTrackingFilter builds a filter from its three inverse-Wishart
// priors. When rnd is nil, the initial Q_r, Q_g, and Sigma_obs are each the
// corresponding prior's mean (deterministic mode); when rnd is non-nil each
// is a draw from its prior (stochastic mode) — per spec.md §4.8's "Prior
// construction".
func NewRoadTrackingFilter(obsCovPrior, onRoadCovPrior, offRoadCovPrior *matutil.InverseWishart, rnd *rand.Rand) *RoadTrackingFilter {
	return &RoadTrackingFilter{
		Road:            NewRoadModel(initialCov(onRoadCovPrior, rnd)),
		Ground:          NewGroundModel(initialCov(offRoadCovPrior, rnd)),
		ObsCov:          initialCov(obsCovPrior, rnd),
		ObsCovPrior:     obsCovPrior,
		OnRoadCovPrior:  onRoadCovPrior,
		OffRoadCovPrior: offRoadCovPrior,
	}
}

func initialCov(prior *matutil.InverseWishart, rnd *rand.Rand) *mat.SymDense {
	if rnd == nil {
		return prior.Mean()
	}
	return prior.Sample(rnd)
}

// PredictRoad runs the on-road Kalman predict step over elapsed time dt.
func (f *RoadTrackingFilter) PredictRoad(mean *mat.VecDense, cov *mat.SymDense, dt float64) (*mat.VecDense, *mat.SymDense) {
	return f.Road.Predict(mean, cov, dt)
}

// PredictGround runs the off-road Kalman predict step over elapsed time dt.
func (f *RoadTrackingFilter) PredictGround(mean *mat.VecDense, cov *mat.SymDense, dt float64) (*mat.VecDense, *mat.SymDense) {
	return f.Ground.Predict(mean, cov, dt)
}

// MeasureRoad runs the on-road Kalman update against a §4.3 pseudo-observation.
func (f *RoadTrackingFilter) MeasureRoad(mean *mat.VecDense, cov *mat.SymDense, obs RoadObservation) (*mat.VecDense, *mat.SymDense) {
	r := mat.NewSymDense(1, []float64{obs.Cov})
	z := mat.NewVecDense(1, []float64{obs.Y})
	return f.Road.Measure(mean, cov, f.Road.O, r, z)
}

// MeasureGround runs the off-road Kalman update against a raw 2D ground
// position observation.
func (f *RoadTrackingFilter) MeasureGround(mean *mat.VecDense, cov *mat.SymDense, z geo.Point) (*mat.VecDense, *mat.SymDense) {
	zv := mat.NewVecDense(2, []float64{z.X, z.Y})
	return f.Ground.Measure(mean, cov, f.Ground.O, f.ObsCov, zv)
}

// RebuildRoadCov replaces the on-road process covariance Q_r in place, per
// spec.md §4.8 step 3's "rebuild ... as the new state transition covariance".
func (f *RoadTrackingFilter) RebuildRoadCov(q *mat.SymDense) {
	checkPSD(q)
	f.Road.Q = q
}

// RebuildGroundCov replaces the off-road process covariance Q_g in place.
func (f *RoadTrackingFilter) RebuildGroundCov(q *mat.SymDense) {
	checkPSD(q)
	f.Ground.Q = q
}

// RebuildObsCov replaces the shared observation covariance Sigma_obs in
// place, per spec.md §4.8 step 4.
func (f *RoadTrackingFilter) RebuildObsCov(c *mat.SymDense) {
	checkPSD(c)
	f.ObsCov = c
}

// Clone returns a deep copy with independent priors and model covariances,
// used when a particle forks during resampling (spec.md §5: "no two
// particles share mutable math objects").
func (f *RoadTrackingFilter) Clone() *RoadTrackingFilter {
	return &RoadTrackingFilter{
		Road:            &linearModel{Dim: 2, Q: matutil.Symmetrize(f.Road.Q), O: f.Road.O, buildG: f.Road.buildG},
		Ground:          &linearModel{Dim: 4, Q: matutil.Symmetrize(f.Ground.Q), O: f.Ground.O, buildG: f.Ground.buildG},
		ObsCov:          matutil.Symmetrize(f.ObsCov),
		ObsCovPrior:     f.ObsCovPrior.Clone(),
		OnRoadCovPrior:  f.OnRoadCovPrior.Clone(),
		OffRoadCovPrior: f.OffRoadCovPrior.Clone(),
	}
}
