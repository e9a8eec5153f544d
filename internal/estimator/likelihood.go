package estimator

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"

	"github.com/kinemap/roadtrack/internal/monitoring"
)

// ErrDimensionMismatch is returned (wrapped in a panic) when a particle's
// belief does not have the ground dimension every consumer of
// GetGroundBelief relies on — a contract violation in internal/belief, not a
// recoverable runtime condition here.
var ErrDimensionMismatch = errors.New("estimator: dimension mismatch")

// deviationWarningThreshold is the fractional deviation (the Frobenius norm
// of learned minus true covariance, relative to the Frobenius norm of the
// true covariance) above which checkTrueObservationDeviation logs a warning,
// per spec.md §6/§7.
const deviationWarningThreshold = 0.4

// ComputeLogLikelihood evaluates the log-density of state's ground-projected
// position marginal at obs.ProjectedPoint, the particle weight the outer
// resampling step (Resample) uses.
func ComputeLogLikelihood(state *VehicleState, obs *GpsObservation) float64 {
	gb := state.Belief.GetGroundBelief()
	requireGroundDim(gb.Mean)

	posMean := []float64{gb.Mean.AtVec(0), gb.Mean.AtVec(2)}
	posCov := mat.NewSymDense(2, nil)
	posCov.SetSym(0, 0, gb.Cov.At(0, 0))
	posCov.SetSym(0, 1, gb.Cov.At(0, 2))
	posCov.SetSym(1, 1, gb.Cov.At(2, 2))

	normal, ok := distmv.NewNormal(posMean, posCov, nil)
	if !ok {
		return math.Inf(-1)
	}
	return normal.LogProb([]float64{obs.ProjectedPoint.X, obs.ProjectedPoint.Y})
}

// checkTrueObservationDeviation logs a warning when the learned
// inverse-Wishart covariance mean relevant to state's current on/off-road
// character deviates from the truth particle's implied covariance by more
// than deviationWarningThreshold Frobenius norm of the truth (spec.md
// §6/§7's "update-error warning ... when the inverse-Wishart mean deviates
// from the truth by more than 40% Frobenius norm of the truth"). A no-op
// when obs carries no ground truth, or the truth particle carries no filter
// to read an implied covariance off of.
func checkTrueObservationDeviation(state *VehicleState, obs *GpsObservation) {
	if obs.TrueObservation == nil || obs.TrueObservation.Filter == nil {
		return
	}
	learned, truth := relevantCovariances(state, obs.TrueObservation)

	truthDense := mat.DenseCopyOf(truth)
	truthNorm := mat.Norm(truthDense, 2)
	if truthNorm == 0 {
		return
	}
	var diff mat.Dense
	diff.Sub(mat.DenseCopyOf(learned), truthDense)
	deviation := mat.Norm(&diff, 2) / truthNorm
	if deviation > deviationWarningThreshold {
		monitoring.Logf("estimator: particle %s inverse-Wishart mean deviates %.1f%% (Frobenius) from true covariance", state.ID, 100*deviation)
	}
}

// relevantCovariances returns the learned inverse-Wishart mean matching
// state's current on/off-road character (OnRoadCovPrior for Q_r,
// OffRoadCovPrior for Q_g), paired with the truth particle's implied
// covariance for that same model: the fixed Q its own filter was seeded
// with and, being a ground-truth particle, never relearns.
func relevantCovariances(state, truth *VehicleState) (learned, implied *mat.SymDense) {
	if state.Belief.IsOnRoad() {
		return state.Filter.OnRoadCovPrior.Mean(), truth.Filter.Road.Q
	}
	return state.Filter.OffRoadCovPrior.Mean(), truth.Filter.Ground.Q
}

func requireGroundDim(v *mat.VecDense) {
	if v.Len() != 4 {
		panic(fmt.Errorf("%w: expected ground-state dimension 4, got %d", ErrDimensionMismatch, v.Len()))
	}
}
