package kalman

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"

	"github.com/kinemap/roadtrack/internal/geo"
	"github.com/kinemap/roadtrack/internal/matutil"
)

// ErrorEstimatingRoadTrackingFilter is the covariance-learning variant of
// RoadTrackingFilter (spec.md §4.8): on top of the coupled road/ground
// model pair, it carries the most recent Gibbs-sampled retrospective state
// pair used only to drive the three inverse-Wishart posteriors.
type ErrorEstimatingRoadTrackingFilter struct {
	*RoadTrackingFilter

	PrevStateSample    *mat.VecDense
	CurrentStateSample *mat.VecDense
}

// NewErrorEstimatingRoadTrackingFilter wraps an existing RoadTrackingFilter
// with covariance-learning state, initially empty until the first Update.
func NewErrorEstimatingRoadTrackingFilter(base *RoadTrackingFilter) *ErrorEstimatingRoadTrackingFilter {
	return &ErrorEstimatingRoadTrackingFilter{RoadTrackingFilter: base}
}

// Update runs spec.md §4.8's five-step covariance-learning procedure for one
// observation. prevIsOnRoad/prevMean/prevCov describe the prior belief
// x_{t-1|t-1}; obsY/obsCov are the observation already expressed in that
// same on/off-road model's space (a RoadObservation's Y/Cov when
// prevIsOnRoad, or the raw 2D ground fix otherwise) — the same quantity the
// caller already built to run its own (non-learning) Kalman update this
// step, per §4.3's "the edge passed must be the one carrying the posterior
// mean". groundObs is the raw 2D GPS ground fix, used unconditionally by
// step 4's observation-covariance update. groundState converts a state
// vector in prevIsOnRoad's coordinate system to its 4D ground projection
// (the caller owns the geometry/path needed for that conversion). rnd
// drives every sampling step; passing nil makes every draw deterministic
// (the corresponding distribution's mean), which is how spec.md §8's
// "smoothed sample consistency" scenario is exercised.
func (f *ErrorEstimatingRoadTrackingFilter) Update(
	prevIsOnRoad bool,
	prevMean *mat.VecDense,
	prevCov *mat.SymDense,
	obsY *mat.VecDense,
	obsCov *mat.SymDense,
	groundObs geo.Point,
	groundState func(x *mat.VecDense) geo.Point,
	dt float64,
	rnd *rand.Rand,
) (prevSample, currSample *mat.VecDense) {
	model := f.Ground
	covPrior := f.OffRoadCovPrior
	if prevIsOnRoad {
		model = f.Road
		covPrior = f.OnRoadCovPrior
	}
	g := model.TransitionAt(dt)

	// Step 1: smoothed previous sample x~_{t-1} ~ p(x_{t-1} | x_t, y_t).
	prevSample = smoothedPreviousSample(model, prevMean, prevCov, obsY, obsCov, dt, rnd)

	// Step 2: filtered transition sample x~_t, predicting from the fixed
	// point x~_{t-1} (predictive covariance is Q alone) then measuring
	// against y_t.
	predMean := mat.NewVecDense(model.Dim, nil)
	predMean.MulVec(g, prevSample)
	postMean, postCov := model.Measure(predMean, model.Q, model.O, obsCov, obsY)
	currSample = sampleGaussian(postMean, postCov, rnd)

	// Step 3: process-covariance update. The covariance factor F is realized
	// as Q's own PSD square root (F*F == Q), reconciling §4.2's F*Q*F^T
	// predict-step formula with the data model's explicit state-dimensioned
	// Q_r/Q_g; F+ is therefore Q's pseudoinverse square root.
	diff := mat.NewVecDense(model.Dim, nil)
	var gPrev mat.Dense
	gPrev.Mul(g, prevSample)
	for i := 0; i < model.Dim; i++ {
		diff.SetVec(i, currSample.AtVec(i)-gPrev.At(i, 0))
	}
	fPlus := matutil.PseudoInverseSqrt(model.Q)
	e := mat.NewVecDense(model.Dim, nil)
	e.MulVec(fPlus, diff)

	covPrior.Update(e)
	newQ := drawCov(covPrior, rnd)
	if prevIsOnRoad {
		f.RebuildRoadCov(newQ)
	} else {
		f.RebuildGroundCov(newQ)
	}

	// Step 4: observation-covariance update, against the raw ground fix
	// regardless of on/off-road status.
	currGround := groundState(currSample)
	r := mat.NewVecDense(2, []float64{groundObs.X - currGround.X, groundObs.Y - currGround.Y})
	f.ObsCovPrior.Update(r)
	f.RebuildObsCov(drawCov(f.ObsCovPrior, rnd))

	// Step 5: persist.
	f.PrevStateSample = prevSample
	f.CurrentStateSample = currSample
	return prevSample, currSample
}

// Clone returns a deep copy whose embedded RoadTrackingFilter and sample
// vectors are independent of f's, per spec.md §5's "no two particles share
// mutable math objects" — the same rule RoadTrackingFilter.Clone follows for
// the base filter.
func (f *ErrorEstimatingRoadTrackingFilter) Clone() *ErrorEstimatingRoadTrackingFilter {
	return &ErrorEstimatingRoadTrackingFilter{
		RoadTrackingFilter: f.RoadTrackingFilter.Clone(),
		PrevStateSample:    cloneVecOrNil(f.PrevStateSample),
		CurrentStateSample: cloneVecOrNil(f.CurrentStateSample),
	}
}

func cloneVecOrNil(v *mat.VecDense) *mat.VecDense {
	if v == nil {
		return nil
	}
	out := mat.NewVecDense(v.Len(), nil)
	out.CopyVec(v)
	return out
}

// drawCov draws a fresh covariance from prior, or (if rnd is nil) returns
// its mean deterministically.
func drawCov(prior *matutil.InverseWishart, rnd *rand.Rand) *mat.SymDense {
	if rnd == nil {
		return prior.Mean()
	}
	return prior.Sample(rnd)
}

// smoothedPreviousSample implements spec.md §4.8 step 1's closed-form
// conditional Gaussian: given prior belief N(m, C), dynamics G, process
// covariance Omega = model.Q, observation matrix F = model.O, observation
// y with covariance Sigma, compute the smoothed distribution of x_{t-1}
// given x_t's observation and draw from it.
func smoothedPreviousSample(model *linearModel, m *mat.VecDense, c *mat.SymDense, y *mat.VecDense, sigma *mat.SymDense, dt float64, rnd *rand.Rand) *mat.VecDense {
	obsDim, dim := model.O.Dims()
	g := model.TransitionAt(dt)

	fg := mat.NewDense(obsDim, dim, nil)
	fg.Mul(model.O, g)

	var fOmega mat.Dense
	fOmega.Mul(model.O, model.Q)
	var fOmegaFt mat.Dense
	fOmegaFt.Mul(&fOmega, model.O.T())
	w := mat.NewSymDense(obsDim, nil)
	for i := 0; i < obsDim; i++ {
		for j := i; j < obsDim; j++ {
			w.SetSym(i, j, fOmegaFt.At(i, j)+sigma.At(i, j))
		}
	}

	var fgc mat.Dense
	fgc.Mul(fg, c)
	var fgcfgt mat.Dense
	fgcfgt.Mul(&fgc, fg.T())
	a := mat.NewSymDense(obsDim, nil)
	for i := 0; i < obsDim; i++ {
		for j := i; j < obsDim; j++ {
			a.SetSym(i, j, fgcfgt.At(i, j)+w.At(i, j))
		}
	}

	var aInv mat.Dense
	if err := aInv.Inverse(a); err != nil {
		panic("kalman: smoothing innovation covariance A is singular")
	}

	// Wtilde = C * (FG)^T * A^-1 (A symmetric, so A^-T == A^-1).
	var cfgt mat.Dense
	cfgt.Mul(c, fg.T())
	var wTilde mat.Dense
	wTilde.Mul(&cfgt, &aInv)

	var fgm mat.Dense
	fgm.Mul(fg, m)
	innovation := mat.NewVecDense(obsDim, nil)
	for i := 0; i < obsDim; i++ {
		innovation.SetVec(i, y.AtVec(i)-fgm.At(i, 0))
	}

	var correction mat.Dense
	correction.Mul(&wTilde, innovation)
	mTilde := mat.NewVecDense(dim, nil)
	for i := 0; i < dim; i++ {
		mTilde.SetVec(i, m.AtVec(i)+correction.At(i, 0))
	}

	var wa mat.Dense
	wa.Mul(&wTilde, a)
	var waw mat.Dense
	waw.Mul(&wa, wTilde.T())
	cTilde := mat.NewSymDense(dim, nil)
	for i := 0; i < dim; i++ {
		for j := i; j < dim; j++ {
			cTilde.SetSym(i, j, c.At(i, j)-waw.At(i, j))
		}
	}

	return sampleGaussian(mTilde, matutil.Symmetrize(cTilde), rnd)
}

// sampleGaussian draws from N(mean, cov) using rnd, or returns mean
// unchanged (a zero-variance "sample") when rnd is nil.
func sampleGaussian(mean *mat.VecDense, cov *mat.SymDense, rnd *rand.Rand) *mat.VecDense {
	if rnd == nil {
		out := mat.NewVecDense(mean.Len(), nil)
		out.CopyVec(mean)
		return out
	}
	dim := mean.Len()
	meanSlice := make([]float64, dim)
	for i := range meanSlice {
		meanSlice[i] = mean.AtVec(i)
	}
	normal, ok := distmv.NewNormal(meanSlice, cov, rnd)
	if !ok {
		panic("kalman: cannot build sampling normal from covariance")
	}
	return mat.NewVecDense(dim, normal.Rand(nil))
}
