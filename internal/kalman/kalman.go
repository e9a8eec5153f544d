// Package kalman implements the linear-Gaussian road and ground tracking
// models of spec.md §4.2/§4.3, and the inverse-Wishart-coupled
// covariance-learning variant of §4.8, over gonum.org/v1/gonum/mat types —
// generalizing the hand-rolled fixed-size Kalman arithmetic of the tracking
// pipeline this module was built from to arbitrary state dimension (2 for
// road, 4 for ground) via real matrix types instead of unrolled scalar
// field access.
package kalman

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/kinemap/roadtrack/internal/matutil"
)

// ErrDimensionMismatch names the contract violation raised (as a panic whose
// message includes this error's text) when a state, covariance, or
// observation argument's dimension does not match the filter it is passed
// to. It is never returned.
var ErrDimensionMismatch = errors.New("kalman: dimension mismatch")

// linearModel is a fixed-dimension linear-Gaussian Kalman model: a
// dt-parameterized state transition, process covariance Q, and observation
// matrix O. The road (dim 2) and ground (dim 4) models RoadTrackingFilter
// couples are both instances of this same predict/measure machinery. dt is
// taken per call, not baked in at construction, since observations arrive
// at irregular intervals (spec.md §6's GpsObservation.Previous chain).
type linearModel struct {
	Dim    int
	Q      *mat.SymDense             // process covariance, Dim x Dim
	O      *mat.Dense                // this model's own observation matrix, obsDim x Dim
	buildG func(dt float64) *mat.Dense
}

// NewRoadModel builds the 2D (s, sdot) on-road model of spec.md §4.2:
// G_r(dt) = [[1, dt], [0, 1]], O_r = [1, 0], process covariance Q_r supplied
// by the caller (typically an InverseWishart posterior's current sample).
func NewRoadModel(q *mat.SymDense) *linearModel {
	return &linearModel{
		Dim: 2,
		Q:   q,
		O:   mat.NewDense(1, 2, []float64{1, 0}),
		buildG: func(dt float64) *mat.Dense {
			return mat.NewDense(2, 2, []float64{1, dt, 0, 1})
		},
	}
}

// NewGroundModel builds the 4D (x, xdot, y, ydot) off-road model of spec.md
// §4.2: two independent constant-velocity blocks for x and y, each with the
// same dt-parameterized transition as the road model; O_g extracts the two
// position coordinates.
func NewGroundModel(q *mat.SymDense) *linearModel {
	return &linearModel{
		Dim: 4,
		Q:   q,
		O: mat.NewDense(2, 4, []float64{
			1, 0, 0, 0,
			0, 0, 1, 0,
		}),
		buildG: func(dt float64) *mat.Dense {
			return mat.NewDense(4, 4, []float64{
				1, dt, 0, 0,
				0, 1, 0, 0,
				0, 0, 1, dt,
				0, 0, 0, 1,
			})
		},
	}
}

// TransitionAt returns this model's state-transition matrix G for the given
// elapsed time.
func (f *linearModel) TransitionAt(dt float64) *mat.Dense {
	return f.buildG(dt)
}

func (f *linearModel) checkDim(mean *mat.VecDense, cov *mat.SymDense) {
	if mean.Len() != f.Dim || cov.SymmetricDim() != f.Dim {
		panic(fmt.Sprintf("kalman: %v: expected dim %d, got mean %d cov %d", ErrDimensionMismatch, f.Dim, mean.Len(), cov.SymmetricDim()))
	}
}

// Predict advances (mean, cov) one step of duration dt under the model:
// mean' = G(dt)*mean, cov' = G(dt)*cov*G(dt)^T + Q. It does not mutate its
// inputs.
func (f *linearModel) Predict(mean *mat.VecDense, cov *mat.SymDense, dt float64) (*mat.VecDense, *mat.SymDense) {
	f.checkDim(mean, cov)
	g := f.buildG(dt)

	newMean := mat.NewVecDense(f.Dim, nil)
	newMean.MulVec(g, mean)

	var gp mat.Dense
	gp.Mul(g, cov)
	var gpgt mat.Dense
	gpgt.Mul(&gp, g.T())

	newCov := mat.NewSymDense(f.Dim, nil)
	for i := 0; i < f.Dim; i++ {
		for j := i; j < f.Dim; j++ {
			newCov.SetSym(i, j, gpgt.At(i, j)+f.Q.At(i, j))
		}
	}
	return newMean, newCov
}

// Measure applies a linear-Gaussian observation z ~ N(O*mean, R) to (mean,
// cov), returning the posterior mean/cov via the standard Kalman gain form.
// O is obsDim x f.Dim, R is obsDim x obsDim, z has length obsDim. O is
// passed explicitly rather than read from f.O; every caller in this package
// passes the model's own f.O.
func (f *linearModel) Measure(mean *mat.VecDense, cov *mat.SymDense, o *mat.Dense, r *mat.SymDense, z *mat.VecDense) (*mat.VecDense, *mat.SymDense) {
	f.checkDim(mean, cov)
	obsDim, stateDim := o.Dims()
	if stateDim != f.Dim || z.Len() != obsDim || r.SymmetricDim() != obsDim {
		panic(fmt.Sprintf("kalman: %v: observation shape does not match filter/state", ErrDimensionMismatch))
	}

	predictedObs := mat.NewVecDense(obsDim, nil)
	predictedObs.MulVec(o, mean)

	innovation := mat.NewVecDense(obsDim, nil)
	innovation.SubVec(z, predictedObs)

	var po mat.Dense
	po.Mul(cov, o.T())
	var ops mat.Dense
	ops.Mul(o, &po)

	s := mat.NewSymDense(obsDim, nil)
	for i := 0; i < obsDim; i++ {
		for j := i; j < obsDim; j++ {
			s.SetSym(i, j, ops.At(i, j)+r.At(i, j))
		}
	}

	var sInv mat.Dense
	if err := sInv.Inverse(s); err != nil {
		panic(fmt.Sprintf("kalman: innovation covariance is singular: %v", err))
	}

	var gain mat.Dense
	gain.Mul(&po, &sInv)

	var correction mat.Dense
	correction.Mul(&gain, innovation)

	newMean := mat.NewVecDense(f.Dim, nil)
	newMean.AddVec(mean, correction.ColView(0))

	var goMat mat.Dense
	goMat.Mul(&gain, o)
	identity := mat.NewDiagDense(f.Dim, nil)
	for i := 0; i < f.Dim; i++ {
		identity.SetDiag(i, 1)
	}
	var imgo mat.Dense
	imgo.Sub(identity, &goMat)

	var imgoP mat.Dense
	imgoP.Mul(&imgo, cov)
	var newCovDense mat.Dense
	newCovDense.Mul(&imgoP, imgo.T())

	var rTerm mat.Dense
	rTerm.Mul(&gain, r)
	var rTermGt mat.Dense
	rTermGt.Mul(&rTerm, gain.T())

	var sum mat.Dense
	sum.Add(&newCovDense, &rTermGt)

	return newMean, matutil.Symmetrize(&sum)
}
