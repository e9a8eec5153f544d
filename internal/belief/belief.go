// Package belief implements the path-state belief abstraction of spec.md
// §4.4: a (Path, Gaussian) pair whose Gaussian dimensionality is fixed by
// the path's on/off-road character, together with the coordinate
// conversions (§4.1) needed to predict/measure across a character change.
package belief

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/kinemap/roadtrack/internal/geo"
	"github.com/kinemap/roadtrack/internal/kalman"
	"github.com/kinemap/roadtrack/internal/matutil"
)

// PathStateBelief is a Gaussian over the kinematic state, tagged with the
// Path that fixes its coordinate system: 2D road (s, sdot) on a non-null
// Path, 4D ground (x, xdot, y, ydot) on the null Path.
type PathStateBelief struct {
	Path geo.Path
	Mean *mat.VecDense
	Cov  *mat.SymDense
}

// New builds a PathStateBelief, panicking if mean/cov dimension doesn't
// match path's on/off-road character — a contract violation, never a
// runtime condition a caller can recover from.
func New(path geo.Path, mean *mat.VecDense, cov *mat.SymDense) *PathStateBelief {
	want := 4
	if path.IsOnRoad() {
		want = 2
	}
	if mean.Len() != want || cov.SymmetricDim() != want {
		panic(fmt.Sprintf("belief: dimension mismatch: path wants dim %d, got mean %d cov %d", want, mean.Len(), cov.SymmetricDim()))
	}
	return &PathStateBelief{Path: path, Mean: mean, Cov: cov}
}

// IsOnRoad reports whether b's Path is non-null.
func (b *PathStateBelief) IsOnRoad() bool {
	return b.Path.IsOnRoad()
}

// GetGlobalState returns the raw Gaussian mean/cov in b's own coordinate
// system, per spec.md §4.4.
func (b *PathStateBelief) GetGlobalState() (*mat.VecDense, *mat.SymDense) {
	return b.Mean, b.Cov
}

// GetEdge returns the last PathEdge whose signed range contains the mean's
// position, or a PathEdge wrapping the null edge when b is off-road.
func (b *PathStateBelief) GetEdge() geo.PathEdge {
	if !b.IsOnRoad() {
		return geo.PathEdge{Edge: geo.NullEdge}
	}
	return b.Path.EdgeForDistance(b.Mean.AtVec(0))
}

// GetGroundState returns b's mean as a 4D ground-coordinate state, per
// spec.md §4.4's "always 4D via projection".
func (b *PathStateBelief) GetGroundState() geo.GroundState {
	if !b.IsOnRoad() {
		return geo.GroundState{X: b.Mean.AtVec(0), DX: b.Mean.AtVec(1), Y: b.Mean.AtVec(2), DY: b.Mean.AtVec(3)}
	}
	pe := b.GetEdge()
	gs, _, _ := roadToGround(pe, b.Mean, b.Cov)
	return gs
}

// GetGroundBelief returns the 4D ground projection of b (identity when b is
// already off-road), per spec.md §4.4. The returned belief keeps b's Path
// for edge bookkeeping even though its Mean/Cov are now 4D; it is meant for
// reading off ground coordinates/covariance, not for further on-road
// dispatch — callers needing a path-consistent belief use
// GetStateBeliefOnPath(geo.NullPath()) instead.
func (b *PathStateBelief) GetGroundBelief() *PathStateBelief {
	if !b.IsOnRoad() {
		return &PathStateBelief{Path: b.Path, Mean: cloneVec(b.Mean), Cov: matutil.Symmetrize(b.Cov)}
	}
	pe := b.GetEdge()
	gs, cov4, _ := roadToGround(pe, b.Mean, b.Cov)
	mean := mat.NewVecDense(4, []float64{gs.X, gs.DX, gs.Y, gs.DY})
	return &PathStateBelief{Path: b.Path, Mean: mean, Cov: cov4}
}

// GetStateBeliefOnPath rewraps b's Gaussian onto newPath, converting
// coordinates (and sign, via the ground intermediate) when newPath's
// on/off-road character differs from b's. It fails with
// geo.ErrUnrepresentable when the converted position does not fit newPath
// within geo.EdgeLengthErrorTolerance, per spec.md §4.4.
func (b *PathStateBelief) GetStateBeliefOnPath(newPath geo.Path) (*PathStateBelief, error) {
	switch {
	case !b.IsOnRoad() && !newPath.IsOnRoad():
		return &PathStateBelief{Path: newPath, Mean: cloneVec(b.Mean), Cov: matutil.Symmetrize(b.Cov)}, nil

	case b.IsOnRoad() && !newPath.IsOnRoad():
		pe := b.GetEdge()
		gs, cov4, _ := roadToGround(pe, b.Mean, b.Cov)
		mean := mat.NewVecDense(4, []float64{gs.X, gs.DX, gs.Y, gs.DY})
		return &PathStateBelief{Path: newPath, Mean: mean, Cov: cov4}, nil

	case !b.IsOnRoad() && newPath.IsOnRoad():
		gs := geo.GroundState{X: b.Mean.AtVec(0), DX: b.Mean.AtVec(1), Y: b.Mean.AtVec(2), DY: b.Mean.AtVec(3)}
		mean, cov2, err := groundToRoad(newPath, gs, b.Cov)
		if err != nil {
			return nil, err
		}
		return &PathStateBelief{Path: newPath, Mean: mean, Cov: cov2}, nil

	default: // both on-road
		oldEdge := b.GetEdge()
		gs, _, rg := roadToGround(oldEdge, b.Mean, b.Cov)
		newS, newPe, err := geo.ProjectGroundToPath(newPath, gs, false)
		if err != nil {
			return nil, err
		}
		adjusted, ok := newPath.AdjustOppositeDirection(newS.S)
		if !ok {
			return nil, geo.ErrUnrepresentable
		}
		newS.S = adjusted

		gr := groundToRoadJacobianMat(newPe, gs)
		jac := mat.NewDense(2, 2, nil)
		jac.Mul(gr, rg)
		newCov := mat.NewSymDense(2, nil)
		var tmp mat.Dense
		tmp.Mul(jac, b.Cov)
		var full mat.Dense
		full.Mul(&tmp, jac.T())
		for i := 0; i < 2; i++ {
			for j := i; j < 2; j++ {
				newCov.SetSym(i, j, full.At(i, j))
			}
		}
		mean := mat.NewVecDense(2, []float64{newS.S, newS.DS})
		return &PathStateBelief{Path: newPath, Mean: mean, Cov: matutil.Symmetrize(newCov)}, nil
	}
}

// roadToGround converts a road-coordinate (mean, cov) on PathEdge pe to its
// 4D ground projection, also returning the 4x2 Jacobian (as a *mat.Dense)
// used by callers chaining a further ground->road conversion.
func roadToGround(pe geo.PathEdge, mean *mat.VecDense, cov *mat.SymDense) (geo.GroundState, *mat.SymDense, *mat.Dense) {
	roadState := geo.RoadState{S: mean.AtVec(0), DS: mean.AtVec(1)}
	gs := geo.ProjectPathToGround(pe, roadState, false)

	localS := roadState.S - pe.DistToStartOfEdge
	j := geo.RoadToGroundJacobian(pe.Edge, localS, pe.IsBackward)
	jac := mat.NewDense(4, 2, []float64{
		j[0][0], j[0][1],
		j[1][0], j[1][1],
		j[2][0], j[2][1],
		j[3][0], j[3][1],
	})

	var tmp mat.Dense
	tmp.Mul(jac, cov)
	var full mat.Dense
	full.Mul(&tmp, jac.T())
	cov4 := mat.NewSymDense(4, nil)
	for i := 0; i < 4; i++ {
		for k := i; k < 4; k++ {
			cov4.SetSym(i, k, full.At(i, k))
		}
	}
	return gs, cov4, jac
}

// groundToRoad converts a ground-coordinate (mean, cov) onto path, returning
// the resulting road-coordinate mean/cov. Used only when the source is
// genuinely off-road (dim 4 cov); the on-road-to-on-road path goes through
// roadToGround + groundToRoadJacobianMat to reuse the already-snapped edge.
func groundToRoad(path geo.Path, gs geo.GroundState, cov *mat.SymDense) (*mat.VecDense, *mat.SymDense, error) {
	roadState, pe, err := geo.ProjectGroundToPath(path, gs, false)
	if err != nil {
		return nil, nil, err
	}
	adjusted, ok := path.AdjustOppositeDirection(roadState.S)
	if !ok {
		return nil, nil, geo.ErrUnrepresentable
	}
	roadState.S = adjusted

	jac := groundToRoadJacobianMat(pe, gs)
	var tmp mat.Dense
	tmp.Mul(jac, cov)
	var full mat.Dense
	full.Mul(&tmp, jac.T())
	cov2 := mat.NewSymDense(2, nil)
	for i := 0; i < 2; i++ {
		for k := i; k < 2; k++ {
			cov2.SetSym(i, k, full.At(i, k))
		}
	}
	mean := mat.NewVecDense(2, []float64{roadState.S, roadState.DS})
	return mean, cov2, nil
}

func groundToRoadJacobianMat(pe geo.PathEdge, gs geo.GroundState) *mat.Dense {
	j := geo.GroundToRoadJacobian(pe.Edge, geo.Point{X: gs.X, Y: gs.Y}, pe.IsBackward)
	return mat.NewDense(2, 4, []float64{
		j[0][0], j[0][1], j[0][2], j[0][3],
		j[1][0], j[1][1], j[1][2], j[1][3],
	})
}

func cloneVec(v *mat.VecDense) *mat.VecDense {
	out := mat.NewVecDense(v.Len(), nil)
	out.CopyVec(v)
	return out
}

// Predict runs the Kalman predict step of filter's model matching path's
// on/off-road character over elapsed time dt, converting prior to that
// character first if it differs, per spec.md §4.4.
func Predict(filter *kalman.RoadTrackingFilter, prior *PathStateBelief, path geo.Path, dt float64) (*PathStateBelief, error) {
	converted, err := prior.GetStateBeliefOnPath(path)
	if err != nil {
		return nil, err
	}
	var mean *mat.VecDense
	var cov *mat.SymDense
	if path.IsOnRoad() {
		mean, cov = filter.PredictRoad(converted.Mean, converted.Cov, dt)
	} else {
		mean, cov = filter.PredictGround(converted.Mean, converted.Cov, dt)
	}
	return &PathStateBelief{Path: path, Mean: mean, Cov: cov}, nil
}

// Measure runs the Kalman update step against obs (a 2D ground-coordinate
// position fix), routing through the road pseudo-observation of spec.md
// §4.3 when prior is on-road. edge must be the PathEdge carrying prior's
// mean; passing a different edge is a contract violation per §4.3.
func Measure(filter *kalman.RoadTrackingFilter, prior *PathStateBelief, obs geo.Point, edge geo.PathEdge) *PathStateBelief {
	if !prior.IsOnRoad() {
		mean, cov := filter.MeasureGround(prior.Mean, prior.Cov, obs)
		return &PathStateBelief{Path: prior.Path, Mean: mean, Cov: cov}
	}
	roadObs := kalman.NewRoadObservation(edge.Edge, edge.IsBackward, obs, filter.ObsCov)
	mean, cov := filter.MeasureRoad(prior.Mean, prior.Cov, roadObs)
	return &PathStateBelief{Path: prior.Path, Mean: mean, Cov: cov}
}
