package kalman

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/kinemap/roadtrack/internal/geo"
)

// RoadObservation is the 1D pseudo-observation of a 2D ground-coordinate GPS
// fix on a specific road edge, built per spec.md §4.3: lift the observation
// to 4D ground space at zero velocity with covariance O_g^T*Sigma_obs*O_g,
// project ground->road (useAbsVelocity=true) onto the edge carrying the
// posterior mean, then extract the position row via O_r.
type RoadObservation struct {
	Y   float64
	Cov float64
}

// NewRoadObservation builds the §4.3 pseudo-observation of ground point y
// (with ground-frame observation covariance obsCov) against edge. edge and
// isBackward must describe the PathEdge carrying the belief's current
// posterior mean — using a different edge is a contract violation per
// spec.md §4.3, and ProjectToRoad's ErrUnrepresentable result is treated the
// same way here: a programmer error, not a recoverable condition, since by
// construction the carrying edge always contains its own mean.
func NewRoadObservation(edge *geo.InferredEdge, isBackward bool, y geo.Point, obsCov *mat.SymDense) RoadObservation {
	zGround := geo.GroundState{X: y.X, Y: y.Y, DX: 0, DY: 0}

	covGround4 := mat.NewSymDense(4, nil)
	covGround4.SetSym(0, 0, obsCov.At(0, 0))
	covGround4.SetSym(0, 2, obsCov.At(0, 1))
	covGround4.SetSym(2, 2, obsCov.At(1, 1))

	roadState, err := geo.ProjectToRoad(zGround, edge, isBackward, true)
	if err != nil {
		panic(fmt.Sprintf("kalman: road observation edge does not carry the supplied point: %v", err))
	}

	jac := geo.GroundToRoadJacobian(edge, y, isBackward)
	var covS float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			covS += jac[0][i] * covGround4.At(i, j) * jac[0][j]
		}
	}

	return RoadObservation{Y: roadState.S, Cov: covS}
}
