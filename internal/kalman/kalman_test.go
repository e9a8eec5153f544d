package kalman

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func smallQ(dim int, v float64) *mat.SymDense {
	q := mat.NewSymDense(dim, nil)
	for i := 0; i < dim; i++ {
		q.SetSym(i, i, v)
	}
	return q
}

func TestRoadTrackingFilter_PredictAdvancesPositionByVelocity(t *testing.T) {
	f := NewRoadModel(smallQ(2, 0.01))
	mean := mat.NewVecDense(2, []float64{0, 2})
	cov := smallQ(2, 0.1)

	newMean, newCov := f.Predict(mean, cov, 1.0)
	assert.InDelta(t, 2.0, newMean.AtVec(0), 1e-9)
	assert.InDelta(t, 2.0, newMean.AtVec(1), 1e-9)
	assert.Greater(t, newCov.At(0, 0), cov.At(0, 0))
}

func TestRoadTrackingFilter_MeasurePullsTowardObservation(t *testing.T) {
	f := NewRoadModel(smallQ(2, 0.01))
	mean := mat.NewVecDense(2, []float64{0, 1})
	cov := smallQ(2, 1.0)

	o := mat.NewDense(1, 2, []float64{1, 0})
	r := mat.NewSymDense(1, []float64{0.01})
	z := mat.NewVecDense(1, []float64{5})

	newMean, newCov := f.Measure(mean, cov, o, r, z)
	assert.Greater(t, newMean.AtVec(0), 0.0)
	assert.Less(t, newMean.AtVec(0), 5.0)
	assert.Less(t, newCov.At(0, 0), cov.At(0, 0))
}

func TestGroundTrackingFilter_PredictAdvancesBothAxes(t *testing.T) {
	f := NewGroundModel(smallQ(4, 0.01))
	mean := mat.NewVecDense(4, []float64{0, 1, 0, -1})
	cov := smallQ(4, 0.1)

	newMean, _ := f.Predict(mean, cov, 2.0)
	assert.InDelta(t, 2.0, newMean.AtVec(0), 1e-9)
	assert.InDelta(t, -2.0, newMean.AtVec(2), 1e-9)
}

func TestPredict_PanicsOnDimensionMismatch(t *testing.T) {
	f := NewRoadModel(smallQ(2, 0.01))
	badMean := mat.NewVecDense(3, []float64{0, 0, 0})
	badCov := smallQ(3, 0.1)
	assert.Panics(t, func() { f.Predict(badMean, badCov, 1.0) })
}
