package kalman

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/kinemap/roadtrack/internal/geo"
	"github.com/kinemap/roadtrack/internal/matutil"
)

func TestNewRoadTrackingFilter_DeterministicUsesPriorMean(t *testing.T) {
	obsPrior := matutil.NewInverseWishartPrior([]float64{0.5, 0.5}, 10)
	onRoadPrior := matutil.NewInverseWishartPrior([]float64{0.1, 0.2}, 10)
	offRoadPrior := matutil.NewInverseWishartPrior([]float64{0.1, 0.2, 0.1, 0.2}, 10)

	f := NewRoadTrackingFilter(obsPrior, onRoadPrior, offRoadPrior, nil)

	assert.InDelta(t, 0.1, f.Road.Q.At(0, 0), 1e-12)
	assert.InDelta(t, 0.1, f.Ground.Q.At(0, 0), 1e-12)
	assert.InDelta(t, 0.5, f.ObsCov.At(0, 0), 1e-12)
}

func TestRoadTrackingFilter_MeasureRoad_UsesPseudoObservation(t *testing.T) {
	obsPrior := matutil.NewInverseWishartPrior([]float64{0.1, 0.1}, 10)
	onRoadPrior := matutil.NewInverseWishartPrior([]float64{0.01, 0.01}, 10)
	offRoadPrior := matutil.NewInverseWishartPrior([]float64{0.01, 0.01, 0.01, 0.01}, 10)
	f := NewRoadTrackingFilter(obsPrior, onRoadPrior, offRoadPrior, nil)

	edge := geo.NewInferredEdge("e1", []geo.Point{{X: 0, Y: 0}, {X: 10, Y: 0}}, false)
	obs := NewRoadObservation(edge, false, geo.Point{X: 5, Y: 0}, f.ObsCov)

	mean := mat.NewVecDense(2, []float64{4, 1})
	cov := mat.NewSymDense(2, []float64{1, 0, 0, 1})

	newMean, newCov := f.MeasureRoad(mean, cov, obs)
	assert.Greater(t, newMean.AtVec(0), 4.0)
	assert.Less(t, newCov.At(0, 0), cov.At(0, 0))
}

func TestRoadTrackingFilter_Clone_IsIndependent(t *testing.T) {
	obsPrior := matutil.NewInverseWishartPrior([]float64{0.1, 0.1}, 10)
	onRoadPrior := matutil.NewInverseWishartPrior([]float64{0.01, 0.01}, 10)
	offRoadPrior := matutil.NewInverseWishartPrior([]float64{0.01, 0.01, 0.01, 0.01}, 10)
	f := NewRoadTrackingFilter(obsPrior, onRoadPrior, offRoadPrior, nil)

	clone := f.Clone()
	clone.RebuildRoadCov(mat.NewSymDense(2, []float64{9, 0, 0, 9}))

	require.NotNil(t, clone)
	assert.NotEqual(t, f.Road.Q.At(0, 0), clone.Road.Q.At(0, 0))
}
