package estimator

import (
	"testing"

	"gonum.org/v1/gonum/mat"
	"github.com/stretchr/testify/assert"

	"github.com/kinemap/roadtrack/internal/belief"
	"github.com/kinemap/roadtrack/internal/config"
	"github.com/kinemap/roadtrack/internal/geo"
	"github.com/kinemap/roadtrack/internal/kalman"
	"github.com/kinemap/roadtrack/internal/monitoring"
)

func smallCov4(v float64) *mat.SymDense {
	c := mat.NewSymDense(4, nil)
	for i := 0; i < 4; i++ {
		c.SetSym(i, i, v)
	}
	return c
}

func newOffRoadCovFilter() *kalman.ErrorEstimatingRoadTrackingFilter {
	cfg := config.EmptyVehicleStateInitialParameters()
	base := kalman.NewRoadTrackingFilter(cfg.BuildObsCovPrior(), cfg.BuildOnRoadCovPrior(), cfg.BuildOffRoadCovPrior(), nil)
	return kalman.NewErrorEstimatingRoadTrackingFilter(base)
}

func TestComputeLogLikelihood_HigherCloserToObservation(t *testing.T) {
	near := &VehicleState{Belief: belief.New(geo.NullPath(), mat.NewVecDense(4, []float64{0, 0, 0, 0}), smallCov4(1))}
	far := &VehicleState{Belief: belief.New(geo.NullPath(), mat.NewVecDense(4, []float64{50, 0, 50, 0}), smallCov4(1))}
	obs := &GpsObservation{ProjectedPoint: geo.Point{X: 0, Y: 0}}

	assert.Greater(t, ComputeLogLikelihood(near, obs), ComputeLogLikelihood(far, obs))
}

func TestCheckTrueObservationDeviation_WarnsBeyondThreshold(t *testing.T) {
	defer monitoring.SetLogger(nil)
	var logged string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		logged = format
		_ = v
	})

	truthFilter := newOffRoadCovFilter()
	truthFilter.Ground.Q = smallCov4(100) // wildly different from the learned prior's mean
	truth := &VehicleState{
		Belief: belief.New(geo.NullPath(), mat.NewVecDense(4, []float64{100, 0, 0, 0}), smallCov4(1)),
		Filter: truthFilter,
	}
	obs := &GpsObservation{ProjectedPoint: geo.Point{X: 100, Y: 0}, TrueObservation: truth}
	estimate := &VehicleState{
		Belief: belief.New(geo.NullPath(), mat.NewVecDense(4, []float64{0, 0, 0, 0}), smallCov4(1)),
		Filter: newOffRoadCovFilter(),
	}

	checkTrueObservationDeviation(estimate, obs)
	assert.NotEmpty(t, logged)
}

func TestCheckTrueObservationDeviation_SilentWithinThreshold(t *testing.T) {
	defer monitoring.SetLogger(nil)
	called := false
	monitoring.SetLogger(func(string, ...interface{}) { called = true })

	estimateFilter := newOffRoadCovFilter()
	truthFilter := newOffRoadCovFilter()
	truthFilter.Ground.Q = estimateFilter.OffRoadCovPrior.Mean() // matches the learned mean exactly

	truth := &VehicleState{
		Belief: belief.New(geo.NullPath(), mat.NewVecDense(4, []float64{100, 0, 0, 0}), smallCov4(1)),
		Filter: truthFilter,
	}
	obs := &GpsObservation{ProjectedPoint: geo.Point{X: 100, Y: 0}, TrueObservation: truth}
	estimate := &VehicleState{
		Belief: belief.New(geo.NullPath(), mat.NewVecDense(4, []float64{0, 0, 0, 0}), smallCov4(1)),
		Filter: estimateFilter,
	}

	checkTrueObservationDeviation(estimate, obs)
	assert.False(t, called)
}

func TestCheckTrueObservationDeviation_SilentWithoutTruth(t *testing.T) {
	defer monitoring.SetLogger(nil)
	called := false
	monitoring.SetLogger(func(string, ...interface{}) { called = true })

	estimate := &VehicleState{Belief: belief.New(geo.NullPath(), mat.NewVecDense(4, []float64{0, 0, 0, 0}), smallCov4(1))}
	checkTrueObservationDeviation(estimate, &GpsObservation{})
	assert.False(t, called)
}

func TestCheckTrueObservationDeviation_SilentWhenTruthHasNoFilter(t *testing.T) {
	defer monitoring.SetLogger(nil)
	called := false
	monitoring.SetLogger(func(string, ...interface{}) { called = true })

	truth := &VehicleState{Belief: belief.New(geo.NullPath(), mat.NewVecDense(4, []float64{100, 0, 0, 0}), smallCov4(1))}
	estimate := &VehicleState{
		Belief: belief.New(geo.NullPath(), mat.NewVecDense(4, []float64{0, 0, 0, 0}), smallCov4(1)),
		Filter: newOffRoadCovFilter(),
	}
	checkTrueObservationDeviation(estimate, &GpsObservation{TrueObservation: truth})
	assert.False(t, called)
}
