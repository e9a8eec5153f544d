package estimator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinemap/roadtrack/internal/config"
	"github.com/kinemap/roadtrack/internal/geo"
	"github.com/kinemap/roadtrack/internal/graph"
	"github.com/kinemap/roadtrack/internal/kalman"
)

func TestInitializeParticles_EmptyGraphYieldsOnlyOffRoadParticles(t *testing.T) {
	g := graph.NewMemGraph()
	cfg := config.EmptyVehicleStateInitialParameters()
	u := NewUpdater(g, cfg)

	obs := &GpsObservation{TimestampMillis: 1000, ProjectedPoint: geo.Point{X: 0, Y: 0}}
	particles, err := u.InitializeParticles(obs)

	require.NoError(t, err)
	assert.Len(t, particles, cfg.GetNumParticles())
	for _, p := range particles {
		assert.False(t, p.Belief.IsOnRoad())
	}
}

func TestInitializeParticles_NearbyEdgeYieldsMixedPopulation(t *testing.T) {
	edge := straightEdge("e0", 1000)
	g := graph.NewMemGraph()
	g.AddEdge(edge)

	cfg := config.EmptyVehicleStateInitialParameters()
	u := NewUpdater(g, cfg)

	obs := &GpsObservation{TimestampMillis: 1000, ProjectedPoint: geo.Point{X: 10, Y: 0}}
	particles, err := u.InitializeParticles(obs)

	require.NoError(t, err)
	assert.Len(t, particles, cfg.GetNumParticles())

	var onRoad, offRoad int
	for _, p := range particles {
		if p.Belief.IsOnRoad() {
			onRoad++
		} else {
			offRoad++
		}
	}
	assert.Greater(t, onRoad, 0)
}

func TestInitializeParticles_EachParticleHasIndependentFilter(t *testing.T) {
	edge := straightEdge("e0", 1000)
	g := graph.NewMemGraph()
	g.AddEdge(edge)

	cfg := config.EmptyVehicleStateInitialParameters()
	u := NewUpdater(g, cfg)

	obs := &GpsObservation{TimestampMillis: 1000, ProjectedPoint: geo.Point{X: 10, Y: 0}}
	particles, err := u.InitializeParticles(obs)
	require.NoError(t, err)

	seen := map[*kalman.ErrorEstimatingRoadTrackingFilter]bool{}
	for _, p := range particles {
		assert.False(t, seen[p.Filter], "resampling must fork a distinct Filter per draw")
		seen[p.Filter] = true
	}
	assert.Len(t, seen, len(particles))
}
