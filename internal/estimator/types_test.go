package estimator

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestGpsObservation_DtSeconds_NoPreviousUsesDefault(t *testing.T) {
	obs := &GpsObservation{TimestampMillis: 1000}
	assert.Equal(t, 2.5, obs.DtSeconds(2.5))
}

func TestGpsObservation_DtSeconds_DerivesFromPrevious(t *testing.T) {
	prev := &GpsObservation{TimestampMillis: 1000}
	obs := &GpsObservation{TimestampMillis: 2500, Previous: prev}
	assert.InDelta(t, 1.5, obs.DtSeconds(1.0), 1e-12)
}

func TestGpsObservation_DtSeconds_NonIncreasingFallsBackToDefault(t *testing.T) {
	prev := &GpsObservation{TimestampMillis: 2000}
	obs := &GpsObservation{TimestampMillis: 1000, Previous: prev}
	assert.Equal(t, 3.0, obs.DtSeconds(3.0))
}

func TestVehicleState_WithParent_TruncatesAncestryToOneGeneration(t *testing.T) {
	grandparent := &VehicleState{ID: uuid.New()}
	parent := &VehicleState{ID: uuid.New(), Parent: grandparent}
	child := parent.withParent()

	assert.Equal(t, parent.ID, child.ID)
	assert.Nil(t, child.Parent)
}
