package estimator

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeLogWeights_SumsToOne(t *testing.T) {
	probs := normalizeLogWeights([]float64{-1, -2, -3})
	sum := 0.0
	for _, p := range probs {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestNormalizeLogWeights_AllImpossibleFallsBackToUniform(t *testing.T) {
	probs := normalizeLogWeights([]float64{math.Inf(-1), math.Inf(-1)})
	assert.InDelta(t, 0.5, probs[0], 1e-12)
	assert.InDelta(t, 0.5, probs[1], 1e-12)
}

func TestWeightedSampleWithReplacement_DegenerateWeightsAlwaysPicksThatIndex(t *testing.T) {
	weights := []float64{0, 1, 0}
	rnd := rand.New(rand.NewSource(7))
	indices := weightedSampleWithReplacement(weights, 20, rnd)
	for _, idx := range indices {
		assert.Equal(t, 1, idx)
	}
}

func TestWeightedSampleWithReplacement_CanRepeatTheSameIndex(t *testing.T) {
	weights := []float64{0.5, 0.5}
	rnd := rand.New(rand.NewSource(1))
	indices := weightedSampleWithReplacement(weights, 50, rnd)
	counts := map[int]int{}
	for _, idx := range indices {
		counts[idx]++
	}
	assert.Len(t, indices, 50)
	assert.Greater(t, max(counts[0], counts[1]), 1)
}
