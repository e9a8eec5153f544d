package estimator

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat/sampleuv"
)

// normalizeLogWeights turns a set of log-weights into a probability vector
// via the log-sum-exp trick, so candidates many orders of magnitude apart in
// likelihood don't underflow to all-zero before normalization. A weight of
// -Inf survives as a true zero probability.
func normalizeLogWeights(logWeights []float64) []float64 {
	max := math.Inf(-1)
	for _, w := range logWeights {
		if w > max {
			max = w
		}
	}
	out := make([]float64, len(logWeights))
	if math.IsInf(max, -1) {
		// Every candidate is impossible; fall back to a uniform distribution
		// rather than returning an all-zero vector no sampler can draw from.
		uniform := 1.0 / float64(len(logWeights))
		for i := range out {
			out[i] = uniform
		}
		return out
	}
	sum := 0.0
	for i, w := range logWeights {
		out[i] = math.Exp(w - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// weightedSampleWithReplacement draws n indices into weights, each drawn
// independently and proportionally to weights — the bootstrap resampling
// primitive both InitializeParticles and Resample use. Each draw builds a
// fresh sampleuv.Weighted over the full (unmutated) weight vector, so a
// single draw's internal bookkeeping (Weighted samples without replacement
// within its own lifetime) never carries over between draws: every pick
// sees the same original distribution, which is what sampling "with
// replacement" means here.
func weightedSampleWithReplacement(weights []float64, n int, rnd *rand.Rand) []int {
	out := make([]int, n)
	for i := range out {
		w := sampleuv.NewWeighted(append([]float64(nil), weights...), rnd)
		idx, ok := w.Take()
		if !ok {
			idx = 0
		}
		out[i] = idx
	}
	return out
}
