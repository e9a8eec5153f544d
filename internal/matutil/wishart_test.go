package matutil

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestNewInverseWishartPrior_MeanMatchesScale(t *testing.T) {
	scale := []float64{2.0, 3.0}
	iw := NewInverseWishartPrior(scale, 10)
	mean := iw.Mean()
	assert.InDelta(t, scale[0], mean.At(0, 0), 1e-12)
	assert.InDelta(t, scale[1], mean.At(1, 1), 1e-12)
	assert.InDelta(t, 0, mean.At(0, 1), 1e-12)
}

func TestNewInverseWishartPrior_PanicsOnInsufficientDof(t *testing.T) {
	assert.Panics(t, func() { NewInverseWishartPrior([]float64{1.0}, 1.5) })
}

func TestInverseWishart_UpdateIncrementsNuAndPsi(t *testing.T) {
	iw := NewInverseWishartPrior([]float64{1.0, 1.0}, 10)
	beforeNu := iw.Nu
	beforePsi00 := iw.Psi.At(0, 0)
	beforePsi11 := iw.Psi.At(1, 1)

	iw.Update(mat.NewVecDense(2, []float64{1, 2}))

	assert.Equal(t, beforeNu+1, iw.Nu)
	assert.InDelta(t, beforePsi00+1, iw.Psi.At(0, 0), 1e-12)
	assert.InDelta(t, beforePsi11+4, iw.Psi.At(1, 1), 1e-12)
}

func TestInverseWishart_Clone_IsIndependent(t *testing.T) {
	iw := NewInverseWishartPrior([]float64{1.0}, 10)
	clone := iw.Clone()
	clone.Update(mat.NewVecDense(1, []float64{5}))
	assert.NotEqual(t, iw.Nu, clone.Nu)
	assert.NotEqual(t, iw.Psi.At(0, 0), clone.Psi.At(0, 0))
}

func TestInverseWishart_Sample_IsPositiveSemiDefinite(t *testing.T) {
	iw := NewInverseWishartPrior([]float64{2.0, 1.5}, 20)
	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		draw := iw.Sample(rnd)
		require.NotNil(t, draw)
		assert.NotPanics(t, func() { AssertPositiveSemiDefinite(draw) })
	}
}

func TestInverseWishart_SampleMeanApproximatesDistributionMean(t *testing.T) {
	iw := NewInverseWishartPrior([]float64{3.0}, 50)
	rnd := rand.New(rand.NewSource(42))
	var sum float64
	const n = 2000
	for i := 0; i < n; i++ {
		draw := iw.Sample(rnd)
		sum += draw.At(0, 0)
	}
	mean := sum / n
	assert.InDelta(t, iw.Mean().At(0, 0), mean, 0.5)
}
