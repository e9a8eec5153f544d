package matutil

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// InverseWishart is a conjugate prior/posterior over a covariance matrix, as
// used by spec.md §4.8 to learn the observation and process noise
// covariances online. Psi is the inverse scale matrix and Nu the degrees of
// freedom; the distribution's mean is Psi/(Nu-dim-1) for Nu > dim+1.
//
// gonum ships the forward Wishart sampler (stat/distmv.Wishart) but not its
// inverse, so Sample draws a Wishart(Psi^-1, Nu) variate and inverts it
// rather than implementing inverse-Wishart sampling from scratch.
type InverseWishart struct {
	Psi *mat.SymDense
	Nu  float64
}

// NewInverseWishartPrior builds the prior inverse-Wishart over a dim(scale)
// square covariance matrix whose mean is exactly diag(scale), per spec.md
// §4.8's prior-construction rule: inverse scale = diag(scale)*(dof-dim-1).
// dof must exceed dim+1 for the mean to exist; NewInverseWishartPrior panics
// otherwise, since a prior with an undefined mean cannot seed the filter.
func NewInverseWishartPrior(scale []float64, dof float64) *InverseWishart {
	dim := len(scale)
	factor := dof - float64(dim) - 1
	if factor <= 0 {
		panic(fmt.Sprintf("matutil: inverse-Wishart dof %g must exceed dim+1 (%d)", dof, dim+1))
	}
	psi := mat.NewSymDense(dim, nil)
	for i, s := range scale {
		psi.SetSym(i, i, s*factor)
	}
	return &InverseWishart{Psi: psi, Nu: dof}
}

// Dim returns the dimension of the covariance matrix this prior/posterior
// describes.
func (iw *InverseWishart) Dim() int {
	return iw.Psi.SymmetricDim()
}

// Mean returns Psi/(Nu-dim-1), the inverse-Wishart distribution's mean.
func (iw *InverseWishart) Mean() *mat.SymDense {
	dim := iw.Dim()
	factor := iw.Nu - float64(dim) - 1
	if factor <= 0 {
		panic(fmt.Sprintf("matutil: inverse-Wishart mean undefined at Nu=%g, dim=%d", iw.Nu, dim))
	}
	out := mat.NewSymDense(dim, nil)
	for i := 0; i < dim; i++ {
		for j := i; j < dim; j++ {
			out.SetSym(i, j, iw.Psi.At(i, j)/factor)
		}
	}
	return out
}

// Update folds one state-error residual e into the posterior, per spec.md
// §4.8 step 3: Nu += 1, Psi += e*e^T. e's length must equal iw.Dim().
func (iw *InverseWishart) Update(e *mat.VecDense) {
	dim := e.Len()
	if dim != iw.Dim() {
		panic(fmt.Sprintf("matutil: residual dimension %d does not match inverse-Wishart dimension %d", dim, iw.Dim()))
	}
	iw.Nu++
	for i := 0; i < dim; i++ {
		for j := i; j < dim; j++ {
			iw.Psi.SetSym(i, j, iw.Psi.At(i, j)+e.AtVec(i)*e.AtVec(j))
		}
	}
}

// Clone returns a deep copy, used when a particle forks and its covariance
// posterior must evolve independently of its parent's, per spec.md §5.
func (iw *InverseWishart) Clone() *InverseWishart {
	dim := iw.Dim()
	psi := mat.NewSymDense(dim, nil)
	for i := 0; i < dim; i++ {
		for j := i; j < dim; j++ {
			psi.SetSym(i, j, iw.Psi.At(i, j))
		}
	}
	return &InverseWishart{Psi: psi, Nu: iw.Nu}
}

// Sample draws a covariance matrix from the inverse-Wishart(Psi, Nu)
// distribution using rnd as its entropy source, by drawing a forward
// Wishart(Psi^-1, Nu) variate and inverting it.
func (iw *InverseWishart) Sample(rnd *rand.Rand) *mat.SymDense {
	dim := iw.Dim()
	var psiInv mat.Dense
	if err := psiInv.Inverse(iw.Psi); err != nil {
		panic(fmt.Sprintf("matutil: inverse-Wishart scale matrix is singular: %v", err))
	}
	v := Symmetrize(&psiInv)

	w, ok := distmv.NewWishart(v, iw.Nu, rnd)
	if !ok {
		panic("matutil: invalid Wishart parameters for inverse-Wishart sampling")
	}
	draw := w.Rand(nil)

	var drawInv mat.Dense
	if err := drawInv.Inverse(draw); err != nil {
		panic(fmt.Sprintf("matutil: Wishart draw is singular, cannot invert: %v", err))
	}
	return Symmetrize(&drawInv)
}
