// Package matutil provides the shared numerical primitives the estimator
// core's Kalman and covariance-learning machinery both need: positive
// semi-definite matrix square roots, their pseudoinverses, and
// inverse-Wishart covariance priors/posteriors. It is the "math context"
// design notes' passed-explicitly replacement for a process-wide
// StatisticsUtil/MatrixFactory: a handful of pure functions over
// gonum.org/v1/gonum/mat values, no package-level state.
package matutil

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// EigenvalueTolerance is the magnitude below which an eigenvalue is treated
// as numerical noise around zero, per spec.md §4.2/§7. Eigenvalues more
// negative than -EigenvalueTolerance indicate a genuine bug upstream (a
// non-PSD matrix reached this code) and are a fail-fast condition, not a
// recoverable one.
const EigenvalueTolerance = 1e-7

// NonPositiveSemiDefiniteError reports that a matrix expected to be positive
// semi-definite has an eigenvalue more negative than -EigenvalueTolerance.
// Per spec.md §7 this is an internal invariant violation: it is never
// returned to be handled by a caller's control flow, only wrapped in a
// panic, since larger negative eigenvalues cannot arise from legitimate
// numerical rounding and signal a bug in whatever produced the matrix.
type NonPositiveSemiDefiniteError struct {
	Eigenvalue float64
}

func (e *NonPositiveSemiDefiniteError) Error() string {
	return fmt.Sprintf("matutil: matrix is not positive semi-definite (eigenvalue %g < -%g)", e.Eigenvalue, EigenvalueTolerance)
}

// symmetricEigen decomposes sym and returns its eigenvalues clamped at zero
// (values with magnitude <= EigenvalueTolerance snapped to 0) and the
// eigenvector matrix, or panics if an eigenvalue is more negative than
// -EigenvalueTolerance.
func symmetricEigen(sym mat.Symmetric) (values []float64, vectors *mat.Dense) {
	var eig mat.EigenSym
	ok := eig.Factorize(sym, true)
	if !ok {
		panic("matutil: eigendecomposition failed to converge")
	}
	raw := eig.Values(nil)
	values = make([]float64, len(raw))
	for i, v := range raw {
		if v < -EigenvalueTolerance {
			panic(&NonPositiveSemiDefiniteError{Eigenvalue: v})
		}
		if math.Abs(v) <= EigenvalueTolerance {
			values[i] = 0
		} else {
			values[i] = v
		}
	}
	vectors = &mat.Dense{}
	eig.VectorsTo(vectors)
	return values, vectors
}

// PSDSqrt returns the symmetric positive semi-definite square root F of sym
// (F = V*diag(sqrt(lambda))*V^T from sym's eigendecomposition), so that
// F*F == sym up to the eigenvalue floor of spec.md §4.2. Eigenvalues with
// magnitude <= EigenvalueTolerance are clamped to zero before the square
// root is taken; an eigenvalue more negative than that panics, per
// NonPositiveSemiDefiniteError.
func PSDSqrt(sym mat.Symmetric) *mat.SymDense {
	return rootOfSemiDefinite(sym, 1)
}

// PseudoInverseSqrt returns F+, the Moore-Penrose pseudoinverse of sym's
// symmetric PSD square root, satisfying F+*F == I on the range of F. This
// is the "rootOfSemiDefinite(..., true, -1)" operation from spec.md §9: the
// same eigendecomposition as PSDSqrt, but inverting (and zeroing, for
// directions below tolerance) the eigenvalues instead of square-rooting
// them directly.
func PseudoInverseSqrt(sym mat.Symmetric) *mat.SymDense {
	return rootOfSemiDefinite(sym, -1)
}

// rootOfSemiDefinite computes sym's eigendecomposition-based signed root:
// signExponent=1 for the square root, signExponent=-1 for the pseudoinverse
// square root. Both share the same eigenvalue floor/fail-fast behavior.
func rootOfSemiDefinite(sym mat.Symmetric, signExponent int) *mat.SymDense {
	n := sym.SymmetricDim()
	values, vectors := symmetricEigen(sym)

	diag := mat.NewDiagDense(n, nil)
	for i, v := range values {
		switch {
		case v == 0:
			diag.SetDiag(i, 0)
		case signExponent > 0:
			diag.SetDiag(i, math.Sqrt(v))
		default:
			diag.SetDiag(i, 1/math.Sqrt(v))
		}
	}

	var vd mat.Dense
	vd.Mul(vectors, diag)
	var result mat.Dense
	result.Mul(&vd, vectors.T())

	sym2 := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			avg := (result.At(i, j) + result.At(j, i)) / 2
			sym2.SetSym(i, j, avg)
		}
	}
	return sym2
}

// AssertPositiveSemiDefinite panics with NonPositiveSemiDefiniteError if sym
// has an eigenvalue more negative than -EigenvalueTolerance. Used as a
// post-condition check after predict/update/covariance-learning steps, per
// spec.md §8's "Positive-definite covariance" testable property.
func AssertPositiveSemiDefinite(sym mat.Symmetric) {
	symmetricEigen(sym) // panics internally on violation
}

// Symmetrize returns (m + m^T) / 2 as a SymDense, guarding against small
// asymmetries accumulated by repeated floating point matrix products.
func Symmetrize(m mat.Matrix) *mat.SymDense {
	r, c := m.Dims()
	if r != c {
		panic("matutil: Symmetrize requires a square matrix")
	}
	sym := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < r; j++ {
			sym.SetSym(i, j, (m.At(i, j)+m.At(j, i))/2)
		}
	}
	return sym
}
