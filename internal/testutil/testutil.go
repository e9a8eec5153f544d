// Package testutil provides shared test utilities and fixtures for the
// estimator core's numeric packages: vector/matrix closeness assertions and
// a positive-definiteness check. internal/matutil's tests use AssertSymClose
// in place of a bespoke element-by-element loop.
package testutil

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertVecClose fails the test unless got and want have the same length and
// every element matches within tol.
func AssertVecClose(t *testing.T, got, want *mat.VecDense, tol float64) {
	t.Helper()
	if got.Len() != want.Len() {
		t.Fatalf("vector length = %d, want %d", got.Len(), want.Len())
	}
	for i := 0; i < got.Len(); i++ {
		if diff := got.AtVec(i) - want.AtVec(i); diff < -tol || diff > tol {
			t.Errorf("vector[%d] = %g, want %g (tol %g)", i, got.AtVec(i), want.AtVec(i), tol)
		}
	}
}

// AssertSymClose fails the test unless got and want have the same dimension
// and every entry (full matrix, not just the upper triangle) matches within
// tol — catching an accidental asymmetry as well as a wrong value.
func AssertSymClose(t *testing.T, got, want mat.Symmetric, tol float64) {
	t.Helper()
	n := got.SymmetricDim()
	if n != want.SymmetricDim() {
		t.Fatalf("matrix dimension = %d, want %d", n, want.SymmetricDim())
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if diff := got.At(i, j) - want.At(i, j); diff < -tol || diff > tol {
				t.Errorf("matrix[%d][%d] = %g, want %g (tol %g)", i, j, got.At(i, j), want.At(i, j), tol)
			}
		}
	}
}

// AssertPositiveDefinite fails the test unless m is positive definite
// (Cholesky factorization succeeds), the invariant every posterior/predicted
// covariance in this module must hold.
func AssertPositiveDefinite(t *testing.T, m mat.Symmetric) {
	t.Helper()
	var chol mat.Cholesky
	if ok := chol.Factorize(m); !ok {
		t.Fatalf("matrix is not positive definite: %v", mat.Formatted(m))
	}
}
