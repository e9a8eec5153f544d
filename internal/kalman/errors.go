package kalman

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/kinemap/roadtrack/internal/matutil"
)

// ErrNonPositiveSemiDefinite is the sentinel wrapped into the panic raised
// when a covariance this package produced fails the PSD check — a genuine
// invariant violation per spec.md §7, never returned through normal control
// flow, and never raised for the ordinary clamped-eigenvalue case (that one
// is silent, per matutil.EigenvalueTolerance).
var ErrNonPositiveSemiDefinite = errors.New("kalman: covariance is not positive semi-definite")

// checkPSD panics with ErrNonPositiveSemiDefinite (wrapping matutil's
// detail) if cov has an eigenvalue more negative than
// -matutil.EigenvalueTolerance.
func checkPSD(cov *mat.SymDense) {
	defer func() {
		if r := recover(); r != nil {
			panic(fmt.Errorf("%w: %v", ErrNonPositiveSemiDefinite, r))
		}
	}()
	matutil.AssertPositiveSemiDefinite(cov)
}
