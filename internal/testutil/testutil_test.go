package testutil

import (
	"errors"
	"os"
	"os/exec"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestAssertNoError(t *testing.T) {
	t.Parallel()
	AssertNoError(t, nil)
}

func TestAssertNoError_FailurePath(t *testing.T) {
	t.Parallel()

	if os.Getenv("TESTUTIL_ASSERT_NO_ERROR_FAIL") == "1" {
		AssertNoError(t, errors.New("boom"))
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestAssertNoError_FailurePath$")
	cmd.Env = append(os.Environ(), "TESTUTIL_ASSERT_NO_ERROR_FAIL=1")
	err := cmd.Run()
	if err == nil {
		t.Fatal("expected subprocess to fail when error is non-nil")
	}
}

func TestAssertError(t *testing.T) {
	t.Parallel()
	AssertError(t, errors.New("test error"))
}

func TestAssertError_FailurePath(t *testing.T) {
	t.Parallel()

	if os.Getenv("TESTUTIL_ASSERT_ERROR_FAIL") == "1" {
		AssertError(t, nil)
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestAssertError_FailurePath$")
	cmd.Env = append(os.Environ(), "TESTUTIL_ASSERT_ERROR_FAIL=1")
	err := cmd.Run()
	if err == nil {
		t.Fatal("expected subprocess to fail when error is nil")
	}
}

func TestAssertVecClose_WithinTolerance(t *testing.T) {
	t.Parallel()
	got := mat.NewVecDense(2, []float64{1.0001, 2.0})
	want := mat.NewVecDense(2, []float64{1.0, 2.0})
	AssertVecClose(t, got, want, 1e-3)
}

func TestAssertSymClose_WithinTolerance(t *testing.T) {
	t.Parallel()
	got := mat.NewSymDense(2, []float64{1, 0, 0, 1.0001})
	want := mat.NewSymDense(2, []float64{1, 0, 0, 1})
	AssertSymClose(t, got, want, 1e-3)
}

func TestAssertPositiveDefinite_AcceptsIdentity(t *testing.T) {
	t.Parallel()
	AssertPositiveDefinite(t, mat.NewSymDense(3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}))
}
