package qpnnls

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestSolveUnconstrained1D(t *testing.T) {
	// minimize 0.5*h*x^2 + c*x, h=2, c=-4 -> x* = -c/h = 2.
	problem := DenseQPProblem{
		H:  mat.NewDense(1, 1, []float64{2}),
		C:  []float64{-4},
		Up: []float64{math.Inf(1)},
		Lw: []float64{math.Inf(-1)},
	}
	out, err := Solve(problem, DefaultUserSettings(), nil)
	require.NoError(t, err)
	require.Equal(t, AllDualPositive, out.DualExitStatus)
	require.Len(t, out.X, 1)
	assert.InDelta(t, 2.0, out.X[0], 1e-6)
}

func TestSolveBoundActive1D(t *testing.T) {
	// minimize 0.5*x^2 + c*x, c=5, lw=0 -> unconstrained minimum is x=-5,
	// clamped by the lower bound to x*=0.
	problem := DenseQPProblem{
		H:  mat.NewDense(1, 1, []float64{1}),
		C:  []float64{5},
		Up: []float64{math.Inf(1)},
		Lw: []float64{0},
	}
	out, err := Solve(problem, DefaultUserSettings(), nil)
	require.NoError(t, err)
	require.Equal(t, AllDualPositive, out.DualExitStatus)
	require.Len(t, out.X, 1)
	assert.InDelta(t, 0.0, out.X[0], 1e-6)
}

func TestSolveEqualityConstrained2D(t *testing.T) {
	// minimize 0.5*(x1^2+x2^2) s.t. x1+x2=1 -> x1=x2=0.5.
	problem := DenseQPProblem{
		H: mat.NewDense(2, 2, []float64{
			1, 0,
			0, 1,
		}),
		C:  []float64{0, 0},
		F:  mat.NewDense(1, 2, []float64{1, 1}),
		G:  []float64{1},
		Up: []float64{math.Inf(1), math.Inf(1)},
		Lw: []float64{math.Inf(-1), math.Inf(-1)},
	}
	out, err := Solve(problem, DefaultUserSettings(), nil)
	require.NoError(t, err)
	require.Equal(t, AllDualPositive, out.DualExitStatus)
	require.Len(t, out.X, 2)
	assert.InDelta(t, 0.5, out.X[0], 1e-6)
	assert.InDelta(t, 0.5, out.X[1], 1e-6)
}

func TestSolveRedundantInequalityStillConverges(t *testing.T) {
	// minimize 0.5*x^2 + x s.t. x<=1 twice over (A's two rows are
	// identical): redundancy must not derail convergence to the
	// unconstrained minimum x*=-1, which already satisfies both copies.
	problem := DenseQPProblem{
		H: mat.NewDense(1, 1, []float64{1}),
		C: []float64{1},
		A: mat.NewDense(2, 1, []float64{1, 1}),
		B: []float64{1, 1},
		Up: []float64{math.Inf(1)},
		Lw: []float64{math.Inf(-1)},
	}
	out, err := Solve(problem, DefaultUserSettings(), nil)
	require.NoError(t, err)
	require.Equal(t, AllDualPositive, out.DualExitStatus)
	assert.InDelta(t, -1.0, out.X[0], 1e-6)
}

func TestSolveInfeasibleDetected(t *testing.T) {
	// x<=0 and x>=1 (i.e. -x<=-1) together admit no feasible point.
	problem := DenseQPProblem{
		H:  mat.NewDense(1, 1, []float64{1}),
		C:  []float64{0},
		A:  mat.NewDense(2, 1, []float64{1, -1}),
		B:  []float64{0, -1},
		Up: []float64{math.Inf(1)},
		Lw: []float64{math.Inf(-1)},
	}
	out, err := Solve(problem, DefaultUserSettings(), nil)
	require.NoError(t, err)
	assert.Equal(t, Infeasibility, out.DualExitStatus)
}

func TestSolveSparseConfigurationRejected(t *testing.T) {
	settings := DefaultUserSettings()
	settings.Configuration = Sparse
	_, err := Solve(DenseQPProblem{}, settings, nil)
	assert.ErrorIs(t, err, ErrSparseUnsupported)
}

func TestSolveReportsTimings(t *testing.T) {
	problem := DenseQPProblem{
		H:  mat.NewDense(1, 1, []float64{2}),
		C:  []float64{-4},
		Up: []float64{math.Inf(1)},
		Lw: []float64{math.Inf(-1)},
	}
	out, err := Solve(problem, DefaultUserSettings(), nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, out.NDualIterations, 0)
}
