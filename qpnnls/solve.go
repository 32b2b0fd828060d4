package qpnnls

import (
	"time"

	"github.com/KirillM89/nqp/linsolve"
	"github.com/KirillM89/nqp/numeric"
	"github.com/KirillM89/nqp/qplog"
)

// Solve converts problem into canonical NNLS data, runs the dual active-set
// loop to one of spec.md §4.4's termination conditions, and reports the
// recovered primal/dual point together with diagnostics (spec.md §6,
// "Solver entry").
//
// sink may be nil (equivalent to qplog.NopSink{}).
func Solve(problem DenseQPProblem, settings UserSettings, sink qplog.Sink) (SolverOutput, error) {
	if settings.Configuration == Sparse {
		return SolverOutput{}, ErrSparseUnsupported
	}
	if sink == nil {
		sink = qplog.NopSink{}
	}

	data, err := Prepare(problem, settings)
	if err != nil {
		return SolverOutput{}, err
	}

	sink.DumpInit(qplog.InitData{
		Chol:    data.Chol,
		CholInv: data.CholInv,
		M:       data.M,
		S:       data.S,
		C:       data.PermutedC,
		B:       data.B,
		TChol:   data.Timings.Chol,
		TInv:    data.Timings.Inv,
		TM:      data.Timings.M,
	})

	solver := linsolve.NewLDLTSolver(data.M, data.S)
	dual := NewDualLoop(solver, data, settings, sink)

	tSolveStart := time.Now()
	result := dual.Run()
	tSolve := time.Since(tSolveStart)

	gap := dualityGap(problem, result.X, result.Y)

	return SolverOutput{
		DualExitStatus:   result.DualStatus,
		PrimalExitStatus: result.PrimalStatus,
		NDualIterations:  result.Iterations,
		MaxViolation:     result.MaxViolation,
		DualityGap:       gap,
		Timings: TimeIntervals{
			Chol:  data.Timings.Chol,
			Inv:   data.Timings.Inv,
			M:     data.Timings.M,
			Solve: tSolve,
		},
		X: result.X,
		Y: result.Y,
	}, nil
}

// dualityGap is a complementary-slackness surrogate: for the recovered
// primal x and multiplier vector y, it sums y_i times the corresponding
// constraint's slack (b_i - A_i x), which is zero at an exact solution and
// otherwise measures how far the active set is from complementarity
// (spec.md §6, "Duality gap"). x/y are nil on failed solves, for which the
// gap is reported as zero.
func dualityGap(problem DenseQPProblem, x, y []float64) float64 {
	if x == nil || y == nil {
		return 0
	}
	astack, b, _ := stackConstraints(problem, len(x))
	ax, err := numeric.MultMatVec(astack, x)
	if err != nil {
		return 0
	}
	r, _ := astack.Dims()
	var gap float64
	for i := 0; i < r && i < len(y); i++ {
		gap += y[i] * (b[i] - ax[i])
	}
	return gap
}
