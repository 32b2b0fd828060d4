package qpnnls

import (
	"github.com/KirillM89/nqp/linsolve"
	"github.com/KirillM89/nqp/numeric"
	"github.com/KirillM89/nqp/qplog"
	"gonum.org/v1/gonum/mat"
)

// DualLoop is the outer active-set loop: each iteration asks the
// incremental linear solver for trial multipliers, recovers the
// corresponding primal candidate, and grows the active set by the single
// most-violated inactive constraint (spec.md §4.4).
type DualLoop struct {
	solver   linsolve.CumulativeSolver
	data     *CanonicalData
	settings UserSettings
	sink     qplog.Sink
}

// NewDualLoop constructs the outer loop. sink may be qplog.NopSink{}.
func NewDualLoop(solver linsolve.CumulativeSolver, data *CanonicalData, settings UserSettings, sink qplog.Sink) *DualLoop {
	if sink == nil {
		sink = qplog.NopSink{}
	}
	return &DualLoop{solver: solver, data: data, settings: settings, sink: sink}
}

// Result is everything the dual loop produces: the recovered primal
// point (in the caller's original variable order), the full multiplier
// vector, the termination statuses of both loops, the iteration count
// actually used, and the maximum constraint violation of the returned x.
type Result struct {
	X                []float64
	Y                []float64
	DualStatus       DualLoopExitStatus
	PrimalStatus     PrimalLoopExitStatus
	Iterations       int
	MaxViolation     float64
}

// Run executes the outer loop to one of spec.md §4.4's termination
// conditions.
func (d *DualLoop) Run() Result {
	nConstraints := d.solver.NConstraints()
	primalStatus := DidntStart
	var last linsolve.LinSolverOutput
	var xPermuted []float64

	k := 0
	for ; k < d.settings.NDualIterations; k++ {
		out := d.solver.Solve()

		if out.NDNegative > 0 {
			primal := NewPrimalLoop(d.solver, d.data.NEquality, d.settings)
			primalOut, pStatus := primal.Run(out)
			primalStatus = pStatus
			if pStatus == SingularMatrix {
				return Result{DualStatus: DualUnknown, PrimalStatus: pStatus, Iterations: k}
			}
			out = primalOut
		}
		last = out

		x, err := RecoverX(d.data, out.Solution)
		if err != nil {
			return Result{DualStatus: DualUnknown, PrimalStatus: primalStatus, Iterations: k}
		}
		xPermuted = x

		iStar, _, anyInactive := d.mostViolated(x)
		_, worst, _ := d.allResidual(x)

		activeSet := make([]bool, nConstraints)
		for i := 0; i < nConstraints; i++ {
			activeSet[i] = d.solver.IsActive(i)
		}
		d.sink.DumpIteration(qplog.IterationData{
			Iteration: k,
			ActiveSet: activeSet,
			Primal:    x,
			Dual:      out.Solution,
			NewIndex:  iStar,
			Singular:  out.NDNegative > 0,
		})

		// Feasibility is decided from worst, the residual over every
		// constraint row (active or not): mostViolated's inactive-only
		// scan always comes back empty once the active set is full
		// (any==false by construction), so it alone can never tell a
		// genuinely optimal boundary point from a contradictory active set
		// (spec.md §7's "ALL_DUAL_POSITIVE implies Ax<=b+tol" invariant).
		if worst <= d.settings.OrigPrimalFsb {
			return d.finish(AllDualPositive, primalStatus, k, xPermuted, out.Solution)
		}

		// No inactive row left to grow the active set with (spec.md §4.4
		// step 6): a contradictory active set (e.g. x<=0 and x>=1 both
		// binding) still carries a real residual on at least one active
		// row, since the normal-equation solve cannot satisfy both
		// exactly — that's Infeasibility; a tiny residual within
		// NNLSResidNormFsb is numerical noise on an otherwise-exact
		// boundary solution — that's FullActiveSet.
		if nConstraints > 0 && d.solver.NActive() == nConstraints {
			if worst > d.settings.NNLSResidNormFsb {
				return d.finish(Infeasibility, primalStatus, k, xPermuted, out.Solution)
			}
			return d.finish(FullActiveSet, primalStatus, k, xPermuted, out.Solution)
		}

		if !anyInactive {
			return d.finish(AllDualPositive, primalStatus, k, xPermuted, out.Solution)
		}

		d.solver.Add(iStar)
		if d.settings.GammaDual == IncrementBySComponent {
			d.solver.SetGamma(d.solver.Gamma() + d.data.S[iStar])
		}
	}

	var y []float64
	if last.Solution != nil {
		y = last.Solution
	}
	return d.finish(DualIterationsExhausted, primalStatus, k, xPermuted, y)
}

// finish converts the permuted-variable-order x into the caller's
// original order and bundles the final Result.
func (d *DualLoop) finish(status DualLoopExitStatus, primalStatus PrimalLoopExitStatus, iterations int, xPermuted, y []float64) Result {
	var x []float64
	if xPermuted != nil {
		x = UnpermuteX(d.data, xPermuted)
	}
	maxViolation := 0.0
	if xPermuted != nil {
		_, v, _ := d.allResidual(xPermuted)
		if v > 0 {
			maxViolation = v
		}
	}
	return Result{
		X:            x,
		Y:            y,
		DualStatus:   status,
		PrimalStatus: primalStatus,
		Iterations:   iterations,
		MaxViolation: maxViolation,
	}
}

// mostViolated returns the inactive constraint index with the largest
// residual A_i x - b_i, tie-broken by lowest index (spec.md §4.4 step 4).
// Residuals are evaluated over data.Astack/data.B, the same scaled,
// (possibly pivoted) representation M/S were built from, so x must be in
// that same variable order.
func (d *DualLoop) mostViolated(xPermuted []float64) (index int, value float64, found bool) {
	nConstraints := d.solver.NConstraints()
	for i := 0; i < nConstraints; i++ {
		if d.solver.IsActive(i) {
			continue
		}
		row := mat.Row(nil, i, d.data.Astack)
		r := numeric.DotProduct(row, xPermuted) - d.data.B[i]
		if r > d.settings.OrigPrimalFsb && (!found || r > value) {
			value = r
			index = i
			found = true
		}
	}
	return index, value, found
}

// allResidual returns the largest residual A_i x - b_i over every
// constraint row, active or not, tie-broken by lowest index. Unlike
// mostViolated, it doesn't skip active rows: with a full (or contradictory)
// active set there may be no inactive rows left to report, but an active
// row can still carry a real residual when the rows binding it are
// mutually inconsistent (spec.md §4.4 step 6, §7's "ALL_DUAL_POSITIVE
// implies Ax<=b+tol" invariant).
func (d *DualLoop) allResidual(xPermuted []float64) (index int, value float64, found bool) {
	nConstraints := d.solver.NConstraints()
	for i := 0; i < nConstraints; i++ {
		row := mat.Row(nil, i, d.data.Astack)
		r := numeric.DotProduct(row, xPermuted) - d.data.B[i]
		if !found || r > value {
			value = r
			index = i
			found = true
		}
	}
	return index, value, found
}
