package qpnnls

import (
	"math"

	"github.com/KirillM89/nqp/linsolve"
)

// primalGammaDamping is the "small factor" spec.md §4.5 step 5 leaves
// unnamed for the DecrementByDNorm gamma-update strategy.
const primalGammaDamping = 1.0e-2

// PrimalLoop enforces non-negativity of the inequality multipliers on the
// active set by dropping the most negative component and re-solving
// (spec.md §4.5). It never mutates the outer dual iteration count.
type PrimalLoop struct {
	solver     linsolve.CumulativeSolver
	nEquality  int
	settings   UserSettings
}

// NewPrimalLoop constructs a loop operating on solver. nEquality is the
// count of equality rows in the original problem: rows [0, 2*nEquality)
// of the active set are the two signed copies of Fx=g (free multipliers,
// exempt from the non-negativity check); everything from 2*nEquality
// onward is a true inequality (spec.md §3's ordering invariant).
func NewPrimalLoop(solver linsolve.CumulativeSolver, nEquality int, settings UserSettings) *PrimalLoop {
	return &PrimalLoop{solver: solver, nEquality: nEquality, settings: settings}
}

func (p *PrimalLoop) isInequality(index int) bool {
	return index >= 2*p.nEquality
}

// mostNegativeInequality returns the active inequality index with the
// smallest multiplier (spec.md §4.5 step 2's j*).
func (p *PrimalLoop) mostNegativeInequality(out linsolve.LinSolverOutput) (index int, value float64, found bool) {
	value = math.Inf(1)
	for _, idx := range out.Indices {
		if !p.isInequality(idx) {
			continue
		}
		if !found || out.Solution[idx] < value {
			value = out.Solution[idx]
			index = idx
			found = true
		}
	}
	return index, value, found
}

// Run drives the loop starting from the trial multipliers the dual loop
// (or a prior primal iteration) already computed.
func (p *PrimalLoop) Run(initial linsolve.LinSolverOutput) (linsolve.LinSolverOutput, PrimalLoopExitStatus) {
	current := initial
	for iter := 0; iter < p.settings.NPrimalIterations; iter++ {
		jStar, minVal, found := p.mostNegativeInequality(current)
		if !found || minVal >= p.settings.NNLSPrimalZero {
			return current, AllPrimalPositive
		}

		p.solver.Delete(jStar)
		if p.solver.NActive() == 0 {
			if iter == 0 {
				return current, EmptyActiveSetOnZeroIteration
			}
			return current, EmptyActiveSet
		}

		next := p.solver.Solve()
		if next.NDNegative > 0 {
			return next, SingularMatrix
		}

		if p.settings.GammaPrimal == DecrementByDNorm {
			delta := deltaNorm(current.Solution, next.Solution)
			p.solver.SetGamma(p.solver.Gamma() - delta*primalGammaDamping)
		}
		current = next
	}
	return current, PrimalIterationsExhausted
}

// deltaNorm returns ||a-b||_2 over the union of indices where either
// vector is non-zero-length; a/b are always the same length here (both
// are full nConstraints-length solution vectors from the same solver).
func deltaNorm(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
