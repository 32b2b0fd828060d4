// Package linsolve implements the incremental MMᵀ linear solver the dual
// and primal loops share: given the currently active rows of M, it
// solves the normal-equation system M_active M_activeᵀ y = -gamma*s_active
// that produces trial dual multipliers, and exposes Add/Delete so the
// loops amortize cost across iterations (spec.md §4.3).
package linsolve

import (
	"math"

	"github.com/KirillM89/nqp/numeric"
	"gonum.org/v1/gonum/mat"
)

// LinSolverOutput is the result of a Solve call: the multiplier vector,
// the active row indices (in ascending index order), and a
// diagnostic count of non-positive pivots found during factorization.
// NDNegative > 0 signals numerical singularity of the active-set
// subproblem (spec.md §4.3, "Failure").
type LinSolverOutput struct {
	Solution   []float64
	Indices    []int
	NDNegative int
}

// CumulativeSolver is the capability interface both concrete variants
// (LDLᵀ and EGN) implement. The dual/primal loops hold a borrowed
// reference to M/s (never ownership, per spec.md §9's "Cyclic view across
// components"); callers reference shared rows by index, never by copying
// row data.
type CumulativeSolver interface {
	// Add marks row index active. A no-op if already active.
	Add(index int) bool
	// Delete marks row index inactive. A no-op if already inactive.
	Delete(index int) bool
	// Solve returns the current trial multipliers over the active set.
	Solve() LinSolverOutput
	// NActive returns the number of currently active rows.
	NActive() int
	// NConstraints returns the total number of rows (active or not).
	NConstraints() int
	// IsActive reports whether index is currently in the active set.
	IsActive(index int) bool
	// SetGamma updates the relaxation scalar used to scale the RHS.
	SetGamma(gamma float64)
	Gamma() float64
}

// base holds the state and borrowed M/s references shared by both
// concrete solver variants (spec.md §3, "Active set state").
type base struct {
	m             *mat.Dense
	s             []float64
	nConstraints  int
	nVariables    int
	activeSet     []bool
	nActive       int
	gamma         float64
}

func newBase(m *mat.Dense, s []float64) base {
	nc, nv := m.Dims()
	return base{
		m:            m,
		s:            s,
		nConstraints: nc,
		nVariables:   nv,
		activeSet:    make([]bool, nc),
		gamma:        1.0,
	}
}

func (b *base) Add(index int) bool {
	if b.activeSet[index] {
		return false
	}
	b.activeSet[index] = true
	b.nActive++
	return true
}

func (b *base) Delete(index int) bool {
	if !b.activeSet[index] {
		return false
	}
	b.activeSet[index] = false
	b.nActive--
	return true
}

func (b *base) NActive() int { return b.nActive }

func (b *base) NConstraints() int { return b.nConstraints }

func (b *base) IsActive(index int) bool { return b.activeSet[index] }

func (b *base) SetGamma(gamma float64) { b.gamma = gamma }

func (b *base) Gamma() float64 { return b.gamma }

func (b *base) activeIndices() []int {
	out := make([]int, 0, b.nActive)
	for i, active := range b.activeSet {
		if active {
			out = append(out, i)
		}
	}
	return out
}

// LDLTSolver forms the active-set normal-equation matrix row by row and
// solves it via an LDLᵀ-based routine (spec.md §4.3, "LDLᵀ variant").
type LDLTSolver struct {
	base
}

// NewLDLTSolver constructs a solver borrowing M and s for the lifetime of
// a single Solve() call (spec.md §9: index-based API over shared storage).
func NewLDLTSolver(m *mat.Dense, s []float64) *LDLTSolver {
	return &LDLTSolver{base: newBase(m, s)}
}

func (l *LDLTSolver) Solve() LinSolverOutput {
	indices := l.activeIndices()
	if len(indices) == 0 {
		return LinSolverOutput{Solution: make([]float64, l.nConstraints), Indices: indices}
	}

	n := len(indices)
	// The system solved is M_active M_active^T y = -gamma*s_active: the
	// stationarity condition of the dual quadratic 0.5*y^T(MM^T)y + s^T y
	// restricted to the active y's, which is what makes the primal
	// recovered by RecoverX satisfy A_active*x == b_active exactly (the
	// defining property of an active-set method). s_i*s_j is not part of
	// this coefficient matrix — it appears only through s_active in the
	// right-hand side.
	a := mat.NewDense(n, n, nil)
	b := make([]float64, n)
	for ii, i := range indices {
		rowI := mat.Row(nil, i, l.m)
		b[ii] = -l.gamma * l.s[i]
		for jj, j := range indices {
			rowJ := mat.Row(nil, j, l.m)
			a.Set(ii, jj, numeric.DotProduct(rowI, rowJ))
		}
	}

	y, nDNegative := ldltSolve(a, b)
	solution := make([]float64, l.nConstraints)
	for ii, i := range indices {
		solution[i] = y[ii]
	}
	return LinSolverOutput{Solution: solution, Indices: indices, NDNegative: nDNegative}
}

// EGNSolver forms A = M_active M_active^T explicitly and solves
// A y = -gamma*s_active with a general dense solver (spec.md §4.3, "EGN
// variant"). This deliberately implements the normal-equation formation
// that the C++ source (original_source/NQP) left as an empty SolveByEGN
// body with a mis-indexed loop above it (spec.md §9 Open Question (a)) —
// M_active/s_active are indexed correctly here, and without the
// s_active*s_active^T cross term Open Question (a)'s own suggested fix
// adds: that term makes the recovered primal fail to satisfy the active
// rows exactly (see the DESIGN.md ledger entry for the derivation and
// the concrete spec.md §8 scenarios that pin this down).
type EGNSolver struct {
	base
}

func NewEGNSolver(m *mat.Dense, s []float64) *EGNSolver {
	return &EGNSolver{base: newBase(m, s)}
}

func (e *EGNSolver) Solve() LinSolverOutput {
	indices := e.activeIndices()
	if len(indices) == 0 {
		return LinSolverOutput{Solution: make([]float64, e.nConstraints), Indices: indices}
	}

	n := len(indices)
	a := mat.NewDense(n, n, nil)
	b := make([]float64, n)
	for ii, i := range indices {
		rowI := mat.Row(nil, i, e.m)
		b[ii] = -e.gamma * e.s[i]
		for jj, j := range indices {
			rowJ := mat.Row(nil, j, e.m)
			var dot float64
			for k := 0; k < e.nVariables; k++ {
				dot += rowI[k] * rowJ[k]
			}
			a.Set(ii, jj, dot)
		}
	}

	y, nDNegative := e.solveByEGN(a, b)
	solution := make([]float64, e.nConstraints)
	for ii, i := range indices {
		solution[i] = y[ii]
	}
	return LinSolverOutput{Solution: solution, Indices: indices, NDNegative: nDNegative}
}

// solveByEGN solves A y = b via Gauss-Jordan elimination with partial
// pivoting (numeric.InvertByGauss). When elimination meets a pivot below
// numeric.PivotZero it returns a zero solution and a count of 1, so
// EGNSolver.Solve signals a singular subproblem through NDNegative the
// same way LDLTSolver.Solve does.
func (e *EGNSolver) solveByEGN(a *mat.Dense, b []float64) ([]float64, int) {
	n, _ := a.Dims()
	inv, err := numeric.InvertByGauss(a)
	if err != nil {
		return make([]float64, n), 1
	}
	y, err := numeric.MultMatVec(inv, b)
	if err != nil {
		return make([]float64, n), 1
	}
	return y, 0
}

// ldltSolve solves the symmetric system a*y = b via an unpivoted LDLᵀ
// decomposition of a, returning the solution and the count of diagonal D
// entries that are non-positive (rank-deficiency/non-SPD signal, spec.md
// §4.3's nDNegative).
func ldltSolve(a *mat.Dense, b []float64) ([]float64, int) {
	n, _ := a.Dims()
	l := mat.NewDense(n, n, nil)
	d := make([]float64, n)
	nDNegative := 0

	for j := 0; j < n; j++ {
		sum := a.At(j, j)
		for k := 0; k < j; k++ {
			sum -= l.At(j, k) * l.At(j, k) * d[k]
		}
		d[j] = sum
		if d[j] <= numeric.PivotZero {
			nDNegative++
		}
		l.Set(j, j, 1.0)
		for i := j + 1; i < n; i++ {
			sum := a.At(i, j)
			for k := 0; k < j; k++ {
				sum -= l.At(i, k) * l.At(j, k) * d[k]
			}
			if math.Abs(d[j]) < numeric.PivotZero {
				l.Set(i, j, 0)
				continue
			}
			l.Set(i, j, sum/d[j])
		}
	}

	// Solve L z = b (forward), D w = z, L^T y = w (backward).
	z := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := b[i]
		for k := 0; k < i; k++ {
			sum -= l.At(i, k) * z[k]
		}
		z[i] = sum
	}
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		if math.Abs(d[i]) < numeric.PivotZero {
			w[i] = 0
			continue
		}
		w[i] = z[i] / d[i]
	}
	y := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := w[i]
		for k := i + 1; k < n; k++ {
			sum -= l.At(k, i) * y[k]
		}
		y[i] = sum
	}
	return y, nDNegative
}
