package qpnnls

import (
	"math"
	"time"

	"github.com/KirillM89/nqp/cholesky"
	"github.com/KirillM89/nqp/numeric"
	"gonum.org/v1/gonum/mat"
)

// CanonicalData is the immutable tuple the dual loop consumes, produced
// once per Solve() call by Prepare (spec.md §3, §4.6).
type CanonicalData struct {
	Chol    *mat.Dense
	CholInv *mat.Dense
	M       *mat.Dense
	S       []float64
	Scalers []float64

	// Astack/B are the stacked, scaled constraint rows in the (possibly
	// pivoted) variable order M was built from; the dual/primal loops use
	// these directly so residual checks stay in the same row-indexed,
	// scaled space as M/S throughout the solve. PermutedC is C reordered
	// to match.
	Astack    *mat.Dense
	B         []float64
	PermutedC []float64

	// NEquality is the number of rows contributed by each pass over F
	// (so rows [0,NEquality) are Fx<=g and [NEquality,2*NEquality) are
	// -Fx<=-g, per spec.md §3's "equality rows precede inequality rows").
	NEquality int
	// Perm records the Cholesky pivoting permutation applied to H's
	// variable order (identity if CholPvtStrategy is NoPivoting or
	// Partial); RecoverX must undo it.
	Perm []int

	Timings TimeIntervals
}

// checkProblem validates dimensions, H's symmetry, and finiteness of the
// problem data (spec.md §4.6 step 1, §7 "Input errors").
func checkProblem(p DenseQPProblem) error {
	if p.H == nil {
		return ErrDimensionMismatch
	}
	n, n2 := p.H.Dims()
	if n != n2 {
		return ErrDimensionMismatch
	}
	if len(p.C) != n || len(p.Up) != n || len(p.Lw) != n {
		return ErrDimensionMismatch
	}
	if p.A != nil {
		ra, ca := p.A.Dims()
		if ca != n || ra != len(p.B) {
			return ErrDimensionMismatch
		}
	} else if len(p.B) != 0 {
		return ErrDimensionMismatch
	}
	if p.F != nil {
		rf, cf := p.F.Dims()
		if cf != n || rf != len(p.G) {
			return ErrDimensionMismatch
		}
	} else if len(p.G) != 0 {
		return ErrDimensionMismatch
	}

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if math.IsNaN(p.H.At(i, j)) {
				return ErrNaN
			}
			if !numeric.IsSame(p.H.At(i, j), p.H.At(j, i), 1e-9) {
				return ErrNotSymmetric
			}
		}
		if math.IsNaN(p.C[i]) {
			return ErrNaN
		}
		if math.IsNaN(p.Up[i]) || math.IsNaN(p.Lw[i]) {
			return ErrNaN
		}
	}
	for _, v := range p.B {
		if math.IsNaN(v) {
			return ErrNaN
		}
	}
	for _, v := range p.G {
		if math.IsNaN(v) {
			return ErrNaN
		}
	}
	return nil
}

// stackConstraints builds the unified constraint matrix and shift vector:
// equality rows (twice, opposite signs) precede inequality rows, which
// precede bound rows (spec.md §3's ordering invariant, §4.6 step 4). Bound
// rows with an infinite sentinel are omitted (an unbounded side has no
// constraint to contribute).
func stackConstraints(p DenseQPProblem, n int) (*mat.Dense, []float64, int) {
	var rows [][]float64
	var b []float64
	nEquality := 0

	if p.F != nil {
		rf, _ := p.F.Dims()
		nEquality = rf
		for i := 0; i < rf; i++ {
			rows = append(rows, mat.Row(nil, i, p.F))
			b = append(b, p.G[i])
		}
		for i := 0; i < rf; i++ {
			row := mat.Row(nil, i, p.F)
			neg := make([]float64, len(row))
			for j := range row {
				neg[j] = -row[j]
			}
			rows = append(rows, neg)
			b = append(b, -p.G[i])
		}
	}
	if p.A != nil {
		ra, _ := p.A.Dims()
		for i := 0; i < ra; i++ {
			rows = append(rows, mat.Row(nil, i, p.A))
			b = append(b, p.B[i])
		}
	}
	for i := 0; i < n; i++ {
		if !math.IsInf(p.Up[i], 1) {
			row := make([]float64, n)
			row[i] = 1.0
			rows = append(rows, row)
			b = append(b, p.Up[i])
		}
	}
	for i := 0; i < n; i++ {
		if !math.IsInf(p.Lw[i], -1) {
			row := make([]float64, n)
			row[i] = -1.0
			rows = append(rows, row)
			b = append(b, -p.Lw[i])
		}
	}

	m := len(rows)
	astack := mat.NewDense(m, n, nil)
	for i, row := range rows {
		astack.SetRow(i, row)
	}
	return astack, b, nEquality
}

// applyScaler computes per-row scalers for astack/b per the selected
// DBScalerStrategy (spec.md §4.6 step 2) and applies them in place.
func applyScaler(strategy DBScalerStrategy, astack *mat.Dense, b []float64) []float64 {
	switch strategy {
	case Balance:
		return applyBalanceScaler(astack, b)
	default:
		return applyScaleFactor(astack, b)
	}
}

// applyScaleFactor multiplies each row by its inverse 2-norm.
func applyScaleFactor(astack *mat.Dense, b []float64) []float64 {
	r, c := astack.Dims()
	scalers := make([]float64, r)
	for i := 0; i < r; i++ {
		row := mat.Row(nil, i, astack)
		norm := math.Sqrt(numeric.DotProduct(row, row))
		scale := 1.0
		if norm > numeric.CholFactorZero {
			scale = 1.0 / norm
		}
		scalers[i] = scale
		for j := 0; j < c; j++ {
			astack.Set(i, j, astack.At(i, j)*scale)
		}
		b[i] *= scale
	}
	return scalers
}

// applyBalanceScaler equalizes row and column infinity norms of astack by
// alternating row/column scaling until a fixed-point tolerance is reached
// (spec.md §4.6 step 2). Only the row scalers are retained and applied to
// astack/b (spec.md §3: "scalers: per-row scale factors"); the column
// scale is used internally to drive the row scalers toward a balanced
// matrix but is not itself applied, since column-scaling the stacked
// constraint matrix would rescale the variables x and is outside the
// per-row scaler contract the canonical data exposes.
func applyBalanceScaler(astack *mat.Dense, b []float64) []float64 {
	const maxIter = 50
	const tol = 1e-10

	r, c := astack.Dims()
	rowScale := make([]float64, r)
	colScale := make([]float64, c)
	for i := range rowScale {
		rowScale[i] = 1.0
	}
	for j := range colScale {
		colScale[j] = 1.0
	}

	for iter := 0; iter < maxIter; iter++ {
		maxDelta := 0.0
		for i := 0; i < r; i++ {
			maxAbs := 0.0
			for j := 0; j < c; j++ {
				v := math.Abs(astack.At(i, j)) * colScale[j]
				if v > maxAbs {
					maxAbs = v
				}
			}
			if maxAbs > numeric.CholFactorZero {
				newScale := 1.0 / maxAbs
				if d := math.Abs(newScale - rowScale[i]); d > maxDelta {
					maxDelta = d
				}
				rowScale[i] = newScale
			}
		}
		for j := 0; j < c; j++ {
			maxAbs := 0.0
			for i := 0; i < r; i++ {
				v := math.Abs(astack.At(i, j)) * rowScale[i]
				if v > maxAbs {
					maxAbs = v
				}
			}
			if maxAbs > numeric.CholFactorZero {
				newScale := 1.0 / maxAbs
				if d := math.Abs(newScale - colScale[j]); d > maxDelta {
					maxDelta = d
				}
				colScale[j] = newScale
			}
		}
		if maxDelta < tol {
			break
		}
	}

	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			astack.Set(i, j, astack.At(i, j)*rowScale[i])
		}
		b[i] *= rowScale[i]
	}
	return rowScale
}

// Prepare converts a DenseQPProblem into the canonical NNLS data the dual
// loop needs (spec.md §4.6).
func Prepare(problem DenseQPProblem, settings UserSettings) (*CanonicalData, error) {
	if settings.CheckProblem {
		if err := checkProblem(problem); err != nil {
			return nil, err
		}
	}

	n, _ := problem.H.Dims()
	astack, b, nEquality := stackConstraints(problem, n)
	scalers := applyScaler(settings.DBScalerStrategy, astack, b)

	h := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			h.SetSym(i, j, problem.H.At(i, j))
		}
	}

	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}

	var u *mat.Dense
	var err error
	c := append([]float64(nil), problem.C...)

	tCholStart := time.Now()
	switch settings.CholPvtStrategy {
	case cholesky.Full:
		var p []int
		u, p, _, err = cholesky.ComputeCholFactorTFullPivoting(h)
		if err != nil {
			return nil, err
		}
		perm = p
		numeric.PermuteColumns(astack, perm)
		permuted := make([]float64, n)
		for i, pi := range perm {
			permuted[i] = c[pi]
		}
		c = permuted
	default:
		u, _, err = cholesky.ComputeCholFactorT(h)
		if err != nil {
			return nil, err
		}
	}
	tChol := time.Since(tCholStart)

	tInvStart := time.Now()
	cholInv, err := cholesky.InvertFactor(u)
	if err != nil {
		return nil, err
	}
	tInv := time.Since(tInvStart)

	tMStart := time.Now()
	m, err := numeric.Mult(astack, cholInv)
	if err != nil {
		return nil, err
	}
	// s = b + M*(CholInv^T*c) = b + Astack*H^-1*c, since H^-1 =
	// CholInv*CholInv^T for H = U^T*U and CholInv = U^-1.
	cholInvC, err := numeric.MultTransp(cholInv, c)
	if err != nil {
		return nil, err
	}
	mCholInvC, err := numeric.MultMatVec(m, cholInvC)
	if err != nil {
		return nil, err
	}
	s := numeric.VSum(b, mCholInvC)
	tM := time.Since(tMStart)

	return &CanonicalData{
		Chol:      u,
		CholInv:   cholInv,
		M:         m,
		S:         s,
		Scalers:   scalers,
		NEquality: nEquality,
		Perm:      perm,
		Astack:    astack,
		B:         b,
		PermutedC: c,
		Timings:   TimeIntervals{Chol: tChol, Inv: tInv, M: tM},
	}, nil
}

// RecoverX reconstructs the primal candidate x = H^-1 (-c - A^T y) using
// the Cholesky factor and its inverse (spec.md §4.4 step 3):
//
//	x = CholInv * (CholInv^T * (-c - A^T y))
//
// since H^-1 = (U^T U)^-1 = U^-1 (U^T)^-1 = CholInv * CholInv^T (U stored
// upper so CholInv=U^-1). The result is in the (possibly pivoted)
// variable order data.Astack/data.M were built from; callers that need
// the original variable order must un-permute with data.Perm (done once,
// by Solve, when the final x is reported).
func RecoverX(data *CanonicalData, y []float64) ([]float64, error) {
	aty, err := numeric.MultTransp(data.Astack, y)
	if err != nil {
		return nil, err
	}
	rhs := make([]float64, len(data.PermutedC))
	for i := range rhs {
		rhs[i] = -data.PermutedC[i] - aty[i]
	}
	t, err := numeric.MultTransp(data.CholInv, rhs)
	if err != nil {
		return nil, err
	}
	return numeric.MultMatVec(data.CholInv, t)
}

// UnpermuteX reorders a solution vector from the Cholesky factorization's
// (possibly pivoted) variable order back to the caller's original order.
func UnpermuteX(data *CanonicalData, xPermuted []float64) []float64 {
	x := make([]float64, len(xPermuted))
	for i, pi := range data.Perm {
		x[pi] = xPermuted[i]
	}
	return x
}
