// Package cholesky factorizes the symmetric (positive semi-)definite
// Hessian of a dense QP into the triangular factor the problem preparer
// needs to build the NNLS canonical data, following the soft-negative-
// diagonal clamp and full-pivoting policy the NNLS dual active-set solver
// requires (spec.md §4.2). gonum.org/v1/gonum/mat.Cholesky offers no hook
// for that policy, so the factorization step below is hand-rolled over
// mat.Dense storage; mat.Dense is still used for storage and for the
// InvertTriangle call that follows every factorization.
package cholesky

import (
	"errors"
	"math"

	"github.com/KirillM89/nqp/numeric"
	"gonum.org/v1/gonum/mat"
)

// PivotingStrategy selects which factorization routine the problem
// preparer runs: Full selects ComputeCholFactorTFullPivoting; NoPivoting
// and Partial both select ComputeCholFactorT, which never pivots (Partial
// has no routine of its own).
type PivotingStrategy int

const (
	NoPivoting PivotingStrategy = iota
	Partial
	Full
)

// NegativeDiag records a diagonal entry that fell into the soft-negative
// band [-CholFactorZero, 0) and was clamped to zero.
type NegativeDiag struct {
	Index int
	Value float64
}

// Output carries the diagnostics produced alongside a factorization.
type Output struct {
	NegativeDiag []NegativeDiag
	// NegativeBlocking is the first diagonal strictly less than
	// -numeric.CholFactorZero that halted the factorization. NaN if no
	// such diagonal was encountered.
	NegativeBlocking float64
	Pivoting         bool
	// PositivePivots is the number of strictly positive pivots found;
	// only meaningful when full pivoting was used.
	PositivePivots int
}

// ErrNotSPD is returned when a diagonal strictly less than
// -numeric.CholFactorZero is encountered: the Hessian is declared non-SPD
// and factorization halts (spec.md §4.2, "negativeBlocking").
var ErrNotSPD = errors.New("cholesky: matrix is not positive (semi-)definite")

// ComputeCholFactorT computes the upper-triangular U such that M = U^T*U
// (spec.md §4.2's "upper-storage convention"). Diagonal entries in
// [-CholFactorZero, 0) are clamped to zero and recorded; the first
// diagonal strictly below -CholFactorZero halts factorization and returns
// ErrNotSPD.
func ComputeCholFactorT(m *mat.SymDense) (*mat.Dense, Output, error) {
	n := m.SymmetricDim()
	u := mat.NewDense(n, n, nil)
	var out Output
	out.NegativeBlocking = math.NaN()

	for j := 0; j < n; j++ {
		var sum float64
		for k := 0; k < j; k++ {
			sum += u.At(k, j) * u.At(k, j)
		}
		diag := m.At(j, j) - sum
		if diag < 0 {
			if diag < -numeric.CholFactorZero {
				out.NegativeBlocking = diag
				return nil, out, ErrNotSPD
			}
			out.NegativeDiag = append(out.NegativeDiag, NegativeDiag{Index: j, Value: diag})
			diag = 0
		}
		ujj := math.Sqrt(diag)
		u.Set(j, j, ujj)
		for i := j + 1; i < n; i++ {
			var s float64
			for k := 0; k < j; k++ {
				s += u.At(k, j) * u.At(k, i)
			}
			if ujj < numeric.PivotZero {
				u.Set(j, i, 0)
				continue
			}
			u.Set(j, i, (m.At(j, i)-s)/ujj)
		}
	}
	return u, out, nil
}

// ComputeCholFactorTFullPivoting performs symmetric full pivoting: at each
// step it selects the largest remaining diagonal, swaps both the
// corresponding row and column, and records the permutation. Returns the
// factor, the permutation (perm[i] is the original index now at position
// i), and diagnostics; the number of strictly positive pivots found is
// reported in Output.PositivePivots.
func ComputeCholFactorTFullPivoting(m *mat.SymDense) (*mat.Dense, []int, Output, error) {
	n := m.SymmetricDim()
	work := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			work.Set(i, j, m.At(i, j))
		}
	}
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}

	u := mat.NewDense(n, n, nil)
	var out Output
	out.Pivoting = true
	out.NegativeBlocking = math.NaN()

	for j := 0; j < n; j++ {
		// Select the largest remaining diagonal among [j, n).
		best := j
		bestVal := work.At(j, j)
		for r := j + 1; r < n; r++ {
			if v := work.At(r, r); v > bestVal {
				bestVal = v
				best = r
			}
		}
		if best != j {
			symmetricSwap(work, j, best)
			perm[j], perm[best] = perm[best], perm[j]
			// The factor rows already computed follow the same column swap.
			for k := 0; k < j; k++ {
				v1, v2 := u.At(k, j), u.At(k, best)
				u.Set(k, j, v2)
				u.Set(k, best, v1)
			}
		}

		var sum float64
		for k := 0; k < j; k++ {
			sum += u.At(k, j) * u.At(k, j)
		}
		diag := work.At(j, j) - sum
		if diag < 0 {
			if diag < -numeric.CholFactorZero {
				out.NegativeBlocking = diag
				return nil, perm, out, ErrNotSPD
			}
			out.NegativeDiag = append(out.NegativeDiag, NegativeDiag{Index: j, Value: diag})
			diag = 0
		}
		ujj := math.Sqrt(diag)
		if ujj > numeric.PivotZero {
			out.PositivePivots++
		}
		u.Set(j, j, ujj)
		for i := j + 1; i < n; i++ {
			var s float64
			for k := 0; k < j; k++ {
				s += u.At(k, j) * u.At(k, i)
			}
			if ujj < numeric.PivotZero {
				u.Set(j, i, 0)
				continue
			}
			u.Set(j, i, (work.At(j, i)-s)/ujj)
		}
	}
	return u, perm, out, nil
}

// symmetricSwap exchanges row/column i with row/column j of the symmetric
// working matrix (full pivoting must preserve symmetry).
func symmetricSwap(work *mat.Dense, i, j int) {
	n, _ := work.Dims()
	for k := 0; k < n; k++ {
		v1, v2 := work.At(i, k), work.At(j, k)
		work.Set(i, k, v2)
		work.Set(j, k, v1)
	}
	for k := 0; k < n; k++ {
		v1, v2 := work.At(k, i), work.At(k, j)
		work.Set(k, i, v2)
		work.Set(k, j, v1)
	}
}

// InvertFactor inverts the upper-triangular factor U returned by
// ComputeCholFactorT*, returning U^-1 (so CholInv = U^-1 in spec.md §3's
// terms, since the preparer needs the inverse of the triangular factor
// immediately after factorization).
func InvertFactor(u *mat.Dense) (*mat.Dense, error) {
	lInv, err := numeric.InvertTriangle(mat.DenseCopyOf(u.T()))
	if err != nil {
		return nil, err
	}
	return mat.DenseCopyOf(lInv.T()), nil
}
