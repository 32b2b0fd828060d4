// Package numeric provides the dense BLAS-like kernels the NNLS dual
// active-set solver is built on: multiply/transpose-multiply, triangular
// and general inversion, and reduced row/column echelon transforms (RRF,
// RRFB, RCFB) that collapse linearly dependent rows to zero rows. The
// problem preparer does not call the echelon transforms: duplicate
// constraint rows reach the dual loop unchanged.
//
// Matrices are represented with gonum.org/v1/gonum/mat so the kernels
// compose with the rest of the ecosystem (BLAS-backed Dense/SymDense),
// but every routine here implements numerical policy (pivot thresholds,
// singularity reporting, soft-zero tolerances) that has no single
// equivalent library call, so the bodies are hand-rolled.
package numeric

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Tolerances shared across the numeric kernels, the Cholesky factorization
// and the incremental linear solver.
const (
	CholFactorZero = 1.0e-14
	PivotZero      = 1.0e-14
)

// ErrShapeMismatch is returned by kernels when operand dimensions are
// incompatible for the requested operation.
var ErrShapeMismatch = errors.New("numeric: shape mismatch")

// ErrSingular is returned when a matrix expected to be invertible turns out
// not to be, to the configured pivot tolerance.
var ErrSingular = errors.New("numeric: singular or near-singular matrix")

// Mult computes m1*m2. Fails if cols(m1) != rows(m2).
func Mult(m1, m2 *mat.Dense) (*mat.Dense, error) {
	r1, c1 := m1.Dims()
	r2, c2 := m2.Dims()
	if c1 != r2 {
		return nil, ErrShapeMismatch
	}
	out := mat.NewDense(r1, c2, nil)
	out.Mul(m1, m2)
	return out, nil
}

// MultMatVec computes Mv = M*v.
func MultMatVec(m *mat.Dense, v []float64) ([]float64, error) {
	r, c := m.Dims()
	if c != len(v) {
		return nil, ErrShapeMismatch
	}
	vv := mat.NewVecDense(c, v)
	out := mat.NewVecDense(r, nil)
	out.MulVec(m, vv)
	return vecData(out), nil
}

// MultTransp computes MTv = M^T * v over every row of M.
func MultTransp(m *mat.Dense, v []float64) ([]float64, error) {
	r, c := m.Dims()
	if r != len(v) {
		return nil, ErrShapeMismatch
	}
	vv := mat.NewVecDense(r, v)
	out := mat.NewVecDense(c, nil)
	out.MulVec(m.T(), vv)
	return vecData(out), nil
}

// MultTranspActive computes M^T * v restricted to the rows named by
// activeSetIndices, without materializing a submatrix.
func MultTranspActive(m *mat.Dense, v []float64, activeSetIndices []int) ([]float64, error) {
	r, c := m.Dims()
	if r != len(v) {
		return nil, ErrShapeMismatch
	}
	out := make([]float64, c)
	for _, i := range activeSetIndices {
		if i < 0 || i >= r {
			return nil, ErrShapeMismatch
		}
		row := mat.Row(nil, i, m)
		for j := 0; j < c; j++ {
			out[j] += row[j] * v[i]
		}
	}
	return out, nil
}

// M1M2T computes M1 * M2^T.
func M1M2T(m1, m2 *mat.Dense) (*mat.Dense, error) {
	r1, c1 := m1.Dims()
	r2, c2 := m2.Dims()
	if c1 != c2 {
		return nil, ErrShapeMismatch
	}
	out := mat.NewDense(r1, r2, nil)
	out.Mul(m1, m2.T())
	return out, nil
}

// M2M1T computes M2 * M1^T (the mirror of M1M2T).
func M2M1T(m1, m2 *mat.Dense) (*mat.Dense, error) {
	return M1M2T(m2, m1)
}

// M1TM2 computes M1^T * M2.
func M1TM2(m1, m2 *mat.Dense) (*mat.Dense, error) {
	r1, c1 := m1.Dims()
	r2, c2 := m2.Dims()
	if r1 != r2 {
		return nil, ErrShapeMismatch
	}
	out := mat.NewDense(c1, c2, nil)
	out.Mul(m1.T(), m2)
	return out, nil
}

// DotProduct returns <v1,v2>.
func DotProduct(v1, v2 []float64) float64 {
	return mat.Dot(mat.NewVecDense(len(v1), v1), mat.NewVecDense(len(v2), v2))
}

// DotProductActive returns <v1,v2> restricted to activeSetIndices.
func DotProductActive(v1, v2 []float64, activeSetIndices []int) float64 {
	var sum float64
	for _, i := range activeSetIndices {
		sum += v1[i] * v2[i]
	}
	return sum
}

// VSum computes sum = v1 + v2.
func VSum(v1, v2 []float64) []float64 {
	sum := make([]float64, len(v1))
	for i := range v1 {
		sum[i] = v1[i] + v2[i]
	}
	return sum
}

// VAdd computes v1 += v2 in place.
func VAdd(v1 []float64, v2 []float64) {
	for i := range v1 {
		v1[i] += v2[i]
	}
}

// BTAb returns b^T * A * b.
func BTAb(b []float64, a *mat.Dense) (float64, error) {
	av, err := MultMatVec(a, b)
	if err != nil {
		return 0, err
	}
	return DotProduct(b, av), nil
}

// InvertTriangle inverts a strictly lower-triangular matrix L with
// non-zero diagonal via forward substitution. Fails if any |L[i][i]| <
// PivotZero.
func InvertTriangle(l *mat.Dense) (*mat.Dense, error) {
	n, c := l.Dims()
	if n != c {
		return nil, ErrShapeMismatch
	}
	inv := mat.NewDense(n, n, nil)
	for col := 0; col < n; col++ {
		diag := l.At(col, col)
		if math.Abs(diag) < PivotZero {
			return nil, ErrSingular
		}
		inv.Set(col, col, 1.0/diag)
		for row := col + 1; row < n; row++ {
			var sum float64
			for k := col; k < row; k++ {
				sum += l.At(row, k) * inv.At(k, col)
			}
			inv.Set(row, col, -sum/l.At(row, row))
		}
	}
	return inv, nil
}

// InvertByGauss inverts a general matrix M using Gauss-Jordan elimination
// with partial pivoting.
func InvertByGauss(m *mat.Dense) (*mat.Dense, error) {
	n, c := m.Dims()
	if n != c {
		return nil, ErrShapeMismatch
	}
	aug := mat.NewDense(n, 2*n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			aug.Set(i, j, m.At(i, j))
		}
		aug.Set(i, n+i, 1.0)
	}
	if err := gaussJordan(aug, n); err != nil {
		return nil, err
	}
	inv := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			inv.Set(i, j, aug.At(i, n+j))
		}
	}
	return inv, nil
}

// InvertLTrByGauss inverts a lower-triangular matrix using the same
// Gauss-Jordan machinery as InvertByGauss (kept distinct from
// InvertTriangle so callers can cross-check the closed-form
// back-substitution result against the general elimination routine, as
// TestInvertByGaussMatchesTriangle does).
func InvertLTrByGauss(m *mat.Dense) (*mat.Dense, error) {
	return InvertByGauss(m)
}

func gaussJordan(aug *mat.Dense, n int) error {
	for p := 0; p < n; p++ {
		pivotRow := p
		best := math.Abs(aug.At(p, p))
		for r := p + 1; r < n; r++ {
			if v := math.Abs(aug.At(r, p)); v > best {
				best = v
				pivotRow = r
			}
		}
		if best < PivotZero {
			return ErrSingular
		}
		if pivotRow != p {
			swapRows(aug, p, pivotRow)
		}
		pivotVal := aug.At(p, p)
		for j := 0; j < 2*n; j++ {
			aug.Set(p, j, aug.At(p, j)/pivotVal)
		}
		for r := 0; r < n; r++ {
			if r == p {
				continue
			}
			factor := aug.At(r, p)
			if factor == 0 {
				continue
			}
			for j := 0; j < 2*n; j++ {
				aug.Set(r, j, aug.At(r, j)-factor*aug.At(p, j))
			}
		}
	}
	return nil
}

func swapRows(m *mat.Dense, r1, r2 int) {
	_, c := m.Dims()
	for j := 0; j < c; j++ {
		v1, v2 := m.At(r1, j), m.At(r2, j)
		m.Set(r1, j, v2)
		m.Set(r2, j, v1)
	}
}

func swapColumns(m *mat.Dense, c1, c2 int) {
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		v1, v2 := m.At(i, c1), m.At(i, c2)
		m.Set(i, c1, v2)
		m.Set(i, c2, v1)
	}
}

// PermuteColumns reorders the columns of A in place so that column i of
// the result is column perm[i] of the input.
func PermuteColumns(a *mat.Dense, perm []int) {
	r, _ := a.Dims()
	for i := 0; i < r; i++ {
		row := mat.Row(nil, i, a)
		for j, p := range perm {
			a.Set(i, j, row[p])
		}
	}
}

// RRF transforms M to reduced row echelon form in place.
func RRF(m *mat.Dense) {
	reduce(m, nil)
}

// RRFB transforms M to reduced row echelon form, applying every row
// operation to b as well.
func RRFB(m *mat.Dense, b []float64) {
	reduce(m, b)
}

// RCFB transforms A to reduced column echelon form, applying every column
// operation's row-scale analogue to b (A operates on columns, so pivoting
// is done on A^T and the result transposed back; b tracks row scaling
// exactly as in RRFB since RCFB is used on A^T systems built from RRFB's
// output).
func RCFB(a *mat.Dense, b []float64) {
	at := mat.DenseCopyOf(a.T())
	reduce(at, b)
	a.Copy(at.T())
}

// reduce performs Gauss-Jordan elimination on m (optionally tracking b) to
// produce reduced row echelon form. Rows that become all-zero (to
// CholFactorZero) are left in place at the bottom, so a duplicate row
// collapses to a zero row after elimination. The problem preparer does not
// call this.
func reduce(m *mat.Dense, b []float64) {
	rows, cols := m.Dims()
	lead := 0
	for r := 0; r < rows && lead < cols; r++ {
		i := r
		for math.Abs(m.At(i, lead)) < CholFactorZero {
			i++
			if i == rows {
				i = r
				lead++
				if lead == cols {
					return
				}
			}
		}
		if i != r {
			swapRowsInPlace(m, i, r)
			if b != nil {
				b[i], b[r] = b[r], b[i]
			}
		}
		pivot := m.At(r, lead)
		for j := 0; j < cols; j++ {
			m.Set(r, j, m.At(r, j)/pivot)
		}
		if b != nil {
			b[r] /= pivot
		}
		for i := 0; i < rows; i++ {
			if i == r {
				continue
			}
			factor := m.At(i, lead)
			if factor == 0 {
				continue
			}
			for j := 0; j < cols; j++ {
				m.Set(i, j, m.At(i, j)-factor*m.At(r, j))
			}
			if b != nil {
				b[i] -= factor * b[r]
			}
		}
		lead++
	}
}

func swapRowsInPlace(m *mat.Dense, r1, r2 int) {
	swapRows(m, r1, r2)
}

// isSame reports whether cand and val are within tol of each other. The
// default tolerance (1e-16) is the uniform zero-check used throughout the
// numeric kernels.
func isSame(cand, val float64, tol ...float64) bool {
	t := 1.0e-16
	if len(tol) > 0 {
		t = tol[0]
	}
	diff := cand - val
	return diff >= -t && diff <= t
}

// IsSame exports isSame for use outside the package (qpnnls's checkProblem
// uses it for the symmetry check on H).
func IsSame(cand, val float64, tol ...float64) bool {
	return isSame(cand, val, tol...)
}

func vecData(v *mat.VecDense) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}
