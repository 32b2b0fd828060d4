package numeric

import (
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func TestMultShapeMismatch(t *testing.T) {
	m1 := mat.NewDense(2, 3, nil)
	m2 := mat.NewDense(2, 2, nil)
	if _, err := Mult(m1, m2); err != ErrShapeMismatch {
		t.Fatalf("want ErrShapeMismatch, got %v", err)
	}
}

func TestMultTranspRoundTrip(t *testing.T) {
	// M * MultTransp(M, v) = M(M^T v) should equal (MM^T)v for all M, v (spec.md §8).
	m := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	v := []float64{1, 1, 1}

	mtv, err := MultTransp(m, v)
	if err != nil {
		t.Fatal(err)
	}
	mv, err := MultMatVec(m, mtv)
	if err != nil {
		t.Fatal(err)
	}

	mmT, err := M1M2T(m, m)
	if err != nil {
		t.Fatal(err)
	}
	want, err := MultMatVec(mmT, v)
	if err != nil {
		t.Fatal(err)
	}

	if !floats.EqualApprox(mv, want, 1e-10) {
		t.Fatalf("MultTransp/M1M2T mismatch: got %v want %v", mv, want)
	}
}

func TestMultTranspActiveMatchesSubset(t *testing.T) {
	m := mat.NewDense(4, 2, []float64{1, 2, 3, 4, 5, 6, 7, 8})
	v := []float64{1, 2, 3, 4}
	active := []int{0, 2}

	got, err := MultTranspActive(m, v, active)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{
		m.At(0, 0)*v[0] + m.At(2, 0)*v[2],
		m.At(0, 1)*v[0] + m.At(2, 1)*v[2],
	}
	if !floats.EqualApprox(got, want, 1e-12) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestInvertTriangleIdentity(t *testing.T) {
	l := mat.NewDense(3, 3, []float64{
		2, 0, 0,
		1, 3, 0,
		4, 5, 6,
	})
	inv, err := InvertTriangle(l)
	if err != nil {
		t.Fatal(err)
	}
	var id mat.Dense
	id.Mul(l, inv)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			if !floats.EqualWithinAbs(id.At(i, j), want, 1e-10) {
				t.Fatalf("L*Linv[%d][%d] = %v, want %v", i, j, id.At(i, j), want)
			}
		}
	}
}

func TestInvertTriangleSingular(t *testing.T) {
	l := mat.NewDense(2, 2, []float64{0, 0, 1, 2})
	if _, err := InvertTriangle(l); err != ErrSingular {
		t.Fatalf("want ErrSingular, got %v", err)
	}
}

func TestInvertByGaussMatchesTriangle(t *testing.T) {
	l := mat.NewDense(3, 3, []float64{
		5, 0, 0,
		2, 4, 0,
		1, 1, 3,
	})
	invTri, err := InvertTriangle(l)
	if err != nil {
		t.Fatal(err)
	}
	invGauss, err := InvertLTrByGauss(l)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if !floats.EqualWithinAbs(invTri.At(i, j), invGauss.At(i, j), 1e-9) {
				t.Fatalf("invTri[%d][%d]=%v invGauss=%v", i, j, invTri.At(i, j), invGauss.At(i, j))
			}
		}
	}
}

func TestRRFBDetectsRedundantRow(t *testing.T) {
	// Two identical inequality rows (spec.md §8 scenario 4: redundant
	// inequality); RRFB should collapse the duplicate to a zero row.
	m := mat.NewDense(3, 2, []float64{
		1, 0,
		1, 0,
		0, 1,
	})
	b := []float64{2, 2, 2}
	RRFB(m, b)

	zeroRows := 0
	for i := 0; i < 3; i++ {
		if isSame(m.At(i, 0), 0, 1e-9) && isSame(m.At(i, 1), 0, 1e-9) {
			zeroRows++
		}
	}
	if zeroRows != 1 {
		t.Fatalf("want exactly one collapsed zero row, got %d", zeroRows)
	}
}

func TestIsSame(t *testing.T) {
	if !isSame(1.0, 1.0+1e-17) {
		t.Fatal("expected values within default tolerance to compare same")
	}
	if isSame(1.0, 1.0+1e-10) {
		t.Fatal("expected values outside default tolerance to compare different")
	}
	if !isSame(1.0, 1.0+1e-6, 1e-5) {
		t.Fatal("expected explicit tolerance to be honored")
	}
}

func TestPermuteColumns(t *testing.T) {
	a := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	PermuteColumns(a, []int{2, 1, 0})
	want := mat.NewDense(2, 3, []float64{3, 2, 1, 6, 5, 4})
	if !mat.Equal(a, want) {
		t.Fatalf("got %v want %v", a, want)
	}
}

func TestDotProductActive(t *testing.T) {
	v1 := []float64{1, 2, 3, 4}
	v2 := []float64{4, 3, 2, 1}
	got := DotProductActive(v1, v2, []int{0, 2})
	want := v1[0]*v2[0] + v1[2]*v2[2]
	if got != want {
		t.Fatalf("got %v want %v", got, want)
	}
}
