package qpnnls

import (
	"testing"

	"github.com/KirillM89/nqp/linsolve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestIsInequalitySkipsEqualityRows(t *testing.T) {
	m := mat.NewDense(4, 1, []float64{1, -1, 1, 1})
	s := []float64{0, 0, 1, 1}
	solver := linsolve.NewLDLTSolver(m, s)
	loop := NewPrimalLoop(solver, 1, DefaultUserSettings())

	assert.False(t, loop.isInequality(0))
	assert.False(t, loop.isInequality(1))
	assert.True(t, loop.isInequality(2))
	assert.True(t, loop.isInequality(3))
}

func TestMostNegativeInequalityIgnoresEqualityMultipliers(t *testing.T) {
	loop := NewPrimalLoop(nil, 1, DefaultUserSettings())
	out := linsolve.LinSolverOutput{
		Solution: []float64{-100, -100, -5, 3},
		Indices:  []int{0, 1, 2, 3},
	}
	idx, val, found := loop.mostNegativeInequality(out)
	require.True(t, found)
	assert.Equal(t, 2, idx)
	assert.Equal(t, -5.0, val)
}

func TestPrimalRunTerminatesAllPositiveImmediately(t *testing.T) {
	m := mat.NewDense(2, 1, []float64{1, 1})
	s := []float64{1, 1}
	solver := linsolve.NewLDLTSolver(m, s)
	solver.Add(0)
	solver.Add(1)
	loop := NewPrimalLoop(solver, 0, DefaultUserSettings())

	out, status := loop.Run(linsolve.LinSolverOutput{
		Solution: []float64{1, 1},
		Indices:  []int{0, 1},
	})
	assert.Equal(t, AllPrimalPositive, status)
	assert.Equal(t, []float64{1, 1}, out.Solution)
}

func TestPrimalRunDropsMostNegativeAndResolves(t *testing.T) {
	m := mat.NewDense(2, 1, []float64{1, 1})
	s := []float64{-1, 1}
	solver := linsolve.NewLDLTSolver(m, s)
	solver.Add(0)
	solver.Add(1)
	loop := NewPrimalLoop(solver, 0, DefaultUserSettings())

	out, status := loop.Run(linsolve.LinSolverOutput{
		Solution: []float64{1, -1},
		Indices:  []int{0, 1},
	})
	assert.Equal(t, AllPrimalPositive, status)
	assert.Equal(t, 1, solver.NActive())
	assert.False(t, solver.IsActive(1))
	_ = out
}

func TestDeltaNormZeroWhenUnchanged(t *testing.T) {
	v := []float64{1, 2, 3}
	assert.Equal(t, 0.0, deltaNorm(v, v))
}
