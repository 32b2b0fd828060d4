// Package qpnnls solves dense convex quadratic programs
//
//	minimize    (1/2) xᵀHx + cᵀx
//	subject to  Ax ≤ b,  Fx = g,  lw ≤ x ≤ up
//
// via the NNLS (Non-Negative Least Squares) dual reformulation: the
// problem preparer converts (H,c,A,b,F,g,lw,up) into canonical NNLS data
// (M,s,Chol,CholInv), and a dual active-set loop grows the active set one
// violating constraint at a time, calling an inner primal NNLS loop to
// keep the trial multipliers non-negative (spec.md §§2-4).
package qpnnls

import (
	"time"

	"github.com/KirillM89/nqp/cholesky"
	"gonum.org/v1/gonum/mat"
)

// ProblemConfiguration selects the problem representation. Only Dense is
// implemented; Sparse is declared (spec.md §9 Open Question (b)) but
// returns ErrSparseUnsupported from Solve.
type ProblemConfiguration int

const (
	Dense ProblemConfiguration = iota
	Sparse
)

// DBScalerStrategy selects how constraint rows are rescaled by the
// problem preparer before the NNLS transform (spec.md §4.6 step 2).
type DBScalerStrategy int

const (
	ScaleFactor DBScalerStrategy = iota
	Balance
)

// GammaUpdateStrategyDual selects how gamma is updated by the dual loop
// after a constraint is added (spec.md §4.4 step 7).
type GammaUpdateStrategyDual int

const (
	DualNoUpdate GammaUpdateStrategyDual = iota
	IncrementBySComponent
)

// GammaUpdateStrategyPrimal selects how gamma is updated by the primal
// loop after a constraint is dropped (spec.md §4.5 step 5).
type GammaUpdateStrategyPrimal int

const (
	PrimalNoUpdate GammaUpdateStrategyPrimal = iota
	DecrementByDNorm
)

// CholPivotingStrategy is an alias of cholesky.PivotingStrategy: the
// solver's UserSettings surface the same three choices the Cholesky
// package already names, so no second enum is declared (spec.md §9:
// dispatch is per-Solve, not per-iteration — there's likewise no need for
// a second vocabulary for the same choice).
type CholPivotingStrategy = cholesky.PivotingStrategy

const (
	NoPivoting = cholesky.NoPivoting
	Partial    = cholesky.Partial
	Full       = cholesky.Full
)

// DualLoopExitStatus is the outer loop's termination reason (spec.md
// §4.4).
type DualLoopExitStatus int

const (
	AllDualPositive DualLoopExitStatus = iota
	FullActiveSet
	DualIterationsExhausted
	Infeasibility
	DualUnknown
)

func (s DualLoopExitStatus) String() string {
	switch s {
	case AllDualPositive:
		return "ALL_DUAL_POSITIVE"
	case FullActiveSet:
		return "FULL_ACTIVE_SET"
	case DualIterationsExhausted:
		return "ITERATIONS"
	case Infeasibility:
		return "INFEASIBILITY"
	default:
		return "UNKNOWN"
	}
}

// PrimalLoopExitStatus is the inner loop's termination reason (spec.md
// §4.5).
type PrimalLoopExitStatus int

const (
	EmptyActiveSet PrimalLoopExitStatus = iota
	AllPrimalPositive
	PrimalIterationsExhausted
	EmptyActiveSetOnZeroIteration
	SingularMatrix
	DidntStart
	PrimalUnknown
)

func (s PrimalLoopExitStatus) String() string {
	switch s {
	case EmptyActiveSet:
		return "EMPTY_ACTIVE_SET"
	case AllPrimalPositive:
		return "ALL_PRIMAL_POSITIVE"
	case PrimalIterationsExhausted:
		return "ITERATIONS"
	case EmptyActiveSetOnZeroIteration:
		return "EMPTY_ACTIVE_SET_ON_ZERO_ITERATION"
	case SingularMatrix:
		return "SINGULAR_MATRIX"
	case DidntStart:
		return "DIDNT_STARTED"
	default:
		return "UNKNOWN"
	}
}

// UserSettings carries every documented option of spec.md §6, with
// DefaultUserSettings() providing the documented defaults.
type UserSettings struct {
	Configuration     ProblemConfiguration
	DBScalerStrategy  DBScalerStrategy
	CholPvtStrategy   CholPivotingStrategy
	NDualIterations   int
	NPrimalIterations int
	LogLevel          int

	NNLSResidNormFsb float64
	OrigPrimalFsb    float64
	NNLSPrimalZero   float64
	MinNNLSDualTol   float64

	LogFile       string
	CheckProblem  bool
	GammaDual     GammaUpdateStrategyDual
	GammaPrimal   GammaUpdateStrategyPrimal
}

// DefaultUserSettings returns the documented defaults (spec.md §6).
func DefaultUserSettings() UserSettings {
	return UserSettings{
		Configuration:     Dense,
		DBScalerStrategy:  ScaleFactor,
		CholPvtStrategy:   NoPivoting,
		NDualIterations:   100,
		NPrimalIterations: 100,
		LogLevel:          0,
		NNLSResidNormFsb:  1.0e-16,
		OrigPrimalFsb:     1.0e-6,
		NNLSPrimalZero:    -1.0e-16,
		MinNNLSDualTol:    -1.0e-12,
		LogFile:           "logNNLS.txt",
		CheckProblem:      false,
		GammaDual:         DualNoUpdate,
		GammaPrimal:       PrimalNoUpdate,
	}
}

// DenseQPProblem is the user-facing problem (spec.md §3):
//
//	minimize    (1/2) xᵀHx + cᵀx
//	subject to  Ax ≤ b, Fx = g, lw ≤ x ≤ up
//
// H must be symmetric positive (semi-)definite; lw/up may contain ±Inf
// sentinels for one-sided or unbounded variables.
type DenseQPProblem struct {
	H      *mat.Dense
	A      *mat.Dense
	F      *mat.Dense
	B      []float64
	C      []float64
	G      []float64
	Up     []float64
	Lw     []float64
}

// TimeIntervals records the wall-clock cost of each initialization stage
// (spec.md §6, dumped by the stage-1 callback).
type TimeIntervals struct {
	Chol  time.Duration
	Inv   time.Duration
	M     time.Duration
	Solve time.Duration
}

// SolverOutput is always fully populated; dualExitStatus/primalExitStatus
// jointly determine the authoritative outcome (spec.md §7).
type SolverOutput struct {
	DualExitStatus   DualLoopExitStatus
	PrimalExitStatus PrimalLoopExitStatus
	NDualIterations  int
	MaxViolation     float64
	DualityGap       float64
	Timings          TimeIntervals
	X                []float64
	Y                []float64
}
