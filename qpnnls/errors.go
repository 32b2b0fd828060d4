package qpnnls

import "errors"

// Input errors (spec.md §7): dimension mismatch, non-symmetric H, NaN.
// Reported before any iteration runs.
var (
	ErrDimensionMismatch = errors.New("qpnnls: dimension mismatch between problem data")
	ErrNotSymmetric      = errors.New("qpnnls: H is not symmetric")
	ErrNaN               = errors.New("qpnnls: problem data contains NaN")
	// ErrSparseUnsupported is returned immediately for
	// UserSettings.Configuration == Sparse: sparse support is declared
	// but not implemented (spec.md §1, §9 Open Question (b)).
	ErrSparseUnsupported = errors.New("qpnnls: sparse configuration is declared but not implemented")
)
