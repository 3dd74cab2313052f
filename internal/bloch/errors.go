package bloch

import "errors"

var (
	// ErrNumerical indicates a non-finite propagator or a singular Pade denominator.
	ErrNumerical = errors.New("bloch: numerical failure in matrix exponential")

	// ErrNegativeInterval indicates a step with dt < 0.
	ErrNegativeInterval = errors.New("bloch: negative time interval")

	// ErrLayoutMismatch indicates a state vector that does not fit the bound system.
	ErrLayoutMismatch = errors.New("bloch: state layout does not match system")

	// ErrUnsupportedSize indicates a pool count outside the fixed-size solver range.
	ErrUnsupportedSize = errors.New("bloch: pool count not supported by fixed solver")
)
