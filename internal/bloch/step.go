package bloch

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/mat"
)

// Step returns exp(A*dt) applied to [state; 1], truncated to the physical
// components. A must be the augmented square matrix of dimension len(state)+1.
func Step(state []float64, a mat.Matrix, dt float64) ([]float64, error) {
	r, c := a.Dims()
	if r != c || r != len(state)+1 {
		return nil, fmt.Errorf("%w: state %d, matrix %dx%d", ErrLayoutMismatch, len(state), r, c)
	}
	out := make([]float64, len(state))
	if dt < 0 {
		return nil, fmt.Errorf("%w: %g", ErrNegativeInterval, dt)
	}
	if dt == 0 {
		copy(out, state)
		return out, nil
	}

	var scaled, e mat.Dense
	scaled.Scale(dt, a)
	e.Exp(&scaled)
	apply(out, e.RawMatrix(), state)
	if !allFinite(out) {
		return nil, ErrNumerical
	}
	return out, nil
}

// apply writes the physical part of E*[m; 1] into dst. dst must not alias m.
func apply(dst []float64, e blas64.General, m []float64) {
	n := len(m)
	for i := 0; i < n; i++ {
		row := e.Data[i*e.Stride : i*e.Stride+n+1]
		sum := row[n]
		for j, v := range m {
			sum += row[j] * v
		}
		dst[i] = sum
	}
}

func allFinite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
