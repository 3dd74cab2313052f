package bloch

import (
	"fmt"
	"math"
)

// Dormand-Prince coefficients (RK45)
var (
	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0
)

// maxRKSteps bounds the number of accepted and rejected steps of one Integrate call.
const maxRKSteps = 1_000_000

// RK45 integrates dM/dt = A [M; 1] with adaptive Dormand-Prince steps.
// It serves as an independent reference for the exponential propagators.
type RK45 struct {
	safety   float64
	minScale float64
	maxScale float64
	Tol      float64
}

func NewRK45() *RK45 {
	return &RK45{
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
		Tol:      1e-10,
	}
}

// Integrate advances state over dt. a is the row-major augmented matrix of
// dimension len(state)+1. It returns the new state and the number of steps taken.
func (r *RK45) Integrate(a []float64, state []float64, dt float64) ([]float64, int, error) {
	if dt < 0 {
		return nil, 0, fmt.Errorf("%w: %g", ErrNegativeInterval, dt)
	}
	n := len(state)
	if len(a) != (n+1)*(n+1) {
		return nil, 0, fmt.Errorf("%w: state %d, matrix %d", ErrLayoutMismatch, n, len(a))
	}
	x := make([]float64, n)
	copy(x, state)
	if dt == 0 {
		return x, 0, nil
	}

	t := 0.0
	h := dt / 100
	steps := 0
	for t < dt {
		if steps >= maxRKSteps {
			return nil, steps, fmt.Errorf("%w: rk45 did not converge", ErrNumerical)
		}
		if t+h > dt {
			h = dt - t
		}
		xNew, errRatio := r.step(a, x, h)
		steps++
		if errRatio <= 1 || h < 1e-15 {
			t += h
			x = xNew
			if !allFinite(x) {
				return nil, steps, ErrNumerical
			}
		}
		h *= r.scale(errRatio)
	}
	return x, steps, nil
}

func (r *RK45) scale(errRatio float64) float64 {
	switch {
	case errRatio > 1:
		return math.Max(r.minScale, r.safety*math.Pow(errRatio, -0.25))
	case errRatio > 0:
		return math.Min(r.maxScale, r.safety*math.Pow(errRatio, -0.2))
	default:
		return r.maxScale
	}
}

func derive(a, x []float64) []float64 {
	n := len(x)
	dx := make([]float64, n)
	for i := 0; i < n; i++ {
		row := a[i*(n+1) : (i+1)*(n+1)]
		sum := row[n]
		for j, v := range x {
			sum += row[j] * v
		}
		dx[i] = sum
	}
	return dx
}

func (r *RK45) step(a, x []float64, dt float64) ([]float64, float64) {
	n := len(x)
	stage := func(f func(i int) float64) []float64 {
		y := make([]float64, n)
		for i := 0; i < n; i++ {
			y[i] = x[i] + dt*f(i)
		}
		return y
	}

	k1 := derive(a, x)
	k2 := derive(a, stage(func(i int) float64 { return b21 * k1[i] }))
	k3 := derive(a, stage(func(i int) float64 { return b31*k1[i] + b32*k2[i] }))
	k4 := derive(a, stage(func(i int) float64 { return b41*k1[i] + b42*k2[i] + b43*k3[i] }))
	k5 := derive(a, stage(func(i int) float64 {
		return b51*k1[i] + b52*k2[i] + b53*k3[i] + b54*k4[i]
	}))
	k6 := derive(a, stage(func(i int) float64 {
		return b61*k1[i] + b62*k2[i] + b63*k3[i] + b64*k4[i] + b65*k5[i]
	}))
	xNew := stage(func(i int) float64 {
		return c1*k1[i] + c3*k3[i] + c4*k4[i] + c5*k5[i] + c6*k6[i]
	})
	k7 := derive(a, xNew)

	errMax := 0.0
	for i := 0; i < n; i++ {
		errEst := dt * (dc1*k1[i] + dc3*k3[i] + dc4*k4[i] + dc5*k5[i] + dc6*k6[i] + dc7*k7[i])
		scale := math.Abs(x[i]) + math.Abs(dt*k1[i]) + 1e-10
		errMax = math.Max(errMax, math.Abs(errEst)/scale)
	}
	return xNew, errMax / r.Tol
}
