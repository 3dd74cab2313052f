package seq

import (
	"fmt"
	"math"
	"strings"
)

// Shape is an RF envelope.
type Shape int

const (
	ShapeBlock Shape = iota
	ShapeGauss
	ShapeHanning
	ShapeSiemensGauss
)

// gaussTBW is the time-bandwidth product of the gaussian envelope.
const gaussTBW = 4.0

func (s Shape) String() string {
	switch s {
	case ShapeGauss:
		return "gauss"
	case ShapeHanning:
		return "hanning"
	case ShapeSiemensGauss:
		return "siemens-gauss"
	default:
		return "block"
	}
}

func ParseShape(s string) (Shape, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "block", "cw", "rect":
		return ShapeBlock, nil
	case "gauss", "gaussian":
		return ShapeGauss, nil
	case "hanning", "hann":
		return ShapeHanning, nil
	case "siemens-gauss", "siemens_gauss", "gauss-siemens":
		return ShapeSiemensGauss, nil
	default:
		return ShapeBlock, fmt.Errorf("unknown pulse shape: %s", s)
	}
}

// MarshalText lets shapes appear by name in config files.
func (s Shape) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Shape) UnmarshalText(b []byte) error {
	v, err := ParseShape(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Envelope returns n samples of the shape scaled to a mean of 1.
func (s Shape) Envelope(n int) []float64 {
	if n <= 0 {
		return nil
	}
	env := make([]float64, n)
	for i := range env {
		// sample centres on [0, 1]
		x := (float64(i) + 0.5) / float64(n)
		switch s {
		case ShapeGauss:
			u := gaussTBW * (x - 0.5)
			env[i] = math.Exp(-math.Pi * u * u)
		case ShapeHanning:
			env[i] = 0.5 * (1 - math.Cos(2*math.Pi*x))
		case ShapeSiemensGauss:
			env[i] = -25.88*math.Pow(x, 6) + 76.88*math.Pow(x, 5) - 67.47*math.Pow(x, 4) +
				8.011*math.Pow(x, 3) + 8.034*x*x + 0.4235*x - 0.0002965
			env[i] = math.Max(env[i], 0)
		default:
			env[i] = 1
		}
	}
	mean := 0.0
	for _, v := range env {
		mean += v
	}
	mean /= float64(n)
	for i := range env {
		env[i] /= mean
	}
	return env
}

// NewPulse samples a shaped pulse whose mean B1 is b1 (uT).
// gamma is in rad/s/uT; a block shape collapses to a single sample.
func NewPulse(shape Shape, b1, duration, raster, gamma, freqOffset float64) (*RF, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("pulse duration must be positive, got %g", duration)
	}
	n := 1
	if shape != ShapeBlock {
		if raster <= 0 {
			return nil, fmt.Errorf("pulse raster must be positive, got %g", raster)
		}
		n = int(math.Round(duration / raster))
		if n < 1 {
			n = 1
		}
	}
	env := shape.Envelope(n)
	rf := &RF{
		Amplitude:  make([]float64, n),
		Phase:      make([]float64, n),
		Raster:     duration / float64(n),
		FreqOffset: freqOffset,
	}
	for i, e := range env {
		rf.Amplitude[i] = e * b1 * gamma
	}
	return rf, nil
}

// FlipAngle is the nominal rotation of the pulse in rad.
func (r *RF) FlipAngle() float64 {
	sum := 0.0
	for _, a := range r.Amplitude {
		sum += a
	}
	return sum * r.Raster
}

// PowerEquivalent is the continuous wave power equivalent B1 (uT) of a
// train of this pulse separated by td.
func (r *RF) PowerEquivalent(td, gamma float64) float64 {
	tp := r.Duration()
	if tp <= 0 || gamma <= 0 {
		return 0
	}
	sum := 0.0
	for _, a := range r.Amplitude {
		b := a / gamma
		sum += b * b
	}
	return math.Sqrt(sum * r.Raster / tp * tp / (tp + td))
}

// AmplitudeEquivalent is the continuous wave amplitude equivalent B1 (uT).
func (r *RF) AmplitudeEquivalent(td, gamma float64) float64 {
	tp := r.Duration()
	if tp <= 0 || gamma <= 0 {
		return 0
	}
	return r.FlipAngle() / (gamma * tp) * tp / (tp + td)
}
