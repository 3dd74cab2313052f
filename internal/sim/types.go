package sim

import (
	"fmt"

	"github.com/san-kum/bmcsim/internal/bloch"
)

// Variant forces a solver implementation; VariantAuto lets the pool count decide.
type Variant int

const (
	VariantAuto Variant = iota
	VariantFixed
	VariantDynamic
)

func (v Variant) String() string {
	switch v {
	case VariantFixed:
		return "fixed"
	case VariantDynamic:
		return "dynamic"
	default:
		return "auto"
	}
}

func ParseVariant(s string) (Variant, error) {
	switch s {
	case "", "auto":
		return VariantAuto, nil
	case "fixed":
		return VariantFixed, nil
	case "dynamic":
		return VariantDynamic, nil
	default:
		return VariantAuto, fmt.Errorf("unknown solver variant: %s", s)
	}
}

type Config struct {
	// ResetInitMag restores the initial state after every readout.
	ResetInitMag bool
	// MaxPulseSamples decimates longer RF waveforms; 0 keeps every sample.
	MaxPulseSamples int
	// InitialScale multiplies the equilibrium state used as starting point.
	InitialScale float64
	// TrackPhase subtracts the phase accumulated by earlier off-resonant
	// pulses since the last readout.
	TrackPhase bool
	// RFThreshold (rad/s): samples at or below it are free precession.
	RFThreshold float64
	Gradient    bloch.GradientModel
	Variant     Variant
	// Verbose logs every block at Info instead of Debug.
	Verbose bool
}

func DefaultConfig() Config {
	return Config{
		InitialScale: 1,
		TrackPhase:   true,
		Gradient:     bloch.DefaultGradientModel(),
	}
}

func (c Config) validate() error {
	if c.MaxPulseSamples < 0 {
		return fmt.Errorf("max pulse samples must be non-negative, got %d", c.MaxPulseSamples)
	}
	if c.RFThreshold < 0 {
		return fmt.Errorf("rf threshold must be non-negative, got %g", c.RFThreshold)
	}
	if c.InitialScale < 0 {
		return fmt.Errorf("initial scale must be non-negative, got %g", c.InitialScale)
	}
	return nil
}

// Observer is notified of every readout while a run progresses.
type Observer interface {
	OnReadout(index int, t float64, label string, m bloch.Magnetization)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(index int, t float64, label string, m bloch.Magnetization)

func (f ObserverFunc) OnReadout(index int, t float64, label string, m bloch.Magnetization) {
	f(index, t, label, m)
}

// Result holds the recorded readouts of one run.
type Result struct {
	Trajectory []bloch.Magnetization
	Times      []float64
	Labels     []string
	Final      bloch.Magnetization

	Blocks   int
	Steps    int
	Rebuilds int
	Solver   bloch.Kind
}

func (r *Result) Len() int { return len(r.Trajectory) }

// WaterMz returns the water Mz of every readout.
func (r *Result) WaterMz() []float64 {
	out := make([]float64, len(r.Trajectory))
	for i, m := range r.Trajectory {
		out[i] = m.Water().Z
	}
	return out
}

// PoolMz returns Mz of pool i (0 = water) at every readout.
func (r *Result) PoolMz(i int) []float64 {
	out := make([]float64, len(r.Trajectory))
	for k, m := range r.Trajectory {
		out[k] = m.Pool(i).Z
	}
	return out
}
