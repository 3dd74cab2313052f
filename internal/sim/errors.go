package sim

import (
	"errors"
	"fmt"
)

// MaxRFAmplitude bounds accepted RF samples in rad/s (about 3.7 mT of B1).
const MaxRFAmplitude = 1e6

var (
	// ErrMalformedBlock indicates sequence data the integrator cannot walk.
	ErrMalformedBlock = errors.New("sim: malformed sequence block")

	// ErrInitialState indicates a starting magnetization that does not fit the pools.
	ErrInitialState = errors.New("sim: initial state does not match parameters")
)

// SimulationError wraps an error with the position in the sequence.
type SimulationError struct {
	Block   int
	Label   string
	Time    float64
	Wrapped error
}

func (e *SimulationError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("block %d (%s) at t=%.6fs: %v", e.Block, e.Label, e.Time, e.Wrapped)
	}
	return fmt.Sprintf("block %d at t=%.6fs: %v", e.Block, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
