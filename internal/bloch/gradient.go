package bloch

import (
	"fmt"
	"strings"
)

// GradientPolicy selects how gradient samples couple into the system.
type GradientPolicy int

const (
	// GradientSpoil keeps gradients out of the matrix; the integrator zeroes
	// transverse magnetization after gradient-only blocks.
	GradientSpoil GradientPolicy = iota
	// GradientUniform adds gamma*G*z to every pool's offset.
	GradientUniform
	// GradientChemicalShift scales the gradient offset by (1 + dw*1e-6) per pool.
	GradientChemicalShift
)

func (p GradientPolicy) String() string {
	switch p {
	case GradientUniform:
		return "uniform"
	case GradientChemicalShift:
		return "chemical-shift"
	default:
		return "spoil"
	}
}

func ParseGradientPolicy(s string) (GradientPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "spoil":
		return GradientSpoil, nil
	case "uniform":
		return GradientUniform, nil
	case "chemical-shift", "chemical_shift", "chemicalshift":
		return GradientChemicalShift, nil
	default:
		return GradientSpoil, fmt.Errorf("unknown gradient policy: %s", s)
	}
}

// GradientModel couples gradient samples at a fixed spin position.
type GradientModel struct {
	Policy   GradientPolicy
	Position float64 // m along the gradient axis
}

func DefaultGradientModel() GradientModel {
	return GradientModel{Policy: GradientSpoil}
}

// Spoils reports whether gradient-only blocks destroy transverse magnetization.
func (g GradientModel) Spoils() bool {
	return g.Policy == GradientSpoil
}

// Omega returns the gradient induced offset in rad/s for a pool with
// chemical shift dw (ppm). grad is in mT/m, gamma in rad/s/uT.
func (g GradientModel) Omega(gamma, grad, dw float64) float64 {
	switch g.Policy {
	case GradientUniform:
		return gamma * grad * 1e3 * g.Position
	case GradientChemicalShift:
		return gamma * grad * 1e3 * g.Position * (1 + dw*1e-6)
	default:
		return 0
	}
}
