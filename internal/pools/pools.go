package pools

import (
	"fmt"
	"math"
	"strings"
)

// MaxCESTPools bounds the number of exchanging pools a parameter set may carry.
const MaxCESTPools = 100

// DefaultGamma is the proton gyromagnetic ratio in rad/s/uT.
const DefaultGamma = 267.5153

// fractionTolerance is the allowed deviation of the summed fractions from 1.
const fractionTolerance = 1e-6

type WaterPool struct {
	R1 float64 `yaml:"r1" toml:"r1" json:"r1"`
	R2 float64 `yaml:"r2" toml:"r2" json:"r2"`
	F  float64 `yaml:"f" toml:"f" json:"f"`
}

type CESTPool struct {
	Name string  `yaml:"name,omitempty" toml:"name,omitempty" json:"name,omitempty"`
	R1   float64 `yaml:"r1" toml:"r1" json:"r1"`
	R2   float64 `yaml:"r2" toml:"r2" json:"r2"`
	F    float64 `yaml:"f" toml:"f" json:"f"`
	K    float64 `yaml:"k" toml:"k" json:"k"`
	// DW is the chemical shift relative to water in ppm.
	DW float64 `yaml:"dw" toml:"dw" json:"dw"`
}

// Lineshape selects the absorption lineshape of the semi-solid pool.
type Lineshape int

const (
	NoLineshape Lineshape = iota
	Lorentzian
	SuperLorentzian
)

func (l Lineshape) String() string {
	switch l {
	case Lorentzian:
		return "lorentzian"
	case SuperLorentzian:
		return "superlorentzian"
	default:
		return "none"
	}
}

// ParseLineshape accepts the names used in parameter files, case-insensitive.
func ParseLineshape(s string) (Lineshape, error) {
	switch strings.ToLower(strings.ReplaceAll(s, "_", "")) {
	case "", "none":
		return NoLineshape, nil
	case "lorentzian":
		return Lorentzian, nil
	case "superlorentzian":
		return SuperLorentzian, nil
	default:
		return NoLineshape, fmt.Errorf("unknown lineshape: %s", s)
	}
}

type MTPool struct {
	R1        float64   `yaml:"r1" toml:"r1" json:"r1"`
	R2        float64   `yaml:"r2" toml:"r2" json:"r2"`
	F         float64   `yaml:"f" toml:"f" json:"f"`
	K         float64   `yaml:"k" toml:"k" json:"k"`
	DW        float64   `yaml:"dw" toml:"dw" json:"dw"`
	Lineshape Lineshape `yaml:"-" toml:"-" json:"lineshape"`
}

// Scanner holds the global field properties.
type Scanner struct {
	B0    float64 `yaml:"b0" toml:"b0" json:"b0"`
	Gamma float64 `yaml:"gamma" toml:"gamma" json:"gamma"`
	// B0Inhomogeneity is the field offset in ppm.
	B0Inhomogeneity float64 `yaml:"b0_inhomogeneity" toml:"b0_inhomogeneity" json:"b0_inhomogeneity"`
	RelB1           float64 `yaml:"rel_b1" toml:"rel_b1" json:"rel_b1"`
}

func DefaultScanner() Scanner {
	return Scanner{B0: 3, Gamma: DefaultGamma, RelB1: 1}
}

// Omega0 returns the Larmor frequency in rad/s per ppm of chemical shift.
func (s Scanner) Omega0() float64 {
	return s.B0 * s.Gamma
}

// Parameters is the full pool configuration of one simulation.
type Parameters struct {
	Water   WaterPool
	CEST    []CESTPool
	MT      *MTPool
	Scanner Scanner
}

func New(water WaterPool, scanner Scanner) *Parameters {
	return &Parameters{Water: water, Scanner: scanner}
}

func (p *Parameters) SetWater(w WaterPool) { p.Water = w }
func (p *Parameters) SetScanner(s Scanner) { p.Scanner = s }
func (p *Parameters) AddCEST(c CESTPool)   { p.CEST = append(p.CEST, c) }
func (p *Parameters) ClearCEST()           { p.CEST = nil }
func (p *Parameters) NumCEST() int         { return len(p.CEST) }
func (p *Parameters) HasMT() bool          { return p.MT != nil }

// SetMT stores a copy of mt; nil disables the semi-solid pool.
func (p *Parameters) SetMT(mt *MTPool) {
	if mt == nil {
		p.MT = nil
		return
	}
	c := *mt
	p.MT = &c
}

// SetCEST replaces pool i.
func (p *Parameters) SetCEST(i int, c CESTPool) error {
	if i < 0 || i >= len(p.CEST) {
		return fmt.Errorf("cest pool index %d out of range [0,%d)", i, len(p.CEST))
	}
	p.CEST[i] = c
	return nil
}

// Clone returns a deep copy.
func (p *Parameters) Clone() *Parameters {
	c := &Parameters{Water: p.Water, Scanner: p.Scanner}
	if len(p.CEST) > 0 {
		c.CEST = make([]CESTPool, len(p.CEST))
		copy(c.CEST, p.CEST)
	}
	c.SetMT(p.MT)
	return c
}

// TotalFraction sums the fractions of every pool.
func (p *Parameters) TotalFraction() float64 {
	sum := p.Water.F
	for _, c := range p.CEST {
		sum += c.F
	}
	if p.MT != nil {
		sum += p.MT.F
	}
	return sum
}

// Normalize rescales relative fractions (water = 1 convention) so that
// all fractions sum to 1. Exchange rates per proton are unchanged.
func (p *Parameters) Normalize() error {
	total := p.TotalFraction()
	if total <= 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return fmt.Errorf("%w: total fraction %g", ErrFractionSum, total)
	}
	p.Water.F /= total
	for i := range p.CEST {
		p.CEST[i].F /= total
	}
	if p.MT != nil {
		p.MT.F /= total
	}
	return nil
}

// Validate checks the parameter set before any matrix is built.
func (p *Parameters) Validate() error {
	if len(p.CEST) > MaxCESTPools {
		return fmt.Errorf("%w: %d > %d", ErrTooManyPools, len(p.CEST), MaxCESTPools)
	}
	if p.Water.F <= 0 {
		return fmt.Errorf("%w: water fraction %g", ErrMissingWater, p.Water.F)
	}
	if err := checkRates("water", p.Water.R1, p.Water.R2, 0, p.Water.F); err != nil {
		return err
	}
	for i, c := range p.CEST {
		if err := checkRates(fmt.Sprintf("cest pool %d", i+1), c.R1, c.R2, c.K, c.F); err != nil {
			return err
		}
		if !finite(c.DW) {
			return fmt.Errorf("%w: cest pool %d shift %g", ErrInvalidValue, i+1, c.DW)
		}
	}
	if p.MT != nil {
		if err := checkRates("mt pool", p.MT.R1, p.MT.R2, p.MT.K, p.MT.F); err != nil {
			return err
		}
		if !finite(p.MT.DW) {
			return fmt.Errorf("%w: mt pool shift %g", ErrInvalidValue, p.MT.DW)
		}
		if p.MT.Lineshape != NoLineshape && p.MT.R2 <= 0 {
			return fmt.Errorf("%w: mt pool needs R2 > 0 for a %s lineshape", ErrNegativeRate, p.MT.Lineshape)
		}
	}
	if total := p.TotalFraction(); math.Abs(total-1) > fractionTolerance {
		return fmt.Errorf("%w: got %.9f", ErrFractionSum, total)
	}
	s := p.Scanner
	if s.B0 <= 0 || s.Gamma <= 0 || !finite(s.B0) || !finite(s.Gamma) {
		return fmt.Errorf("%w: b0=%g gamma=%g", ErrInvalidScanner, s.B0, s.Gamma)
	}
	if s.RelB1 < 0 || !finite(s.RelB1) || !finite(s.B0Inhomogeneity) {
		return fmt.Errorf("%w: rel_b1=%g b0_inhomogeneity=%g", ErrInvalidScanner, s.RelB1, s.B0Inhomogeneity)
	}
	return nil
}

func checkRates(name string, r1, r2, k, f float64) error {
	for _, v := range []float64{r1, r2, k, f} {
		if !finite(v) {
			return fmt.Errorf("%w: %s has non-finite value", ErrInvalidValue, name)
		}
	}
	if r1 < 0 || r2 < 0 || k < 0 {
		return fmt.Errorf("%w: %s (r1=%g r2=%g k=%g)", ErrNegativeRate, name, r1, r2, k)
	}
	if f < 0 {
		return fmt.Errorf("%w: %s fraction %g", ErrFractionSum, name, f)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
