package bloch

import (
	"fmt"

	"github.com/san-kum/bmcsim/internal/pools"
)

// Layout describes where each pool's components live in the state vector.
//
// The vector is ordered [Mx_w Mx_1..Mx_N | My_w My_1..My_N | Mz_w Mz_1..Mz_N | Mz_mt];
// the semi-solid pool only carries a longitudinal component.
type Layout struct {
	CEST int
	MT   bool
}

func LayoutOf(p *pools.Parameters) Layout {
	return Layout{CEST: p.NumCEST(), MT: p.HasMT()}
}

// Pools counts water plus the CEST pools.
func (l Layout) Pools() int { return l.CEST + 1 }

// Dim is the physical state dimension.
func (l Layout) Dim() int {
	n := 3 * l.Pools()
	if l.MT {
		n++
	}
	return n
}

// Aug is the propagated dimension including the reference element.
func (l Layout) Aug() int { return l.Dim() + 1 }

func (l Layout) X(pool int) int { return pool }
func (l Layout) Y(pool int) int { return l.Pools() + pool }
func (l Layout) Z(pool int) int { return 2*l.Pools() + pool }

// MTZ is the index of the semi-solid pool's Mz, or -1 without one.
func (l Layout) MTZ() int {
	if !l.MT {
		return -1
	}
	return 3 * l.Pools()
}

func (l Layout) String() string {
	if l.MT {
		return fmt.Sprintf("water+%d cest+mt", l.CEST)
	}
	return fmt.Sprintf("water+%d cest", l.CEST)
}

type Vec3 struct {
	X, Y, Z float64
}

// Magnetization is a state vector together with its layout.
type Magnetization struct {
	Layout Layout
	M      []float64
}

func NewMagnetization(l Layout) Magnetization {
	return Magnetization{Layout: l, M: make([]float64, l.Dim())}
}

// Equilibrium returns the fully relaxed state, Mz = f, scaled by scale.
func Equilibrium(p *pools.Parameters, scale float64) Magnetization {
	m := NewMagnetization(LayoutOf(p))
	l := m.Layout
	m.M[l.Z(0)] = p.Water.F * scale
	for i, c := range p.CEST {
		m.M[l.Z(i+1)] = c.F * scale
	}
	if l.MT {
		m.M[l.MTZ()] = p.MT.F * scale
	}
	return m
}

func (m Magnetization) Clone() Magnetization {
	c := Magnetization{Layout: m.Layout, M: make([]float64, len(m.M))}
	copy(c.M, m.M)
	return c
}

// Pool returns the components of pool i (0 = water). For the MT pool use MT.
func (m Magnetization) Pool(i int) Vec3 {
	l := m.Layout
	return Vec3{X: m.M[l.X(i)], Y: m.M[l.Y(i)], Z: m.M[l.Z(i)]}
}

func (m Magnetization) Water() Vec3     { return m.Pool(0) }
func (m Magnetization) CEST(i int) Vec3 { return m.Pool(i + 1) }

// MT returns the semi-solid Mz, zero when the layout has no MT pool.
func (m Magnetization) MT() float64 {
	if !m.Layout.MT {
		return 0
	}
	return m.M[m.Layout.MTZ()]
}

// Spoil zeroes every transverse component.
func (m Magnetization) Spoil() {
	l := m.Layout
	for i := 0; i < l.Pools(); i++ {
		m.M[l.X(i)] = 0
		m.M[l.Y(i)] = 0
	}
}

// TotalMz sums the longitudinal magnetization of all pools.
func (m Magnetization) TotalMz() float64 {
	l := m.Layout
	sum := 0.0
	for i := 0; i < l.Pools(); i++ {
		sum += m.M[l.Z(i)]
	}
	if l.MT {
		sum += m.M[l.MTZ()]
	}
	return sum
}
