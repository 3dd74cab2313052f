package bloch

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/bmcsim/internal/pools"
)

// Builder assembles the augmented Bloch-McConnell matrix for one parameter set.
//
// Relaxation, exchange and the offset column are fixed per parameter set and
// computed once; Build overlays the sample dependent terms.
type Builder struct {
	layout Layout
	n      int
	base   []float64

	w0    float64
	dw0   float64
	relB1 float64
	gamma float64

	// shifts[p] is the chemical shift in ppm of water (p=0) and CEST pools.
	shifts []float64
	mt     *pools.MTPool
	grad   GradientModel
}

// NewBuilder validates p and precomputes the sample independent entries.
func NewBuilder(p *pools.Parameters, g GradientModel) (*Builder, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	l := LayoutOf(p)
	b := &Builder{
		layout: l,
		n:      l.Aug(),
		w0:     p.Scanner.Omega0(),
		relB1:  p.Scanner.RelB1,
		gamma:  p.Scanner.Gamma,
		grad:   g,
	}
	b.dw0 = b.w0 * p.Scanner.B0Inhomogeneity
	b.shifts = make([]float64, l.Pools())
	for i, c := range p.CEST {
		b.shifts[i+1] = c.DW
	}
	if p.MT != nil {
		mt := *p.MT
		b.mt = &mt
	}
	b.base = make([]float64, b.n*b.n)
	b.fillBase(p)
	return b, nil
}

func (b *Builder) Layout() Layout          { return b.layout }
func (b *Builder) Size() int               { return b.n }
func (b *Builder) Gradient() GradientModel { return b.grad }

func (b *Builder) fillBase(p *pools.Parameters) {
	l := b.layout
	n := b.n
	a := b.base
	set := func(i, j int, v float64) { a[i*n+j] = v }
	aug := n - 1

	fw := p.Water.F
	kwSum := 0.0
	for i, c := range p.CEST {
		kwi := c.K * c.F / fw
		kwSum += kwi
		q := i + 1

		set(l.X(0), l.X(q), c.K)
		set(l.X(q), l.X(0), kwi)
		set(l.Y(0), l.Y(q), c.K)
		set(l.Y(q), l.Y(0), kwi)
		set(l.Z(0), l.Z(q), c.K)
		set(l.Z(q), l.Z(0), kwi)

		set(l.X(q), l.X(q), -(c.R2 + c.K))
		set(l.Y(q), l.Y(q), -(c.R2 + c.K))
		set(l.Z(q), l.Z(q), -(c.R1 + c.K))
		set(l.Z(q), aug, c.F*c.R1)
	}

	kwm := 0.0
	if p.MT != nil {
		kwm = p.MT.K * p.MT.F / fw
		z := l.MTZ()
		set(l.Z(0), z, p.MT.K)
		set(z, l.Z(0), kwm)
		set(z, z, -(p.MT.R1 + p.MT.K))
		set(z, aug, p.MT.F*p.MT.R1)
	}

	set(l.X(0), l.X(0), -(p.Water.R2 + kwSum))
	set(l.Y(0), l.Y(0), -(p.Water.R2 + kwSum))
	set(l.Z(0), l.Z(0), -(p.Water.R1 + kwSum + kwm))
	set(l.Z(0), aug, fw*p.Water.R1)
}

// Build writes the row-major augmented matrix for sample s into dst,
// which must hold Size()*Size() elements.
func (b *Builder) Build(dst []float64, s Sample) {
	n := b.n
	copy(dst[:n*n], b.base)
	l := b.layout

	w1 := s.Amplitude * b.relB1
	sin, cos := math.Sincos(s.Phase)
	w1s, w1c := w1*sin, w1*cos
	omegaRF := 2*math.Pi*s.FreqOffset + b.dw0

	for p, dw := range b.shifts {
		x, y, z := l.X(p), l.Y(p), l.Z(p)
		delta := dw*b.w0 - (omegaRF + b.grad.Omega(b.gamma, s.Gradient, dw))
		dst[x*n+y] = delta
		dst[y*n+x] = -delta
		if w1 != 0 {
			dst[x*n+z] = -w1s
			dst[z*n+x] = w1s
			dst[y*n+z] = w1c
			dst[z*n+y] = -w1c
		}
	}

	if b.mt != nil && w1 != 0 && b.mt.Lineshape != pools.NoLineshape {
		z := l.MTZ()
		offset := omegaRF + b.grad.Omega(b.gamma, s.Gradient, b.mt.DW)
		g := Absorption(b.mt.Lineshape, 1/b.mt.R2, offset-b.mt.DW*b.w0, b.w0)
		dst[z*n+z] -= w1 * w1 * g
	}
}

// BuildMatrix assembles the augmented system matrix as a gonum dense matrix.
// n is its dimension (physical state size + 1).
func BuildMatrix(p *pools.Parameters, s Sample, g GradientModel) (*mat.Dense, int, error) {
	b, err := NewBuilder(p, g)
	if err != nil {
		return nil, 0, fmt.Errorf("build matrix: %w", err)
	}
	data := make([]float64, b.n*b.n)
	b.Build(data, s)
	return mat.NewDense(b.n, b.n, data), b.n, nil
}
