package bloch

import (
	"fmt"

	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/bmcsim/internal/pools"
)

// MaxFixedCEST is the largest CEST pool count served by the fixed solver.
const MaxFixedCEST = 3

type Kind int

const (
	Fixed Kind = iota
	Dynamic
)

func (k Kind) String() string {
	if k == Fixed {
		return "fixed"
	}
	return "dynamic"
}

// Stats counts the work done by a solver since it was created.
type Stats struct {
	Steps    int // matrix exponentials evaluated
	Rebuilds int // system matrices assembled
}

// Solver propagates magnetization for one bound parameter set.
//
// Implementations cache the system matrix and the last propagator, so
// consecutive intervals with the same sample (and length) are cheap.
type Solver interface {
	Layout() Layout
	Kind() Kind
	// Bind replaces the parameter set. The layout must not change.
	Bind(p *pools.Parameters) error
	// Propagate advances m in place over dt under sample s.
	Propagate(m Magnetization, s Sample, dt float64) error
	Stats() Stats
}

// NewSolver picks the fixed variant for up to MaxFixedCEST pools and the
// dynamic one otherwise.
func NewSolver(p *pools.Parameters, g GradientModel) (Solver, error) {
	if p.NumCEST() <= MaxFixedCEST {
		return NewFixedSolver(p, g)
	}
	return NewDynamicSolver(p, g)
}

// cache tracks the currently assembled matrix and propagator.
type cache struct {
	builder *Builder
	built   bool
	sample  Sample
	haveExp bool
	dt      float64
	stats   Stats
}

func (c *cache) needBuild(s Sample) bool {
	return !c.built || c.sample != s
}

func (c *cache) rebind(p *pools.Parameters, l Layout) error {
	if got := LayoutOf(p); got != l {
		return fmt.Errorf("%w: bound %s, got %s", ErrLayoutMismatch, l, got)
	}
	b, err := NewBuilder(p, c.builder.Gradient())
	if err != nil {
		return err
	}
	c.builder = b
	c.built = false
	c.haveExp = false
	return nil
}

func checkPropagate(m Magnetization, l Layout, dt float64) error {
	if m.Layout != l || len(m.M) != l.Dim() {
		return fmt.Errorf("%w: state %s, solver %s", ErrLayoutMismatch, m.Layout, l)
	}
	if dt < 0 {
		return fmt.Errorf("%w: %g", ErrNegativeInterval, dt)
	}
	return nil
}

type fixedSolver struct {
	cache
	layout Layout
	n      int
	a      [fixedLen]float64
	e      [fixedLen]float64
	ws     padeWorkspace
	out    [MaxFixedDim]float64
}

// NewFixedSolver builds the array backed solver for up to MaxFixedCEST pools.
func NewFixedSolver(p *pools.Parameters, g GradientModel) (Solver, error) {
	if p.NumCEST() > MaxFixedCEST {
		return nil, fmt.Errorf("%w: %d cest pools", ErrUnsupportedSize, p.NumCEST())
	}
	b, err := NewBuilder(p, g)
	if err != nil {
		return nil, err
	}
	return &fixedSolver{cache: cache{builder: b}, layout: b.Layout(), n: b.Size()}, nil
}

func (f *fixedSolver) Layout() Layout { return f.layout }
func (f *fixedSolver) Kind() Kind     { return Fixed }
func (f *fixedSolver) Stats() Stats   { return f.stats }

func (f *fixedSolver) Bind(p *pools.Parameters) error {
	return f.rebind(p, f.layout)
}

func (f *fixedSolver) Propagate(m Magnetization, s Sample, dt float64) error {
	if err := checkPropagate(m, f.layout, dt); err != nil {
		return err
	}
	if dt == 0 {
		return nil
	}
	n := f.n
	if f.needBuild(s) {
		f.builder.Build(f.a[:n*n], s)
		f.sample, f.built, f.haveExp = s, true, false
		f.stats.Rebuilds++
	}
	if !f.haveExp || f.dt != dt {
		if err := f.ws.expm(f.e[:n*n], f.a[:n*n], n, dt); err != nil {
			f.haveExp = false
			return err
		}
		f.dt, f.haveExp = dt, true
		f.stats.Steps++
	}

	out := f.out[:n-1]
	apply(out, blasView(f.e[:n*n], n), m.M)
	if !allFinite(out) {
		f.haveExp = false
		return ErrNumerical
	}
	copy(m.M, out)
	return nil
}

type dynamicSolver struct {
	cache
	layout Layout
	n      int
	data   []float64
	a      *mat.Dense
	scaled mat.Dense
	e      mat.Dense
	out    []float64
}

// NewDynamicSolver builds the gonum backed solver for any pool count.
func NewDynamicSolver(p *pools.Parameters, g GradientModel) (Solver, error) {
	b, err := NewBuilder(p, g)
	if err != nil {
		return nil, err
	}
	n := b.Size()
	d := &dynamicSolver{
		cache:  cache{builder: b},
		layout: b.Layout(),
		n:      n,
		data:   make([]float64, n*n),
		out:    make([]float64, n-1),
	}
	d.a = mat.NewDense(n, n, d.data)
	return d, nil
}

func (d *dynamicSolver) Layout() Layout { return d.layout }
func (d *dynamicSolver) Kind() Kind     { return Dynamic }
func (d *dynamicSolver) Stats() Stats   { return d.stats }

func (d *dynamicSolver) Bind(p *pools.Parameters) error {
	return d.rebind(p, d.layout)
}

func (d *dynamicSolver) Propagate(m Magnetization, s Sample, dt float64) error {
	if err := checkPropagate(m, d.layout, dt); err != nil {
		return err
	}
	if dt == 0 {
		return nil
	}
	if d.needBuild(s) {
		d.builder.Build(d.data, s)
		d.sample, d.built, d.haveExp = s, true, false
		d.stats.Rebuilds++
	}
	if !d.haveExp || d.dt != dt {
		d.scaled.Scale(dt, d.a)
		d.e.Exp(&d.scaled)
		d.dt, d.haveExp = dt, true
		d.stats.Steps++
	}

	apply(d.out, d.e.RawMatrix(), m.M)
	if !allFinite(d.out) {
		d.haveExp = false
		return ErrNumerical
	}
	copy(m.M, d.out)
	return nil
}

func blasView(data []float64, n int) blas64.General {
	return blas64.General{Rows: n, Cols: n, Stride: n, Data: data}
}
