package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/san-kum/bmcsim/internal/bloch"
	"github.com/san-kum/bmcsim/internal/logging"
	"github.com/san-kum/bmcsim/internal/pools"
	"github.com/san-kum/bmcsim/internal/seq"
)

type Simulator struct {
	params    *pools.Parameters
	cfg       Config
	solver    bloch.Solver
	initial   bloch.Magnetization
	logger    *slog.Logger
	observers []Observer
}

// New validates a copy of p and selects the solver variant for its pool count.
func New(p *pools.Parameters, cfg Config) (*Simulator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	s := &Simulator{cfg: cfg, logger: logging.Discard()}
	if err := s.UpdateParameters(p); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Simulator) SetLogger(l *slog.Logger)      { s.logger = l }
func (s *Simulator) AddObserver(o Observer)        { s.observers = append(s.observers, o) }
func (s *Simulator) Config() Config                { return s.cfg }
func (s *Simulator) Solver() bloch.Kind            { return s.solver.Kind() }
func (s *Simulator) Layout() bloch.Layout          { return s.solver.Layout() }
func (s *Simulator) Parameters() *pools.Parameters { return s.params.Clone() }

// Initial returns the state a Run starts from.
func (s *Simulator) Initial() bloch.Magnetization { return s.initial.Clone() }

// UpdateParameters validates and copies p. The bound solver is kept when the
// pool layout is unchanged and replaced otherwise.
func (s *Simulator) UpdateParameters(p *pools.Parameters) error {
	if p == nil {
		return pools.ErrMissingWater
	}
	if err := p.Validate(); err != nil {
		return err
	}
	params := p.Clone()

	if s.solver != nil && s.solver.Layout() == bloch.LayoutOf(params) {
		if err := s.solver.Bind(params); err != nil {
			return err
		}
	} else {
		solver, err := s.newSolver(params)
		if err != nil {
			return err
		}
		s.solver = solver
		s.logger.Info("solver selected", "kind", solver.Kind(), "layout", solver.Layout())
	}
	s.params = params
	s.initial = bloch.Equilibrium(params, s.cfg.InitialScale)
	return nil
}

func (s *Simulator) newSolver(p *pools.Parameters) (bloch.Solver, error) {
	switch s.cfg.Variant {
	case VariantFixed:
		return bloch.NewFixedSolver(p, s.cfg.Gradient)
	case VariantDynamic:
		return bloch.NewDynamicSolver(p, s.cfg.Gradient)
	default:
		return bloch.NewSolver(p, s.cfg.Gradient)
	}
}

// Run walks src once from the initial state.
func (s *Simulator) Run(src seq.Source) (*Result, error) {
	return s.run(src, s.initial)
}

// RunFrom walks src starting at m0, e.g. the final state of an earlier run.
func (s *Simulator) RunFrom(src seq.Source, m0 bloch.Magnetization) (*Result, error) {
	if m0.Layout != s.solver.Layout() || len(m0.M) != m0.Layout.Dim() {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrInitialState, m0.Layout, s.solver.Layout())
	}
	return s.run(src, m0)
}

// Final runs src and returns only the end state.
func (s *Simulator) Final(src seq.Source) (bloch.Magnetization, error) {
	res, err := s.Run(src)
	if err != nil {
		return bloch.Magnetization{}, err
	}
	return res.Final, nil
}

func (s *Simulator) run(src seq.Source, start bloch.Magnetization) (*Result, error) {
	t := 0.0
	for i, b := range src.All() {
		if err := validateBlock(b); err != nil {
			return nil, &SimulationError{Block: i, Label: b.Label, Time: t, Wrapped: err}
		}
		t += b.Duration
	}

	before := s.solver.Stats()
	m := start.Clone()
	res := &Result{Solver: s.solver.Kind()}

	buf := intervals.Get()
	defer intervals.Put(buf)

	ctx := context.Background()
	level := slog.LevelDebug
	if s.cfg.Verbose {
		level = slog.LevelInfo
	}
	trace := s.logger.Enabled(ctx, logging.LevelTrace)

	accPhase := 0.0
	t = 0
	for i, b := range src.All() {
		s.logger.Log(ctx, level, "block", "index", i, "label", b.Label,
			"duration", b.Duration, "rf", b.HasRF(), "adc", b.ADC)

		*buf = s.expand((*buf)[:0], b, accPhase)
		for _, iv := range *buf {
			if err := s.solver.Propagate(m, iv.sample, iv.dt); err != nil {
				return nil, &SimulationError{Block: i, Label: b.Label, Time: t, Wrapped: err}
			}
			if trace {
				s.logger.Log(ctx, logging.LevelTrace, "interval",
					"amplitude", iv.sample.Amplitude, "phase", iv.sample.Phase,
					"freq", iv.sample.FreqOffset, "dt", iv.dt)
			}
		}
		if b.GradientOnly() && s.cfg.Gradient.Spoils() {
			m.Spoil()
		}
		if b.HasRF() {
			accPhase = math.Mod(accPhase+2*math.Pi*b.RF.FreqOffset*b.RF.Duration(), 2*math.Pi)
		}
		t += b.Duration
		res.Blocks++

		if b.ADC {
			rec := m.Clone()
			res.Trajectory = append(res.Trajectory, rec)
			res.Times = append(res.Times, t)
			res.Labels = append(res.Labels, b.Label)
			for _, o := range s.observers {
				o.OnReadout(len(res.Trajectory)-1, t, b.Label, rec.Clone())
			}
			accPhase = 0
			if s.cfg.ResetInitMag {
				copy(m.M, start.M)
			}
		}
	}

	after := s.solver.Stats()
	res.Final = m
	res.Steps = after.Steps - before.Steps
	res.Rebuilds = after.Rebuilds - before.Rebuilds
	s.logger.Info("run complete", "blocks", res.Blocks, "readouts", res.Len(),
		"steps", res.Steps, "rebuilds", res.Rebuilds, "solver", res.Solver)
	return res, nil
}
