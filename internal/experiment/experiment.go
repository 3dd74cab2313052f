package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/san-kum/bmcsim/internal/analysis"
	"github.com/san-kum/bmcsim/internal/config"
	"github.com/san-kum/bmcsim/internal/logging"
	"github.com/san-kum/bmcsim/internal/pools"
	"github.com/san-kum/bmcsim/internal/seq"
	"github.com/san-kum/bmcsim/internal/sim"
)

// Experiment is one configured simulation: parameters, sequence and the
// simulator bound to them.
type Experiment struct {
	name      string
	cfg       *config.Config
	params    *pools.Parameters
	sequence  *seq.Sequence
	simulator *sim.Simulator
	logger    *slog.Logger
	events    *logging.EventLog
}

// Outcome is the result of a run plus its Z-spectrum analysis. ZSpectrum is
// nil when the readouts do not match the recorded offsets.
type Outcome struct {
	Result    *sim.Result
	Offsets   []float64
	ZSpectrum *analysis.ZSpectrum
	Metrics   map[string]float64
	Elapsed   time.Duration
}

func New(name string, cfg *config.Config) (*Experiment, error) {
	params, err := cfg.Params()
	if err != nil {
		return nil, err
	}
	simCfg, err := cfg.SimConfig()
	if err != nil {
		return nil, err
	}
	sequence, err := cfg.Sequence()
	if err != nil {
		return nil, err
	}
	simulator, err := sim.New(params, simCfg)
	if err != nil {
		return nil, err
	}
	return &Experiment{
		name:      name,
		cfg:       cfg,
		params:    params,
		sequence:  sequence,
		simulator: simulator,
		logger:    logging.Discard(),
	}, nil
}

func (e *Experiment) SetLogger(l *slog.Logger) {
	e.logger = l
	e.simulator.SetLogger(l)
}

// SetEventLog records one event per finished run.
func (e *Experiment) SetEventLog(l *logging.EventLog) { e.events = l }

func (e *Experiment) Name() string                 { return e.name }
func (e *Experiment) Config() *config.Config       { return e.cfg }
func (e *Experiment) Params() *pools.Parameters    { return e.params.Clone() }
func (e *Experiment) Sequence() *seq.Sequence      { return e.sequence }
func (e *Experiment) GetSimulator() *sim.Simulator { return e.simulator }

func (e *Experiment) Run(ctx context.Context) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := e.simulator.Run(e.sequence)
	if err != nil {
		e.events.Log(map[string]any{"event": "run_failed", "name": e.name, "error": err.Error()})
		return nil, err
	}
	out := &Outcome{
		Result:  res,
		Offsets: e.sequence.Definitions().OffsetsPPM,
		Elapsed: time.Since(start),
	}
	out.ZSpectrum, out.Metrics = Analyze(res, out.Offsets, e.params)

	e.logger.Info("experiment complete", "name", e.name, "readouts", res.Len(), "elapsed", out.Elapsed)
	e.events.Log(map[string]any{
		"event":    "run",
		"name":     e.name,
		"solver":   res.Solver.String(),
		"readouts": res.Len(),
		"steps":    res.Steps,
		"elapsed":  out.Elapsed.Seconds(),
	})
	return out, nil
}

// Analyze builds the Z-spectrum of res and summary metrics: M0, the
// deepest point and MTRasym at every CEST pool shift that was sampled.
func Analyze(res *sim.Result, offsets []float64, p *pools.Parameters) (*analysis.ZSpectrum, map[string]float64) {
	metrics := map[string]float64{}
	if len(offsets) != res.Len() {
		return nil, metrics
	}
	z, err := analysis.FromResult(res, offsets)
	if err != nil {
		return nil, metrics
	}
	metrics["m0"] = z.M0
	metrics["z_min_ppm"], metrics["z_min"] = z.Min()
	for _, c := range p.CEST {
		if c.DW <= 0 {
			continue
		}
		if v, err := z.MTRAsymAt(c.DW); err == nil {
			metrics[fmt.Sprintf("mtr_asym_%.2f", c.DW)] = v
		}
	}
	return z, metrics
}
