package experiment

import (
	"context"
	"fmt"

	"github.com/san-kum/bmcsim/internal/analysis"
	"github.com/san-kum/bmcsim/internal/config"
	"github.com/san-kum/bmcsim/internal/sim"
)

// SweepPoint is the outcome of one value of a parameter sweep.
type SweepPoint struct {
	Value     float64
	Result    *sim.Result
	ZSpectrum *analysis.ZSpectrum
	Metrics   map[string]float64
}

// Sweep runs base once per value of the named parameter on an ensemble of
// workers. Points come back in value order.
type Sweep struct {
	Base   *config.Config
	Param  string
	Values []float64
	// Workers <= 0 uses GOMAXPROCS.
	Workers    int
	OnProgress func(done, total int)
}

func (s *Sweep) Run(ctx context.Context) ([]SweepPoint, error) {
	if len(s.Values) == 0 {
		return nil, fmt.Errorf("sweep of %s has no values", s.Param)
	}
	simCfg, err := s.Base.SimConfig()
	if err != nil {
		return nil, err
	}

	jobs := make([]sim.Job, len(s.Values))
	offsets := make([][]float64, len(s.Values))
	for i, v := range s.Values {
		cfg := s.Base.Clone()
		if err := Set(cfg, s.Param, v); err != nil {
			return nil, err
		}
		params, err := cfg.Params()
		if err != nil {
			return nil, fmt.Errorf("%s=%g: %w", s.Param, v, err)
		}
		sequence, err := cfg.Sequence()
		if err != nil {
			return nil, fmt.Errorf("%s=%g: %w", s.Param, v, err)
		}
		jobs[i] = sim.Job{Name: fmt.Sprintf("%s=%g", s.Param, v), Params: params, Source: sequence}
		offsets[i] = sequence.Definitions().OffsetsPPM
	}

	ens := sim.NewEnsemble(simCfg, s.Workers)
	if s.OnProgress != nil {
		ens.OnProgress(s.OnProgress)
	}
	results, err := ens.Run(ctx, jobs)
	if err != nil {
		return nil, err
	}

	points := make([]SweepPoint, len(results))
	for i, res := range results {
		z, metrics := Analyze(res, offsets[i], jobs[i].Params)
		points[i] = SweepPoint{Value: s.Values[i], Result: res, ZSpectrum: z, Metrics: metrics}
	}
	return points, nil
}
