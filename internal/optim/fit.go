package optim

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/san-kum/bmcsim/internal/analysis"
	"github.com/san-kum/bmcsim/internal/pools"
	"github.com/san-kum/bmcsim/internal/seq"
	"github.com/san-kum/bmcsim/internal/sim"
)

const (
	paramK = "k"
	paramF = "f"
)

var ErrBadProblem = errors.New("optim: invalid fit problem")

// FitProblem fits the exchange rate and fraction of one CEST pool so the
// simulated Z-spectrum of Source matches Target.
type FitProblem struct {
	Base *pools.Parameters
	// Pool indexes Base.CEST.
	Pool   int
	Source seq.Source
	// Offsets are the recorded offsets of Source in ppm, M0 scans included.
	Offsets []float64
	Target  *analysis.ZSpectrum
	Config  sim.Config

	// Rates (Hz) and Fractions (absolute) span the search grid.
	Rates     []float64
	Fractions []float64

	// Refine runs Nelder-Mead from the best grid point, with at most
	// MaxEvaluations objective calls (200 when zero).
	Refine         bool
	MaxEvaluations int
}

type FitResult struct {
	K, F        float64
	RMSE        float64
	Evaluations int
	Refined     bool
	Params      *pools.Parameters
}

// Fit runs the grid search, then the optional refinement.
func Fit(ctx context.Context, prob FitProblem) (*FitResult, error) {
	if prob.Base == nil || prob.Target == nil || prob.Source == nil {
		return nil, fmt.Errorf("%w: base, target and source are required", ErrBadProblem)
	}
	if prob.Pool < 0 || prob.Pool >= prob.Base.NumCEST() {
		return nil, fmt.Errorf("%w: pool %d of %d", ErrBadProblem, prob.Pool, prob.Base.NumCEST())
	}
	s, err := sim.New(prob.Base, prob.Config)
	if err != nil {
		return nil, err
	}

	evals := 0
	score := func(k, f float64) (float64, error) {
		evals++
		p, err := withPool(prob.Base, prob.Pool, k, f)
		if err != nil {
			return 0, err
		}
		if err := s.UpdateParameters(p); err != nil {
			return 0, err
		}
		res, err := s.Run(prob.Source)
		if err != nil {
			return 0, err
		}
		z, err := analysis.FromResult(res, prob.Offsets)
		if err != nil {
			return 0, err
		}
		return z.RMSE(prob.Target)
	}

	grid, err := NewGridSearch([]string{paramK, paramF}, [][]float64{prob.Rates, prob.Fractions})
	if err != nil {
		return nil, err
	}
	best, rmse, err := grid.Search(ctx, func(_ context.Context, params map[string]float64) (float64, error) {
		return score(params[paramK], params[paramF])
	})
	if err != nil {
		return nil, err
	}
	out := &FitResult{K: best[paramK], F: best[paramF], RMSE: rmse}

	if prob.Refine {
		k, f, r, err := refine(ctx, score, out.K, out.F, prob.MaxEvaluations)
		if err != nil {
			return nil, err
		}
		if r < out.RMSE {
			out.K, out.F, out.RMSE, out.Refined = k, f, r, true
		}
	}

	out.Evaluations = evals
	out.Params, err = withPool(prob.Base, prob.Pool, out.K, out.F)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// refine minimizes in coordinates scaled by the start point. Negative
// trial values are mirrored, so k and f stay non-negative.
func refine(ctx context.Context, score func(k, f float64) (float64, error), k0, f0 float64, maxEvals int) (k, f, rmse float64, err error) {
	if maxEvals <= 0 {
		maxEvals = 200
	}
	ks, fs := k0, f0
	if ks == 0 {
		ks = 1
	}
	if fs == 0 {
		fs = 1e-3
	}
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			if ctx.Err() != nil {
				return math.Inf(1)
			}
			v, err := score(math.Abs(x[0])*ks, math.Abs(x[1])*fs)
			if err != nil {
				return math.Inf(1)
			}
			return v
		},
	}
	settings := &optimize.Settings{
		FuncEvaluations: maxEvals,
		Converger:       &optimize.FunctionConverge{Absolute: 1e-9, Iterations: 20},
	}
	res, err := optimize.Minimize(problem, []float64{k0 / ks, f0 / fs}, settings, &optimize.NelderMead{})
	if cerr := ctx.Err(); cerr != nil {
		return 0, 0, 0, cerr
	}
	if err != nil && res == nil {
		return 0, 0, 0, err
	}
	return math.Abs(res.X[0]) * ks, math.Abs(res.X[1]) * fs, res.F, nil
}

// withPool copies base with CEST pool i set to rate k and fraction f. The
// water fraction absorbs the change so the total stays 1.
func withPool(base *pools.Parameters, i int, k, f float64) (*pools.Parameters, error) {
	p := base.Clone()
	old := p.CEST[i].F
	p.CEST[i].K = k
	p.CEST[i].F = f
	p.Water.F += old - f
	if p.Water.F <= 0 {
		return nil, fmt.Errorf("%w: fraction %g leaves no water", ErrBadProblem, f)
	}
	return p, nil
}
