package sim

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/bmcsim/internal/bloch"
	"github.com/san-kum/bmcsim/internal/logging"
	"github.com/san-kum/bmcsim/internal/pools"
	"github.com/san-kum/bmcsim/internal/seq"
)

// Job is one independent simulation of an ensemble.
type Job struct {
	Name   string
	Params *pools.Parameters
	Source seq.Source
	// Initial overrides the equilibrium start when set.
	Initial *bloch.Magnetization
}

// Ensemble runs independent jobs on a bounded worker group. Each job gets
// its own Simulator and state; nothing is shared between workers.
type Ensemble struct {
	cfg        Config
	workers    int
	logger     *slog.Logger
	onProgress func(done, total int)
}

// NewEnsemble uses GOMAXPROCS workers when workers <= 0.
func NewEnsemble(cfg Config, workers int) *Ensemble {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Ensemble{cfg: cfg, workers: workers, logger: logging.Discard()}
}

func (e *Ensemble) SetLogger(l *slog.Logger) { e.logger = l }
func (e *Ensemble) Workers() int             { return e.workers }

// OnProgress registers fn to be called after every finished job. fn may be
// called from several goroutines at once.
func (e *Ensemble) OnProgress(fn func(done, total int)) { e.onProgress = fn }

// Run executes jobs and returns their results in job order. The first
// failing job cancels the jobs that have not started yet; ctx is checked
// between jobs, never inside one.
func (e *Ensemble) Run(ctx context.Context, jobs []Job) ([]*Result, error) {
	results := make([]*Result, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	var done atomic.Int64
	for i, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := e.runJob(job)
			if err != nil {
				return fmt.Errorf("job %d (%s): %w", i, job.Name, err)
			}
			results[i] = res
			n := done.Add(1)
			if e.onProgress != nil {
				e.onProgress(int(n), len(jobs))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	e.logger.Info("ensemble complete", "jobs", len(jobs), "workers", e.workers)
	return results, nil
}

func (e *Ensemble) runJob(job Job) (*Result, error) {
	s, err := New(job.Params, e.cfg)
	if err != nil {
		return nil, err
	}
	if job.Initial != nil {
		return s.RunFrom(job.Source, *job.Initial)
	}
	return s.Run(job.Source)
}
