package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/bmcsim/internal/experiment"
	"github.com/san-kum/bmcsim/internal/optim"
	"github.com/san-kum/bmcsim/internal/tui"
)

var (
	sweepParam   string
	sweepFrom    float64
	sweepTo      float64
	sweepN       int
	sweepValues  []float64
	sweepWorkers int
	sweepNoTUI   bool
	sweepMetric  string
)

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep [preset|config]",
		Short: "run a preset over a range of one parameter",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSweep,
	}
	cmd.Flags().StringVar(&sweepParam, "param", "b1", "parameter to sweep (see presets)")
	cmd.Flags().Float64Var(&sweepFrom, "from", 0.5, "first value")
	cmd.Flags().Float64Var(&sweepTo, "to", 4, "last value")
	cmd.Flags().IntVar(&sweepN, "n", 8, "number of values")
	cmd.Flags().Float64SliceVar(&sweepValues, "values", nil, "explicit values, overrides from/to/n")
	cmd.Flags().IntVar(&sweepWorkers, "workers", 0, "parallel workers (0 = GOMAXPROCS)")
	cmd.Flags().BoolVar(&sweepNoTUI, "no-tui", false, "disable the progress view")
	cmd.Flags().StringVar(&sweepMetric, "metric", "mtr_asym_3.50", "metric to tabulate")
	cmd.Flags().StringVar(&solverFlag, "solver", "", "solver variant (auto, fixed, dynamic)")
	return cmd
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, name, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	values := sweepValues
	if len(values) == 0 {
		values = optim.Linspace(sweepFrom, sweepTo, sweepN)
	}

	sw := &experiment.Sweep{Base: cfg, Param: sweepParam, Values: values, Workers: sweepWorkers}
	var points []experiment.SweepPoint
	run := func(ctx context.Context, progress func(done, total int)) error {
		sw.OnProgress = progress
		var err error
		points, err = sw.Run(ctx)
		return err
	}

	ctx := context.Background()
	title := fmt.Sprintf("%s: %s over %d values", name, sweepParam, len(values))
	if sweepNoTUI {
		err = run(ctx, nil)
	} else {
		err = tui.RunSweep(ctx, title, len(values), run)
	}
	if err != nil {
		return err
	}
	logger.Info("sweep complete", "param", sweepParam, "points", len(points))

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tZ MIN\tZ MIN PPM\t%s\tSTEPS\n", sweepParam, sweepMetric)
	for _, p := range points {
		metric := "-"
		if v, ok := p.Metrics[sweepMetric]; ok {
			metric = fmt.Sprintf("%.5f", v)
		}
		fmt.Fprintf(w, "%g\t%.5f\t%.2f\t%s\t%d\n",
			p.Value, p.Metrics["z_min"], p.Metrics["z_min_ppm"], metric, p.Result.Steps)
	}
	return w.Flush()
}
