package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/san-kum/bmcsim/internal/optim"
	"github.com/san-kum/bmcsim/internal/viz"
)

var (
	fitBase   string
	fitPool   int
	fitKMin   float64
	fitKMax   float64
	fitKN     int
	fitFMin   float64
	fitFMax   float64
	fitFN     int
	fitRefine bool
	fitEvals  int
)

func newFitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fit [run_id]",
		Short: "fit exchange rate and fraction of one pool to a stored Z-spectrum",
		Args:  cobra.ExactArgs(1),
		RunE:  fitRun,
	}
	cmd.Flags().StringVar(&fitBase, "base", "", "preset or config providing the model (default: the run's preset)")
	cmd.Flags().IntVar(&fitPool, "pool", 0, "CEST pool index")
	cmd.Flags().Float64Var(&fitKMin, "k-min", 20, "lowest exchange rate (Hz)")
	cmd.Flags().Float64Var(&fitKMax, "k-max", 500, "highest exchange rate (Hz)")
	cmd.Flags().IntVar(&fitKN, "k-n", 8, "exchange rate grid points")
	cmd.Flags().Float64Var(&fitFMin, "f-min", 1e-4, "lowest fraction relative to water")
	cmd.Flags().Float64Var(&fitFMax, "f-max", 3e-3, "highest fraction relative to water")
	cmd.Flags().IntVar(&fitFN, "f-n", 8, "fraction grid points")
	cmd.Flags().BoolVar(&fitRefine, "refine", true, "refine the best grid point with Nelder-Mead")
	cmd.Flags().IntVar(&fitEvals, "max-evals", 200, "refinement evaluation limit")
	return cmd
}

func fitRun(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	target, err := st.ZSpectrum(args[0])
	if err != nil {
		return err
	}

	base := fitBase
	if base == "" && meta.Name != "default" {
		base = meta.Name
	}
	cfg, name, err := loadConfig(cmd, []string{base})
	if err != nil {
		return err
	}
	params, err := cfg.Params()
	if err != nil {
		return err
	}
	sequence, err := cfg.Sequence()
	if err != nil {
		return err
	}
	simCfg, err := cfg.SimConfig()
	if err != nil {
		return err
	}

	// grid fractions are relative to water like the config files
	fractions := optim.Linspace(fitFMin, fitFMax, fitFN)
	for i := range fractions {
		fractions[i] *= params.Water.F
	}

	logger.Info("fit started", "run", meta.ID, "model", name, "pool", fitPool)
	res, err := optim.Fit(context.Background(), optim.FitProblem{
		Base:           params,
		Pool:           fitPool,
		Source:         sequence,
		Offsets:        sequence.Definitions().OffsetsPPM,
		Target:         target,
		Config:         simCfg,
		Rates:          optim.Linspace(fitKMin, fitKMax, fitKN),
		Fractions:      fractions,
		Refine:         fitRefine,
		MaxEvaluations: fitEvals,
	})
	if err != nil {
		return err
	}

	rows := [][2]string{
		{"run", meta.ID},
		{"model", name},
		{"pool", fmt.Sprint(fitPool)},
		{"k", fmt.Sprintf("%.2f Hz", res.K)},
		{"f", fmt.Sprintf("%.4e", res.F)},
		{"f / water", fmt.Sprintf("%.4e", res.F/res.Params.Water.F)},
		{"rmse", fmt.Sprintf("%.3e", res.RMSE)},
		{"evaluations", fmt.Sprint(res.Evaluations)},
		{"refined", fmt.Sprint(res.Refined)},
	}
	fmt.Fprintln(cmd.OutOrStdout(), viz.Summary("bmcsim fit", rows))
	return nil
}
