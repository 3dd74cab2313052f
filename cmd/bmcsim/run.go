package main

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/san-kum/bmcsim/internal/config"
	"github.com/san-kum/bmcsim/internal/experiment"
	"github.com/san-kum/bmcsim/internal/logging"
	"github.com/san-kum/bmcsim/internal/storage"
	"github.com/san-kum/bmcsim/internal/viz"
)

var (
	noSave   bool
	showPlot bool
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [preset|config]",
		Short: "run a simulation and store its readouts",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	cmd.Flags().StringVar(&solverFlag, "solver", "", "solver variant (auto, fixed, dynamic)")
	cmd.Flags().Float64Var(&b1Flag, "b1", 0, "override the saturation amplitude (uT)")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	cmd.Flags().BoolVar(&showPlot, "plot", true, "plot the Z-spectrum")
	return cmd
}

// loadConfig resolves the argument and applies the shared overrides.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, string, error) {
	source := ""
	if len(args) > 0 {
		source = args[0]
	}
	cfg, name, err := experiment.Resolve(source)
	if err != nil {
		return nil, "", err
	}
	if f := cmd.Flags().Lookup("solver"); f != nil && f.Changed {
		cfg.Options.Solver = solverFlag
	}
	if f := cmd.Flags().Lookup("b1"); f != nil && f.Changed {
		cfg.Protocol.B1 = b1Flag
	}
	return cfg, name, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, name, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	exp, err := experiment.New(name, cfg)
	if err != nil {
		return err
	}
	exp.SetLogger(logger)

	var st *storage.Store
	if !noSave {
		if st, err = openStore(); err != nil {
			return err
		}
		events := logging.OpenEventLog(st.Dir())
		defer events.Close()
		exp.SetEventLog(events)
	}

	out, err := exp.Run(context.Background())
	if err != nil {
		return err
	}
	res := out.Result

	rows := [][2]string{
		{"preset", name},
		{"solver", res.Solver.String()},
		{"pools", res.Final.Layout.String()},
		{"blocks", fmt.Sprint(res.Blocks)},
		{"readouts", fmt.Sprint(res.Len())},
		{"steps", fmt.Sprintf("%d (%d rebuilds)", res.Steps, res.Rebuilds)},
		{"elapsed", out.Elapsed.String()},
	}
	if st != nil {
		meta := storage.NewMetadata(name, res, cfg.Scanner.B0, out.Offsets)
		meta.Elapsed = out.Elapsed.Seconds()
		meta.Metrics = out.Metrics
		runID, err := st.Save(meta, res)
		if err != nil {
			return err
		}
		rows = append(rows, [2]string{"run id", runID})
	}
	rows = append(rows, metricRows(out.Metrics)...)
	fmt.Fprintln(cmd.OutOrStdout(), viz.Summary("bmcsim run", rows))

	if showPlot && out.ZSpectrum != nil {
		if graph, err := viz.ZSpectrumPlot(out.ZSpectrum, 80, 12); err == nil {
			fmt.Fprintln(cmd.OutOrStdout(), graph)
		}
	}
	return nil
}

func metricRows(metrics map[string]float64) [][2]string {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	slices.Sort(names)
	rows := make([][2]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, [2]string{strings.ReplaceAll(name, "_", " "), fmt.Sprintf("%.6f", metrics[name])})
	}
	return rows
}
