package main

import (
	"fmt"
	"math"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/bmcsim/internal/bloch"
	"github.com/san-kum/bmcsim/internal/pools"
	"github.com/san-kum/bmcsim/internal/sim"
)

var benchRepeat int

func newBenchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench [preset|config]",
		Short: "compare solver variants and check them against rk45",
		Args:  cobra.MaximumNArgs(1),
		RunE:  benchSolvers,
	}
	cmd.Flags().IntVar(&benchRepeat, "repeat", 3, "runs per variant")
	return cmd
}

func benchSolvers(cmd *cobra.Command, args []string) error {
	cfg, name, err := loadConfig(cmd, args)
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

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "benchmarking %s: %s, %d blocks\n\n", name, bloch.LayoutOf(params), sequence.Len())
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SOLVER\tSTEPS\tREBUILDS\tTIME\tSTEPS/SEC\tMAX |dM|")

	variants := []sim.Variant{sim.VariantDynamic}
	if bloch.LayoutOf(params).CEST <= bloch.MaxFixedCEST {
		variants = append([]sim.Variant{sim.VariantFixed}, variants...)
	}
	var reference *sim.Result
	for _, v := range variants {
		c := simCfg
		c.Variant = v
		s, err := sim.New(params, c)
		if err != nil {
			return err
		}
		s.SetLogger(logger)

		var res *sim.Result
		start := time.Now()
		for range max(benchRepeat, 1) {
			if res, err = s.Run(sequence); err != nil {
				return err
			}
		}
		elapsed := time.Since(start) / time.Duration(max(benchRepeat, 1))

		diff := 0.0
		if reference == nil {
			reference = res
		} else {
			diff = maxDiff(reference, res)
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%v\t%.0f\t%.2e\n",
			v, res.Steps, res.Rebuilds, elapsed, float64(res.Steps)/elapsed.Seconds(), diff)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	return rk45Check(cmd, params, simCfg.Gradient, cfg.Protocol.B1, cfg.Protocol.TP)
}

func maxDiff(a, b *sim.Result) float64 {
	d := 0.0
	for i := range a.Trajectory {
		for j, v := range a.Trajectory[i].M {
			d = math.Max(d, math.Abs(v-b.Trajectory[i].M[j]))
		}
	}
	return d
}

// rk45Check propagates the equilibrium state through one continuous wave
// interval near the first CEST resonance with the matrix exponential and
// with adaptive Dormand-Prince steps.
func rk45Check(cmd *cobra.Command, p *pools.Parameters, g bloch.GradientModel, b1, tp float64) error {
	shift := 3.5
	if p.NumCEST() > 0 {
		shift = p.CEST[0].DW
	}
	s := bloch.Sample{
		Amplitude:  b1 * p.Scanner.Gamma * p.Scanner.RelB1,
		FreqOffset: shift * p.Scanner.Omega0() / (2 * math.Pi),
	}
	a, _, err := bloch.BuildMatrix(p, s, g)
	if err != nil {
		return err
	}
	m0 := bloch.Equilibrium(p, 1)

	expm, err := bloch.Step(m0.M, a, tp)
	if err != nil {
		return err
	}
	ref, steps, err := bloch.NewRK45().Integrate(a.RawMatrix().Data, m0.M, tp)
	if err != nil {
		return err
	}

	d := 0.0
	for i := range expm {
		d = math.Max(d, math.Abs(expm[i]-ref[i]))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nrk45 check at %.2f ppm over %gs: %d steps, max |dM| %.2e\n", shift, tp, steps, d)
	return nil
}
