package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/bmcsim/internal/config"
	"github.com/san-kum/bmcsim/internal/experiment"
)

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "list built-in presets and sweepable parameters",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PRESET\tB0\tCEST\tMT\tOFFSETS\tB1")
			for _, name := range config.ListPresets() {
				cfg := config.GetPreset(name)
				mt := "-"
				if cfg.MT != nil {
					mt = cfg.MT.Lineshape
				}
				fmt.Fprintf(w, "%s\t%gT\t%d\t%s\t%d\t%guT\n",
					name, cfg.Scanner.B0, len(cfg.CEST), mt, len(cfg.Protocol.OffsetsPPM()), cfg.Protocol.B1)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "\nsweepable parameters:")
			for _, name := range experiment.Parameters() {
				fmt.Fprintln(cmd.OutOrStdout(), "  "+name)
			}
			return nil
		},
	}
}
