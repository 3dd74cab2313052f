package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/bmcsim/internal/export"
	"github.com/san-kum/bmcsim/internal/viz"
)

var (
	svgAsym   bool
	svgWidth  int
	svgHeight int
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}
}

func newPlotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the Z-spectrum and MTRasym of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
}

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [run_id]",
		Short: "print run metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
}

func newExportCSVCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export readouts as csv",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	cmd.Flags().StringVarP(&outFile, "output", "o", "", "output file")
	return cmd
}

func newExportJSONCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export metadata, readouts and Z-spectrum as json",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	cmd.Flags().StringVarP(&outFile, "output", "o", "", "output file")
	return cmd
}

func newExportSVGCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "export the Z-spectrum as svg",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	cmd.Flags().StringVarP(&outFile, "output", "o", "", "output file")
	cmd.Flags().BoolVar(&svgAsym, "asym", false, "plot MTRasym instead")
	cmd.Flags().IntVar(&svgWidth, "width", 800, "image width")
	cmd.Flags().IntVar(&svgHeight, "height", 500, "image height")
	return cmd
}

func listRuns(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no runs found")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTIME\tSOLVER\tPOOLS\tREADOUTS\tSTEPS\tELAPSED")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%.3fs\n",
			run.ID,
			run.Name,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Solver,
			run.Layout,
			run.Readouts,
			run.Steps,
			run.Elapsed,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st, err := openStore()
	if err != nil {
		return err
	}
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run: %s\nsolver: %s\nreadouts: %d\n\n", meta.ID, meta.Solver, meta.Readouts)

	z, err := st.ZSpectrum(runID)
	if err != nil {
		// no offsets recorded: plot water Mz per readout
		ro, rerr := st.LoadReadouts(runID)
		if rerr != nil {
			return rerr
		}
		mz, rerr := ro.WaterMz()
		if rerr != nil {
			return rerr
		}
		graph, rerr := viz.SeriesPlot(mz, 80, 10, "water Mz per readout")
		if rerr != nil {
			return rerr
		}
		fmt.Fprintln(out, graph)
		return nil
	}

	graph, err := viz.ZSpectrumPlot(z, 80, 12)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, graph)
	fmt.Fprintln(out)
	if graph, err := viz.MTRAsymPlot(z, 60, 8); err == nil {
		fmt.Fprintln(out, graph)
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	w, closeFn, err := output(cmd)
	if err != nil {
		return err
	}
	if err := st.ExportCSV(w, args[0]); err != nil {
		closeFn()
		return err
	}
	return closeFn()
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	w, closeFn, err := output(cmd)
	if err != nil {
		return err
	}
	if err := st.ExportJSON(w, args[0]); err != nil {
		closeFn()
		return err
	}
	return closeFn()
}

func exportSVG(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	z, err := st.ZSpectrum(args[0])
	if err != nil {
		return err
	}
	w, closeFn, err := output(cmd)
	if err != nil {
		return err
	}
	if svgAsym {
		err = export.MTRAsymSVG(w, z, svgWidth, svgHeight)
	} else {
		err = export.ZSpectrumSVG(w, z, svgWidth, svgHeight)
	}
	if err != nil {
		closeFn()
		return err
	}
	if outFile != "" {
		logger.Info("svg written", "path", outFile)
	}
	return closeFn()
}
