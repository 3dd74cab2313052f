package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/bmcsim/internal/storage"
)

var (
	queryName  string
	queryDesc  bool
	queryLimit int
)

func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query [metric]",
		Short: "rank stored runs by a metric",
		Args:  cobra.MaximumNArgs(1),
		RunE:  queryRuns,
	}
	cmd.Flags().StringVar(&queryName, "name", "", "only runs of this preset or config")
	cmd.Flags().BoolVar(&queryDesc, "desc", false, "largest values first")
	cmd.Flags().IntVar(&queryLimit, "limit", 20, "maximum rows (0 = all)")
	return cmd
}

func queryRuns(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	st, err := openStore()
	if err != nil {
		return err
	}
	idx, err := st.OpenIndex(ctx)
	if err != nil {
		return err
	}
	defer idx.Close()

	out := cmd.OutOrStdout()
	if len(args) == 0 {
		names, err := idx.Metrics(ctx)
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Fprintln(out, "no metrics indexed")
			return nil
		}
		fmt.Fprintln(out, "metrics: "+strings.Join(names, ", "))
		return nil
	}

	entries, err := idx.Query(ctx, storage.Query{
		Metric:     args[0],
		Name:       queryName,
		Descending: queryDesc,
		Limit:      queryLimit,
	})
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintf(out, "no runs carry %s\n", args[0])
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tNAME\tTIME\tSOLVER\tPOOLS\t%s\n", strings.ToUpper(args[0]))
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.6g\n",
			e.ID, e.Name, e.Timestamp.Format("2006-01-02 15:04:05"), e.Solver, e.Layout, e.Value)
	}
	return w.Flush()
}
