package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/san-kum/bmcsim/internal/seq"
)

func newSeqCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seq [preset|config]",
		Short: "write the event list of a protocol as yaml",
		Args:  cobra.MaximumNArgs(1),
		RunE:  writeSequence,
	}
	cmd.Flags().Float64Var(&b1Flag, "b1", 0, "override the saturation amplitude (uT)")
	cmd.Flags().StringVarP(&outFile, "output", "o", "", "output file")
	return cmd
}

func writeSequence(cmd *cobra.Command, args []string) error {
	cfg, name, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	sequence, err := cfg.Sequence()
	if err != nil {
		return err
	}
	w, closeFn, err := output(cmd)
	if err != nil {
		return err
	}
	if err := seq.WriteYAML(w, sequence); err != nil {
		closeFn()
		return err
	}
	if err := closeFn(); err != nil {
		return err
	}
	if outFile != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d blocks, %d readouts, %.2fs written to %s\n",
			name, sequence.Len(), sequence.Readouts(), sequence.Duration(), outFile)
	}
	return nil
}
