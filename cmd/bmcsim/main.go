package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/san-kum/bmcsim/internal/logging"
	"github.com/san-kum/bmcsim/internal/storage"
	"github.com/san-kum/bmcsim/internal/viz"
)

var (
	settings = viper.New()
	logger   = logging.Discard()

	dataDir string
	// Shared by run, bench, seq and sweep.
	solverFlag string
	b1Flag     float64
	outFile    string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, viz.ErrorStyle().Render("error: ")+err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "bmcsim",
		Short:         "Bloch-McConnell CEST simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd.ErrOrStderr())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("data", ".bmcsim", "data directory")
	flags.String("log-level", "warn", "log level (trace, debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")
	flags.String("theme", "default", "color theme (default, mono)")
	for _, name := range []string{"data", "log-level", "log-format", "theme"} {
		_ = settings.BindPFlag(name, flags.Lookup(name))
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newListCmd(),
		newPlotCmd(),
		newExportCmd(),
		newExportCSVCmd(),
		newExportJSONCmd(),
		newExportSVGCmd(),
		newPresetsCmd(),
		newBenchCmd(),
		newSweepCmd(),
		newFitCmd(),
		newSeqCmd(),
		newQueryCmd(),
	)
	return rootCmd
}

// setup reads bmcsim.{yaml,toml} from the working directory or
// $HOME/.config/bmcsim when present. BMCSIM_* variables (dashes become
// underscores, e.g. BMCSIM_LOG_LEVEL) override it, and flags override both.
func setup(stderr io.Writer) error {
	settings.SetConfigName("bmcsim")
	settings.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		settings.AddConfigPath(home + "/.config/bmcsim")
	}
	settings.SetEnvPrefix("BMCSIM")
	settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	settings.AutomaticEnv()
	if err := settings.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read settings: %w", err)
		}
	}

	level := settings.GetString("log-level")
	if settings.GetString("log-format") == "json" {
		logger = logging.NewJSONLogger(level, stderr)
	} else {
		logger = logging.NewLogger(level, stderr)
	}
	slog.SetDefault(logger)

	dataDir = settings.GetString("data")
	return viz.UseTheme(settings.GetString("theme"))
}

func openStore() (*storage.Store, error) {
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return nil, err
	}
	return st, nil
}

// output returns the -o file, or stdout when none was given.
func output(cmd *cobra.Command) (io.Writer, func() error, error) {
	if outFile == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(outFile)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
