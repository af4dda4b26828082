package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/systmms/tpmops/cmd/tpmops/commands"
	"github.com/systmms/tpmops/internal/config"
	dserrors "github.com/systmms/tpmops/internal/errors"
	"github.com/systmms/tpmops/internal/logging"
	"github.com/systmms/tpmops/internal/metrics"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", dserrors.SimplifyError(err))
		os.Exit(1)
	}
}

func run() error {
	// Global flags
	var (
		configFile      string
		profile         string
		noColor         bool
		debug           bool
		nonInteractive  bool
		metricsTextfile string
	)

	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "tpmops",
		Short: "Team Password Manager operations - look up and manage passwords and projects",
		Long: `tpmops talks to a Team Password Manager instance over its v4 API.

It looks up passwords and projects for scripts and templates, and brings
entries to a desired state (present, absent, update) for automation.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.Path = configFile
			cfg.Profile = profile
			cfg.Logger = logging.New(debug, noColor)
			cfg.NonInteractive = nonInteractive
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultPath, "Config file path")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "Profile to use from the config file")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&nonInteractive, "non-interactive", false, "Never prompt for input")
	rootCmd.PersistentFlags().StringVar(&metricsTextfile, "metrics-textfile", "", "Write Prometheus metrics to this file on exit")

	rootCmd.AddCommand(
		commands.NewLookupCommand(cfg),
		commands.NewPasswordCommand(cfg),
		commands.NewProjectCommand(cfg),
		commands.NewGenerateCommand(cfg),
		commands.NewDoctorCommand(cfg),
		commands.NewLoginCommand(cfg),
		commands.NewSchemaCommand(cfg),
		commands.NewCompletionCommand(cfg),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)

	if metricsTextfile != "" {
		if werr := metrics.Default().WriteTextfile(metricsTextfile); werr != nil && err == nil {
			err = fmt.Errorf("failed to write metrics: %w", werr)
		}
	}

	return err
}
