package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"prload/internal/banner"
	"prload/internal/config"
	"prload/internal/logging"
	"prload/internal/scenario"
)

// Exit codes. A run that finishes but crosses a threshold exits with
// ExitThresholds, like k6.
const (
	ExitOK         = 0
	ExitError      = 1
	ExitThresholds = 99
)

// ErrThresholds is returned by a run whose summary failed.
var ErrThresholds = errors.New("thresholds crossed")

var cfgFile string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "prload",
		Short: "prload - load test for the pull request review service",
		Long: `
prload drives the pull request review service the way k6 would: a pool of
virtual users ramps through fixed stages, each one adding a pull request and
looking up reviews, and the run is judged against latency and error
thresholds.

Running it without a subcommand is the same as "prload run".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd, false)
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.prload.yaml)")
	config.AddFlags(root.PersistentFlags())

	root.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), banner.GetString())
		_ = cmd.Usage()
	})

	root.AddCommand(newRunCmd(), newSmokeCmd(), newHistoryCmd(), newDummyCmd())
	return root
}

// Execute runs the command line and exits with the matching code.
func Execute() {
	err := newRootCmd().Execute()
	if err != nil && !errors.Is(err, ErrThresholds) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(ExitCode(err))
}

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrThresholds):
		return ExitThresholds
	default:
		return ExitError
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(cfgFile, cmd.Flags())
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	log, err := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return log, nil
}

// resolveScenario layers the configured graceful stop and the optional
// scenario file over base. An explicit --graceful-stop beats the file.
func resolveScenario(cmd *cobra.Command, cfg *config.Config, base *scenario.Scenario) (*scenario.Scenario, error) {
	base.GracefulStop = cfg.GracefulStop
	if cfg.Scenario == "" {
		return base, base.Validate()
	}

	sc, err := scenario.LoadFile(cfg.Scenario, base)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("graceful-stop") {
		sc.GracefulStop = cfg.GracefulStop
	}
	return sc, nil
}
