package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"prload/internal/cli"
	"prload/internal/config"
	"prload/internal/driver"
	"prload/internal/report"
	"prload/internal/runner"
	"prload/internal/scenario"
	"prload/internal/storage"
	"prload/internal/tui/app"
	"prload/internal/tui/views"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the staged pull request review load test",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd, false)
		},
	}
	cmd.Flags().Bool("tui", false, "show the interactive dashboard instead of the progress line")
	return cmd
}

func newSmokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Poll /metrics with one user for thirty seconds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd, true)
		},
	}
	cmd.Flags().Bool("tui", false, "show the interactive dashboard instead of the progress line")
	return cmd
}

func runLoad(cmd *cobra.Command, smoke bool) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	base := scenario.PullRequestReview()
	if smoke {
		base = scenario.Smoke()
	}
	sc, err := resolveScenario(cmd, cfg, base)
	if err != nil {
		return err
	}

	useTUI, _ := cmd.Flags().GetBool("tui")

	// The dashboard owns the terminal, so nothing may write to stderr
	// until it exits.
	runLog := log
	if useTUI {
		runLog = zap.NewNop()
	}

	var script runner.Script = driver.NewPullRequestFlow(runLog)
	if smoke {
		script = driver.NewSmokeProbe(runLog)
	}

	r, err := runner.NewRunner(runner.Config{
		BaseURL:     cfg.BaseURL,
		Timeout:     cfg.Timeout,
		Insecure:    cfg.Insecure,
		KeepResults: cfg.CSV != "",
	}, sc, script, make(runner.StatsUpdateChan, 100))
	if err != nil {
		return err
	}
	r.Log = runLog

	store := openHistory(cfg, log)
	if store != nil {
		defer store.Close()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	start := time.Now()
	if useTUI {
		if err := runDashboard(ctx, r, store); err != nil {
			return err
		}
	} else {
		cli.Start(ctx, r, out)
	}
	end := time.Now()

	return finish(r, cfg, store, log, out, start, end)
}

// runDashboard starts r and blocks until the user leaves the dashboard and
// the runner has finished teardown.
func runDashboard(ctx context.Context, r *runner.Runner, store *storage.Store) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go r.Run(ctx)

	// A nil *Store must not become a non-nil interface.
	var lister views.HistoryLister
	if store != nil {
		lister = store
	}

	p := tea.NewProgram(app.NewModel(r, cancel, lister), tea.WithAltScreen())
	_, err := p.Run()

	cancel()
	<-r.Done()
	if err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

// finish writes every artifact and turns a failed summary into
// ErrThresholds.
func finish(r *runner.Runner, cfg *config.Config, store *storage.Store, log *zap.Logger, out io.Writer, start, end time.Time) error {
	sum, err := report.Build(r, start, end)
	if err != nil {
		return err
	}
	report.Print(out, sum)

	if cfg.Out != "" {
		if err := sum.WriteJSON(cfg.Out); err != nil {
			return err
		}
		log.Info("summary written", zap.String("path", cfg.Out))
	}

	if cfg.CSV != "" {
		if err := report.ExportCSV(r.SnapshotResults(), cfg.CSV); err != nil {
			return err
		}
		log.Info("requests written", zap.String("path", cfg.CSV))
	}

	if store != nil {
		item, err := store.Save(sum)
		if err != nil {
			log.Warn("could not record run in history", zap.Error(err))
		} else {
			log.Debug("run recorded", zap.String("id", item.ID), zap.String("db", store.Path()))
		}
	}

	if !sum.Passed {
		return fmt.Errorf("%w: %d of %d", ErrThresholds, len(sum.Failed()), len(sum.Thresholds))
	}
	return nil
}

// openHistory opens the history database if one is configured. History is
// a convenience; a locked or unwritable database only costs a warning.
func openHistory(cfg *config.Config, log *zap.Logger) *storage.Store {
	if cfg.History == "" {
		return nil
	}
	store, err := storage.Open(cfg.History)
	if err != nil {
		log.Warn("history disabled", zap.String("path", cfg.History), zap.Error(err))
		return nil
	}
	return store
}
