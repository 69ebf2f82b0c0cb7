package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"prload/internal/dummy"
)

func newDummyCmd() *cobra.Command {
	var sc dummy.ServerConfig

	cmd := &cobra.Command{
		Use:   "dummy",
		Short: "Serve an in-memory stand-in for the review service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sc.ErrorRate < 0 || sc.ErrorRate > 1 {
				return fmt.Errorf("error rate must be between 0 and 1, got %v", sc.ErrorRate)
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			server, err := dummy.Start(sc, log)
			if err != nil {
				return err
			}
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			log.Info("dummy server stopped", zap.String("addr", server.Addr))
			return nil
		},
	}

	cmd.Flags().IntVarP(&sc.Port, "port", "p", 8080, "port to listen on")
	cmd.Flags().IntVar(&sc.CreateStatus, "create-status", 0, "answer every pull request creation with this status")
	cmd.Flags().Float64Var(&sc.ErrorRate, "error-rate", 0, "fraction of creations answered with 500")
	cmd.Flags().DurationVar(&sc.Jitter, "jitter", 0, "add up to this much latency to every request")
	cmd.Flags().BoolVar(&sc.OpenRoster, "open-roster", false, "accept any user id before a team is added")
	return cmd
}
