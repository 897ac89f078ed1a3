package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ooda/pkg/jobs"
	"ooda/pkg/server"
	"ooda/pkg/tokens"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the task API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.ServerAddr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			provider, err := newProvider(ctx, cfg)
			if err != nil {
				return fmt.Errorf("connecting to model provider: %w", err)
			}
			defer provider.Close()

			sb := newSandbox(cfg)
			if sb != nil {
				defer sb.Close()
			}

			var opts []jobs.ServiceOption
			if sb != nil {
				opts = append(opts, jobs.WithCleanup(func(jobID string) {
					if err := sb.Stop(context.Background(), jobID); err != nil {
						slog.Warn("stopping sandbox failed", "job_id", jobID, "error", err)
					}
				}))
			}
			service := jobs.NewService(provider, tokens.NewCounter(),
				registryFactory(cfg, sb), runnerConfig(cfg), cfg.TraceDir, opts...)
			srv := server.New(service, provider)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start(cfg.ServerAddr) }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides config")
	return cmd
}
