package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lingua-lens/lens/internal/server"
)

const shutdownTimeout = 5 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the translation host in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			addr := ctx.hostAddr()

			if err := os.MkdirAll(filepath.Dir(cfg.Paths.LockFile), 0o755); err != nil {
				return fmt.Errorf("create lock directory: %w", err)
			}
			lock := flock.New(cfg.Paths.LockFile)
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire host lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("another lens host is already running (lock %s)", cfg.Paths.LockFile)
			}
			defer func() { _ = lock.Unlock() }()

			a, err := buildApp(cfg, logger)
			if err != nil {
				return err
			}

			srv := server.NewHTTPServer(addr, a.host, logger.Named("http"))
			if err := srv.Start(); err != nil {
				_ = a.Close(context.Background())
				return err
			}
			logger.Info("lens host started",
				zap.String("addr", srv.Addr()),
				zap.String("version", version),
				zap.String("runtime_url", cfg.Engine.RuntimeURL),
			)

			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-sigCtx.Done()

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			shutdownErr := srv.Shutdown(shutdownCtx)
			if err := a.Close(shutdownCtx); err != nil && shutdownErr == nil {
				shutdownErr = err
			}
			return shutdownErr
		},
	}
}
