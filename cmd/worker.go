package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/wellora/coach/internal/app"
	"github.com/wellora/coach/internal/config"
	"github.com/wellora/coach/internal/tasks"
)

// runWorker starts the background task worker that processes memory
// extraction jobs from the queue.
func runWorker(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			a.Logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	a.Logger.Info("starting task worker", "version", AppVersion)

	srv := tasks.NewServer(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	mux := a.WorkerHandler().Mux()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(mux)
	}()

	select {
	case <-ctx.Done():
		a.Logger.Info("shutting down task worker")
		srv.Shutdown()
		<-errCh
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("task worker: %w", err)
		}
		return nil
	}
}
