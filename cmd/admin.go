package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/wellora/coach/internal/app"
	"github.com/wellora/coach/internal/config"
	"github.com/wellora/coach/internal/postgres"
)

// runMigrate applies pending database migrations and exits.
func runMigrate(cfg *config.Config) error {
	if err := postgres.Migrate(cfg.Postgres.URL); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	fmt.Println("migrations applied")
	return nil
}

// runSeed installs the default safety protocol set and exits. Existing
// protocol names are left untouched.
func runSeed(cfg *config.Config) error {
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

	created, err := a.SeedProtocols(ctx)
	if err != nil {
		return fmt.Errorf("seeding protocols: %w", err)
	}
	fmt.Printf("seeded %d protocols\n", created)
	return nil
}
