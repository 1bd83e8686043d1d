package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roverlens/marsphotos/pkg/config"
	"github.com/roverlens/marsphotos/pkg/logging"
	"github.com/roverlens/marsphotos/pkg/storage"
	"github.com/roverlens/marsphotos/pkg/storage/backend"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "marsphotos",
		Short:         "Mars rover photo search backed by a cache-through store",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("database-url", "", "cache store connection string (postgres://, mongodb://, sqlite://)")

	root.AddCommand(newServeCommand(), newMigrateCommand())
	return root
}

// setup loads configuration and builds the logger shared by every command.
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(logging.Options{Level: cfg.LogLevel, JSON: cfg.LogJSON})
	return cfg, logger, nil
}

// openStore connects to the configured backend and makes sure the schema
// exists.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Store, error) {
	kind, err := backend.Detect(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	store, err := backend.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("db schema: %w", err)
	}
	logger.Info("cache store ready", zap.String("backend", string(kind)))
	return store, nil
}
