package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the cache store schema and indexes, then exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			store, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			if err := store.Close(); err != nil {
				logger.Warn("closing cache store", zap.Error(err))
			}
			return nil
		},
	}
}
