package main

import (
	"github.com/spf13/cobra"

	"github.com/example/storefront/internal/database"
	"github.com/example/storefront/internal/logging"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Create or update every table the storefront needs, then exit.`,
		RunE:  runMigrate,
	}
}

func runMigrate(_ *cobra.Command, _ []string) error {
	_, logger, db, err := bootstrap()
	if err != nil {
		return err
	}

	logger.Info("running migrations")
	if err := database.Migrate(db); err != nil {
		logging.Error(logger, "migration failed", err)
		return err
	}

	logger.Info("migrations completed")
	return nil
}
