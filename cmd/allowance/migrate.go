package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dukerupert/allowance/internal/database"
)

// migrateCmd applies pending migrations; database.Open runs them.
func migrateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(v)
			if err != nil {
				return err
			}
			db, err := database.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			ver, err := database.Version(db)
			if err != nil {
				return err
			}
			logger.Info("database migrated", "path", cfg.DBPath, "version", ver)
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", ver)
			return nil
		},
	}
}
