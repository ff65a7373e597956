package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dukerupert/allowance/internal/database"
	"github.com/dukerupert/allowance/internal/server"
)

// payoutCmd runs one allowance pass, for cron-driven deployments that do
// not keep `serve` running.
func payoutCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "payout",
		Short: "Pay every allowance that is due now",
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

			srv, err := server.New(db, server.Options{
				JWTSecret:    cfg.JWTSecret,
				TokenTTL:     cfg.TokenTTL,
				CacheMaxCost: cfg.CacheMaxCost,
			}, logger)
			if err != nil {
				return err
			}
			defer srv.Close()

			paid, err := srv.Allowance().PayDueAllowances(cmd.Context(), time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "paid %d allowance(s)\n", paid)
			return nil
		},
	}
}
