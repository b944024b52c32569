package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"gigalert/discovery-service/internal/config"
	"gigalert/discovery-service/internal/db"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate up|down",
		Short:     "Apply or roll back one step of the listings schema",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required to migrate")
			}

			changed, err := db.Migrate(cfg.DatabaseURL, args[0])
			if err != nil {
				return err
			}
			if !changed {
				fmt.Fprintln(cmd.OutOrStdout(), "no change")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %s\n", args[0])
			return nil
		},
	}
}
