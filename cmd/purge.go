package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gigalert/discovery-service/internal/scheduler"
)

func newPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete listings older than RETENTION and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			reaper := scheduler.NewReaper(a.repo, a.cfg.Retention, a.cfg.ReaperSchedule, a.log)
			n, err := reaper.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d listing(s) older than %s\n", n, a.cfg.Retention)
			return nil
		},
	}
}
