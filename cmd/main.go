// gigalert discovery-service
//
// Watches a freelance marketplace for new listings matching a subscriber's
// keywords and forwards each new match to their Telegram chat.
//
//	gigalert serve            HTTP control surface + retention reaper
//	gigalert purge            one-shot retention purge
//	gigalert migrate up|down  embedded schema migrations
//	gigalert scan             a single discovery cycle, then exit
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gigalert",
		Short:         "Freelance listing discovery worker",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	root.AddCommand(
		newServeCmd(),
		newPurgeCmd(),
		newMigrateCmd(),
		newScanCmd(),
	)
	return root
}
