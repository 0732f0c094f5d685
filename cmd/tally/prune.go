package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tally/cmd/tally/ui"
	"tally/pkg/sdk/client"
)

func pruneCmd(socketPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Publish and prune expired dynamic counters now",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.NewUnix(*socketPath)
			res, err := c.Prune(cmd.Context())
			if err != nil {
				return err
			}

			if res.Dropped == 0 {
				fmt.Println(ui.Muted("nothing to prune"))
				return nil
			}
			oldest := time.Unix(res.OldestTimestamp, 0).UTC().Format(time.RFC3339)
			fmt.Println(ui.SuccessMsg("pruned %d counters (oldest stamp %s)", res.Dropped, oldest))
			return nil
		},
	}
}
