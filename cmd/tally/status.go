package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"tally/cmd/tally/ui"
	"tally/pkg/sdk/client"
)

func statusCmd(socketPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon health",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.NewUnix(*socketPath)
			health, err := c.Health(cmd.Context())
			if err != nil {
				return err
			}

			clock := "unknown"
			if !health.Clock.CheckedAt.IsZero() {
				if health.Clock.Error != "" {
					clock = ui.Warn("probe failed: " + health.Clock.Error)
				} else {
					clock = fmt.Sprintf("%dms offset (healthy %s)",
						health.Clock.OffsetMillis, ui.Bool(health.Clock.Healthy))
				}
			}

			fmt.Print(ui.KeyValues("",
				ui.KV("status", health.Status),
				ui.KV("version", health.Version),
				ui.KV("clusters", strconv.Itoa(health.Clusters)),
				ui.KV("clock", clock),
			))
			if !health.Clock.Healthy && health.Clock.Error == "" && !health.Clock.CheckedAt.IsZero() {
				fmt.Println(ui.WarnMsg("clock skew may disturb dynamic-counter expiration"))
			}
			return nil
		},
	}
}
