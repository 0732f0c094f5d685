package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"tally/cmd/tally/ui"
	"tally/pkg/sdk/client"
)

func statsCmd(socketPath *string) *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:     "stats",
		Aliases: []string{"ls"},
		Short:   "Show the live counter set",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.NewUnix(*socketPath)
			rows, err := c.Stats(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Println(ui.Muted("no counters registered"))
				return nil
			}

			out := make([][]string, len(rows))
			for i, row := range rows {
				id := row.ID
				if id == "" {
					id = "-"
				}
				instance := row.Instance
				if instance == "" {
					instance = "-"
				}
				state := row.State
				if state == "orphaned" {
					state = ui.Warn(state)
				}
				out[i] = []string{
					row.Kind,
					row.Source,
					id,
					instance,
					state,
					strconv.FormatInt(row.Value, 10),
				}
			}

			fmt.Println(ui.Table(
				[]string{"Kind", "Source", "ID", "Instance", "State", "Value"},
				out,
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "Glob matched against rendered keys, e.g. 'dst.file(*)'")
	return cmd
}
