package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"yakusub/internal/manifest"
	"yakusub/internal/preflight"
)

func newStatusCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show library progress and dependency health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			store, err := manifest.Open(cfg.Paths.DataDir)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "Stage status")
			fmt.Fprintln(out, renderTable(
				[]string{"Status", "Stages"},
				[][]string{
					{"pending", strconv.Itoa(stats[manifest.StatusPending])},
					{"success", strconv.Itoa(stats[manifest.StatusSuccess])},
					{"failed", strconv.Itoa(stats[manifest.StatusFailed])},
					{"skipped", strconv.Itoa(stats[manifest.StatusSkipped])},
				},
				[]columnAlignment{alignLeft, alignRight}))

			summaries, err := store.Summaries(cmd.Context())
			if err != nil {
				return err
			}
			if len(summaries) > 0 {
				rows := make([][]string, 0, len(summaries))
				for _, summary := range summaries {
					rows = append(rows, []string{
						summary.Code,
						summary.Title,
						strconv.Itoa(summary.VideoCount),
						strconv.Itoa(summary.Completed),
						strconv.Itoa(summary.Failed),
					})
				}
				fmt.Fprintln(out, "Movies")
				fmt.Fprintln(out, renderTable(
					[]string{"Code", "Title", "Videos", "Done", "Failed"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight}))
			}

			rows := make([][]string, 0, 4)
			for _, status := range preflight.CheckSystemDeps(cfg) {
				state := "missing"
				if status.Available {
					state = "ok"
				}
				rows = append(rows, []string{status.Name, state, status.Description})
			}
			fmt.Fprintln(out, "Dependencies")
			fmt.Fprintln(out, renderTable(
				[]string{"Binary", "State", "Purpose"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft}))
			return nil
		},
	}
}
