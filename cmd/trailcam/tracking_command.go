package main

import (
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"trailcam/internal/tracking"
)

func newTrackingCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tracking",
		Short: "Inspect the confidence tracking file",
	}
	cmd.AddCommand(newTrackingShowCommand(ctx))
	return cmd
}

func newTrackingShowCommand(ctx *commandContext) *cobra.Command {
	var (
		minConf float64
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "show [dir]",
		Short: "List tracked items with their best confidence and stride",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.configForInput(argOrEmpty(args))
			if err != nil {
				return err
			}
			records, err := tracking.ReadSnapshot(cfg.Paths.TrackingFile)
			if err != nil {
				return err
			}
			keys := slices.Sorted(maps.Keys(records))
			keys = slices.DeleteFunc(keys, func(k string) bool { return records[k].Confidence < minConf })

			if jsonOut {
				values := make(map[string]float64, len(keys))
				for _, k := range keys {
					values[k] = records[k].Confidence
				}
				return writeJSON(cmd, values)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Tracking file: %s\n", cfg.Paths.TrackingFile)
			if len(keys) == 0 {
				fmt.Fprintln(out, "No tracked items")
				return nil
			}
			rows := make([][]string, 0, len(keys))
			for _, k := range keys {
				rec := records[k]
				stride, updated := "unknown", "-"
				if rec.Stride > 0 {
					stride = strconv.Itoa(rec.Stride)
				}
				if !rec.UpdatedAt.IsZero() {
					updated = humanize.Time(rec.UpdatedAt)
				}
				rows = append(rows, []string{k, strconv.FormatFloat(rec.Confidence, 'f', 4, 64), stride, updated})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Item", "Confidence", "Stride", "Updated"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().Float64Var(&minConf, "min", 0, "Only show items at or above this confidence")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the tracking map as JSON")
	return cmd
}
