package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"trailcam/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines  int
		follow bool
		filter logs.Filter
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the trailcam log file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := cfg.LogFilePath()
			if path == "" {
				return fmt.Errorf("no log file configured")
			}
			switch strings.ToLower(filter.MinLevel) {
			case "", "debug", "info", "warn", "warning", "error":
			default:
				return fmt.Errorf("unknown level %q (want debug, info, warn or error)", filter.MinLevel)
			}

			result, err := logs.Tail(path, lines, filter)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, line := range result.Lines {
				fmt.Fprintln(out, line)
			}
			if !follow {
				if len(result.Lines) == 0 {
					fmt.Fprintf(cmd.ErrOrStderr(), "No matching log lines in %s\n", path)
				}
				return nil
			}
			return logs.Follow(cmd.Context(), path, result.Offset, 0, filter, func(line string) error {
				_, err := fmt.Fprintln(out, line)
				return err
			})
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&lines, "lines", "n", 50, "Number of lines to show (0 for all)")
	flags.BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until interrupted")
	flags.StringVar(&filter.RunID, "run", "", "Only lines for this run ID or prefix")
	flags.StringVar(&filter.ItemPath, "item", "", "Only lines for this item path")
	flags.StringVar(&filter.MinLevel, "level", "", "Minimum level: debug, info, warn or error")
	return cmd
}
