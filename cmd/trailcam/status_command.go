package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"trailcam/internal/ledger"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var (
		runFlag    string
		pathFlag   string
		statusFlag []string
		limit      int
		jsonOut    bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recent runs and per-item outcomes from the run ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.openLedger(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			statuses := make([]ledger.Status, 0, len(statusFlag))
			for _, raw := range statusFlag {
				status, ok := ledger.ParseStatus(raw)
				if !ok {
					return fmt.Errorf("unknown status %q", raw)
				}
				statuses = append(statuses, status)
			}

			out := cmd.OutOrStdout()
			colorize := !jsonOut && isTerminal(os.Stdout)
			switch {
			case strings.TrimSpace(pathFlag) != "":
				items, err := store.ItemHistory(cmd.Context(), strings.TrimSpace(pathFlag))
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, items)
				}
				renderItems(out, items, true, colorize)
				return nil
			case strings.TrimSpace(runFlag) != "":
				run, err := findRun(cmd, store, runFlag)
				if err != nil {
					return err
				}
				items, err := store.ListItems(cmd.Context(), run.ID, statuses...)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, map[string]any{"run": run, "items": items})
				}
				renderRunDetail(out, run)
				renderItems(out, items, false, colorize)
				return nil
			}

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded yet")
				return nil
			}
			renderRuns(out, runs)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&runFlag, "run", "", "Show items of a run (ID or unique prefix, or \"latest\")")
	flags.StringVar(&pathFlag, "path", "", "Show the history of one file across runs (path relative to the input root)")
	flags.StringSliceVar(&statusFlag, "status", nil, "Filter items by status (with --run)")
	flags.IntVar(&limit, "limit", 10, "Number of runs to list")
	flags.BoolVar(&jsonOut, "json", false, "Emit JSON")

	cmd.AddCommand(newStatusPruneCommand(ctx))
	return cmd
}

func newStatusPruneCommand(ctx *commandContext) *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old runs from the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.openLedger(cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			removed, err := store.PruneRuns(cmd.Context(), keep)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d %s, kept the newest %d\n", removed, plural(int(removed), "run"), keep)
			return nil
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 20, "Number of most recent runs to keep")
	return cmd
}

func findRun(cmd *cobra.Command, store *ledger.Store, ref string) (*ledger.Run, error) {
	ref = strings.TrimSpace(ref)
	if ref == "latest" {
		return store.LatestRun(cmd.Context())
	}
	if run, err := store.GetRun(cmd.Context(), ref); err == nil {
		return run, nil
	} else if !errors.Is(err, ledger.ErrRunNotFound) {
		return nil, err
	}
	runs, err := store.ListRuns(cmd.Context(), 0)
	if err != nil {
		return nil, err
	}
	var match *ledger.Run
	for i := range runs {
		if strings.HasPrefix(runs[i].ID, ref) {
			if match != nil {
				return nil, fmt.Errorf("run prefix %q is ambiguous", ref)
			}
			match = &runs[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", ledger.ErrRunNotFound, ref)
	}
	return match, nil
}

func renderRuns(out io.Writer, runs []ledger.Run) {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		c := run.Counts
		rows = append(rows, []string{
			shortRunID(run.ID),
			statusLabel(string(run.State)),
			humanize.Time(run.StartedAt),
			run.Duration().Round(time.Second).String(),
			strconv.Itoa(c.Total),
			strconv.Itoa(c.Succeeded),
			strconv.Itoa(c.NoEvidence),
			strconv.Itoa(c.Deleted),
			strconv.Itoa(c.Skipped),
			strconv.Itoa(c.Failed),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Run", "State", "Started", "Duration", "Items", "Succeeded", "No Evidence", "Deleted", "Skipped", "Failed"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
	))
}

func renderRunDetail(out io.Writer, run *ledger.Run) {
	fmt.Fprintln(out, renderSectionHeader("Run "+run.ID))
	fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusLabelWidth, "Input:", run.InputDir)
	fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusLabelWidth, "State:", statusLabel(string(run.State)))
	fmt.Fprintf(out, "%s%-*s %s (%s)\n", statusIndent, statusLabelWidth, "Started:", run.StartedAt.Local().Format(time.DateTime), humanize.Time(run.StartedAt))
	if !run.FinishedAt.IsZero() {
		fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusLabelWidth, "Duration:", run.Duration().Round(time.Second))
	}
	if run.ErrorMessage != "" {
		fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusLabelWidth, "Note:", run.ErrorMessage)
	}
}

func renderItems(out io.Writer, items []ledger.Item, withRun, colorize bool) {
	if len(items) == 0 {
		fmt.Fprintln(out, "No items")
		return
	}
	headers := []string{"#", "Path", "Status", "Tag", "Confidence", "Strides", "Error"}
	aligns := []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft}
	if withRun {
		headers = append([]string{"Run"}, headers...)
		aligns = append([]columnAlignment{alignLeft}, aligns...)
	}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		strides := make([]string, len(item.Strides))
		for i, s := range item.Strides {
			strides[i] = strconv.Itoa(s)
		}
		row := []string{
			strconv.FormatInt(item.Seq, 10),
			item.RelPath,
			colorizeStatus(item.Status, colorize),
			item.Tag,
			strconv.FormatFloat(item.Confidence, 'f', 2, 64),
			strings.Join(strides, ","),
			truncate(item.ErrorMessage, 60),
		}
		if withRun {
			row = append([]string{shortRunID(item.RunID)}, row...)
		}
		rows = append(rows, row)
	}
	fmt.Fprintln(out, renderTable(headers, rows, aligns))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
