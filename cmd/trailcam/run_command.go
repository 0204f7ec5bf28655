package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"trailcam/internal/config"
	"trailcam/internal/workflow"
)

type runOverrides struct {
	stride           int
	threshold        float64
	captureAll       bool
	includeSecondary bool
	deleteEmpty      bool
	noRename         bool
	noArtifacts      bool
}

func (o runOverrides) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("stride") {
		cfg.Sampling.FrameStride = o.stride
	}
	if flags.Changed("threshold") {
		cfg.Detection.ConfidenceThreshold = o.threshold
	}
	if flags.Changed("capture-all") {
		cfg.Output.CaptureAll = o.captureAll
	}
	if flags.Changed("include-secondary") {
		cfg.Detection.IncludeSecondary = o.includeSecondary
	}
	if flags.Changed("delete-on-no-detection") {
		cfg.Output.DeleteOnNoDetection = o.deleteEmpty
	}
	if o.noRename {
		cfg.Output.RenameOnResolution = false
	}
	if o.noArtifacts {
		cfg.Output.CreateArtifacts = false
	}
	return cfg.Finalize()
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		overrides   runOverrides
		limit       int
		failOnError bool
		noProgress  bool
	)

	cmd := &cobra.Command{
		Use:   "run [dir]",
		Short: "Detect, tag and track every media file under a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.configForInput(argOrEmpty(args))
			if err != nil {
				return err
			}
			if err := overrides.apply(cmd, cfg); err != nil {
				return err
			}
			if err := cfg.RequireDetector(); err != nil {
				return err
			}
			logger, err := ctx.logger(cfg)
			if err != nil {
				return err
			}
			store, err := ctx.openLedger(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			mgr := workflow.NewManager(cfg, store, logger)
			run, err := mgr.Start(cmd.Context(), workflow.RunOptions{Limit: limit})
			if err != nil {
				return err
			}
			reporter := newProgressReporter(cmd.ErrOrStderr(), logger, !noProgress)
			for ev := range run.Events() {
				reporter.Update(ev)
			}
			reporter.Finish()

			summary, err := run.Wait()
			if err != nil {
				return err
			}
			printRunSummary(cmd.OutOrStdout(), summary)
			if summary.Cancelled {
				return cmd.Context().Err()
			}
			if failOnError && summary.Counts.Failed > 0 {
				return fmt.Errorf("%d of %d items failed; see trailcam status --run %s", summary.Counts.Failed, summary.Counts.Processed, shortRunID(summary.RunID))
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&limit, "limit", 0, "Process at most this many items")
	flags.BoolVar(&failOnError, "fail-on-error", false, "Exit non-zero when any item fails")
	flags.BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")
	flags.IntVar(&overrides.stride, "stride", 0, "Initial frame stride (sampling.frame_stride)")
	flags.Float64Var(&overrides.threshold, "threshold", 0, "Confidence threshold (detection.confidence_threshold)")
	flags.BoolVar(&overrides.captureAll, "capture-all", false, "Write artifacts for every frame with evidence")
	flags.BoolVar(&overrides.includeSecondary, "include-secondary", false, "Count items with only human or vehicle detections as evidence")
	flags.BoolVar(&overrides.deleteEmpty, "delete-on-no-detection", false, "Delete files with no evidence at the finest stride")
	flags.BoolVar(&overrides.noRename, "no-rename", false, "Do not tag resolved files")
	flags.BoolVar(&overrides.noArtifacts, "no-artifacts", false, "Do not write detection artifacts")
	return cmd
}

func printRunSummary(out io.Writer, summary workflow.Summary) {
	c := summary.Counts
	state := "completed"
	if summary.Cancelled {
		state = "cancelled"
	}
	fmt.Fprintf(out, "Run %s %s in %s\n", shortRunID(summary.RunID), state, summary.Duration.Round(time.Millisecond))
	rows := [][]string{
		{"Items", strconv.Itoa(c.Total)},
		{"Processed", strconv.Itoa(c.Processed)},
		{"With evidence", strconv.Itoa(summary.Found())},
		{"Renamed", strconv.Itoa(c.Renamed)},
		{"No evidence", strconv.Itoa(c.NoEvidence)},
		{"Deleted", strconv.Itoa(c.Deleted)},
		{"Skipped", strconv.Itoa(c.Skipped)},
		{"Conflicts", strconv.Itoa(c.Conflicts)},
		{"Failed", strconv.Itoa(c.Failed)},
	}
	fmt.Fprintln(out, renderTable([]string{"Outcome", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
	for _, w := range summary.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	for _, item := range summary.Items {
		if item.Err != nil {
			fmt.Fprintf(out, "failed: %s: %v\n", item.RelPath, item.Err)
		}
	}
}
