package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"trailcam/internal/media"
	"trailcam/internal/sampler"
	"trailcam/internal/tracking"
)

type scanEntry struct {
	RelPath   string  `json:"rel_path"`
	Kind      string  `json:"kind"`
	SizeBytes int64   `json:"size_bytes"`
	Tracked   bool    `json:"tracked"`
	Best      float64 `json:"tracked_confidence,omitempty"`
	Sampled   *int    `json:"sampled_frames,omitempty"`
	Problem   string  `json:"problem,omitempty"`
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	var probe bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "scan [dir]",
		Short: "List the media a run would process",
		Long: "List the media a run would process without sampling or detecting.\n" +
			"With --probe, videos are inspected with ffprobe and any that fail to decode\n" +
			"or would yield fewer than scan.min_frames sampled frames are reported.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.configForInput(argOrEmpty(args))
			if err != nil {
				return err
			}
			items, err := media.Enumerate(cfg.Paths.InputDir, media.OptionsFromConfig(cfg))
			if err != nil {
				return err
			}
			tracked, err := tracking.ReadSnapshot(cfg.Paths.TrackingFile)
			if err != nil {
				return err
			}

			var probeWith *sampler.Sampler
			if probe {
				logger, err := ctx.logger(cfg)
				if err != nil {
					return err
				}
				probeWith = sampler.New(sampler.OptionsFromConfig(cfg), logger)
			}

			entries := make([]scanEntry, 0, len(items))
			var totalBytes int64
			problems := 0
			for _, item := range items {
				entry := scanEntry{RelPath: item.RelPath, Kind: string(item.Kind), SizeBytes: item.Size}
				if rec, ok := tracked[item.RelPath]; ok {
					entry.Tracked = true
					entry.Best = rec.Confidence
				}
				if probeWith != nil && item.Kind == media.KindVideo {
					report := probeWith.Probe(cmd.Context(), item, cfg.Sampling.FrameStride)
					sampled := report.Sampled
					entry.Sampled = &sampled
					switch {
					case report.Err != nil:
						entry.Problem = "probe failed: " + report.Err.Error()
					case report.Sampled < cfg.Scan.MinFrames:
						entry.Problem = fmt.Sprintf("only %d sampled frames (min %d)", report.Sampled, cfg.Scan.MinFrames)
					}
					if entry.Problem != "" {
						problems++
					}
				}
				totalBytes += item.Size
				entries = append(entries, entry)
			}

			if jsonOut {
				return writeJSON(cmd, entries)
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintf(out, "No media found under %s\n", cfg.Paths.InputDir)
				return nil
			}
			headers := []string{"Path", "Kind", "Size", "Tracked"}
			aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignRight}
			if probe {
				headers = append(headers, "Sampled", "Problem")
				aligns = append(aligns, alignRight, alignLeft)
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				trackedCol := "-"
				if e.Tracked {
					trackedCol = strconv.FormatFloat(e.Best, 'f', 2, 64)
				}
				row := []string{e.RelPath, e.Kind, humanize.IBytes(uint64(max(e.SizeBytes, 0))), trackedCol}
				if probe {
					sampledCol := ""
					if e.Sampled != nil {
						sampledCol = strconv.Itoa(*e.Sampled)
					}
					row = append(row, sampledCol, e.Problem)
				}
				rows = append(rows, row)
			}
			fmt.Fprintln(out, renderTable(headers, rows, aligns))
			fmt.Fprintf(out, "%s %s (%s)\n", humanize.Comma(int64(len(entries))), plural(len(entries), "file"), humanize.IBytes(uint64(max(totalBytes, 0))))
			if probe {
				fmt.Fprintf(out, "%d %s with low frame counts or decode problems\n", problems, plural(problems, "video"))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&probe, "probe", false, "Probe videos and report low frame counts")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON")
	return cmd
}

func plural(n int, noun string) string {
	if n == 1 {
		return noun
	}
	return noun + "s"
}
