package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"trailcam/internal/deps"
	"trailcam/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor [dir]",
		Short: "Check external tools, directories, the detector and the run ledger",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if dir := argOrEmpty(args); dir != "" {
				if err := cfg.SetInputDir(dir); err != nil {
					return err
				}
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := isTerminal(os.Stdout)
			problems := 0

			fmt.Fprintln(out, renderSectionHeader("Configuration"))
			configPath := ctx.configPath
			if configPath == "" {
				configPath = "(defaults)"
			}
			fmt.Fprintln(out, renderStatusLine("Config", statusInfo, configPath, colorize))
			if err := cfg.RequireDetector(); err != nil {
				problems++
				fmt.Fprintln(out, renderStatusLine("Detector config", statusError, err.Error(), colorize))
			} else {
				fmt.Fprintln(out, renderStatusLine("Detector config", statusOK, cfg.Detection.Backend, colorize))
			}

			fmt.Fprintln(out, renderSectionHeader("Dependencies"))
			statuses := deps.CheckBinaries(cmd.Context(), deps.Requirements(cfg))
			problems += len(deps.Missing(statuses))
			for _, status := range statuses {
				switch {
				case status.Available:
					detail := status.Path
					if status.Version != "" {
						detail = fmt.Sprintf("%s (%s)", status.Path, status.Version)
					}
					fmt.Fprintln(out, renderStatusLine(status.Name, statusOK, detail, colorize))
				case status.Optional:
					fmt.Fprintln(out, renderStatusLine(status.Name, statusWarn, status.Detail, colorize))
				default:
					fmt.Fprintln(out, renderStatusLine(status.Name, statusError, status.Detail, colorize))
				}
			}

			fmt.Fprintln(out, renderSectionHeader("Preflight"))
			for _, result := range preflight.RunAll(cmd.Context(), cfg) {
				kind := statusOK
				if !result.Passed {
					kind = statusError
					problems++
				}
				fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}

			fmt.Fprintln(out, renderSectionHeader("Run ledger"))
			store, err := ctx.openLedger(cfg)
			if err != nil {
				problems++
				fmt.Fprintln(out, renderStatusLine("Ledger", statusError, err.Error(), colorize))
			} else {
				defer store.Close()
				health, err := store.CheckHealth(cmd.Context())
				switch {
				case err != nil:
					problems++
					fmt.Fprintln(out, renderStatusLine("Ledger", statusError, err.Error(), colorize))
				case health.IntegrityCheck != "ok":
					problems++
					fmt.Fprintln(out, renderStatusLine("Ledger", statusError, "integrity check: "+health.IntegrityCheck, colorize))
				default:
					fmt.Fprintln(out, renderStatusLine("Ledger", statusOK, fmt.Sprintf("%s (%s, %s journal, %d runs, %d items)",
						health.DBPath, humanize.IBytes(uint64(max(health.SizeBytes, 0))), health.JournalMode, health.Runs, health.Items), colorize))
				}
			}

			if problems > 0 {
				return fmt.Errorf("doctor found %d %s", problems, plural(problems, "problem"))
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
}
