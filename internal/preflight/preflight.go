package preflight

import (
	"context"

	"trailcam/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the checks that apply to the configured pipeline. Media
// directories are only checked once an input directory is set.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{CheckDirectoryAccess("State directory", cfg.Paths.StateDir, true)}

	if cfg.Paths.InputDir != "" {
		needsWrite := cfg.Output.RenameOnResolution || cfg.Output.DeleteOnNoDetection
		results = append(results, CheckDirectoryAccess("Input directory", cfg.Paths.InputDir, needsWrite))
		results = append(results, CheckOutputLocation("Output directory", cfg.Paths.OutputDir))
	}

	switch cfg.Detection.Backend {
	case "http":
		results = append(results, CheckDetectorHTTP(ctx, cfg.Detection.URL, cfg.Detection.Token))
	case "ollama":
		results = append(results, CheckOllama(ctx, cfg.Detection.URL, cfg.Detection.Model))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
