package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"trailcam/internal/logging"
	"trailcam/internal/workflow"
)

// progressReporter renders run progress as a bar on a terminal and as
// sampled log lines otherwise.
type progressReporter struct {
	// out is nil when progress goes to the log.
	out     io.Writer
	bar     *progressbar.ProgressBar
	logger  *slog.Logger
	sampler *logging.ProgressSampler
}

func newProgressReporter(out io.Writer, logger *slog.Logger, allowBar bool) *progressReporter {
	r := &progressReporter{logger: logger, sampler: logging.NewProgressSampler(10)}
	if allowBar && isTerminal(out) {
		r.out = out
	}
	return r
}

func (r *progressReporter) Update(ev workflow.Progress) {
	if r.out != nil {
		if r.bar == nil {
			r.bar = progressbar.NewOptions(ev.Total,
				progressbar.OptionSetWriter(r.out),
				progressbar.OptionSetDescription("detecting"),
				progressbar.OptionShowCount(),
				progressbar.OptionSetPredictTime(true),
				progressbar.OptionClearOnFinish(),
				progressbar.OptionFullWidth(),
			)
		}
		r.bar.Describe(ev.RelPath)
		_ = r.bar.Set(ev.Processed)
		return
	}
	if r.sampler.ShouldLog(ev.Processed, ev.Total) {
		r.logger.Info("run progress",
			logging.String(logging.FieldEventType, "run_progress"),
			logging.Int("processed", ev.Processed),
			logging.Int("total", ev.Total),
			logging.String(logging.FieldItemPath, ev.RelPath),
			logging.String("status", string(ev.Status)),
		)
	}
}

func (r *progressReporter) Finish() {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
