package workflow

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"runtime/debug"
	"slices"
	"time"

	"github.com/google/uuid"

	"trailcam/internal/artifacts"
	"trailcam/internal/evidence"
	"trailcam/internal/ledger"
	"trailcam/internal/logging"
	"trailcam/internal/media"
	"trailcam/internal/resample"
	"trailcam/internal/sampler"
	"trailcam/internal/services"
	"trailcam/internal/tracking"
)

// itemRun carries one item through sampling, detection and resolution.
type itemRun struct {
	m      *Manager
	item   media.Item
	runID  string
	corrID string
	track  *tracking.Store
	logger *slog.Logger

	out     ItemOutcome
	frames  int
	sampled bool
	written artifacts.Result
}

// runItem processes one item. Errors and panics end in a failed (or, for
// vanished media, skipped) outcome and never escape.
func (m *Manager) runItem(ctx context.Context, item media.Item, runID string, track *tracking.Store) (out ItemOutcome) {
	started := time.Now()
	corrID := uuid.NewString()
	ctx = services.WithItemID(ctx, item.ID)
	ctx = services.WithRequestID(ctx, corrID)
	r := &itemRun{
		m:      m,
		item:   item,
		runID:  runID,
		corrID: corrID,
		track:  track,
		logger: logging.WithContext(ctx, m.logger).With(logging.String(logging.FieldItemPath, item.RelPath)),
		out: ItemOutcome{
			ItemID:    item.ID,
			RelPath:   item.RelPath,
			Kind:      item.Kind,
			FinalPath: item.Path,
		},
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.out.Status = ledger.StatusFailed
			r.out.Err = fmt.Errorf("panic: %v", rec)
			logging.ErrorWithContext(r.logger, "item processing panicked", "item_panic",
				logging.Alert("item_panic"),
				logging.String("panic", fmt.Sprint(rec)),
				logging.String("stack", string(debug.Stack())),
				logging.String(logging.FieldErrorHint, "report this with the log file attached"),
			)
		}
		r.out.Duration = time.Since(started)
		r.persist(ctx, r.out.Status)
		out = r.out
	}()

	if err := r.process(ctx); err != nil {
		r.fail(err)
	}
	return r.out
}

func (r *itemRun) process(ctx context.Context) error {
	cfg := r.m.cfg
	initial := cfg.Sampling.FrameStride
	if cfg.Output.SkipTracked && r.track.Covers(r.item.RelPath, initial) {
		rec, _ := r.track.Lookup(r.item.RelPath)
		r.out.Status = ledger.StatusSkipped
		r.out.Confidence = rec.Confidence
		r.out.Stride = rec.Stride
		r.logger.Info("item already tracked; skipping",
			logging.Args(append(logging.DecisionAttrs("skip", "skipped", "tracked at an equal or finer stride"),
				logging.Float64("confidence", rec.Confidence),
				logging.Int("tracked_stride", rec.Stride),
			)...)...,
		)
		return nil
	}

	policy := resample.PolicyFromConfig(cfg)
	outcome, err := policy.Run(ctx, r.item.Kind, initial, r.attempt)
	r.out.Stride = outcome.Stride
	r.out.Strides = outcome.Strides
	r.out.Iterations = outcome.Iterations
	r.out.Confidence = outcome.Evidence.MaxPrimaryConfidence
	if err != nil {
		return err
	}
	if r.frames == 0 {
		return services.Wrap(services.ErrExternalTool, "sample", "frames",
			fmt.Sprintf("no frames sampled at strides %v", outcome.Strides), nil)
	}
	r.persist(ctx, ledger.StatusDetected)

	if outcome.Found() {
		if err := r.resolve(outcome); err != nil {
			return err
		}
	} else {
		r.exhaust(outcome)
	}
	r.record()
	return nil
}

// attempt is one resampling pass: sample, detect, interpret, select. When the
// pass yields evidence its artifacts are written before the frames go away.
func (r *itemRun) attempt(ctx context.Context, stride int) (evidence.Evidence, error) {
	cfg := r.m.cfg
	pass, err := r.m.sampler.Sample(ctx, r.item, sampler.Request{Stride: stride})
	if err != nil {
		return evidence.Evidence{}, err
	}
	defer func() {
		if cerr := pass.Close(); cerr != nil {
			r.logger.Debug("frame cleanup failed", logging.Error(cerr))
		}
	}()
	if pass.Err != nil {
		if errors.Is(pass.Err, services.ErrExternalTool) {
			return evidence.Evidence{}, pass.Err
		}
		return evidence.Evidence{}, services.Wrap(services.ErrExternalTool, "sample", "decode", r.item.RelPath, pass.Err)
	}
	if pass.Len() == 0 {
		r.logger.Debug("pass yielded no frames", logging.Int("stride", stride))
		return evidence.Evidence{}, nil
	}
	r.frames += pass.Len()
	if !r.sampled {
		r.sampled = true
		r.persist(ctx, ledger.StatusSampled)
	}

	frames := slices.Collect(pass.Frames())
	threshold := cfg.Detection.ConfidenceThreshold
	started := time.Now()
	// Interpret applies the threshold; the detector returns everything.
	results, err := r.m.detector.Detect(services.WithStage(ctx, "detect"), pass.Paths(), 0)
	if err != nil {
		return evidence.Evidence{}, fmt.Errorf("detect at stride %d: %w", stride, err)
	}
	if len(results) != len(frames) {
		return evidence.Evidence{}, services.Wrap(services.ErrExternalTool, "detect", "results",
			fmt.Sprintf("got %d results for %d frames", len(results), len(frames)), nil)
	}

	input := make([]evidence.FrameResult, len(frames))
	for i, f := range frames {
		input[i] = evidence.FrameResult{
			Ordinal: f.Ordinal,
			Path:    f.Path,
			Width:   f.Width,
			Height:  f.Height,
			Result:  results[i],
		}
	}
	ev := evidence.Select(evidence.Interpret(input, threshold), evidence.SelectOptions{
		CaptureAll:       cfg.Output.CaptureAll,
		IncludeSecondary: cfg.Detection.IncludeSecondary,
	})
	r.logger.Info("pass complete",
		logging.String(logging.FieldEventType, "pass_complete"),
		logging.Int("stride", stride),
		logging.Int("frames", len(frames)),
		logging.Bool("found", ev.Found()),
		logging.Float64("max_primary_confidence", ev.MaxPrimaryConfidence),
		logging.Duration("detect_duration", time.Since(started)),
	)
	if !ev.Found() {
		return ev, nil
	}

	written, err := r.m.writer.Write(services.WithStage(ctx, "artifacts"), r.item, ev)
	r.written = written
	if err != nil {
		return ev, err
	}
	return ev, nil
}

func (r *itemRun) resolve(outcome resample.Outcome) error {
	ev := outcome.Evidence
	tag := r.written.Tag
	if tag == "" {
		tag = r.m.writer.Tag(ev)
	}
	r.out.Tag = tag
	r.out.ArtifactDir = r.written.Dir
	r.out.Status = ledger.StatusResolved

	if r.m.cfg.Output.RenameOnResolution {
		res, err := r.m.writer.Rename(r.item, tag)
		if err != nil {
			return err
		}
		switch res.Outcome {
		case artifacts.Renamed:
			r.out.Status = ledger.StatusTagged
			r.out.FinalPath = res.To
			r.out.Renamed = true
		case artifacts.AlreadyTagged:
			r.out.Status = ledger.StatusTagged
		case artifacts.Conflict:
			r.out.Status = ledger.StatusConflict
		}
	}

	r.logger.Info("evidence found",
		logging.Args(append(logging.DecisionAttrs("resolve", string(r.out.Status), "qualifying detection"),
			logging.String("tag", tag),
			logging.String("bucket", string(ev.Bucket)),
			logging.Float64("confidence", ev.Confidence()),
			logging.Int("stride", outcome.Stride),
			logging.Int("pairs", len(ev.Pairs)),
			logging.String("artifact_dir", r.written.Dir),
		)...)...,
	)
	return nil
}

func (r *itemRun) exhaust(outcome resample.Outcome) {
	r.out.Status = ledger.StatusNoEvidence
	r.logger.Info("no evidence at any stride",
		logging.Args(append(logging.DecisionAttrs("resample", string(outcome.State), "no qualifying detection"),
			logging.Any("strides", outcome.Strides),
			logging.Float64("max_primary_confidence", outcome.Evidence.MaxPrimaryConfidence),
		)...)...,
	)
	if !r.m.cfg.Output.DeleteOnNoDetection {
		return
	}

	err := os.Remove(r.item.Path)
	switch {
	case err == nil:
		r.out.Status = ledger.StatusDeleted
		r.out.FinalPath = ""
		r.logger.Info("deleted item without evidence",
			logging.Args(logging.DecisionAttrs("delete", "deleted", "delete_on_no_detection")...)...,
		)
	case errors.Is(err, fs.ErrNotExist):
		r.logger.Info("item already gone; nothing to delete")
	default:
		logging.WarnWithContext(r.logger, "failed to delete item without evidence", "delete_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the input directory"),
			logging.String(logging.FieldImpact, "file kept; item recorded as no evidence"),
		)
	}
}

func (r *itemRun) record() {
	res := r.track.Record(r.item.RelPath, r.out.Confidence, r.out.Stride)
	r.logger.Debug("tracking updated",
		logging.String("outcome", string(res.Outcome)),
		logging.Float64("previous", res.Previous.Confidence),
		logging.Int("previous_stride", res.Previous.Stride),
		logging.Float64("current", res.Current.Confidence),
		logging.Int("current_stride", res.Current.Stride),
	)
}

func (r *itemRun) fail(err error) {
	r.out.Err = err
	r.out.Status = services.FailureStatus(err)
	if r.out.Status == ledger.StatusSkipped {
		logging.WarnWithContext(r.logger, "item vanished during processing; skipping", "item_vanished",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "another process moved or deleted the file"),
			logging.String(logging.FieldImpact, "item skipped"),
		)
		return
	}
	logging.ErrorWithContext(r.logger, "item failed", "item_failed",
		logging.Error(err),
		logging.Any("strides", r.out.Strides),
		logging.String(logging.FieldErrorHint, failureHint(err)),
	)
}

// persist writes the item's current state with the given status. Ledger
// errors are logged; they do not change the item's outcome.
func (r *itemRun) persist(ctx context.Context, status ledger.Status) {
	row := &ledger.Item{
		RunID:         r.runID,
		Seq:           r.item.ID,
		Status:        status,
		FinalPath:     r.out.FinalPath,
		Tag:           r.out.Tag,
		Confidence:    r.out.Confidence,
		Stride:        r.out.Stride,
		Strides:       r.out.Strides,
		Iterations:    r.out.Iterations,
		CorrelationID: r.corrID,
	}
	if r.out.Err != nil {
		row.ErrorMessage = r.out.Err.Error()
	}
	if err := r.m.store.UpdateItem(ctx, row); err != nil {
		logging.WarnWithContext(r.logger, "failed to persist item status", "ledger_update_failed",
			logging.Error(err),
			logging.String("status", string(status)),
			logging.String(logging.FieldImpact, "trailcam status may show a stale state for this item"),
		)
	}
}

func failureHint(err error) string {
	switch {
	case errors.Is(err, services.ErrTimeout):
		return "raise detection.timeout_seconds or check that the detector is responsive"
	case errors.Is(err, services.ErrExternalTool):
		return "check ffmpeg, ffprobe and detector output in the log file"
	case errors.Is(err, services.ErrTransient):
		return "retry the run; the failure may be temporary"
	default:
		return "check logs for details"
	}
}
