package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"trailcam/internal/ledger"
	"trailcam/internal/logging"
	"trailcam/internal/media"
	"trailcam/internal/services"
	"trailcam/internal/tracking"
)

// ErrRunInProgress is returned by Start while another run is active.
var ErrRunInProgress = errors.New("workflow: run already in progress")

// Start enumerates the input root and begins processing on a worker
// goroutine. Errors returned here mean nothing was processed.
func (m *Manager) Start(ctx context.Context, opts RunOptions) (*Run, error) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil, ErrRunInProgress
	}
	m.running = true
	m.mu.Unlock()

	run, items, track, err := m.prepare(ctx, opts)
	if err != nil {
		m.setRunning(false)
		m.notifyError(ctx, err, "run start")
		return nil, err
	}
	go m.work(ctx, run, items, track)
	return run, nil
}

func (m *Manager) prepare(ctx context.Context, opts RunOptions) (*Run, []media.Item, *tracking.Store, error) {
	root := m.cfg.Paths.InputDir
	items, err := media.Enumerate(root, media.OptionsFromConfig(m.cfg))
	if err != nil {
		return nil, nil, nil, err
	}
	if opts.Limit > 0 && len(items) > opts.Limit {
		items = items[:opts.Limit]
	}

	if _, err := m.resolveDetector(); err != nil {
		return nil, nil, nil, services.Wrap(services.ErrConfiguration, "detect", "build client", "", err)
	}

	track, err := tracking.Open(m.cfg.Paths.TrackingFile, m.logger)
	if err != nil {
		if errors.Is(err, tracking.ErrLocked) {
			return nil, nil, nil, services.Wrap(services.ErrValidation, "track", "lock", "another run is using "+m.cfg.Paths.TrackingFile, err)
		}
		return nil, nil, nil, services.Wrap(services.ErrConfiguration, "track", "open", m.cfg.Paths.TrackingFile, err)
	}

	runID := uuid.NewString()
	if n, err := m.store.AbandonStaleRuns(ctx, "superseded by run "+runID); err != nil {
		_ = track.Close()
		return nil, nil, nil, fmt.Errorf("abandon stale runs: %w", err)
	} else if n > 0 {
		logging.WarnWithContext(m.logger, "marked interrupted runs as failed", "stale_runs_abandoned",
			logging.Int64("runs", n),
			logging.String(logging.FieldErrorHint, "a previous run exited without finishing"),
			logging.String(logging.FieldImpact, "their unfinished items stay in their last recorded status"),
		)
	}
	if _, err := m.store.BeginRun(ctx, runID, root, len(items)); err != nil {
		_ = track.Close()
		return nil, nil, nil, err
	}
	rows := make([]ledger.NewItem, len(items))
	for i, item := range items {
		rows[i] = ledger.NewItem{Seq: item.ID, RelPath: item.RelPath, Kind: string(item.Kind), SizeBytes: item.Size}
	}
	if err := m.store.AddItems(ctx, runID, rows); err != nil {
		_ = track.Close()
		_ = m.store.FinishRun(context.WithoutCancel(ctx), runID, ledger.RunFailed, ledger.Counts{Total: len(items)}, err.Error())
		return nil, nil, nil, err
	}

	run := &Run{
		id:      runID,
		events:  make(chan Progress, len(items)),
		done:    make(chan struct{}),
		summary: Summary{RunID: runID, Counts: ledger.Counts{Total: len(items)}},
	}
	return run, items, track, nil
}

func (m *Manager) work(ctx context.Context, run *Run, items []media.Item, track *tracking.Store) {
	started := time.Now()
	ctx = services.WithRunID(ctx, run.id)
	logger := logging.WithContext(ctx, m.logger)
	defer func() {
		m.setRunning(false)
		close(run.events)
		close(run.done)
	}()

	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_started"),
		logging.String("input_dir", m.cfg.Paths.InputDir),
		logging.Int("items", len(items)),
		logging.Int("initial_stride", m.cfg.Sampling.FrameStride),
		logging.Float64("threshold", m.cfg.Detection.ConfidenceThreshold),
	)
	m.notifyRunStarted(ctx, run.id, len(items))

	itemCtx := context.WithoutCancel(ctx)
	for i, item := range items {
		if ctx.Err() != nil {
			run.summary.Cancelled = true
			logger.Info("run cancelled; remaining items left unprocessed",
				logging.String(logging.FieldEventType, "run_cancelled"),
				logging.Int("remaining", len(items)-i),
			)
			break
		}
		out := m.runItem(itemCtx, item, run.id, track)
		run.summary.add(out)
		run.events <- Progress{
			Processed: i + 1,
			Total:     len(items),
			ItemID:    item.ID,
			RelPath:   item.RelPath,
			Status:    out.Status,
		}
	}

	m.finish(itemCtx, run, track, started, logger)
}

func (m *Manager) finish(ctx context.Context, run *Run, track *tracking.Store, started time.Time, logger *slog.Logger) {
	if err := m.flushTracking(track); err != nil {
		run.summary.warn(fmt.Sprintf("tracking file not saved: %v", err))
		logging.WarnWithContext(logger, "tracking flush failed after retry", "tracking_flush_failed",
			logging.Error(err),
			logging.String("path", track.Path()),
			logging.String(logging.FieldErrorHint, "check free space and permissions on the output directory"),
			logging.String(logging.FieldImpact, "confidences from this run are lost; the next run reprocesses the items"),
		)
	}
	if err := track.Close(); err != nil {
		logger.Debug("tracking lock release failed", logging.Error(err))
	}

	run.summary.Duration = time.Since(started)
	state := ledger.RunCompleted
	if run.summary.Cancelled {
		state = ledger.RunCancelled
	}
	if err := m.store.FinishRun(ctx, run.id, state, run.summary.Counts, ""); err != nil {
		run.summary.warn(fmt.Sprintf("run ledger not finalized: %v", err))
		logging.WarnWithContext(logger, "failed to finalize run in ledger", "ledger_finish_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "trailcam status shows this run as running until the next run"),
		)
	}

	c := run.summary.Counts
	logger.Info("run finished",
		logging.String(logging.FieldEventType, "run_finished"),
		logging.String("state", string(state)),
		logging.Int("processed", c.Processed),
		logging.Int("succeeded", c.Succeeded),
		logging.Int("failed", c.Failed),
		logging.Int("no_evidence", c.NoEvidence),
		logging.Int("deleted", c.Deleted),
		logging.Int("renamed", c.Renamed),
		logging.Int("skipped", c.Skipped),
		logging.Int("conflicts", c.Conflicts),
		logging.Int("warnings", c.Warnings),
		logging.Duration("duration", run.summary.Duration),
	)
	m.notifyRunCompleted(ctx, run.summary)
}

// flushTracking writes the tracking store, retrying once. A clean store is
// left alone unless the file has never been written.
func (m *Manager) flushTracking(track *tracking.Store) error {
	if !track.Dirty() {
		if _, err := os.Stat(track.Path()); err == nil {
			m.logger.Debug("tracking unchanged; flush skipped", logging.String("path", track.Path()))
			return nil
		}
	}
	err := track.Flush()
	if err == nil {
		return nil
	}
	m.logger.Debug("tracking flush failed; retrying", logging.Error(err))
	return track.Flush()
}
