package workflow

import (
	"context"
	"errors"

	"trailcam/internal/logging"
	"trailcam/internal/notifications"
)

func (m *Manager) notifyRunStarted(ctx context.Context, runID string, items int) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.NotifyRunStarted(ctx, runID, items); err != nil {
		m.logNotifyFailure(ctx, "run start", err)
	}
}

func (m *Manager) notifyRunCompleted(ctx context.Context, summary Summary) {
	if m.notifier == nil {
		return
	}
	c := summary.Counts
	report := notifications.RunReport{
		RunID:      summary.RunID,
		Total:      c.Total,
		Processed:  c.Processed,
		Tagged:     summary.Found(),
		NoEvidence: c.NoEvidence,
		Deleted:    c.Deleted,
		Failed:     c.Failed,
		Conflicts:  c.Conflicts,
		Cancelled:  summary.Cancelled,
		Duration:   summary.Duration,
	}
	if err := m.notifier.NotifyRunCompleted(ctx, report); err != nil {
		m.logNotifyFailure(ctx, "run completion", err)
	}
}

func (m *Manager) notifyError(ctx context.Context, runErr error, label string) {
	if m.notifier == nil || runErr == nil {
		return
	}
	if err := m.notifier.NotifyError(ctx, runErr, label); err != nil {
		m.logNotifyFailure(ctx, label, err)
	}
}

func (m *Manager) logNotifyFailure(ctx context.Context, event string, err error) {
	logger := logging.WithContext(ctx, m.logger)
	if errors.Is(err, context.Canceled) {
		logger.Debug("shutting down, notification not sent", logging.String("notification", event))
		return
	}
	logging.WarnWithContext(logger, "notification failed", "notification_failed",
		logging.String("notification", event),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network access"),
		logging.String(logging.FieldImpact, "run results are unaffected"),
	)
}
