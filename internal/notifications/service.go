package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"trailcam/internal/config"
)

const userAgent = "trailcam/0.1.0"

// RunReport is the completion summary sent at the end of a run.
type RunReport struct {
	RunID      string
	Total      int
	Processed  int
	Tagged     int
	NoEvidence int
	Deleted    int
	Failed     int
	Conflicts  int
	Cancelled  bool
	Duration   time.Duration
}

// Service defines the notification surface exposed to the run controller.
type Service interface {
	NotifyRunStarted(ctx context.Context, runID string, items int) error
	NotifyRunCompleted(ctx context.Context, report RunReport) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: cfg.NotifyTimeout()},
		minItems: cfg.Notifications.MinItems,
		run:      cfg.Notifications.Run,
		errors:   cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	minItems int
	run      bool
	errors   bool
}

func (n *ntfyService) NotifyRunStarted(ctx context.Context, runID string, items int) error {
	if !n.run || items < n.minItems {
		return nil
	}
	data := payload{
		title:   "trailcam - Run Started",
		message: fmt.Sprintf("📷 Processing %s (run %s)", plural(items, "item"), shortID(runID)),
		tags:    []string{"trailcam", "run", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, report RunReport) error {
	if !n.run || report.Total < n.minItems {
		return nil
	}
	duration := report.Duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}

	title := "trailcam - Run Complete"
	tags := []string{"trailcam", "run", "completed"}
	switch {
	case report.Cancelled:
		title = "trailcam - Run Cancelled"
		tags = []string{"trailcam", "run", "cancelled"}
	case report.Failed > 0:
		title = "trailcam - Run Complete (with errors)"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🦌 %d of %d processed in %s", report.Processed, report.Total, duration)
	fmt.Fprintf(&b, "\nTagged: %d, no evidence: %d", report.Tagged, report.NoEvidence)
	if report.Deleted > 0 {
		fmt.Fprintf(&b, ", deleted: %d", report.Deleted)
	}
	if report.Failed > 0 || report.Conflicts > 0 {
		fmt.Fprintf(&b, "\nFailed: %d, conflicts: %d", report.Failed, report.Conflicts)
	}

	return n.send(ctx, payload{title: title, message: b.String(), tags: tags})
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("❌ Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "trailcam - Error",
		message:  builder.String(),
		tags:     []string{"trailcam", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "trailcam - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"trailcam", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

type noopService struct{}

func (noopService) NotifyRunStarted(context.Context, string, int) error { return nil }
func (noopService) NotifyRunCompleted(context.Context, RunReport) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error    { return nil }
func (noopService) TestNotification(context.Context) error              { return nil }
