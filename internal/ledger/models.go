package ledger

import (
	"strconv"
	"strings"
	"time"
)

// Status is an item's explicit processing status.
type Status string

const (
	StatusDiscovered Status = "discovered"
	StatusSampled    Status = "sampled"
	StatusDetected   Status = "detected"
	StatusResolved   Status = "resolved"
	StatusTagged     Status = "tagged"
	StatusNoEvidence Status = "no_evidence"
	StatusDeleted    Status = "deleted"
	StatusSkipped    Status = "skipped"
	StatusFailed     Status = "failed"
	StatusConflict   Status = "conflict"
)

var allStatuses = []Status{
	StatusDiscovered,
	StatusSampled,
	StatusDetected,
	StatusResolved,
	StatusTagged,
	StatusNoEvidence,
	StatusDeleted,
	StatusSkipped,
	StatusFailed,
	StatusConflict,
}

var terminalStatuses = map[Status]struct{}{
	StatusResolved:   {},
	StatusTagged:     {},
	StatusNoEvidence: {},
	StatusDeleted:    {},
	StatusSkipped:    {},
	StatusFailed:     {},
	StatusConflict:   {},
}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// ParseStatus converts a string into a Status.
func ParseStatus(value string) (Status, bool) {
	candidate := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == candidate {
			return status, true
		}
	}
	return "", false
}

// Terminal reports whether no further transition follows within a run.
func (s Status) Terminal() bool {
	_, ok := terminalStatuses[s]
	return ok
}

// RunState is the lifecycle of a run row.
type RunState string

const (
	RunRunning   RunState = "running"
	RunCompleted RunState = "completed"
	RunCancelled RunState = "cancelled"
	RunFailed    RunState = "failed"
)

// Counts are the per-run summary counters.
type Counts struct {
	Total      int
	Processed  int
	Succeeded  int
	Failed     int
	NoEvidence int
	Deleted    int
	Renamed    int
	Skipped    int
	Conflicts  int
	Warnings   int
}

// Run is one orchestrator invocation.
type Run struct {
	ID           string
	InputDir     string
	State        RunState
	StartedAt    time.Time
	FinishedAt   time.Time
	Counts       Counts
	ErrorMessage string
}

// Duration returns the wall time of a finished run, or the time elapsed so
// far for a running one.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Item is one media file's row within a run.
type Item struct {
	ID            int64
	RunID         string
	Seq           int64
	RelPath       string
	Kind          string
	SizeBytes     int64
	Status        Status
	FinalPath     string
	Tag           string
	Confidence    float64
	Stride        int
	Strides       []int
	Iterations    int
	CorrelationID string
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func formatStrides(strides []int) string {
	parts := make([]string, len(strides))
	for i, s := range strides {
		parts[i] = strconv.Itoa(s)
	}
	return strings.Join(parts, ",")
}

func parseStrides(raw string) []int {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
			out = append(out, n)
		}
	}
	return out
}
