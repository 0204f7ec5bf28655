package workflow

import (
	"time"

	"trailcam/internal/ledger"
	"trailcam/internal/media"
)

// RunOptions adjusts a single run.
type RunOptions struct {
	// Limit processes only the first Limit enumerated items when positive.
	Limit int
}

// Progress is published after every item, whatever its outcome.
type Progress struct {
	Processed int
	Total     int
	ItemID    int64
	RelPath   string
	Status    ledger.Status
}

// ItemOutcome is the final state of one item.
type ItemOutcome struct {
	ItemID     int64
	RelPath    string
	Kind       media.Kind
	Status     ledger.Status
	Tag        string
	FinalPath  string
	Renamed    bool
	Confidence float64
	Stride     int
	Strides    []int
	Iterations int
	// ArtifactDir is empty when no artifacts were written.
	ArtifactDir string
	Err         error
	Duration    time.Duration
}

// Found reports whether the item resolved with evidence.
func (o ItemOutcome) Found() bool {
	switch o.Status {
	case ledger.StatusResolved, ledger.StatusTagged, ledger.StatusConflict:
		return true
	}
	return false
}

// Summary describes a finished run.
type Summary struct {
	RunID     string
	Counts    ledger.Counts
	Warnings  []string
	Duration  time.Duration
	Cancelled bool
	Items     []ItemOutcome
}

// Found counts items resolved with evidence.
func (s Summary) Found() int {
	n := 0
	for _, item := range s.Items {
		if item.Found() {
			n++
		}
	}
	return n
}

func (s *Summary) add(out ItemOutcome) {
	s.Items = append(s.Items, out)
	s.Counts.Processed++
	switch out.Status {
	case ledger.StatusFailed:
		s.Counts.Failed++
		return
	case ledger.StatusSkipped:
		s.Counts.Skipped++
		return
	case ledger.StatusNoEvidence:
		s.Counts.NoEvidence++
	case ledger.StatusDeleted:
		s.Counts.NoEvidence++
		s.Counts.Deleted++
	case ledger.StatusConflict:
		s.Counts.Conflicts++
	}
	if out.Renamed {
		s.Counts.Renamed++
	}
	s.Counts.Succeeded++
}

func (s *Summary) warn(msg string) {
	s.Warnings = append(s.Warnings, msg)
	s.Counts.Warnings = len(s.Warnings)
}

// Run is a batch started by Manager.Start.
type Run struct {
	id     string
	events chan Progress
	done   chan struct{}

	summary Summary
	err     error
}

// ID returns the ledger run ID.
func (r *Run) ID() string {
	return r.id
}

// Events yields one Progress per item and is closed when the run ends. The
// channel is buffered for every item so an unread channel never stalls the
// run.
func (r *Run) Events() <-chan Progress {
	return r.events
}

// Wait blocks until the run ends. The error is non-nil only for failures
// that ended the run early; item failures are reported in the summary.
func (r *Run) Wait() (Summary, error) {
	<-r.done
	return r.summary, r.err
}
