package evidence

import (
	"cmp"
	"slices"

	"trailcam/internal/detection"
)

// Mode is the evidence collection mode.
type Mode string

const (
	ModeBest Mode = "best"
	ModeAll  Mode = "all"
)

// Bucket names the detection bucket the evidence was drawn from.
type Bucket string

const (
	BucketPrimary   Bucket = "primary"
	BucketSecondary Bucket = "secondary"
)

// Pair is one evidence frame with the detections to draw on it.
type Pair struct {
	Frame FrameResult
	// Best is the highest-confidence detection of the frame's bucket.
	Best detection.Detection
	// BestIndex is Best's position in Detections.
	BestIndex  int
	Detections []detection.Detection
}

// Evidence is the selector's verdict for one item.
type Evidence struct {
	Mode         Mode
	Bucket       Bucket
	Pairs        []Pair
	SmallAndHigh bool
	// MaxPrimaryConfidence is the best primary confidence seen across all
	// frames, qualifying or not. It is set even when nothing was found.
	MaxPrimaryConfidence float64
}

// Found reports whether any evidence was selected.
func (e Evidence) Found() bool {
	return len(e.Pairs) > 0
}

// Confidence returns the highest confidence among the selected pairs.
func (e Evidence) Confidence() float64 {
	best := 0.0
	for _, p := range e.Pairs {
		best = max(best, p.Best.Confidence)
	}
	return best
}

// SelectOptions controls Select.
type SelectOptions struct {
	CaptureAll       bool
	IncludeSecondary bool
}

// Select picks the evidence for an item from its interpreted frames.
//
// Qualifying secondary detections outrank primary ones: when both are present
// the evidence switches to the secondary bucket. Secondary-only items count as
// evidence only with IncludeSecondary set.
func Select(frames []Interpreted, opts SelectOptions) Evidence {
	ordered := slices.Clone(frames)
	slices.SortStableFunc(ordered, func(a, b Interpreted) int {
		return cmp.Compare(a.Frame.Ordinal, b.Frame.Ordinal)
	})

	ev := Evidence{Mode: ModeBest}
	if opts.CaptureAll {
		ev.Mode = ModeAll
	}
	hasPrimary, hasSecondary := false, false
	for _, in := range ordered {
		ev.MaxPrimaryConfidence = max(ev.MaxPrimaryConfidence, in.MaxPrimary)
		if in.SmallAndHigh {
			ev.SmallAndHigh = true
		}
		if len(in.Primary) > 0 {
			hasPrimary = true
		}
		if len(in.Secondary) > 0 {
			hasSecondary = true
		}
	}

	pick := func(in Interpreted) []detection.Detection { return in.Primary }
	ev.Bucket = BucketPrimary
	if hasSecondary && (hasPrimary || opts.IncludeSecondary) {
		pick = func(in Interpreted) []detection.Detection { return in.Secondary }
		ev.Bucket = BucketSecondary
	}

	var best *Pair
	for _, in := range ordered {
		dets := pick(in)
		if len(dets) == 0 {
			continue
		}
		pair := newPair(in.Frame, dets)
		if ev.Mode == ModeAll {
			ev.Pairs = append(ev.Pairs, pair)
			continue
		}
		if best == nil || pair.Best.Confidence > best.Best.Confidence {
			best = &pair
		}
	}
	if best != nil {
		ev.Pairs = []Pair{*best}
	}
	if !ev.Found() {
		return Evidence{MaxPrimaryConfidence: ev.MaxPrimaryConfidence}
	}
	return ev
}

func newPair(frame FrameResult, dets []detection.Detection) Pair {
	pair := Pair{Frame: frame, Detections: slices.Clone(dets)}
	for i, d := range pair.Detections {
		if i == 0 || d.Confidence > pair.Best.Confidence {
			pair.Best = d
			pair.BestIndex = i
		}
	}
	return pair
}
