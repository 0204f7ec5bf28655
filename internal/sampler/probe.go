package sampler

import (
	"context"

	"trailcam/internal/media"
	"trailcam/internal/media/ffprobe"
)

// ProbeReport summarizes how a video would sample without extracting frames.
type ProbeReport struct {
	FrameRate  float64
	FrameCount int
	Width      int
	Height     int
	// Sampled is the number of frames a pass at the probed stride would yield.
	Sampled int
	Err     error
}

// Probe inspects a video and predicts the sampled frame count at stride.
// Images report a single frame.
func (s *Sampler) Probe(ctx context.Context, item media.Item, stride int) ProbeReport {
	if item.Kind == media.KindImage {
		w, h, err := imageDimensions(item.Path)
		if err != nil {
			return ProbeReport{Err: err}
		}
		return ProbeReport{FrameCount: 1, Width: w, Height: h, Sampled: 1}
	}
	result, err := ffprobe.Inspect(ctx, s.opts.FFprobeBinary, item.Path)
	if err != nil {
		return ProbeReport{Err: err}
	}
	report := ProbeReport{FrameRate: result.FrameRate(), FrameCount: result.FrameCount()}
	report.Width, report.Height = result.Dimensions()
	limit := report.FrameCount
	if bound := MaxFramesFor(report.FrameRate, s.opts.MaxSeconds); bound > 0 && (limit <= 0 || limit > bound) {
		limit = bound
	}
	report.Sampled = len(Positions(limit, stride))
	return report
}
