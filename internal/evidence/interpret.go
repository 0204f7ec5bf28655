package evidence

import (
	"trailcam/internal/detection"
)

// Thresholds for the small-and-high heuristic, in pixels. A primary box is
// small and high when its bottom edge sits in the upper half of the frame and
// its width plus height is under SmallHighPerimeter, or when both sides are
// under SmallSide.
const (
	SmallHighPerimeter = 180
	SmallSide          = 60
)

// FrameResult pairs a sampled frame with the detector's answer for it.
type FrameResult struct {
	Ordinal int
	Path    string
	Width   int
	Height  int
	Result  detection.Result
}

// Interpreted holds the qualifying detections of one frame, split by bucket.
type Interpreted struct {
	Frame     FrameResult
	Primary   []detection.Detection
	Secondary []detection.Detection
	Other     []detection.Detection
	// SmallAndHigh is set when any qualifying primary detection is small
	// and high in the frame.
	SmallAndHigh bool
	// MaxPrimary is the best primary confidence in the frame, including
	// detections at or below the threshold.
	MaxPrimary float64
}

// Empty reports whether the frame has no qualifying detections.
func (in Interpreted) Empty() bool {
	return len(in.Primary) == 0 && len(in.Secondary) == 0 && len(in.Other) == 0
}

// Interpret keeps detections with confidence strictly above threshold and
// buckets them. The output has one entry per input frame, in input order.
func Interpret(frames []FrameResult, threshold float64) []Interpreted {
	out := make([]Interpreted, len(frames))
	for i, frame := range frames {
		in := Interpreted{Frame: frame}
		for _, det := range frame.Result.Detections {
			if det.Category == detection.CategoryPrimary && det.Confidence > in.MaxPrimary {
				in.MaxPrimary = det.Confidence
			}
			if det.Confidence <= threshold {
				continue
			}
			switch det.Category {
			case detection.CategoryPrimary:
				in.Primary = append(in.Primary, det)
				if SmallAndHigh(det.Box, frame.Width, frame.Height) {
					in.SmallAndHigh = true
				}
			case detection.CategorySecondary:
				in.Secondary = append(in.Secondary, det)
			default:
				in.Other = append(in.Other, det)
			}
		}
		out[i] = in
	}
	return out
}

// SmallAndHigh applies the bird heuristic to a normalized box on a
// width x height frame. Pixel edges are truncated toward zero.
func SmallAndHigh(box detection.Box, width, height int) bool {
	if width <= 0 || height <= 0 {
		return false
	}
	w, h := float64(width), float64(height)
	x0 := int(box.X * w)
	y0 := int(box.Y * h)
	x1 := int((box.X + box.W) * w)
	y1 := int((box.Y + box.H) * h)
	wpx, hpx := x1-x0, y1-y0
	upper := float64(y1) <= h/2
	return (upper && wpx+hpx < SmallHighPerimeter) || (wpx < SmallSide && hpx < SmallSide)
}
