package evidence_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trailcam/internal/detection"
	"trailcam/internal/evidence"
)

func det(cat detection.Category, conf float64, box detection.Box) detection.Detection {
	raw := map[detection.Category]string{
		detection.CategoryPrimary:   "1",
		detection.CategorySecondary: "2",
		detection.CategoryOther:     "9",
	}[cat]
	return detection.Detection{Category: cat, RawCategory: raw, Confidence: conf, Box: box}
}

var bigBox = detection.Box{X: 0.1, Y: 0.1, W: 0.2, H: 0.2}

func frame(ordinal int, dets ...detection.Detection) evidence.FrameResult {
	return evidence.FrameResult{
		Ordinal: ordinal,
		Width:   1920,
		Height:  1080,
		Result:  detection.Result{Detections: dets},
	}
}

func TestInterpretStrictThreshold(t *testing.T) {
	frames := []evidence.FrameResult{
		frame(33, det(detection.CategoryPrimary, 0.20, bigBox)),
		frame(66, det(detection.CategoryPrimary, 0.21, bigBox), det(detection.CategorySecondary, 0.9, bigBox), det(detection.CategoryOther, 0.5, bigBox)),
		frame(99),
	}
	out := evidence.Interpret(frames, 0.20)
	require.Len(t, out, 3)

	assert.True(t, out[0].Empty(), "confidence equal to threshold must not qualify")
	assert.Equal(t, 0.20, out[0].MaxPrimary)

	assert.Len(t, out[1].Primary, 1)
	assert.Len(t, out[1].Secondary, 1)
	assert.Len(t, out[1].Other, 1)

	assert.True(t, out[2].Empty())
	assert.Equal(t, 99, out[2].Frame.Ordinal)
}

func TestSmallAndHigh(t *testing.T) {
	tests := []struct {
		name string
		box  detection.Box
		w, h int
		want bool
	}{
		{"large box", bigBox, 1920, 1080, false},
		{"tiny anywhere", detection.Box{X: 0.5, Y: 0.9, W: 0.02, H: 0.04}, 1920, 1080, true},
		{"small in upper half", detection.Box{X: 0.1, Y: 0.1, W: 0.04, H: 0.08}, 1920, 1080, true},
		{"same box lower half", detection.Box{X: 0.1, Y: 0.6, W: 0.04, H: 0.08}, 1920, 1080, false},
		{"bottom exactly at middle", detection.Box{X: 0, Y: 0.4, W: 0.04, H: 0.1}, 1000, 1000, true},
		{"perimeter at limit", detection.Box{X: 0, Y: 0, W: 0.1, H: 0.08}, 1000, 1000, false},
		{"unknown dimensions", bigBox, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evidence.SmallAndHigh(tt.box, tt.w, tt.h))
		})
	}
}

func TestSmallAndHighConstants(t *testing.T) {
	assert.Equal(t, 180, evidence.SmallHighPerimeter)
	assert.Equal(t, 60, evidence.SmallSide)
}

func TestSelectBestPicksGlobalMaximum(t *testing.T) {
	frames := evidence.Interpret([]evidence.FrameResult{
		frame(33, det(detection.CategoryPrimary, 0.4, bigBox)),
		frame(66, det(detection.CategoryPrimary, 0.3, bigBox), det(detection.CategoryPrimary, 0.7, bigBox)),
		frame(99, det(detection.CategoryPrimary, 0.6, bigBox)),
	}, 0.2)

	ev := evidence.Select(frames, evidence.SelectOptions{})
	require.True(t, ev.Found())
	require.Len(t, ev.Pairs, 1)
	assert.Equal(t, evidence.ModeBest, ev.Mode)
	assert.Equal(t, evidence.BucketPrimary, ev.Bucket)

	pair := ev.Pairs[0]
	assert.Equal(t, 66, pair.Frame.Ordinal)
	assert.Equal(t, 0.7, pair.Best.Confidence)
	assert.Equal(t, 1, pair.BestIndex)
	assert.Len(t, pair.Detections, 2, "pair carries all qualifying primary detections of the frame")

	maxQualifying := 0.0
	for _, in := range frames {
		for _, d := range in.Primary {
			maxQualifying = max(maxQualifying, d.Confidence)
		}
	}
	assert.Equal(t, maxQualifying, ev.Confidence())
	assert.Equal(t, 0.7, ev.MaxPrimaryConfidence)
}

func TestSelectBestTieGoesToEarliest(t *testing.T) {
	frames := evidence.Interpret([]evidence.FrameResult{
		frame(99, det(detection.CategoryPrimary, 0.5, bigBox)),
		frame(33, det(detection.CategoryPrimary, 0.5, bigBox), det(detection.CategoryPrimary, 0.5, bigBox)),
	}, 0.2)
	ev := evidence.Select(frames, evidence.SelectOptions{})
	require.True(t, ev.Found())
	assert.Equal(t, 33, ev.Pairs[0].Frame.Ordinal)
	assert.Equal(t, 0, ev.Pairs[0].BestIndex)
}

func TestSelectCaptureAll(t *testing.T) {
	frames := evidence.Interpret([]evidence.FrameResult{
		frame(33, det(detection.CategoryPrimary, 0.4, bigBox)),
		frame(66),
		frame(99, det(detection.CategoryPrimary, 0.6, bigBox), det(detection.CategoryOther, 0.9, bigBox)),
	}, 0.2)
	ev := evidence.Select(frames, evidence.SelectOptions{CaptureAll: true})
	require.Len(t, ev.Pairs, 2)
	assert.Equal(t, evidence.ModeAll, ev.Mode)
	assert.Equal(t, 33, ev.Pairs[0].Frame.Ordinal)
	assert.Equal(t, 99, ev.Pairs[1].Frame.Ordinal)
	assert.Len(t, ev.Pairs[1].Detections, 1, "other-bucket detections are not evidence")
}

func TestSelectSecondaryOutranksPrimary(t *testing.T) {
	frames := evidence.Interpret([]evidence.FrameResult{
		frame(33, det(detection.CategoryPrimary, 0.9, bigBox)),
		frame(66, det(detection.CategorySecondary, 0.3, bigBox)),
	}, 0.2)

	ev := evidence.Select(frames, evidence.SelectOptions{IncludeSecondary: true})
	require.True(t, ev.Found())
	assert.Equal(t, evidence.BucketSecondary, ev.Bucket)
	assert.Equal(t, 66, ev.Pairs[0].Frame.Ordinal)
	assert.Equal(t, 0.9, ev.MaxPrimaryConfidence)

	ev = evidence.Select(frames, evidence.SelectOptions{})
	require.True(t, ev.Found())
	assert.Equal(t, evidence.BucketSecondary, ev.Bucket, "secondary outranks primary without the option")
	assert.Equal(t, 66, ev.Pairs[0].Frame.Ordinal)
}

func TestSelectSecondaryOnlyWithOptionIsEvidence(t *testing.T) {
	frames := evidence.Interpret([]evidence.FrameResult{
		frame(33, det(detection.CategorySecondary, 0.8, bigBox)),
	}, 0.2)
	ev := evidence.Select(frames, evidence.SelectOptions{IncludeSecondary: true})
	require.True(t, ev.Found())
	assert.Equal(t, evidence.BucketSecondary, ev.Bucket)
}

func TestSelectSecondaryOnlyWithoutOptionIsNoEvidence(t *testing.T) {
	frames := evidence.Interpret([]evidence.FrameResult{
		frame(33, det(detection.CategorySecondary, 0.8, bigBox)),
		frame(66, det(detection.CategoryPrimary, 0.1, bigBox)),
	}, 0.2)
	ev := evidence.Select(frames, evidence.SelectOptions{})
	assert.False(t, ev.Found())
	assert.Empty(t, ev.Pairs)
	assert.Equal(t, 0.1, ev.MaxPrimaryConfidence, "sub-threshold primary confidence is still reported")
}

func TestSelectFlagsSmallAndHighAcrossFrames(t *testing.T) {
	bird := detection.Box{X: 0.4, Y: 0.05, W: 0.02, H: 0.03}
	frames := evidence.Interpret([]evidence.FrameResult{
		frame(33, det(detection.CategoryPrimary, 0.3, bird)),
		frame(66, det(detection.CategoryPrimary, 0.8, bigBox)),
	}, 0.2)
	ev := evidence.Select(frames, evidence.SelectOptions{})
	require.True(t, ev.Found())
	assert.True(t, ev.SmallAndHigh)
	assert.Equal(t, 66, ev.Pairs[0].Frame.Ordinal)
}

func TestSelectEmpty(t *testing.T) {
	ev := evidence.Select(nil, evidence.SelectOptions{CaptureAll: true})
	assert.False(t, ev.Found())
	assert.Equal(t, evidence.Evidence{}, ev)
}
