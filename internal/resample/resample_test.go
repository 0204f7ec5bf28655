package resample_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trailcam/internal/detection"
	"trailcam/internal/evidence"
	"trailcam/internal/media"
	"trailcam/internal/resample"
)

var policy = resample.Policy{Floor: 3, Divisor: 3}

func nothing(context.Context, int) (evidence.Evidence, error) {
	return evidence.Evidence{}, nil
}

func found(conf float64) evidence.Evidence {
	return evidence.Evidence{
		Mode:   evidence.ModeBest,
		Bucket: evidence.BucketPrimary,
		Pairs: []evidence.Pair{{
			Frame: evidence.FrameResult{Ordinal: 99},
			Best:  detection.Detection{Category: detection.CategoryPrimary, Confidence: conf},
		}},
		MaxPrimaryConfidence: conf,
	}
}

func TestNext(t *testing.T) {
	assert.Equal(t, 11, policy.Next(33))
	assert.Equal(t, 3, policy.Next(11))
	assert.Equal(t, 3, policy.Next(3), "clamped to floor")
	assert.Equal(t, 1, resample.Policy{Floor: 0, Divisor: 3}.Next(2), "clamped to one")
}

func TestRunExhaustsAtFloor(t *testing.T) {
	out, err := policy.Run(context.Background(), media.KindVideo, 33, nothing)
	require.NoError(t, err)
	assert.Equal(t, resample.StateExhausted, out.State)
	assert.Equal(t, []int{33, 11, 3}, out.Strides)
	assert.Equal(t, 2, out.Iterations)
	assert.Equal(t, 3, out.Stride)
	assert.False(t, out.Found())
}

func TestRunStopsOnEvidence(t *testing.T) {
	var tried []int
	attempt := func(_ context.Context, stride int) (evidence.Evidence, error) {
		tried = append(tried, stride)
		if stride == 11 {
			return found(0.6), nil
		}
		return evidence.Evidence{MaxPrimaryConfidence: 0.1}, nil
	}
	out, err := policy.Run(context.Background(), media.KindVideo, 33, attempt)
	require.NoError(t, err)
	assert.Equal(t, resample.StateRetried, out.State)
	assert.True(t, out.Found())
	assert.Equal(t, []int{33, 11}, tried)
	assert.Equal(t, 11, out.Stride)
}

func TestRunInitialHit(t *testing.T) {
	out, err := policy.Run(context.Background(), media.KindVideo, 33, func(context.Context, int) (evidence.Evidence, error) {
		return found(0.55), nil
	})
	require.NoError(t, err)
	assert.Equal(t, resample.StateInitial, out.State)
	assert.Zero(t, out.Iterations)
}

func TestRunImagesGoStraightToExhausted(t *testing.T) {
	out, err := policy.Run(context.Background(), media.KindImage, 33, nothing)
	require.NoError(t, err)
	assert.Equal(t, resample.StateExhausted, out.State)
	assert.Equal(t, []int{33}, out.Strides)
}

func TestRunStrideAtFloorIsSingleAttempt(t *testing.T) {
	out, err := policy.Run(context.Background(), media.KindVideo, 3, nothing)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, out.Strides)
	assert.Equal(t, resample.StateExhausted, out.State)
}

func TestRunAttemptErrorAborts(t *testing.T) {
	boom := errors.New("detector crashed")
	calls := 0
	out, err := policy.Run(context.Background(), media.KindVideo, 33, func(_ context.Context, stride int) (evidence.Evidence, error) {
		calls++
		if stride == 11 {
			return evidence.Evidence{}, boom
		}
		return evidence.Evidence{}, nil
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []int{33, 11}, out.Strides)
}

func TestRunHonorsMaxIterations(t *testing.T) {
	p := resample.Policy{Floor: 1, Divisor: 2, MaxIterations: 2}
	out, err := p.Run(context.Background(), media.KindVideo, 64, nothing)
	require.NoError(t, err)
	assert.Equal(t, []int{64, 32, 16}, out.Strides)
	assert.Equal(t, resample.StateExhausted, out.State)
}

func TestRunCarriesBestSubThresholdConfidence(t *testing.T) {
	confs := map[int]float64{33: 0.05, 11: 0.15, 3: 0.1}
	out, err := policy.Run(context.Background(), media.KindVideo, 33, func(_ context.Context, stride int) (evidence.Evidence, error) {
		return evidence.Evidence{MaxPrimaryConfidence: confs[stride]}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0.15, out.Evidence.MaxPrimaryConfidence)
}

func TestRunRejectsNonPositiveStride(t *testing.T) {
	_, err := policy.Run(context.Background(), media.KindVideo, 0, nothing)
	require.Error(t, err)
}

func TestBound(t *testing.T) {
	assert.Equal(t, 3, resample.Bound(33, 3, 3))
	assert.Equal(t, 0, resample.Bound(3, 3, 3))
	assert.Equal(t, 1, resample.Bound(9, 3, 3))
	assert.Equal(t, 2, resample.Bound(10, 3, 3))
}

func TestRunTerminatesWithinBound(t *testing.T) {
	for _, floor := range []int{1, 2, 3, 5} {
		for _, divisor := range []int{2, 3, 4} {
			for initial := floor; initial <= 400; initial++ {
				p := resample.Policy{Floor: floor, Divisor: divisor}
				out, err := p.Run(context.Background(), media.KindVideo, initial, nothing)
				require.NoError(t, err)

				want := int(math.Ceil(math.Log(float64(initial)/float64(floor))/math.Log(float64(divisor)) - 1e-9))
				assert.LessOrEqual(t, out.Iterations, max(want, 0), "S=%d F=%d D=%d", initial, floor, divisor)
				assert.GreaterOrEqual(t, out.Stride, floor)
				assert.LessOrEqual(t, out.Stride, initial)
				assert.Equal(t, resample.StateExhausted, out.State)
			}
		}
	}
}
