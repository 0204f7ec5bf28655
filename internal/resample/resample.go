package resample

import (
	"context"
	"fmt"

	"trailcam/internal/config"
	"trailcam/internal/evidence"
	"trailcam/internal/media"
)

// State is the resampler's position in its loop.
type State string

const (
	StateInitial   State = "initial"
	StateRetried   State = "retried"
	StateExhausted State = "exhausted"
)

// Policy bounds adaptive resampling.
type Policy struct {
	Floor   int
	Divisor int
	// MaxIterations caps resampling passes after the first. Zero derives
	// Bound(initial, Floor, Divisor) + 1 per run.
	MaxIterations int
}

// PolicyFromConfig reads the sampling section.
func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		Floor:         cfg.Sampling.MinStride,
		Divisor:       cfg.Sampling.StrideDivisor,
		MaxIterations: cfg.Sampling.MaxIterations,
	}
}

// AttemptFunc samples and evaluates an item at one stride.
type AttemptFunc func(ctx context.Context, stride int) (evidence.Evidence, error)

// Outcome reports how an item's resampling loop ended.
type Outcome struct {
	State    State
	Evidence evidence.Evidence
	// Stride is the stride of the last attempt.
	Stride  int
	Strides []int
	// Iterations counts resampling passes after the first attempt.
	Iterations int
}

// Found reports whether evidence was selected.
func (o Outcome) Found() bool {
	return o.Evidence.Found()
}

// Next returns the finer stride to try after stride.
func (p Policy) Next(stride int) int {
	return max(stride/p.divisor(), p.Floor, 1)
}

func (p Policy) divisor() int {
	if p.Divisor < 2 {
		return 2
	}
	return p.Divisor
}

// Run attempts the item at initial, then at successively finer strides while
// a video yields no evidence and the stride is above the floor. Attempt
// errors end the loop and are returned with the partial outcome. ctx is
// handed to attempt unchanged; Run does not poll it.
func (p Policy) Run(ctx context.Context, kind media.Kind, initial int, attempt AttemptFunc) (Outcome, error) {
	if initial < 1 {
		return Outcome{}, fmt.Errorf("resample: initial stride must be positive, got %d", initial)
	}
	limit := p.MaxIterations
	if limit <= 0 {
		limit = Bound(initial, p.Floor, p.divisor()) + 1
	}

	out := Outcome{State: StateInitial}
	stride := initial
	maxPrimary := 0.0
	for {
		ev, err := attempt(ctx, stride)
		out.Stride = stride
		out.Strides = append(out.Strides, stride)
		if err != nil {
			return out, err
		}
		maxPrimary = max(maxPrimary, ev.MaxPrimaryConfidence)
		ev.MaxPrimaryConfidence = maxPrimary
		out.Evidence = ev
		if ev.Found() {
			return out, nil
		}
		if kind != media.KindVideo || stride <= p.Floor || out.Iterations >= limit {
			out.State = StateExhausted
			return out, nil
		}
		stride = p.Next(stride)
		out.Iterations++
		out.State = StateRetried
	}
}

// Bound returns the smallest k with floor * divisor^k >= initial, the number
// of resampling passes needed to walk from initial down to floor.
func Bound(initial, floor, divisor int) int {
	if divisor < 2 {
		divisor = 2
	}
	floor = max(floor, 1)
	k := 0
	for reach := floor; reach < initial; reach *= divisor {
		k++
	}
	return k
}
