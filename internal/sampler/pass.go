package sampler

import (
	"iter"
	"os"
	"sync"

	"trailcam/internal/media"
)

// Frame is one sampled picture.
type Frame struct {
	// Ordinal is the 1-based frame position in the source.
	Ordinal int
	Path    string
	Width   int
	Height  int
	// Temporary frames live in the pass directory and are removed on Close.
	Temporary bool
}

// Pass holds the frames extracted at one stride.
type Pass struct {
	Item       media.Item
	Stride     int
	FrameRate  float64
	FrameCount int
	// Err records why a pass came back empty (probe or decode failure).
	Err error

	frames    []Frame
	dir       string
	closeOnce sync.Once
	closeErr  error
}

// Frames yields the pass's frames in ascending ordinal order. The sequence
// can be ranged over repeatedly.
func (p *Pass) Frames() iter.Seq[Frame] {
	return func(yield func(Frame) bool) {
		if p == nil {
			return
		}
		for _, f := range p.frames {
			if !yield(f) {
				return
			}
		}
	}
}

// Paths returns the frame file paths in ordinal order.
func (p *Pass) Paths() []string {
	if p == nil {
		return nil
	}
	out := make([]string, 0, len(p.frames))
	for f := range p.Frames() {
		out = append(out, f.Path)
	}
	return out
}

// Len returns the number of frames.
func (p *Pass) Len() int {
	if p == nil {
		return 0
	}
	return len(p.frames)
}

// Close removes the pass's temporary frames. It is safe to call more than
// once and on a nil pass. Source images are never removed.
func (p *Pass) Close() error {
	if p == nil {
		return nil
	}
	p.closeOnce.Do(func() {
		if p.dir != "" {
			p.closeErr = os.RemoveAll(p.dir)
		}
	})
	return p.closeErr
}
