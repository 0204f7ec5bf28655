package sampler_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"trailcam/internal/logging"
	"trailcam/internal/media"
	"trailcam/internal/sampler"
	"trailcam/internal/testsupport"
)

func TestPositions(t *testing.T) {
	tests := []struct {
		limit, stride int
		want          []int
	}{
		{300, 33, []int{33, 66, 99, 132, 165, 198, 231, 264, 297}},
		{10, 3, []int{3, 6, 9}},
		{2, 3, nil},
		{0, 3, nil},
		{9, 0, nil},
	}
	for _, tt := range tests {
		if got := sampler.Positions(tt.limit, tt.stride); !slices.Equal(got, tt.want) {
			t.Fatalf("Positions(%d, %d) = %v, want %v", tt.limit, tt.stride, got, tt.want)
		}
	}
}

func TestMaxFramesFor(t *testing.T) {
	if got := sampler.MaxFramesFor(29.97, 5); got != 149 {
		t.Fatalf("MaxFramesFor(29.97, 5) = %d, want 149", got)
	}
	if got := sampler.MaxFramesFor(30, 0); got != 0 {
		t.Fatalf("zero seconds should be unbounded, got %d", got)
	}
}

func newVideoSampler(t *testing.T, rate string, frames, maxSeconds int) (*sampler.Sampler, string) {
	t.Helper()
	bin := t.TempDir()
	ffmpeg := testsupport.WriteScript(t, bin, "ffmpeg", testsupport.FakeFFmpegScript())
	ffprobe := testsupport.WriteScript(t, bin, "ffprobe", testsupport.FakeFFprobeScript(1920, 1080, rate, frames))
	tmp := t.TempDir()
	s := sampler.New(sampler.Options{
		FFmpegBinary:  ffmpeg,
		FFprobeBinary: ffprobe,
		MaxSeconds:    maxSeconds,
		TempDir:       tmp,
	}, logging.NewNop())
	return s, tmp
}

func videoItem(t *testing.T) media.Item {
	t.Helper()
	path := filepath.Join(t.TempDir(), "CLIP0001.MP4")
	testsupport.WriteFile(t, path, 64)
	return media.Item{ID: 1, Path: path, RelPath: "CLIP0001.MP4", Kind: media.KindVideo}
}

func TestSampleVideoMapsOrdinals(t *testing.T) {
	s, tmp := newVideoSampler(t, "30/1", 300, 0)
	argsLog := filepath.Join(t.TempDir(), "args.log")
	t.Setenv("FFMPEG_ARGS_LOG", argsLog)

	pass, err := s.Sample(context.Background(), videoItem(t), sampler.Request{Stride: 33})
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	defer pass.Close()

	var ordinals []int
	for f := range pass.Frames() {
		ordinals = append(ordinals, f.Ordinal)
		if !f.Temporary || f.Width != 1920 || f.Height != 1080 {
			t.Fatalf("unexpected frame %+v", f)
		}
		if filepath.Base(f.Path) != fmt.Sprintf("frame_%06d.jpg", f.Ordinal) {
			t.Fatalf("frame file not renamed to ordinal: %s", f.Path)
		}
		if _, err := os.Stat(f.Path); err != nil {
			t.Fatalf("frame missing: %v", err)
		}
	}
	if !slices.Equal(ordinals, sampler.Positions(300, 33)) {
		t.Fatalf("ordinals = %v", ordinals)
	}
	// A second range yields the same frames.
	if n := len(pass.Paths()); n != 9 || pass.Len() != 9 {
		t.Fatalf("expected 9 frames on re-iteration, got %d", n)
	}

	args, err := os.ReadFile(argsLog)
	if err != nil {
		t.Fatalf("read args log: %v", err)
	}
	if !strings.Contains(string(args), `select=not(mod(n+1\,33))`) || !strings.Contains(string(args), "-frames:v 9") {
		t.Fatalf("unexpected ffmpeg args: %s", args)
	}

	if err := pass.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := pass.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	entries, _ := os.ReadDir(tmp)
	if len(entries) != 0 {
		t.Fatalf("expected temp dir cleanup, found %d entries", len(entries))
	}
}

func TestSampleVideoUsesExtractedFrameSize(t *testing.T) {
	s, _ := newVideoSampler(t, "30/1", 300, 0)
	// Portrait phone clip: the stream is coded 1920x1080 with a 90 degree
	// rotation, and ffmpeg writes upright 108x192 frames.
	source := filepath.Join(t.TempDir(), "upright.jpg")
	testsupport.WriteJPEG(t, source, 108, 192)
	t.Setenv("FAKE_FRAME_SOURCE", source)

	pass, err := s.Sample(context.Background(), videoItem(t), sampler.Request{Stride: 100})
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	defer pass.Close()
	if pass.Len() != 3 {
		t.Fatalf("expected 3 frames, got %d", pass.Len())
	}
	for f := range pass.Frames() {
		if f.Width != 108 || f.Height != 192 {
			t.Fatalf("expected extracted 108x192, got %dx%d", f.Width, f.Height)
		}
	}
}

func TestSampleVideoHonorsDurationCap(t *testing.T) {
	s, _ := newVideoSampler(t, "30/1", 3000, 5)
	pass, err := s.Sample(context.Background(), videoItem(t), sampler.Request{Stride: 33})
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	defer pass.Close()
	// 5s at 30fps caps positions at 150: 33, 66, 99, 132.
	if pass.Len() != 4 {
		t.Fatalf("expected 4 frames under the duration cap, got %d", pass.Len())
	}

	explicit, err := s.Sample(context.Background(), videoItem(t), sampler.Request{Stride: 11, MaxFrames: 33})
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	defer explicit.Close()
	if explicit.Len() != 3 {
		t.Fatalf("expected explicit MaxFrames to win, got %d frames", explicit.Len())
	}
}

func TestSampleVideoProbeFailureYieldsEmptyPass(t *testing.T) {
	bin := t.TempDir()
	s := sampler.New(sampler.Options{
		FFmpegBinary:  testsupport.WriteScript(t, bin, "ffmpeg", testsupport.FakeFFmpegScript()),
		FFprobeBinary: testsupport.WriteScript(t, bin, "ffprobe", testsupport.FailingScript("moov atom not found")),
	}, logging.NewNop())

	pass, err := s.Sample(context.Background(), videoItem(t), sampler.Request{Stride: 33})
	if err != nil {
		t.Fatalf("probe failure should not be an error: %v", err)
	}
	defer pass.Close()
	if pass.Len() != 0 || pass.Err == nil {
		t.Fatalf("expected empty pass with recorded cause, got len=%d err=%v", pass.Len(), pass.Err)
	}
}

func TestSampleVideoDecodeFailureYieldsEmptyPass(t *testing.T) {
	bin := t.TempDir()
	tmp := t.TempDir()
	s := sampler.New(sampler.Options{
		FFmpegBinary:  testsupport.WriteScript(t, bin, "ffmpeg", testsupport.FailingScript("Invalid data found when processing input")),
		FFprobeBinary: testsupport.WriteScript(t, bin, "ffprobe", testsupport.FakeFFprobeScript(640, 480, "30/1", 90)),
		TempDir:       tmp,
	}, logging.NewNop())

	pass, err := s.Sample(context.Background(), videoItem(t), sampler.Request{Stride: 3})
	if err != nil {
		t.Fatalf("decode failure should not be an error: %v", err)
	}
	if pass.Len() != 0 || pass.Err == nil {
		t.Fatalf("expected empty pass, got %d frames", pass.Len())
	}
	if entries, _ := os.ReadDir(tmp); len(entries) != 0 {
		t.Fatal("failed pass left a temp directory behind")
	}
}

func TestSampleCancelled(t *testing.T) {
	s, _ := newVideoSampler(t, "30/1", 300, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Sample(ctx, videoItem(t), sampler.Request{Stride: 33}); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestSampleImage(t *testing.T) {
	s := sampler.New(sampler.Options{}, logging.NewNop())
	path := filepath.Join(t.TempDir(), "IMG_0001.JPG")
	testsupport.WriteJPEG(t, path, 64, 48)

	pass, err := s.Sample(context.Background(), media.Item{Path: path, RelPath: "IMG_0001.JPG", Kind: media.KindImage}, sampler.Request{Stride: 33})
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	frames := slices.Collect(pass.Frames())
	if len(frames) != 1 {
		t.Fatalf("expected one frame, got %d", len(frames))
	}
	f := frames[0]
	if f.Ordinal != 1 || f.Path != path || f.Temporary || f.Width != 64 || f.Height != 48 {
		t.Fatalf("unexpected image frame %+v", f)
	}
	if err := pass.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatal("closing an image pass must not delete the source")
	}
}

func TestSampleRejectsBadStride(t *testing.T) {
	s := sampler.New(sampler.Options{}, logging.NewNop())
	if _, err := s.Sample(context.Background(), media.Item{Kind: media.KindImage}, sampler.Request{}); err == nil {
		t.Fatal("expected error for zero stride")
	}
}

func TestNilPassIsSafe(t *testing.T) {
	var pass *sampler.Pass
	if pass.Len() != 0 || pass.Close() != nil || len(pass.Paths()) != 0 {
		t.Fatal("nil pass helpers should be no-ops")
	}
	for range pass.Frames() {
		t.Fatal("nil pass yielded a frame")
	}
}

func TestProbe(t *testing.T) {
	s, _ := newVideoSampler(t, "25/1", 40, 0)
	report := s.Probe(context.Background(), videoItem(t), 33)
	if report.Err != nil || report.Sampled != 1 || report.FrameCount != 40 {
		t.Fatalf("unexpected report %+v", report)
	}
}
