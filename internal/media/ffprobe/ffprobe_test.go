package ffprobe

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "audio"},
			{CodecType: "video", Width: 1920, Height: 1080, RFrameRate: "30/1", AvgFrameRate: "30000/1001", NBFrames: "300"},
		},
		Format: Format{Duration: "10.01"},
	}
	if fps := result.FrameRate(); math.Abs(fps-29.97) > 0.01 {
		t.Fatalf("unexpected frame rate: %v", fps)
	}
	if n := result.FrameCount(); n != 300 {
		t.Fatalf("unexpected frame count: %d", n)
	}
	if w, h := result.Dimensions(); w != 1920 || h != 1080 {
		t.Fatalf("unexpected dimensions: %dx%d", w, h)
	}
	if result.DurationSeconds() != 10.01 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
}

func TestFrameCountFallsBackToDuration(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "video", RFrameRate: "25/1", AvgFrameRate: "0/0", NBFrames: "N/A"}},
		Format:  Format{Duration: "4.0"},
	}
	if fps := result.FrameRate(); fps != 25 {
		t.Fatalf("expected r_frame_rate fallback, got %v", fps)
	}
	if n := result.FrameCount(); n != 100 {
		t.Fatalf("expected 100 frames from duration, got %d", n)
	}
}

func TestResultHelpersWithoutVideo(t *testing.T) {
	result := Result{Streams: []Stream{{CodecType: "audio"}}, Format: Format{Duration: "bad"}}
	if result.FrameRate() != 0 || result.FrameCount() != 0 {
		t.Fatal("expected zero rate and count without a video stream")
	}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected NaN duration, got %v", result.DurationSeconds())
	}
}

func TestInspectRunsBinary(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "ffprobe")
	body := `#!/bin/sh
cat <<'JSON'
{"streams":[{"index":0,"codec_type":"video","width":640,"height":480,"r_frame_rate":"30/1","avg_frame_rate":"30/1","nb_frames":"90"}],"format":{"duration":"3.0"}}
JSON
`
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	result, err := Inspect(context.Background(), script, filepath.Join(dir, "clip.mp4"))
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if result.FrameCount() != 90 {
		t.Fatalf("unexpected frame count: %d", result.FrameCount())
	}
}

func TestInspectReportsFailures(t *testing.T) {
	dir := t.TempDir()
	failing := filepath.Join(dir, "ffprobe-fail")
	if err := os.WriteFile(failing, []byte("#!/bin/sh\necho 'moov atom not found' >&2\nexit 1\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := Inspect(context.Background(), failing, "clip.mp4"); err == nil {
		t.Fatal("expected error from failing ffprobe")
	}

	audioOnly := filepath.Join(dir, "ffprobe-audio")
	if err := os.WriteFile(audioOnly, []byte("#!/bin/sh\necho '{\"streams\":[{\"codec_type\":\"audio\"}],\"format\":{}}'\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := Inspect(context.Background(), audioOnly, "clip.m4a"); !errors.Is(err, ErrNoVideoStream) {
		t.Fatalf("expected ErrNoVideoStream, got %v", err)
	}

	if _, err := Inspect(context.Background(), failing, " "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
