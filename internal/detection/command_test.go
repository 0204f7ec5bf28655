package detection_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"trailcam/internal/detection"
	"trailcam/internal/services"
	"trailcam/internal/testsupport"
)

// echoDetector reads paths from stdin and reports one 0.5 animal detection
// for each. It records its arguments next to the script.
const echoDetector = `#!/bin/sh
echo "$*" > "$(dirname "$0")/args.txt"
printf '{"images":['
sep=""
while IFS= read -r line; do
  [ -z "$line" ] && continue
  printf '%s{"file":"%s","detections":[{"category":"1","conf":0.5,"bbox":[0.1,0.1,0.2,0.2]}]}' "$sep" "$line"
  sep=","
done
printf ']}'
`

func TestCommandClientStdinProtocol(t *testing.T) {
	dir := t.TempDir()
	script := testsupport.WriteScript(t, dir, "detector", echoDetector)
	client := detection.NewCommandClient(detection.CommandOptions{
		Command:    script,
		Args:       []string{"--threshold={threshold}"},
		Timeout:    10 * time.Second,
		Categories: defaultCats,
	}, nil)

	paths := []string{"/frames/frame_000033.jpg", "/frames/frame_000066.jpg"}
	results, err := client.Detect(context.Background(), paths, 0.2)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Path != paths[i] || len(r.Detections) != 1 {
			t.Fatalf("unexpected result %d: %+v", i, r)
		}
	}
	args, err := os.ReadFile(filepath.Join(dir, "args.txt"))
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	if strings.TrimSpace(string(args)) != "--threshold=0.2" {
		t.Fatalf("threshold placeholder not substituted: %q", args)
	}
}

func TestCommandClientFilePlaceholders(t *testing.T) {
	dir := t.TempDir()
	script := testsupport.WriteScript(t, dir, "detector", `#!/bin/sh
first=$(head -n 1 "$1")
printf '[{"file":"%s","detections":[{"category":"2","conf":0.7,"bbox":[0,0,0.5,0.5]}]}]' "$first" > "$2"
`)
	client := detection.NewCommandClient(detection.CommandOptions{
		Command:    script,
		Args:       []string{"{input}", "{output}"},
		Categories: defaultCats,
	}, nil)
	results, err := client.Detect(context.Background(), []string{"/frames/a.jpg"}, 0.2)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(results[0].Detections) != 1 || results[0].Detections[0].Category != detection.CategorySecondary {
		t.Fatalf("unexpected result %+v", results[0])
	}
}

func TestCommandClientFailure(t *testing.T) {
	dir := t.TempDir()
	script := testsupport.WriteScript(t, dir, "detector", testsupport.FailingScript("model weights missing"))
	client := detection.NewCommandClient(detection.CommandOptions{Command: script, Categories: defaultCats}, nil)
	_, err := client.Detect(context.Background(), []string{"/frames/a.jpg"}, 0.2)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	if !strings.Contains(err.Error(), "model weights missing") {
		t.Fatalf("error should carry stderr tail, got %v", err)
	}
}

func TestCommandClientMalformedOutput(t *testing.T) {
	dir := t.TempDir()
	script := testsupport.WriteScript(t, dir, "detector", "#!/bin/sh\ncat >/dev/null\necho loading model...\n")
	client := detection.NewCommandClient(detection.CommandOptions{Command: script, Categories: defaultCats}, nil)
	_, err := client.Detect(context.Background(), []string{"/frames/a.jpg"}, 0.2)
	if !errors.Is(err, detection.ErrMalformedOutput) || !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected malformed output error, got %v", err)
	}
}

func TestCommandClientTimeout(t *testing.T) {
	dir := t.TempDir()
	script := testsupport.WriteScript(t, dir, "detector", "#!/bin/sh\nexec sleep 5\n")
	client := detection.NewCommandClient(detection.CommandOptions{
		Command:    script,
		Timeout:    100 * time.Millisecond,
		Categories: defaultCats,
	}, nil)
	_, err := client.Detect(context.Background(), []string{"/frames/a.jpg"}, 0.2)
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestCommandClientEmptyBatch(t *testing.T) {
	client := detection.NewCommandClient(detection.CommandOptions{Command: "/nonexistent"}, nil)
	results, err := client.Detect(context.Background(), nil, 0.2)
	if err != nil || len(results) != 0 {
		t.Fatalf("empty batch should be a no-op, got %v %v", results, err)
	}
}
