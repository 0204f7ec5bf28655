package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// WriteScript writes an executable shell script and returns its path.
func WriteScript(t testing.TB, dir, name, body string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("write script %s: %v", name, err)
	}
	return path
}

// FakeFFprobeScript prints a single video stream with the given geometry,
// frame rate (ffprobe rational like "30/1") and frame count.
func FakeFFprobeScript(width, height int, rate string, frames int) string {
	return fmt.Sprintf(`#!/bin/sh
cat <<'JSON'
{"streams":[{"index":0,"codec_type":"video","codec_name":"h264","width":%d,"height":%d,"r_frame_rate":%q,"avg_frame_rate":%q,"nb_frames":"%d"}],"format":{"format_name":"mov,mp4"}}
JSON
`, width, height, rate, rate, frames)
}

// FakeFFmpegScript writes as many placeholder frames as -frames:v requests
// into the output pattern's directory. When FAKE_FRAME_SOURCE names an image,
// each frame is a copy of it. When FFMPEG_ARGS_LOG is set, each invocation's
// arguments are appended to that file.
func FakeFFmpegScript() string {
	return `#!/bin/sh
if [ -n "$FFMPEG_ARGS_LOG" ]; then
  echo "$*" >> "$FFMPEG_ARGS_LOG"
fi
count=0
out=""
while [ $# -gt 0 ]; do
  case "$1" in
    -frames:v) count="$2"; shift 2 ;;
    *) out="$1"; shift ;;
  esac
done
dir=$(dirname "$out")
i=1
while [ "$i" -le "$count" ]; do
  name="$dir/$(printf 'frame_%06d.jpg' "$i")"
  if [ -n "$FAKE_FRAME_SOURCE" ]; then
    cp "$FAKE_FRAME_SOURCE" "$name"
  else
    printf 'frame' > "$name"
  fi
  i=$((i + 1))
done
`
}

// FailingScript exits non-zero after printing message to stderr.
func FailingScript(message string) string {
	return fmt.Sprintf("#!/bin/sh\necho %q >&2\nexit 1\n", message)
}
