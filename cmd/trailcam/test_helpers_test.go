package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"trailcam/internal/config"
	"trailcam/internal/testsupport"
)

// animalDetector reports one 0.5 animal detection for every frame on stdin.
const animalDetector = `#!/bin/sh
printf '{"images":['
sep=""
while IFS= read -r line; do
  [ -z "$line" ] && continue
  printf '%s{"file":"%s","detections":[{"category":"1","conf":0.5,"bbox":[0.1,0.1,0.2,0.2]}]}' "$sep" "$line"
  sep=","
done
printf ']}'
`

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	frame := filepath.Join(base, "frame.jpg")
	testsupport.WriteJPEG(t, frame, 640, 360)
	t.Setenv("FAKE_FRAME_SOURCE", frame)
	detector := testsupport.WriteScript(t, filepath.Join(base, "bin"), "detector", animalDetector)

	configPath := filepath.Join(homeDir, ".config", "trailcam", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg, detector)

	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func (e *cliTestEnv) media(t *testing.T, rel string) string {
	t.Helper()
	path := filepath.Join(e.cfg.Paths.InputDir, filepath.FromSlash(rel))
	testsupport.WriteFile(t, path, 2048)
	return path
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config, detector string) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
input_dir = %q
state_dir = %q

[sampling]
ffmpeg_binary = %q
ffprobe_binary = %q

[detection]
backend = "command"
command = %q
args = []
timeout_seconds = 30

[logging]
format = "json"
level = "info"
`,
		cfg.Paths.InputDir,
		cfg.Paths.StateDir,
		cfg.Sampling.FFmpegBinary,
		cfg.Sampling.FFprobeBinary,
		detector,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func requireNotContains(t *testing.T, output, substr string) {
	t.Helper()
	if strings.Contains(output, substr) {
		t.Fatalf("expected %q not to contain %q", output, substr)
	}
}
