package logging_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"trailcam/internal/config"
	"trailcam/internal/logging"
	"trailcam/internal/services"
)

func newFileLogger(t *testing.T, format, level string) (string, func() string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "logs", "test.log")
	logger, err := logging.New(logging.Options{Format: format, Level: level, OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	read := func() string {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read log file: %v", err)
		}
		return string(data)
	}
	logging.NewComponentLogger(logger, "sampler").Info("pass extracted",
		logging.Int("frames", 9),
		logging.String("item_path", "cam 1/clip.mp4"),
	)
	logger.Debug("debug line")
	return path, read
}

func TestConsoleFormat(t *testing.T) {
	_, read := newFileLogger(t, "console", "info")
	out := read()
	if !strings.Contains(out, "INFO  [sampler] pass extracted") {
		t.Fatalf("missing component prefix: %q", out)
	}
	if !strings.Contains(out, `frames=9`) || !strings.Contains(out, `item_path="cam 1/clip.mp4"`) {
		t.Fatalf("missing attributes: %q", out)
	}
	if strings.Contains(out, "debug line") {
		t.Fatalf("debug line emitted at info level: %q", out)
	}
	if strings.Contains(out, ".go:") {
		t.Fatalf("unexpected source location at info level: %q", out)
	}
}

func TestConsoleFormatDebugIncludesSource(t *testing.T) {
	_, read := newFileLogger(t, "console", "debug")
	out := read()
	if !strings.Contains(out, "debug line") {
		t.Fatalf("expected debug line: %q", out)
	}
	if !strings.Contains(out, ".go:") {
		t.Fatalf("expected source location at debug level: %q", out)
	}
}

func TestJSONFormat(t *testing.T) {
	_, read := newFileLogger(t, "json", "info")
	line := strings.TrimSpace(strings.Split(read(), "\n")[0])
	var payload map[string]any
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		t.Fatalf("invalid json %q: %v", line, err)
	}
	if payload["level"] != "info" || payload["msg"] != "pass extracted" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts key: %v", payload)
	}
	if payload["component"] != "sampler" {
		t.Fatalf("missing component: %v", payload)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := config.Default()
	cfg.Paths.StateDir = t.TempDir()
	cfg.Logging.Format = "json"
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("run started")

	data, err := os.ReadFile(cfg.LogFilePath())
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"run started"`) {
		t.Fatalf("log file missing record: %s", data)
	}
}

func TestWithContextAddsRunAndItem(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctx.log")
	base, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := services.WithRunID(context.Background(), "3f2a")
	ctx = services.WithItemID(ctx, 7)
	ctx = services.WithStage(ctx, "detect")

	logging.WithContext(ctx, base).Info("detector returned")
	logging.WarnWithContext(base, "flush failed", "tracking_flush_failed", logging.Error(errors.New("disk full")))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	out := string(data)
	for _, want := range []string{`"run_id":"3f2a"`, `"item_id":7`, `"stage":"detect"`, `"event_type":"tracking_flush_failed"`, `"impact":"run continues"`, `"error_hint"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
}
