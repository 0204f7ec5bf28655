package detection

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"trailcam/internal/logging"
	"trailcam/internal/services"
)

const (
	placeholderThreshold = "{threshold}"
	placeholderInput     = "{input}"
	placeholderOutput    = "{output}"
)

// CommandOptions configures the subprocess backend.
type CommandOptions struct {
	Command string
	// Args may contain {threshold} (the confidence floor), {input} (a file
	// listing the frame paths, one per line) and {output} (a file the
	// detector writes its JSON to). Without {input} the paths are written to
	// stdin; without {output} JSON is read from stdout.
	Args       []string
	Timeout    time.Duration
	Categories CategoryMap
}

// CommandClient runs an external batch detector once per pass.
type CommandClient struct {
	opts   CommandOptions
	logger *slog.Logger
}

// NewCommandClient constructs a subprocess detector client.
func NewCommandClient(opts CommandOptions, logger *slog.Logger) *CommandClient {
	return &CommandClient{opts: opts, logger: logging.NewComponentLogger(logger, "detector")}
}

// Detect implements Client.
func (c *CommandClient) Detect(ctx context.Context, paths []string, floor float64) ([]Result, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	work, err := os.MkdirTemp("", "trailcam-detect-*")
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "detect", "temp dir", "", err)
	}
	defer os.RemoveAll(work)

	listing := strings.Join(paths, "\n") + "\n"
	inputFile := filepath.Join(work, "frames.txt")
	outputFile := filepath.Join(work, "detections.json")
	usesInput, usesOutput := false, false

	args := make([]string, 0, len(c.opts.Args))
	for _, arg := range c.opts.Args {
		if strings.Contains(arg, placeholderInput) {
			usesInput = true
		}
		if strings.Contains(arg, placeholderOutput) {
			usesOutput = true
		}
		arg = strings.ReplaceAll(arg, placeholderThreshold, strconv.FormatFloat(floor, 'f', -1, 64))
		arg = strings.ReplaceAll(arg, placeholderInput, inputFile)
		arg = strings.ReplaceAll(arg, placeholderOutput, outputFile)
		args = append(args, arg)
	}
	if usesInput {
		if err := os.WriteFile(inputFile, []byte(listing), 0o600); err != nil {
			return nil, services.Wrap(services.ErrTransient, "detect", "write input list", "", err)
		}
	}

	cmd := exec.CommandContext(ctx, c.opts.Command, args...)
	if !usesInput {
		cmd.Stdin = strings.NewReader(listing)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(started)
	if runErr != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrTimeout, "detect", c.opts.Command, fmt.Sprintf("no result after %s", c.opts.Timeout), runErr)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, services.Wrap(services.ErrExternalTool, "detect", c.opts.Command, tail(stderr.String()), runErr)
	}

	payload := stdout.Bytes()
	if usesOutput {
		if payload, err = os.ReadFile(outputFile); err != nil {
			return nil, services.Wrap(services.ErrExternalTool, "detect", c.opts.Command, "detector wrote no output file", err)
		}
	}
	results, err := Decode(payload, paths, c.opts.Categories)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "detect", c.opts.Command, "decode output", err)
	}
	logBatch(ctx, c.logger, results, elapsed)
	return results, nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.LastIndexByte(s, '\n'); idx >= 0 {
		s = s[idx+1:]
	}
	if len(s) > 300 {
		s = s[len(s)-300:]
	}
	return s
}

func logBatch(ctx context.Context, logger *slog.Logger, results []Result, elapsed time.Duration) {
	dropped, failures, hits := 0, 0, 0
	for _, r := range results {
		dropped += r.Dropped
		hits += len(r.Detections)
		if r.Failure != "" {
			failures++
		}
	}
	logger = logging.WithContext(ctx, logger)
	logger.Debug("detector batch complete",
		logging.Int("frames", len(results)),
		logging.Int("detections", hits),
		logging.Duration("elapsed", elapsed),
	)
	if dropped > 0 || failures > 0 {
		logging.WarnWithContext(logger, "detector returned unusable entries", "detector_output_partial",
			logging.Int("dropped_detections", dropped),
			logging.Int("failed_frames", failures),
			logging.String(logging.FieldImpact, "affected frames count as having no detections"),
		)
	}
}
