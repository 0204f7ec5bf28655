package sampler

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	_ "golang.org/x/image/webp"

	"trailcam/internal/config"
	"trailcam/internal/logging"
	"trailcam/internal/media"
	"trailcam/internal/media/ffprobe"
	"trailcam/internal/services"
)

// Options configures frame extraction.
type Options struct {
	FFmpegBinary  string
	FFprobeBinary string
	// Quality is ffmpeg's -q:v for extracted JPEG frames.
	Quality int
	// MaxSeconds bounds sampling to the start of each video when a request
	// does not set MaxFrames. Zero means the whole video.
	MaxSeconds int
	// TempDir is the parent for per-pass frame directories (os.TempDir when empty).
	TempDir string
}

// OptionsFromConfig derives sampler options from the sampling section.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		FFmpegBinary:  cfg.FFmpegBinary(),
		FFprobeBinary: cfg.FFprobeBinary(),
		Quality:       cfg.Sampling.FrameQuality,
		MaxSeconds:    cfg.Sampling.MaxDurationSeconds,
	}
}

// Request selects which frames a pass extracts.
type Request struct {
	// Stride samples 1-based positions Stride, 2*Stride, ...
	Stride int
	// MaxFrames caps the positions considered. Zero derives the cap from
	// Options.MaxSeconds and the probed frame rate.
	MaxFrames int
}

// Sampler extracts frames from media items.
type Sampler struct {
	opts   Options
	logger *slog.Logger
}

// New constructs a sampler.
func New(opts Options, logger *slog.Logger) *Sampler {
	if opts.FFmpegBinary == "" {
		opts.FFmpegBinary = "ffmpeg"
	}
	if opts.FFprobeBinary == "" {
		opts.FFprobeBinary = "ffprobe"
	}
	if opts.Quality <= 0 {
		opts.Quality = 2
	}
	return &Sampler{opts: opts, logger: logging.NewComponentLogger(logger, "sampler")}
}

// MaxFramesFor returns floor(fps * seconds), or 0 (unbounded) when either
// input is not positive.
func MaxFramesFor(fps float64, seconds int) int {
	if fps <= 0 || seconds <= 0 {
		return 0
	}
	return int(fps * float64(seconds))
}

// Positions returns the 1-based frame ordinals a pass samples: every stride-th
// frame up to limit. A non-positive limit yields no positions.
func Positions(limit, stride int) []int {
	if stride <= 0 || limit < stride {
		return nil
	}
	out := make([]int, 0, limit/stride)
	for n := stride; n <= limit; n += stride {
		out = append(out, n)
	}
	return out
}

// Sample extracts the frames selected by req. Decode and probe failures are
// logged and produce an empty pass; only context cancellation is returned as
// an error. Callers must Close the pass.
func (s *Sampler) Sample(ctx context.Context, item media.Item, req Request) (*Pass, error) {
	if req.Stride <= 0 {
		return nil, services.Wrap(services.ErrValidation, "sample", "request", fmt.Sprintf("stride must be positive, got %d", req.Stride), nil)
	}
	logger := logging.WithContext(ctx, s.logger).With(logging.String(logging.FieldItemPath, item.RelPath))

	switch item.Kind {
	case media.KindImage:
		return s.sampleImage(item, req, logger), nil
	case media.KindVideo:
		return s.sampleVideo(ctx, item, req, logger)
	default:
		return nil, services.Wrap(services.ErrValidation, "sample", "classify", fmt.Sprintf("unsupported media kind %q", item.Kind), nil)
	}
}

func (s *Sampler) sampleImage(item media.Item, req Request, logger *slog.Logger) *Pass {
	pass := &Pass{Item: item, Stride: req.Stride, FrameCount: 1}
	width, height, err := imageDimensions(item.Path)
	if err != nil {
		logging.WarnWithContext(logger, "image header unreadable; no frames sampled", "image_decode_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the file is a complete JPEG, PNG or WebP image"),
			logging.String(logging.FieldImpact, "item is marked failed"),
		)
		pass.Err = err
		return pass
	}
	pass.frames = []Frame{{Ordinal: 1, Path: item.Path, Width: width, Height: height}}
	return pass
}

func (s *Sampler) sampleVideo(ctx context.Context, item media.Item, req Request, logger *slog.Logger) (*Pass, error) {
	pass := &Pass{Item: item, Stride: req.Stride}

	probe, err := ffprobe.Inspect(ctx, s.opts.FFprobeBinary, item.Path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logging.WarnWithContext(logger, "video probe failed; no frames sampled", "video_probe_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run ffprobe on the file to inspect the container"),
			logging.String(logging.FieldImpact, "item is marked failed"),
		)
		pass.Err = services.Wrap(services.ErrExternalTool, "sample", "ffprobe", item.RelPath, err)
		return pass, nil
	}
	pass.FrameRate = probe.FrameRate()
	pass.FrameCount = probe.FrameCount()
	width, height := probe.Dimensions()

	maxFrames := req.MaxFrames
	if maxFrames <= 0 {
		maxFrames = MaxFramesFor(pass.FrameRate, s.opts.MaxSeconds)
	}
	limit := pass.FrameCount
	if maxFrames > 0 && (limit <= 0 || limit > maxFrames) {
		limit = maxFrames
	}
	if limit > 0 && limit < req.Stride {
		logger.Info("video shorter than stride; no frames sampled",
			logging.Int("frame_limit", limit),
			logging.Int("stride", req.Stride),
		)
		return pass, nil
	}

	dir, err := os.MkdirTemp(s.opts.TempDir, "trailcam-pass-*")
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "sample", "temp dir", "", err)
	}
	pass.dir = dir

	wantFrames := 0
	if limit > 0 {
		wantFrames = limit / req.Stride
	}
	if err := s.extract(ctx, item.Path, dir, req.Stride, wantFrames); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			_ = pass.Close()
			return nil, ctxErr
		}
		logging.WarnWithContext(logger, "frame extraction failed; no frames sampled", "video_decode_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the file may be truncated or use an unsupported codec"),
			logging.String(logging.FieldImpact, "item is marked failed"),
		)
		pass.Err = services.Wrap(services.ErrExternalTool, "sample", "ffmpeg", item.RelPath, err)
		_ = pass.Close()
		return pass, nil
	}

	frames, err := collectFrames(dir, req.Stride, width, height)
	if err != nil {
		_ = pass.Close()
		return nil, services.Wrap(services.ErrTransient, "sample", "collect frames", "", err)
	}
	if len(frames) > 0 {
		// ffmpeg applies rotation metadata, so the extracted size can differ
		// from the coded stream size ffprobe reports.
		if w, h, err := imageDimensions(frames[0].Path); err == nil && (w != width || h != height) {
			logger.Debug("extracted frame size differs from stream size",
				logging.Int("stream_width", width),
				logging.Int("stream_height", height),
				logging.Int("frame_width", w),
				logging.Int("frame_height", h),
			)
			for i := range frames {
				frames[i].Width, frames[i].Height = w, h
			}
		}
	}
	pass.frames = frames
	logger.Debug("frames extracted",
		logging.Int("stride", req.Stride),
		logging.Int("frames", len(frames)),
		logging.Int("frame_count", pass.FrameCount),
		logging.Float64("fps", pass.FrameRate),
	)
	return pass, nil
}

func (s *Sampler) extract(ctx context.Context, src, dir string, stride, maxOutputs int) error {
	args := []string{
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-i", src,
		"-vf", fmt.Sprintf(`select=not(mod(n+1\,%d))`, stride),
		"-fps_mode", "passthrough",
		"-q:v", strconv.Itoa(s.opts.Quality),
	}
	if maxOutputs > 0 {
		args = append(args, "-frames:v", strconv.Itoa(maxOutputs))
	}
	args = append(args, filepath.Join(dir, "frame_%06d.jpg"))

	cmd := exec.CommandContext(ctx, s.opts.FFmpegBinary, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if detail := strings.TrimSpace(stderr.String()); detail != "" {
			return fmt.Errorf("%w: %s", err, lastLine(detail))
		}
		return err
	}
	return nil
}

// collectFrames maps ffmpeg's sequential output names onto source ordinals.
func collectFrames(dir string, stride, width, height int) ([]Frame, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "frame_*.jpg"))
	if err != nil {
		return nil, err
	}
	// Zero-padded names sort in output order.
	slices.Sort(matches)

	frames := make([]Frame, 0, len(matches))
	staged := make([]string, 0, len(matches))
	for i, path := range matches {
		tmp := filepath.Join(dir, fmt.Sprintf("staged_%06d.jpg", i+1))
		if err := os.Rename(path, tmp); err != nil {
			return nil, err
		}
		staged = append(staged, tmp)
	}
	for i, tmp := range staged {
		ordinal := (i + 1) * stride
		final := filepath.Join(dir, fmt.Sprintf("frame_%06d.jpg", ordinal))
		if err := os.Rename(tmp, final); err != nil {
			return nil, err
		}
		frames = append(frames, Frame{
			Ordinal:   ordinal,
			Path:      final,
			Width:     width,
			Height:    height,
			Temporary: true,
		})
	}
	return frames, nil
}

func imageDimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, errors.New("decode image header: zero dimensions")
	}
	return cfg.Width, cfg.Height, nil
}

func lastLine(s string) string {
	if idx := strings.LastIndexByte(s, '\n'); idx >= 0 {
		return s[idx+1:]
	}
	return s
}
