package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and file locations.
type Paths struct {
	InputDir     string `toml:"input_dir"`
	OutputDir    string `toml:"output_dir"`    // Default: <input_dir>/detection_data
	TrackingFile string `toml:"tracking_file"` // Default: <output_dir>/video_confidence_tracking.json
	StateDir     string `toml:"state_dir"`
	LogDir       string `toml:"log_dir"`
}

// Scan controls media discovery.
type Scan struct {
	Recursive         bool     `toml:"recursive"`
	VideoExtensions   []string `toml:"video_extensions"`
	ImageExtensions   []string `toml:"image_extensions"`
	ExtraSkipPrefixes []string `toml:"extra_skip_prefixes"`
	MinFrames         int      `toml:"min_frames"`
}

// Sampling controls frame extraction and adaptive resampling.
type Sampling struct {
	FrameStride        int    `toml:"frame_stride"`
	MinStride          int    `toml:"min_stride"`
	StrideDivisor      int    `toml:"stride_divisor"`
	MaxIterations      int    `toml:"max_iterations"`       // 0 derives the bound from stride, floor and divisor
	MaxDurationSeconds int    `toml:"max_duration_seconds"` // 0 means unbounded
	FFmpegBinary       string `toml:"ffmpeg_binary"`
	FFprobeBinary      string `toml:"ffprobe_binary"`
	FrameQuality       int    `toml:"frame_quality"` // ffmpeg -q:v, 2 (best) to 31
}

// Detection configures the external detector.
type Detection struct {
	Backend             string   `toml:"backend"`
	ConfidenceThreshold float64  `toml:"confidence_threshold"`
	Command             string   `toml:"command"`
	Args                []string `toml:"args"`
	URL                 string   `toml:"url"`
	Token               string   `toml:"token"`
	Model               string   `toml:"model"`
	TimeoutSeconds      int      `toml:"timeout_seconds"`
	PrimaryCategories   []string `toml:"primary_categories"`
	SecondaryCategories []string `toml:"secondary_categories"`
	IncludeSecondary    bool     `toml:"include_secondary"`
}

// Output controls artifacts and source file handling.
type Output struct {
	CaptureAll          bool   `toml:"capture_all"`
	DeleteOnNoDetection bool   `toml:"delete_on_no_detection"`
	RenameOnResolution  bool   `toml:"rename_on_resolution"`
	CreateArtifacts     bool   `toml:"create_artifacts"`
	SkipTracked         bool   `toml:"skip_tracked"`
	ImageFormat         string `toml:"image_format"`
	JPEGQuality         int    `toml:"jpeg_quality"`
}

// Tags holds the filename prefixes applied on resolution.
type Tags struct {
	Primary   string `toml:"primary"`
	Secondary string `toml:"secondary"`
	SmallHigh string `toml:"small_high"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	MinItems       int    `toml:"min_items"`
	Run            bool   `toml:"run"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for trailcam.
//
// Configuration sections by subsystem:
//   - Paths: input tree, artifact output, tracking file, state and logs
//   - Scan: media discovery rules
//   - Sampling: frame stride, resampling floor and ffmpeg binaries
//   - Detection: detector backend and category mapping
//   - Output: artifact and rename/delete policy
//   - Tags: outcome filename prefixes
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Scan          Scan          `toml:"scan"`
	Sampling      Sampling      `toml:"sampling"`
	Detection     Detection     `toml:"detection"`
	Output        Output        `toml:"output"`
	Tags          Tags          `toml:"tags"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// Finalize re-applies normalization and validation after callers mutate a
// loaded config (CLI flag overrides). Derived paths are recomputed only when
// they were derived in the first place.
func (c *Config) Finalize() error {
	if err := c.normalize(); err != nil {
		return err
	}
	return c.Validate()
}

// SetInputDir points the config at a new media root and drops any output
// locations that were derived from the previous root.
func (c *Config) SetInputDir(dir string) error {
	expanded, err := expandPath(dir)
	if err != nil {
		return fmt.Errorf("paths.input_dir: %w", err)
	}
	if c.Paths.OutputDir == derivedOutputDir(c.Paths.InputDir) {
		if c.Paths.TrackingFile == derivedTrackingFile(c.Paths.OutputDir) {
			c.Paths.TrackingFile = ""
		}
		c.Paths.OutputDir = ""
	}
	c.Paths.InputDir = expanded
	return c.Finalize()
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("trailcam.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories. The output
// directory is created only when an input directory is configured, since it
// defaults to a child of it.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.InputDir) != "" && strings.TrimSpace(c.Paths.OutputDir) != "" {
		if _, err := os.Stat(c.Paths.InputDir); err == nil {
			if err := os.MkdirAll(c.Paths.OutputDir, 0o755); err != nil {
				return fmt.Errorf("create output directory %q: %w", c.Paths.OutputDir, err)
			}
		}
	}
	return nil
}

// LedgerPath returns the SQLite run ledger location.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "trailcam.db")
}

// LogFilePath returns the persistent log file location.
func (c *Config) LogFilePath() string {
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return ""
	}
	return filepath.Join(c.Paths.LogDir, "trailcam.log")
}

// FFmpegBinary returns the ffmpeg executable used for frame extraction.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Sampling.FFmpegBinary); bin != "" {
		return bin
	}
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable used for media inspection.
func (c *Config) FFprobeBinary() string {
	if bin := strings.TrimSpace(c.Sampling.FFprobeBinary); bin != "" {
		return bin
	}
	return "ffprobe"
}

// DetectionTimeout bounds a single detector call.
func (c *Config) DetectionTimeout() time.Duration {
	return time.Duration(c.Detection.TimeoutSeconds) * time.Second
}

// NotifyTimeout bounds a single ntfy request.
func (c *Config) NotifyTimeout() time.Duration {
	if c.Notifications.RequestTimeout <= 0 {
		return defaultNotifyTimeout * time.Second
	}
	return time.Duration(c.Notifications.RequestTimeout) * time.Second
}

// TagPrefixes returns the outcome tags followed by any extra completion prefixes.
func (c *Config) TagPrefixes() []string {
	prefixes := []string{c.Tags.Primary, c.Tags.Secondary, c.Tags.SmallHigh}
	prefixes = append(prefixes, c.Scan.ExtraSkipPrefixes...)
	out := make([]string, 0, len(prefixes))
	seen := make(map[string]struct{}, len(prefixes))
	for _, prefix := range prefixes {
		if prefix == "" {
			continue
		}
		if _, ok := seen[prefix]; ok {
			continue
		}
		seen[prefix] = struct{}{}
		out = append(out, prefix)
	}
	return out
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func derivedOutputDir(inputDir string) string {
	if inputDir == "" {
		return ""
	}
	return filepath.Join(inputDir, defaultOutputDirName)
}

func derivedTrackingFile(outputDir string) string {
	if outputDir == "" {
		return ""
	}
	return filepath.Join(outputDir, defaultTrackingFileName)
}
