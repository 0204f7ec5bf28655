package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeScan()
	c.normalizeSampling()
	c.normalizeDetection()
	c.normalizeOutput()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.InputDir, err = expandPath(strings.TrimSpace(c.Paths.InputDir)); err != nil {
		return fmt.Errorf("paths.input_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = derivedOutputDir(c.Paths.InputDir)
	}
	if c.Paths.OutputDir, err = expandPath(strings.TrimSpace(c.Paths.OutputDir)); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.TrackingFile) == "" {
		c.Paths.TrackingFile = derivedTrackingFile(c.Paths.OutputDir)
	}
	if c.Paths.TrackingFile, err = expandPath(strings.TrimSpace(c.Paths.TrackingFile)); err != nil {
		return fmt.Errorf("paths.tracking_file: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.StateDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeScan() {
	c.Scan.VideoExtensions = normalizeExtensions(c.Scan.VideoExtensions, defaultVideoExtensions)
	c.Scan.ImageExtensions = normalizeExtensions(c.Scan.ImageExtensions, defaultImageExtensions)
	prefixes := c.Scan.ExtraSkipPrefixes[:0]
	for _, prefix := range c.Scan.ExtraSkipPrefixes {
		if prefix = strings.TrimSpace(prefix); prefix != "" {
			prefixes = append(prefixes, prefix)
		}
	}
	c.Scan.ExtraSkipPrefixes = prefixes
	if c.Scan.MinFrames < 0 {
		c.Scan.MinFrames = 0
	}
}

func (c *Config) normalizeSampling() {
	c.Sampling.FFmpegBinary = strings.TrimSpace(c.Sampling.FFmpegBinary)
	c.Sampling.FFprobeBinary = strings.TrimSpace(c.Sampling.FFprobeBinary)
	if c.Sampling.FrameQuality == 0 {
		c.Sampling.FrameQuality = defaultFrameQuality
	}
	if c.Sampling.MaxIterations < 0 {
		c.Sampling.MaxIterations = 0
	}
}

func (c *Config) normalizeDetection() {
	c.Detection.Backend = strings.ToLower(strings.TrimSpace(c.Detection.Backend))
	if c.Detection.Backend == "" {
		c.Detection.Backend = defaultDetectionBackend
	}
	c.Detection.Command = strings.TrimSpace(c.Detection.Command)
	c.Detection.URL = strings.TrimRight(strings.TrimSpace(c.Detection.URL), "/")
	c.Detection.Model = strings.TrimSpace(c.Detection.Model)
	c.Detection.Token = strings.TrimSpace(c.Detection.Token)
	if c.Detection.Token == "" {
		if value, ok := os.LookupEnv(detectorTokenEnv); ok {
			c.Detection.Token = strings.TrimSpace(value)
		}
	}
	if c.Detection.Backend == detectionBackendOllama {
		if c.Detection.URL == "" {
			c.Detection.URL = defaultOllamaURL
		}
		if c.Detection.Model == "" {
			c.Detection.Model = defaultOllamaModel
		}
	}
	if c.Detection.TimeoutSeconds <= 0 {
		c.Detection.TimeoutSeconds = defaultDetectionTimeout
	}
	c.Detection.PrimaryCategories = normalizeCodes(c.Detection.PrimaryCategories, defaultPrimaryCategories)
	c.Detection.SecondaryCategories = normalizeCodes(c.Detection.SecondaryCategories, nil)
}

func (c *Config) normalizeOutput() {
	c.Output.ImageFormat = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c.Output.ImageFormat), "."))
	switch c.Output.ImageFormat {
	case "", "jpeg", imageFormatJPEG:
		c.Output.ImageFormat = imageFormatJPEG
	}
	if c.Output.JPEGQuality == 0 {
		c.Output.JPEGQuality = defaultJPEGQuality
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv(ntfyTopicEnv); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.MinItems < 0 {
		c.Notifications.MinItems = 0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func normalizeExtensions(values, fallback []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		ext := strings.ToLower(strings.TrimSpace(value))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		out = append(out, ext)
	}
	if len(out) == 0 {
		return append([]string(nil), fallback...)
	}
	return out
}

func normalizeCodes(values, fallback []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		code := strings.TrimSpace(value)
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	if len(out) == 0 && fallback != nil {
		return append([]string(nil), fallback...)
	}
	return out
}
