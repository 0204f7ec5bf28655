package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateSampling(); err != nil {
		return err
	}
	if err := c.validateDetection(); err != nil {
		return err
	}
	if err := c.validateOutput(); err != nil {
		return err
	}
	if err := c.validateTags(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

// RequireInput reports an error when no media root is configured. Commands
// that walk media call it; config-only commands do not.
func (c *Config) RequireInput() error {
	if strings.TrimSpace(c.Paths.InputDir) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("paths.input_dir is required. Pass a directory argument or edit %s (create with 'trailcam config init')", defaultPath)
	}
	return nil
}

// RequireDetector reports an error when the selected detection backend is
// missing the settings it needs to run.
func (c *Config) RequireDetector() error {
	switch c.Detection.Backend {
	case detectionBackendCommand:
		if c.Detection.Command == "" {
			return errors.New("detection.command must be set when detection.backend is \"command\"")
		}
	case detectionBackendHTTP:
		if c.Detection.URL == "" {
			return errors.New("detection.url must be set when detection.backend is \"http\"")
		}
	case detectionBackendOllama:
		if c.Detection.Model == "" {
			return errors.New("detection.model must be set when detection.backend is \"ollama\"")
		}
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.TrackingFile != "" && c.Paths.InputDir != "" {
		if filepath.Clean(c.Paths.TrackingFile) == filepath.Clean(c.Paths.InputDir) {
			return errors.New("paths.tracking_file must not be the input directory")
		}
	}
	if c.Paths.OutputDir != "" && c.Paths.OutputDir == c.Paths.InputDir {
		return errors.New("paths.output_dir must differ from paths.input_dir")
	}
	return nil
}

func (c *Config) validateSampling() error {
	if c.Sampling.FrameStride <= 0 {
		return errors.New("sampling.frame_stride must be positive")
	}
	if c.Sampling.MinStride <= 0 {
		return errors.New("sampling.min_stride must be positive")
	}
	if c.Sampling.StrideDivisor < 2 {
		return errors.New("sampling.stride_divisor must be at least 2")
	}
	if c.Sampling.MaxDurationSeconds < 0 {
		return errors.New("sampling.max_duration_seconds must be zero (unbounded) or positive")
	}
	if c.Sampling.FrameQuality < 1 || c.Sampling.FrameQuality > maxFrameQuality {
		return fmt.Errorf("sampling.frame_quality must be between 1 and %d", maxFrameQuality)
	}
	return nil
}

func (c *Config) validateDetection() error {
	if c.Detection.ConfidenceThreshold < 0 || c.Detection.ConfidenceThreshold > 1 {
		return errors.New("detection.confidence_threshold must be between 0 and 1")
	}
	switch c.Detection.Backend {
	case detectionBackendCommand, detectionBackendHTTP, detectionBackendOllama:
	default:
		return fmt.Errorf("detection.backend: unsupported value %q (want command, http or ollama)", c.Detection.Backend)
	}
	if len(c.Detection.PrimaryCategories) == 0 {
		return errors.New("detection.primary_categories must include at least one category code")
	}
	primary := make(map[string]struct{}, len(c.Detection.PrimaryCategories))
	for _, code := range c.Detection.PrimaryCategories {
		primary[code] = struct{}{}
	}
	for _, code := range c.Detection.SecondaryCategories {
		if _, ok := primary[code]; ok {
			return fmt.Errorf("detection category %q cannot be both primary and secondary", code)
		}
	}
	return nil
}

func (c *Config) validateOutput() error {
	switch c.Output.ImageFormat {
	case imageFormatJPEG, imageFormatWebP:
	default:
		return fmt.Errorf("output.image_format: unsupported value %q (want jpg or webp)", c.Output.ImageFormat)
	}
	if c.Output.JPEGQuality < 1 || c.Output.JPEGQuality > maxJPEGQuality {
		return fmt.Errorf("output.jpeg_quality must be between 1 and %d", maxJPEGQuality)
	}
	return nil
}

func (c *Config) validateTags() error {
	tags := map[string]string{
		"tags.primary":    c.Tags.Primary,
		"tags.secondary":  c.Tags.Secondary,
		"tags.small_high": c.Tags.SmallHigh,
	}
	seen := make(map[string]string, len(tags))
	for _, key := range []string{"tags.primary", "tags.secondary", "tags.small_high"} {
		value := tags[key]
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s must be set", key)
		}
		if strings.ContainsAny(value, `/\`) {
			return fmt.Errorf("%s must not contain path separators", key)
		}
		if other, ok := seen[value]; ok {
			return fmt.Errorf("%s duplicates %s (%q)", key, other, value)
		}
		seen[value] = key
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic != "" && c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}
