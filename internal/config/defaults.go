package config

const (
	defaultConfigPath          = "~/.config/trailcam/config.toml"
	defaultStateDir            = "~/.local/share/trailcam"
	defaultOutputDirName       = "detection_data"
	defaultTrackingFileName    = "video_confidence_tracking.json"
	defaultRecursive           = true
	defaultMinFrames           = 10
	defaultFrameStride         = 33
	defaultMinStride           = 3
	defaultStrideDivisor       = 3
	defaultMaxDurationSeconds  = 5
	defaultFrameQuality        = 2
	defaultDetectionBackend    = "command"
	defaultConfidence          = 0.20
	defaultDetectionTimeout    = 600
	defaultOllamaURL           = "http://127.0.0.1:11434"
	defaultOllamaModel         = "llava:13b"
	defaultImageFormat         = "jpg"
	defaultJPEGQuality         = 90
	defaultPrimaryTag          = "animal_"
	defaultSecondaryTag        = "human_"
	defaultSmallHighTag        = "bird_"
	defaultNotifyTimeout       = 10
	defaultNotifyMinItems      = 1
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	detectionBackendCommand    = "command"
	detectionBackendHTTP       = "http"
	detectionBackendOllama     = "ollama"
	imageFormatJPEG            = "jpg"
	imageFormatWebP            = "webp"
	maxFrameQuality            = 31
	maxJPEGQuality             = 100
	detectorTokenEnv           = "TRAILCAM_DETECTOR_TOKEN"
	ntfyTopicEnv               = "TRAILCAM_NTFY_TOPIC"
	defaultDetectionCommandArg = "{threshold}"
)

var (
	defaultVideoExtensions     = []string{".mp4", ".mov", ".avi", ".mkv", ".m4v", ".mts"}
	defaultImageExtensions     = []string{".jpg", ".jpeg", ".png", ".webp"}
	defaultPrimaryCategories   = []string{"1"}
	defaultSecondaryCategories = []string{"2", "3"}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
		},
		Scan: Scan{
			Recursive:       defaultRecursive,
			VideoExtensions: append([]string(nil), defaultVideoExtensions...),
			ImageExtensions: append([]string(nil), defaultImageExtensions...),
			MinFrames:       defaultMinFrames,
		},
		Sampling: Sampling{
			FrameStride:        defaultFrameStride,
			MinStride:          defaultMinStride,
			StrideDivisor:      defaultStrideDivisor,
			MaxDurationSeconds: defaultMaxDurationSeconds,
			FrameQuality:       defaultFrameQuality,
		},
		Detection: Detection{
			Backend:             defaultDetectionBackend,
			ConfidenceThreshold: defaultConfidence,
			Args:                []string{defaultDetectionCommandArg},
			TimeoutSeconds:      defaultDetectionTimeout,
			PrimaryCategories:   append([]string(nil), defaultPrimaryCategories...),
			SecondaryCategories: append([]string(nil), defaultSecondaryCategories...),
		},
		Output: Output{
			RenameOnResolution: true,
			CreateArtifacts:    true,
			SkipTracked:        true,
			ImageFormat:        defaultImageFormat,
			JPEGQuality:        defaultJPEGQuality,
		},
		Tags: Tags{
			Primary:   defaultPrimaryTag,
			Secondary: defaultSecondaryTag,
			SmallHigh: defaultSmallHighTag,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			MinItems:       defaultNotifyMinItems,
			Run:            true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
