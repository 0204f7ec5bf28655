package detection

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"trailcam/internal/config"
)

// Category is the bucket a detection falls into after code mapping.
type Category string

const (
	CategoryPrimary   Category = "primary"
	CategorySecondary Category = "secondary"
	CategoryOther     Category = "other"
)

// Box is a normalized bounding box: top-left corner plus width and height,
// each in [0,1] relative to the frame.
type Box struct {
	X, Y, W, H float64
}

// Detection is one validated detector hit.
type Detection struct {
	Category    Category
	RawCategory string
	Confidence  float64
	Box         Box
}

// Result holds the detections for one input path.
type Result struct {
	Path       string
	Detections []Detection
	// MaxConfidence is the detector's reported max_detection_conf, or the
	// highest decoded confidence when the detector omits it.
	MaxConfidence float64
	// Failure carries a per-image failure reported by the detector.
	Failure string
	// Dropped counts malformed detections discarded during decoding.
	Dropped int
}

// Client runs batch inference. Implementations return exactly one Result per
// input path, in input order.
type Client interface {
	Detect(ctx context.Context, paths []string, floor float64) ([]Result, error)
}

// CategoryMap maps detector category codes to buckets.
type CategoryMap struct {
	Primary   []string
	Secondary []string
}

// CategoriesFromConfig builds the code mapping from the detection section.
func CategoriesFromConfig(cfg *config.Config) CategoryMap {
	return CategoryMap{Primary: cfg.Detection.PrimaryCategories, Secondary: cfg.Detection.SecondaryCategories}
}

// Classify maps a raw code. Unknown codes are CategoryOther.
func (m CategoryMap) Classify(code string) Category {
	code = strings.TrimSpace(code)
	for _, c := range m.Primary {
		if c == code {
			return CategoryPrimary
		}
	}
	for _, c := range m.Secondary {
		if c == code {
			return CategorySecondary
		}
	}
	return CategoryOther
}

// New builds the client selected by detection.backend.
func New(cfg *config.Config, logger *slog.Logger) (Client, error) {
	if err := cfg.RequireDetector(); err != nil {
		return nil, err
	}
	cats := CategoriesFromConfig(cfg)
	switch cfg.Detection.Backend {
	case "command":
		return NewCommandClient(CommandOptions{
			Command:    cfg.Detection.Command,
			Args:       cfg.Detection.Args,
			Timeout:    cfg.DetectionTimeout(),
			Categories: cats,
		}, logger), nil
	case "http":
		return NewHTTPClient(HTTPOptions{
			URL:        cfg.Detection.URL,
			Token:      cfg.Detection.Token,
			Timeout:    cfg.DetectionTimeout(),
			Categories: cats,
		}, logger), nil
	case "ollama":
		client, err := NewOllamaClient(OllamaOptions{
			URL:        cfg.Detection.URL,
			Model:      cfg.Detection.Model,
			Timeout:    cfg.DetectionTimeout(),
			Categories: cats,
		}, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("detection.backend: unsupported value %q", cfg.Detection.Backend)
	}
}
