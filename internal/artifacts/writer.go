package artifacts

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"trailcam/internal/config"
	"trailcam/internal/detection"
	"trailcam/internal/evidence"
	"trailcam/internal/fileutil"
	"trailcam/internal/logging"
	"trailcam/internal/media"
	"trailcam/internal/services"
)

const (
	bestFrameName = "best_frame_detections"
	bestCropName  = "cropped_image"
	cropsDirName  = "crops"
)

// ErrNoEvidence is returned by Write when the evidence is empty.
var ErrNoEvidence = errors.New("no evidence to render")

// Options configures a Writer.
type Options struct {
	OutputDir string
	// Format is "jpg" or "webp".
	Format      string
	JPEGQuality int
	Enabled     bool
	Tags        config.Tags
	// TagPrefixes are every prefix that marks a file as processed.
	TagPrefixes []string
}

// OptionsFromConfig reads the output and tags sections.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		OutputDir:   cfg.Paths.OutputDir,
		Format:      cfg.Output.ImageFormat,
		JPEGQuality: cfg.Output.JPEGQuality,
		Enabled:     cfg.Output.CreateArtifacts,
		Tags:        cfg.Tags,
		TagPrefixes: cfg.TagPrefixes(),
	}
}

// Writer renders evidence images and applies outcome tags to source files.
type Writer struct {
	opts   Options
	logger *slog.Logger
}

// New constructs a Writer.
func New(opts Options, logger *slog.Logger) *Writer {
	if opts.Format == "" {
		opts.Format = "jpg"
	}
	if opts.JPEGQuality <= 0 {
		opts.JPEGQuality = 90
	}
	return &Writer{opts: opts, logger: logging.NewComponentLogger(logger, "artifacts")}
}

// Result lists what Write produced.
type Result struct {
	Tag   string
	Dir   string
	Files []string
	// Disabled is set when artifact creation is turned off. Tag is still
	// chosen.
	Disabled bool
}

// Tag picks the outcome prefix for evidence: the secondary tag for the
// secondary bucket, else the small-high tag when flagged, else the primary
// tag.
func (w *Writer) Tag(ev evidence.Evidence) string {
	return ChooseTag(ev, w.opts.Tags)
}

// ChooseTag is Writer.Tag without a writer.
func ChooseTag(ev evidence.Evidence, tags config.Tags) string {
	switch {
	case ev.Bucket == evidence.BucketSecondary:
		return tags.Secondary
	case ev.SmallAndHigh:
		return tags.SmallHigh
	default:
		return tags.Primary
	}
}

// ItemDir returns <output>/<rel dir>/<tag><stem>.
func (w *Writer) ItemDir(item media.Item, tag string) string {
	rel := filepath.FromSlash(item.RelPath)
	stem := strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel))
	return filepath.Join(w.opts.OutputDir, filepath.Dir(rel), tag+stem)
}

// Write renders the evidence for item.
func (w *Writer) Write(ctx context.Context, item media.Item, ev evidence.Evidence) (Result, error) {
	if !ev.Found() {
		return Result{}, ErrNoEvidence
	}
	res := Result{Tag: w.Tag(ev)}
	if !w.opts.Enabled {
		res.Disabled = true
		return res, nil
	}
	res.Dir = w.ItemDir(item, res.Tag)
	if err := os.MkdirAll(filepath.Join(res.Dir, cropsDirName), 0o755); err != nil {
		return res, services.Wrap(services.ErrTransient, "artifacts", "create output dir", res.Dir, err)
	}

	for _, pair := range ev.Pairs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		files, err := w.writePair(res.Dir, ev.Mode, pair)
		res.Files = append(res.Files, files...)
		if err != nil {
			return res, err
		}
	}
	logging.WithContext(ctx, w.logger).Debug("artifacts written",
		logging.String("dir", res.Dir),
		logging.Int("files", len(res.Files)),
	)
	return res, nil
}

func (w *Writer) writePair(dir string, mode evidence.Mode, pair evidence.Pair) ([]string, error) {
	src, err := imaging.Open(pair.Frame.Path)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "artifacts", "decode frame", pair.Frame.Path, err)
	}
	ext := w.ext()

	annotated := imaging.Clone(src)
	stroke := strokeWidth(annotated.Bounds())
	for _, det := range pair.Detections {
		r := boxRect(det.Box, annotated.Bounds())
		c := categoryColor(det.Category)
		drawBox(annotated, r, c, stroke)
		drawLabel(annotated, r, fmt.Sprintf("%.2f", det.Confidence), c)
	}

	var files []string
	name := fmt.Sprintf("frame_%d_detections%s", pair.Frame.Ordinal, ext)
	if mode == evidence.ModeBest {
		name = bestFrameName + ext
	}
	annotatedPath := filepath.Join(dir, name)
	if err := w.save(annotated, annotatedPath); err != nil {
		return files, err
	}
	files = append(files, annotatedPath)

	for idx, det := range pair.Detections {
		crop, ok := cropBox(src, det.Box)
		if !ok {
			w.logger.Debug("skipping empty crop",
				logging.String("frame", pair.Frame.Path),
				logging.Int("detection", idx),
			)
			continue
		}
		cropPath := filepath.Join(dir, cropsDirName, cropName(pair.Frame.Ordinal, idx, det, ext))
		if err := w.save(crop, cropPath); err != nil {
			return files, err
		}
		files = append(files, cropPath)
		if mode == evidence.ModeBest && idx == pair.BestIndex {
			bestPath := filepath.Join(dir, bestCropName+ext)
			if err := w.save(crop, bestPath); err != nil {
				return files, err
			}
			files = append(files, bestPath)
		}
	}
	return files, nil
}

func cropName(ordinal, idx int, det detection.Detection, ext string) string {
	return fmt.Sprintf("frame_%d_det%d_cat%s_conf%.2f%s", ordinal, idx, sanitizeCode(det.RawCategory), det.Confidence, ext)
}

func sanitizeCode(code string) string {
	code = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		}
		return '_'
	}, code)
	if code == "" {
		return "unknown"
	}
	return code
}

func cropBox(src image.Image, box detection.Box) (image.Image, bool) {
	r := boxRect(box, src.Bounds())
	if r.Empty() {
		return nil, false
	}
	return imaging.Crop(src, r), true
}

func (w *Writer) ext() string {
	if strings.EqualFold(w.opts.Format, "webp") {
		return ".webp"
	}
	return ".jpg"
}

func (w *Writer) save(img image.Image, path string) error {
	var err error
	if w.ext() == ".webp" {
		err = saveWebP(img, path, w.opts.JPEGQuality)
	} else {
		err = imaging.Save(img, path, imaging.JPEGQuality(w.opts.JPEGQuality))
	}
	if err != nil {
		return services.Wrap(services.ErrTransient, "artifacts", "save image", path, err)
	}
	return nil
}

func saveWebP(img image.Image, path string, quality int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := webp.Encode(f, img, &webp.Options{Quality: float32(quality)}); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// RenameOutcome classifies a Rename.
type RenameOutcome string

const (
	Renamed       RenameOutcome = "renamed"
	Conflict      RenameOutcome = "conflict"
	AlreadyTagged RenameOutcome = "already_tagged"
)

// RenameResult reports a Rename.
type RenameResult struct {
	Outcome RenameOutcome
	From    string
	To      string
}

// Rename prefixes tag to the item's base name. An existing target is a
// Conflict and leaves the source untouched; it is not an error.
func (w *Writer) Rename(item media.Item, tag string) (RenameResult, error) {
	dir, base := filepath.Split(item.Path)
	res := RenameResult{From: item.Path, To: item.Path}
	if strings.TrimSpace(tag) == "" {
		return res, fmt.Errorf("rename %s: empty tag", item.Path)
	}
	if media.HasTag(base, w.opts.TagPrefixes) || strings.HasPrefix(base, tag) {
		res.Outcome = AlreadyTagged
		return res, nil
	}
	res.To = filepath.Join(dir, tag+base)
	err := fileutil.RenameNoClobber(item.Path, res.To)
	switch {
	case err == nil:
		res.Outcome = Renamed
		return res, nil
	case errors.Is(err, fs.ErrExist):
		res.Outcome = Conflict
		logging.WarnWithContext(w.logger, "rename target exists; skipping", "rename_conflict",
			logging.String(logging.FieldItemPath, item.RelPath),
			logging.String("target", res.To),
			logging.String(logging.FieldErrorHint, "remove or rename the existing tagged file"),
			logging.String(logging.FieldImpact, "source file left untagged"),
		)
		return res, nil
	case errors.Is(err, fs.ErrNotExist):
		return res, services.Wrap(services.ErrNotFound, "rename", item.RelPath, "source vanished", err)
	default:
		return res, services.Wrap(services.ErrTransient, "rename", item.RelPath, "", err)
	}
}
