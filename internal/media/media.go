package media

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"trailcam/internal/config"
	"trailcam/internal/services"
)

// Kind classifies a media file.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// Item is one media file discovered under the input root.
type Item struct {
	ID int64
	// Path is absolute and changes when the file is renamed.
	Path string
	// RelPath is relative to the input root with forward slashes. It is the
	// stable identity used for tracking and the ledger.
	RelPath string
	Kind    Kind
	Size    int64
	ModTime time.Time
}

// Name returns the file's base name.
func (i Item) Name() string {
	return filepath.Base(i.Path)
}

// EnumerateOptions controls which files Enumerate returns.
type EnumerateOptions struct {
	Recursive       bool
	VideoExtensions []string
	ImageExtensions []string
	// SkipPrefixes excludes files whose base name starts with any entry.
	SkipPrefixes []string
	// ExcludeDirs are absolute directories that are never descended into.
	ExcludeDirs []string
}

// OptionsFromConfig derives enumeration options from the scan and tag sections.
func OptionsFromConfig(cfg *config.Config) EnumerateOptions {
	opts := EnumerateOptions{
		Recursive:       cfg.Scan.Recursive,
		VideoExtensions: cfg.Scan.VideoExtensions,
		ImageExtensions: cfg.Scan.ImageExtensions,
		SkipPrefixes:    cfg.TagPrefixes(),
	}
	if cfg.Paths.OutputDir != "" {
		opts.ExcludeDirs = append(opts.ExcludeDirs, cfg.Paths.OutputDir)
	}
	return opts
}

// Enumerate lists the media files under root sorted by RelPath. IDs are
// assigned in that order starting at 1.
func Enumerate(root string, opts EnumerateOptions) ([]Item, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "enumerate", "resolve root", root, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "enumerate", "stat root", absRoot, err)
	}
	if !info.IsDir() {
		return nil, services.Wrap(services.ErrValidation, "enumerate", "stat root", absRoot+" is not a directory", fs.ErrNotExist)
	}

	classify := classifier(opts)
	excluded := make(map[string]struct{}, len(opts.ExcludeDirs))
	for _, dir := range opts.ExcludeDirs {
		if abs, err := filepath.Abs(dir); err == nil {
			excluded[abs] = struct{}{}
		}
	}

	var items []Item
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == absRoot {
				return walkErr
			}
			// Unreadable subtrees are skipped; the rest of the tree still counts.
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if path == absRoot {
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if strings.HasPrefix(name, ".") || !opts.Recursive {
				return fs.SkipDir
			}
			if _, skip := excluded[path]; skip {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || !d.Type().IsRegular() {
			return nil
		}
		if hasAnyPrefix(name, opts.SkipPrefixes) {
			return nil
		}
		kind, ok := classify(name)
		if !ok {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return err
		}
		items = append(items, Item{
			Path:    path,
			RelPath: filepath.ToSlash(rel),
			Kind:    kind,
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enumerate %s: %w", absRoot, err)
	}

	slices.SortFunc(items, func(a, b Item) int { return strings.Compare(a.RelPath, b.RelPath) })
	for i := range items {
		items[i].ID = int64(i + 1)
	}
	return items, nil
}

// HasTag reports whether name already carries one of the prefixes.
func HasTag(name string, prefixes []string) bool {
	return hasAnyPrefix(filepath.Base(name), prefixes)
}

func classifier(opts EnumerateOptions) func(string) (Kind, bool) {
	kinds := make(map[string]Kind, len(opts.VideoExtensions)+len(opts.ImageExtensions))
	for _, ext := range opts.ImageExtensions {
		kinds[normalizeExt(ext)] = KindImage
	}
	for _, ext := range opts.VideoExtensions {
		kinds[normalizeExt(ext)] = KindVideo
	}
	return func(name string) (Kind, bool) {
		kind, ok := kinds[strings.ToLower(filepath.Ext(name))]
		return kind, ok
	}
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func hasAnyPrefix(name string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if prefix != "" && strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
