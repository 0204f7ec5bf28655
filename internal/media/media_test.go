package media_test

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"trailcam/internal/media"
	"trailcam/internal/services"
)

func touch(t *testing.T, root, rel string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func defaultOptions(root string) media.EnumerateOptions {
	return media.EnumerateOptions{
		Recursive:       true,
		VideoExtensions: []string{".mp4", ".mov", ".avi"},
		ImageExtensions: []string{".jpg", ".png"},
		SkipPrefixes:    []string{"animal_", "human_", "bird_"},
		ExcludeDirs:     []string{filepath.Join(root, "detection_data")},
	}
}

func TestEnumerateClassifiesAndSorts(t *testing.T) {
	root := t.TempDir()
	for _, rel := range []string{
		"site-b/IMG_0002.JPG",
		"site-a/CLIP0001.MP4",
		"site-a/notes.txt",
		"site-a/animal_CLIP0000.MP4",
		"site-a/.DS_Store.jpg",
		".cache/hidden.mp4",
		"detection_data/site-a/animal_CLIP0000/best_frame_detections.jpg",
		"root.mov",
	} {
		touch(t, root, rel)
	}

	items, err := media.Enumerate(root, defaultOptions(root))
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	want := []struct {
		rel  string
		kind media.Kind
	}{
		{"root.mov", media.KindVideo},
		{"site-a/CLIP0001.MP4", media.KindVideo},
		{"site-b/IMG_0002.JPG", media.KindImage},
	}
	if len(items) != len(want) {
		t.Fatalf("got %d items: %+v", len(items), items)
	}
	for i, w := range want {
		if items[i].RelPath != w.rel || items[i].Kind != w.kind {
			t.Fatalf("item %d = %s (%s), want %s (%s)", i, items[i].RelPath, items[i].Kind, w.rel, w.kind)
		}
		if items[i].ID != int64(i+1) {
			t.Fatalf("item %d has ID %d", i, items[i].ID)
		}
		if !filepath.IsAbs(items[i].Path) {
			t.Fatalf("expected absolute path, got %s", items[i].Path)
		}
	}
}

func TestEnumerateNonRecursive(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "top.mp4")
	touch(t, root, "nested/deep.mp4")

	opts := defaultOptions(root)
	opts.Recursive = false
	items, err := media.Enumerate(root, opts)
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(items) != 1 || items[0].RelPath != "top.mp4" {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestEnumerateEmptyAndMissingRoot(t *testing.T) {
	root := t.TempDir()
	items, err := media.Enumerate(root, defaultOptions(root))
	if err != nil || len(items) != 0 {
		t.Fatalf("expected empty result, got %v %v", items, err)
	}

	_, err = media.Enumerate(filepath.Join(root, "missing"), defaultOptions(root))
	if !errors.Is(err, services.ErrValidation) || !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected validation error wrapping ErrNotExist, got %v", err)
	}

	file := filepath.Join(root, "clip.mp4")
	touch(t, root, "clip.mp4")
	if _, err := media.Enumerate(file, defaultOptions(root)); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for file root, got %v", err)
	}
}

func TestHasTag(t *testing.T) {
	prefixes := []string{"animal_", "bird_"}
	if !media.HasTag("/x/bird_IMG.jpg", prefixes) {
		t.Fatal("expected tag match")
	}
	if media.HasTag("/x/animal/IMG.jpg", prefixes) {
		t.Fatal("directory names must not count as tags")
	}
}
