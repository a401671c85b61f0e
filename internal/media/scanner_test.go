package media

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"cardsync/internal/config"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func newTestScanner() *Scanner {
	cfg := config.Default()
	return NewScanner(&cfg, nil)
}

func TestListVideosFiltersExtensionsExactly(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"GX010001.MP4", "GX010002.mp4", "GX010003.Mp4", "GX010001.THM", "notes.txt"} {
		touch(t, filepath.Join(dir, name))
	}
	if err := os.Mkdir(filepath.Join(dir, "folder.mp4"), 0o755); err != nil {
		t.Fatal(err)
	}

	got := newTestScanner().ListVideos(dir)
	want := []string{
		filepath.Join(dir, "GX010001.MP4"),
		filepath.Join(dir, "GX010002.mp4"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected videos:\n got %v\nwant %v", got, want)
	}
}

func TestListVideosMissingDirectory(t *testing.T) {
	got := newTestScanner().ListVideos(filepath.Join(t.TempDir(), "missing"))
	if len(got) != 0 {
		t.Fatalf("expected no videos, got %v", got)
	}
}

func TestFindCameraVideosOneLevelOnly(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "DCIM", "100GOPRO", "GX010001.MP4"))
	touch(t, filepath.Join(root, "DCIM", "100GOPRO", "GX010001.LRV"))
	touch(t, filepath.Join(root, "DCIM", "101GOPRO", "GX020001.MP4"))
	touch(t, filepath.Join(root, "DCIM", "101GOPRO", "nested", "GX030001.MP4"))
	touch(t, filepath.Join(root, "DCIM", "loose.MP4"))
	touch(t, filepath.Join(root, "MISC", "other.MP4"))

	got := newTestScanner().FindCameraVideos(root)
	want := []string{
		filepath.Join(root, "DCIM", "100GOPRO", "GX010001.MP4"),
		filepath.Join(root, "DCIM", "101GOPRO", "GX020001.MP4"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected videos:\n got %v\nwant %v", got, want)
	}
}

func TestFindCameraVideosWithoutCameraFolder(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "video.MP4"))
	if got := newTestScanner().FindCameraVideos(root); len(got) != 0 {
		t.Fatalf("expected no videos without DCIM, got %v", got)
	}
}

func TestFindCameraVideosCustomFolder(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "PRIVATE", "CLIPS", "a.mov"))
	cfg := config.Default()
	cfg.Media.CameraDir = "PRIVATE"
	cfg.Media.Extensions = []string{".mov"}
	got := NewScanner(&cfg, nil).FindCameraVideos(root)
	if len(got) != 1 || filepath.Base(got[0]) != "a.mov" {
		t.Fatalf("unexpected videos: %v", got)
	}
}
