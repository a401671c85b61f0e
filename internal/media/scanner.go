// Package media finds video files on a camera card and in the local archive.
package media

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"cardsync/internal/config"
	"cardsync/internal/logging"
)

// Scanner lists video files using the configured extension allow-list.
type Scanner struct {
	extensions map[string]struct{}
	cameraDir  string
	logger     *slog.Logger
}

// NewScanner builds a Scanner from the media section of cfg.
func NewScanner(cfg *config.Config, logger *slog.Logger) *Scanner {
	return &Scanner{
		extensions: cfg.ExtensionSet(),
		cameraDir:  cfg.Media.CameraDir,
		logger:     logging.NewComponentLogger(logger, "media"),
	}
}

// IsVideo reports whether name carries an allowed extension. The comparison
// is exact.
func (s *Scanner) IsVideo(name string) bool {
	_, ok := s.extensions[filepath.Ext(name)]
	return ok
}

// ListVideos returns the full paths of video files directly inside dir, in
// name order. An unreadable directory is logged and yields nothing.
func (s *Scanner) ListVideos(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logging.WarnWithContext(s.logger, "directory unreadable; no videos listed", "directory_read_failed",
			logging.String(logging.FieldPath, dir),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the directory exists and is readable"),
			logging.String(logging.FieldImpact, "videos in this directory are ignored"),
		)
		return nil
	}

	var videos []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !s.IsVideo(entry.Name()) {
			continue
		}
		videos = append(videos, filepath.Join(dir, entry.Name()))
	}
	return videos
}

// FindCameraVideos aggregates videos from every immediate subfolder of the
// camera folder (DCIM by default) under root. Files directly in the camera
// folder and deeper subfolders are not visited.
func (s *Scanner) FindCameraVideos(root string) []string {
	cameraPath := filepath.Join(root, s.cameraDir)
	info, err := os.Stat(cameraPath)
	if err != nil || !info.IsDir() {
		s.logger.Info(fmt.Sprintf("no %s folder found; not a camera card", s.cameraDir),
			logging.String(logging.FieldPath, cameraPath),
			logging.String(logging.FieldEventType, "camera_folder_missing"),
		)
		return nil
	}

	entries, err := os.ReadDir(cameraPath)
	if err != nil {
		logging.WarnWithContext(s.logger, "camera folder unreadable", "camera_folder_read_failed",
			logging.String(logging.FieldPath, cameraPath),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check card filesystem and mount permissions"),
			logging.String(logging.FieldImpact, "no videos copied from this card"),
		)
		return nil
	}

	var videos []string
	for _, entry := range entries {
		// DirEntry type comes from lstat, so symlinked folders are skipped.
		if !entry.IsDir() {
			continue
		}
		folder := filepath.Join(cameraPath, entry.Name())
		found := s.ListVideos(folder)
		s.logger.Debug("camera folder scanned",
			logging.String(logging.FieldPath, folder),
			logging.Int("videos", len(found)),
		)
		videos = append(videos, found...)
	}
	return videos
}
