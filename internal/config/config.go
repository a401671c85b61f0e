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

// Paths contains the archive destination and cardsync's own state directory.
type Paths struct {
	ArchiveDir string `toml:"archive_dir"`
	StateDir   string `toml:"state_dir"`
}

// Device controls how the mounted card is located.
type Device struct {
	MountPrefix  string   `toml:"mount_prefix"`
	NamePrefixes []string `toml:"name_prefixes"`
	LsblkBinary  string   `toml:"lsblk_binary"`
}

// Media describes which files on the card count as videos.
type Media struct {
	CameraDir  string   `toml:"camera_dir"`
	Extensions []string `toml:"extensions"`
}

// Copy selects how new files are transferred into the archive.
type Copy struct {
	Method   string `toml:"method"`
	CPBinary string `toml:"cp_binary"`
}

// GPIO identifies the button input line.
type GPIO struct {
	Chip           string `toml:"chip"`
	Line           int    `toml:"line"`
	DebounceMillis int    `toml:"debounce_ms"`
	PullUp         bool   `toml:"pull_up"`
}

// Watch configures the long-running watcher and its trigger sources.
type Watch struct {
	Button          bool     `toml:"button"`
	Udev            bool     `toml:"udev"`
	MountWatch      bool     `toml:"mount_watch"`
	CooldownSeconds int      `toml:"cooldown_seconds"`
	SettleSeconds   int      `toml:"settle_seconds"`
	ShutdownSeconds int      `toml:"shutdown_seconds"`
	SyncCommand     []string `toml:"sync_command"`
}

// History controls the audit database of sync runs.
type History struct {
	Enabled       bool   `toml:"enabled"`
	Path          string `toml:"path"`
	RetentionDays int    `toml:"retention_days"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	File          string `toml:"file"`
	RetentionDays int    `toml:"retention_days"`
	MaxSizeMB     int    `toml:"max_size_mb"`
	MaxBackups    int    `toml:"max_backups"`
}

// Config encapsulates all configuration values for cardsync.
//
// Configuration sections by subsystem:
//   - Paths: archive destination and state directory
//   - Device: mount prefix and block device names considered removable
//   - Media: camera folder name and video extension allow-list
//   - Copy: transfer method
//   - GPIO: button chip, line and debounce
//   - Watch: trigger sources, cooldown and the spawned sync command
//   - History: sync run audit database
//   - Logging: log format, level, file and rotation
type Config struct {
	Paths   Paths   `toml:"paths"`
	Device  Device  `toml:"device"`
	Media   Media   `toml:"media"`
	Copy    Copy    `toml:"copy"`
	GPIO    GPIO    `toml:"gpio"`
	Watch   Watch   `toml:"watch"`
	History History `toml:"history"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/cardsync/config.toml")
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
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strict.String())
			}
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

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("cardsync.toml")
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

// EnsureDirectories creates the state directory and the parents of the
// history database and log file. The archive directory is left to the sync
// pipeline so a missing archive mount is reported there, not at config load.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StateDir}
	if c.History.Enabled && c.History.Path != "" {
		dirs = append(dirs, filepath.Dir(c.History.Path))
	}
	if c.Logging.File != "" {
		dirs = append(dirs, filepath.Dir(c.Logging.File))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath is the advisory lock held for the duration of a sync run.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "sync.lock")
}

// Debounce returns the GPIO debounce period.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.GPIO.DebounceMillis) * time.Millisecond
}

// Cooldown returns the minimum spacing between spawned syncs.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Watch.CooldownSeconds) * time.Second
}

// Settle returns how long udev and mount triggers wait for the automounter.
func (c *Config) Settle() time.Duration {
	return time.Duration(c.Watch.SettleSeconds) * time.Second
}

// ShutdownGrace returns how long the watcher lets a running sync finish after
// asking it to stop.
func (c *Config) ShutdownGrace() time.Duration {
	return time.Duration(c.Watch.ShutdownSeconds) * time.Second
}

// HistoryRetention returns how long run records are kept. Zero keeps them forever.
func (c *Config) HistoryRetention() time.Duration {
	return time.Duration(c.History.RetentionDays) * 24 * time.Hour
}

// ExtensionSet returns the video extension allow-list as a lookup set. Matching
// is exact, so ".mp4" and ".MP4" are distinct entries.
func (c *Config) ExtensionSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.Media.Extensions))
	for _, ext := range c.Media.Extensions {
		set[ext] = struct{}{}
	}
	return set
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
		} else if len(pathValue) > 1 && pathValue[1] == '/' {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
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

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
