package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeDevice(); err != nil {
		return err
	}
	c.normalizeMedia()
	c.normalizeCopy()
	c.normalizeGPIO()
	c.normalizeWatch()
	if err := c.normalizeHistory(); err != nil {
		return err
	}
	return c.normalizeLogging()
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.ArchiveDir) == "" {
		c.Paths.ArchiveDir = defaultArchiveDir
	}
	if c.Paths.ArchiveDir, err = expandPath(strings.TrimSpace(c.Paths.ArchiveDir)); err != nil {
		return fmt.Errorf("paths.archive_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDevice() error {
	prefix := strings.TrimSpace(c.Device.MountPrefix)
	if prefix == "" {
		prefix = defaultMountPrefix
	}
	expanded, err := expandPath(prefix)
	if err != nil {
		return fmt.Errorf("device.mount_prefix: %w", err)
	}
	c.Device.MountPrefix = expanded
	c.Device.NamePrefixes = trimUnique(c.Device.NamePrefixes)
	if len(c.Device.NamePrefixes) == 0 {
		c.Device.NamePrefixes = defaultNamePrefixes()
	}
	c.Device.LsblkBinary = strings.TrimSpace(c.Device.LsblkBinary)
	if c.Device.LsblkBinary == "" {
		c.Device.LsblkBinary = defaultLsblkBinary
	}
	return nil
}

func (c *Config) normalizeMedia() {
	c.Media.CameraDir = strings.Trim(strings.TrimSpace(c.Media.CameraDir), "/")
	if c.Media.CameraDir == "" {
		c.Media.CameraDir = defaultCameraDir
	}
	// Case is preserved: the allow-list is matched exactly.
	exts := make([]string, 0, len(c.Media.Extensions))
	for _, ext := range c.Media.Extensions {
		ext = strings.TrimSpace(ext)
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	exts = trimUnique(exts)
	if len(exts) == 0 {
		exts = defaultExtensions()
	}
	c.Media.Extensions = exts
}

func (c *Config) normalizeCopy() {
	c.Copy.Method = strings.ToLower(strings.TrimSpace(c.Copy.Method))
	if c.Copy.Method == "" {
		c.Copy.Method = defaultCopyMethod
	}
	c.Copy.CPBinary = strings.TrimSpace(c.Copy.CPBinary)
	if c.Copy.CPBinary == "" {
		c.Copy.CPBinary = defaultCPBinary
	}
}

func (c *Config) normalizeGPIO() {
	c.GPIO.Chip = strings.TrimSpace(c.GPIO.Chip)
	if c.GPIO.Chip == "" {
		c.GPIO.Chip = defaultGPIOChip
	}
}

func (c *Config) normalizeWatch() {
	command := make([]string, 0, len(c.Watch.SyncCommand))
	for _, arg := range c.Watch.SyncCommand {
		if trimmed := strings.TrimSpace(arg); trimmed != "" {
			command = append(command, trimmed)
		}
	}
	c.Watch.SyncCommand = command
	if c.Watch.ShutdownSeconds <= 0 {
		c.Watch.ShutdownSeconds = defaultSyncShutdownSeconds
	}
}

func (c *Config) normalizeHistory() error {
	path := strings.TrimSpace(c.History.Path)
	if path == "" {
		path = defaultHistoryFile
	}
	if !filepath.IsAbs(path) && !strings.HasPrefix(path, "~") {
		path = filepath.Join(c.Paths.StateDir, path)
	}
	expanded, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("history.path: %w", err)
	}
	c.History.Path = expanded
	return nil
}

func (c *Config) normalizeLogging() error {
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
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = defaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups < 0 {
		c.Logging.MaxBackups = 0
	}

	file := strings.TrimSpace(c.Logging.File)
	switch file {
	case "-":
		// Explicitly disabled; console output only.
		c.Logging.File = ""
		return nil
	case "":
		file = defaultLogFile
	}
	if !filepath.IsAbs(file) && !strings.HasPrefix(file, "~") {
		file = filepath.Join(c.Paths.StateDir, file)
	}
	expanded, err := expandPath(file)
	if err != nil {
		return fmt.Errorf("logging.file: %w", err)
	}
	c.Logging.File = expanded
	return nil
}

func trimUnique(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
