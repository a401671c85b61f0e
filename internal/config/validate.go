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
	if err := c.validateMedia(); err != nil {
		return err
	}
	if err := c.validateCopy(); err != nil {
		return err
	}
	if err := c.validateGPIO(); err != nil {
		return err
	}
	if err := c.validateWatch(); err != nil {
		return err
	}
	if c.History.RetentionDays < 0 {
		return fmt.Errorf("history.retention_days must be non-negative, got %d", c.History.RetentionDays)
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.ArchiveDir) == "" {
		return errors.New("paths.archive_dir must be set")
	}
	if !filepath.IsAbs(c.Device.MountPrefix) {
		return fmt.Errorf("device.mount_prefix must be absolute, got %q", c.Device.MountPrefix)
	}
	archive := filepath.Clean(c.Paths.ArchiveDir)
	prefix := filepath.Clean(c.Device.MountPrefix)
	if archive == prefix || strings.HasPrefix(archive, prefix+string(filepath.Separator)) {
		return fmt.Errorf("paths.archive_dir %q must not live under device.mount_prefix %q", archive, prefix)
	}
	return nil
}

func (c *Config) validateMedia() error {
	if len(c.Media.Extensions) == 0 {
		return errors.New("media.extensions must list at least one extension")
	}
	for _, ext := range c.Media.Extensions {
		if ext == "." || strings.ContainsAny(ext, `/\`) {
			return fmt.Errorf("media.extensions: invalid extension %q", ext)
		}
	}
	if strings.ContainsAny(c.Media.CameraDir, `/\`) {
		return fmt.Errorf("media.camera_dir must be a single folder name, got %q", c.Media.CameraDir)
	}
	return nil
}

func (c *Config) validateCopy() error {
	switch c.Copy.Method {
	case CopyMethodCP, CopyMethodNative, CopyMethodVerified:
		return nil
	default:
		return fmt.Errorf("copy.method must be one of %q, %q or %q, got %q",
			CopyMethodCP, CopyMethodNative, CopyMethodVerified, c.Copy.Method)
	}
}

func (c *Config) validateGPIO() error {
	if c.GPIO.Line < 0 {
		return fmt.Errorf("gpio.line must be non-negative, got %d", c.GPIO.Line)
	}
	if c.GPIO.DebounceMillis < 0 {
		return fmt.Errorf("gpio.debounce_ms must be non-negative, got %d", c.GPIO.DebounceMillis)
	}
	return nil
}

func (c *Config) validateWatch() error {
	if c.Watch.CooldownSeconds < 0 {
		return fmt.Errorf("watch.cooldown_seconds must be non-negative, got %d", c.Watch.CooldownSeconds)
	}
	if c.Watch.SettleSeconds < 0 {
		return fmt.Errorf("watch.settle_seconds must be non-negative, got %d", c.Watch.SettleSeconds)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
}
