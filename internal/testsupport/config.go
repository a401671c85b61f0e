// Package testsupport builds isolated configurations and fixtures for tests.
package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cardsync/internal/config"
	"cardsync/internal/mount"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The mount prefix is BaseDir/media, file logging is off and the history
// database lives under the state directory.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.ArchiveDir = filepath.Join(base, "videos")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Device.MountPrefix = filepath.Join(base, "media")
	cfgVal.History.Path = filepath.Join(base, "state", "history.db")
	cfgVal.Logging.File = ""
	cfgVal.Copy.Method = config.CopyMethodNative

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithCopyMethod overrides copy.method.
func WithCopyMethod(method string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Copy.Method = method
	}
}

// WithHistoryDisabled turns off the history store.
func WithHistoryDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.History.Enabled = false
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, lsblk and cp are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"lsblk", "cp"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		for _, name := range names {
			WriteExecutable(b.t, binDir, name, "exit 0")
		}
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// WithLsblkDevices points device.lsblk_binary at a stub that reports the
// given devices in `lsblk -P` form.
func WithLsblkDevices(devices ...mount.BlockDevice) ConfigOption {
	return func(b *configBuilder) {
		var script strings.Builder
		for _, dev := range devices {
			fmt.Fprintf(&script, "printf '%%s\\n' 'NAME=\"%s\" MOUNTPOINT=\"%s\"'\n", dev.Name, dev.MountPoint)
		}
		b.cfg.Device.LsblkBinary = WriteExecutable(b.t, filepath.Join(b.baseDir, "bin"), "lsblk", script.String())
	}
}

// WithMountedCard makes the lsblk stub report device mounted at
// CardDir(cfg, label), behind a system partition that must be ignored.
func WithMountedCard(device, label string) ConfigOption {
	return func(b *configBuilder) {
		WithLsblkDevices(
			mount.BlockDevice{Name: "mmcblk0p2", MountPoint: "/"},
			mount.BlockDevice{Name: device, MountPoint: CardDir(b.cfg, label)},
		)(b)
	}
}

// WriteExecutable writes a /bin/sh script with body into dir/name and
// returns its path.
func WriteExecutable(t testing.TB, dir, name, body string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(dir, name)
	if err := os.WriteFile(target, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return target
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}

// CardDir returns a card mount point under the config's mount prefix.
func CardDir(cfg *config.Config, label string) string {
	return filepath.Join(cfg.Device.MountPrefix, label)
}
