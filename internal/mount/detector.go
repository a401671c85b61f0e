package mount

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"

	"cardsync/internal/config"
	"cardsync/internal/logging"
)

// ErrNotFound is returned when no block device is mounted under the prefix.
var ErrNotFound = errors.New("no card mounted")

// Executor abstracts command execution for the detector.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) ([]byte, error)
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return out, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return out, err
	}
	return out, nil
}

// Detector locates the mounted card.
type Detector struct {
	binary       string
	prefix       string
	namePrefixes []string
	exec         Executor
	logger       *slog.Logger
}

// NewDetector builds a detector from the device section of cfg.
func NewDetector(cfg *config.Config, logger *slog.Logger) *Detector {
	return newDetector(cfg, logger, commandExecutor{})
}

func newDetector(cfg *config.Config, logger *slog.Logger, executor Executor) *Detector {
	return &Detector{
		binary:       cfg.Device.LsblkBinary,
		prefix:       filepath.Clean(cfg.Device.MountPrefix),
		namePrefixes: append([]string(nil), cfg.Device.NamePrefixes...),
		exec:         executor,
		logger:       logging.NewComponentLogger(logger, "mount"),
	}
}

// Detect returns the first block device mounted under the prefix. It returns
// ErrNotFound when nothing matches, and a wrapped error when lsblk fails.
func (d *Detector) Detect(ctx context.Context) (BlockDevice, error) {
	out, err := d.exec.Run(ctx, d.binary, []string{"-P", "-o", "NAME,MOUNTPOINT"})
	if err != nil {
		return BlockDevice{}, fmt.Errorf("list block devices: %w", err)
	}

	devices := ParseLsblk(out)
	d.logger.Debug("block devices listed", logging.Int("count", len(devices)))
	for _, dev := range devices {
		if !d.nameMatches(dev.Name) {
			continue
		}
		if !d.underPrefix(dev.MountPoint) {
			continue
		}
		return dev, nil
	}
	return BlockDevice{}, ErrNotFound
}

func (d *Detector) nameMatches(name string) bool {
	for _, prefix := range d.namePrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// underPrefix matches whole path components, so /media/pi does not claim
// /media/pizza.
func (d *Detector) underPrefix(mountPoint string) bool {
	if mountPoint == "" {
		return false
	}
	mountPoint = filepath.Clean(mountPoint)
	return mountPoint == d.prefix || strings.HasPrefix(mountPoint, d.prefix+string(filepath.Separator))
}
