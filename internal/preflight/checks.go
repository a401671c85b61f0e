package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"cardsync/internal/config"
	"cardsync/internal/deps"
	"cardsync/internal/mount"
)

// MinFreeBytes is the free space below which the archive check warns.
const MinFreeBytes = 1 << 30

// CardDetector finds the mounted card.
type CardDetector interface {
	Detect(ctx context.Context) (mount.BlockDevice, error)
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDirectoryReadable verifies that the directory exists and can be listed.
func CheckDirectoryReadable(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (readable)", path)}
}

// CheckArchive verifies the archive folder is writable. A missing folder
// passes when its nearest existing parent is writable, since the first sync
// creates it.
func CheckArchive(path string) Result {
	const name = "Archive directory"
	if _, err := os.Stat(path); err == nil {
		return CheckDirectoryAccess(name, path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}

	parent := existingParent(path)
	if err := unix.Access(parent, unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: missing and %s is not writable)", path, parent)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (created on first sync)", path)}
}

// CheckFreeSpace reports free space on the filesystem holding path and fails
// below minFree.
func CheckFreeSpace(name, path string, minFree uint64) Result {
	target := existingParent(path)
	var stat unix.Statfs_t
	if err := unix.Statfs(target, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", target, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	detail := fmt.Sprintf("%s free on %s", humanize.Bytes(free), target)
	if free < minFree {
		return Result{Name: name, Detail: fmt.Sprintf("%s (below %s)", detail, humanize.Bytes(minFree))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckGPIOChip verifies the GPIO character device exists and can be opened.
func CheckGPIOChip(chip string) Result {
	const name = "GPIO chip"
	path := chip
	if !filepath.IsAbs(path) {
		path = filepath.Join("/dev", chip)
	}
	info, err := os.Stat(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if info.Mode()&os.ModeCharDevice == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not a character device)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v; add the user to the gpio group)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckCard reports whether a card is mounted right now. Absence is not a
// failure of the setup, so the result is optional.
func CheckCard(ctx context.Context, detector CardDetector) Result {
	const name = "SD card"
	dev, err := detector.Detect(ctx)
	switch {
	case errors.Is(err, mount.ErrNotFound):
		return Result{Name: name, Optional: true, Detail: "not inserted"}
	case err != nil:
		return Result{Name: name, Detail: fmt.Sprintf("detection failed: %v", err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s mounted at %s", dev.Name, dev.MountPoint)}
}

// CheckSystemDeps evaluates the external binaries the configuration needs.
func CheckSystemDeps(cfg *config.Config) []Result {
	requirements := []deps.Requirement{
		{
			Name:        "lsblk",
			Command:     cfg.Device.LsblkBinary,
			Description: "Required to find the mounted card",
		},
	}
	if cfg.Copy.Method == config.CopyMethodCP {
		requirements = append(requirements, deps.Requirement{
			Name:        "cp",
			Command:     cfg.Copy.CPBinary,
			Description: "Required for copy.method = \"cp\"",
		})
	}
	if len(cfg.Watch.SyncCommand) > 0 {
		requirements = append(requirements, deps.Requirement{
			Name:        "sync command",
			Command:     cfg.Watch.SyncCommand[0],
			Description: "Spawned by the watcher on each trigger",
		})
	}

	statuses := deps.CheckBinaries(requirements)
	results := make([]Result, 0, len(statuses))
	for _, status := range statuses {
		result := Result{Name: status.Name, Passed: status.Available, Optional: status.Optional}
		if status.Available {
			result.Detail = status.Path
		} else {
			result.Detail = status.Detail
		}
		results = append(results, result)
	}
	return results
}

// existingParent walks up from path to the nearest directory that exists.
func existingParent(path string) string {
	current := filepath.Clean(path)
	for {
		if _, err := os.Stat(current); err == nil {
			return current
		}
		parent := filepath.Dir(current)
		if parent == current {
			return current
		}
		current = parent
	}
}
