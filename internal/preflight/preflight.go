package preflight

import (
	"context"

	"cardsync/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	// Optional results are informational; failing them does not make the
	// setup unusable.
	Optional bool
	Detail   string
}

// RunAll executes every applicable check. detector may be nil to skip the
// card check.
func RunAll(ctx context.Context, cfg *config.Config, detector CardDetector) []Result {
	if cfg == nil {
		return nil
	}

	results := CheckSystemDeps(cfg)
	results = append(results, CheckArchive(cfg.Paths.ArchiveDir))
	results = append(results, CheckFreeSpace("Archive free space", cfg.Paths.ArchiveDir, MinFreeBytes))
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))

	if cfg.Watch.Button {
		results = append(results, CheckGPIOChip(cfg.GPIO.Chip))
	}
	if cfg.Watch.MountWatch {
		results = append(results, CheckDirectoryReadable("Mount prefix", cfg.Device.MountPrefix))
	}
	if detector != nil {
		results = append(results, CheckCard(ctx, detector))
	}
	return results
}

// Failed reports whether any required check failed.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed && !r.Optional {
			return true
		}
	}
	return false
}
