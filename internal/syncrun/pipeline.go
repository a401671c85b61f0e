package syncrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"

	"cardsync/internal/config"
	"cardsync/internal/history"
	"cardsync/internal/logging"
	"cardsync/internal/media"
	"cardsync/internal/mount"
	"cardsync/internal/transfer"
)

// Detector finds the mounted card.
type Detector interface {
	Detect(ctx context.Context) (mount.BlockDevice, error)
}

// Scanner lists video files on the card and in the archive.
type Scanner interface {
	FindCameraVideos(root string) []string
	ListVideos(dir string) []string
}

// Recorder persists the audit trail of a run.
type Recorder interface {
	BeginRun(ctx context.Context, trigger string) (string, error)
	RecordFile(ctx context.Context, runID string, file history.File) error
	FinishRun(ctx context.Context, runID string, totals history.RunTotals) error
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// Options control a single run.
type Options struct {
	// Trigger names what started the run: button, udev, mount or manual.
	Trigger string
	// DryRun lists the files that would be copied without copying them.
	DryRun bool
}

// Summary describes how a run ended.
type Summary struct {
	RunID          string
	Trigger        string
	MountPoint     string
	Found          int
	New            int
	Copied         int
	Failed         int
	Skipped        int
	Bytes          int64
	Pending        []string
	Outcome        history.Outcome
	AlreadyRunning bool
	Elapsed        time.Duration
}

// Pipeline wires detection, discovery, diff and copy together.
type Pipeline struct {
	cfg      *config.Config
	logger   *slog.Logger
	detector Detector
	scanner  Scanner
	copier   transfer.Copier
	recorder Recorder
	lockPath string
}

// Option customises the Pipeline.
type Option func(*Pipeline)

// WithDetector overrides card detection (primarily for tests).
func WithDetector(detector Detector) Option {
	return func(p *Pipeline) {
		if detector != nil {
			p.detector = detector
		}
	}
}

// WithScanner overrides video discovery.
func WithScanner(scanner Scanner) Option {
	return func(p *Pipeline) {
		if scanner != nil {
			p.scanner = scanner
		}
	}
}

// WithCopier overrides the copy method selected by configuration.
func WithCopier(copier transfer.Copier) Option {
	return func(p *Pipeline) {
		if copier != nil {
			p.copier = copier
		}
	}
}

// WithRecorder sets the history recorder. Without one, runs are not recorded.
func WithRecorder(recorder Recorder) Option {
	return func(p *Pipeline) {
		p.recorder = recorder
	}
}

// New constructs a Pipeline from configuration.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	p := &Pipeline{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "sync"),
		detector: mount.NewDetector(cfg, logger),
		scanner:  media.NewScanner(cfg, logger),
		copier:   transfer.NewCopier(cfg),
		lockPath: cfg.LockPath(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one sync. It returns an error only when the run could not be
// attempted at all.
func (p *Pipeline) Run(ctx context.Context, opts Options) (Summary, error) {
	start := time.Now()
	summary := Summary{Trigger: opts.Trigger}
	if summary.Trigger == "" {
		summary.Trigger = "manual"
	}

	if err := os.MkdirAll(p.cfg.Paths.StateDir, 0o755); err != nil {
		return summary, fmt.Errorf("create state directory: %w", err)
	}
	lock := flock.New(p.lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return summary, fmt.Errorf("acquire sync lock: %w", err)
	}
	if !locked {
		p.logger.Info("sync already running; exiting",
			logging.String("lock", p.lockPath),
			logging.String(logging.FieldTrigger, summary.Trigger),
		)
		summary.AlreadyRunning = true
		return summary, nil
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			p.logger.Warn("failed to release sync lock", logging.Error(err))
		}
	}()

	logger := p.logger.With(logging.String(logging.FieldTrigger, summary.Trigger))
	if p.recorder != nil && !opts.DryRun {
		runID, err := p.recorder.BeginRun(ctx, summary.Trigger)
		if err != nil {
			logging.WarnWithContext(logger, "history unavailable; run not recorded", "history_begin_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "this run is missing from cardsync history"),
			)
		} else {
			summary.RunID = runID
			logger = logger.With(logging.String(logging.FieldRunID, runID))
		}
	}

	message := p.execute(ctx, logger, opts, &summary)
	summary.Elapsed = time.Since(start)
	p.finish(ctx, logger, &summary, message)
	return summary, nil
}

// execute runs the pipeline steps, filling summary. It returns a short note
// for the history record when the run ended on an error.
func (p *Pipeline) execute(ctx context.Context, logger *slog.Logger, opts Options, summary *Summary) string {
	logger.Info("checking for SD card")
	device, err := p.detector.Detect(ctx)
	if err != nil {
		summary.Outcome = history.OutcomeNoDevice
		if !errors.Is(err, mount.ErrNotFound) {
			logging.WarnWithContext(logger, "card detection failed", "card_detect_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that lsblk is installed and runnable"),
				logging.String(logging.FieldImpact, "no videos copied this run"),
			)
			logger.Info("no SD card detected, exiting")
			return err.Error()
		}
		logger.Info("no SD card detected, exiting")
		return ""
	}
	summary.MountPoint = device.MountPoint
	logger.Info("SD card detected",
		logging.String("device", device.Name),
		logging.String("mount_point", device.MountPoint),
	)

	logger.Info("scanning for camera videos")
	videos := p.scanner.FindCameraVideos(device.MountPoint)
	summary.Found = len(videos)
	if len(videos) == 0 {
		logger.Info("no camera videos found")
		summary.Outcome = history.OutcomeNoVideos
		return ""
	}
	logger.Info(fmt.Sprintf("found %d videos", len(videos)), logging.Int("count", len(videos)))

	logger.Info("checking for new videos")
	archive := p.cfg.Paths.ArchiveDir
	var archived []string
	if opts.DryRun {
		if _, statErr := os.Stat(archive); statErr == nil {
			archived = p.scanner.ListVideos(archive)
		}
	} else {
		if err := os.MkdirAll(archive, 0o755); err != nil {
			logging.ErrorWithContext(logger, "archive folder unavailable", "archive_create_failed",
				logging.String(logging.FieldPath, archive),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check paths.archive_dir exists and is writable"),
			)
			summary.Outcome = history.OutcomeFailed
			return err.Error()
		}
		archived = p.scanner.ListVideos(archive)
	}

	newFiles := transfer.NewFiles(videos, archived)
	summary.New = len(newFiles)
	if len(newFiles) == 0 {
		logger.Info("no new videos to copy", logging.Int("archived", len(archived)))
		summary.Outcome = history.OutcomeUpToDate
		return ""
	}

	if opts.DryRun {
		for _, file := range newFiles {
			logger.Info("would copy video", logging.String("source", file), logging.String("destination", archive))
		}
		summary.Pending = newFiles
		summary.Outcome = history.OutcomeDryRun
		return ""
	}

	logger.Info(fmt.Sprintf("copying %d new videos", len(newFiles)),
		logging.Int("count", len(newFiles)),
		logging.String("destination", archive),
	)
	transfer.CopyAll(ctx, p.copier, newFiles, archive, logger, func(res transfer.Result) {
		switch {
		case res.Skipped():
			summary.Skipped++
			return
		case res.OK():
			summary.Copied++
			summary.Bytes += res.Bytes
		default:
			summary.Failed++
		}
		p.recordFile(ctx, logger, summary.RunID, res)
	})

	switch {
	case ctx.Err() != nil:
		summary.Outcome = history.OutcomeCanceled
		return "interrupted by shutdown"
	case summary.Failed == 0:
		summary.Outcome = history.OutcomeCompleted
	case summary.Copied == 0:
		summary.Outcome = history.OutcomeFailed
	default:
		summary.Outcome = history.OutcomePartial
	}
	return ""
}

func (p *Pipeline) recordFile(ctx context.Context, logger *slog.Logger, runID string, res transfer.Result) {
	if p.recorder == nil || runID == "" {
		return
	}
	file := history.File{
		Source:      res.Source,
		Destination: res.Destination,
		Bytes:       res.Bytes,
		Duration:    res.Duration,
	}
	if res.Err != nil {
		file.Error = res.Err.Error()
	}
	if err := p.recorder.RecordFile(context.WithoutCancel(ctx), runID, file); err != nil {
		logger.Warn("failed to record copy in history", logging.Error(err))
	}
}

func (p *Pipeline) finish(ctx context.Context, logger *slog.Logger, summary *Summary, message string) {
	switch summary.Outcome {
	case history.OutcomeCompleted, history.OutcomePartial, history.OutcomeFailed, history.OutcomeCanceled:
		logger.Info("sync complete",
			logging.Int("copied", summary.Copied),
			logging.Int("failed", summary.Failed),
			logging.Int("skipped", summary.Skipped),
			logging.String("size", humanize.Bytes(uint64(summary.Bytes))),
			logging.Duration("elapsed", summary.Elapsed),
			logging.String("outcome", string(summary.Outcome)),
			logging.String(logging.FieldEventType, "sync_complete"),
		)
	}

	if p.recorder == nil || summary.RunID == "" {
		return
	}
	// Record even when shutdown canceled the run.
	recordCtx := context.WithoutCancel(ctx)
	err := p.recorder.FinishRun(recordCtx, summary.RunID, history.RunTotals{
		MountPoint: summary.MountPoint,
		Found:      summary.Found,
		New:        summary.New,
		Copied:     summary.Copied,
		Failed:     summary.Failed,
		Bytes:      summary.Bytes,
		Outcome:    summary.Outcome,
		Message:    message,
	})
	if err != nil {
		logger.Warn("failed to finish history record", logging.Error(err))
	}

	if retention := p.cfg.HistoryRetention(); retention > 0 {
		removed, err := p.recorder.Prune(recordCtx, time.Now().Add(-retention))
		if err != nil {
			logger.Warn("failed to prune history", logging.Error(err))
		} else if removed > 0 {
			logger.Debug("history pruned", logging.Int64("runs", removed))
		}
	}
}
