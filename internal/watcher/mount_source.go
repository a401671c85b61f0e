package watcher

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"cardsync/internal/config"
	"cardsync/internal/logging"
)

// mountSource watches the mount prefix for new folders, which is how the
// desktop automounter exposes a freshly inserted card.
type mountSource struct {
	prefix string
	settle time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
}

func newMountSource(cfg *config.Config, logger *slog.Logger) *mountSource {
	return &mountSource{
		prefix: cfg.Device.MountPrefix,
		settle: cfg.Settle(),
		logger: logging.NewComponentLogger(logger, "mount-watch"),
	}
}

func (s *mountSource) Name() string { return SourceMount }

// Start begins watching. A missing or unwatchable prefix is logged and
// leaves the source idle.
func (s *mountSource) Start(ctx context.Context, out chan<- Trigger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logging.WarnWithContext(s.logger, "failed to create filesystem watcher; mount trigger disabled", "mount_watch_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "new mounts do not start a sync on their own"),
		)
		return nil
	}
	if err := w.Add(s.prefix); err != nil {
		_ = w.Close()
		logging.WarnWithContext(s.logger, "cannot watch mount prefix; mount trigger disabled", "mount_watch_failed",
			logging.String(logging.FieldPath, s.prefix),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "create device.mount_prefix or fix its permissions"),
			logging.String(logging.FieldImpact, "new mounts do not start a sync on their own"),
		)
		return nil
	}
	s.watcher = w
	go s.loop(ctx, w, out)

	s.logger.Info("mount watch started", logging.String(logging.FieldPath, s.prefix))
	return nil
}

func (s *mountSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher == nil {
		return
	}
	_ = s.watcher.Close()
	s.watcher = nil
	s.logger.Info("mount watch stopped")
}

func (s *mountSource) loop(ctx context.Context, w *fsnotify.Watcher, out chan<- Trigger) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if trig, ok := s.triggerFor(event); ok {
				emit(ctx, out, trig)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Warn("mount watch error", logging.Error(err))
		}
	}
}

func (s *mountSource) triggerFor(event fsnotify.Event) (Trigger, bool) {
	if !event.Has(fsnotify.Create) {
		return Trigger{}, false
	}
	info, err := os.Stat(event.Name)
	if err != nil || !info.IsDir() {
		return Trigger{}, false
	}
	s.logger.Info("mount folder appeared",
		logging.String(logging.FieldEventType, "mount_folder_created"),
		logging.String(logging.FieldPath, event.Name),
		logging.Duration("settle", s.settle),
	)
	return Trigger{Source: SourceMount, Detail: event.Name, At: time.Now(), Delay: s.settle}, true
}
