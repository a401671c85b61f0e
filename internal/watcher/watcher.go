package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"cardsync/internal/config"
	"cardsync/internal/logging"
)

// Watcher turns triggers into spawned syncs.
type Watcher struct {
	cfg     *config.Config
	logger  *slog.Logger
	sources []Source
	spawner Spawner
	limiter *rate.Limiter

	children sync.WaitGroup
}

// Option customises the Watcher.
type Option func(*Watcher)

// WithSources replaces the sources built from configuration.
func WithSources(sources ...Source) Option {
	return func(w *Watcher) {
		w.sources = sources
	}
}

// WithSpawner replaces the child process spawner.
func WithSpawner(spawner Spawner) Option {
	return func(w *Watcher) {
		if spawner != nil {
			w.spawner = spawner
		}
	}
}

// New builds a watcher. configPath is handed to spawned syncs so they load
// the same configuration.
func New(cfg *config.Config, configPath string, logger *slog.Logger, opts ...Option) (*Watcher, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	w := &Watcher{
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "watcher"),
		limiter: newLimiter(cfg.Cooldown()),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.sources == nil {
		w.sources = defaultSources(cfg, logger)
	}
	if len(w.sources) == 0 {
		return nil, errors.New("no trigger sources enabled; set watch.button, watch.udev or watch.mount_watch")
	}
	if w.spawner == nil {
		spawner, err := newProcessSpawner(cfg, configPath, logger)
		if err != nil {
			return nil, err
		}
		w.spawner = spawner
	}
	return w, nil
}

func defaultSources(cfg *config.Config, logger *slog.Logger) []Source {
	var sources []Source
	if cfg.Watch.Button {
		sources = append(sources, newButtonSource(cfg, logger))
	}
	if cfg.Watch.Udev {
		sources = append(sources, newUdevSource(cfg, logger))
	}
	if cfg.Watch.MountWatch {
		sources = append(sources, newMountSource(cfg, logger))
	}
	return sources
}

// newLimiter allows one trigger per cooldown. A zero cooldown never limits.
func newLimiter(cooldown time.Duration) *rate.Limiter {
	if cooldown <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(cooldown), 1)
}

// Run starts every source and spawns a sync per accepted trigger until ctx
// is canceled. It then stops the sources and waits for running syncs.
func (w *Watcher) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	triggers := make(chan Trigger)
	started := make([]Source, 0, len(w.sources))
	defer func() {
		cancel()
		for i := len(started) - 1; i >= 0; i-- {
			started[i].Stop()
		}
		w.waitForChildren()
		w.logger.Info("watcher stopped", logging.String(logging.FieldEventType, "watcher_stopped"))
	}()

	for _, source := range w.sources {
		if err := source.Start(ctx, triggers); err != nil {
			return fmt.Errorf("start %s trigger: %w", source.Name(), err)
		}
		started = append(started, source)
	}

	names := make([]string, 0, len(started))
	for _, source := range started {
		names = append(names, source.Name())
	}
	w.logger.Info("watching for triggers",
		logging.String(logging.FieldEventType, "watcher_started"),
		logging.Any("sources", names),
		logging.Duration("cooldown", w.cfg.Cooldown()),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("shutdown requested")
			return nil
		case trig := <-triggers:
			w.dispatch(ctx, trig)
		}
	}
}

func (w *Watcher) dispatch(ctx context.Context, trig Trigger) {
	if !w.limiter.Allow() {
		w.logger.Debug("trigger dropped during cooldown",
			logging.String(logging.FieldTrigger, trig.Source),
			logging.String("detail", trig.Detail),
		)
		return
	}
	w.children.Go(func() {
		if trig.Delay > 0 {
			timer := time.NewTimer(trig.Delay)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}
		}
		w.spawner.Spawn(ctx, trig)
	})
}

func (w *Watcher) waitForChildren() {
	done := make(chan struct{})
	go func() {
		w.children.Wait()
		close(done)
	}()
	select {
	case <-done:
		return
	case <-time.After(100 * time.Millisecond):
	}
	w.logger.Info("waiting for running sync to finish", logging.Duration("grace", w.cfg.ShutdownGrace()))
	<-done
}
