package watcher

import (
	"context"
	"log/slog"
	"sync"

	"cardsync/internal/button"
	"cardsync/internal/config"
	"cardsync/internal/logging"
)

// buttonSource forwards GPIO presses as triggers and owns the line.
type buttonSource struct {
	cfg    *config.Config
	logger *slog.Logger
	open   func(*config.Config, *slog.Logger) (*button.Button, error)

	mu     sync.Mutex
	button *button.Button
	done   chan struct{}
}

func newButtonSource(cfg *config.Config, logger *slog.Logger) *buttonSource {
	return &buttonSource{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "watcher"),
		open:   button.Open,
	}
}

func (s *buttonSource) Name() string { return SourceButton }

// Start requests the GPIO line. Failure is fatal: without the button the
// watcher has nothing to do unless another source is enabled.
func (s *buttonSource) Start(ctx context.Context, out chan<- Trigger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.button != nil {
		return nil
	}
	btn, err := s.open(s.cfg, s.logger)
	if err != nil {
		return err
	}
	s.button = btn
	s.done = make(chan struct{})
	done := s.done
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case press := <-btn.Presses():
				s.logger.Info("button pressed",
					logging.String(logging.FieldEventType, "button_pressed"),
					logging.Int64("seq", int64(press.Seq)),
				)
				emit(ctx, out, Trigger{Source: SourceButton, At: press.At})
			}
		}
	}()
	return nil
}

func (s *buttonSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.button == nil {
		return
	}
	close(s.done)
	if err := s.button.Close(); err != nil {
		s.logger.Warn("failed to release gpio line", logging.Error(err))
	}
	s.button = nil
}
