// Package button turns falling edges on a GPIO input line into press events.
package button

import (
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"cardsync/internal/config"
	"cardsync/internal/logging"
)

const consumerName = "cardsync"

// Press is one debounced button press.
type Press struct {
	At  time.Time
	Seq uint32
}

// Requester claims a line and delivers its edge events to handler.
type Requester func(chip string, offset int, handler gpiocdev.EventHandler, opts ...gpiocdev.LineReqOption) (io.Closer, error)

func requestLine(chip string, offset int, handler gpiocdev.EventHandler, opts ...gpiocdev.LineReqOption) (io.Closer, error) {
	opts = append(opts, gpiocdev.WithEventHandler(handler))
	return gpiocdev.RequestLine(chip, offset, opts...)
}

// Button owns a requested GPIO line until Close.
type Button struct {
	chip    string
	offset  int
	line    io.Closer
	presses chan Press
	dropped atomic.Uint64
	logger  *slog.Logger
}

// Open requests the configured line as an input with falling-edge detection
// and kernel debounce. Pull-up bias is applied when gpio.pull_up is set.
func Open(cfg *config.Config, logger *slog.Logger) (*Button, error) {
	return OpenWith(cfg, logger, requestLine)
}

// OpenWith is Open with a custom line requester.
func OpenWith(cfg *config.Config, logger *slog.Logger, request Requester) (*Button, error) {
	b := &Button{
		chip:    cfg.GPIO.Chip,
		offset:  cfg.GPIO.Line,
		presses: make(chan Press, 1),
		logger:  logging.NewComponentLogger(logger, "button"),
	}

	opts := []gpiocdev.LineReqOption{
		gpiocdev.WithConsumer(consumerName),
		gpiocdev.WithFallingEdge,
	}
	if cfg.GPIO.PullUp {
		opts = append(opts, gpiocdev.WithPullUp)
	} else {
		opts = append(opts, gpiocdev.WithBiasDisabled)
	}
	if debounce := cfg.Debounce(); debounce > 0 {
		opts = append(opts, gpiocdev.WithDebounce(debounce))
	}

	line, err := request(b.chip, b.offset, b.handleEvent, opts...)
	if err != nil {
		return nil, fmt.Errorf("request gpio line %s:%d: %w", b.chip, b.offset, err)
	}
	b.line = line
	b.logger.Info("gpio line requested",
		logging.String("chip", b.chip),
		logging.Int("line", b.offset),
		logging.Duration("debounce", cfg.Debounce()),
		logging.Bool("pull_up", cfg.GPIO.PullUp),
	)
	return b, nil
}

// Presses delivers button presses. A press arriving while the previous one
// is still unread is dropped.
func (b *Button) Presses() <-chan Press {
	return b.presses
}

// Dropped reports how many presses were discarded because the reader was busy.
func (b *Button) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *Button) handleEvent(evt gpiocdev.LineEvent) {
	if evt.Type != gpiocdev.LineEventFallingEdge {
		return
	}
	press := Press{At: time.Now(), Seq: evt.LineSeqno}
	select {
	case b.presses <- press:
	default:
		b.dropped.Add(1)
		b.logger.Debug("button press dropped; previous press still pending", logging.Int64("seq", int64(evt.LineSeqno)))
	}
}

// Close releases the GPIO line.
func (b *Button) Close() error {
	if b == nil || b.line == nil {
		return nil
	}
	err := b.line.Close()
	b.line = nil
	if err != nil {
		return fmt.Errorf("release gpio line: %w", err)
	}
	b.logger.Info("gpio line released", logging.String("chip", b.chip), logging.Int("line", b.offset))
	return nil
}
