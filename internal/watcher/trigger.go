package watcher

import (
	"context"
	"time"
)

// Trigger sources.
const (
	SourceButton = "button"
	SourceUdev   = "udev"
	SourceMount  = "mount"
)

// Trigger is a request to run a sync.
type Trigger struct {
	Source string
	Detail string
	At     time.Time
	// Delay postpones the spawn so the automounter can finish mounting.
	Delay time.Duration
}

// Source produces triggers until its context is canceled or Stop is called.
type Source interface {
	Name() string
	Start(ctx context.Context, out chan<- Trigger) error
	Stop()
}

func emit(ctx context.Context, out chan<- Trigger, trig Trigger) {
	select {
	case out <- trig:
	case <-ctx.Done():
	}
}
