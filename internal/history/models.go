package history

import "time"

// Outcome summarizes how a sync run ended.
type Outcome string

const (
	OutcomeRunning   Outcome = "running"
	OutcomeNoDevice  Outcome = "no_device"
	OutcomeNoVideos  Outcome = "no_videos"
	OutcomeUpToDate  Outcome = "up_to_date"
	OutcomeCompleted Outcome = "completed"
	OutcomePartial   Outcome = "partial"
	OutcomeDryRun    Outcome = "dry_run"
	OutcomeCanceled  Outcome = "canceled"
	OutcomeFailed    Outcome = "failed"
)

// Run is one recorded sync.
type Run struct {
	ID         string
	Trigger    string
	StartedAt  time.Time
	FinishedAt *time.Time
	MountPoint string
	Found      int
	New        int
	Copied     int
	Failed     int
	Bytes      int64
	Outcome    Outcome
	Message    string
}

// Duration returns how long the run took, or zero while it is still running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// File is one recorded copy attempt.
type File struct {
	ID          int64
	RunID       string
	Source      string
	Destination string
	Bytes       int64
	Duration    time.Duration
	Error       string
	RecordedAt  time.Time
}

// RunTotals carries the counters written when a run finishes.
type RunTotals struct {
	MountPoint string
	Found      int
	New        int
	Copied     int
	Failed     int
	Bytes      int64
	Outcome    Outcome
	Message    string
}
