// Package logging assembles structured slog loggers and formatting helpers used
// across cardsync.
//
// It owns the console and JSON handlers, the level and output plumbing, and
// the rotating log file the watcher writes to. Standard field names live here
// so the watcher, the sync pipeline, and the history store tag their lines the
// same way. A no-op logger is provided for tests and wiring code that cannot
// fail.
package logging
