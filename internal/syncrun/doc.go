// Package syncrun implements the one-shot card sync: find the mounted card,
// list its camera videos, diff them against the archive by basename, and copy
// whatever is new.
//
// Every handled outcome (no card, no videos, nothing new, copy failures)
// returns a nil error so the process exits cleanly. Only an unusable
// environment, such as a lock file that cannot be created, surfaces as an
// error. Runs are serialized through an advisory lock in the state directory
// and recorded in the history store when it is enabled.
package syncrun
