// Package preflight provides readiness checks for the programs, folders and
// hardware cardsync depends on.
//
// `cardsync check` runs RunAll and prints every result. The watcher runs
// the same checks at startup and logs failures without refusing to start,
// since a missing card or archive mount is often temporary.
package preflight
