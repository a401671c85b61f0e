// Package watcher is the long-running half of cardsync. It waits for
// triggers (a button press, and optionally a udev partition add or a new
// folder under the mount prefix) and spawns `cardsync sync` as a child
// process for each one, relaying the child's output into its own log.
//
// Triggers closer together than the configured cooldown are dropped.
// Children are never retried; a failed sync is logged and the watcher goes
// back to waiting. On shutdown the watcher stops its sources, releases the
// GPIO line and waits for running children to exit.
package watcher
