// Package main hosts the cardsync CLI entrypoint and command graph.
//
// `cardsync watch` is the long-running process that listens for the GPIO
// button (and optional udev or mount triggers) and spawns `cardsync sync`
// for each press. `cardsync sync` is the one-shot copy of new camera videos
// into the archive. The remaining commands inspect history, check the
// environment and scaffold configuration.
//
// Keep this package lean: behaviour lives in internal packages and the
// commands here only resolve configuration, build loggers and render output.
package main
