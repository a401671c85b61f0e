// Package config loads, normalizes, and validates cardsync configuration data.
//
// It supplies defaults matching a stock Raspberry Pi setup (card automounted
// under /media/pi, button on GPIO 17, archive in /home/pi/videos), expands
// user paths including tilde shortcuts, and reads TOML files. Running without
// a config file behaves exactly like the defaults.
//
// Always obtain settings through this package so the watcher and the sync
// pipeline agree on paths, extensions, and trigger settings.
package config
