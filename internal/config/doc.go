// Package config loads, normalizes, and validates reelforge configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// REELFORGE_API_TOKEN. The Config type centralizes every knob the daemon and
// CLI need: scratch and output directories, the ffmpeg toolchain and its codec
// settings, composition defaults applied to descriptors, API limits, and the
// ntfy topic for render notifications.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
