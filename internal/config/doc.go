// Package config loads, normalizes, and validates trailcam configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// TRAILCAM_DETECTOR_TOKEN. Output and tracking locations default to children
// of the input tree so a single directory argument is enough to run.
//
// Always obtain settings through this package so downstream code receives
// absolute paths, canonical extension sets, and clear validation errors.
package config
