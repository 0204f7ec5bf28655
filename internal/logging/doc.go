// Package logging assembles the slog loggers used by trailcam.
//
// The CLI logger writes to stdout (tint-colored on a terminal, key=value
// otherwise) and appends to <log_dir>/trailcam.log in the configured format.
// Context helpers tag lines with the run ID, item ID and stage carried by
// the services context keys, and WarnWithContext/ErrorWithContext keep
// warning and error lines shaped consistently.
package logging
