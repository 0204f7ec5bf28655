// Package logs reads the trailcam log file for `trailcam logs`.
//
// Tail returns the last N lines with bounded memory, and Follow polls for
// appended lines until its context ends, starting over when the file is
// truncated. Filter narrows lines to one run, one item or a minimum level and
// understands both the console and JSON log formats.
package logs
