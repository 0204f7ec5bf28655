// Package notifications pushes run milestones to ntfy.
//
// The topic URL comes from config.toml (or TRAILCAM_NTFY_TOPIC). Without one
// the service is a no-op. Delivery is best-effort: callers log a failed send
// and carry on.
package notifications
