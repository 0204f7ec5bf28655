// Package tracking persists the best detection confidence per media item.
//
// The tracking file is a flat JSON object of item key to confidence so
// other tools can keep reading it. The sampling stride each value was
// measured at lives in a sidecar file next to it; the stride decides whether
// a new measurement may replace an old one. One process at a time may hold
// the store open.
package tracking
