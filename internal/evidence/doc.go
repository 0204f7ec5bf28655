// Package evidence turns raw detector results into a per-item verdict.
//
// Interpret filters each frame's detections against the confidence
// threshold and buckets them. Select then chooses either the single best
// frame or every frame with qualifying detections, and flags small
// high-in-frame animals so the artifact writer can tag them as birds.
package evidence
