// Package ffprobe wraps ffprobe's JSON output for the frame sampler.
//
// Inspect runs ffprobe and returns a Result whose helpers expose the first
// video stream's frame rate, frame count and dimensions.
package ffprobe
