// Package sampler turns media items into frame passes for detection.
//
// A video pass probes the file with ffprobe, then runs a single ffmpeg
// select filter that writes every Nth frame (1-based positions N, 2N, ...) to
// a private temp directory. Image passes contain the image itself. Passes are
// closed by the caller, which removes any temporary frames.
package sampler
