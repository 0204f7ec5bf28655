// Package detection is the boundary to the external object detector.
//
// A Client takes a batch of frame paths and returns one Result per path.
// Three backends exist: a subprocess speaking the MegaDetector batch JSON
// format, an HTTP service returning the same format, and an Ollama vision
// model prompted for it. All output passes through Decode, which validates
// boxes, clamps confidences and maps raw category codes onto the primary,
// secondary and other buckets.
package detection
