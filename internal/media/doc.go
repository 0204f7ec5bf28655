// Package media discovers camera-trap images and videos under an input root.
//
// Enumerate walks the tree once, classifies files by extension, drops files
// that already carry an outcome tag, and returns a deterministic list sorted
// by relative path.
package media
