// Package resample drives the adaptive stride loop: when a video pass finds
// nothing, the item is sampled again at a finer stride until evidence
// appears or the stride floor is reached.
package resample
