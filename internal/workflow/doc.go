// Package workflow runs one detection batch over an input tree.
//
// A Manager enumerates media, opens a ledger run and a locked tracking store,
// then walks the items on a single worker goroutine. Each item is skipped
// when the tracking store already covers it, or is sampled, detected and
// resampled at finer strides until evidence is found or the stride floor is
// reached. Evidence produces artifacts, an outcome tag and a tracking record;
// exhaustion records the best sub-threshold confidence and optionally deletes
// the file. Every item ends with an explicit ledger status.
//
// Progress is published on the Run's event channel after each item. Item
// failures and panics are contained to the item. Cancellation is honoured
// between items, and the tracking store is flushed once when the run ends.
package workflow
