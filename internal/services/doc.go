// Package services defines the error markers and context keys shared by the
// sampler, detector backends and run controller.
//
// Wrap tags failures with a sentinel marker (external tool, validation,
// timeout, ...) so the run controller can map them to ledger statuses with
// FailureStatus. The context helpers stamp run IDs, item IDs, stages and
// request correlation IDs that the logging package lifts into log fields.
package services
