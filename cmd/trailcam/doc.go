// Package main hosts the trailcam CLI entrypoint and command graph.
//
// The Cobra command tree loads configuration once, applies directory
// arguments and flag overrides, and hands off to the internal packages:
// workflow for detection runs, media and sampler for scans, ledger for run
// history, tracking for the confidence file, and deps/preflight for the
// doctor report. Keep this package thin; behavior belongs in internal/.
package main
