// Package ledger records trailcam runs and the explicit status of every
// item they touched, in SQLite.
//
// Filename tags tell a later run which files are done; the ledger tells the
// operator why. Each run row carries the summary counters and each item row
// the final status, tag, confidence and the strides tried. The worker is
// the only writer. Status readers open their own connection, which WAL mode
// allows while a run is in progress.
//
// Schema changes bump schemaVersion in schema.go; operators delete the
// database to adopt the new schema.
package ledger
