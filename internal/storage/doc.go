// Package storage persists the execution history of scheduled jobs.
//
// Backends:
//   - file: append-only JSON Lines, compacted per job
//   - sqlite: a single SQLite database (pure-Go driver)
//
// A Recorder feeds a Store from the job lifecycle events on the bus.
package storage
