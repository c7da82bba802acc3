// Package db is a small persistent key-value store for server programs: a
// write-ahead log on the server filesystem, an in-memory table rebuilt from
// the log on open, and point-in-time snapshots with sorted iteration.
//
// Reads that miss the simulated block cache pay a disk read on the SSTable
// file, so database access shows up in virtual time like on real hardware.
package db
