// Package process is the per-server execution model: a task queue ordered by
// virtual time, fibers that suspend and resume on that queue, futures and
// combinators over them, a memory arena and the server's local clocks.
//
// # Fibers
//
// A fiber is a goroutine that only runs while a scheduler task hands control
// to it and waits for it to park again, so at most one goroutine of a
// simulation executes at any instant. Suspension (sleep, await, mutex wait)
// parks the fiber and leaves a resume continuation behind; Fibers.KillAll
// unwinds every parked fiber without notifying the program.
package process
